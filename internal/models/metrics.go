package models

import "time"

// MetricsSnapshot summarises process counters for the JSON metrics endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64           `json:"requestsTotal"`
	AverageRequestDurationMs float64          `json:"averageRequestDurationMs"`
	Submissions              map[string]int64 `json:"submissions"`
	StageFailures            map[string]int64 `json:"stageFailures"`
	RemoteCalls              uint64           `json:"remoteCalls"`
	RemoteFailures           uint64           `json:"remoteFailures"`
	FolderCacheHitRatio      float64          `json:"folderCacheHitRatio"`
	Goroutines               int              `json:"goroutines"`
	GeneratedAt              time.Time        `json:"generatedAt"`
}
