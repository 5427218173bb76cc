package models

import "strings"

// Attachment is an uploaded file as sent by the form: base64 content plus declared metadata.
type Attachment struct {
	Name     string `json:"name" yaml:"name"`
	MimeType string `json:"mimeType" yaml:"mimeType"`
	Data     string `json:"data" yaml:"data"`
}

// School is the inquiring school. CalendarURL and BellScheduleURL are filled in during a run.
type School struct {
	Name             string      `json:"name" yaml:"name" validate:"required"`
	Address          string      `json:"address" yaml:"address"`
	ContactName      string      `json:"contactName" yaml:"contactName"`
	ContactEmail     string      `json:"contactEmail" yaml:"contactEmail"`
	Phone            string      `json:"phone" yaml:"phone"`
	CalendarText     string      `json:"calendarText" yaml:"calendarText"`
	CalendarFile     *Attachment `json:"calendarFile,omitempty" yaml:"calendarFile,omitempty"`
	BellScheduleText string      `json:"bellScheduleText" yaml:"bellScheduleText"`
	BellScheduleFile *Attachment `json:"bellScheduleFile,omitempty" yaml:"bellScheduleFile,omitempty"`
	Certification    string      `json:"certification" yaml:"certification"`
	Notes            string      `json:"notes" yaml:"notes"`
	NumberOfTeachers string      `json:"numberOfTeachers" yaml:"numberOfTeachers"`

	CalendarURL     string `json:"-" yaml:"-"`
	BellScheduleURL string `json:"-" yaml:"-"`
}

// Teacher is one requested teaching position.
type Teacher struct {
	Name              string      `json:"name" yaml:"name" validate:"required"`
	Description       string      `json:"description" yaml:"description"`
	Duties            string      `json:"duties" yaml:"duties"`
	Salary            string      `json:"salary" yaml:"salary"`
	Schedule          string      `json:"schedule" yaml:"schedule"`
	StartDate         string      `json:"startDate" yaml:"startDate"`
	EndDate           string      `json:"endDate" yaml:"endDate"`
	InstructionalDays string      `json:"instructionalDays" yaml:"instructionalDays"`
	GradeLevels       []string    `json:"gradeLevels" yaml:"gradeLevels"`
	SubjectAreas      []string    `json:"subjectAreas" yaml:"subjectAreas"`
	Languages         []string    `json:"languages" yaml:"languages"`
	Certification     string      `json:"certification" yaml:"certification"`
	Modality          string      `json:"modality" yaml:"modality"`
	ScheduleFile      *Attachment `json:"scheduleFile,omitempty" yaml:"scheduleFile,omitempty"`

	RecordID        string `json:"-" yaml:"-"`
	ScheduleFileURL string `json:"-" yaml:"-"`
}

// Submission is the root form payload. Teacher order is significant.
type Submission struct {
	School   School    `json:"school" yaml:"school"`
	Teachers []Teacher `json:"teachers" yaml:"teachers" validate:"dive"`
}

// FileMarker is the text written to a column when a file stands in for free text.
func FileMarker(url string) string {
	return "File: " + url
}

// AppendFileMarker adds a file marker on its own line after any existing text.
func AppendFileMarker(text, url string) string {
	text = strings.TrimRight(text, "\n ")
	if text == "" {
		return FileMarker(url)
	}
	return text + "\n" + FileMarker(url)
}
