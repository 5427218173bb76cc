package storage

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// FolderMimeType marks folders in Drive listings.
const FolderMimeType = "application/vnd.google-apps.folder"

// Item is a folder or file handle returned by a store.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Permissions is the sharing state of a folder or file.
type Permissions struct {
	Viewers []string `json:"viewers"`
	Editors []string `json:"editors"`
}

// Empty reports whether there is nothing to grant.
func (p Permissions) Empty() bool {
	return len(p.Viewers) == 0 && len(p.Editors) == 0
}

// DecodeBase64 decodes form upload payloads. Browsers hand us data URIs, standard or URL-safe
// alphabets, with or without padding, sometimes wrapped across lines.
func DecodeBase64(raw string) ([]byte, error) {
	if idx := strings.Index(raw, ";base64,"); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+len(";base64,"):]
	}
	raw = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, raw)
	if raw == "" {
		return nil, fmt.Errorf("empty base64 payload")
	}
	encodings := []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(raw)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("decode base64 payload: %w", lastErr)
}

const maxNameBytes = 180

// SanitizeName makes a user-supplied folder or file name safe for any backend.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "-", "\\", "-", "\x00", "").Replace(name)
	name = strings.Trim(name, ".")
	if name == "" {
		return "untitled"
	}
	if len(name) > maxNameBytes {
		cut := maxNameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}
