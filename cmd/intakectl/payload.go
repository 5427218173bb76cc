package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/school-intake-api/internal/models"
)

// readPayload loads a submission from path, or from stdin when path is "-".
func readPayload(path string, stdin io.Reader) (models.Submission, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return models.Submission{}, fmt.Errorf("read payload: %w", err)
	}
	return decodePayload(path, raw)
}

// decodePayload accepts JSON or YAML. The extension decides; without one a leading '{' means JSON.
func decodePayload(name string, raw []byte) (models.Submission, error) {
	var sub models.Submission
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return sub, fmt.Errorf("payload %s is empty", name)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return sub, decodeJSON(trimmed, &sub)
	case ".yaml", ".yml":
		return sub, decodeYAML(trimmed, &sub)
	}
	if trimmed[0] == '{' {
		return sub, decodeJSON(trimmed, &sub)
	}
	return sub, decodeYAML(trimmed, &sub)
}

func decodeJSON(raw []byte, sub *models.Submission) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(sub); err != nil {
		return fmt.Errorf("decode json payload: %w", err)
	}
	return nil
}

func decodeYAML(raw []byte, sub *models.Submission) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(sub); err != nil {
		return fmt.Errorf("decode yaml payload: %w", err)
	}
	return nil
}
