package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const metaSuffix = ".meta.json"

// ErrOutsideRoot is returned when an ID resolves outside the base directory.
var ErrOutsideRoot = errors.New("path escapes storage root")

type fileMeta struct {
	MimeType string   `json:"mimeType,omitempty"`
	Viewers  []string `json:"viewers,omitempty"`
	Editors  []string `json:"editors,omitempty"`
}

// LocalDrive keeps folders and files on disk under a base directory. IDs are slash separated paths
// relative to that directory and file URLs are signed download links served by the API.
type LocalDrive struct {
	baseDir   string
	publicURL string
	signer    *SignedURLSigner
	mu        sync.Mutex
}

// NewLocalDrive ensures the base directory exists and returns a handle.
func NewLocalDrive(baseDir, publicURL string, signer *SignedURLSigner) (*LocalDrive, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalDrive{baseDir: baseDir, publicURL: strings.TrimRight(publicURL, "/"), signer: signer}, nil
}

// FindFolder returns the folder called name directly under parentID, or nil when absent.
func (s *LocalDrive) FindFolder(ctx context.Context, parentID, name string) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := s.childID(parentID, name)
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, nil
	}
	return &Item{ID: id, Name: path.Base(id)}, nil
}

// CreateFolder creates name under parentID. Creating an existing folder returns it unchanged.
func (s *LocalDrive) CreateFolder(ctx context.Context, parentID, name string) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := s.childID(parentID, name)
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return &Item{ID: id, Name: path.Base(id)}, nil
}

// Upload writes data into folderID. A name already taken in the folder gets a numeric suffix.
func (s *LocalDrive) Upload(ctx context.Context, folderID, name, mimeType string, data []byte) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.uniqueID(folderID, SanitizeName(name))
	if err != nil {
		return nil, err
	}
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := s.writeMeta(full, fileMeta{MimeType: mimeType}); err != nil {
		return nil, err
	}
	url, err := s.url(id)
	if err != nil {
		return nil, err
	}
	return &Item{ID: id, Name: path.Base(id), URL: url}, nil
}

// Permissions returns the recorded sharing state of id.
func (s *LocalDrive) Permissions(ctx context.Context, id string) (Permissions, error) {
	if err := ctx.Err(); err != nil {
		return Permissions{}, err
	}
	full, err := s.resolve(id)
	if err != nil {
		return Permissions{}, err
	}
	meta, err := s.readMeta(full)
	if err != nil {
		return Permissions{}, err
	}
	return Permissions{Viewers: meta.Viewers, Editors: meta.Editors}, nil
}

// Grant adds perms to id. Existing grants are kept and duplicates are ignored.
func (s *LocalDrive) Grant(ctx context.Context, id string, perms Permissions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	full, err := s.resolve(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err != nil {
		return fmt.Errorf("grant on %s: %w", id, err)
	}
	meta, err := s.readMeta(full)
	if err != nil {
		return err
	}
	meta.Viewers = mergeEmails(meta.Viewers, perms.Viewers)
	meta.Editors = mergeEmails(meta.Editors, perms.Editors)
	return s.writeMeta(full, meta)
}

// OpenSigned validates a download token and opens the file it names.
func (s *LocalDrive) OpenSigned(token string) (*os.File, string, string, error) {
	if s.signer == nil {
		return nil, "", "", fmt.Errorf("signed downloads disabled")
	}
	id, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", "", err
	}
	full, err := s.resolve(id)
	if err != nil {
		return nil, "", "", err
	}
	file, err := os.Open(full)
	if err != nil {
		return nil, "", "", fmt.Errorf("open stored file: %w", err)
	}
	meta, err := s.readMeta(full)
	if err != nil {
		_ = file.Close()
		return nil, "", "", err
	}
	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return file, path.Base(id), mimeType, nil
}

// Path exposes the absolute path behind an ID.
func (s *LocalDrive) Path(id string) string {
	full, err := s.resolve(id)
	if err != nil {
		return ""
	}
	return full
}

func (s *LocalDrive) childID(parentID, name string) string {
	return path.Join(strings.Trim(parentID, "/"), SanitizeName(name))
}

func (s *LocalDrive) uniqueID(folderID, name string) (string, error) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; ; i++ {
		id := s.childID(folderID, candidate)
		full, err := s.resolve(id)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(full); errors.Is(err, fs.ErrNotExist) {
			return id, nil
		}
		if i > 1000 {
			return "", fmt.Errorf("no free name for %s", name)
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
}

func (s *LocalDrive) url(id string) (string, error) {
	if s.signer == nil {
		return "file://" + filepath.ToSlash(s.Path(id)), nil
	}
	token, _, err := s.signer.Generate(id)
	if err != nil {
		return "", fmt.Errorf("sign download url: %w", err)
	}
	return s.publicURL + "/files/" + token, nil
}

func (s *LocalDrive) resolve(id string) (string, error) {
	clean := path.Clean("/" + id)
	full := filepath.Join(s.baseDir, filepath.FromSlash(clean))
	base := filepath.Clean(s.baseDir)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

func (s *LocalDrive) readMeta(full string) (fileMeta, error) {
	var meta fileMeta
	raw, err := os.ReadFile(full + metaSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

func (s *LocalDrive) writeMeta(full string, meta fileMeta) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(full+metaSuffix, raw, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func mergeEmails(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, list := range [][]string{existing, extra} {
		for _, email := range list {
			key := strings.ToLower(strings.TrimSpace(email))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, email)
		}
	}
	sort.Strings(out)
	return out
}
