package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/internal/templates"
	"github.com/noah-isme/school-intake-api/pkg/export"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
	"github.com/noah-isme/school-intake-api/pkg/storage"
)

const maxLogoBytes = 2 << 20

type documentStore interface {
	Store(ctx context.Context, folderID, name, mimeType string, data []byte) (*storage.Item, error)
}

// DocumentConfig tunes DocumentService.
type DocumentConfig struct {
	BrandName    string
	LogoURL      string
	FetchTimeout time.Duration
}

// DocumentService renders the partnership summary and turns it into a stored PDF.
type DocumentService struct {
	converter export.Converter
	store     documentStore
	cfg       DocumentConfig
	tmpl      *template.Template
	http      *http.Client
	logger    *zap.Logger
	now       func() time.Time

	logoMu  sync.Mutex
	logoURI template.URL
}

type documentView struct {
	BrandName   string
	LogoDataURI template.URL
	SubmittedOn string
	RecordID    string
	RecordURL   string
	School      models.School
	Teachers    []models.Teacher
}

// NewDocumentService parses the embedded template. store may be nil for preview-only use.
func NewDocumentService(converter export.Converter, store documentStore, cfg DocumentConfig, logger *zap.Logger) (*DocumentService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if converter == nil {
		converter = export.NewGofpdfConverter()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	tmpl, err := templates.Parse(templates.Document)
	if err != nil {
		return nil, fmt.Errorf("parse document template: %w", err)
	}
	return &DocumentService{
		converter: converter,
		store:     store,
		cfg:       cfg,
		tmpl:      tmpl,
		http:      &http.Client{Timeout: cfg.FetchTimeout},
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Render produces the self-contained summary HTML. All user text is escaped by html/template.
func (s *DocumentService) Render(ctx context.Context, school models.School, teachers []models.Teacher, recordID, recordURL string) (string, error) {
	view := documentView{
		BrandName:   s.cfg.BrandName,
		LogoDataURI: s.logo(ctx),
		SubmittedOn: s.now().Format("January 2, 2006"),
		RecordID:    recordID,
		RecordURL:   recordURL,
		School:      school,
		Teachers:    teachers,
	}
	buf := &bytes.Buffer{}
	if err := s.tmpl.Execute(buf, view); err != nil {
		return "", fmt.Errorf("execute document template: %w", err)
	}
	return buf.String(), nil
}

// Convert turns rendered HTML into PDF bytes with the configured engine.
func (s *DocumentService) Convert(ctx context.Context, document string) ([]byte, error) {
	pdf, err := s.converter.Convert(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("convert with %s: %w", s.converter.Name(), err)
	}
	return pdf, nil
}

// RenderAndStore renders, converts and uploads the summary into folderID.
func (s *DocumentService) RenderAndStore(ctx context.Context, folderID string, sub models.Submission, recordID, recordURL string) (*storage.Item, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrDisabled, "document storage not configured")
	}
	document, err := s.Render(ctx, sub.School, sub.Teachers, recordID, recordURL)
	if err != nil {
		return nil, err
	}
	pdf, err := s.Convert(ctx, document)
	if err != nil {
		return nil, err
	}
	return s.store.Store(ctx, folderID, DocumentFileName(sub.School.Name, s.now()), "application/pdf", pdf)
}

// Preview renders a submission without touching remote services. The PDF is produced only when
// withPDF is set.
func (s *DocumentService) Preview(ctx context.Context, sub models.Submission, withPDF bool) (string, []byte, error) {
	document, err := s.Render(ctx, sub.School, sub.Teachers, "", "")
	if err != nil {
		return "", nil, err
	}
	if !withPDF {
		return document, nil, nil
	}
	pdf, err := s.Convert(ctx, document)
	if err != nil {
		return "", nil, err
	}
	return document, pdf, nil
}

// DocumentFileName names the stored summary after the school and date.
func DocumentFileName(schoolName string, at time.Time) string {
	return fmt.Sprintf("%s - Partnership Summary - %s.pdf", storage.SanitizeName(schoolName), at.Format("2006-01-02"))
}

// logo fetches the brand logo once and embeds it as a data URI. Failures omit the logo and are
// retried on the next render.
func (s *DocumentService) logo(ctx context.Context) template.URL {
	if s.cfg.LogoURL == "" {
		return ""
	}
	s.logoMu.Lock()
	defer s.logoMu.Unlock()
	if s.logoURI != "" {
		return s.logoURI
	}
	uri, err := s.fetchLogo(ctx)
	if err != nil {
		s.logger.Warn("brand logo unavailable", zap.String("url", s.cfg.LogoURL), zap.Error(err))
		return ""
	}
	s.logoURI = uri
	return uri
}

func (s *DocumentService) fetchLogo(ctx context.Context) (template.URL, error) {
	if strings.HasPrefix(s.cfg.LogoURL, "data:image/") {
		return template.URL(s.cfg.LogoURL), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.LogoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxLogoBytes {
		return "", fmt.Errorf("logo larger than %d bytes", maxLogoBytes)
	}
	mimeType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("logo is %s, not an image", mimeType)
	}
	return template.URL("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)), nil
}
