package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ChromiumConverter prints HTML with a headless Chromium, giving full CSS support. Each call launches
// and tears down its own browser.
type ChromiumConverter struct {
	bin     string
	timeout time.Duration
}

// NewChromiumConverter uses bin when set, otherwise the launcher's lookup or download.
func NewChromiumConverter(bin string) *ChromiumConverter {
	return &ChromiumConverter{bin: bin, timeout: 60 * time.Second}
}

func (c *ChromiumConverter) Name() string { return EngineChromium }

// Convert loads document into a blank page and prints it on Letter paper with half-inch margins.
func (c *ChromiumConverter) Convert(ctx context.Context, document string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	l := launcher.New().Context(ctx).Headless(true)
	if c.bin != "" {
		l = l.Bin(c.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect chromium: %w", err)
	}
	defer browser.Close() //nolint:errcheck

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.SetDocumentContent(document); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for document: %w", err)
	}

	width, height, margin := 8.5, 11.0, 0.5
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      &width,
		PaperHeight:     &height,
		MarginTop:       &margin,
		MarginBottom:    &margin,
		MarginLeft:      &margin,
		MarginRight:     &margin,
	})
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf stream: %w", err)
	}
	return data, nil
}
