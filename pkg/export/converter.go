package export

import (
	"context"
	"fmt"
	"strings"
)

// Engine names accepted by NewConverter.
const (
	EngineGofpdf   = "gofpdf"
	EngineChromium = "chromium"
)

// Converter turns a self-contained HTML document into PDF bytes.
type Converter interface {
	Name() string
	Convert(ctx context.Context, document string) ([]byte, error)
}

// ConverterOptions configures NewConverter.
type ConverterOptions struct {
	Engine      string
	ChromiumBin string
}

// NewConverter picks a converter by engine name.
func NewConverter(opts ConverterOptions) (Converter, error) {
	switch strings.ToLower(opts.Engine) {
	case "", EngineGofpdf:
		return NewGofpdfConverter(), nil
	case EngineChromium:
		return NewChromiumConverter(opts.ChromiumBin), nil
	default:
		return nil, fmt.Errorf("unknown pdf engine %q", opts.Engine)
	}
}
