// Package ocr extracts text from invoice images for the dev server.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-cli/internal/config"
)

// Extraction failures. ErrInput marks images the engine cannot read;
// ErrUnavailable marks an engine that cannot run at all.
var (
	ErrInput       = eris.New("ocr: unsupported or invalid image file")
	ErrUnavailable = eris.New("ocr: engine unavailable")
)

// Extractor extracts text content from image bytes.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// Func adapts a function to Extractor.
type Func func(ctx context.Context, data []byte, contentType string) (string, error)

// ExtractText calls f.
func (f Func) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	return f(ctx, data, contentType)
}

// NewExtractor creates an Extractor based on config. Provider "none"
// returns nil: the server then reports OCR as unavailable.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "tesseract", "":
		return NewTesseract(cfg.TesseractPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	case "none":
		return nil, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
