package ocr

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Tesseract extracts text using the tesseract CLI tool.
type Tesseract struct {
	binPath string
}

// NewTesseract creates a Tesseract extractor. If binPath is empty, "tesseract" is used.
func NewTesseract(binPath string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	return &Tesseract{binPath: binPath}
}

// ExtractText pipes the image through `tesseract stdin stdout` and returns
// the trimmed text.
func (t *Tesseract) ExtractText(ctx context.Context, data []byte, _ string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binPath, "stdin", "stdout")
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", eris.Wrapf(ErrInput, "tesseract: %s", strings.TrimSpace(stderr.String()))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", eris.Wrap(ctxErr, "ocr: tesseract")
		}
		return "", eris.Wrapf(ErrUnavailable, "tesseract OCR engine is not installed or not in PATH (%s)", t.binPath)
	}

	return strings.TrimSpace(stdout.String()), nil
}
