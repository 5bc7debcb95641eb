// Package input reads user-supplied invoice text and images and enforces the
// preconditions a parse needs before it is started.
package input

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/invoice-cli/pkg/invoiceapi"
)

var (
	// ErrEmptyContent means the text to parse is blank after trimming.
	ErrEmptyContent = eris.New("input: invoice text is empty")
	// ErrNoFile means an image parse was requested without a file.
	ErrNoFile = eris.New("input: no image file selected")
	// ErrUnsupportedImage means the file is not a PNG, JPEG or WEBP image.
	ErrUnsupportedImage = eris.New("input: unsupported image type")
)

// AllowedImageTypes lists the content types the parsing service accepts.
var AllowedImageTypes = []string{"image/png", "image/jpeg", "image/jpg", "image/webp"}

// CheckContent returns ErrEmptyContent when content is blank.
func CheckContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// ReadText reads invoice text from r, decoding it from charset (UTF-8 when
// empty). Apart from a leading byte order mark the text is returned verbatim,
// matching what --text passes through.
func ReadText(r io.Reader, charset string) (string, error) {
	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "utf8") {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", eris.Wrapf(err, "input: unsupported charset %q", charset)
		}
		r = enc.NewDecoder().Reader(r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrap(err, "input: read text")
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

// ReadTextFile reads invoice text from path on fs.
func ReadTextFile(fs afero.Fs, path, charset string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "input: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadText(f, charset)
}

// ReadImage loads an image for upload. An empty path yields ErrNoFile.
func ReadImage(fs afero.Fs, path string) (invoiceapi.Image, error) {
	if strings.TrimSpace(path) == "" {
		return invoiceapi.Image{}, ErrNoFile
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return invoiceapi.Image{}, eris.Wrapf(err, "input: read image %s", path)
	}
	if len(data) == 0 {
		return invoiceapi.Image{}, eris.Errorf("input: image %s is empty", path)
	}

	name := filepath.Base(path)
	contentType := ImageContentType(name, data)
	if !allowedImageType(contentType) {
		return invoiceapi.Image{}, eris.Wrapf(ErrUnsupportedImage, "%s (%s)", name, contentType)
	}
	return invoiceapi.Image{Name: name, ContentType: contentType, Data: data}, nil
}

// ImageContentType sniffs data and falls back to the file extension.
func ImageContentType(name string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return sniffed
}

func allowedImageType(contentType string) bool {
	for _, t := range AllowedImageTypes {
		if contentType == t {
			return true
		}
	}
	return false
}
