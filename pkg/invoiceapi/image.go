package invoiceapi

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/rotisserie/eris"
)

// Image is an invoice image to upload. ContentType is detected from Data
// when empty.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// DetectedContentType returns ContentType, or the type sniffed from Data.
func (img Image) DetectedContentType() string {
	if img.ContentType != "" {
		return img.ContentType
	}
	return http.DetectContentType(img.Data)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipart encodes the image as a single file field.
func (img Image) multipart(field string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := img.Name
	if name == "" {
		name = "invoice"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
	h.Set("Content-Type", img.DetectedContentType())

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", eris.Wrap(err, "invoiceapi: create multipart part")
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", eris.Wrap(err, "invoiceapi: write multipart part")
	}
	if err := w.Close(); err != nil {
		return nil, "", eris.Wrap(err, "invoiceapi: close multipart writer")
	}
	return &buf, w.FormDataContentType(), nil
}
