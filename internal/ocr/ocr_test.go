package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-cli/internal/config"
)

func TestNewExtractor_Tesseract(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "tesseract", TesseractPath: "/usr/bin/tesseract"})
	require.NoError(t, err)
	assert.IsType(t, &Tesseract{}, ext)
}

func TestNewExtractor_TesseractDefault(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: ""})
	require.NoError(t, err)
	assert.IsType(t, &Tesseract{}, ext)
}

func TestNewExtractor_None(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, ext)
}

func TestNewExtractor_MistralMissingKey(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral provider requires mistral_api_key")
}

func TestNewExtractor_MistralWithKey(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "mistral", MistralKey: "test-key"})
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, ext)
}

func TestNewExtractor_UnknownProvider(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "unknown"`)
}

func TestFunc(t *testing.T) {
	var ext Extractor = Func(func(_ context.Context, data []byte, ct string) (string, error) {
		return ct + ":" + string(data), nil
	})
	text, err := ext.ExtractText(context.Background(), []byte("x"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png:x", text)
}

func TestTesseract_BinPath(t *testing.T) {
	p := NewTesseract("")
	assert.Equal(t, "tesseract", p.binPath)

	p = NewTesseract("/custom/tesseract")
	assert.Equal(t, "/custom/tesseract", p.binPath)
}

func TestTesseract_BinaryNotFound(t *testing.T) {
	p := NewTesseract("/nonexistent/tesseract")
	_, err := p.ExtractText(context.Background(), []byte("png"), "image/png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func fakeTesseract(t *testing.T, script string) *Tesseract {
	t.Helper()
	fakeBin := filepath.Join(t.TempDir(), "tesseract")
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0755))
	return NewTesseract(fakeBin)
}

func TestTesseract_ExtractText_Success(t *testing.T) {
	// Echo stdin back so the test proves the image is piped through.
	p := fakeTesseract(t, "#!/bin/sh\necho\ncat\necho\n")

	text, err := p.ExtractText(context.Background(), []byte("Sugar 50 kg"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Sugar 50 kg", text)
}

func TestTesseract_ExtractText_Unreadable(t *testing.T) {
	p := fakeTesseract(t, "#!/bin/sh\necho 'Error in pixReadStream' >&2\nexit 1\n")

	_, err := p.ExtractText(context.Background(), []byte("junk"), "image/png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInput))
	assert.Contains(t, err.Error(), "pixReadStream")
}

func newTestMistral(url string) *MistralOCR {
	return &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: url,
		client:   &http.Client{},
	}
}

func TestMistralOCR_DefaultModel(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
}

func TestMistralOCR_CustomModel(t *testing.T) {
	m := NewMistralOCR("key", "custom-model")
	assert.Equal(t, "custom-model", m.model)
}

func TestMistralOCR_ExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "image_url", req.Document.Type)
		assert.Contains(t, req.Document.ImageURL, "data:image/jpeg;base64,")

		resp := mistralOCRResponse{
			Pages: []mistralOCRPage{
				{Index: 0, Markdown: "Sugar 50 kg"},
				{Index: 1, Markdown: "Salt 2 kg"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	text, err := newTestMistral(srv.URL).ExtractText(context.Background(), []byte("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Sugar 50 kg\n\nSalt 2 kg", text)
}

func TestMistralOCR_APIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnavailable},
		{"bad image", http.StatusUnprocessableEntity, ErrInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`)) //nolint:errcheck
			}))
			defer srv.Close()

			_, err := newTestMistral(srv.URL).ExtractText(context.Background(), []byte("png"), "image/png")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
			assert.Contains(t, err.Error(), "mistral API returned")
		})
	}
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{invalid json`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTestMistral(srv.URL).ExtractText(context.Background(), []byte("png"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal mistral response")
}

func TestMistralOCR_EmptyPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := mistralOCRResponse{Pages: []mistralOCRPage{}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	text, err := newTestMistral(srv.URL).ExtractText(context.Background(), []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Empty(t, text)
}
