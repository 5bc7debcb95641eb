package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-cli/internal/coordinator"
	"github.com/sells-group/invoice-cli/internal/devserver"
	"github.com/sells-group/invoice-cli/internal/export"
	"github.com/sells-group/invoice-cli/internal/input"
	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/ocr"
	"github.com/sells-group/invoice-cli/pkg/invoiceapi"
)

const sugarLine = "Sugar – Rs. 6,000 (50 kg)"

func newSession(t *testing.T, h http.Handler) (*Session, afero.Fs) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	fs := afero.NewMemMapFs()
	client := invoiceapi.NewClient(invoiceapi.WithBaseURL(srv.URL))
	saver := export.DirSaver{Fs: fs, Dir: "/out"}
	return New(client, saver, export.WithFs(fs)), fs
}

var ocrEcho = ocr.Func(func(_ context.Context, data []byte, _ string) (string, error) {
	return string(data), nil
})

func wait(t *testing.T, op *coordinator.Operation) (coordinator.Outcome, error) {
	t.Helper()
	select {
	case <-op.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("operation did not resolve")
	}
	return op.Wait()
}

func TestParseText_Sugar(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, devserver.New(devserver.Config{}).Handler())

	var (
		mu     sync.Mutex
		phases []coordinator.Phase
	)
	s.Coordinator().Watch(func(st coordinator.State) {
		mu.Lock()
		phases = append(phases, st.Phase)
		mu.Unlock()
	})
	require.Equal(t, coordinator.Idle, s.State().Phase)

	op, err := s.ParseText(context.Background(), sugarLine)
	require.NoError(t, err)
	outcome, err := wait(t, op)
	require.NoError(t, err)
	assert.Equal(t, coordinator.Success, outcome)

	mu.Lock()
	assert.Equal(t, []coordinator.Phase{coordinator.Running, coordinator.Succeeded}, phases)
	mu.Unlock()

	groups := s.Results()
	require.Len(t, groups, 1)
	assert.Equal(t, 0, groups[0].InputIndex)
	require.NotEmpty(t, groups[0].Items)
	assert.Equal(t, sugarLine, groups[0].Items[0].RawLine)
	assert.NotEmpty(t, s.RequestID())
	assert.Empty(t, s.State().LastError)
}

func TestParseText_Blank(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, devserver.New(devserver.Config{}).Handler())

	op, err := s.ParseText(context.Background(), "  \n\t")

	assert.Nil(t, op)
	assert.ErrorIs(t, err, input.ErrEmptyContent)
	assert.Equal(t, coordinator.Idle, s.State().Phase)
}

func TestParseTexts_Batch(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, devserver.New(devserver.Config{}).Handler())

	op, err := s.ParseTexts(context.Background(), []string{"a", "b\nc"})
	require.NoError(t, err)
	_, err = wait(t, op)
	require.NoError(t, err)

	groups := s.Results()
	require.Len(t, groups, 2)
	assert.Equal(t, 1, groups[1].InputIndex)
	assert.Len(t, groups[1].Items, 2)

	_, err = s.ParseTexts(context.Background(), []string{"a", " "})
	assert.ErrorIs(t, err, input.ErrEmptyContent)
	_, err = s.ParseTexts(context.Background(), nil)
	assert.ErrorIs(t, err, input.ErrEmptyContent)
}

func TestParseImage_NoFile(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, devserver.New(devserver.Config{}).Handler())

	op, err := s.ParseImage(context.Background(), invoiceapi.Image{Name: "x.png"})

	assert.Nil(t, op)
	assert.ErrorIs(t, err, input.ErrNoFile)
}

func TestParseImage_KeepsExtractedText(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, devserver.New(devserver.Config{}, devserver.WithOCR(ocrEcho)).Handler())

	op, err := s.ParseImage(context.Background(), invoiceapi.Image{Name: "inv.png", ContentType: "image/png", Data: []byte("Salt 2 kg")})
	require.NoError(t, err)
	_, err = wait(t, op)
	require.NoError(t, err)
	assert.Equal(t, "Salt 2 kg", s.ExtractedText())

	// A rejected attempt never starts, so the text survives it.
	op, err = s.ParseImage(context.Background(), invoiceapi.Image{Name: "inv.png", ContentType: "image/png", Data: []byte{}})
	require.ErrorIs(t, err, input.ErrNoFile)
	assert.Nil(t, op)
	assert.Equal(t, "Salt 2 kg", s.ExtractedText())

	op, err = s.ParseText(context.Background(), "Rice")
	require.NoError(t, err)
	_, err = wait(t, op)
	require.NoError(t, err)
	assert.Empty(t, s.ExtractedText())
}

func TestParseImage_FailureSetsError(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, devserver.New(devserver.Config{}).Handler())

	op, err := s.ParseImage(context.Background(), invoiceapi.Image{Name: "inv.png", ContentType: "image/png", Data: []byte("x")})
	require.NoError(t, err)
	outcome, _ := wait(t, op)

	assert.Equal(t, coordinator.Failure, outcome)
	st := s.State()
	assert.Equal(t, coordinator.Failed, st.Phase)
	assert.Equal(t, "No OCR engine is configured.", st.LastError)
	assert.Empty(t, s.ExtractedText())
}

// A slow text parse superseded by an image parse must not overwrite the
// image results when its response finally arrives.
func TestTextParseSupersededByImageParse(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	textArrived := make(chan struct{})
	dev := devserver.New(devserver.Config{}, devserver.WithOCR(ocrEcho)).Handler()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/parse" {
			close(textArrived)
			<-release
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"request_id": "text",
				"results": []model.ResultGroup{{InputIndex: 0, Items: []model.ResultRow{{RawLine: "from text"}}}},
			})
			return
		}
		dev.ServeHTTP(w, r)
	})
	s, _ := newSession(t, h)

	textOp, err := s.ParseText(context.Background(), "Sugar")
	require.NoError(t, err)
	<-textArrived

	imageOp, err := s.ParseImage(context.Background(), invoiceapi.Image{Name: "inv.png", ContentType: "image/png", Data: []byte("from image")})
	require.NoError(t, err)
	outcome, err := wait(t, imageOp)
	require.NoError(t, err)
	assert.Equal(t, coordinator.Success, outcome)

	close(release)
	outcome, _ = wait(t, textOp)
	assert.Equal(t, coordinator.Discarded, outcome)

	groups := s.Results()
	require.Len(t, groups, 1)
	assert.Equal(t, "from image", groups[0].Items[0].RawLine)
	assert.Equal(t, "from image", s.ExtractedText())
	st := s.State()
	assert.Equal(t, coordinator.Succeeded, st.Phase)
	assert.Equal(t, coordinator.KindParseImage, st.Kind)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	s, _ := newSession(t, h)
	t.Cleanup(func() { close(release) })

	op, err := s.ParseText(context.Background(), "Sugar")
	require.NoError(t, err)
	s.Cancel()

	outcome, _ := wait(t, op)
	assert.Equal(t, coordinator.Discarded, outcome)
	assert.Equal(t, coordinator.Idle, s.State().Phase)
	assert.Empty(t, s.Results())
}

func TestEdit(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, devserver.New(devserver.Config{}).Handler())

	op, err := s.ParseText(context.Background(), sugarLine)
	require.NoError(t, err)
	_, err = wait(t, op)
	require.NoError(t, err)

	require.NoError(t, s.Edit(0, 0, model.FieldQuantity, "50"))
	require.NoError(t, s.Edit(0, 0, model.FieldUnit, "kg"))
	require.NoError(t, s.Edit(3, 0, model.FieldUnit, "ignored"))

	row, ok := s.Store().Row(0, 0)
	require.True(t, ok)
	assert.Equal(t, model.Number(50), row.Quantity)
	assert.Equal(t, model.Text("kg"), row.Unit)
	assert.Error(t, s.Edit(0, 0, model.FieldRawLine, "x"))
}

func TestCopyJSON(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, devserver.New(devserver.Config{}).Handler())

	out := s.CopyJSON()
	require.True(t, out.OK)
	assert.JSONEq(t, `{"results":[]}`, out.Value)

	op, err := s.ParseText(context.Background(), sugarLine)
	require.NoError(t, err)
	_, err = wait(t, op)
	require.NoError(t, err)

	out = s.CopyJSON()
	require.True(t, out.OK)
	assert.True(t, strings.HasPrefix(out.Value, "{\n  \"results\": ["))
	assert.Contains(t, out.Value, sugarLine)
}

func TestExportXLSX(t *testing.T) {
	t.Parallel()
	s, fs := newSession(t, devserver.New(devserver.Config{}).Handler())

	op, err := s.ParseText(context.Background(), sugarLine)
	require.NoError(t, err)
	_, err = wait(t, op)
	require.NoError(t, err)

	out := s.ExportXLSX(context.Background())
	require.True(t, out.OK, out.Message)
	assert.Equal(t, "/out/parsed_results.xlsx", out.Value)

	data, err := afero.ReadFile(fs, out.Value)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.False(t, s.Exporting())
}

func TestExportXLSX_ServiceUnavailable(t *testing.T) {
	t.Parallel()

	dev := devserver.New(devserver.Config{}).Handler()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/export/xlsx" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"service unavailable"}`))
			return
		}
		dev.ServeHTTP(w, r)
	})
	s, fs := newSession(t, h)

	op, err := s.ParseText(context.Background(), sugarLine)
	require.NoError(t, err)
	_, err = wait(t, op)
	require.NoError(t, err)
	before := s.Results()
	version := s.Store().Version()

	out := s.ExportXLSX(context.Background())

	assert.False(t, out.OK)
	assert.Equal(t, "service unavailable", out.Message)
	assert.Equal(t, before, s.Results())
	assert.Equal(t, version, s.Store().Version())
	assert.Equal(t, coordinator.Succeeded, s.State().Phase)

	exists, err := afero.Exists(fs, "/out/parsed_results.xlsx")
	require.NoError(t, err)
	assert.False(t, exists)
}
