package devserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/ocr"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/webp": true,
}

type parseRequest struct {
	Content  *string   `json:"content"`
	Contents *[]string `json:"contents"`
}

type parseResponse struct {
	RequestID string              `json:"request_id"`
	Results   []model.ResultGroup `json:"results"`
}

type parseImageResponse struct {
	RequestID     string              `json:"request_id"`
	Results       []model.ResultGroup `json:"results"`
	ExtractedText string              `json:"extracted_text"`
	Filename      string              `json:"filename"`
}

type exportRequest struct {
	Results *[]model.ResultGroup `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid JSON body.")
		return
	}
	if (req.Content == nil) == (req.Contents == nil) {
		writeDetail(w, http.StatusUnprocessableEntity, "Provide either 'content' or 'contents'.")
		return
	}

	var inputs []string
	if req.Content != nil {
		inputs = []string{*req.Content}
	} else {
		inputs = *req.Contents
	}

	for i, text := range inputs {
		if len([]rune(text)) > s.cfg.MaxCharsPerItem {
			writeDetail(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Input at index %d exceeds max character limit (%d).", i, s.cfg.MaxCharsPerItem))
			return
		}
	}

	results := make([]model.ResultGroup, len(inputs))
	for i, text := range inputs {
		results[i] = model.ResultGroup{InputIndex: i, Items: echoLines(text)}
	}
	writeJSON(w, http.StatusOK, parseResponse{RequestID: requestIDFrom(r.Context()), Results: results})
}

func (s *Server) handleParseImage(w http.ResponseWriter, r *http.Request) {
	if s.ocr == nil {
		writeDetail(w, http.StatusServiceUnavailable, "No OCR engine is configured.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Field required: file.")
		return
	}
	defer file.Close() //nolint:errcheck

	if header.Filename == "" {
		writeDetail(w, http.StatusBadRequest, "Missing file name.")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		writeDetail(w, http.StatusUnsupportedMediaType, "Unsupported file type. Allowed: PNG, JPG, JPEG, WEBP.")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Could not read uploaded file.")
		return
	}
	if len(data) == 0 {
		writeDetail(w, http.StatusBadRequest, "Uploaded file is empty.")
		return
	}

	text, err := s.ocr.ExtractText(r.Context(), data, contentType)
	switch {
	case errors.Is(err, ocr.ErrInput):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		if !errors.Is(err, ocr.ErrUnavailable) {
			zap.L().Error("devserver: ocr failed", zap.Error(err))
		}
		writeDetail(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, parseImageResponse{
		RequestID:     requestIDFrom(r.Context()),
		Results:       []model.ResultGroup{{InputIndex: 0, Items: echoLines(text)}},
		ExtractedText: text,
		Filename:      header.Filename,
	})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Results == nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Field required: results.")
		return
	}

	var buf bytes.Buffer
	if err := writeWorkbook(&buf, *req.Results); err != nil {
		zap.L().Error("devserver: build workbook", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Could not build spreadsheet.")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=parsed_results.xlsx")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		zap.L().Warn("devserver: write workbook", zap.Error(err))
	}
}

// echoLines yields one row per non-blank line, carrying only the line.
func echoLines(text string) []model.ResultRow {
	rows := []model.ResultRow{}
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rows = append(rows, model.ResultRow{RawLine: line})
	}
	return rows
}
