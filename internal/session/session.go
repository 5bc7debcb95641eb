// Package session wires the service client, operation coordinator, result
// store and export pipeline into the surface a front end drives.
package session

import (
	"context"
	"sync"

	"github.com/sells-group/invoice-cli/internal/coordinator"
	"github.com/sells-group/invoice-cli/internal/export"
	"github.com/sells-group/invoice-cli/internal/input"
	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/results"
	"github.com/sells-group/invoice-cli/pkg/invoiceapi"
)

// Outcome reports an export action. Value holds the copied text or the
// saved file path on success; Message is human readable on failure.
type Outcome struct {
	OK      bool
	Message string
	Value   string
}

// Session is one user's working state.
type Session struct {
	client   invoiceapi.Client
	coord    *coordinator.Coordinator
	store    *results.Store
	exporter *export.Pipeline

	mu            sync.RWMutex
	extractedText string
	requestID     string
}

// New creates a Session. Exported spreadsheets go to saver.
func New(client invoiceapi.Client, saver export.Saver, opts ...export.Option) *Session {
	s := &Session{
		client: client,
		coord:  coordinator.New(),
		store:  results.New(),
	}
	s.exporter = export.NewPipeline(client, s.store, saver, opts...)

	// OCR text belongs to the attempt that produced it; every new attempt
	// starts without it. Watchers run while the coordinator orders starts
	// against commits, so a late commit cannot slip in after the clear.
	s.coord.Watch(func(st coordinator.State) {
		if st.Phase == coordinator.Running {
			s.mu.Lock()
			s.extractedText = ""
			s.mu.Unlock()
		}
	})
	return s
}

// Coordinator exposes the operation state.
func (s *Session) Coordinator() *coordinator.Coordinator { return s.coord }

// Store exposes the result set.
func (s *Session) Store() *results.Store { return s.store }

// State returns the coordinator state.
func (s *Session) State() coordinator.State { return s.coord.State() }

// Results returns a copy of the current result set.
func (s *Session) Results() []model.ResultGroup { return s.store.Snapshot() }

// ExtractedText is the OCR text of the last successful image parse.
func (s *Session) ExtractedText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extractedText
}

// RequestID is the service request id of the last successful parse.
func (s *Session) RequestID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestID
}

// ParseText starts a text parse, superseding any running parse. Blank
// content is rejected with input.ErrEmptyContent before anything starts.
func (s *Session) ParseText(ctx context.Context, content string) (*coordinator.Operation, error) {
	if err := input.CheckContent(content); err != nil {
		return nil, err
	}
	return coordinator.Start(s.coord, ctx, coordinator.KindParseText,
		func(ctx context.Context) (*invoiceapi.ParseResponse, error) {
			return s.client.ParseText(ctx, content)
		},
		s.applyParse,
	), nil
}

// ParseTexts starts a batch text parse. Every content must be non-blank.
func (s *Session) ParseTexts(ctx context.Context, contents []string) (*coordinator.Operation, error) {
	if len(contents) == 0 {
		return nil, input.ErrEmptyContent
	}
	for _, c := range contents {
		if err := input.CheckContent(c); err != nil {
			return nil, err
		}
	}
	batch := append([]string(nil), contents...)
	return coordinator.Start(s.coord, ctx, coordinator.KindParseText,
		func(ctx context.Context) (*invoiceapi.ParseResponse, error) {
			return s.client.ParseTexts(ctx, batch)
		},
		s.applyParse,
	), nil
}

// ParseImage starts an image parse, superseding any running parse. An image
// without data is rejected with input.ErrNoFile.
func (s *Session) ParseImage(ctx context.Context, img invoiceapi.Image) (*coordinator.Operation, error) {
	if len(img.Data) == 0 {
		return nil, input.ErrNoFile
	}
	return coordinator.Start(s.coord, ctx, coordinator.KindParseImage,
		func(ctx context.Context) (*invoiceapi.ParseImageResponse, error) {
			return s.client.ParseImage(ctx, img)
		},
		func(resp *invoiceapi.ParseImageResponse) {
			s.store.ReplaceAll(resp.Results)
			s.mu.Lock()
			s.extractedText = resp.ExtractedText
			s.requestID = resp.RequestID
			s.mu.Unlock()
		},
	), nil
}

func (s *Session) applyParse(resp *invoiceapi.ParseResponse) {
	s.store.ReplaceAll(resp.Results)
	s.mu.Lock()
	s.requestID = resp.RequestID
	s.mu.Unlock()
}

// Cancel aborts the running parse.
func (s *Session) Cancel() { s.coord.Cancel() }

// Edit applies one user edit to the result set.
func (s *Session) Edit(groupIdx, rowIdx int, field model.Field, raw string) error {
	return s.store.SetField(groupIdx, rowIdx, field, raw)
}

// CopyJSON serializes the result set for the clipboard.
func (s *Session) CopyJSON() Outcome {
	text, err := s.exporter.CopyText()
	if err != nil {
		return Outcome{Message: invoiceapi.Message(err)}
	}
	return Outcome{OK: true, Value: text}
}

// ExportXLSX requests and saves a spreadsheet of the result set. Failures
// leave results and coordinator state untouched.
func (s *Session) ExportXLSX(ctx context.Context) Outcome {
	path, err := s.exporter.Export(ctx)
	if err != nil {
		if invoiceapi.IsCancelled(err) {
			return Outcome{Message: "Export cancelled"}
		}
		return Outcome{Message: invoiceapi.Message(err)}
	}
	return Outcome{OK: true, Value: path}
}

// Exporting reports whether a spreadsheet export is running.
func (s *Session) Exporting() bool { return s.exporter.Busy() }
