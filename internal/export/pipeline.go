// Package export turns the current result set into a clipboard-ready JSON
// document or a saved spreadsheet.
package export

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/model"
)

// DefaultFileName is the name exported spreadsheets are saved under.
const DefaultFileName = "parsed_results.xlsx"

// ErrExportInProgress is returned when a binary export is already running.
var ErrExportInProgress = eris.New("export: an export is already in progress")

// Spreadsheets builds spreadsheet documents remotely.
type Spreadsheets interface {
	ExportSpreadsheet(ctx context.Context, results []model.ResultGroup) ([]byte, error)
}

// Source provides the result set to export.
type Source interface {
	Snapshot() []model.ResultGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFs sets the filesystem transient resources are created on.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) {
		p.fs = fs
	}
}

// WithFileName overrides DefaultFileName.
func WithFileName(name string) Option {
	return func(p *Pipeline) {
		if name != "" {
			p.fileName = name
		}
	}
}

// Pipeline exports snapshots of a Source.
type Pipeline struct {
	client   Spreadsheets
	source   Source
	saver    Saver
	fs       afero.Fs
	fileName string
	busy     atomic.Bool
}

// NewPipeline creates a Pipeline.
func NewPipeline(client Spreadsheets, source Source, saver Saver, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:   client,
		source:   source,
		saver:    saver,
		fs:       afero.NewOsFs(),
		fileName: DefaultFileName,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CopyText serializes the current result set for the clipboard.
func (p *Pipeline) CopyText() (string, error) {
	data, err := Serialize(p.source.Snapshot())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Busy reports whether a binary export is running.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// Export requests a spreadsheet for the current result set, stages it as a
// transient resource, saves it, and releases the resource on every path.
// Service errors are returned unchanged so their message can be shown. No
// resource is created when the request fails.
func (p *Pipeline) Export(ctx context.Context) (string, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return "", ErrExportInProgress
	}
	defer p.busy.Store(false)

	snap := p.source.Snapshot()
	data, err := p.client.ExportSpreadsheet(ctx, snap)
	if err != nil {
		return "", err
	}

	res, err := acquire(p.fs, data)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := res.Release(); err != nil {
			zap.L().Warn("export: release failed", zap.String("path", res.Path()), zap.Error(err))
		}
	}()

	dest, err := p.saver.Save(ctx, res, p.fileName)
	if err != nil {
		return "", eris.Wrap(err, "export: save spreadsheet")
	}

	zap.L().Info("export: spreadsheet saved",
		zap.String("path", dest),
		zap.Int64("bytes", res.Size()),
		zap.Int("groups", len(snap)),
		zap.Int("rows", model.RowCount(snap)),
	)
	return dest, nil
}
