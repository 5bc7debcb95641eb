package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"

	"github.com/sells-group/invoice-cli/internal/config"
	"github.com/sells-group/invoice-cli/internal/coordinator"
	"github.com/sells-group/invoice-cli/internal/edits"
	"github.com/sells-group/invoice-cli/internal/export"
	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/session"
	"github.com/sells-group/invoice-cli/pkg/invoiceapi"
)

// newClient builds the service client from config.
func newClient(c *config.Config) invoiceapi.Client {
	opts := []invoiceapi.Option{invoiceapi.WithBaseURL(c.API.BaseURL)}
	if c.API.TimeoutSecs > 0 {
		opts = append(opts, invoiceapi.WithTimeout(time.Duration(c.API.TimeoutSecs)*time.Second))
	}
	if c.API.RequestsPerMinute > 0 {
		opts = append(opts, invoiceapi.WithRateLimit(c.API.RequestsPerMinute))
	}
	return invoiceapi.NewClient(opts...)
}

// newSession wires a session that saves exports under export.dir on fs.
func newSession(c *config.Config, fs afero.Fs) *session.Session {
	saver := export.DirSaver{Fs: fs, Dir: c.Export.Dir}
	return session.New(newClient(c), saver,
		export.WithFs(fs),
		export.WithFileName(c.Export.FileName),
	)
}

// awaitParse blocks until op resolves. An interrupted ctx cancels the parse.
func awaitParse(ctx context.Context, sess *session.Session, op *coordinator.Operation) error {
	select {
	case <-op.Done():
	case <-ctx.Done():
		sess.Cancel()
		<-op.Done()
		return eris.New("parse: interrupted")
	}

	outcome, err := op.Wait()
	switch outcome {
	case coordinator.Success:
		return nil
	case coordinator.Failure:
		return eris.Errorf("parse failed: %s", sess.State().LastError)
	default:
		if err != nil {
			return eris.Wrap(err, "parse: discarded")
		}
		return eris.New("parse: discarded")
	}
}

// applyEdits loads an edit script, if any, and applies it to the session's results.
func applyEdits(fs afero.Fs, sess *session.Session, path string) error {
	if path == "" {
		return nil
	}
	es, err := edits.LoadFile(fs, path)
	if err != nil {
		return err
	}
	return edits.Apply(sess.Store(), es)
}

// exportXLSX runs the binary export and reports where the file went.
func exportXLSX(ctx context.Context, sess *session.Session, out io.Writer) error {
	res := sess.ExportXLSX(ctx)
	if !res.OK {
		return eris.Errorf("export failed: %s", res.Message)
	}
	_, _ = fmt.Fprintf(out, "Saved %s\n", res.Value)
	return nil
}

func formatRows(out io.Writer, groups []model.ResultGroup) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INPUT\tROW\tPRODUCT\tQTY\tUNIT\tPRICE\tTYPE\tUNIT_PRICE\tCONF\tRAW_LINE")
	_, _ = fmt.Fprintln(w, "-----\t---\t-------\t---\t----\t-----\t----\t----------\t----\t--------")

	for _, g := range groups {
		for i, r := range g.Items {
			raw := r.RawLine
			if runes := []rune(raw); len(runes) > 40 {
				raw = string(runes[:37]) + "..."
			}
			_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				g.InputIndex,
				i,
				r.ProductName,
				r.Quantity,
				r.Unit,
				r.Price,
				r.PriceType,
				r.DerivedUnitPrice,
				r.Confidence,
				raw,
			)
		}
	}
	_ = w.Flush()
}
