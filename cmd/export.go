package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export previously copied results as an xlsx spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("client"); err != nil {
			return err
		}

		resultsPath, _ := cmd.Flags().GetString("results")
		editsPath, _ := cmd.Flags().GetString("edits")
		return runExport(ctx, afero.NewOsFs(), os.Stderr, resultsPath, editsPath)
	},
}

func runExport(ctx context.Context, fs afero.Fs, out io.Writer, resultsPath, editsPath string) error {
	data, err := afero.ReadFile(fs, resultsPath)
	if err != nil {
		return eris.Wrapf(err, "export: read %s", resultsPath)
	}
	groups, err := export.Decode(data)
	if err != nil {
		return err
	}

	sess := newSession(cfg, fs)
	sess.Store().ReplaceAll(groups)

	if err := applyEdits(fs, sess, editsPath); err != nil {
		return err
	}
	return exportXLSX(ctx, sess, out)
}

func init() {
	exportCmd.Flags().String("results", "", "path to a {\"results\": [...]} JSON document")
	exportCmd.Flags().String("edits", "", "YAML edit script applied before export")
	_ = exportCmd.MarkFlagRequired("results")
	rootCmd.AddCommand(exportCmd)
}
