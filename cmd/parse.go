package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-cli/internal/coordinator"
	"github.com/sells-group/invoice-cli/internal/input"
)

type parseOptions struct {
	Texts   []string
	File    string
	Image   string
	Charset string
	Edits   string
	JSON    bool
	XLSX    bool
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse invoice text or an image into line items",
	Long:  "Parses one source (--text, --file or --image), applies an optional edit script, then prints the rows, the copy JSON, or saves an xlsx export.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("client"); err != nil {
			return err
		}

		var opts parseOptions
		opts.Texts, _ = cmd.Flags().GetStringArray("text")
		opts.File, _ = cmd.Flags().GetString("file")
		opts.Image, _ = cmd.Flags().GetString("image")
		opts.Charset, _ = cmd.Flags().GetString("charset")
		opts.Edits, _ = cmd.Flags().GetString("edits")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.XLSX, _ = cmd.Flags().GetBool("xlsx")

		return runParse(ctx, afero.NewOsFs(), os.Stdin, os.Stdout, os.Stderr, opts)
	},
}

func runParse(ctx context.Context, fs afero.Fs, stdin io.Reader, stdout, stderr io.Writer, opts parseOptions) error {
	sources := 0
	for _, set := range []bool{len(opts.Texts) > 0, opts.File != "", opts.Image != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return eris.New("parse: exactly one of --text, --file or --image is required")
	}

	sess := newSession(cfg, fs)

	var (
		op  *coordinator.Operation
		err error
	)
	switch {
	case opts.Image != "":
		img, rerr := input.ReadImage(fs, opts.Image)
		if rerr != nil {
			return rerr
		}
		op, err = sess.ParseImage(ctx, img)
	case opts.File != "":
		content, rerr := input.ReadTextFile(fs, opts.File, opts.Charset)
		if rerr != nil {
			return rerr
		}
		op, err = sess.ParseText(ctx, content)
	case len(opts.Texts) == 1 && opts.Texts[0] == "-":
		content, rerr := input.ReadText(stdin, opts.Charset)
		if rerr != nil {
			return rerr
		}
		op, err = sess.ParseText(ctx, content)
	case len(opts.Texts) == 1:
		op, err = sess.ParseText(ctx, opts.Texts[0])
	default:
		op, err = sess.ParseTexts(ctx, opts.Texts)
	}
	if err != nil {
		return eris.Wrap(err, "parse")
	}
	if err := awaitParse(ctx, sess, op); err != nil {
		return err
	}

	if err := applyEdits(fs, sess, opts.Edits); err != nil {
		return err
	}

	if text := sess.ExtractedText(); text != "" && !opts.JSON {
		_, _ = fmt.Fprintf(stderr, "Extracted text:\n%s\n\n", text)
	}

	if opts.JSON {
		res := sess.CopyJSON()
		if !res.OK {
			return eris.Errorf("copy failed: %s", res.Message)
		}
		_, _ = fmt.Fprintln(stdout, res.Value)
	} else {
		groups := sess.Results()
		if len(groups) == 0 {
			_, _ = fmt.Fprintln(stderr, "No line items found.")
		} else {
			formatRows(stdout, groups)
		}
	}

	if opts.XLSX {
		return exportXLSX(ctx, sess, stderr)
	}
	return nil
}

func init() {
	parseCmd.Flags().StringArray("text", nil, "invoice text to parse; repeat for a batch, \"-\" reads stdin")
	parseCmd.Flags().String("file", "", "path to an invoice text file")
	parseCmd.Flags().String("image", "", "path to an invoice image (png, jpeg, webp)")
	parseCmd.Flags().String("charset", "", "text encoding of --file or stdin (default utf-8)")
	parseCmd.Flags().String("edits", "", "YAML edit script applied to the parsed rows")
	parseCmd.Flags().Bool("json", false, "print the results as JSON")
	parseCmd.Flags().Bool("xlsx", false, "save the results as an xlsx spreadsheet in export.dir")
	rootCmd.AddCommand(parseCmd)
}
