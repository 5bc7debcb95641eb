package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the parsing service is up",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}
		if err := newClient(cfg).Health(cmd.Context()); err != nil {
			return eris.Wrapf(err, "health %s", cfg.API.BaseURL)
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s: ok\n", cfg.API.BaseURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
