package main

import (
	"fmt"
	"io"
	"os"

	"deplostatus/internal/table"

	"github.com/spf13/cobra"
)

var renderFile string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Parse a deployment status comment and print it re-rendered",
	Long: `Parse the body of an existing deployment status comment and print the table as
the bot would write it. Exits non-zero when the table is malformed.

Use --file - to read from stdin.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderFile, "file", "f", "-", "Comment body to read (- for stdin)")
}

func runRender(cmd *cobra.Command, args []string) error {
	var body []byte
	var err error
	if renderFile == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(renderFile)
	}
	if err != nil {
		return fmt.Errorf("failed to read comment: %w", err)
	}

	rows, err := table.Parse(string(body))
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), table.Render(rows))
	return nil
}
