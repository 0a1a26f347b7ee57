package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var redactCmd = &cobra.Command{
	Use:   "redact",
	Short: "Print the anonymized text of a document",
	Long:  "Runs extraction and redaction only. No language model is called.",
	RunE:  runRedact,
}

var (
	redactFile       string
	redactClientName string
	redactClientLogo string
	redactIncomplete bool
)

func init() {
	redactCmd.Flags().StringVarP(&redactFile, "file", "f", "", "Input document (required)")
	redactCmd.Flags().StringVarP(&redactClientName, "client-name", "c", "", "Client name to redact")
	redactCmd.Flags().StringVar(&redactClientLogo, "client-logo", "", "Path to a reference image of the client logo")
	redactCmd.Flags().BoolVar(&redactIncomplete, "include-incomplete", false, "Also print blocks whose redaction did not complete")
	_ = redactCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(redactCmd)
}

func runRedact(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	docs, err := loadInputs(ctx, a, "", []string{redactFile}, redactClientName, redactClientLogo, false, nil)
	if err != nil {
		return err
	}
	if len(docs) != 1 {
		return errors.New("no document loaded")
	}
	anon, err := a.processor.Redact(ctx, docs[0])
	if err != nil {
		return err
	}
	for _, w := range anon.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	if n := anon.IncompleteBlocks(); n > 0 && !redactIncomplete {
		fmt.Fprintf(os.Stderr, "warning: %d block(s) withheld because redaction did not complete\n", n)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), anon.Text(redactIncomplete))
	return err
}
