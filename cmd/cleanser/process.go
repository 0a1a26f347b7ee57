package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/ingest"
	"github.com/joseph-ayodele/doc-cleanser/internal/report"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Cleanse documents and write the findings report",
	Long:  "Extracts, redacts and analyzes every input document concurrently and writes one ordered report (xlsx, csv or json, chosen by the --out extension).",
	RunE:  runProcess,
}

var (
	processDir        string
	processFiles      []string
	processClientName string
	processClientLogo string
	processOut        string
	processSkipHidden bool
	processExts       []string
)

func init() {
	processCmd.Flags().StringVarP(&processDir, "dir", "d", "", "Directory to walk for input documents")
	processCmd.Flags().StringSliceVarP(&processFiles, "file", "f", nil, "Input document (repeatable)")
	processCmd.Flags().StringVarP(&processClientName, "client-name", "c", "", "Client name to redact")
	processCmd.Flags().StringVar(&processClientLogo, "client-logo", "", "Path to a reference image of the client logo")
	processCmd.Flags().StringVarP(&processOut, "out", "o", "report.xlsx", "Report path (.xlsx, .csv or .json; - for JSON on stdout)")
	processCmd.Flags().BoolVar(&processSkipHidden, "skip-hidden", true, "Skip hidden files and directories when walking --dir")
	processCmd.Flags().StringSliceVar(&processExts, "ext", nil, "Only accept these extensions when walking --dir")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, _ []string) error {
	if processDir == "" && len(processFiles) == 0 {
		return errors.New("provide --dir or at least one --file")
	}
	format, err := outputFormat(processOut)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	docs, err := loadInputs(ctx, a, processDir, processFiles, processClientName, processClientLogo, processSkipHidden, processExts)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.New("no supported documents found")
	}

	rep := a.runner.Run(ctx, docs)

	w := os.Stdout
	if processOut != "-" {
		f, err := os.Create(processOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := report.NewExporter(a.logger).Write(w, format, rep); err != nil {
		return err
	}
	a.logger.Info("report written", "run_id", rep.RunID, "documents", len(rep.Entries), "out", processOut)
	return nil
}

// loadInputs reads --file entries in flag order, then the --dir walk.
func loadInputs(ctx context.Context, a *app, dir string, files []string, clientName, logoPath string, skipHidden bool, exts []string) ([]entity.Document, error) {
	var logo []byte
	if logoPath != "" {
		b, err := os.ReadFile(logoPath)
		if err != nil {
			return nil, fmt.Errorf("read client logo: %w", err)
		}
		logo = b
	}
	loader := ingest.NewLoader(ingest.Options{
		IncludeExts: exts,
		SkipHidden:  skipHidden,
		ClientName:  clientName,
		ClientLogo:  logo,
	}, a.logger)

	var docs []entity.Document
	for _, p := range files {
		l, err := loader.LoadFile(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
		docs = append(docs, l.Document)
	}
	if dir != "" {
		loaded, results, stats, err := loader.LoadDirectory(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r.Err != "" {
				a.logger.Warn("input skipped", "path", r.Path, "error", r.Err)
			}
		}
		a.logger.Info("inputs loaded", "matched", stats.Matched, "deduplicated", stats.Deduplicated, "failed", stats.Failed)
		for _, l := range loaded {
			docs = append(docs, l.Document)
		}
	}
	return docs, nil
}

func outputFormat(out string) (string, error) {
	if out == "-" {
		return "json", nil
	}
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(out), ".")); ext {
	case "xlsx", "csv", "json":
		return ext, nil
	default:
		return "", fmt.Errorf("unsupported report extension %q (want .xlsx, .csv or .json)", filepath.Ext(out))
	}
}
