package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/service"
	"github.com/noah-isme/school-intake-api/pkg/export"
)

var (
	previewOutput string
	previewPDF    bool
)

// previewCmd renders the summary document locally. Nothing is created remotely.
var previewCmd = &cobra.Command{
	Use:   "preview <payload.json|payload.yaml|->",
	Short: "Render the partnership summary for a payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().StringVarP(&previewOutput, "output", "o", "", "Write to file instead of stdout")
	previewCmd.Flags().BoolVar(&previewPDF, "pdf", false, "Produce PDF instead of HTML")
}

func runPreview(cmd *cobra.Command, args []string) error {
	sub, err := readPayload(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	validator := service.NewSubmissionService(service.SubmissionDeps{}, service.ColumnMap{}, nil, log)
	if err := validator.Validate(sub); err != nil {
		return err
	}

	converter, err := export.NewConverter(export.ConverterOptions{
		Engine:      cfg.Documents.Engine,
		ChromiumBin: cfg.Documents.ChromiumBin,
	})
	if err != nil {
		return err
	}
	docs, err := service.NewDocumentService(converter, nil, service.DocumentConfig{
		BrandName:    cfg.Documents.BrandName,
		LogoURL:      cfg.Documents.LogoURL,
		FetchTimeout: cfg.Documents.FetchTimeout,
	}, log)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	document, pdf, err := docs.Preview(ctx, sub, previewPDF)
	if err != nil {
		return err
	}
	out := []byte(document)
	if previewPDF {
		out = pdf
	}

	if previewOutput == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(previewOutput, out, 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	log.Info("preview written", zap.String("path", previewOutput), zap.Int("bytes", len(out)))
	return nil
}
