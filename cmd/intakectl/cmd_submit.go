package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/app"
)

var showStages bool

// submitCmd replays a payload through the full pipeline.
var submitCmd = &cobra.Command{
	Use:   "submit <payload.json|payload.yaml|->",
	Short: "Run a submission payload through the intake pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().BoolVar(&showStages, "stages", false, "Print every stage outcome")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	sub, err := readPayload(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer application.Close() //nolint:errcheck

	result, err := application.Submissions.Process(ctx, sub)
	if result != nil {
		out := struct {
			Result interface{} `json:"result"`
			Stages interface{} `json:"stages,omitempty"`
		}{Result: result}
		if showStages {
			out.Stages = result.Stages
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(out); encErr != nil {
			return encErr
		}
		log.Info("submission replayed",
			zap.String("run_id", result.RunID),
			zap.Int("stage_failures", result.Stages.Failures()),
		)
	}
	if err != nil {
		return fmt.Errorf("submission failed: %w", err)
	}
	return nil
}
