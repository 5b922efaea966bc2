package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/feedback"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Generate a feedback report from recent mistakes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		deps, err := buildTutor(ctx, cfg, st, logger, nil)
		if err != nil {
			return err
		}
		defer deps.Close()

		report, err := deps.Service.Feedback(ctx, "")
		if err != nil {
			logger.Error("feedback failed", zap.Error(err))
			return fmt.Errorf("generate feedback: %w", err)
		}

		fmt.Println(report.Text)
		if report.Empty() {
			return nil
		}

		fmt.Println()
		fmt.Printf("Score: %d/100 (from %d mistakes)\n", report.Score, report.MistakeCount)
		fmt.Println(strings.Repeat("─", 40))
		fmt.Print(feedback.PlainChart(report.Distribution, 30))
		return nil
	},
}
