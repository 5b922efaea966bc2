package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/parla/internal/feedback"
)

var mistakesCmd = &cobra.Command{
	Use:   "mistakes",
	Short: "List recently logged mistakes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		repo := st.MistakeRepo()
		records, err := repo.Recent(ctx, limit)
		if err != nil {
			return fmt.Errorf("query mistakes: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No mistakes logged yet.")
			return nil
		}

		fmt.Printf("%-5s  %-16s  %-12s  %-12s  %s\n", "ID", "Timestamp", "Language", "Type", "Mistake → Correction")
		fmt.Println(strings.Repeat("─", 100))
		for _, r := range records {
			fmt.Printf("%-5d  %-16s  %-12s  %-12s  %s → %s\n",
				r.ID,
				r.Timestamp.Local().Format("2006-01-02 15:04"),
				truncate(r.TargetLanguage, 12),
				r.ErrorType,
				r.ErrorSentence,
				r.CorrectedSentence,
			)
		}

		dist, err := repo.CountByType(ctx)
		if err != nil {
			return fmt.Errorf("count mistakes: %w", err)
		}
		fmt.Println()
		fmt.Println("All-time by type")
		fmt.Println(strings.Repeat("─", 40))
		fmt.Print(feedback.PlainChart(dist, 30))
		return nil
	},
}

func init() {
	mistakesCmd.Flags().IntP("limit", "n", 10, "Number of mistakes to show")
}
