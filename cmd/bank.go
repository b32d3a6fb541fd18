package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/simulate"
)

var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Manage the question bank",
}

var bankImportCmd = &cobra.Command{
	Use:   "import [file.json]",
	Short: "Import questions from a JSON file",
	Long: "Import upserts questions by ID and replaces their options. " +
		"With --synthetic N, N generated items are imported instead of a file.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		synthetic, _ := cmd.Flags().GetInt("synthetic")
		topics, _ := cmd.Flags().GetStringSlice("topic")

		var (
			qs  []bank.Question
			err error
		)
		switch {
		case synthetic > 0:
			qs = simulate.SyntheticBank(synthetic, topics)
		case len(args) == 1:
			qs, err = bank.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("load bank: %w", err)
			}
		default:
			return fmt.Errorf("a bank file or --synthetic is required")
		}

		st, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Questions().ImportQuestions(cmd.Context(), qs); err != nil {
			return fmt.Errorf("import questions: %w", err)
		}
		total, err := st.Questions().CountQuestions(cmd.Context())
		if err != nil {
			return fmt.Errorf("count questions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d questions (%d in bank).\n", len(qs), total)
		return nil
	},
}

func init() {
	bankImportCmd.Flags().Int("synthetic", 0, "Generate N synthetic questions instead of reading a file")
	bankImportCmd.Flags().StringSlice("topic", nil, "Topics for synthetic questions")

	bankCmd.AddCommand(bankImportCmd)
}
