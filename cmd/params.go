package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/store"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Inspect and initialize IRT item parameters",
}

var paramsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default parameters for every question that lacks them",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topic")

		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		ctx := cmd.Context()
		ids, err := e.store.Questions().PoolCandidates(ctx, bank.PoolFilter{Topics: topics})
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		before, err := e.store.Params().GetParams(ctx, ids)
		if err != nil {
			return fmt.Errorf("load params: %w", err)
		}
		if _, err := e.params.Ensure(ctx, ids); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %d of %d questions.\n", len(ids)-len(before), len(ids))
		return nil
	},
}

var paramsShowCmd = &cobra.Command{
	Use:   "show [question-id...]",
	Short: "Print item parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		ids := args
		if len(ids) == 0 {
			ids, err = st.Questions().PoolCandidates(ctx, bank.PoolFilter{})
			if err != nil {
				return fmt.Errorf("list questions: %w", err)
			}
		}
		params, err := st.Params().GetParams(ctx, ids)
		if err != nil {
			return fmt.Errorf("load params: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-24s  %6s  %6s  %6s  %-7s  %s\n", "Question", "a", "b", "c", "Source", "Updated")
		fmt.Fprintln(out, strings.Repeat("─", 76))
		for _, id := range ids {
			p, ok := params[id]
			if !ok {
				fmt.Fprintf(out, "%-24s  %6s  %6s  %6s  %-7s\n", truncate(id, 24), "-", "-", "-", "none")
				continue
			}
			fmt.Fprintf(out, "%-24s  %6.3f  %6.3f  %6.3f  %-7s  %s\n",
				truncate(id, 24), p.Discrimination, p.Difficulty, p.Guessing, p.Source,
				p.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var paramsSetCmd = &cobra.Command{
	Use:   "set <question-id>",
	Short: "Overwrite an item's parameters with calibrated values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _ := cmd.Flags().GetFloat64("a")
		b, _ := cmd.Flags().GetFloat64("b")
		c, _ := cmd.Flags().GetFloat64("c")
		if a <= 0 {
			return fmt.Errorf("discrimination must be positive, got %g", a)
		}
		if c < 0 || c >= 1 {
			return fmt.Errorf("guessing must be in [0, 1), got %g", c)
		}

		st, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		if _, err := st.Questions().GetQuestion(ctx, args[0]); err != nil {
			return fmt.Errorf("question %s: %w", args[0], err)
		}
		err = st.Params().Upsert(ctx, store.ItemParams{
			QuestionID:     args[0],
			Discrimination: a,
			Difficulty:     b,
			Guessing:       c,
			Source:         store.ParamSourceManual,
			UpdatedAt:      time.Now(),
		})
		if err != nil {
			return fmt.Errorf("save params: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: a=%.3f b=%.3f c=%.3f\n", args[0], a, b, c)
		return nil
	},
}

func init() {
	paramsInitCmd.Flags().StringSlice("topic", nil, "Only questions in these topics")

	paramsSetCmd.Flags().Float64("a", 1.0, "Discrimination")
	paramsSetCmd.Flags().Float64("b", 0.0, "Difficulty (logits)")
	paramsSetCmd.Flags().Float64("c", 0.2, "Pseudo-guessing")

	paramsCmd.AddCommand(paramsInitCmd)
	paramsCmd.AddCommand(paramsShowCmd)
	paramsCmd.AddCommand(paramsSetCmd)
}
