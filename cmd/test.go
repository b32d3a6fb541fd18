package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abhisek/catengine/internal/cat"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run an adaptive test session from the command line",
}

var testCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a test and open a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cat.TestOptions{}
		opts.Topics, _ = cmd.Flags().GetStringSlice("topic")
		opts.MinQuestions, _ = cmd.Flags().GetInt("min")
		opts.MaxQuestions, _ = cmd.Flags().GetInt("max")
		if cmd.Flags().Changed("standard") {
			s, _ := cmd.Flags().GetFloat64("standard")
			opts.PassingStandard = &s
		}

		return withService(cmd, func(svc *cat.Service, user string) (any, error) {
			return svc.CreateTest(cmd.Context(), user, opts)
		})
	},
}

var testNextCmd = &cobra.Command{
	Use:   "next <session-id>",
	Short: "Show the next question, or the final status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *cat.Service, user string) (any, error) {
			next, err := svc.NextQuestion(cmd.Context(), user, args[0])
			if err != nil || next.Question == nil {
				return next, err
			}
			// Never print the answer key.
			q := *next.Question
			q.Options = append(q.Options[:0:0], q.Options...)
			for i := range q.Options {
				q.Options[i].IsCorrect = false
				q.Options[i].PartialCredit = 0
				q.Options[i].PenaltyValue = 0
			}
			next.Question = &q
			return next, nil
		})
	},
}

var testAnswerCmd = &cobra.Command{
	Use:   "answer <session-id>",
	Short: "Submit an answer to the in-flight question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ans := cat.Answer{}
		ans.QuestionID, _ = cmd.Flags().GetString("question")
		ans.Selected, _ = cmd.Flags().GetStringSlice("select")
		ans.TimeSpentSeconds, _ = cmd.Flags().GetInt("time")
		if ans.QuestionID == "" {
			return fmt.Errorf("--question is required")
		}

		return withService(cmd, func(svc *cat.Service, user string) (any, error) {
			return svc.SubmitAnswer(cmd.Context(), user, args[0], ans)
		})
	},
}

var testAbandonCmd = &cobra.Command{
	Use:   "abandon <session-id>",
	Short: "Abandon an in-progress session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *cat.Service, user string) (any, error) {
			return svc.Abandon(cmd.Context(), user, args[0])
		})
	},
}

var testShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session with its selection log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *cat.Service, user string) (any, error) {
			return svc.Report(cmd.Context(), user, args[0])
		})
	},
}

// withService wires the engine, runs fn as the --user caller and prints
// its result as JSON.
func withService(cmd *cobra.Command, fn func(svc *cat.Service, user string) (any, error)) error {
	user, _ := cmd.Flags().GetString("user")

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	out, err := fn(e.svc, user)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	testCreateCmd.Flags().StringSlice("topic", nil, "Restrict the pool to these topics")
	testCreateCmd.Flags().Int("min", 0, "Minimum questions before an early decision")
	testCreateCmd.Flags().Int("max", 0, "Maximum questions")
	testCreateCmd.Flags().Float64("standard", 0, "Passing standard on the logit scale")

	testAnswerCmd.Flags().String("question", "", "ID of the question being answered")
	testAnswerCmd.Flags().StringSlice("select", nil, "Selected option IDs")
	testAnswerCmd.Flags().Int("time", 0, "Seconds spent on the question")

	for _, c := range []*cobra.Command{testCreateCmd, testNextCmd, testAnswerCmd, testAbandonCmd, testShowCmd} {
		callerFlag(c)
		testCmd.AddCommand(c)
	}
}
