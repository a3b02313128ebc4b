package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/adi/internal/api"
	"github.com/soaringjerry/adi/internal/services"
)

var (
	takeUser string
	takeYear int
)

var takeCmd = &cobra.Command{
	Use:   "take [survey-id]",
	Short: "Answer a survey interactively on the terminal",
	Long: `Walks through a survey one question at a time. Type the option number
to answer, "b" to go back, or "q" to quit without submitting.`,
	Args: cobra.ExactArgs(1),
	RunE: runTake,
}

func runTake(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sv, err := api.NewCatalogService(store, logger).GetSurvey(ctx, args[0])
	if err != nil {
		return err
	}
	svc := api.NewSurveyService(store).RequireVerification(cfg.Survey.RequireVerification)
	session := services.NewSurveySession(svc, sv, takeUser).ForYear(takeYear)
	return takeSurvey(ctx, session, sv, cmd.InOrStdin(), cmd.OutOrStdout())
}

// takeSurvey drives session from line-oriented input until it is submitted
// or the input ends.
func takeSurvey(ctx context.Context, session *services.SurveySession, sv *services.Survey, in io.Reader, out io.Writer) error {
	if err := session.Load(ctx); err != nil {
		return err
	}
	if session.State() == services.StateIneligible {
		el := session.Eligibility()
		fmt.Fprintf(out, "You have already completed %q for %d.\n", sv.Title, el.Year)
		return nil
	}
	fmt.Fprintf(out, "%s\n%s\n\n", sv.Title, sv.Description)

	scanner := bufio.NewScanner(in)
	for {
		q, idx, ok := session.Question()
		if !ok {
			return services.NewInvalidError("survey has no questions")
		}
		fmt.Fprintf(out, "[%d/%d, %.0f%%] %s\n", idx+1, len(sv.Questions), session.Progress(), q.Prompt)
		for i, opt := range q.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\naborted, nothing submitted")
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "q":
			fmt.Fprintln(out, "aborted, nothing submitted")
			return nil
		case "b":
			session.Previous()
			continue
		}
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(q.Options) {
			fmt.Fprintf(out, "enter a number between 1 and %d\n", len(q.Options))
			continue
		}
		if err := session.Answer(q.ID, q.Options[n-1]); err != nil {
			return err
		}
		if !session.Next() && session.Complete() {
			break
		}
	}

	res, err := session.Submit(ctx)
	if err != nil {
		if session.State() == services.StateIneligible {
			fmt.Fprintln(out, "This survey was already completed for this year.")
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "Thank you! %d answers recorded for %d (submission %s).\n", res.ResponsesCount, res.Year, res.SubmissionID)
	return nil
}
