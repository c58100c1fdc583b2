package commands

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"learnapp/internal/models"
	contextutils "learnapp/internal/utils"

	"github.com/spf13/cobra"
)

// quizCmd returns the quiz command
func quizCmd(app *App) *cobra.Command {
	var answers string

	cmd := &cobra.Command{
		Use:   "quiz [session-id]",
		Short: "Answer the questions of a saved session",
		Long: `Answer a saved session's questions and record the result in the history.
Without a session id the most recent session is used.

Choice questions take the option number; free response questions take the answer
text, compared ignoring case and surrounding spaces. --answers supplies all answers
as a comma separated list instead of prompting.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			session, err := app.pickSession(ctx, args)
			if err != nil {
				return err
			}
			if len(session.Questions) == 0 {
				return contextutils.ErrorWithContextf("session %d has no questions", session.ID)
			}

			next, err := app.answerSource(cmd.Flags().Changed("answers"), answers, len(session.Questions))
			if err != nil {
				return err
			}

			settings := app.Store.GetSettings(ctx)
			start := app.Now()
			records := make([]models.AnswerRecord, 0, len(session.Questions))
			correct := 0
			for i := range session.Questions {
				q := &session.Questions[i]
				fmt.Fprintf(app.Out, "Q%d/%d. %s\n", i+1, len(session.Questions), q.QuestionText)
				for j, opt := range q.Options {
					fmt.Fprintf(app.Out, "   %d) %s\n", j+1, opt)
				}
				fmt.Fprint(app.Out, "> ")

				raw, err := next()
				if err != nil {
					return err
				}
				given, isCorrect := judge(q, raw)
				if isCorrect {
					correct++
					fmt.Fprintln(app.Out, "Correct!")
				} else {
					fmt.Fprintf(app.Out, "Incorrect. Answer: %s\n", q.CorrectAnswerText())
				}
				if settings.ShowExplanations && q.Explanation != "" {
					fmt.Fprintf(app.Out, "   %s\n", strings.TrimSpace(q.Explanation))
				}
				fmt.Fprintln(app.Out)

				records = append(records, models.AnswerRecord{QuestionID: q.ID, UserAnswer: given, IsCorrect: isCorrect})
			}

			result := models.QuizResult{
				SessionID:      session.ID,
				Subject:        session.Subject,
				Difficulty:     session.Difficulty,
				Score:          correct,
				TotalQuestions: len(session.Questions),
				CorrectAnswers: correct,
				TimeSpent:      int64(app.Now().Sub(start).Seconds()),
				Answers:        records,
			}
			if !app.Store.SaveQuizResults(ctx, result) {
				return contextutils.WrapError(contextutils.ErrStorageFailure, "failed to save quiz result")
			}

			fmt.Fprintf(app.Out, "Score: %d/%d (%.0f%%)\n", correct, len(session.Questions),
				100*float64(correct)/float64(len(session.Questions)))
			app.Logger.Info(ctx, "Quiz completed", map[string]interface{}{
				"session_id": session.ID,
				"correct":    correct,
				"total":      len(session.Questions),
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&answers, "answers", "", "comma separated answers, e.g. 2,4,光合成")

	return cmd
}

// pickSession loads the session named by args, or the newest one.
func (a *App) pickSession(ctx context.Context, args []string) (models.Session, error) {
	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return models.Session{}, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid session id %q", args[0])
		}
		session, ok := a.Store.GetSession(ctx, id)
		if !ok {
			return models.Session{}, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "session %d not found", id)
		}
		return session, nil
	}

	sessions := a.Store.GetSessions(ctx)
	if len(sessions) == 0 {
		return models.Session{}, contextutils.WrapError(contextutils.ErrRecordNotFound, "no saved sessions; run `learnctl generate` first")
	}
	return sessions[0], nil
}

// answerSource returns a function yielding one answer per call, either from the
// --answers list or from the terminal.
func (a *App) answerSource(fromFlag bool, list string, count int) (func() (string, error), error) {
	if fromFlag {
		parts := strings.Split(list, ",")
		if len(parts) != count {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "--answers has %d entries, the session has %d questions", len(parts), count)
		}
		i := 0
		return func() (string, error) {
			answer := strings.TrimSpace(parts[i])
			i++
			fmt.Fprintln(a.Out, answer)
			return answer, nil
		}, nil
	}

	if !a.IsTerminal() {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "quiz needs an interactive terminal; pass --answers instead")
	}
	scanner := bufio.NewScanner(a.In)
	return func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read answer: %v", err)
			}
			return "", contextutils.ErrorWithContextf("quiz aborted")
		}
		return strings.TrimSpace(scanner.Text()), nil
	}, nil
}

// judge scores one answer. For choice questions a 1-based option number or the
// option text selects an option; free response compares the model answer
// ignoring case and surrounding spaces. It returns the answer as recorded.
func judge(q *models.Question, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if q.IsChoice() {
		want, _ := q.CorrectAnswer.Index()
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= len(q.Options) {
			return q.Options[n-1], n-1 == want
		}
		for i, opt := range q.Options {
			if strings.EqualFold(strings.TrimSpace(opt), raw) {
				return opt, i == want
			}
		}
		return raw, false
	}
	return raw, raw != "" && strings.EqualFold(raw, strings.TrimSpace(q.CorrectAnswerText()))
}
