package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"learnapp/internal/models"
	contextutils "learnapp/internal/utils"

	"github.com/spf13/cobra"
)

type generateOptions struct {
	text         string
	file         string
	fromImages   []string
	subject      string
	difficulty   string
	questionType string
	count        int
	noSave       bool
	showAnswers  bool
}

// generateCmd returns the generate command
func generateCmd(app *App) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate practice questions from study material",
		Long: `Generate practice questions from text given inline, read from a file, or
recognized from images. Subject and difficulty default to the saved settings.
The questions are saved as a session unless --no-save is given or auto save is off.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			text, err := app.sourceText(cmd, opts)
			if err != nil {
				return err
			}

			settings := app.Store.GetSettings(ctx)
			req := models.GenerationRequest{
				Text:          text,
				Subject:       models.Subject(opts.subject),
				Difficulty:    models.Difficulty(opts.difficulty),
				QuestionType:  models.QuestionType(opts.questionType),
				QuestionCount: opts.count,
			}
			if req.Subject == "" {
				req.Subject = settings.Subject
			}
			if req.Difficulty == "" {
				req.Difficulty = settings.Difficulty
			}

			result, err := app.Client.Generate(ctx, req)
			if err != nil {
				app.Logger.Error(ctx, "Question generation failed", err, map[string]interface{}{"subject": req.Subject})
				return err
			}

			fmt.Fprintf(app.Out, "%s / %s / %s (%d questions)\n\n",
				subjectLabel(result), result.Difficulty, result.QuestionType.DisplayName(), len(result.Questions))
			printQuestions(app.Out, result.Questions, opts.showAnswers)

			if opts.noSave || !settings.AutoSave {
				return nil
			}
			session, ok := app.Store.SaveSession(ctx, models.Session{
				ExtractedText: text,
				Subject:       result.DetectedSubject,
				Difficulty:    result.Difficulty,
				QuestionType:  result.QuestionType,
				Questions:     result.Questions,
			})
			if !ok {
				return contextutils.WrapError(contextutils.ErrStorageFailure, "failed to save session")
			}
			fmt.Fprintf(app.Out, "Saved session %d. Run `learnctl quiz %d` to answer it.\n", session.ID, session.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.text, "text", "", "source text")
	flags.StringVar(&opts.file, "file", "", "read the source text from a file (- for stdin)")
	flags.StringSliceVar(&opts.fromImages, "from-images", nil, "recognize the source text from these images")
	flags.StringVar(&opts.subject, "subject", "", "subject id or auto")
	flags.StringVar(&opts.difficulty, "difficulty", "", "basic, standard, advanced or challenge")
	flags.StringVar(&opts.questionType, "type", "", "multiple_choice, short_answer or calculation")
	flags.IntVar(&opts.count, "count", 0, "number of questions (server default when 0)")
	flags.BoolVar(&opts.noSave, "no-save", false, "do not save the questions as a session")
	flags.BoolVar(&opts.showAnswers, "show-answers", false, "print the answers and explanations")
	cmd.MarkFlagsMutuallyExclusive("text", "file", "from-images")
	cmd.MarkFlagsOneRequired("text", "file", "from-images")

	return cmd
}

func (a *App) sourceText(cmd *cobra.Command, opts *generateOptions) (string, error) {
	switch {
	case opts.text != "":
		return opts.text, nil

	case opts.file == "-":
		data, err := io.ReadAll(a.In)
		if err != nil {
			return "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read stdin: %v", err)
		}
		return string(data), nil

	case opts.file != "":
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read %s: %v", opts.file, err)
		}
		return string(data), nil

	case len(opts.fromImages) > 0:
		text, err := a.recognize(cmd.Context(), opts.fromImages, false)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(a.ErrOut, "Recognized %d characters from %d images\n", contextutils.TextLength(text), len(opts.fromImages))
		return text, nil
	}
	return "", contextutils.ErrorWithContextf("one of --text, --file or --from-images is required")
}

func subjectLabel(result *models.GenerationResult) string {
	if result.SubjectName != "" {
		return result.SubjectName
	}
	return string(result.DetectedSubject)
}

// printQuestions writes numbered questions, with their options and optionally
// the answer and explanation.
func printQuestions(w io.Writer, questions []models.Question, withAnswers bool) {
	for i := range questions {
		q := &questions[i]
		fmt.Fprintf(w, "Q%d. %s\n", i+1, q.QuestionText)
		for j, opt := range q.Options {
			fmt.Fprintf(w, "   %d) %s\n", j+1, opt)
		}
		if withAnswers {
			fmt.Fprintf(w, "   Answer: %s\n", q.CorrectAnswerText())
			if q.Explanation != "" {
				fmt.Fprintf(w, "   %s\n", strings.TrimSpace(q.Explanation))
			}
		}
		fmt.Fprintln(w)
	}
}
