package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"learnapp/internal/history"
	contextutils "learnapp/internal/utils"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// HistoryCommands returns the history management commands
func HistoryCommands(app *App) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Local study history commands",
		Long: `Inspect and maintain the local study history.

Available commands:
  list     - List saved sessions
  show     - Show one session's questions
  delete   - Delete a session
  stats    - Show learning statistics
  export   - Export the whole history as JSON
  import   - Import an exported history
  clear    - Delete the whole history
  usage    - Show storage usage
  cleanup  - Drop sessions and results past the retention window
  rebuild  - Recompute the learning statistics from stored results`,
	}

	historyCmd.AddCommand(historyListCmd(app))
	historyCmd.AddCommand(historyShowCmd(app))
	historyCmd.AddCommand(historyDeleteCmd(app))
	historyCmd.AddCommand(historyStatsCmd(app))
	historyCmd.AddCommand(historyExportCmd(app))
	historyCmd.AddCommand(historyImportCmd(app))
	historyCmd.AddCommand(historyClearCmd(app))
	historyCmd.AddCommand(historyUsageCmd(app))
	historyCmd.AddCommand(historyCleanupCmd(app))
	historyCmd.AddCommand(historyRebuildCmd(app))

	return historyCmd
}

func parseSessionID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid session id %q", arg)
	}
	return id, nil
}

func percent(fraction float64) string {
	return fmt.Sprintf("%.0f%%", fraction*100)
}

func historyListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions := app.Store.GetSessions(cmd.Context())
			if len(sessions) == 0 {
				fmt.Fprintln(app.Out, "No saved sessions.")
				return nil
			}

			tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSUBJECT\tDIFFICULTY\tQUESTIONS")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n",
					s.ID, humanize.RelTime(s.Timestamp, app.Now(), "ago", "from now"), s.Subject, s.Difficulty, len(s.Questions))
			}
			return tw.Flush()
		},
	}
}

func historyShowCmd(app *App) *cobra.Command {
	var showAnswers bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's source text and questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			session, ok := app.Store.GetSession(cmd.Context(), id)
			if !ok {
				return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "session %d not found", id)
			}

			fmt.Fprintf(app.Out, "Session %d  %s  %s/%s\n\n", session.ID,
				session.Timestamp.Local().Format("2006-01-02 15:04"), session.Subject, session.Difficulty)
			if session.ExtractedText != "" {
				fmt.Fprintf(app.Out, "%s\n\n", strings.TrimSpace(session.ExtractedText))
			}
			printQuestions(app.Out, session.Questions, showAnswers)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showAnswers, "answers", false, "print the answers and explanations")

	return cmd
}

func historyDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			if !app.Store.DeleteSession(cmd.Context(), id) {
				return contextutils.WrapError(contextutils.ErrStorageFailure, "failed to delete session")
			}
			fmt.Fprintf(app.Out, "Deleted session %d\n", id)
			return nil
		},
	}
}

func historyStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show learning statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats := app.Store.GetLearningStats(cmd.Context())
			o := stats.Overview

			fmt.Fprintf(app.Out, "Quizzes: %d  Questions: %d  Accuracy: %s  Avg time/question: %.1fs\n",
				o.TotalQuizzes, o.TotalQuestions, percent(o.Accuracy), o.AverageTimePerQuestion)

			tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			if len(stats.Subjects) > 0 {
				fmt.Fprintln(tw, "\nSUBJECT\tACCURACY\tQUESTIONS\tQUIZZES")
				for _, s := range stats.Subjects {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.Subject, percent(s.Accuracy), s.QuestionCount, s.QuizCount)
				}
			}
			if len(stats.Difficulties) > 0 {
				fmt.Fprintln(tw, "\nDIFFICULTY\tACCURACY\tQUESTIONS\tQUIZZES")
				for _, d := range stats.Difficulties {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", d.Difficulty, percent(d.Accuracy), d.QuestionCount, d.QuizCount)
				}
			}
			if len(stats.RecentActivity) > 0 {
				fmt.Fprintln(tw, "\nDATE\tACCURACY\tQUESTIONS")
				for _, a := range stats.RecentActivity {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", a.Date, percent(a.Accuracy), a.QuestionsCount)
				}
			}
			return tw.Flush()
		},
	}
}

func historyExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export the history as JSON to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := app.Store.ExportAllData(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 || args[0] == "-" {
				fmt.Fprintln(app.Out, doc)
				return nil
			}
			if err := os.WriteFile(args[0], []byte(doc+"\n"), 0o600); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrStorageFailure, "failed to write %s: %v", args[0], err)
			}
			fmt.Fprintf(app.Out, "Exported history to %s (%s)\n", args[0], humanize.IBytes(uint64(len(doc))))
			return nil
		},
	}
}

func historyImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import an exported history; absent sections are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(app.In)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read %s: %v", args[0], err)
			}
			if !app.Store.ImportData(cmd.Context(), string(data)) {
				return contextutils.WrapError(contextutils.ErrInvalidFormat, "import failed; is the file an exported history?")
			}
			fmt.Fprintln(app.Out, "History imported")
			return nil
		},
	}
}

func historyClearCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all sessions, results, statistics and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				if !app.IsTerminal() {
					return contextutils.WrapError(contextutils.ErrInvalidInput, "refusing to clear the history without --yes")
				}
				fmt.Fprint(app.Out, "Delete the whole study history? [y/N] ")
				reply, _ := bufio.NewReader(app.In).ReadString('\n')
				if r := strings.ToLower(strings.TrimSpace(reply)); r != "y" && r != "yes" {
					fmt.Fprintln(app.Out, "Cancelled")
					return nil
				}
			}
			if !app.Store.ClearAllData(cmd.Context()) {
				return contextutils.WrapError(contextutils.ErrStorageFailure, "failed to clear history")
			}
			fmt.Fprintln(app.Out, "History cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func historyUsageCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show bytes used per history key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			usage, err := app.Store.GetStorageUsage(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE")
			for _, name := range history.KeyNames() {
				fmt.Fprintf(tw, "%s\t%s\n", name, usage.Breakdown[name].SizeFormatted)
			}
			fmt.Fprintf(tw, "TOTAL\t%s\n", usage.Total.SizeFormatted)
			if quota := app.Config.History.QuotaBytes; quota > 0 {
				fmt.Fprintf(tw, "QUOTA\t%s\n", humanize.IBytes(uint64(quota)))
			}
			return tw.Flush()
		},
	}
}

func historyCleanupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Drop sessions and results older than history.retention_days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			before := len(app.Store.GetSessions(ctx)) + len(app.Store.GetQuizResults(ctx))
			if !app.Store.CleanupOldData(ctx) {
				return contextutils.WrapError(contextutils.ErrStorageFailure, "cleanup failed")
			}
			after := len(app.Store.GetSessions(ctx)) + len(app.Store.GetQuizResults(ctx))
			fmt.Fprintf(app.Out, "Removed %d old entries\n", before-after)
			return nil
		},
	}
}

func historyRebuildCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute the learning statistics from the stored results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, ok := app.Store.RebuildLearningData(cmd.Context())
			if !ok {
				return contextutils.WrapError(contextutils.ErrStorageFailure, "failed to save rebuilt statistics")
			}
			fmt.Fprintf(app.Out, "Rebuilt statistics from %d quizzes (%d questions)\n", data.TotalQuizzes, data.TotalQuestions)
			return nil
		},
	}
}
