package commands

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"learnapp/internal/models"
	contextutils "learnapp/internal/utils"

	"github.com/spf13/cobra"
)

// settingKeys lists the keys accepted by settings set, in display order.
var settingKeys = []string{"subject", "difficulty", "theme", "autoSave", "showExplanations"}

// SettingsCommands returns the settings commands
func SettingsCommands(app *App) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change saved preferences",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printSettings(app, app.Store.GetSettings(cmd.Context()))
			return nil
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set <key=value>...",
		Short: "Change settings, e.g. subject=math showExplanations=false",
		Long: `Change one or more settings. Keys:
  subject           auto, math, japanese, science, social or english
  difficulty        basic, standard, advanced or challenge
  theme             light or dark
  autoSave          true or false
  showExplanations  true or false`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings := app.Store.GetSettings(ctx)
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "expected key=value, got %q", arg)
				}
				if err := applySetting(&settings, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
					return err
				}
			}
			if !app.Store.SaveSettings(ctx, settings) {
				return contextutils.WrapError(contextutils.ErrStorageFailure, "failed to save settings")
			}
			printSettings(app, settings)
			return nil
		},
	})

	return settingsCmd
}

func applySetting(s *models.Settings, key, value string) error {
	switch strings.ToLower(key) {
	case "subject":
		subject := models.Subject(value)
		if !subject.Valid() {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown subject %q", value)
		}
		s.Subject = subject
	case "difficulty":
		difficulty := models.Difficulty(value)
		if !difficulty.Valid() {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown difficulty %q", value)
		}
		s.Difficulty = difficulty
	case "theme":
		if value != "light" && value != "dark" {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "theme must be light or dark, got %q", value)
		}
		s.Theme = value
	case "autosave", "auto-save":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "autoSave must be true or false, got %q", value)
		}
		s.AutoSave = b
	case "showexplanations", "show-explanations":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "showExplanations must be true or false, got %q", value)
		}
		s.ShowExplanations = b
	default:
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown setting %q (known: %s)", key, strings.Join(settingKeys, ", "))
	}
	return nil
}

func printSettings(app *App, s models.Settings) {
	tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "subject\t%s\n", s.Subject)
	fmt.Fprintf(tw, "difficulty\t%s\n", s.Difficulty)
	fmt.Fprintf(tw, "theme\t%s\n", s.Theme)
	fmt.Fprintf(tw, "autoSave\t%t\n", s.AutoSave)
	fmt.Fprintf(tw, "showExplanations\t%t\n", s.ShowExplanations)
	_ = tw.Flush()
}
