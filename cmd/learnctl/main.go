// Package main provides the learnctl command line client for the learning support API.
package main

import (
	"os"

	"learnapp/cmd/learnctl/commands"
)

func main() {
	app := commands.NewApp()
	rootCmd := commands.NewRootCommand(app)

	if err := rootCmd.Execute(); err != nil {
		// PersistentPostRunE does not run after a failed command.
		_ = app.Close()
		os.Exit(1)
	}
}
