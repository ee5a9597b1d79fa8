package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/habitkeeper/core/cmd/api/commands"
)

// @title HabitKeeper API
// @version 1.0
// @description Habit tracking backed by a single JSON document

// @contact.name HabitKeeper
// @contact.url https://github.com/habitkeeper/core

// @license.name MIT

// @host localhost:3000
// @BasePath /api

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "habitkeeper",
		Short:         "HabitKeeper API Server",
		Long:          `HabitKeeper tracks daily habits, completion streaks and statistics in a single JSON document.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./habitkeeper.{yaml,json,toml})")

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand(&configFile))
	rootCmd.AddCommand(commands.NewInitCommand(&configFile))
	rootCmd.AddCommand(commands.NewStatsCommand(&configFile))
	rootCmd.AddCommand(commands.NewBackupCommand(&configFile))
	rootCmd.AddCommand(commands.NewExportCommand(&configFile))
	rootCmd.AddCommand(commands.NewImportCommand(&configFile))
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
