// Command flowengine is the executable entry point: it wires the
// engine, executor registry, and transport surfaces (§6) into a running
// process, the way the teacher's cmd/warren wires its manager/worker
// components behind a cobra CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var logger zerolog.Logger

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flowengine",
	Short: "Declarative BPMN-style workflow execution engine",
	Long: `flowengine parses declarative YAML workflow definitions and drives
them to completion, exposing execution, observation, and human-task
surfaces over HTTP, WebSocket, and webhook.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(executeFileCmd)
	rootCmd.AddCommand(validateCmd)
}

func initLogging() {
	levelStr, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if jsonOutput {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	logger = zerolog.New(w).With().Timestamp().Logger()
}
