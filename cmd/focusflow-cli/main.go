package main

import (
	"fmt"
	"log"
	"os"

	"focusflow/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfgPath    string
	socketPath string
	dbPath     string
	jsonOutput bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "focusflow-cli",
	Short: "CLI tool to interact with the focusflow daemon",
	Long: `A command-line interface for the focusflow daemon: run study/break sessions,
manage tasks and subtasks, generate plans and print reports. Commands are sent
over the daemon's Unix socket; reports read the database directly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		if socketPath == "" {
			socketPath = cfg.SocketPath
		}
		if dbPath == "" {
			dbPath = cfg.DatabasePath
		}
		return nil
	},
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("focusflow-cli: ")

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Daemon socket path (default: from config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the focusflow database file (default: from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(pingCmd, statusCmd)
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newTaskCmd(), newSubtaskCmd(), newPlanCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
