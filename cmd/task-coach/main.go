// Command task-coach runs the gamified task coach: the HTTP dashboard with its
// scheduler, one-shot jobs, and reply processing from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "task-coach",
		Short:         "Task coach - a gamified Eisenhower task tracker",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is normal outside local development.
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(replyCmd())
	rootCmd.AddCommand(seedShopCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(buyCmd())
	rootCmd.AddCommand(personalityCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
