package cmd

import (
	"log"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "teamboard",
	Short: "Project and task collaboration server",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Values from the files win over the process environment.
		if err := godotenv.Overload(envFiles...); err != nil {
			slog.Warn("Unable to load env files, skipping", slog.Any("files", envFiles), slog.Any("error", err))
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err.Error())
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Env files to load before running")
}
