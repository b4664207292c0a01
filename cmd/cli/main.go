package main

import (
	"fmt"
	"os"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/cmd/cli/screen"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "oralscan",
	Long:         `Command line client for the oral lesion screening service https://github.com/bchaitanya92/Oral-Cancer-Prediction`,
	SilenceUsage: true,
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(screen.Group)
	rootCmd.AddCommand(screen.NewAnalyzeCommand(os.LookupEnv))
	rootCmd.AddCommand(screen.NewContentCommand(os.LookupEnv))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
