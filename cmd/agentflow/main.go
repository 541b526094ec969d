package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ignatij/agentflow/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "agentflow",
	Short: "Multi-agent workflow orchestrator",
}

func main() {
	// Load .env if present; flags and env vars still take precedence
	_ = godotenv.Load()

	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
