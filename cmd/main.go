package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tournament-system",
	Short: "Bowling tournament backend",
	Long: `Backend for bowling tournaments: squad registration with spot holds,
stage scoring with handicap and carryover, and automatic advancement.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}
