// Package main is the entry point for the game core server
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rpg-core",
	Short: "RPG game core server",
	Long:  `rpg-core runs the chat-game backend: combat, dungeons, crafting, factions, parties, and the player economy.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
