package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "espalier",
	Short: "Espalier is an action execution engine for dialogue systems",
	Long: `Espalier resolves and executes dialogue actions: response templates,
slot-filling forms and remote custom actions, returning the events that
describe each turn's state changes.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("domain", "domain.yml", "Path to the domain descriptor")
}
