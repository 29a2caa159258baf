package main

import (
	"fmt"
	"os"

	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a domain descriptor for consistency",
	Long:  `Loads the domain YAML and reports undeclared slots, dangling validator or submit actions, and categorical slots without values.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("domain")
		if err := runValidate(path); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(path string) error {
	d, err := domain.LoadFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("Domain %q is valid: %d actions, %d forms, %d slots, %d responses\n",
		d.Name, len(d.ActionNames()), len(d.Forms), len(d.Slots), len(d.Responses))
	return nil
}
