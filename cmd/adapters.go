package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List registered provider adapters",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := initRegistry()
		if err != nil {
			return err
		}

		fmt.Printf("%-10s %-20s %-10s %s\n", "COUNTRY", "PROVIDER", "TYPE", "PRIORITY")
		for _, e := range reg.All() {
			fmt.Printf("%-10s %-20s %-10s %d\n", e.CountryISO3, e.ProviderName, e.Type, e.Priority)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
}
