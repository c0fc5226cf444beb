package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var processorsCmd = &cobra.Command{
	Use:   "processors",
	Short: "List the registered processors",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(formatBold("Registered processors"))
		for _, name := range processors.List() {
			entry, err := processors.Get(name)
			if err != nil {
				continue
			}
			desc, _ := entry.Meta["description"].(string)
			if desc == "" {
				fmt.Printf("  %-24s (%s)\n", name, entry.Kind)
				continue
			}
			fmt.Printf("  %-24s (%s)  %s\n", name, entry.Kind, desc)
		}
	},
}
