package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chuang453/batch-process/pkg/config"
)

var templateCmd = &cobra.Command{
	Use:   "template [path]",
	Short: "Write a starter configuration file",
	Long: `Write an annotated starter configuration to path (default config.yaml).
The format follows the extension: .yaml, .json or .toml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteTemplate(path); err != nil {
			return err
		}
		fmt.Printf("Template written to %s\n", path)
		return nil
	},
}
