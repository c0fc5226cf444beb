package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chuang453/batch-process/pkg/engine"
)

var planCmd = &cobra.Command{
	Use:   "plan <root>",
	Short: "Show what a run would execute, without executing anything",
	Long: `Resolve the tree rooted at <root> against the configuration and print
every invocation a run would perform, in execution order, as YAML.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, settings, err := loadRunConfig()
		if err != nil {
			return err
		}

		eng := engine.New(cfg, processors, engine.Options{
			Policy: policyFor(settings),
		})
		plan, err := eng.Plan(args[0])
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(plan)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	planCmd.Flags().StringVarP(&configPath, "config", "c", "", "rule configuration file (YAML/JSON/TOML)")
	_ = planCmd.MarkFlagRequired("config")
}
