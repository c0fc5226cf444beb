package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/chuang453/batch-process/pkg/config"
	"github.com/chuang453/batch-process/pkg/engine"
	"github.com/chuang453/batch-process/pkg/recorders"
	"github.com/chuang453/batch-process/pkg/rules"
	"github.com/chuang453/batch-process/pkg/store"
)

var runPolicy string

var runCmd = &cobra.Command{
	Use:   "run <root>",
	Short: "Process a directory tree against a rule configuration",
	Long: `Walk the tree rooted at <root> and execute the processors matched by
the rules in the configuration file. Press Ctrl-C to stop after the
invocation in flight.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, settings, err := loadRunConfig()
		if err != nil {
			return err
		}

		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		eng := engine.New(cfg, processors, engine.Options{
			Policy:   policyFor(settings),
			Progress: progressSink(),
			Cancel:   engine.FromContext(sigCtx),
		})

		ctx, err := eng.Run(args[0])
		if err != nil {
			return err
		}
		if sigCtx.Err() != nil {
			pterm.Warning.Println("Run cancelled")
		}

		printSummary(ctx)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "rule configuration file (YAML/JSON/TOML)")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "rule combination policy: keep-all or top-tier")
	_ = runCmd.MarkFlagRequired("config")
}

// loadRunConfig reads the rule file and the layered settings, and wires
// the history directory override into the builtin recorder.
func loadRunConfig() (*rules.Config, *config.Settings, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, nil, err
	}
	if settings.HistoryDir != "" {
		recorders.DefaultDir = settings.HistoryDir
	}
	return cfg, settings, nil
}

func policyFor(settings *config.Settings) rules.Policy {
	if runPolicy != "" {
		return rules.Policy(runPolicy)
	}
	return rules.Policy(settings.Policy)
}

// progressSink returns a progress bar sink on a terminal, nil otherwise
func progressSink() engine.ProgressFunc {
	if !isTerminal() {
		return nil
	}

	var bar *pterm.ProgressbarPrinter
	return func(ev engine.ProgressEvent) {
		if bar == nil {
			bar, _ = pterm.DefaultProgressbar.
				WithTotal(ev.TotalSteps).
				WithTitle("processing").
				Start()
		}
		bar.UpdateTitle(ev.Status)
		bar.Increment()
	}
}

func printSummary(ctx *store.Context) {
	succeeded, failed := 0, 0
	for _, r := range ctx.Results {
		if r.Error == "" {
			succeeded++
		} else {
			failed++
		}
	}

	fmt.Printf("\n%s\n", formatBold("Run summary"))
	fmt.Printf("  invocations: %d\n", len(ctx.Results))
	fmt.Printf("  succeeded:   %d\n", succeeded)
	fmt.Printf("  failed:      %d\n", failed)

	if failed > 0 {
		fmt.Printf("\n%s\n", formatBold("Failures"))
		for _, r := range ctx.Results {
			if r.Error != "" {
				fmt.Printf("  %s %s → %s (%s): %s\n", r.Kind, r.Path, r.Processor, r.Phase, r.Error)
			}
		}
	}
}
