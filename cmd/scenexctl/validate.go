package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/scenex/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [scenario.yaml]",
	Short: "Load, merge, and validate a scenario document",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]

	doc, err := config.LoadMergedDocument(path)
	if err != nil {
		return err
	}

	if errs := config.ValidateDocument(doc); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("semantic validation failed with %d error(s)", len(errs))
	}

	scenario, err := config.BuildScenario(doc)
	if err != nil {
		return err
	}

	fmt.Printf("✓ %s is valid (%d steps, %d tasks)\n", path, len(scenario.Steps), len(scenario.Tasks))
	return nil
}
