package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/scenex/pkg/config"
)

var stepsCmd = &cobra.Command{
	Use:   "steps [scenario.yaml]",
	Short: "Print a scenario's execution order",
	Args:  cobra.ExactArgs(1),
	RunE:  runSteps,
}

func runSteps(cmd *cobra.Command, args []string) error {
	scenario, err := config.Resolve(args[0])
	if err != nil {
		return err
	}

	for i, s := range scenario.StepsView() {
		line := fmt.Sprintf("%d. %s", i+1, s.Task)
		if len(s.OnFail) > 0 {
			line += fmt.Sprintf("  (on_fail: %s)", strings.Join(s.OnFail, ", "))
		}
		fmt.Println(line)
	}
	return nil
}
