package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/scenex/pkg/config"
)

var varsCmd = &cobra.Command{
	Use:   "vars [scenario.yaml]",
	Short: "Print a scenario's required variable declarations",
	Args:  cobra.ExactArgs(1),
	RunE:  runVars,
}

func runVars(cmd *cobra.Command, args []string) error {
	scenario, err := config.Resolve(args[0])
	if err != nil {
		return err
	}

	for _, v := range scenario.Variables.RequiredView() {
		ro := ""
		if v.ReadOnly {
			ro = " (read-only)"
		}
		value := v.Value
		if value == "" {
			value = "<unset>"
		}
		fmt.Printf("%-20s %-10s %-20s = %s%s\n", v.Name, v.Kind, v.Label, value, ro)
	}
	return nil
}
