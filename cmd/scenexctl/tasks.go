package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/scenex/pkg/config"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks [scenario.yaml]",
	Short: "Print a scenario's task catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	scenario, err := config.Resolve(args[0])
	if err != nil {
		return err
	}

	for _, t := range scenario.TasksView() {
		fmt.Printf("%-20s %-12s %s\n", t.Name, t.Kind, t.Description)
	}
	return nil
}
