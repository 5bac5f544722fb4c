package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/scenex/pkg/config"
	"github.com/ormasoftchile/scenex/pkg/engine"
	"github.com/ormasoftchile/scenex/pkg/transport"
	"github.com/ormasoftchile/scenex/pkg/vars"
)

var (
	runDryRun   bool
	runPassword string
)

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Resolve variables and execute a scenario's steps over SSH/SFTP",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "validate and resolve variables without opening a transport or running any step")
	runCmd.Flags().StringVar(&runPassword, "password", "", "SSH password (overrides credentials.password; the SSH agent is used when both are empty)")
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]

	scenario, err := config.Resolve(path)
	if err != nil {
		return err
	}

	if err := promptForRequired(scenario.Variables); err != nil {
		return err
	}

	bus := engine.NewBus(64)
	go logEvents(bus)

	if runDryRun {
		eng := engine.New(scenario, nil, bus)
		runErr := eng.Run(cmd.Context(), engine.RunOptions{DryRun: true})
		bus.Close()
		if runErr != nil {
			return runErr
		}
		fmt.Println("✓ dry run: variables resolved, paths valid, no transport opened")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	password := scenario.Credentials.Password
	if runPassword != "" {
		password = runPassword
	}

	t, err := transport.Dial(ctx, transport.DialOptions{
		Host:     scenario.Server.Host,
		Port:     scenario.Server.Port,
		Username: scenario.Credentials.Username,
		Password: password,
	})
	if err != nil {
		bus.Close()
		return err
	}
	defer t.Close()

	eng := engine.New(scenario, t, bus)
	runErr := eng.Run(ctx, engine.RunOptions{})
	bus.Close()
	return runErr
}

// promptForRequired fills in any required variable still missing a value by
// reading it from the terminal with a chzyer/readline-driven prompt loop.
func promptForRequired(store *vars.Store) error {
	missing := make([]vars.View, 0)
	for _, v := range store.RequiredView() {
		if v.Value == "" && !v.ReadOnly {
			missing = append(missing, v)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	rl, err := readline.New("")
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for _, v := range missing {
		label := v.Label
		if label == "" {
			label = v.Name
		}
		rl.SetPrompt(fmt.Sprintf("%s: ", label))
		line, err := rl.Readline()
		if err != nil {
			return fmt.Errorf("read value for %q: %w", v.Name, err)
		}
		if err := store.SetRequired(v.Name, line); err != nil {
			return err
		}
	}
	return nil
}

// logEvents renders Bus events to stdout as they arrive, in plain
// fmt.Printf style — there is no structured logger in this stack.
func logEvents(bus *engine.Bus) {
	for e := range bus.Events() {
		switch e.Kind {
		case engine.EventStepState:
			logStepEvent("", e)
		case engine.EventOnFailStepState:
			logStepEvent("on_fail: ", e)
		case engine.EventExecutionStatus:
			fmt.Printf("== %s\n", e.Execution)
		case engine.EventLogMessage:
			fmt.Println(e.Message)
		}
	}
}

func logStepEvent(prefix string, e engine.Event) {
	switch e.Phase {
	case engine.StepStarted:
		fmt.Printf("%s[%d/%d] -> %s\n", prefix, e.StepIndex+1, e.StepsTotal, e.StepName)
	case engine.StepProgress:
		switch {
		case e.Command != "":
			fmt.Printf("%s   %s: %s\n", prefix, e.StepName, e.Output)
		case e.Progress != nil:
			fmt.Printf("%s   %s: %d/%d bytes\n", prefix, e.StepName, e.Progress.BytesSent, e.Progress.TotalBytes)
		case e.Detail != "":
			fmt.Printf("%s   %s: %s\n", prefix, e.StepName, e.Detail)
		}
	case engine.StepCompleted:
		fmt.Printf("%s   %s: ok\n", prefix, e.StepName)
	case engine.StepFailed:
		fmt.Printf("%s   %s: failed: %s\n", prefix, e.StepName, e.Detail)
	}
}
