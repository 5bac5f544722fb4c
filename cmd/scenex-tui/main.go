// Command scenex-tui is the desktop front-end for scenex: it drives the
// same JSON-RPC engine surface `scenexctl serve` exposes, but in-process
// over a pair of pipes instead of a subprocess boundary.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ormasoftchile/scenex/pkg/tui"
)

func main() {
	var requiredFlag string
	flag.StringVar(&requiredFlag, "set", "", "comma-separated name=value pairs for required variables")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: scenex-tui [--set name=value,...] <scenario.yaml>")
		os.Exit(1)
	}

	cfg := tui.Config{
		ScenarioPath: flag.Arg(0),
		Required:     parseRequired(requiredFlag),
	}

	if err := tui.Run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseRequired(s string) map[string]string {
	out := make(map[string]string)
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[name] = value
	}
	return out
}
