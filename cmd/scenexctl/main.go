package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/scenex/pkg/ipc"
	"github.com/ormasoftchile/scenex/pkg/scenexerr"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(scenexerr.ExitCode(err))
	}
}

// loadDotEnv reads a .env file from the working directory and sets any
// variables not already present in the environment. Lines are KEY=VALUE;
// comments (#) and blanks are skipped.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "scenexctl",
	Short: "SSH scenario automation engine",
	Long:  "scenexctl resolves declarative scenario documents, interpolates variables, and executes their steps over SSH/SFTP against a single remote host.",
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(varsCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the scenexctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scenexctl %s (%s)\n", version, commit)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON-RPC server over stdio for a desktop UI front-end",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ipc.New().Run()
	},
}
