package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ligustah/photofetch/internal/config"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitResolverError    = 3
	ExitStorageError     = 4
	ExitPartialFailure   = 5
	ExitInterrupted      = 6
	ExitValidationFailed = 7
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// app holds what every command shares.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool
}

func (a *app) logf(format string, args ...any) {
	fmt.Fprintf(a.stderr, "[photofetch] "+format+"\n", args...)
}

// loadConfig layers defaults, the YAML file and the environment. Flags are
// merged by the caller.
func (a *app) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.LoadFromFile(a.configPath)
		if err != nil {
			return config.Config{}, exitWith(ExitInvalidArgs, "%w", err)
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, exitWith(ExitInvalidArgs, "%w", err)
	}
	return cfg, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "photofetch",
		Short:         "Download images into a folder with a provenance ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log every fetch attempt")

	root.AddCommand(newFetchCmd(a))
	root.AddCommand(newLedgerCmd(a))
	root.AddCommand(newVerifyCmd(a))
	return root
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code != ExitPartialFailure && ee.code != ExitInterrupted && ee.code != ExitValidationFailed {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}

	// Flag and argument errors come straight from cobra.
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitInvalidArgs
}
