// Command fundvault simulates contribution vaults against the reference
// ledger and registry.
//
// Usage:
//
//	fundvault run scenario.yaml        execute a scripted scenario
//	fundvault derive --creator ... --mint ...
//	fundvault address alice bob        print participant addresses
//	fundvault keygen                   print a persistent engine key
//	fundvault inspect <vault-address>  print a persisted vault record
//
// All commands accept --config with a YAML settings file.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Config holds the I/O streams a command runs against.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns the process streams.
func DefaultConfig() Config {
	return Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
}

func run(args []string, cfg Config) error {
	root := newRootCmd(cfg)
	if len(args) > 1 {
		root.SetArgs(args[1:])
	} else {
		root.SetArgs([]string{})
	}
	return root.Execute()
}

func newRootCmd(cfg Config) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "fundvault",
		Short:         "Confidential contribution vault simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "settings file (YAML)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "badger directory for vault records (overrides settings)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug|info|warn|error (overrides settings)")

	root.AddCommand(
		newRunCmd(cfg, &flags),
		newDeriveCmd(cfg, &flags),
		newAddressCmd(cfg),
		newKeygenCmd(cfg),
		newInspectCmd(cfg, &flags),
	)
	return root
}

// settings loads the settings file and applies flag overrides.
func (f *globalFlags) settings() (*Settings, error) {
	s := DefaultSettings()
	if f.configPath != "" {
		var err error
		if s, err = LoadSettings(f.configPath); err != nil {
			return nil, err
		}
	}
	if f.dataDir != "" {
		s.DataDir = f.dataDir
	}
	if f.logLevel != "" {
		s.LogLevel = f.logLevel
	}
	return s, s.Validate()
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
