// Package cli defines the command-line surface of claude-autoapprove.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/alehatsman/claude-autoapprove/internal/config"
	"github.com/alehatsman/claude-autoapprove/internal/logging"
	"github.com/alehatsman/claude-autoapprove/internal/wrapper"
)

var (
	cfgFile        string
	flagDelay      int
	flagNoApprove  bool
	flagNoStatus   bool
	flagDebug      bool
	flagInitConfig bool
	flagClaudePath string

	// Build information - set via ldflags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// childExitCode carries the wrapped process's exit status out of RunE.
var childExitCode int

var rootCmd = &cobra.Command{
	Use:   "claude-autoapprove [flags] [claude-args...]",
	Short: "Wrap Claude Code and auto-approve its permission prompts",
	Long: `claude-autoapprove runs Claude Code inside a pseudo-terminal, forwarding
your keystrokes and its output untouched while watching for permission
prompts. A detected prompt is approved automatically after a cancellable
countdown.

During a countdown:
  Enter      approve immediately
  any key    cancel (you handle the prompt yourself)
  Ctrl+A     toggle auto-approve on/off

Arguments after the flags are passed to Claude Code verbatim.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	// Unknown flags belong to the child, not to us.
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.Flags().IntVar(&flagDelay, "delay", 1, "seconds to wait before auto-approving")
	rootCmd.Flags().BoolVar(&flagNoApprove, "no-auto-approve", false, "start with auto-approve disabled (toggle with Ctrl+A)")
	rootCmd.Flags().BoolVar(&flagNoStatus, "no-status-bar", false, "disable the status bar")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "write a debug log under the log directory")
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.Flags().BoolVar(&flagInitConfig, "init-config", false, "write the default config file and exit")
	rootCmd.Flags().StringVar(&flagClaudePath, "claude-path", "", "path to the Claude Code executable")

	rootCmd.AddCommand(versionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		cfg = config.Default()
	}

	if cmd.Flags().Changed("delay") {
		cfg.AutoApproveDelay = flagDelay
	}
	if flagNoApprove {
		cfg.AutoApproveEnabled = false
	}
	if flagNoStatus {
		cfg.ShowStatusBar = false
	}
	if flagDebug {
		cfg.Debug = true
	}
	if flagClaudePath != "" {
		cfg.ClaudePath = flagClaudePath
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if flagInitConfig {
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		return nil
	}

	closeLog, err := logging.Setup(cfg.Debug, cfg.LogDir, cfg.LogRetentionDays)
	if err != nil {
		return err
	}
	defer closeLog()

	// Only watch a config file that actually exists.
	watchPath := ""
	if _, err := os.Stat(path); err == nil {
		watchPath = path
	}

	code, err := wrapper.New(cfg, watchPath, args).Run()
	childExitCode = code
	return err
}

// Execute runs the root command and returns the process exit code,
// propagating the child's exit status.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if childExitCode != 0 {
			return childExitCode
		}
		return 1
	}
	return childExitCode
}
