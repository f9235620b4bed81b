// Package cli defines the root Cobra command and global flag/context setup.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gantry-build/gantry/internal/cli/commands"
	"github.com/gantry-build/gantry/internal/core/config"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/core/plugin"
	"github.com/gantry-build/gantry/internal/core/state"
	"github.com/gantry-build/gantry/pkg/pprint"
)

// globalFlags holds values bound to persistent global flags.
var globalFlags struct {
	configFile string
	agent      string
	debug      bool
	jsonOutput bool
	dryRun     bool
}

// rootCmd is the base command for gantry.
var rootCmd = &cobra.Command{
	Use:           "gantry",
	Short:         "Gantry — Build Orchestration from the Terminal",
	Long:          ``, // overridden by SetHelpTemplate below
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare `gantry` — help func already prints banner
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}
		return initRuntime(cmd)
	},
}

// Execute runs the CLI. Called by main().
func Execute() {
	// Show banner before every help screen
	origHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		pprint.PrintBanner(commands.Version, commands.BuildDate)
		origHelp(cmd, args)
	})

	if err := rootCmd.Execute(); err != nil {
		pprint.Error("%s", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.configFile, "config", "c", "", "Path to gantry.yaml (defaults to auto-discovery)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.agent, "agent", "a", "", "Build agent name (forces the agent runner)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.debug, "debug", false, "Enable debug-level logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.jsonOutput, "json", false, "Output in machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.dryRun, "dry-run", false, "Print planned actions without executing")

	// Register all subcommands
	rootCmd.AddCommand(
		commands.NewInitCmd(),
		commands.NewBuildCmd(),
		commands.NewPackCmd(),
		commands.NewReleaseCmd(),
		commands.NewSweepCmd(),
		commands.NewHistoryCmd(),
		commands.NewAgentsCmd(),
		commands.NewDoctorCmd(),
		commands.NewUICmd(),
		commands.NewVersionCmd(),
	)
}

// initRuntime loads config, logger, state and plugins before each command runs.
func initRuntime(cmd *cobra.Command) error {
	// Load config
	cfg, err := config.Load(globalFlags.configFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Initialise logger
	gantryHome := config.GantryHome()
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(gantryHome, "logs", "gantry.log")
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format, logFile, gantryHome, globalFlags.debug)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}

	// Open state DB
	dbPath := filepath.Join(gantryHome, "state.db")
	if err := os.MkdirAll(gantryHome, 0750); err != nil {
		return fmt.Errorf("create gantry home: %w", err)
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("state db: %w", err)
	}

	// Load plugins. A broken plugin dir is a warning, not a dead CLI.
	plugins := plugin.NewHost(log)
	if cfg.Plugins.Dir != "" {
		if err := plugins.LoadDir(cfg.Plugins.Dir); err != nil {
			log.Warn("plugin.load.failed", "dir", cfg.Plugins.Dir, "err", err)
		}
	}

	// Store in command context
	cmd.SetContext(commands.NewContext(cmd.Context(), &commands.Runtime{
		Config:  cfg,
		Log:     log,
		State:   db,
		Plugins: plugins,
		Flags: commands.GlobalFlags{
			Agent:      globalFlags.agent,
			Debug:      globalFlags.debug,
			JSONOutput: globalFlags.jsonOutput,
			DryRun:     globalFlags.dryRun,
		},
	}))

	return nil
}
