package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/nainya/confsnap/internal/app"
	"github.com/nainya/confsnap/internal/config"
	"github.com/nainya/confsnap/internal/logger"
)

type rootOpts struct {
	configPath string
	logLevel   string
	backend    string
	storePath  string
	inventory  string

	// appOptions are applied when the app is built; tests inject a clock here
	appOptions []app.Option
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
confsnap keeps a chronological archive of device configurations and reports
the changes between the two most recent captures of each device.

Workflow:
  confsnap backup                  # Capture every inventory device and compare
  confsnap list Switch1            # Show the archived captures of a device
  confsnap diff Switch1            # Compare the two newest captures again
  confsnap serve                   # Serve the gRPC API and /metrics
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "confsnap",
		Long:         rootLongHelp,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file; built-in defaults when empty")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.backend, "store", "", "snapshot store backend (fs, memory, s3)")
	cmd.PersistentFlags().StringVar(&opts.storePath, "store-path", "", "directory of the fs store")
	cmd.PersistentFlags().StringVarP(&opts.inventory, "inventory", "i", "", "device inventory YAML file")

	cmd.AddCommand(
		newBackup(opts).Command(),
		newList(opts).Command(),
		newDiff(opts).Command(),
		newServe(opts).Command(),
	)

	return cmd
}

// loadConfig reads the config file and applies flags the user set
func (opts *rootOpts) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("store") {
		cfg.Store.Backend = opts.backend
	}
	if flags.Changed("store-path") {
		cfg.Store.Path = opts.storePath
	}
	if flags.Changed("inventory") {
		cfg.Inventory = opts.inventory
	}

	return cfg, cfg.Validate()
}

// app builds the components, logging to the command's stderr
func (opts *rootOpts) app(cmd *cobra.Command) (*app.App, error) {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	return app.New(cfg, append([]app.Option{app.WithLogger(log)}, opts.appOptions...)...)
}
