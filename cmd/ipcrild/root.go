package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/danmuck/ipcril/internal/config"
	"github.com/danmuck/ipcril/internal/logging"
	"github.com/danmuck/ipcril/internal/service"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "ipcrild",
		Short:         "Radio interface daemon for IPC modems",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogging(opts.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDaemonConfig(opts.configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return service.New(cfg).Run(ctx)
		},
	}
	cmd.SetContext(context.Background())
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "daemon config file (TOML); defaults apply when empty")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (trace|debug|info|warn|error)")
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or check daemon config files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write the default config to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load --config and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDaemonConfig(opts.configPath)
			if err != nil {
				return err
			}
			out, err := config.Render(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

// configureLogging applies the runtime profile, then the flag on top of it.
func configureLogging(level string) error {
	logging.ConfigureRuntime()
	if level == "" {
		return nil
	}
	parsed, ok := logging.ParseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	cfg := logging.RuntimeConfig()
	cfg.Level = parsed
	logging.Apply(cfg)
	return nil
}
