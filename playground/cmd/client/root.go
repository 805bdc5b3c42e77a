package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/spresso/spresso-go"
	"github.com/spresso/spresso-go/adapters"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	ConfigPath string
	Env        string
	ServerURL  string
	Storage    string
	Driver     string
	Verbose    bool
}

// NewRootCommand creates the playground CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "spresso-playground",
		Short: "Record and deliver events with a persistent Spresso client",
		Long: `Record and deliver events with a persistent Spresso client.

Every command opens the client from its storage, runs, and archives the
queue and identity again, so commands can be chained across invocations:

  spresso-playground identify user-1
  spresso-playground track spresso_view_page --props '{"path":"/home"}'
  spresso-playground flush`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "YAML config file")
	flags.StringVar(&opts.Env, "env", "local", "environment: local, dev, staging or prod")
	flags.StringVar(&opts.ServerURL, "server", "", "collector base URL, overrides the environment default")
	flags.StringVar(&opts.Storage, "storage", ".spresso-playground", "storage path")
	flags.StringVar(&opts.Driver, "driver", "file", "storage driver: file, sqlite or none")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		NewTrackCommand(opts),
		NewIdentifyCommand(opts),
		NewAliasCommand(opts),
		NewSessionCommand(opts),
		NewResetCommand(opts),
		NewSoftResetCommand(opts),
		NewFlushCommand(opts),
		NewStatusCommand(opts),
	)
	return cmd
}

func (o *RootOptions) config(cmd *cobra.Command) (spresso.Config, error) {
	config := spresso.DefaultConfig(spresso.EnvironmentLocal)
	if o.ConfigPath != "" {
		loaded, err := spresso.LoadConfig(o.ConfigPath)
		if err != nil {
			return config, err
		}
		config = loaded
	}

	if o.ConfigPath == "" || cmd.Flags().Changed("env") {
		env, err := spresso.ParseEnvironment(o.Env)
		if err != nil {
			return config, err
		}
		config.Environment = env
	}
	if o.ServerURL != "" {
		config.ServerURL = o.ServerURL
	}
	if o.ConfigPath == "" || cmd.Flags().Changed("storage") {
		config.Storage.Path = o.Storage
	}
	if o.ConfigPath == "" || cmd.Flags().Changed("driver") {
		config.Storage.Driver = spresso.StorageDriver(o.Driver)
	}

	// Commands flush explicitly.
	config.FlushInterval = 0
	if o.Verbose {
		config.LoggingEnabled = true
		config.LogLevel = adapters.LogLevelDebug
	}
	return config, nil
}

// withClient opens the client, runs fn and archives without sending.
func (o *RootOptions) withClient(cmd *cobra.Command, fn func(*spresso.Client) error) error {
	config, err := o.config(cmd)
	if err != nil {
		return err
	}

	client, err := spresso.NewClient(config)
	if err != nil {
		return errors.Wrap(err, "create client")
	}
	if err := client.Init(); err != nil {
		return errors.Wrap(err, "init client")
	}

	runErr := fn(client)
	if err := client.DisposeWithoutFlush(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "archive client")
	}
	return runErr
}
