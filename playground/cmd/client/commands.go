package main

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/spresso/spresso-go"
)

// NewTrackCommand creates the track command.
func NewTrackCommand(opts *RootOptions) *cobra.Command {
	var (
		props string
		count int
	)

	cmd := &cobra.Command{
		Use:   "track <event-name>",
		Short: "Record an event",
		Long: `Record an event. Add "trigger_error": true to the properties to make
the playground collector reject the batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProps(props)
			if err != nil {
				return err
			}
			return opts.withClient(cmd, func(client *spresso.Client) error {
				for i := 0; i < count; i++ {
					client.Track(args[0], properties)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d x %s, %d queued\n", count, args[0], client.QueueLen())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&props, "props", "", "event properties as a JSON object")
	cmd.Flags().IntVar(&count, "count", 1, "number of copies to record")
	return cmd
}

func parseProps(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, errors.Wrap(err, "invalid --props JSON")
	}
	return props, nil
}

// NewIdentifyCommand creates the identify command.
func NewIdentifyCommand(opts *RootOptions) *cobra.Command {
	var nameTag string

	cmd := &cobra.Command{
		Use:   "identify <user-id>",
		Short: "Attribute subsequent events to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(client *spresso.Client) error {
				client.Identify(args[0])
				if nameTag != "" {
					client.SetNameTag(nameTag)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Identified %s\n", client.UserID())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&nameTag, "name-tag", "", "display name of the user")
	return cmd
}

// NewAliasCommand creates the alias command.
func NewAliasCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "alias <alias> <distinct-id>",
		Short: "Record that two ids belong to the same user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(client *spresso.Client) error {
				client.CreateAlias(args[0], args[1])
				fmt.Fprintf(cmd.OutOrStdout(), "%d queued\n", client.QueueLen())
				return nil
			})
		},
	}
}

// NewSessionCommand creates the session command with start and end
// subcommands.
func NewSessionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Track session boundaries",
	}

	var postalCode string
	start := &cobra.Command{
		Use:   "start",
		Short: "Record a session start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(client *spresso.Client) error {
				client.TrackSessionStart(postalCode, nil)
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s started\n", client.SessionID())
				return nil
			})
		},
	}
	start.Flags().StringVar(&postalCode, "postal-code", "", "postal code of the user")

	end := &cobra.Command{
		Use:   "end",
		Short: "Record a session end and start a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(client *spresso.Client) error {
				client.TrackSessionEnd()
				fmt.Fprintf(cmd.OutOrStdout(), "New session %s\n", client.SessionID())
				return nil
			})
		},
	}

	cmd.AddCommand(start, end)
	return cmd
}

// NewResetCommand creates the reset command.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the user and generate new device and session ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(client *spresso.Client) error {
				client.Reset()
				fmt.Fprintf(cmd.OutOrStdout(), "New device %s\n", client.DeviceID())
				return nil
			})
		},
	}
}

// NewSoftResetCommand creates the soft-reset command.
func NewSoftResetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "soft-reset",
		Short: "Forget the user but keep the device and session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(client *spresso.Client) error {
				client.SoftReset()
				fmt.Fprintln(cmd.OutOrStdout(), "User cleared")
				return nil
			})
		},
	}
}

// NewFlushCommand creates the flush command.
func NewFlushCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Deliver queued events and wait for the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(client *spresso.Client) error {
				result := <-client.Flush()
				out := cmd.OutOrStdout()
				switch result.Outcome {
				case spresso.FlushSkipped:
					fmt.Fprintf(out, "Skipped: %s\n", result.Reason)
				case spresso.FlushFailed:
					fmt.Fprintf(out, "Failed after %d sent: %v\n", result.Sent, result.Err)
				default:
					fmt.Fprintf(out, "Delivered %d\n", result.Sent)
				}
				fmt.Fprintf(out, "%d queued\n", result.Remaining)
				return nil
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the identity and queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(client *spresso.Client) error {
				out := cmd.OutOrStdout()
				user := client.UserID()
				if user == "" {
					user = "(anonymous)"
				}
				fmt.Fprintf(out, "user:    %s\n", user)
				fmt.Fprintf(out, "device:  %s\n", client.DeviceID())
				fmt.Fprintf(out, "session: %s\n", client.SessionID())
				fmt.Fprintf(out, "queued:  %d\n", client.QueueLen())
				return nil
			})
		},
	}
}
