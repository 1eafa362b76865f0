package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/JFJun/kernel/internal/config"
	"github.com/JFJun/kernel/internal/daemon"
	"github.com/JFJun/kernel/internal/session"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type options struct {
	session string
	json    bool
}

func (o *options) sessionName() (string, error) {
	name := session.Resolve(o.session)
	if err := session.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "socialctl",
		Short:         "Inspect and configure socialsyncd sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")

	root.AddCommand(newStatusCmd(opts), newConfigCmd(opts), newPathsCmd(opts))
	return root
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon and its chat session are up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.sessionName()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			st, err := queryStatus(ctx, session.For(name).Socket)
			if err != nil {
				return fmt.Errorf("cannot reach daemon for session %q: %w", name, err)
			}
			st.Session = name
			return printStatus(cmd.OutOrStdout(), st, opts.json)
		},
	}
}

type daemonStatus struct {
	Session string `json:"session"`
	Daemon  string `json:"daemon"`
	Chat    string `json:"chat"`
}

func queryStatus(ctx context.Context, socketPath string) (daemonStatus, error) {
	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return daemonStatus{}, err
	}
	defer func() { _ = conn.Close() }()

	client := healthpb.NewHealthClient(conn)
	self, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return daemonStatus{}, err
	}
	chat, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: daemon.ChatService})
	if err != nil {
		return daemonStatus{}, err
	}
	return daemonStatus{Daemon: self.Status.String(), Chat: chat.Status.String()}, nil
}

func printStatus(w io.Writer, st daemonStatus, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(st)
	}
	_, err := fmt.Fprintf(w, "session: %s\ndaemon:  %s\nchat:    %s\n", st.Session, st.Daemon, st.Chat)
	return err
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the session config",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.toml for the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.sessionName()
			if err != nil {
				return err
			}
			path := session.For(name).Config
			if err := initConfig(path, force); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	cmd.AddCommand(initCmd)
	return cmd
}

func initConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return config.Save(path, config.Default())
}

func newPathsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the files used by a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.sessionName()
			if err != nil {
				return err
			}
			paths := sessionPaths(name)
			if opts.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(paths)
			}
			for _, p := range paths {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", p.Name, p.Path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

type pathEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func sessionPaths(name string) []pathEntry {
	p := session.For(name)
	return []pathEntry{
		{"dir", p.Dir},
		{"config", p.Config},
		{"state", p.State},
		{"socket", p.Socket},
		{"lock", p.Lock},
		{"log", p.Log},
	}
}
