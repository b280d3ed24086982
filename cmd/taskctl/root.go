package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskmaster/internal/app"
	"taskmaster/internal/config"
	"taskmaster/internal/logger"
	"taskmaster/internal/repo"
	"taskmaster/internal/service"

	"github.com/spf13/cobra"
)

// session is the store opened for one command invocation.
type session struct {
	cfg   config.Config
	loc   *time.Location
	store *service.TaskStore
	slot  repo.Slot
}

// newRootCmd builds the command tree. The returned session holds the store
// a command opens; release it with execute or session.close.
func newRootCmd() (*cobra.Command, *session) {
	s := &session{}
	var verbose bool

	root := &cobra.Command{
		Use:   "taskctl",
		Short: "taskctl - manage tasks in the configured storage slot",
		Long: `taskctl works on the same task collection as the API server.

Storage is selected with STORAGE_DRIVER (memory, file, sqlite, redis, postgres)
and STORAGE_KEY; see the server configuration for the full list.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd.Context(), verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log storage activity to stderr")

	root.AddCommand(addCmd(s))
	root.AddCommand(listCmd(s))
	root.AddCommand(toggleCmd(s))
	root.AddCommand(removeCmd(s))
	root.AddCommand(editCmd(s))
	root.AddCommand(clearCmd(s))
	return root, s
}

// execute runs root and closes the slot afterwards, also when the command
// failed: cobra skips post-run hooks on error.
func execute(root *cobra.Command, s *session) error {
	err := root.Execute()
	if cerr := s.close(); err == nil {
		err = cerr
	}
	return err
}

func (s *session) open(ctx context.Context, verbose bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}

	log := logger.NewNop()
	if verbose {
		if log, err = logger.New(cfg.Log.Mode); err != nil {
			return err
		}
	}

	store, slot, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	s.cfg, s.loc, s.store, s.slot = cfg, loc, store, slot
	return nil
}

func (s *session) close() error {
	if s.slot == nil {
		return nil
	}
	err := s.slot.Close()
	s.slot = nil
	return err
}

// resolve accepts a full id or an unambiguous prefix of one.
func (s *session) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if _, ok := s.store.Get(ref); ok {
		return ref, nil
	}
	var match string
	for _, t := range s.store.Tasks() {
		if !strings.HasPrefix(t.ID, ref) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("id prefix %q is ambiguous", ref)
		}
		match = t.ID
	}
	if match == "" || ref == "" {
		return "", fmt.Errorf("task %q not found", ref)
	}
	return match, nil
}

// check turns a store result into a command error. A persist failure is
// reported but the command still succeeds, like the API does.
func check(cmd *cobra.Command, outcome service.Outcome, err error) error {
	switch {
	case errors.Is(err, service.ErrPersist):
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: changes may not be saved:", err)
	case err != nil:
		return err
	}
	switch outcome {
	case service.NotFound:
		return errors.New("task not found")
	case service.Rejected:
		return errors.New("title must not be empty")
	}
	return nil
}
