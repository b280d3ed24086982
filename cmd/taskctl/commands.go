package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"taskmaster/internal/service"
	"taskmaster/internal/view"

	"github.com/spf13/cobra"
)

func addCmd(s *session) *cobra.Command {
	var description, due string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dueDate, err := view.ParseDue(due, s.loc)
			if err != nil {
				return err
			}
			var desc *string
			if cmd.Flags().Changed("description") {
				desc = &description
			}
			t, outcome, err := s.store.Add(cmd.Context(), strings.Join(args, " "), desc, dueDate)
			if err := check(cmd, outcome, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", t.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVar(&due, "due", "", "Due date: YYYY-MM-DD, YYYY-MM-DDThh:mm, RFC3339 or epoch milliseconds")
	return cmd
}

func listCmd(s *session) *cobra.Command {
	var asJSON, overdueOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, incomplete first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := s.store.View(time.Now())
			items := v.Items
			if overdueOnly {
				items = v.Overdue()
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}

			if len(items) == 0 {
				fmt.Fprintln(out, "No tasks")
				return nil
			}
			for _, it := range items {
				fmt.Fprintln(out, formatItem(it, s.loc))
			}
			fmt.Fprintf(out, "\n%d active, %d completed\n", v.Active, v.Completed)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVar(&overdueOnly, "overdue", false, "Only overdue tasks")
	return cmd
}

func formatItem(it view.Item, loc *time.Location) string {
	mark := "[ ]"
	if it.Completed {
		mark = "[x]"
	}
	id := it.ID
	if len(id) > 8 {
		id = id[:8]
	}
	line := fmt.Sprintf("%s %s  %s", mark, id, it.Title)
	if it.DueDate != nil {
		line += "  (due " + view.FormatDue(it.DueDate, loc) + ")"
	}
	if it.Overdue {
		line += "  OVERDUE"
	}
	if it.Description != nil {
		line += "\n      " + *it.Description
	}
	return line
}

func toggleCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			t, outcome, err := s.store.Toggle(cmd.Context(), id)
			if err := check(cmd, outcome, err); err != nil {
				return err
			}
			state := "active"
			if t.Completed {
				state = "completed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", t.ID, state)
			return nil
		},
	}
}

func removeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			outcome, err := s.store.Remove(cmd.Context(), id)
			if err := check(cmd, outcome, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

func editCmd(s *session) *cobra.Command {
	var title, description, due string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit title, description or due date",
		Long: `Edit a task. Only the flags given are changed.
An empty --description or --due clears that field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			existing, _ := s.store.Get(id)

			draft := view.NewDraft(existing, s.loc)
			if cmd.Flags().Changed("title") {
				draft.Title = title
			}
			if cmd.Flags().Changed("description") {
				draft.Description = description
			}
			if cmd.Flags().Changed("due") {
				draft.DueDate = due
			}
			edited, ok, err := draft.Apply(existing, s.loc)
			if err != nil {
				return err
			}
			if !ok {
				return check(cmd, service.Rejected, nil)
			}
			// The draft holds the due date at minute precision.
			if !cmd.Flags().Changed("due") {
				edited.DueDate = existing.Clone().DueDate
			}

			t, outcome, err := s.store.Replace(cmd.Context(), edited)
			if err := check(cmd, outcome, err); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatItem(view.Item{Task: t, Overdue: t.Overdue(time.Now())}, s.loc))
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&due, "due", "", "New due date")
	return cmd
}

func clearCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all completed tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := s.store.ClearCompleted(cmd.Context())
			if err := check(cmd, service.Applied, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d completed %s\n", removed, plural(removed, "task", "tasks"))
			return nil
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
