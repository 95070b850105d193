package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/arenalab/arena/internal/history"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse archived sessions",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			sessions, err := a.archive.List(limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No archived sessions.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tTASK\tVOTED\tTITLE")
			for _, sess := range sessions {
				voted := "-"
				if sess.VotedAnswerID != "" {
					voted = sess.VotedAnswerID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sess.SessionID, sess.TaskID, voted, sess.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "arena.yaml", "path to Arena config file")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list")
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one archived session with its answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.archive.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s (task %s)\n", sess.SessionID, sess.TaskID)
			fmt.Fprintf(out, "Q: %s\n", sess.Question)
			for _, ans := range sess.Answers {
				marker := ""
				if sess.VotedAnswerID != "" && ans.AnswerID == sess.VotedAnswerID {
					marker = " *voted*"
				}
				fmt.Fprintf(out, "\n[%s]%s\n", ans.ProviderID, marker)
				if ans.Err != "" {
					fmt.Fprintf(out, "  error: %s\n", ans.Err)
					continue
				}
				fmt.Fprintln(out, indent(ans.Content, "  "))
				if ans.Truncated {
					fmt.Fprintln(out, "  (truncated)")
				}
				for _, cit := range history.Citations(ans) {
					fmt.Fprintf(out, "  - %s\n", cit.Summary)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "arena.yaml", "path to Arena config file")
	return cmd
}
