package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTasksCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the server-side task forest",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			forest, err := a.api.TaskList(cmd.Context())
			if err != nil {
				return err
			}
			if len(forest) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tSESSION\tTITLE")
			for _, task := range forest {
				if task.Leaf {
					continue
				}
				fmt.Fprintf(w, "%s\t\t%s\n", task.ID, task.Val)
				for _, sess := range task.Children {
					fmt.Fprintf(w, "\t%s\t%s\n", sess.ID, sess.Val)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "arena.yaml", "path to Arena config file")
	return cmd
}
