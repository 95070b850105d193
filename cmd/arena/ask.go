package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arenalab/arena/internal/mask"
	"github.com/arenalab/arena/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAskCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question and stream every backend's answer",
		Long:  "Asks the given question. With no argument, enters a prompt loop: plain lines ask, /vote <answer-id> casts the round's vote, /why <answer-id> <reasons...> explains it, /exit quits.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if len(args) == 1 {
				return askOnce(ctx, a, cmd.OutOrStdout(), args[0])
			}
			return askLoop(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "arena.yaml", "path to Arena config file")
	return cmd
}

func askOnce(ctx context.Context, a *app, out io.Writer, question string) error {
	sessionID, err := a.service.Ask(ctx, question)
	if err != nil {
		return err
	}
	if sessionID == "" {
		return fmt.Errorf("question is empty")
	}
	snap, ok := a.service.Store().Session(sessionID)
	if !ok {
		return fmt.Errorf("session %s vanished", sessionID)
	}
	printAnswers(out, snap)
	return nil
}

// askLoop reads questions from stdin until EOF. The prompt is only printed
// when stdin is an interactive terminal.
func askLoop(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "? ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/exit" || line == "/quit":
			return nil
		case strings.HasPrefix(line, "/vote "):
			answerID := strings.TrimSpace(strings.TrimPrefix(line, "/vote "))
			if err := a.service.Vote(ctx, answerID); err != nil {
				fmt.Fprintf(out, "vote failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "voted %s\n", answerID)
		case strings.HasPrefix(line, "/why "):
			fields := strings.Fields(strings.TrimPrefix(line, "/why "))
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: /why <answer-id> <reason> [reason...]")
				continue
			}
			if err := a.service.SubmitVoteFeedback(ctx, fields[0], fields[1:]); err != nil {
				fmt.Fprintf(out, "feedback failed: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "feedback recorded")
		default:
			if err := askOnce(ctx, a, out, line); err != nil {
				fmt.Fprintf(out, "ask failed: %v\n", err)
			}
		}
	}
	return scanner.Err()
}

func printAnswers(out io.Writer, snap store.SessionSnapshot) {
	fmt.Fprintf(out, "Q: %s\n", snap.Question)
	for _, ans := range snap.Answers {
		fmt.Fprintf(out, "\n[%s] (%s)", ans.ProviderID, mask.MaskCode(ans.ProviderID))
		if snap.VotedAnswerID == ans.ID {
			fmt.Fprint(out, " *voted*")
		}
		fmt.Fprintln(out)
		if ans.Error != "" {
			fmt.Fprintf(out, "  error: %s\n", ans.Error)
			if ans.Content != "" {
				fmt.Fprintf(out, "  partial: %s\n", ans.Content)
			}
			continue
		}
		fmt.Fprintln(out, indent(ans.Content, "  "))
		for _, cit := range ans.Citations {
			fmt.Fprintf(out, "  - %s\n", cit.Summary)
		}
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}
