package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/pantheon/internal/pantheon/chat"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

func newPersonasCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the pantheon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := persona.Load(opts.config().CatalogPath)
			if err != nil {
				return err
			}
			all := cat.All()
			return opts.print(cmd.OutOrStdout(), all, func(w io.Writer) {
				for _, p := range all {
					fmt.Fprintf(w, "%-6s %-8s %-10s %s\n", p.ID, p.Name, p.Temperament, p.Domain)
				}
			})
		},
	}
}

func newSummonCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summon <persona>",
		Short: "Summon a persona and print its greeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Personas().Find(args[0])
			if err != nil {
				return err
			}
			greeting, err := a.Engine().Summon(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), greeting)
			return nil
		},
	}
}

func newChatCmd(opts *options) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "chat <persona> <message...>",
		Short: "Send one message to a persona",
		Long:  "Send one message to a persona and print the reply. The exchange joins the persona's current session.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Personas().Find(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if fresh {
				if _, err := a.Chat().StartNew(ctx, p.ID); err != nil {
					return err
				}
			}
			turn, err := a.Engine().Converse(ctx, p, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			for _, e := range turn.PersistErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", e)
			}
			return opts.print(cmd.OutOrStdout(), turn, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s\n", p.Name, turn.Reply.Text)
			})
		},
	}
	cmd.Flags().BoolVar(&fresh, "new", false, "Start a new session first")
	return cmd
}

func newSessionsCmd(opts *options) *cobra.Command {
	var (
		query string
		clear bool
	)
	cmd := &cobra.Command{
		Use:   "sessions <persona>",
		Short: "Show, search or clear a persona's chat sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Personas().Find(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			switch {
			case clear:
				if err := a.Chat().Clear(ctx, p.ID); err != nil {
					return err
				}
				fmt.Fprintf(out, "cleared sessions of %s\n", p.Name)
				return nil
			case query != "":
				msgs, err := a.Chat().Search(ctx, p.ID, query)
				if err != nil {
					return err
				}
				return opts.print(out, msgs, func(w io.Writer) { printMessages(w, p.Name, msgs) })
			}
			sessions, err := a.Chat().Sessions(ctx, p.ID)
			if err != nil {
				return err
			}
			return opts.print(out, sessions, func(w io.Writer) {
				for _, s := range sessions {
					fmt.Fprintf(w, "== %s (%d messages, %s)\n", s.ID, s.MessageCount, s.LastUpdated.Format("2006-01-02 15:04"))
					printMessages(w, p.Name, s.Messages)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&query, "search", "q", "", "Only messages containing this text")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete every session of the persona")
	return cmd
}

func printMessages(w io.Writer, name string, msgs []chat.Message) {
	for _, m := range msgs {
		who := "you"
		if m.Role == chat.RoleAssistant {
			who = name
		}
		fmt.Fprintf(w, "  %s: %s\n", who, m.Content)
	}
}
