package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bdobrica/pantheon/internal/pantheon/memory"
)

func newMemoryCmd(opts *options) *cobra.Command {
	var (
		query string
		limit int
		clear bool
	)
	cmd := &cobra.Command{
		Use:   "memory <persona>",
		Short: "Inspect what a persona remembers",
		Long: "Print a persona's memory summary. With --query, list the entries most relevant to the query; " +
			"with --clear, forget everything and start from the seeded memory.",
		Args: cobra.ExactArgs(1),
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
			mem := a.Memory()

			if clear {
				if err := mem.Clear(ctx, p.ID); err != nil {
					return err
				}
				if _, err := mem.Initialize(ctx, p); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s has forgotten\n", p.Name)
				return nil
			}
			if _, err := mem.Initialize(ctx, p); err != nil {
				return err
			}
			if query != "" {
				entries, err := mem.QueryRelevant(ctx, p.ID, query, limit)
				if err != nil {
					return err
				}
				return opts.print(out, entries, func(w io.Writer) {
					for _, e := range entries {
						fmt.Fprintf(w, "[%s %d] %s\n", e.Kind, e.Importance, e.Content)
					}
				})
			}
			if opts.format == "json" {
				m, err := mem.Get(ctx, p.ID)
				if err != nil {
					return err
				}
				return opts.print(out, m, nil)
			}
			summary, err := mem.Summary(ctx, p.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, summary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "List the entries relevant to this text")
	cmd.Flags().IntVarP(&limit, "limit", "n", memory.DefaultRecallLimit, "Maximum entries for --query")
	cmd.Flags().BoolVar(&clear, "clear", false, "Forget everything")
	return cmd
}
