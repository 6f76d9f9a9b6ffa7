package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/pantheon/internal/pantheon/ritual"
)

func newRitualsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rituals",
		Short: "List the rituals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ritual.Load(opts.config().RitualCatalogPath)
			if err != nil {
				return err
			}
			return printRituals(opts, cmd.OutOrStdout(), cat.Rituals())
		},
	}
	cmd.AddCommand(
		newOfferingsCmd(opts),
		newRecommendCmd(opts),
		newPerformCmd(opts),
		newRitualLogCmd(opts),
	)
	return cmd
}

func printRituals(opts *options, out io.Writer, rs []ritual.Ritual) error {
	return opts.print(out, rs, func(w io.Writer) {
		for _, r := range rs {
			fmt.Fprintf(w, "%-20s %-14s difficulty %d  %s\n", r.ID, r.Type, r.Difficulty, r.Name)
		}
	})
}

func newOfferingsCmd(opts *options) *cobra.Command {
	var forType string
	cmd := &cobra.Command{
		Use:   "offerings",
		Short: "List the offerings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ritual.Load(opts.config().RitualCatalogPath)
			if err != nil {
				return err
			}
			offerings := cat.Offerings()
			if forType != "" {
				offerings = cat.OfferingRecommendations(ritual.Type(forType))
			}
			return opts.print(cmd.OutOrStdout(), offerings, func(w io.Writer) {
				for _, o := range offerings {
					fmt.Fprintf(w, "%-18s %-9s %-9s value %3d  %s\n", o.ID, o.Type, o.Rarity, o.Value, o.Name)
				}
			})
		},
	}
	cmd.Flags().StringVar(&forType, "for", "", "Only offerings suited to this ritual type")
	return cmd
}

func newRecommendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <persona>",
		Short: "List the rituals a persona favors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.Chamber().Recommendations(args[0])
			if err != nil {
				return err
			}
			return printRituals(opts, cmd.OutOrStdout(), recs)
		},
	}
}

func newPerformCmd(opts *options) *cobra.Command {
	var offerings []string
	cmd := &cobra.Command{
		Use:   "perform <ritual> <persona>",
		Short: "Perform a ritual from start to finish",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			chamber := a.Chamber()
			started, err := chamber.Start(ctx, args[0], args[1], offerings)
			if err != nil {
				return err
			}
			res, err := chamber.Complete(ctx, started.ID)
			if err != nil {
				return err
			}
			for _, e := range res.PersistErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", e)
			}
			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				out := res.Outcome
				fmt.Fprintln(w, out.Message)
				fmt.Fprintf(w, "  %q\n", out.DivineResponse)
				fmt.Fprintf(w, "  chance %.0f%%, relationship %+d (now %d)\n", out.Chance*100, out.RelationshipChange, res.Relationship)
				if out.Success {
					fmt.Fprintf(w, "  rewards: %s\n", strings.Join(out.Rewards, ", "))
				} else {
					fmt.Fprintf(w, "  penalties: %s\n", strings.Join(out.Penalties, ", "))
				}
			})
		},
	}
	cmd.Flags().StringSliceVarP(&offerings, "offering", "o", nil, "Offering id (repeatable)")
	_ = cmd.MarkFlagRequired("offering")
	return cmd
}

func newRitualLogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show every completed ritual",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			log, err := a.Memory().Rituals(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), log, func(w io.Writer) {
				for _, r := range log {
					fmt.Fprintf(w, "%s  %-8s %-22s %s\n", r.Timestamp.Format("2006-01-02 15:04"), r.PersonaID, r.RitualType, r.Outcome)
				}
			})
		},
	}
}
