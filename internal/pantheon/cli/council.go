package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdobrica/pantheon/internal/pantheon/council"
)

func newCouncilCmd(opts *options) *cobra.Command {
	var (
		topic    string
		topicID  string
		duration time.Duration
		turn     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "council <persona> <persona...>",
		Short: "Convene a council and follow the discussion",
		Long: "Seat two to six personas around a topic and print the discussion as it happens. " +
			"The council ends when its time is up or on interrupt.",
		Args: cobra.RangeArgs(council.MinParticipants, council.MaxParticipants),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			seats, err := a.Personas().Resolve(args)
			if err != nil {
				return err
			}
			sched := a.Council()
			t := council.CustomTopic(topic)
			if topicID != "" {
				var ok bool
				if t, ok = sched.Topic(topicID); !ok {
					return fmt.Errorf("unknown council topic %q", topicID)
				}
			} else if topic == "" {
				if suited := sched.TopicsFor(seats); len(suited) > 0 {
					t = suited[0]
				}
			}

			settings := opts.config().Council
			if duration > 0 {
				settings.SessionDuration = duration
			}
			if turn > 0 {
				settings.TurnLength = turn
			}

			out := cmd.OutOrStdout()
			unsubscribe := sched.Subscribe(func(m council.Message) {
				fmt.Fprintf(out, "%s: %s\n", m.PersonaName, m.Content)
			})
			defer unsubscribe()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if _, err := sched.Start(ctx, seats, t, settings); err != nil {
				return err
			}
			if err := sched.StartDiscussion(ctx); err != nil {
				return err
			}

			tick := time.NewTicker(250 * time.Millisecond)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return sched.End()
				case <-tick.C:
					if sess, ok := sched.Session(); !ok || sess.Status == council.StatusConcluded {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Free-form topic")
	cmd.Flags().StringVar(&topicID, "topic-id", "", "Built-in topic id (see 'pantheon council topics')")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Session length (default: $PANTHEON_COUNCIL_DURATION)")
	cmd.Flags().DurationVar(&turn, "turn", 0, "Pause between speakers (default: $PANTHEON_COUNCIL_TURN)")
	cmd.AddCommand(newCouncilTopicsCmd(opts))
	return cmd
}

func newCouncilTopicsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List the built-in council topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topics := council.New(council.Config{}).Topics()
			return opts.print(cmd.OutOrStdout(), topics, func(w io.Writer) {
				for _, t := range topics {
					fmt.Fprintf(w, "%-24s %s\n", t.ID, t.Title)
				}
			})
		},
	}
}
