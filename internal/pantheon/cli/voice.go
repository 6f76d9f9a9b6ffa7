package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/pantheon/common/version"
	"github.com/bdobrica/pantheon/internal/pantheon/voice"
)

func newVoiceCmd(opts *options) *cobra.Command {
	var (
		audience   string
		confidence float64
	)
	cmd := &cobra.Command{
		Use:   "voice <transcript...>",
		Short: "Run a spoken command from its transcript",
		Long: "Match a speech-recognizer transcript against the voice triggers and act on it. " +
			"--persona names the persona holding the audience for commands that do not name one.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			c, ok := a.VoiceMatcher().Match(strings.Join(args, " "))
			if !ok {
				return voice.ErrIgnored
			}
			c.Confidence = min(c.Confidence, confidence)
			if audience != "" {
				p, err := a.Personas().Find(audience)
				if err != nil {
					return err
				}
				audience = p.ID
			}
			if err := a.Voice().Dispatch(cmd.Context(), c, audience); err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), c, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s, confidence %.2f)\n", c.Action, c.TriggerID, c.Confidence)
			})
		},
	}
	cmd.Flags().StringVarP(&audience, "persona", "p", "", "Persona holding the audience")
	cmd.Flags().Float64Var(&confidence, "confidence", 1, "Recognizer confidence of the transcript")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
