// Package cli implements the pantheon command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bdobrica/pantheon/internal/pantheon/app"
)

// options are the persistent flags shared by every command. Empty values
// keep what LoadConfig read from the environment.
type options struct {
	dbPath      string
	catalogPath string
	ritualsPath string
	logLevel    string
	logFormat   string
	format      string
}

// NewRootCmd builds the pantheon command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "pantheon",
		Short: "Talk to the AI gods",
		Long: "Pantheon keeps a small pantheon of AI personas: chat with them, convene a council, " +
			"perform rituals and inspect what they remember. State lives in a single SQLite file.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.dbPath, "db", "d", "", "Database path (default: $PANTHEON_DB or ./pantheon.db)")
	f.StringVar(&opts.catalogPath, "catalog", "", "Persona catalog YAML (default: $PANTHEON_CATALOG or built-in)")
	f.StringVar(&opts.ritualsPath, "rituals", "", "Ritual catalog YAML (default: $PANTHEON_RITUALS or built-in)")
	f.StringVar(&opts.logLevel, "log-level", envOr("PANTHEON_LOG_LEVEL", "warn"), "debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", envOr("PANTHEON_LOG_FORMAT", "text"), "text or json")
	f.StringVarP(&opts.format, "format", "f", "text", "Output format: json or text")

	root.AddCommand(
		newServeCmd(opts),
		newPersonasCmd(opts),
		newSummonCmd(opts),
		newChatCmd(opts),
		newSessionsCmd(opts),
		newMemoryCmd(opts),
		newCouncilCmd(opts),
		newRitualsCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newVoiceCmd(opts),
		newVersionCmd(),
	)
	return root
}

// config merges the flags over the environment.
func (o *options) config() app.Config {
	cfg := app.LoadConfig()
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	if o.catalogPath != "" {
		cfg.CatalogPath = o.catalogPath
	}
	if o.ritualsPath != "" {
		cfg.RitualCatalogPath = o.ritualsPath
	}
	return cfg
}

// open builds an App for a one-shot command. The HTTP server stays off.
func (o *options) open(cmd *cobra.Command) (*app.App, error) {
	cfg := o.config()
	cfg.HTTPAddr = ""
	a, err := app.New(cfg, app.Options{Logger: slog.Default()})
	if err != nil {
		return nil, err
	}
	// Probe the completion API so replies are not forced onto the fallback.
	a.ConnectLLM(cmd.Context())
	return a, nil
}

// print writes v as indented JSON, or calls text when the text format is
// selected.
func (o *options) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.format == "json" || text == nil {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	text(w)
	return nil
}
