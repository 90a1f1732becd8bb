package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/config"
)

// rootOptions are the persistent flags every subcommand sees.
type rootOptions struct {
	configPath string
	verbose    bool
	logJSON    bool
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	return config.Load(o.configPath)
}

func (o *rootOptions) setupLogging() {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	if o.logJSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "combo",
		Short: "Compose Yu-Gi-Oh! combo sheets from the card catalog",
		Long: `Combo assembles ordered, multi-step combo compositions from a large card catalog
and exports them as portable JSON documents.

It serves a JSON API for a browser front end, and offers commands to search and
browse the catalog, edit composition files, sync the catalog into a local store and
mirror card images.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			opts.setupLogging()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Log as JSON")

	// Add subcommands
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newBrowseCmd(opts))
	cmd.AddCommand(newComposeCmd(opts))
	cmd.AddCommand(newCatalogCmd(opts))
	cmd.AddCommand(newImagesCmd(opts))

	return cmd
}
