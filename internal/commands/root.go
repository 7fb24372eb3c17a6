package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the cineflex command tree
func NewRootCommand(version string) *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   "cineflex",
		Short: "Movie catalog gateway",
		Long: `Resilient gateway to a TMDB-compatible movie catalog API.

The serve command runs the HTTP server with the catalog routes and the
credential-injecting proxy. The remaining commands query the catalog directly
and print JSON to stdout.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigDir, "config-dir", "c", ".", "Directory holding config.yaml and config.<env>.yaml")
	flags.StringVar(&opts.EnvFile, "env-file", "", "Dotenv file to load (default <config-dir>/.env)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Override log.level")
	flags.BoolVar(&opts.ShowMetrics, "metrics", false, "Print client metrics to stderr after a query")

	cmd.AddCommand(
		NewServeCommand(opts),
		NewHealthCommand(opts),
		NewMoviesCommand(opts),
		NewMovieCommand(opts),
		NewSearchCommand(opts),
		NewGenresCommand(opts),
		NewVersionCommand(version),
	)

	return cmd
}
