package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cineflex/cineflex/catalog"
)

// ListFlags holds the paging and locale flags shared by list-style queries
type ListFlags struct {
	Page     int
	Language string
	Region   string
}

func (f *ListFlags) bind(cmd *cobra.Command, withRegion bool) {
	cmd.Flags().IntVarP(&f.Page, "page", "p", catalog.DefaultPage, "Result page (1-500)")
	cmd.Flags().StringVarP(&f.Language, "language", "l", catalog.DefaultLanguage, "ISO 639-1 language with optional region")
	if withRegion {
		cmd.Flags().StringVarP(&f.Region, "region", "r", catalog.DefaultRegion, "ISO 3166-1 region")
	}
}

func (f *ListFlags) options() catalog.ListOptions {
	return catalog.ListOptions{Page: f.Page, Language: f.Language, Region: f.Region}
}

// NewMoviesCommand creates the movies command
func NewMoviesCommand(global *GlobalOptions) *cobra.Command {
	flags := &ListFlags{}

	cmd := &cobra.Command{
		Use:   "movies <category>",
		Short: "List movies by category",
		Long: fmt.Sprintf(`Fetches one page of a curated movie list.

Categories: %s`, categoryNames()),
		Example: `  cineflex movies popular
  cineflex movies top_rated --page 2 --language fr-FR`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := catalog.ParseCategory(args[0])
			if err != nil {
				return err
			}
			env, err := newQueryEnv(global, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			page, err := env.svc.MovieList(cmd.Context(), category, flags.options())
			if err != nil {
				return err
			}
			return env.print(page)
		},
	}

	flags.bind(cmd, true)
	return cmd
}

// NewMovieCommand creates the movie command
func NewMovieCommand(global *GlobalOptions) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:     "movie <id>",
		Short:   "Show movie details with credits, videos and related titles",
		Example: `  cineflex movie 550`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: movie id %q is not a number", catalog.ErrInvalidArgument, args[0])
			}
			env, err := newQueryEnv(global, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			details, err := env.svc.MovieDetails(cmd.Context(), id, language)
			if err != nil {
				return err
			}
			return env.print(details)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", catalog.DefaultLanguage, "ISO 639-1 language with optional region")

	return cmd
}

// SearchOptions holds options for the search command
type SearchOptions struct {
	ListFlags
	IncludeAdult bool
}

// NewSearchCommand creates the search command
func NewSearchCommand(global *GlobalOptions) *cobra.Command {
	opts := &SearchOptions{}

	cmd := &cobra.Command{
		Use:     "search <query>...",
		Short:   "Search movies by title",
		Example: `  cineflex search the matrix`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newQueryEnv(global, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			page, err := env.svc.SearchMovies(cmd.Context(), strings.Join(args, " "), catalog.SearchOptions{
				Page:         opts.Page,
				Language:     opts.Language,
				IncludeAdult: opts.IncludeAdult,
			})
			if err != nil {
				return err
			}
			return env.print(page)
		},
	}

	opts.bind(cmd, false)
	cmd.Flags().BoolVar(&opts.IncludeAdult, "include-adult", false, "Include adult titles")

	return cmd
}

// NewGenresCommand creates the genres command
func NewGenresCommand(global *GlobalOptions) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "genres",
		Short: "List movie genres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newQueryEnv(global, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			genres, err := env.svc.Genres(cmd.Context(), language)
			if err != nil {
				return err
			}
			return env.print(genres)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", catalog.DefaultLanguage, "ISO 639-1 language with optional region")

	return cmd
}

func categoryNames() string {
	cats := catalog.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
