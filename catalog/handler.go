package catalog

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Route paths mounted by Handler.Register, relative to the registrar prefix.
const (
	RouteMovieList       = "/v1/movies/lists/:category"
	RouteTrendingAll     = "/v1/trending"
	RouteMovie           = "/v1/movies/:id"
	RouteMovieCredits    = "/v1/movies/:id/credits"
	RouteMovieVideos     = "/v1/movies/:id/videos"
	RouteRecommendations = "/v1/movies/:id/recommendations"
	RouteSimilar         = "/v1/movies/:id/similar"
	RouteSearch          = "/v1/search/movies"
	RouteDiscover        = "/v1/discover/movies"
	RouteGenres          = "/v1/genres"
	RouteConfiguration   = "/v1/configuration"
)

// Registrar is satisfied by *echo.Echo, *echo.Group and server route groups.
type Registrar interface {
	GET(path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route
}

// Handler serves the catalog as read-only JSON routes. Every response goes
// through the Service, so it is validated and cached the same way.
type Handler struct {
	svc *Service
}

// NewHandler creates a Handler over svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the catalog routes.
func (h *Handler) Register(r Registrar) {
	r.GET(RouteMovieList, h.movieList)
	r.GET(RouteTrendingAll, h.trendingAll)
	r.GET(RouteMovie, h.movieDetails)
	r.GET(RouteMovieCredits, h.movieCredits)
	r.GET(RouteMovieVideos, h.movieVideos)
	r.GET(RouteRecommendations, h.recommendations)
	r.GET(RouteSimilar, h.similar)
	r.GET(RouteSearch, h.search)
	r.GET(RouteDiscover, h.discover)
	r.GET(RouteGenres, h.genres)
	r.GET(RouteConfiguration, h.configuration)
}

func (h *Handler) movieList(c echo.Context) error {
	category, err := ParseCategory(c.Param("category"))
	if err != nil {
		return err
	}
	opts, err := bindListOptions(c)
	if err != nil {
		return err
	}
	return respond(c)(h.svc.MovieList(c.Request().Context(), category, opts))
}

func (h *Handler) trendingAll(c echo.Context) error {
	opts, err := bindListOptions(c)
	if err != nil {
		return err
	}
	return respond(c)(h.svc.TrendingAll(c.Request().Context(), opts))
}

func (h *Handler) movieDetails(c echo.Context) error {
	id, lang, err := bindMovie(c)
	if err != nil {
		return err
	}
	return respond(c)(h.svc.MovieDetails(c.Request().Context(), id, lang))
}

func (h *Handler) movieCredits(c echo.Context) error {
	id, lang, err := bindMovie(c)
	if err != nil {
		return err
	}
	return respond(c)(h.svc.MovieCredits(c.Request().Context(), id, lang))
}

func (h *Handler) movieVideos(c echo.Context) error {
	id, lang, err := bindMovie(c)
	if err != nil {
		return err
	}
	return respond(c)(h.svc.MovieVideos(c.Request().Context(), id, lang))
}

func (h *Handler) recommendations(c echo.Context) error {
	id, opts, err := bindRelated(c)
	if err != nil {
		return err
	}
	return respond(c)(h.svc.MovieRecommendations(c.Request().Context(), id, opts))
}

func (h *Handler) similar(c echo.Context) error {
	id, opts, err := bindRelated(c)
	if err != nil {
		return err
	}
	return respond(c)(h.svc.SimilarMovies(c.Request().Context(), id, opts))
}

func (h *Handler) search(c echo.Context) error {
	var (
		query string
		opts  SearchOptions
	)
	err := echo.QueryParamsBinder(c).
		String("query", &query).
		Int("page", &opts.Page).
		String("language", &opts.Language).
		Bool("include_adult", &opts.IncludeAdult).
		BindError()
	if err != nil {
		return invalidParam(err)
	}
	return respond(c)(h.svc.SearchMovies(c.Request().Context(), query, opts))
}

func (h *Handler) discover(c echo.Context) error {
	var (
		p      DiscoverParams
		sortBy string
	)
	b := echo.QueryParamsBinder(c).
		Int("page", &p.Page).
		String("language", &p.Language).
		String("region", &p.Region).
		String("sort_by", &sortBy).
		String("with_genres", &p.WithGenres).
		String("with_original_language", &p.WithOriginalLanguage).
		Int("year", &p.Year).
		Int("primary_release_year", &p.PrimaryReleaseYear).
		Bool("include_adult", &p.IncludeAdult).
		Bool("include_video", &p.IncludeVideo)
	if c.QueryParam("vote_average.gte") != "" {
		p.VoteAverageGTE = new(float64)
		b = b.Float64("vote_average.gte", p.VoteAverageGTE)
	}
	if c.QueryParam("vote_average.lte") != "" {
		p.VoteAverageLTE = new(float64)
		b = b.Float64("vote_average.lte", p.VoteAverageLTE)
	}
	if c.QueryParam("vote_count.gte") != "" {
		p.VoteCountGTE = new(int)
		b = b.Int("vote_count.gte", p.VoteCountGTE)
	}
	if err := b.BindError(); err != nil {
		return invalidParam(err)
	}
	p.SortBy = SortBy(sortBy)
	return respond(c)(h.svc.DiscoverMovies(c.Request().Context(), p))
}

func (h *Handler) genres(c echo.Context) error {
	return respond(c)(h.svc.Genres(c.Request().Context(), c.QueryParam("language")))
}

func (h *Handler) configuration(c echo.Context) error {
	return respond(c)(h.svc.Configuration(c.Request().Context()))
}

func bindListOptions(c echo.Context) (ListOptions, error) {
	var opts ListOptions
	err := echo.QueryParamsBinder(c).
		Int("page", &opts.Page).
		String("language", &opts.Language).
		String("region", &opts.Region).
		BindError()
	if err != nil {
		return opts, invalidParam(err)
	}
	return opts, nil
}

func bindMovie(c echo.Context) (int, string, error) {
	var (
		id   int
		lang string
	)
	if err := echo.PathParamsBinder(c).Int("id", &id).BindError(); err != nil {
		return 0, "", invalidParam(err)
	}
	if err := echo.QueryParamsBinder(c).String("language", &lang).BindError(); err != nil {
		return 0, "", invalidParam(err)
	}
	return id, lang, nil
}

func bindRelated(c echo.Context) (int, ListOptions, error) {
	var id int
	if err := echo.PathParamsBinder(c).Int("id", &id).BindError(); err != nil {
		return 0, ListOptions{}, invalidParam(err)
	}
	opts, err := bindListOptions(c)
	return id, opts, err
}

// invalidParam turns an echo binding failure into an ErrInvalidArgument error.
func invalidParam(err error) error {
	var be *echo.BindingError
	if errors.As(err, &be) {
		return fmt.Errorf("%w: invalid value for %s", ErrInvalidArgument, be.Field)
	}
	return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
}

// respond writes a successful payload or returns the error for the server error handler.
func respond(c echo.Context) func(any, error) error {
	return func(v any, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, v)
	}
}
