package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/cineflex/cineflex/cache"
	"github.com/cineflex/cineflex/httpclient"
	"github.com/cineflex/cineflex/logger"
)

// detailsAppend lists the sub-resources embedded in a MovieDetails response
const detailsAppend = "videos,credits,images,recommendations,similar"

// Service exposes typed catalog operations over an httpclient.Client.
// It is safe for concurrent use.
type Service struct {
	client       httpclient.Client
	cache        cache.Cache
	group        singleflight.Group
	logger       logger.Logger
	validator    *Validator
	imageBaseURL string
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores successful payloads in c.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithImageBaseURL overrides DefaultImageBaseURL.
func WithImageBaseURL(base string) Option {
	return func(s *Service) {
		if base != "" {
			s.imageBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewService creates a Service. A nil logger disables logging.
func NewService(client httpclient.Client, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		client:       client,
		logger:       log,
		validator:    sharedValidator(),
		imageBaseURL: DefaultImageBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying REST client.
func (s *Service) Client() httpclient.Client {
	return s.client
}

func (s *Service) PopularMovies(ctx context.Context, opts ListOptions) (*MoviePage, error) {
	return s.movieList(ctx, "/movie/popular", opts)
}

func (s *Service) TopRatedMovies(ctx context.Context, opts ListOptions) (*MoviePage, error) {
	return s.movieList(ctx, "/movie/top_rated", opts)
}

func (s *Service) NowPlayingMovies(ctx context.Context, opts ListOptions) (*MoviePage, error) {
	return s.movieList(ctx, "/movie/now_playing", opts)
}

func (s *Service) UpcomingMovies(ctx context.Context, opts ListOptions) (*MoviePage, error) {
	return s.movieList(ctx, "/movie/upcoming", opts)
}

// TrendingMovies returns today's trending movies.
func (s *Service) TrendingMovies(ctx context.Context, opts ListOptions) (*MoviePage, error) {
	return s.movieList(ctx, "/trending/movie/day", opts)
}

// TrendingAll returns today's trending titles of every media type. Region does not apply.
func (s *Service) TrendingAll(ctx context.Context, opts ListOptions) (*MoviePage, error) {
	opts = opts.withDefaults()
	if err := s.validator.Validate(listInput{Page: opts.Page, Language: opts.Language}); err != nil {
		return nil, err
	}
	query := baseQuery(opts.Page, opts.Language)
	return fetch[*MoviePage](ctx, s, "/trending/all/day", query)
}

// MovieList dispatches to the list operation named by category.
func (s *Service) MovieList(ctx context.Context, category Category, opts ListOptions) (*MoviePage, error) {
	switch category {
	case CategoryPopular:
		return s.PopularMovies(ctx, opts)
	case CategoryTopRated:
		return s.TopRatedMovies(ctx, opts)
	case CategoryNowPlaying:
		return s.NowPlayingMovies(ctx, opts)
	case CategoryUpcoming:
		return s.UpcomingMovies(ctx, opts)
	case CategoryTrending:
		return s.TrendingMovies(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: unknown movie list %q", ErrInvalidArgument, category)
	}
}

// MovieDetails returns one movie with videos, credits, images, recommendations and similar titles embedded.
func (s *Service) MovieDetails(ctx context.Context, id int, language string) (*MovieDetails, error) {
	language = orDefault(language, DefaultLanguage)
	if err := s.validator.Validate(movieIDInput{MovieID: id, Language: language}); err != nil {
		return nil, err
	}
	query := httpclient.Params{
		"append_to_response": detailsAppend,
		"language":           language,
	}
	return fetch[*MovieDetails](ctx, s, moviePath(id, ""), query)
}

func (s *Service) MovieCredits(ctx context.Context, id int, language string) (*Credits, error) {
	language = orDefault(language, DefaultLanguage)
	if err := s.validator.Validate(movieIDInput{MovieID: id, Language: language}); err != nil {
		return nil, err
	}
	return fetch[*Credits](ctx, s, moviePath(id, "credits"), httpclient.Params{"language": language})
}

func (s *Service) MovieVideos(ctx context.Context, id int, language string) (*VideoList, error) {
	language = orDefault(language, DefaultLanguage)
	if err := s.validator.Validate(movieIDInput{MovieID: id, Language: language}); err != nil {
		return nil, err
	}
	return fetch[*VideoList](ctx, s, moviePath(id, "videos"), httpclient.Params{"language": language})
}

func (s *Service) MovieRecommendations(ctx context.Context, id int, opts ListOptions) (*MoviePage, error) {
	return s.relatedMovies(ctx, id, "recommendations", opts)
}

func (s *Service) SimilarMovies(ctx context.Context, id int, opts ListOptions) (*MoviePage, error) {
	return s.relatedMovies(ctx, id, "similar", opts)
}

// SearchMovies runs a title search. The query is trimmed before validation.
func (s *Service) SearchMovies(ctx context.Context, query string, opts SearchOptions) (*MoviePage, error) {
	query = strings.TrimSpace(query)
	page := opts.Page
	if page == 0 {
		page = DefaultPage
	}
	language := orDefault(opts.Language, DefaultLanguage)
	if err := s.validator.Validate(searchInput{Query: query, Page: page, Language: language}); err != nil {
		return nil, err
	}
	params := httpclient.Params{
		"query":         query,
		"page":          page,
		"language":      language,
		"include_adult": opts.IncludeAdult,
	}
	return fetch[*MoviePage](ctx, s, "/search/movie", params)
}

// DiscoverMovies filters the full catalog. Unset filters are left out of the query.
func (s *Service) DiscoverMovies(ctx context.Context, params DiscoverParams) (*MoviePage, error) {
	if params.Page == 0 {
		params.Page = DefaultPage
	}
	params.Language = orDefault(params.Language, DefaultLanguage)
	params.Region = orDefault(params.Region, DefaultRegion)

	in := discoverInput{
		Page:                 params.Page,
		Language:             params.Language,
		Region:               params.Region,
		SortBy:               string(params.SortBy),
		Year:                 params.Year,
		PrimaryReleaseYear:   params.PrimaryReleaseYear,
		VoteAverageGTE:       params.VoteAverageGTE,
		VoteAverageLTE:       params.VoteAverageLTE,
		VoteCountGTE:         params.VoteCountGTE,
		WithOriginalLanguage: params.WithOriginalLanguage,
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	query := baseQuery(params.Page, params.Language)
	query["region"] = params.Region
	query["include_adult"] = params.IncludeAdult
	query["include_video"] = params.IncludeVideo
	if params.SortBy != "" {
		query["sort_by"] = string(params.SortBy)
	}
	if params.WithGenres != "" {
		query["with_genres"] = params.WithGenres
	}
	if params.WithOriginalLanguage != "" {
		query["with_original_language"] = params.WithOriginalLanguage
	}
	if params.Year > 0 {
		query["year"] = params.Year
	}
	if params.PrimaryReleaseYear > 0 {
		query["primary_release_year"] = params.PrimaryReleaseYear
	}
	if params.VoteAverageGTE != nil {
		query["vote_average.gte"] = *params.VoteAverageGTE
	}
	if params.VoteAverageLTE != nil {
		query["vote_average.lte"] = *params.VoteAverageLTE
	}
	if params.VoteCountGTE != nil {
		query["vote_count.gte"] = *params.VoteCountGTE
	}
	return fetch[*MoviePage](ctx, s, "/discover/movie", query)
}

// Genres returns the movie genre list.
func (s *Service) Genres(ctx context.Context, language string) (*GenreList, error) {
	language = orDefault(language, DefaultLanguage)
	if err := s.validator.Validate(listInput{Page: DefaultPage, Language: language}); err != nil {
		return nil, err
	}
	return fetch[*GenreList](ctx, s, "/genre/movie/list", httpclient.Params{"language": language})
}

// Configuration returns the image hosting configuration.
func (s *Service) Configuration(ctx context.Context) (*Configuration, error) {
	return fetch[*Configuration](ctx, s, "/configuration", nil)
}

// ImageURL builds the CDN URL for an image path. An empty path yields an empty string
// and an empty size selects w500.
func (s *Service) ImageURL(path string, size ImageSize) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = ImageW500
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.imageBaseURL + "/" + string(size) + path
}

func (s *Service) movieList(ctx context.Context, path string, opts ListOptions) (*MoviePage, error) {
	opts = opts.withDefaults()
	if err := s.validator.Validate(listInput(opts)); err != nil {
		return nil, err
	}
	query := baseQuery(opts.Page, opts.Language)
	query["region"] = opts.Region
	return fetch[*MoviePage](ctx, s, path, query)
}

func (s *Service) relatedMovies(ctx context.Context, id int, kind string, opts ListOptions) (*MoviePage, error) {
	page := opts.Page
	if page == 0 {
		page = DefaultPage
	}
	language := orDefault(opts.Language, DefaultLanguage)
	if err := s.validator.Validate(pagedMovieInput{MovieID: id, Page: page, Language: language}); err != nil {
		return nil, err
	}
	return fetch[*MoviePage](ctx, s, moviePath(id, kind), baseQuery(page, language))
}

// fetch loads path through the cache and decodes the payload into T.
func fetch[T any](ctx context.Context, s *Service, path string, query httpclient.Params) (T, error) {
	var out T
	raw, err := s.load(ctx, path, query)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return out, nil
}

// load returns the raw payload for path. Concurrent misses for the same key share one upstream call.
func (s *Service) load(ctx context.Context, path string, query httpclient.Params) ([]byte, error) {
	key := CacheKey(path, query)

	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			return data, nil
		case errors.Is(err, cache.ErrNotFound):
		default:
			s.logger.Warn().Err(err).Str("key", key).Msg("Catalog cache read failed, fetching directly")
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		resp, err := s.client.Get(ctx, &httpclient.Request{Path: path, Query: query})
		if err != nil {
			return nil, err
		}
		if s.cache != nil && json.Valid(resp.Body) {
			if cerr := s.cache.Set(ctx, key, resp.Body); cerr != nil {
				s.logger.Warn().Err(cerr).Str("key", key).Msg("Catalog cache write failed")
			}
		}
		return resp.Body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// CacheKey renders path plus the query sorted by name.
func CacheKey(path string, query httpclient.Params) string {
	if len(query) == 0 {
		return path
	}
	values := make(url.Values, len(query))
	for k, v := range query {
		if v == nil {
			continue
		}
		values.Set(k, fmt.Sprint(v))
	}
	return path + "?" + values.Encode()
}

func baseQuery(page int, language string) httpclient.Params {
	return httpclient.Params{
		"page":          page,
		"language":      language,
		"include_adult": false,
		"include_video": false,
	}
}

func moviePath(id int, sub string) string {
	p := "/movie/" + strconv.Itoa(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
