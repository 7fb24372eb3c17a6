package catalog

import (
	"fmt"
	"strings"
)

// Default query values applied when options leave them empty.
const (
	DefaultLanguage     = "en-US"
	DefaultRegion       = "US"
	DefaultPage         = 1
	MaxPage             = 500
	MaxSearchQueryRunes = 100

	// DefaultImageBaseURL serves poster, backdrop and profile images
	DefaultImageBaseURL = "https://image.tmdb.org/t/p"
)

// Category names a curated movie list.
type Category string

const (
	CategoryPopular    Category = "popular"
	CategoryTopRated   Category = "top_rated"
	CategoryNowPlaying Category = "now_playing"
	CategoryUpcoming   Category = "upcoming"
	CategoryTrending   Category = "trending"
)

// Categories lists every supported Category.
func Categories() []Category {
	return []Category{CategoryPopular, CategoryTopRated, CategoryNowPlaying, CategoryUpcoming, CategoryTrending}
}

// ParseCategory accepts both "top_rated" and "top-rated" spellings.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown movie list %q", ErrInvalidArgument, s)
}

// SortBy is a discover ordering.
type SortBy string

const (
	SortPopularityAsc          SortBy = "popularity.asc"
	SortPopularityDesc         SortBy = "popularity.desc"
	SortReleaseDateAsc         SortBy = "release_date.asc"
	SortReleaseDateDesc        SortBy = "release_date.desc"
	SortRevenueAsc             SortBy = "revenue.asc"
	SortRevenueDesc            SortBy = "revenue.desc"
	SortPrimaryReleaseDateAsc  SortBy = "primary_release_date.asc"
	SortPrimaryReleaseDateDesc SortBy = "primary_release_date.desc"
	SortOriginalTitleAsc       SortBy = "original_title.asc"
	SortOriginalTitleDesc      SortBy = "original_title.desc"
	SortVoteAverageAsc         SortBy = "vote_average.asc"
	SortVoteAverageDesc        SortBy = "vote_average.desc"
	SortVoteCountAsc           SortBy = "vote_count.asc"
	SortVoteCountDesc          SortBy = "vote_count.desc"
)

// ImageSize is a rendition width (or height for h632) understood by the image CDN.
type ImageSize string

const (
	ImageW45      ImageSize = "w45"
	ImageW92      ImageSize = "w92"
	ImageW154     ImageSize = "w154"
	ImageW185     ImageSize = "w185"
	ImageW300     ImageSize = "w300"
	ImageW342     ImageSize = "w342"
	ImageW500     ImageSize = "w500"
	ImageW780     ImageSize = "w780"
	ImageW1280    ImageSize = "w1280"
	ImageH632     ImageSize = "h632"
	ImageOriginal ImageSize = "original"
)

// ListOptions selects a page of a movie list. Zero values take the defaults.
type ListOptions struct {
	Page     int
	Language string
	Region   string
}

func (o ListOptions) withDefaults() ListOptions {
	if o.Page == 0 {
		o.Page = DefaultPage
	}
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.Region == "" {
		o.Region = DefaultRegion
	}
	return o
}

// SearchOptions tunes a movie search. Zero values take the defaults.
type SearchOptions struct {
	Page         int
	Language     string
	IncludeAdult bool
}

// DiscoverParams filters the discover endpoint. Unset filters are omitted from the query.
type DiscoverParams struct {
	Page                 int
	Language             string
	Region               string
	SortBy               SortBy
	WithGenres           string
	WithOriginalLanguage string
	Year                 int
	PrimaryReleaseYear   int
	VoteAverageGTE       *float64
	VoteAverageLTE       *float64
	VoteCountGTE         *int
	IncludeAdult         bool
	IncludeVideo         bool
}
