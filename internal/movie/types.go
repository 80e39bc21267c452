// Package movie defines the record types shared across the crawl pipeline.
package movie

// RawFields is the untyped field map a site adapter extracts from one detail
// page. List-valued fields are carried as "a / b / c" joined strings and
// split by the normalizer. A RawFields is consumed immediately; nothing
// holds onto it after normalization.
type RawFields map[string]string

// Well-known RawFields keys. Adapters populate the subset their platform
// exposes; absent keys normalize to empty values.
const (
	FieldSourceID      = "source_id"
	FieldTitle         = "title"
	FieldOriginalTitle = "original_title"
	FieldYear          = "year"
	FieldRating        = "rating"
	FieldRatingCount   = "rating_count"
	FieldStars         = "star_distribution" // five "/" joined percentages, 5 stars first
	FieldGenres        = "genres"
	FieldCountries     = "countries"
	FieldLanguages     = "languages"
	FieldDirectors     = "directors"
	FieldActors        = "actors"
	FieldReleaseDates  = "release_dates"
	FieldRuntime       = "runtime_minutes"
	FieldSummary       = "summary"
	FieldPosterURL     = "poster_url"
	FieldTags          = "tags"
	FieldIMDBID        = "imdb_id"
)

// Record is the canonical normalized movie. Optional scalars are pointers so
// "absent" and "zero" stay distinguishable in the serialized output. Slice
// fields are never nil.
type Record struct {
	SourceID      string   `json:"source_id"`
	Platform      string   `json:"platform"`
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title,omitempty"`
	Year          *int     `json:"year,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	RatingCount   *int     `json:"rating_count,omitempty"`

	// RatingDistribution holds bucket percentages, highest star first.
	// Empty when the platform exposes no breakdown.
	RatingDistribution []float64 `json:"rating_distribution,omitempty"`

	Genres       []string `json:"genres"`
	Countries    []string `json:"countries"`
	Languages    []string `json:"languages"`
	Directors    []string `json:"directors"`
	Actors       []string `json:"actors"`
	Tags         []string `json:"tags"`
	ReleaseDates []string `json:"release_dates"`

	RuntimeMinutes *int   `json:"runtime_minutes,omitempty"`
	Summary        string `json:"summary,omitempty"`
	PosterURL      string `json:"poster_url,omitempty"`
	IMDBID         string `json:"imdb_id,omitempty"`

	// PosterPath is back-filled by the poster collaborator after the
	// record is collected; it is the only post-hoc mutation allowed.
	PosterPath string `json:"poster_path,omitempty"`

	Derived DerivedFeatures `json:"derived"`
}

// DerivedFeatures are pure functions of the validated fields, computed once
// by the normalizer for downstream recommenders.
type DerivedFeatures struct {
	RatingNormalized  float64 `json:"rating_normalized"`
	RatingCountLog    float64 `json:"rating_count_log"`
	RuntimeNormalized float64 `json:"runtime_normalized"`
	RatingVariance    float64 `json:"rating_variance"`
	GenreCount        int     `json:"genre_count"`
	ActorCount        int     `json:"actor_count"`
	DirectorCount     int     `json:"director_count"`
	CountryCount      int     `json:"country_count"`
}

// CrawlResult is what one crawl job hands back to its caller. Partial data
// with counters, never an error by itself: callers inspect Success and
// SoftFailures to judge usability.
type CrawlResult struct {
	Platform        string   `json:"platform"`
	Records         []Record `json:"records"`
	DiscoveredLinks int      `json:"discovered_links"`
	SoftFailures    int      `json:"soft_failures"`
	Success         bool     `json:"success"`
	ErrorText       string   `json:"error_text,omitempty"`
}
