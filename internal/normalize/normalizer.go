// Package normalize converts raw scraped field maps into validated movie
// records. Parsing and validation happen exactly once here, so downstream
// consumers never re-check field shapes.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
)

// ErrRejected wraps every normalization rejection so callers can count
// rejects without string matching.
var ErrRejected = errors.New("record rejected")

const (
	minYear           = 1880
	defaultMaxSummary = 500
	listSeparator     = "/"
	truncationMarker  = "..."
	runtimeReference  = 180.0 // minutes; full-length epic
	maxRuntimeScale   = 2.0
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Config tunes normalization limits.
type Config struct {
	MaxSummaryLen int // rune cap for summaries, default 500
	MaxActors     int // list cap, 0 = unlimited
	MaxTags       int // list cap, 0 = unlimited
}

// Normalizer is a pure transformer; one instance is safe to share across
// all jobs.
type Normalizer struct {
	cfg Config
	now func() time.Time
}

// New builds a Normalizer.
func New(cfg Config) *Normalizer {
	if cfg.MaxSummaryLen <= 0 {
		cfg.MaxSummaryLen = defaultMaxSummary
	}
	return &Normalizer{cfg: cfg, now: time.Now}
}

// Normalize validates and coerces one raw field map. Identical input yields
// an identical record. The only hard requirement is identity: a record with
// neither a source id nor a title is rejected; a source id alone suffices.
func (n *Normalizer) Normalize(platform string, raw movie.RawFields) (movie.Record, error) {
	sourceID := cleanText(raw[movie.FieldSourceID])
	title := cleanText(raw[movie.FieldTitle])
	if sourceID == "" && title == "" {
		return movie.Record{}, fmt.Errorf("%w: no source id and no title", ErrRejected)
	}

	rec := movie.Record{
		SourceID:      sourceID,
		Platform:      platform,
		Title:         title,
		OriginalTitle: cleanText(raw[movie.FieldOriginalTitle]),
		Genres:        splitList(raw[movie.FieldGenres], 0),
		Countries:     splitList(raw[movie.FieldCountries], 0),
		Languages:     splitList(raw[movie.FieldLanguages], 0),
		Directors:     splitList(raw[movie.FieldDirectors], 0),
		Actors:        splitList(raw[movie.FieldActors], n.cfg.MaxActors),
		Tags:          splitList(raw[movie.FieldTags], n.cfg.MaxTags),
		ReleaseDates:  splitList(raw[movie.FieldReleaseDates], 0),
		Summary:       n.capSummary(cleanText(raw[movie.FieldSummary])),
		PosterURL:     cleanText(raw[movie.FieldPosterURL]),
		IMDBID:        cleanText(raw[movie.FieldIMDBID]),
	}

	rec.Year = n.parseYear(raw[movie.FieldYear])
	rec.Rating = parseRating(raw[movie.FieldRating])
	rec.RatingCount = parseCount(raw[movie.FieldRatingCount])
	rec.RuntimeMinutes = parseRuntime(raw[movie.FieldRuntime])
	rec.RatingDistribution = parseDistribution(raw[movie.FieldStars])
	rec.Derived = deriveFeatures(rec)
	return rec, nil
}

func (n *Normalizer) parseYear(s string) *int {
	v, err := strconv.Atoi(cleanText(s))
	if err != nil {
		return nil
	}
	maxYear := n.now().Year() + 2
	if v < minYear || v > maxYear {
		return nil
	}
	return &v
}

func parseRating(s string) *float64 {
	v, err := strconv.ParseFloat(cleanText(s), 64)
	if err != nil || v < 0 || v > 10 {
		return nil
	}
	return &v
}

func parseCount(s string) *int {
	v, err := strconv.Atoi(cleanText(s))
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

func parseRuntime(s string) *int {
	v, err := strconv.Atoi(cleanText(s))
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// parseDistribution accepts the five "/"-joined bucket percentages,
// highest star first. Any unparseable bucket discards the whole
// distribution; a partial histogram is worse than none.
func parseDistribution(s string) []float64 {
	s = cleanText(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, listSeparator)
	if len(parts) != 5 {
		return nil
	}
	out := make([]float64, 0, 5)
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 || v > 100 {
			return nil
		}
		out = append(out, v)
	}
	return out
}

func (n *Normalizer) capSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= n.cfg.MaxSummaryLen {
		return s
	}
	return string(runes[:n.cfg.MaxSummaryLen]) + truncationMarker
}

// deriveFeatures computes the recommender input features from validated
// fields only.
func deriveFeatures(rec movie.Record) movie.DerivedFeatures {
	d := movie.DerivedFeatures{
		GenreCount:    len(rec.Genres),
		ActorCount:    len(rec.Actors),
		DirectorCount: len(rec.Directors),
		CountryCount:  len(rec.Countries),
	}
	if rec.Rating != nil {
		d.RatingNormalized = *rec.Rating / 10.0
	}
	if rec.RatingCount != nil {
		d.RatingCountLog = math.Log1p(float64(*rec.RatingCount))
	}
	if rec.RuntimeMinutes != nil {
		d.RuntimeNormalized = math.Min(float64(*rec.RuntimeMinutes)/runtimeReference, maxRuntimeScale)
	}
	d.RatingVariance = ratingVariance(rec.RatingDistribution)
	return d
}

// ratingVariance is the weighted variance of the star histogram against
// star values 5..1, using bucket percentages as weights.
func ratingVariance(dist []float64) float64 {
	if len(dist) != 5 {
		return 0
	}
	total := 0.0
	for _, w := range dist {
		total += w
	}
	if total <= 0 {
		return 0
	}
	mean := 0.0
	for i, w := range dist {
		star := float64(5 - i)
		mean += star * (w / total)
	}
	variance := 0.0
	for i, w := range dist {
		star := float64(5 - i)
		variance += (w / total) * (star - mean) * (star - mean)
	}
	return variance
}

// cleanText trims and collapses runs of whitespace to single spaces.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// splitList turns an "a / b / c" joined field into a trimmed list with
// empty entries removed, preserving order. limit > 0 caps the list length.
func splitList(s string, limit int) []string {
	out := []string{}
	for _, part := range strings.Split(s, listSeparator) {
		part = cleanText(part)
		if part == "" {
			continue
		}
		out = append(out, part)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
