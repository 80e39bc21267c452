// Package sink persists crawl results to local files: one JSON document,
// one CSV table, and a small run-info summary per job.
package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
)

// FileSink writes crawl output under a root directory.
type FileSink struct {
	root   string
	logger *zap.Logger
}

// SavedFiles reports where one job's output landed.
type SavedFiles struct {
	JSON string `json:"json"`
	CSV  string `json:"csv"`
	Info string `json:"info"`
}

// New returns a sink rooted at dir, creating it if needed.
func New(root string, logger *zap.Logger) (*FileSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{root: root, logger: logger}, nil
}

// Save writes a job's result. Timestamped filenames keep repeated runs of
// the same platform from clobbering each other.
func (s *FileSink) Save(ctx context.Context, result movie.CrawlResult) (SavedFiles, error) {
	if err := ctx.Err(); err != nil {
		return SavedFiles{}, fmt.Errorf("context canceled: %w", err)
	}
	stamp := time.Now().UTC().Format("20060102_150405")
	base := fmt.Sprintf("%s_movies_%s", result.Platform, stamp)

	files := SavedFiles{
		JSON: filepath.Join(s.root, base+".json"),
		CSV:  filepath.Join(s.root, base+".csv"),
		Info: filepath.Join(s.root, base+"_info.json"),
	}

	if err := s.writeJSON(files.JSON, result.Records); err != nil {
		return SavedFiles{}, err
	}
	if err := s.writeCSV(files.CSV, result.Records); err != nil {
		return SavedFiles{}, err
	}
	info := map[string]any{
		"platform":         result.Platform,
		"sample_count":     len(result.Records),
		"discovered_links": result.DiscoveredLinks,
		"soft_failures":    result.SoftFailures,
		"success":          result.Success,
		"crawled_at":       time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.writeJSON(files.Info, info); err != nil {
		return SavedFiles{}, err
	}

	s.logger.Info("crawl output saved",
		zap.String("platform", result.Platform),
		zap.Int("records", len(result.Records)),
		zap.String("json", files.JSON),
		zap.String("csv", files.CSV))
	return files, nil
}

func (s *FileSink) writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var csvHeader = []string{
	"source_id", "platform", "title", "original_title", "year",
	"rating", "rating_count", "genres", "countries", "languages",
	"directors", "actors", "runtime_minutes", "summary", "poster_url",
	"rating_normalized", "rating_count_log", "runtime_normalized",
	"rating_variance", "genre_count", "actor_count", "director_count",
	"country_count",
}

func (s *FileSink) writeCSV(path string, records []movie.Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.SourceID,
			r.Platform,
			r.Title,
			r.OriginalTitle,
			optInt(r.Year),
			optFloat(r.Rating),
			optInt(r.RatingCount),
			strings.Join(r.Genres, "/"),
			strings.Join(r.Countries, "/"),
			strings.Join(r.Languages, "/"),
			strings.Join(r.Directors, "/"),
			strings.Join(r.Actors, "/"),
			optInt(r.RuntimeMinutes),
			r.Summary,
			r.PosterURL,
			formatFloat(r.Derived.RatingNormalized),
			formatFloat(r.Derived.RatingCountLog),
			formatFloat(r.Derived.RuntimeNormalized),
			formatFloat(r.Derived.RatingVariance),
			strconv.Itoa(r.Derived.GenreCount),
			strconv.Itoa(r.Derived.ActorCount),
			strconv.Itoa(r.Derived.DirectorCount),
			strconv.Itoa(r.Derived.CountryCount),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
