// Package rotten implements the site adapter for www.rottentomatoes.com.
package rotten

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site"
)

const (
	baseURL     = "https://www.rottentomatoes.com"
	maxActors   = 8
	listJoinSep = " / "
)

var (
	slugRe    = regexp.MustCompile(`/m/([a-z0-9_\-]+)`)
	yearRe    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	hoursRe   = regexp.MustCompile(`(\d+)\s*h`)
	minutesRe = regexp.MustCompile(`(\d+)\s*m`)
	scriptURL = regexp.MustCompile(`(?:href|url)["']\s*:\s*["']([^"']*/m/[^"']*)`)
)

// Browse categories; everything paginates through the page query param,
// which loads results cumulatively.
var browsePaths = map[string]string{
	"in_theaters":      "/browse/movies_in_theaters/",
	"coming_soon":      "/browse/upcoming/",
	"most_popular":     "/browse/movies_at_home/audience:upright~critics:upright?sortBy=popularity",
	"action_adventure": "/browse/movies_at_home/genres:action~adventure?sortBy=popularity",
	"comedy":           "/browse/movies_at_home/genres:comedy?sortBy=popularity",
	"drama":            "/browse/movies_at_home/genres:drama?sortBy=popularity",
	"horror":           "/browse/movies_at_home/genres:horror?sortBy=popularity",
	"mystery_suspense": "/browse/movies_at_home/genres:mystery~suspense?sortBy=popularity",
	"romance":          "/browse/movies_at_home/genres:romance?sortBy=popularity",
	"sci_fi_fantasy":   "/browse/movies_at_home/genres:sci-fi~fantasy?sortBy=popularity",
}

// Adapter is stateless and shared read-only by every Rotten Tomatoes job.
type Adapter struct{}

func init() { site.Register(Adapter{}) }

// Platform implements site.Adapter.
func (Adapter) Platform() string { return "rotten_tomatoes" }

// PreferRendered implements site.Adapter. Rotten Tomatoes browse pages are
// empty shells without JavaScript, so jobs start in Rendered mode.
func (Adapter) PreferRendered() bool { return true }

// Categories implements site.Adapter.
func (Adapter) Categories() []string {
	out := make([]string, 0, len(browsePaths))
	for c := range browsePaths {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ListURL implements site.Adapter.
func (Adapter) ListURL(category string, page int) (string, error) {
	path, ok := browsePaths[category]
	if !ok {
		return "", fmt.Errorf("rotten_tomatoes %q: %w", category, site.ErrUnknownCategory)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%spage=%d", baseURL, path, sep, page+1), nil
}

// ExtractListLinks implements site.Adapter. Falls back to scraping embedded
// script payloads when the tile markup yields nothing.
func (Adapter) ExtractListLinks(_ string, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var links []string
	doc.Find(`a[href*="/m/"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			if m := slugRe.FindStringSubmatch(href); m != nil {
				links = append(links, baseURL+"/m/"+m[1])
			}
		}
	})
	if len(links) == 0 {
		for _, m := range scriptURL.FindAllSubmatch(body, -1) {
			if sm := slugRe.FindStringSubmatch(string(m[1])); sm != nil {
				links = append(links, baseURL+"/m/"+sm[1])
			}
		}
	}
	return links
}

// ExtractDetailFields implements site.Adapter. Rotten Tomatoes scores are
// percentages; the tomatometer is rescaled to the common 0-10 rating scale.
func (Adapter) ExtractDetailFields(finalURL string, body []byte) (movie.RawFields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	raw := movie.RawFields{}
	if m := slugRe.FindStringSubmatch(finalURL); m != nil {
		raw[movie.FieldSourceID] = m[1]
	}

	raw[movie.FieldTitle] = firstText(doc,
		`h1[data-qa="score-panel-movie-title"]`,
		`score-board [slot="title"]`,
		"h1",
	)
	if m := yearRe.FindString(firstText(doc,
		`[data-qa="movie-info-year"]`,
		`score-board [slot="info"]`,
		`p[data-qa="score-panel-subtitle"]`,
	)); m != "" {
		raw[movie.FieldYear] = m
	}
	if score := extractScore(doc); score != "" {
		raw[movie.FieldRating] = score
	}
	raw[movie.FieldDirectors] = joinSelection(doc.Find(`[data-qa="movie-info-director"] a`), 0)
	raw[movie.FieldActors] = joinSelection(doc.Find(`[data-qa="cast-crew"] .cast-and-crew-item a, a[data-qa="cast-member"]`), maxActors)
	if g := firstText(doc, `[data-qa="movie-info-genre"]`, `span[data-qa="genre"]`); g != "" {
		var genres []string
		for _, part := range strings.Split(g, ",") {
			if part = strings.TrimSpace(part); part != "" {
				genres = append(genres, part)
			}
		}
		raw[movie.FieldGenres] = strings.Join(genres, listJoinSep)
	}
	if rt := parseRuntime(firstText(doc, `[data-qa="movie-info-runtime"]`)); rt != "" {
		raw[movie.FieldRuntime] = rt
	}
	if rd := firstText(doc, `[data-qa="movie-info-release-date"]`); rd != "" {
		raw[movie.FieldReleaseDates] = rd
	}
	raw[movie.FieldSummary] = firstText(doc,
		`[data-qa="movie-info-synopsis"]`,
		`p[data-qa="synopsis-value"]`,
	)
	if src, ok := doc.Find(`img[data-qa="movie-poster"]`).First().Attr("src"); ok {
		raw[movie.FieldPosterURL] = src
	}

	if raw[movie.FieldSourceID] == "" && raw[movie.FieldTitle] == "" {
		return nil, fmt.Errorf("rotten tomatoes detail page has no slug or title: %s", finalURL)
	}
	return raw, nil
}

var percentRe = regexp.MustCompile(`(\d+)%?`)

// extractScore reads the tomatometer percentage and rescales it to 0-10.
func extractScore(doc *goquery.Document) string {
	text := firstText(doc,
		`score-board`,
		`[data-qa="tomatometer"]`,
		`rt-text[slot="criticsScore"]`,
	)
	if sb := doc.Find("score-board").First(); sb.Length() > 0 {
		if v, ok := sb.Attr("tomatometerscore"); ok {
			text = v
		}
	}
	m := percentRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	var pct int
	fmt.Sscanf(m[1], "%d", &pct)
	if pct < 0 || pct > 100 {
		return ""
	}
	return fmt.Sprintf("%.1f", float64(pct)/10.0)
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func parseRuntime(s string) string {
	total := 0
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		var h int
		fmt.Sscanf(m[1], "%d", &h)
		total += h * 60
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		var mins int
		fmt.Sscanf(m[1], "%d", &mins)
		total += mins
	}
	if total == 0 {
		return ""
	}
	return fmt.Sprintf("%d", total)
}

func joinSelection(sel *goquery.Selection, limit int) string {
	var parts []string
	seen := map[string]struct{}{}
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if t == "" {
			return true
		}
		if _, dup := seen[t]; dup {
			return true
		}
		seen[t] = struct{}{}
		parts = append(parts, t)
		return limit <= 0 || len(parts) < limit
	})
	return strings.Join(parts, listJoinSep)
}
