// Package imdb implements the site adapter for www.imdb.com.
package imdb

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site"
)

const (
	baseURL      = "https://www.imdb.com"
	searchStride = 50 // IMDB search results paginate in steps of 50
	maxActors    = 8
	listJoinSep  = " / "
)

var (
	titleIDRe = regexp.MustCompile(`/title/(tt\d+)`)
	yearRe    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	hoursRe   = regexp.MustCompile(`(\d+)\s*h`)
	minutesRe = regexp.MustCompile(`(\d+)\s*m`)
	votesRe   = regexp.MustCompile(`([\d.,]+)\s*([KM]?)`)
)

// Chart categories are single ranking pages; genre categories are search
// queries that paginate via the start parameter.
var chartURLs = map[string]string{
	"top250":      baseURL + "/chart/top/?ref_=nv_mv_250",
	"popular":     baseURL + "/chart/moviemeter/?ref_=nv_mv_mpm",
	"now_playing": baseURL + "/chart/boxoffice/?ref_=nv_ch_BO",
	"upcoming":    baseURL + "/coming-soon/?ref_=nv_mv_cs",
}

var genreSlugs = map[string]string{
	"action":   "action",
	"comedy":   "comedy",
	"drama":    "drama",
	"horror":   "horror",
	"sci_fi":   "sci-fi",
	"thriller": "thriller",
}

// Adapter is stateless and shared read-only by every IMDB job.
type Adapter struct{}

func init() { site.Register(Adapter{}) }

// Platform implements site.Adapter.
func (Adapter) Platform() string { return "imdb" }

// PreferRendered implements site.Adapter. IMDB charts hydrate client-side
// past the first screen, but Direct mode is still worth the first attempt.
func (Adapter) PreferRendered() bool { return false }

// Categories implements site.Adapter.
func (Adapter) Categories() []string {
	return []string{
		"top250", "popular", "now_playing", "upcoming",
		"action", "comedy", "drama", "horror", "sci_fi", "thriller",
	}
}

// ListURL implements site.Adapter. Chart categories are a single page, so
// any later page index reports exhaustion instead of re-yielding the URL.
func (Adapter) ListURL(category string, page int) (string, error) {
	if u, ok := chartURLs[category]; ok {
		if page > 0 {
			return "", fmt.Errorf("imdb %q page %d: %w", category, page, site.ErrNoMorePages)
		}
		return u, nil
	}
	if slug, ok := genreSlugs[category]; ok {
		return fmt.Sprintf(
			"%s/search/title/?genres=%s&sort=user_rating,desc&title_type=feature&num_votes=25000,&start=%d",
			baseURL, slug, page*searchStride+1,
		), nil
	}
	return "", fmt.Errorf("imdb %q: %w", category, site.ErrUnknownCategory)
}

// ExtractListLinks implements site.Adapter. Strips query junk (ref_
// tracking) so the same title always canonicalizes identically.
func (Adapter) ExtractListLinks(_ string, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var links []string
	doc.Find(`a[href*="/title/tt"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := titleIDRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		links = append(links, fmt.Sprintf("%s/title/%s/", baseURL, m[1]))
	})
	return links
}

// ExtractDetailFields implements site.Adapter.
func (Adapter) ExtractDetailFields(finalURL string, body []byte) (movie.RawFields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	raw := movie.RawFields{}
	if m := titleIDRe.FindStringSubmatch(finalURL); m != nil {
		raw[movie.FieldSourceID] = m[1]
		raw[movie.FieldIMDBID] = m[1]
	}

	raw[movie.FieldTitle] = firstText(doc,
		`h1[data-testid="hero__pageTitle"] span.hero__primary-text`,
		`h1[data-testid="hero-title-block__title"]`,
		"h1",
	)
	if t := strings.TrimSpace(doc.Find(`div[data-testid="hero-title-block__original-title"]`).Text()); t != "" {
		raw[movie.FieldOriginalTitle] = strings.TrimSpace(strings.TrimPrefix(t, "Original title:"))
	}
	if m := yearRe.FindString(firstText(doc, `a[href*="releaseinfo"]`, "h1 span")); m != "" {
		raw[movie.FieldYear] = m
	}
	raw[movie.FieldRating] = firstText(doc,
		`span[data-testid="rating-button__aggregate-rating__score"] span`,
		`span[data-testid="rating-button__aggregate-rating__score"]`,
	)
	if count := parseVotes(doc.Find(`div[data-testid="rating-button__aggregate-rating"]`).Text()); count != "" {
		raw[movie.FieldRatingCount] = count
	}

	raw[movie.FieldDirectors] = principalCredits(doc, "Director")
	raw[movie.FieldActors] = castList(doc)
	raw[movie.FieldGenres] = joinLinks(doc, `a[href*="genres="]`, 0)
	raw[movie.FieldCountries] = joinLinks(doc, `a[href*="country_of_origin="]`, 0)
	raw[movie.FieldLanguages] = joinLinks(doc, `a[href*="primary_language="]`, 0)
	if runtime := parseRuntime(doc.Find(`li[data-testid="title-techspec_runtime"]`).Text()); runtime != "" {
		raw[movie.FieldRuntime] = runtime
	}
	raw[movie.FieldSummary] = firstText(doc,
		`span[data-testid="plot-xl"]`,
		`span[data-testid="plot-l"]`,
		`p[data-testid="plot"]`,
	)
	if src, ok := doc.Find(`div[data-testid="hero-media__poster"] img`).First().Attr("src"); ok {
		raw[movie.FieldPosterURL] = src
	}

	if raw[movie.FieldSourceID] == "" && raw[movie.FieldTitle] == "" {
		return nil, fmt.Errorf("imdb detail page has no title id or title: %s", finalURL)
	}
	return raw, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// principalCredits reads the hero credit rows, which IMDB labels by role.
func principalCredits(doc *goquery.Document, role string) string {
	var names []string
	doc.Find(`li[data-testid="title-pc-principal-credit"]`).Each(func(_ int, s *goquery.Selection) {
		label := s.Find("span.ipc-metadata-list-item__label").First().Text()
		if !strings.Contains(label, role) {
			return
		}
		s.Find("a.ipc-metadata-list-item__list-content-item").Each(func(_ int, a *goquery.Selection) {
			if t := strings.TrimSpace(a.Text()); t != "" {
				names = append(names, t)
			}
		})
	})
	return strings.Join(names, listJoinSep)
}

func castList(doc *goquery.Document) string {
	var names []string
	doc.Find(`section[data-testid="title-cast"] a[data-testid="title-cast-item__actor"]`).
		EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= maxActors {
				return false
			}
			if t := strings.TrimSpace(s.Text()); t != "" {
				names = append(names, t)
			}
			return true
		})
	return strings.Join(names, listJoinSep)
}

func joinLinks(doc *goquery.Document, selector string, limit int) string {
	var parts []string
	seen := map[string]struct{}{}
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
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

// parseRuntime converts "2h 22m" style tech specs to whole minutes.
func parseRuntime(s string) string {
	total := 0
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		total += h * 60
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.Atoi(m[1])
		total += mins
	}
	if total == 0 {
		return ""
	}
	return strconv.Itoa(total)
}

// parseVotes converts "2.9M" / "854K" / "12,345" vote counts to an integer
// string. The rating block's text leads with the score ("9.3/10"), so the
// vote count is the last numeric token, usually the only suffixed one.
func parseVotes(s string) string {
	matches := votesRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return ""
	}
	m := matches[len(matches)-1]
	for _, cand := range matches {
		if cand[2] != "" {
			m = cand
			break
		}
	}
	num, err := strconv.ParseFloat(strings.Trim(strings.ReplaceAll(m[1], ",", ""), "."), 64)
	if err != nil {
		return ""
	}
	switch m[2] {
	case "K":
		num *= 1_000
	case "M":
		num *= 1_000_000
	}
	return strconv.Itoa(int(num))
}
