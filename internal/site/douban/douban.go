// Package douban implements the site adapter for movie.douban.com.
package douban

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site"
)

const (
	baseURL     = "https://movie.douban.com"
	pageStride  = 25 // Douban paginates every chart in steps of 25
	maxActors   = 8
	maxTags     = 15
	listJoinSep = " / "
)

var (
	subjectIDRe = regexp.MustCompile(`/subject/(\d+)`)
	yearRe      = regexp.MustCompile(`\((\d{4})\)`)
	digitsRe    = regexp.MustCompile(`(\d+)`)
	percentRe   = regexp.MustCompile(`(\d+\.?\d*)%`)
	countriesRe = regexp.MustCompile(`制片国家/地区:\s*([^\n]+)`)
	languagesRe = regexp.MustCompile(`语言:\s*([^\n]+)`)
	imdbRe      = regexp.MustCompile(`IMDb:\s*(tt\d+)`)
)

// chart-style categories map to their chart type query; genre categories go
// through the typerank ranking pages instead.
var chartTypes = map[string]string{
	"hot":           "/chart?type=11&start=%d",
	"new_movies":    "/chart?type=5&start=%d",
	"weekly_best":   "/chart?type=12&start=%d",
	"north_america": "/chart?type=2&start=%d",
}

var genreNames = map[string]string{
	"classic": "剧情",
	"comedy":  "喜剧",
	"action":  "动作",
	"romance": "爱情",
	"sci_fi":  "科幻",
}

// Adapter is stateless and shared read-only by every Douban job.
type Adapter struct{}

func init() { site.Register(Adapter{}) }

// Platform implements site.Adapter.
func (Adapter) Platform() string { return "douban" }

// PreferRendered implements site.Adapter. Douban list pages are server
// rendered; Direct mode works until the site starts blocking.
func (Adapter) PreferRendered() bool { return false }

// Categories implements site.Adapter.
func (Adapter) Categories() []string {
	return []string{
		"hot", "top250", "new_movies", "weekly_best",
		"north_america", "classic", "comedy", "action", "romance", "sci_fi",
	}
}

// ListURL implements site.Adapter.
func (Adapter) ListURL(category string, page int) (string, error) {
	start := page * pageStride
	if path, ok := chartTypes[category]; ok {
		return baseURL + fmt.Sprintf(path, start), nil
	}
	if category == "top250" {
		return fmt.Sprintf("%s/top250?start=%d", baseURL, start), nil
	}
	if genre, ok := genreNames[category]; ok {
		return fmt.Sprintf(
			"%s/typerank?type_name=%s&type=11&interval_id=100:90&action=&start=%d",
			baseURL, genre, start,
		), nil
	}
	return "", fmt.Errorf("douban %q: %w", category, site.ErrUnknownCategory)
}

// ExtractListLinks implements site.Adapter. Primary strategy is the pl2
// listing cells; when the markup drifts it falls back to scanning every
// subject link on the page.
func (Adapter) ExtractListLinks(baseRef string, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var links []string
	doc.Find("div.pl2 a, div.item a").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && subjectIDRe.MatchString(href) {
			links = append(links, absoluteLink(baseRef, href))
		}
	})
	if len(links) == 0 {
		doc.Find(`a[href*="/subject/"]`).Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				links = append(links, absoluteLink(baseRef, href))
			}
		})
	}
	return links
}

// ExtractDetailFields implements site.Adapter.
func (Adapter) ExtractDetailFields(finalURL string, body []byte) (movie.RawFields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	raw := movie.RawFields{}
	if m := subjectIDRe.FindStringSubmatch(finalURL); m != nil {
		raw[movie.FieldSourceID] = m[1]
	}

	raw[movie.FieldTitle] = extractTitle(doc)
	if y := yearRe.FindStringSubmatch(doc.Find("span.year").First().Text()); y != nil {
		raw[movie.FieldYear] = y[1]
	}
	raw[movie.FieldRating] = strings.TrimSpace(doc.Find(`strong[property="v:average"]`).First().Text())
	if m := digitsRe.FindStringSubmatch(doc.Find("a.rating_people").First().Text()); m != nil {
		raw[movie.FieldRatingCount] = m[1]
	}
	raw[movie.FieldStars] = extractStars(doc)
	raw[movie.FieldDirectors] = joinSelection(doc.Find(`a[rel="v:directedBy"]`), 0)
	raw[movie.FieldActors] = joinSelection(doc.Find(`a[rel="v:starring"]`), maxActors)
	raw[movie.FieldGenres] = joinSelection(doc.Find(`span[property="v:genre"]`), 0)
	raw[movie.FieldReleaseDates] = joinSelection(doc.Find(`span[property="v:initialReleaseDate"]`), 0)
	if m := digitsRe.FindStringSubmatch(doc.Find(`span[property="v:runtime"]`).First().Text()); m != nil {
		raw[movie.FieldRuntime] = m[1]
	}

	info := doc.Find("#info").Text()
	if m := countriesRe.FindStringSubmatch(info); m != nil {
		raw[movie.FieldCountries] = m[1]
	}
	if m := languagesRe.FindStringSubmatch(info); m != nil {
		raw[movie.FieldLanguages] = m[1]
	}
	if m := imdbRe.FindStringSubmatch(info); m != nil {
		raw[movie.FieldIMDBID] = m[1]
	}

	raw[movie.FieldSummary] = extractSummary(doc)
	raw[movie.FieldPosterURL] = extractPoster(doc)
	raw[movie.FieldTags] = joinSelection(doc.Find("a.tag"), maxTags)

	if raw[movie.FieldSourceID] == "" && raw[movie.FieldTitle] == "" {
		return nil, fmt.Errorf("douban detail page has no subject id or title: %s", finalURL)
	}
	return raw, nil
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find(`span[property="v:itemreviewed"]`).First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return strings.TrimSpace(yearRe.ReplaceAllString(t, ""))
	}
	t := strings.TrimSpace(doc.Find("title").First().Text())
	t = strings.TrimSuffix(t, "(豆瓣)")
	return strings.TrimSpace(yearRe.ReplaceAllString(t, ""))
}

// extractStars collects the five rating_per percentages, 5 stars first.
// Anything but a complete histogram is dropped.
func extractStars(doc *goquery.Document) string {
	var parts []string
	doc.Find("span.rating_per").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 5 {
			return false
		}
		m := percentRe.FindStringSubmatch(s.Text())
		if m == nil {
			return false
		}
		parts = append(parts, m[1])
		return true
	})
	if len(parts) != 5 {
		return ""
	}
	return strings.Join(parts, listJoinSep)
}

func extractSummary(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find(`span[property="v:summary"]`).First().Text()); t != "" {
		return t
	}
	related := doc.Find("div.related-info")
	if t := strings.TrimSpace(related.Find("span.all.hidden").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(related.Find("span.short").First().Text())
}

func extractPoster(doc *goquery.Document) string {
	if src, ok := doc.Find("#mainpic img").First().Attr("src"); ok {
		return src
	}
	if src, ok := doc.Find("a.nbgnbg img").First().Attr("src"); ok {
		return src
	}
	return ""
}

func joinSelection(sel *goquery.Selection, limit int) string {
	var parts []string
	sel.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
		return true
	})
	return strings.Join(parts, listJoinSep)
}

func absoluteLink(baseRef, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return baseURL + href
	}
	return strings.TrimSuffix(baseRef, "/") + "/" + href
}
