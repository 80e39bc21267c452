package imdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site"
)

func TestAdapter_ListURL(t *testing.T) {
	t.Parallel()

	a := Adapter{}

	// Charts are single pages: only page 0 exists, later indexes report
	// exhaustion so no request is spent re-fetching the same chart.
	p0, err := a.ListURL("top250", 0)
	require.NoError(t, err)
	require.Contains(t, p0, "/chart/top/")

	_, err = a.ListURL("top250", 1)
	require.ErrorIs(t, err, site.ErrNoMorePages)
	_, err = a.ListURL("popular", 5)
	require.ErrorIs(t, err, site.ErrNoMorePages)

	got, err := a.ListURL("sci_fi", 0)
	require.NoError(t, err)
	require.Contains(t, got, "genres=sci-fi")
	require.Contains(t, got, "start=1")

	got, err = a.ListURL("sci_fi", 2)
	require.NoError(t, err)
	require.Contains(t, got, "start=101")

	_, err = a.ListURL("bogus", 0)
	require.ErrorIs(t, err, site.ErrUnknownCategory)
}

func TestAdapter_ExtractListLinks_NormalizesTitleURLs(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<a href="/title/tt0111161/?ref_=chttp_t_1">The Shawshank Redemption</a>
		<a href="https://www.imdb.com/title/tt0068646/?ref_=chttp_t_2">The Godfather</a>
		<a href="/name/nm0000209/">Tim Robbins</a>
	</body></html>`)

	links := Adapter{}.ExtractListLinks("https://www.imdb.com/chart/top/", body)
	require.Equal(t, []string{
		"https://www.imdb.com/title/tt0111161/",
		"https://www.imdb.com/title/tt0068646/",
	}, links)
}

const detailHTML = `<html><body>
<h1 data-testid="hero__pageTitle"><span class="hero__primary-text">The Shawshank Redemption</span></h1>
<div data-testid="hero-title-block__original-title">Original title: The Shawshank Redemption</div>
<a href="/title/tt0111161/releaseinfo?ref_=tt_ov_rdat">1994</a>
<div data-testid="rating-button__aggregate-rating">
<span data-testid="rating-button__aggregate-rating__score"><span>9.3</span>/10</span>2.9M
</div>
<li data-testid="title-pc-principal-credit">
<span class="ipc-metadata-list-item__label">Director</span>
<a class="ipc-metadata-list-item__list-content-item" href="/name/nm0001104/">Frank Darabont</a>
</li>
<section data-testid="title-cast">
<a data-testid="title-cast-item__actor" href="/name/nm0000209/">Tim Robbins</a>
<a data-testid="title-cast-item__actor" href="/name/nm0000151/">Morgan Freeman</a>
</section>
<a href="/search/title/?genres=drama">Drama</a>
<a href="/search/title/?genres=drama&amp;explore=1">Drama</a>
<a href="/search/title/?country_of_origin=US">United States</a>
<a href="/search/title/?primary_language=en">English</a>
<li data-testid="title-techspec_runtime">Runtime 2h 22m</li>
<span data-testid="plot-xl">Two imprisoned men bond over a number of years.</span>
<div data-testid="hero-media__poster"><img src="https://m.media-amazon.com/images/M/shawshank.jpg"/></div>
</body></html>`

func TestAdapter_ExtractDetailFields(t *testing.T) {
	t.Parallel()

	raw, err := Adapter{}.ExtractDetailFields("https://www.imdb.com/title/tt0111161/", []byte(detailHTML))
	require.NoError(t, err)

	require.Equal(t, "tt0111161", raw[movie.FieldSourceID])
	require.Equal(t, "tt0111161", raw[movie.FieldIMDBID])
	require.Equal(t, "The Shawshank Redemption", raw[movie.FieldTitle])
	require.Equal(t, "1994", raw[movie.FieldYear])
	require.Equal(t, "9.3", raw[movie.FieldRating])
	require.Equal(t, "2900000", raw[movie.FieldRatingCount])
	require.Equal(t, "Frank Darabont", raw[movie.FieldDirectors])
	require.Equal(t, "Tim Robbins / Morgan Freeman", raw[movie.FieldActors])
	require.Equal(t, "Drama", raw[movie.FieldGenres], "duplicate genre links collapse")
	require.Equal(t, "United States", raw[movie.FieldCountries])
	require.Equal(t, "English", raw[movie.FieldLanguages])
	require.Equal(t, "142", raw[movie.FieldRuntime])
	require.Equal(t, "Two imprisoned men bond over a number of years.", raw[movie.FieldSummary])
	require.Contains(t, raw[movie.FieldPosterURL], "shawshank.jpg")
}

func TestAdapter_ExtractDetailFields_UnusablePage(t *testing.T) {
	t.Parallel()

	_, err := Adapter{}.ExtractDetailFields("https://www.imdb.com/чарт", []byte("<html></html>"))
	require.Error(t, err)
}

func TestParseRuntime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Runtime 2h 22m", "142"},
		{"1h", "60"},
		{"95m", "95"},
		{"Runtime", ""},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, parseRuntime(tt.in), "input %q", tt.in)
	}
}

func TestParseVotes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"9.3/10 2.9M", "2900000"},
		{"8.1/10 854K", "854000"},
		{"12,345", "12345"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, parseVotes(tt.in), "input %q", tt.in)
	}
}
