package crawler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeDirect struct {
	page  page
	err   error
	calls int
}

func (f *fakeDirect) Get(_ context.Context, rawURL string, _ http.Header) (page, error) {
	f.calls++
	if f.err != nil {
		return page{}, f.err
	}
	p := f.page
	if p.finalURL == "" {
		p.finalURL = rawURL
	}
	return p, nil
}

type fakeRender struct {
	page  page
	err   error
	calls int
}

func (f *fakeRender) Get(_ context.Context, rawURL string) (page, error) {
	f.calls++
	if f.err != nil {
		return page{}, f.err
	}
	p := f.page
	if p.finalURL == "" {
		p.finalURL = rawURL
	}
	return p, nil
}

func okPage() page {
	return page{body: []byte(strings.Repeat("movie content ", 200)), statusCode: 200}
}

func testDetector() Detector {
	return NewHeuristicDetector(nil, 100, nil)
}

func TestAdaptiveFetcher_DirectOK(t *testing.T) {
	t.Parallel()

	direct := &fakeDirect{page: okPage()}
	f := NewAdaptiveFetcher(direct, nil, testDetector(), nil)

	res := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com/a"}, ModeDirect)
	require.True(t, res.OK())
	require.Equal(t, ModeDirect, res.Mode)
	require.Equal(t, "https://example.com/a", res.FinalURL)
	require.Equal(t, 1, direct.calls)
}

func TestAdaptiveFetcher_BlockedVerdict(t *testing.T) {
	t.Parallel()

	direct := &fakeDirect{page: page{body: []byte(strings.Repeat("x", 2000)), statusCode: 403}}
	f := NewAdaptiveFetcher(direct, nil, testDetector(), nil)

	res := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com/a"}, ModeDirect)
	require.Equal(t, VerdictBlocked, res.Verdict)
	require.False(t, res.OK())
	require.NoError(t, res.Err)
}

func TestAdaptiveFetcher_TransportError(t *testing.T) {
	t.Parallel()

	direct := &fakeDirect{err: errors.New("connection refused")}
	f := NewAdaptiveFetcher(direct, nil, testDetector(), nil)

	res := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com/a"}, ModeDirect)
	require.Equal(t, VerdictTransportError, res.Verdict)
	require.Error(t, res.Err)
}

func TestAdaptiveFetcher_RenderedMode(t *testing.T) {
	t.Parallel()

	direct := &fakeDirect{page: okPage()}
	rendered := &fakeRender{page: okPage()}
	f := NewAdaptiveFetcher(direct, rendered, testDetector(), nil)

	res := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com/a"}, ModeRendered)
	require.True(t, res.OK())
	require.Equal(t, ModeRendered, res.Mode)
	require.Equal(t, 1, rendered.calls)
	require.Zero(t, direct.calls)
}

func TestAdaptiveFetcher_RenderFailureFallsBackToDirect(t *testing.T) {
	t.Parallel()

	direct := &fakeDirect{page: okPage()}
	rendered := &fakeRender{err: errors.New("browser crashed")}
	f := NewAdaptiveFetcher(direct, rendered, testDetector(), nil)

	res := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com/a"}, ModeRendered)
	require.True(t, res.OK())
	require.Equal(t, ModeDirect, res.Mode)
	require.Equal(t, 1, rendered.calls)
	require.Equal(t, 1, direct.calls)
}

func TestAdaptiveFetcher_NilRenderedDegradesToDirect(t *testing.T) {
	t.Parallel()

	direct := &fakeDirect{page: okPage()}
	f := NewAdaptiveFetcher(direct, nil, testDetector(), nil)

	res := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com/a"}, ModeRendered)
	require.True(t, res.OK())
	require.Equal(t, ModeDirect, res.Mode)
}

func TestAdaptiveFetcher_ModeOverride(t *testing.T) {
	t.Parallel()

	direct := &fakeDirect{page: okPage()}
	rendered := &fakeRender{page: okPage()}
	f := NewAdaptiveFetcher(direct, rendered, testDetector(), nil)

	req := FetchRequest{URL: "https://example.com/a", ModeOverride: ModeRendered}
	res := f.Fetch(context.Background(), req, ModeDirect)
	require.Equal(t, ModeRendered, res.Mode)
	require.Equal(t, 1, rendered.calls)
}
