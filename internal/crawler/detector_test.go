package crawler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristicDetector_Classify_BlockedStatus(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(nil, 0, nil)
	body := []byte(strings.Repeat("x", 5000))
	require.Equal(t, VerdictBlocked, d.Classify(403, body))
	require.Equal(t, VerdictBlocked, d.Classify(429, body))
	require.Equal(t, VerdictBlocked, d.Classify(503, body))
}

func TestHeuristicDetector_Classify_StatusBeatsSize(t *testing.T) {
	t.Parallel()

	// A tiny 403 is Blocked, not Empty; the status check runs first.
	d := NewHeuristicDetector(nil, 0, nil)
	require.Equal(t, VerdictBlocked, d.Classify(403, []byte("no")))
}

func TestHeuristicDetector_Classify_ShortBody(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(nil, 100, nil)
	require.Equal(t, VerdictEmpty, d.Classify(200, []byte("<html></html>")))
	require.Equal(t, VerdictEmpty, d.Classify(200, nil))
}

func TestHeuristicDetector_Classify_KeywordCaseInsensitive(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(nil, 10, []string{"captcha"})
	body := []byte("<html>" + strings.Repeat("a", 50) + " Please solve this CAPTCHA to continue</html>")
	require.Equal(t, VerdictBlocked, d.Classify(200, body))
}

func TestHeuristicDetector_Classify_ChineseKeyword(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(nil, 10, nil)
	body := []byte(strings.Repeat("p", 2000) + "有异常请求，需要安全验证")
	require.Equal(t, VerdictBlocked, d.Classify(200, body))
}

func TestHeuristicDetector_Classify_OK(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(nil, 100, nil)
	body := []byte("<html>" + strings.Repeat("real movie content ", 100) + "</html>")
	require.Equal(t, VerdictOK, d.Classify(200, body))
}

func TestHeuristicDetector_Classify_ZeroStatusUsesBodyOnly(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(nil, 100, nil)
	require.Equal(t, VerdictEmpty, d.Classify(0, []byte("short")))
}
