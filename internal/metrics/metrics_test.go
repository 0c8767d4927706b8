package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuken/m3u-epg-checker/pkg/issue"
)

func TestObserveAnalysis(t *testing.T) {
	m := New()
	m.ObserveAnalysis("basic", 20*time.Millisecond)
	m.ObserveAnalysis("basic", 30*time.Millisecond)
	m.ObserveAnalysis("advanced", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("basic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("advanced")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.analysisDuration))
}

func TestRecordIssues(t *testing.T) {
	m := New()
	m.RecordIssues(issue.List{
		{Severity: issue.Error, Source: issue.SourceM3U},
		{Severity: issue.Warning, Source: issue.SourceM3U},
		{Severity: issue.Warning, Source: issue.SourceM3U},
		{Severity: issue.Note, Source: issue.SourceCompat},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.issuesTotal.WithLabelValues("m3u", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.issuesTotal.WithLabelValues("m3u", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issuesTotal.WithLabelValues("compat", "note")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.RecordFetchFailure(issue.SourceEPG)
	m.RecordFixGenerated()
	m.RecordPurged(3)
	m.RecordPurged(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchFailures.WithLabelValues("epg")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fixesGenerated))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fixesPurged))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis("basic", time.Second)
		m.RecordIssues(issue.List{{Severity: issue.Error}})
		m.RecordFetchFailure(issue.SourceM3U)
		m.RecordFixGenerated()
		m.RecordPurged(1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordFixGenerated()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "m3uepg_fixes_generated_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
