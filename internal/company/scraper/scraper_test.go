package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSuggestBody = `{
	"ul": [
		{
			"inn": "7707083893",
			"ogrn": "1027700132195",
			"name": "ПАО Сбербанк",
			"inactive": 0,
			"okpo": "00032537",
			"url": "/id/7980"
		},
		{
			"inn": "7736050003",
			"ogrn": "1027700070518",
			"name": "ПАО Газпром",
			"inactive": 0,
			"url": "/id/1234"
		}
	],
	"ip": []
}`

const testPageBody = `<html><body>
<h1 itemprop="legalName">ПАО Сбербанк России</h1>
<dd id="clip_kpp">773601001</dd>
</body></html>`

// newTestClient spins up a fake registry and a client pointed at it with no
// throttle delay.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 0)
}

func registryHandler(suggestStatus int, suggestBody string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ajax.php", func(w http.ResponseWriter, r *http.Request) {
		if suggestStatus != http.StatusOK {
			w.WriteHeader(suggestStatus)
			return
		}
		fmt.Fprint(w, suggestBody)
	})
	mux.HandleFunc("/id/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testPageBody)
	})
	return mux
}

func TestFetchByINN(t *testing.T) {
	client := newTestClient(t, registryHandler(http.StatusOK, testSuggestBody))

	record, err := client.FetchByINN(context.Background(), "7707083893")
	require.NoError(t, err)
	assert.Equal(t, "7707083893", record.INN)
	assert.Equal(t, "1027700132195", record.OGRN)
	// Page fields overlaid on the suggest record.
	assert.Equal(t, "773601001", record.KPP)
	assert.Equal(t, "ПАО Сбербанк России", record.FullName)
}

func TestFetchByINNMatchesExactINN(t *testing.T) {
	client := newTestClient(t, registryHandler(http.StatusOK, testSuggestBody))

	record, err := client.FetchByINN(context.Background(), "7736050003")
	require.NoError(t, err)
	assert.Equal(t, "ПАО Газпром", record.Name)
}

func TestFetchByINNNotFound(t *testing.T) {
	client := newTestClient(t, registryHandler(http.StatusOK, `{"ul":[],"ip":[]}`))

	_, err := client.FetchByINN(context.Background(), "7707083893")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, CategoryNotFound, CategoryOf(err))
}

func TestFetchByINNNoExactMatch(t *testing.T) {
	client := newTestClient(t, registryHandler(http.StatusOK, testSuggestBody))

	_, err := client.FetchByINN(context.Background(), "5047041033")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFetchByOGRN(t *testing.T) {
	client := newTestClient(t, registryHandler(http.StatusOK, testSuggestBody))

	record, err := client.FetchByOGRN(context.Background(), "1027700070518")
	require.NoError(t, err)
	assert.Equal(t, "7736050003", record.INN)
}

func TestFetchByNamePicksFirstMatch(t *testing.T) {
	client := newTestClient(t, registryHandler(http.StatusOK, testSuggestBody))

	record, err := client.FetchByName(context.Background(), "сбербанк")
	require.NoError(t, err)
	assert.Equal(t, "7707083893", record.INN)
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, registryHandler(http.StatusOK, testSuggestBody))

	results, err := client.Search(context.Background(), "банк")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "7707083893", results[0].INN)
	assert.Equal(t, "7736050003", results[1].INN)
}

func TestSearchEmptyIsNotFound(t *testing.T) {
	client := newTestClient(t, registryHandler(http.StatusOK, `{"ul":[],"ip":[]}`))

	_, err := client.Search(context.Background(), "нетакой")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestUpstreamErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "rate limited", status: http.StatusTooManyRequests},
		{name: "forbidden", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, registryHandler(tt.status, ""))

			_, err := client.FetchByINN(context.Background(), "7707083893")
			require.Error(t, err)
			assert.True(t, IsUpstream(err))

			var se *Error
			require.ErrorAs(t, err, &se)
			assert.True(t, se.Retryable)
		})
	}
}

func TestParseErrorClassification(t *testing.T) {
	client := newTestClient(t, registryHandler(http.StatusOK, "<html>captcha</html>"))

	_, err := client.FetchByINN(context.Background(), "7707083893")
	require.Error(t, err)
	assert.True(t, IsParse(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.False(t, se.Retryable)
}

func TestNetworkErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	client := New(srv.URL, 0)
	_, err := client.FetchByINN(context.Background(), "7707083893")
	require.Error(t, err)
	assert.True(t, IsUpstream(err))
}

func TestCompanyPageGoneIsUpstream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ajax.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testSuggestBody)
	})
	mux.HandleFunc("/id/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	client := newTestClient(t, mux)

	_, err := client.FetchByINN(context.Background(), "7707083893")
	require.Error(t, err)
	// The entity exists in suggest; a missing page must not surface as 404.
	assert.True(t, IsUpstream(err))
}

func TestRequestsAreThrottled(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ajax.php", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"ul":[],"ip":[]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	const interval = 60 * time.Millisecond
	client := New(srv.URL, interval)

	start := time.Now()
	for range 3 {
		_, err := client.FetchByINN(context.Background(), "7707083893")
		assert.True(t, IsNotFound(err))
	}
	// First call is immediate, the next two each wait one interval.
	assert.GreaterOrEqual(t, time.Since(start), 2*interval)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBrowserUserAgentSent(t *testing.T) {
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/ajax.php", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		fmt.Fprint(w, `{"ul":[],"ip":[]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := New(srv.URL, 0, WithUserAgents([]string{"Mozilla/5.0 (test)"}))
	_, _ = client.FetchByINN(context.Background(), "7707083893")
	assert.Equal(t, "Mozilla/5.0 (test)", gotUA)
}
