package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/newsdesk/internal/config"
	"github.com/hitoshi/newsdesk/internal/middleware"
	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/pipeline"
	"github.com/hitoshi/newsdesk/internal/readmark"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), testLogger())
	t.Cleanup(rl.Stop)

	tracker := readmark.NewMemoryTracker()
	agg := &mockAggregator{runFunc: func(_ context.Context, country string, _ bool) (*pipeline.Result, error) {
		if country != "hungary" {
			return nil, model.ErrUnknownCountry
		}
		return &pipeline.Result{
			Country:   country,
			Status:    model.StatusFresh,
			FetchedAt: time.Now(),
			Articles: []model.Article{
				{Title: "A", Link: "https://x/1", PublishedAt: time.Now().Add(-time.Hour)},
			},
		}, nil
	}}

	return NewRouter(&RouterDeps{
		RateLimiter: rl,
		Logger:      testLogger(),
		Feeds:       config.DefaultCountryFeedSet(),
		Aggregator:  agg,
		ReadMarker:  tracker,
		Tracker:     tracker,
	})
}

func routerGet(router http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.1:1000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestRouter_Healthz はヘルスチェックが200を返すことを検証する。
func TestRouter_Healthz(t *testing.T) {
	w := routerGet(newTestRouter(t), "/healthz")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// TestRouter_HealthzPingFailure はデータベース疎通に失敗した場合に503が返ることを検証する。
func TestRouter_HealthzPingFailure(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), testLogger())
	t.Cleanup(rl.Stop)
	tracker := readmark.NewMemoryTracker()

	router := NewRouter(&RouterDeps{
		RateLimiter: rl,
		Logger:      testLogger(),
		Feeds:       config.DefaultCountryFeedSet(),
		Aggregator:  &mockAggregator{},
		ReadMarker:  tracker,
		Tracker:     tracker,
		Pinger:      func(context.Context) error { return errors.New("connection refused") },
	})

	w := routerGet(router, "/healthz")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if resp["status"] != "unavailable" {
		t.Errorf("status = %q, want unavailable", resp["status"])
	}
}

// TestRouter_Countries は設定済みの国リストが定義順で返ることを検証する。
func TestRouter_Countries(t *testing.T) {
	w := routerGet(newTestRouter(t), "/api/countries")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Countries []string `json:"countries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}

	want := []string{"hungary", "croatia", "slovenia", "bosnia", "europe"}
	if len(resp.Countries) != len(want) {
		t.Fatalf("countries = %v", resp.Countries)
	}
	for i, c := range want {
		if resp.Countries[i] != c {
			t.Errorf("countries[%d] = %q, want %q", i, resp.Countries[i], c)
		}
	}
}

// TestRouter_NewsEndpoint はニュースエンドポイントがルーティングされることを検証する。
func TestRouter_NewsEndpoint(t *testing.T) {
	w := routerGet(newTestRouter(t), "/api/news/hungary")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// TestRouter_UnknownCountry404 は未定義の国で404が返ることを検証する。
func TestRouter_UnknownCountry404(t *testing.T) {
	w := routerGet(newTestRouter(t), "/api/news/atlantis")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// TestRouter_MarkReadRoundTrip は開封記録がニュース応答のReadフラグに反映されることを検証する。
func TestRouter_MarkReadRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/read",
		strings.NewReader(`{"link":"https://x/1"}`))
	req.RemoteAddr = "203.0.113.1:1000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("開封記録に失敗: %d", w.Code)
	}

	w = routerGet(router, "/api/news/hungary")
	var resp struct {
		Groups []struct {
			Articles []model.Article `json:"articles"`
		} `json:"groups"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	found := false
	for _, g := range resp.Groups {
		for _, a := range g.Articles {
			if a.Link == "https://x/1" && a.Read {
				found = true
			}
		}
	}
	if !found {
		t.Error("開封記録がReadフラグに反映されるべき")
	}
}

// TestRouter_CORSHeaders は全ルートにCORSヘッダーが付与されることを検証する。
func TestRouter_CORSHeaders(t *testing.T) {
	w := routerGet(newTestRouter(t), "/api/countries")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}
