package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/importer"
	"github.com/tjfontaine/harassment-moderator/internal/pipeline"
	"github.com/tjfontaine/harassment-moderator/internal/server"
	"github.com/tjfontaine/harassment-moderator/internal/storage/memory"
	"github.com/tjfontaine/harassment-moderator/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type classifierFunc func(ctx context.Context, in domain.Input) (*pipeline.Result, error)

func (f classifierFunc) Run(ctx context.Context, in domain.Input) (*pipeline.Result, error) {
	return f(ctx, in)
}

type importerFunc func(ctx context.Context, postURL string) (*importer.Result, error)

func (f importerFunc) Import(ctx context.Context, postURL string) (*importer.Result, error) {
	return f(ctx, postURL)
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	s := server.New(config.ServerConfig{}, discard)
	h.Register(s.Router)
	ts := httptest.NewServer(s.Router)
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHandler_Status(t *testing.T) {
	ts := newTestServer(t, NewHandler(nil))

	resp := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[StatusResponse](t, resp)
	if body.Status != "active" || body.Service != ServiceName {
		t.Errorf("body = %+v", body)
	}

	if resp := get(t, ts.URL+"/healthz"); resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}
	resp = get(t, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "go_goroutines") {
		t.Error("/metrics missing default collectors")
	}
}

func TestHandler_Analyze(t *testing.T) {
	tests := []struct {
		name         string
		oracle       *testutil.StageOracle
		wantStatus   string
		wantCategory string
		wantSeverity domain.Severity
		wantAction   domain.Action
		wantRecord   string
	}{
		{
			name:         "harmful",
			oracle:       testutil.HarmfulOracle(),
			wantStatus:   domain.StatusHarmful,
			wantCategory: "Gender-based Harassment",
			wantSeverity: domain.SeverityHigh,
			wantAction:   domain.ActionShadowban,
			wantRecord:   "Gender-based Harassment",
		},
		{
			name:         "safe",
			oracle:       testutil.SafeOracle(),
			wantStatus:   domain.StatusSafe,
			wantCategory: domain.CategoryNone,
			wantSeverity: domain.SeverityLow,
			wantAction:   domain.ActionIgnore,
			wantRecord:   domain.CategorySafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			p := pipeline.New(tt.oracle, pipeline.WithStore(store), pipeline.WithLogger(discard))
			ts := newTestServer(t, NewHandler(p, WithStore(store)))

			resp := post(t, ts.URL+"/api/analyze", `{"text":"some comment"}`)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			v := decode[domain.Verdict](t, resp)
			if v.Status != tt.wantStatus || v.Category != tt.wantCategory {
				t.Errorf("verdict = (%s, %s), want (%s, %s)", v.Status, v.Category, tt.wantStatus, tt.wantCategory)
			}
			if v.Severity != tt.wantSeverity || v.SuggestedAction != tt.wantAction {
				t.Errorf("decision = (%s, %s), want (%s, %s)", v.Severity, v.SuggestedAction, tt.wantSeverity, tt.wantAction)
			}
			if len(v.ReasoningChain) != 4 {
				t.Errorf("reasoning chain length = %d, want 4", len(v.ReasoningChain))
			}

			hist := decode[[]*domain.Record](t, get(t, ts.URL+"/api/history"))
			if len(hist) != 1 {
				t.Fatalf("history records = %d, want 1", len(hist))
			}
			rec := hist[0]
			if rec.Category != tt.wantRecord || rec.Source != domain.SourceManual || rec.Content != "some comment" {
				t.Errorf("record = %+v", rec)
			}

			detail := get(t, ts.URL+"/api/history/"+rec.ID)
			if detail.StatusCode != http.StatusOK {
				t.Errorf("record detail status = %d", detail.StatusCode)
			}
		})
	}
}

func TestHandler_AnalyzeErrors(t *testing.T) {
	unavailable := classifierFunc(func(ctx context.Context, in domain.Input) (*pipeline.Result, error) {
		return nil, &domain.OracleUnavailableError{Attempts: 5, Err: errors.New("503 from upstream")}
	})
	p := pipeline.New(testutil.SafeOracle(), pipeline.WithLogger(discard))

	tests := []struct {
		name       string
		classifier importer.Classifier
		body       string
		wantCode   int
		wantType   domain.ErrorType
	}{
		{"oracle unavailable", unavailable, `{"text":"hi"}`, http.StatusServiceUnavailable, domain.ErrorTypeOracleUnavailable},
		{"empty text", p, `{"text":"  "}`, http.StatusBadRequest, domain.ErrorTypeInvalidRequest},
		{"bad json", p, `{"text":`, http.StatusBadRequest, domain.ErrorTypeInvalidRequest},
		{"no body", p, ``, http.StatusBadRequest, domain.ErrorTypeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, NewHandler(tt.classifier))
			resp := post(t, ts.URL+"/api/analyze", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			body := decode[server.ErrorBody](t, resp)
			if body.Error == nil || body.Error.Type != tt.wantType {
				t.Errorf("error = %+v, want type %s", body.Error, tt.wantType)
			}
		})
	}
}

func TestHandler_AnalyzeSource(t *testing.T) {
	var got domain.Input
	c := classifierFunc(func(ctx context.Context, in domain.Input) (*pipeline.Result, error) {
		got = in
		return pipeline.New(testutil.SafeOracle(), pipeline.WithLogger(discard)).Run(ctx, in)
	})
	ts := newTestServer(t, NewHandler(c))

	post(t, ts.URL+"/api/analyze", `{"text":"hello","source":"Discord"}`)
	if got.Source != "Discord" {
		t.Errorf("source = %q, want Discord", got.Source)
	}
	post(t, ts.URL+"/api/analyze", `{"text":"hello"}`)
	if got.Source != domain.SourceManual {
		t.Errorf("source = %q, want %s", got.Source, domain.SourceManual)
	}
}

func TestHandler_Import(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		im := importerFunc(func(ctx context.Context, postURL string) (*importer.Result, error) {
			return &importer.Result{ImportedCount: 1, Results: []domain.ItemSummary{
				{Text: "nice post", Status: domain.StatusSafe, Category: domain.CategoryNone, Severity: domain.SeverityLow},
			}}, nil
		})
		ts := newTestServer(t, NewHandler(nil, WithImporter(im)))

		resp := post(t, ts.URL+"/api/import-instagram", `{"url":"https://www.instagram.com/p/ABC123/"}`)
		body := decode[ImportResponse](t, resp)
		if body.Status != "success" || body.ImportedCount != 1 || len(body.Results) != 1 {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("invalid url", func(t *testing.T) {
		im := importerFunc(func(ctx context.Context, postURL string) (*importer.Result, error) {
			_, err := importer.ParseShortcode(postURL)
			return nil, err
		})
		ts := newTestServer(t, NewHandler(nil, WithImporter(im)))

		resp := post(t, ts.URL+"/api/import-instagram", `{"url":"https://example.com/x"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		body := decode[ImportResponse](t, resp)
		if body.Status != "error" || body.Message != "Invalid Instagram URL. Must contain /p/ or /reel/" {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		ts := newTestServer(t, NewHandler(nil))
		resp := post(t, ts.URL+"/api/import-instagram", `{"url":"https://www.instagram.com/p/ABC/"}`)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", resp.StatusCode)
		}
	})
}

func TestHandler_History(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		source := domain.SourceManual
		if i%3 == 0 {
			source = domain.SourceInstagram
		}
		if err := store.SaveRecord(ctx, &domain.Record{Content: "c", Category: domain.CategorySafe, Source: source}); err != nil {
			t.Fatal(err)
		}
	}
	ts := newTestServer(t, NewHandler(nil, WithStore(store)))

	tests := []struct {
		query     string
		wantCode  int
		wantCount int
	}{
		{"", http.StatusOK, DefaultHistoryLimit},
		{"?limit=5", http.StatusOK, 5},
		{"?limit=0", http.StatusOK, DefaultHistoryLimit},
		{"?limit=1000", http.StatusOK, 30},
		{"?limit=100&offset=25", http.StatusOK, 5},
		{"?limit=100&source=Instagram", http.StatusOK, 10},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := get(t, ts.URL+"/api/history"+tt.query)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			records := decode[[]*domain.Record](t, resp)
			if len(records) != tt.wantCount {
				t.Errorf("records = %d, want %d", len(records), tt.wantCount)
			}
		})
	}

	if resp := get(t, ts.URL+"/api/history/missing"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", resp.StatusCode)
	}
}

func TestHandler_HistoryIsBareArray(t *testing.T) {
	ts := newTestServer(t, NewHandler(nil, WithStore(memory.New())))

	resp := get(t, ts.URL+"/api/history")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(body)); got != "[]" {
		t.Errorf("empty history body = %s, want []", got)
	}
}

func TestHandler_HistoryWithoutStore(t *testing.T) {
	ts := newTestServer(t, NewHandler(nil))
	if resp := get(t, ts.URL+"/api/history"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHandler_Stats(t *testing.T) {
	ts := newTestServer(t, NewHandler(nil, WithStore(memory.New())))
	body := decode[StatsResponse](t, get(t, ts.URL+"/api/stats"))
	if !body.Storage || body.Importer || body.GoVersion == "" {
		t.Errorf("stats = %+v", body)
	}
}
