package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/pipeline"
	"github.com/tjfontaine/harassment-moderator/internal/storage/memory"
	"github.com/tjfontaine/harassment-moderator/internal/testutil"
)

func TestParseShortcode(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.instagram.com/p/C1a2B3c4D5e/", "C1a2B3c4D5e", false},
		{"https://www.instagram.com/p/C1a2B3c4D5e", "C1a2B3c4D5e", false},
		{"https://www.instagram.com/reel/XyZ123/?igsh=abc", "XyZ123", false},
		{"https://www.instagram.com/p/Abc?utm_source=ig", "Abc", false},
		{"https://www.instagram.com/someuser/", "", true},
		{"https://www.instagram.com/p/", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ParseShortcode(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseShortcode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseShortcode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func commentsServer(t *testing.T, failures int32) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.URL.Path != "/posts/ABC/comments" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var b strings.Builder
		b.WriteString(`{"comments":[`)
		for i := 0; i < 10; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, `{"id":"%d","text":"comment %d","username":"u%d"}`, i, i, i)
		}
		b.WriteString(`,{"id":"blank","text":"  "}]}`)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(b.String()))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestInstagramClient_FetchComments(t *testing.T) {
	srv, calls := commentsServer(t, 1)
	c := NewInstagramClient(config.ImporterConfig{BaseURL: srv.URL + "/posts/", AccessToken: "tok"}, nil,
		WithRetries(2, time.Millisecond, 2*time.Millisecond))

	texts, err := c.FetchComments(context.Background(), "https://www.instagram.com/p/ABC/", 7)
	if err != nil {
		t.Fatalf("FetchComments() error = %v", err)
	}
	if len(texts) != 7 {
		t.Fatalf("FetchComments() returned %d comments, want 7", len(texts))
	}
	if texts[0] != "comment 0" || texts[6] != "comment 6" {
		t.Errorf("FetchComments() = %v", texts)
	}
	if *calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", *calls)
	}
}

func TestInstagramClient_Errors(t *testing.T) {
	c := NewInstagramClient(config.ImporterConfig{}, nil)
	if _, err := c.FetchComments(context.Background(), "https://example.com/user", 7); !IsInvalidURL(err) {
		t.Errorf("invalid url error = %v", err)
	}
	if _, err := c.FetchComments(context.Background(), "https://www.instagram.com/p/ABC/", 7); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unconfigured error = %v", err)
	}

	srv, _ := commentsServer(t, 100)
	c = NewInstagramClient(config.ImporterConfig{BaseURL: srv.URL + "/posts"}, nil,
		WithRetries(1, time.Millisecond, time.Millisecond))
	if _, err := c.FetchComments(context.Background(), "https://www.instagram.com/p/ABC/", 7); err == nil {
		t.Error("FetchComments() should fail after exhausting retries")
	}
}

// fakeClassifier answers by text and can delay to shuffle completion order.
type fakeClassifier struct {
	inFlight, maxInFlight int32
}

func (f *fakeClassifier) Run(ctx context.Context, in domain.Input) (*pipeline.Result, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		m := atomic.LoadInt32(&f.maxInFlight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInFlight, m, n) {
			break
		}
	}

	if strings.HasPrefix(in.Text, "slow") {
		time.Sleep(20 * time.Millisecond)
	}
	if in.Text == "fail" {
		return nil, &domain.OracleUnavailableError{Attempts: 5, Err: errors.New("down")}
	}

	st := domain.NewPipelineState(in)
	if strings.Contains(in.Text, "bad") {
		st.PolicyViolations = []string{"Cyberbullying"}
	}
	return &pipeline.Result{State: st}, nil
}

func TestBatch_Run(t *testing.T) {
	fc := &fakeClassifier{}
	b := NewBatch(fc, 3, nil)

	texts := []string{"slow bad", "ok", "fail", "slow ok", "bad"}
	results := b.Run(context.Background(), texts, domain.SourceInstagram)

	if len(results) != len(texts) {
		t.Fatalf("Run() returned %d results, want %d", len(results), len(texts))
	}
	for i, r := range results {
		if r.Text != texts[i] {
			t.Errorf("result %d text = %q, want %q", i, r.Text, texts[i])
		}
	}
	if results[0].Status != domain.StatusHarmful || results[0].Category != "Cyberbullying" {
		t.Errorf("result 0 = %+v", results[0])
	}
	if results[1].Status != domain.StatusSafe || results[1].Category != domain.CategoryNone {
		t.Errorf("result 1 = %+v", results[1])
	}
	if results[2].Error == "" || results[2].Status != "" {
		t.Errorf("result 2 = %+v, want an error summary", results[2])
	}
	if fc.maxInFlight > 3 {
		t.Errorf("max in flight = %d, want <= 3", fc.maxInFlight)
	}
}

type staticSource struct {
	texts []string
	err   error
}

func (s staticSource) Name() string { return domain.SourceInstagram }

func (s staticSource) FetchComments(ctx context.Context, postURL string, limit int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.texts, nil
}

func TestImporter_Import(t *testing.T) {
	store := memory.New()
	orch := pipeline.New(testutil.HarmfulOracle(), pipeline.WithStore(store))

	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	im := New(staticSource{texts: texts}, NewBatch(orch, 2, nil), 7)

	res, err := im.Import(context.Background(), "https://www.instagram.com/p/ABC/")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.ImportedCount != 7 || len(res.Results) != 7 {
		t.Errorf("ImportedCount = %d, results = %d, want 7", res.ImportedCount, len(res.Results))
	}
	for _, r := range res.Results {
		if r.Status != domain.StatusHarmful || r.Severity != domain.SeverityHigh {
			t.Errorf("summary = %+v", r)
		}
	}

	saved, _ := store.ListRecords(context.Background(), ports.ListOptions{Limit: 100})
	if len(saved) != 7 {
		t.Fatalf("saved %d records, want 7", len(saved))
	}
	for _, rec := range saved {
		if rec.Source != domain.SourceInstagram {
			t.Errorf("record source = %q, want Instagram", rec.Source)
		}
	}
}

func TestImporter_SourceError(t *testing.T) {
	_, parseErr := ParseShortcode("bad")
	im := New(staticSource{err: parseErr}, NewBatch(&fakeClassifier{}, 1, nil), 7)
	if _, err := im.Import(context.Background(), "bad"); !IsInvalidURL(err) {
		t.Errorf("Import() error = %v, want invalid url", err)
	}
}

func TestParseShortcode_ErrorsAreIndependent(t *testing.T) {
	_, first := ParseShortcode("https://example.com/user")
	domain.AsAPIError(first).WithStatusCode(http.StatusTeapot)

	_, second := ParseShortcode("https://example.com/user")
	if got := domain.AsAPIError(second).HTTPStatusCode(); got != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", got)
	}
	if !IsInvalidURL(second) {
		t.Errorf("error = %v, want invalid url", second)
	}
}
