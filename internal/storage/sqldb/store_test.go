package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &domain.Record{
		Content:  "women belong in the kitchen",
		Category: "Gender-based Harassment",
		Severity: domain.SeverityHigh,
		ReasoningChain: []domain.ReasoningEntry{
			{Agent: "Linguistic Analyst", Thought: "dismissive", Output: "gendered stereotype"},
			{Agent: "Policy Auditor", Thought: "matches", Output: "Gender-based Harassment"},
		},
		SuggestedAction: domain.ActionShadowban,
		Source:          domain.SourceManual,
	}
	if err := store.SaveRecord(ctx, rec); err != nil {
		t.Fatalf("SaveRecord() error = %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("SaveRecord() did not assign ID/CreatedAt: %+v", rec)
	}

	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if got.Content != rec.Content || got.Category != rec.Category || got.Severity != rec.Severity {
		t.Errorf("GetRecord() = %+v", got)
	}
	if got.SuggestedAction != domain.ActionShadowban || got.Source != domain.SourceManual {
		t.Errorf("GetRecord() action/source = %s/%s", got.SuggestedAction, got.Source)
	}
	if len(got.ReasoningChain) != 2 || got.ReasoningChain[1].Output != "Gender-based Harassment" {
		t.Errorf("GetRecord() reasoning chain = %+v", got.ReasoningChain)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestStore_GetRecord_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRecord(context.Background(), "missing")
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != domain.ErrorTypeNotFound {
		t.Errorf("GetRecord() error = %v, want not_found", err)
	}
}

func TestStore_ListRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fixtures := []struct {
		id       string
		category string
		source   string
	}{
		{"a", domain.CategorySafe, domain.SourceManual},
		{"b", "Hate Speech", domain.SourceInstagram},
		{"c", domain.CategorySafe, domain.SourceInstagram},
		{"d", "Cyberbullying", domain.SourceManual},
	}
	for i, f := range fixtures {
		err := store.SaveRecord(ctx, &domain.Record{
			ID:              f.id,
			Content:         "text " + f.id,
			Category:        f.category,
			Severity:        domain.SeverityLow,
			SuggestedAction: domain.ActionIgnore,
			Source:          f.source,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveRecord(%s) error = %v", f.id, err)
		}
	}

	tests := []struct {
		name string
		opts ports.ListOptions
		want []string
	}{
		{"newest first", ports.ListOptions{}, []string{"d", "c", "b", "a"}},
		{"limit", ports.ListOptions{Limit: 2}, []string{"d", "c"}},
		{"offset", ports.ListOptions{Limit: 2, Offset: 2}, []string{"b", "a"}},
		{"by source", ports.ListOptions{Source: domain.SourceInstagram}, []string{"c", "b"}},
		{"by category", ports.ListOptions{Category: domain.CategorySafe, Source: domain.SourceManual}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.ListRecords(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListRecords() error = %v", err)
			}
			var ids []string
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ListRecords() = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ListRecords() = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func TestStore_EmptyReasoningChain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &domain.Record{Content: "x", Category: domain.CategorySafe, Severity: domain.SeverityLow,
		SuggestedAction: domain.ActionIgnore, Source: domain.SourceManual}
	if err := store.SaveRecord(ctx, rec); err != nil {
		t.Fatalf("SaveRecord() error = %v", err)
	}
	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if got.ReasoningChain == nil || len(got.ReasoningChain) != 0 {
		t.Errorf("reasoning chain = %#v, want empty", got.ReasoningChain)
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("New() should reject unsupported drivers")
	}
}
