package moderator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tjfontaine/harassment-moderator/pkg/moderator"
)

func TestModerator_Embedded(t *testing.T) {
	cfg := moderator.DefaultConfig()
	oracle := moderator.OracleFunc(func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Linguistic Analyst"):
			return "Thought: calm\nAnalysis: neutral", nil
		case strings.Contains(prompt, "Policy Auditor"):
			return "Thought: nothing\nViolations: None", nil
		default:
			return "Thought: fine\nSeverity: Low\nAction: Ignore", nil
		}
	})

	m, err := moderator.New(
		moderator.WithConfig(cfg),
		moderator.WithMemoryStore(),
		moderator.WithOracle(oracle),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer m.Shutdown(context.Background())

	v, err := m.Classify(context.Background(), "good morning", "")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if v.Status != "safe" || v.Category != "None" {
		t.Errorf("verdict = %+v", v)
	}

	records, err := m.History(context.Background(), moderator.ListOptions{Limit: 10})
	if err != nil || len(records) != 1 || records[0].Category != "Safe" {
		t.Errorf("History() = %+v, %v", records, err)
	}
}

func TestModerator_OracleUnavailable(t *testing.T) {
	cfg := moderator.DefaultConfig()
	cfg.Oracle.MaxAttempts = 1
	oracle := moderator.OracleFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("bad credentials")
	})

	m, err := moderator.New(moderator.WithConfig(cfg), moderator.WithMemoryStore(), moderator.WithOracle(oracle))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Shutdown(context.Background())

	if _, err := m.Classify(context.Background(), "hello", ""); !moderator.IsOracleUnavailable(err) {
		t.Errorf("Classify() error = %v, want oracle unavailable", err)
	}
}
