// Package moderator provides the public API for embedding the harassment
// moderation pipeline. This is the stable API for external consumers.
package moderator

import (
	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/runtime"
)

// Moderator classifies text through the four stage pipeline and can serve
// the HTTP API. See internal/runtime.Moderator for full documentation.
type Moderator = runtime.Moderator

// Option is a functional option for configuring a Moderator.
type Option = runtime.Option

// Public data types.
type (
	Config      = config.Config
	Verdict     = domain.Verdict
	Record      = domain.Record
	ItemSummary = domain.ItemSummary
	ListOptions = ports.ListOptions

	// Oracle produces text for a prompt. Implementations plug in other
	// model backends.
	Oracle = ports.Oracle
	// OracleFunc adapts a function to Oracle.
	OracleFunc = ports.OracleFunc
	// VerdictStore persists finished runs.
	VerdictStore = ports.VerdictStore
	// CommentSource supplies comments for imports.
	CommentSource = ports.CommentSource
)

// New creates a new Moderator with the given options.
// Example:
//
//	m, err := moderator.New(
//	    moderator.WithFileConfig("config.yaml"),
//	    moderator.WithSQLite("./data/moderator.db"),
//	)
//	verdict, err := m.Classify(ctx, "some comment", "")
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig = runtime.WithFileConfig
	WithConfig     = runtime.WithConfig

	// Storage
	WithSQLite      = runtime.WithSQLite
	WithPostgres    = runtime.WithPostgres
	WithMemoryStore = runtime.WithMemoryStore
	WithStore       = runtime.WithStore

	// Collaborators
	WithOracle        = runtime.WithOracle
	WithCommentSource = runtime.WithCommentSource
	WithLogger        = runtime.WithLogger
)

// DefaultConfig returns the built-in configuration defaults.
var DefaultConfig = config.Default

// IsOracleUnavailable reports whether a Classify error means the oracle
// exhausted its retry budget.
var IsOracleUnavailable = domain.IsOracleUnavailable
