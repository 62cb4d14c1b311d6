package importer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/metrics"
	"github.com/tjfontaine/harassment-moderator/internal/pipeline"
)

// Classifier runs a single input through the pipeline.
type Classifier interface {
	Run(ctx context.Context, in domain.Input) (*pipeline.Result, error)
}

// Batch runs items through a Classifier independently.
type Batch struct {
	classifier  Classifier
	concurrency int
	logger      *slog.Logger
}

// NewBatch creates a Batch running up to concurrency items at once. A
// concurrency below one runs items one at a time.
func NewBatch(c Classifier, concurrency int, logger *slog.Logger) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{classifier: c, concurrency: concurrency, logger: logger}
}

// Run classifies texts and returns one summary per text, in input order. A
// failed item carries its error in the summary and does not stop the others.
func (b *Batch) Run(ctx context.Context, texts []string, source string) []domain.ItemSummary {
	results := make([]domain.ItemSummary, len(texts))

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			results[i] = b.runOne(ctx, text, source)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (b *Batch) runOne(ctx context.Context, text, source string) domain.ItemSummary {
	metrics.ImportedItemCount.WithLabelValues(source).Inc()

	res, err := b.classifier.Run(ctx, domain.Input{Text: text, Source: source})
	if err != nil {
		b.logger.Warn("batch item failed",
			slog.String("source", source),
			slog.String("error", err.Error()))
		return domain.ItemSummary{Text: text, Error: domain.AsAPIError(err).Message}
	}
	v := res.Verdict()
	return domain.ItemSummary{
		Text:     text,
		Status:   v.Status,
		Category: v.Category,
		Severity: v.Severity,
	}
}

// Importer fetches comments from a source and classifies them.
type Importer struct {
	source   ports.CommentSource
	batch    *Batch
	maxItems int
}

// New creates an Importer taking at most maxItems comments per post.
func New(source ports.CommentSource, batch *Batch, maxItems int) *Importer {
	if maxItems < 1 {
		maxItems = DefaultMaxItems
	}
	return &Importer{source: source, batch: batch, maxItems: maxItems}
}

// Result is the outcome of importing one post.
type Result struct {
	ImportedCount int                  `json:"imported_count"`
	Results       []domain.ItemSummary `json:"results"`
}

// Import fetches the post's comments and classifies each one.
func (im *Importer) Import(ctx context.Context, postURL string) (*Result, error) {
	texts, err := im.source.FetchComments(ctx, postURL, im.maxItems)
	if err != nil {
		return nil, err
	}
	if len(texts) > im.maxItems {
		texts = texts[:im.maxItems]
	}

	results := im.batch.Run(ctx, texts, im.source.Name())
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("import cancelled: %w", err)
	}
	return &Result{ImportedCount: len(results), Results: results}, nil
}
