package catalog

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/talentmatch/internal/ai"
	"github.com/spigell/talentmatch/internal/models"
	"github.com/spigell/talentmatch/internal/vectorindex"
)

const (
	defaultConcurrency = 4
	defaultBatchSize   = 16
)

// IndexOptions controls how job texts are embedded.
type IndexOptions struct {
	Concurrency int
	BatchSize   int
}

// Index pairs postings with their vectors. It is read-only after BuildIndex
// and safe for concurrent use.
type Index struct {
	jobs    []*models.JobPosting
	vectors *vectorindex.Index
}

// Match is one posting returned by Nearest.
type Match struct {
	Job      *models.JobPosting
	Distance float32
}

// BuildIndex embeds every posting of cat and indexes the vectors.
func BuildIndex(ctx context.Context, cat *Catalog, embedder ai.Embedder, opts IndexOptions, logger *zap.Logger) (*Index, error) {
	if cat == nil {
		return nil, errors.New("catalog is nil")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	jobs := make([]*models.JobPosting, len(cat.Jobs))
	ids := make([]string, len(cat.Jobs))
	texts := make([]string, len(cat.Jobs))
	for i := range cat.Jobs {
		job := cat.Jobs[i]
		jobs[i] = &job
		ids[i] = job.ID
		texts[i] = job.EmbeddingText()
	}

	vectors := make([][]float32, len(texts))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for start := 0; start < len(texts); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(texts))
		g.Go(func() error {
			batch, err := embedder.EmbedBatch(gCtx, texts[start:end])
			if err != nil {
				return errors.Wrapf(err, "embed jobs %d-%d", start, end-1)
			}
			if len(batch) != end-start {
				return errors.Newf("embedder returned %d vectors for %d jobs", len(batch), end-start)
			}
			mu.Lock()
			copy(vectors[start:end], batch)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	vi, err := vectorindex.Build(ids, vectors)
	if err != nil {
		return nil, errors.Wrap(err, "build vector index")
	}

	logger.Info("job catalog indexed",
		zap.Int("jobs", vi.Len()),
		zap.Int("dimension", vi.Dim()),
		zap.String("embedding_model", embedder.Model()),
	)

	return &Index{jobs: jobs, vectors: vi}, nil
}

// Len returns the number of indexed postings.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.jobs)
}

// Jobs returns the indexed postings in catalog order.
func (idx *Index) Jobs() []*models.JobPosting {
	if idx == nil {
		return nil
	}
	return append([]*models.JobPosting(nil), idx.jobs...)
}

// Nearest returns up to k postings closest to query. k is clamped to Len().
func (idx *Index) Nearest(query []float32, k int) ([]Match, error) {
	if idx.Len() == 0 {
		return nil, nil
	}

	results, err := idx.vectors.Search(query, k)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{Job: idx.jobs[r.Position], Distance: r.Distance})
	}
	return matches, nil
}
