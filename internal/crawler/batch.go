package crawler

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/cart-crawler/internal/metrics"
	"github.com/JakeFAU/cart-crawler/internal/pool"
)

// BatchRetriever drives an ItemRetriever over many identifiers through a pool.
type BatchRetriever struct {
	retriever ItemRetriever
	batchSize int
	logger    *zap.Logger
}

// NewBatchRetriever builds a BatchRetriever draining in waves of batchSize.
func NewBatchRetriever(retriever ItemRetriever, batchSize int, logger *zap.Logger) *BatchRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchRetriever{
		retriever: retriever,
		batchSize: batchSize,
		logger:    logger.Named("retriever"),
	}
}

// RetrieveAll retrieves every identifier and returns the successful records in
// completion order. Failed identifiers are logged and dropped.
func (b *BatchRetriever) RetrieveAll(ctx context.Context, ids []string) []Record {
	p := pool.New("retrieve", b.logger)
	acc := &recordAccumulator{records: make([]Record, 0, len(ids))}
	total := len(ids)

	for _, id := range ids {
		p.Submit(func(ctx context.Context) error {
			record, err := b.retriever.Retrieve(ctx, id)
			if err != nil {
				metrics.ObserveItem(metrics.OutcomeFailed)
				b.logger.Error("error retrieving cart", zap.String("id", id), zap.Error(err))
				return err
			}
			metrics.ObserveItem(metrics.OutcomeOK)
			done := acc.add(record)
			b.logger.Info(fmt.Sprintf("[%d/%d] %s", done, total, record.Title),
				zap.String("id", id),
				zap.Int("done", done),
				zap.Int("total", total),
			)
			return nil
		})
	}

	stats := p.Drain(ctx, b.batchSize)
	b.logger.Debug("retrieval finished",
		zap.Int("retrieved", stats.Succeeded),
		zap.Int("failed", stats.Failed),
	)
	return acc.snapshot()
}

type recordAccumulator struct {
	mu      sync.Mutex
	records []Record
}

// add appends a record and returns the new count.
func (a *recordAccumulator) add(r Record) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, r)
	return len(a.records)
}

func (a *recordAccumulator) snapshot() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}
