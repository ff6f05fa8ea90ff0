package allocation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lekha-erp/lekha-erp/internal/platform/db"
	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// maxConflictRetries bounds optimistic retries on serialization conflicts
// before the failure is surfaced to the caller.
const maxConflictRetries = 3

// RepositoryPort abstracts batch persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListBatches(ctx context.Context, tenantID, productID uuid.UUID) ([]Batch, error)
}

// Metrics counts short allocations; nil disables instrumentation.
type Metrics interface {
	AllocationShort()
}

// Service computes and commits batch allocations.
type Service struct {
	repo    RepositoryPort
	metrics Metrics
}

// NewService constructs the allocation service.
func NewService(repo RepositoryPort, metrics Metrics) *Service {
	return &Service{repo: repo, metrics: metrics}
}

// Preview computes the allocation against the current batch snapshot without
// touching stock, for confirmation screens in the billing layer.
func (s *Service) Preview(ctx context.Context, line Line) (Result, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Result{}, err
	}
	batches, err := s.repo.ListBatches(ctx, tenantID, line.ProductID)
	if err != nil {
		return Result{}, err
	}
	return Allocate(line, batches)
}

// Commit allocates every line and decrements the chosen batches inside one
// transaction, so the recorded allocation can never diverge from recorded
// stock. Serialization conflicts retry with fresh batch data up to a bounded
// count before surfacing as ErrConcurrencyConflict.
func (s *Service) Commit(ctx context.Context, lines []Line) ([]Result, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", shared.ErrValidation, ErrInvalidQuantity)
		}
	}
	var results []Result
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		results = nil
		lastErr = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			for _, line := range lines {
				batches, err := tx.ListBatchesForUpdate(ctx, tenantID, line.ProductID)
				if err != nil {
					return err
				}
				result, err := Allocate(line, batches)
				if err != nil {
					return err
				}
				for _, chunk := range result.Chunks {
					if chunk.BatchID == nil {
						continue
					}
					if err := tx.DecrementBatch(ctx, tenantID, *chunk.BatchID, chunk.Quantity); err != nil {
						return err
					}
				}
				results = append(results, result)
			}
			return nil
		})
		if lastErr == nil {
			break
		}
		if !db.IsSerializationFailure(lastErr) {
			return nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrConcurrencyConflict, lastErr)
	}
	if s.metrics != nil {
		for _, result := range results {
			if result.Short() > 0 {
				s.metrics.AllocationShort()
			}
		}
	}
	return results, nil
}
