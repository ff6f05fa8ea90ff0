package allocation

import (
	"sort"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// Allocate splits one requested line against the available batches in
// first-expiring-first-out order. It is a pure function: identical inputs
// produce identical chunk ordering and amounts, and stock is never mutated
// here; the decrement happens with the decision inside one transaction.
//
// An explicit manual batch choice on the line wins outright and skips the
// walk. When total stock falls short, the remainder becomes one final chunk
// with no batch id: a degraded success the caller must surface, not an error.
func Allocate(line Line, batches []Batch) (Result, error) {
	if line.Quantity <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	if line.BatchID != nil {
		chosen := *line.BatchID
		return Result{Line: line, Chunks: []AllocatedLine{{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			BatchID:   &chosen,
			Discount:  line.Discount,
			Tax:       line.Tax,
		}}}, nil
	}

	ordered := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.Status != BatchStatusActive || b.RemainingStock <= 0 {
			continue
		}
		ordered = append(ordered, b)
	}
	// Expiry ascending, ties broken by creation order (id).
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ExpiryDate.Equal(ordered[j].ExpiryDate) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].ExpiryDate.Before(ordered[j].ExpiryDate)
	})

	var quantities []float64
	var batchIDs []*int64
	remaining := line.Quantity
	for _, b := range ordered {
		if remaining <= 0 {
			break
		}
		take := b.RemainingStock
		if take > remaining {
			take = remaining
		}
		id := b.ID
		quantities = append(quantities, take)
		batchIDs = append(batchIDs, &id)
		remaining -= take
	}
	if remaining > 0 {
		quantities = append(quantities, remaining)
		batchIDs = append(batchIDs, nil)
	}

	discounts := prorate(line.Discount, quantities, line.Quantity)
	taxes := prorate(line.Tax, quantities, line.Quantity)
	chunks := make([]AllocatedLine, len(quantities))
	for i := range quantities {
		chunks[i] = AllocatedLine{
			ProductID: line.ProductID,
			Quantity:  quantities[i],
			BatchID:   batchIDs[i],
			Discount:  discounts[i],
			Tax:       taxes[i],
		}
	}
	return Result{Line: line, Chunks: chunks}, nil
}

// prorate shares value across the chunks in proportion to quantity. Every
// chunk but the last gets round(value * qty / total); the last absorbs the
// rounding residual so the chunk sum equals the original exactly.
func prorate(value float64, quantities []float64, total float64) []float64 {
	out := make([]float64, len(quantities))
	if len(quantities) == 0 || total <= 0 {
		return out
	}
	var assigned float64
	for i := 0; i < len(quantities)-1; i++ {
		share := shared.Round2(value * quantities[i] / total)
		out[i] = share
		assigned += share
	}
	out[len(out)-1] = shared.Round2(value - assigned)
	return out
}
