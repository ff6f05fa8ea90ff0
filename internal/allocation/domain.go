package allocation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BatchStatus enumerates batch lifecycle values.
type BatchStatus string

const (
	BatchStatusActive  BatchStatus = "ACTIVE"
	BatchStatusExpired BatchStatus = "EXPIRED"
	BatchStatusBlocked BatchStatus = "BLOCKED"
)

// Batch models one physical stock batch of a product.
type Batch struct {
	ID             int64
	TenantID       uuid.UUID
	ProductID      uuid.UUID
	BatchNumber    string
	ExpiryDate     time.Time
	RemainingStock float64
	PurchasePrice  float64
	SalePrice      float64
	MRP            float64
	Status         BatchStatus
	CreatedAt      time.Time
}

// Line is one requested sale line before batch attribution.
type Line struct {
	ProductID uuid.UUID
	Quantity  float64
	Discount  float64
	Tax       float64
	// BatchID carries an explicit manual batch choice; when set the engine
	// is skipped entirely.
	BatchID *int64
}

// AllocatedLine is one chunk of a requested line attributed to a batch.
// A nil BatchID marks the unfulfilled remainder when stock ran short.
type AllocatedLine struct {
	ProductID uuid.UUID
	Quantity  float64
	BatchID   *int64
	Discount  float64
	Tax       float64
}

// Result carries the chunks produced for one requested line.
type Result struct {
	Line   Line
	Chunks []AllocatedLine
}

// Short returns the quantity that could not be covered by any batch.
func (r Result) Short() float64 {
	var short float64
	for _, chunk := range r.Chunks {
		if chunk.BatchID == nil {
			short += chunk.Quantity
		}
	}
	return short
}

// Allocated returns the total quantity across all chunks. It always equals
// the requested quantity, shortfall included.
func (r Result) Allocated() float64 {
	var total float64
	for _, chunk := range r.Chunks {
		total += chunk.Quantity
	}
	return total
}

var (
	// ErrInvalidQuantity indicates a non-positive requested quantity.
	ErrInvalidQuantity = errors.New("allocation: quantity must be positive")
	// ErrBatchNotFound indicates a manually chosen batch is absent.
	ErrBatchNotFound = errors.New("allocation: batch not found")
	// ErrBatchStock indicates a decrement would drive a batch negative.
	ErrBatchStock = errors.New("allocation: batch stock insufficient")
)
