package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/lekha-erp/lekha-erp/internal/periods"
	"github.com/lekha-erp/lekha-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Metrics counts posted entries; nil disables instrumentation.
type Metrics interface {
	EntryPosted(voucher VoucherType)
}

// Service coordinates posting and reversing journal entries. Entries are
// append-only: a posted entry is never mutated, corrections are new reversal
// entries against the original source id.
type Service struct {
	repo    RepositoryPort
	audit   shared.AuditPort
	metrics Metrics
	now     func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo RepositoryPort, audit shared.AuditPort, metrics Metrics) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostEntry validates and persists a balanced entry, moving each referenced
// account's balance inside the same transaction. An unbalanced input fails
// before any write; a failure after the first write rolls everything back, so
// partial postings are never observable.
func (s *Service) PostEntry(ctx context.Context, input PostingInput) (Entry, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Entry{}, err
	}
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		posted, err := s.PostEntryTx(ctx, tx, input)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	if s.metrics != nil {
		s.metrics.EntryPosted(entry.VoucherType)
	}
	if s.audit != nil {
		actor := shared.ActorFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actor.ID,
			Action:   "journal.post",
			Entity:   "journal_entry",
			EntityID: entry.VoucherNo,
			Outcome:  "success",
			Meta: map[string]any{
				"source_type": input.SourceType,
				"source_id":   input.SourceID.String(),
				"total":       shared.FormatAmount(entry.TotalDebit),
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// PostEntryTx performs the posting inside an existing transaction, for
// callers that must commit the entry together with their own writes (e.g.
// bill finalization with its stock decrement). The caller owns the commit.
func (s *Service) PostEntryTx(ctx context.Context, tx TxRepository, input PostingInput) (Entry, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Entry{}, err
	}
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	actor := shared.ActorFromContext(ctx)
	class := Classify(input.SourceType, input.VoucherType, input.Narration)
	period, err := tx.GetPeriodForUpdate(ctx, tenantID, input.EntryDate)
	if err != nil {
		return Entry{}, err
	}
	if period.Status == periods.StatusLocked && !input.OwnerUnlock {
		return Entry{}, periods.ErrPeriodLocked
	}
	seq, err := tx.NextVoucherNumber(ctx, tenantID, input.VoucherType)
	if err != nil {
		return Entry{}, err
	}
	entry, err := tx.InsertEntry(ctx, tenantID, input, input.VoucherType.FormatNumber(seq), class, actor.ID)
	if err != nil {
		return Entry{}, err
	}
	lines, err := tx.InsertLines(ctx, entry.ID, input.Lines)
	if err != nil {
		return Entry{}, err
	}
	for _, line := range input.Lines {
		account, err := tx.GetAccountForUpdate(ctx, tenantID, line.AccountID)
		if err != nil {
			return Entry{}, err
		}
		delta := account.Delta(line.Debit, line.Credit)
		if err := tx.ApplyAccountDelta(ctx, tenantID, line.AccountID, delta); err != nil {
			return Entry{}, err
		}
	}
	entry.Lines = lines
	return entry, nil
}

// ReverseEntryTx posts the swapped-sides correction for a source inside an
// existing transaction. A locked original refuses the correction unless the
// caller passed the owner unlock gate. When the original's period has since
// been closed, the correction is dated today so it lands in the open period.
func (s *Service) ReverseEntryTx(ctx context.Context, tx TxRepository, input ReverseInput) (Entry, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Entry{}, err
	}
	original, err := tx.GetEntryBySource(ctx, tenantID, input.SourceType, input.SourceID)
	if err != nil {
		return Entry{}, err
	}
	if original.Locked && !input.OwnerUnlock {
		return Entry{}, ErrEntryLocked
	}
	date := input.Date
	if date.IsZero() {
		date = original.EntryDate
		if period, err := tx.GetPeriodForUpdate(ctx, tenantID, date); err == nil && period.Status != periods.StatusOpen {
			date = s.now()
		}
	}
	return s.PostEntryTx(ctx, tx, PostingInput{
		VoucherType: original.VoucherType,
		EntryDate:   date,
		Narration:   defaultReversalNarration(input.Narration, original.VoucherNo),
		SourceType:  original.SourceType + ":REVERSAL",
		SourceID:    original.SourceID,
		Lines:       swapLines(original.Lines),
		OwnerUnlock: input.OwnerUnlock,
	})
}

// ReverseEntry posts a correction with swapped debit and credit sides against
// the original source id. A locked original refuses the correction unless the
// caller passed the owner unlock gate.
func (s *Service) ReverseEntry(ctx context.Context, input ReverseInput) (Entry, error) {
	tenantID, err := shared.TenantFromContext(ctx)
	if err != nil {
		return Entry{}, err
	}
	if input.SourceType == "" {
		return Entry{}, fmt.Errorf("%w: source type required", shared.ErrValidation)
	}
	var reversal Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		posted, err := s.ReverseEntryTx(ctx, tx, input)
		if err != nil {
			return err
		}
		reversal = posted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	if s.metrics != nil {
		s.metrics.EntryPosted(reversal.VoucherType)
	}
	if s.audit != nil {
		actor := shared.ActorFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  actor.ID,
			Action:   "journal.reverse",
			Entity:   "journal_entry",
			EntityID: reversal.VoucherNo,
			Outcome:  "success",
			Meta: map[string]any{
				"source_type": input.SourceType,
				"source_id":   input.SourceID.String(),
			},
			At: s.now(),
		})
	}
	return reversal, nil
}

func swapLines(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
		})
	}
	return out
}

func defaultReversalNarration(narration, voucherNo string) string {
	if narration != "" {
		return narration
	}
	return fmt.Sprintf("Reversal of %s", voucherNo)
}
