package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekha-erp/lekha-erp/internal/shared"
)

type mockRepository struct {
	rows []TimelineRow
}

func (m *mockRepository) matches(row TimelineRow, filters TimelineFilters) bool {
	if !filters.From.IsZero() && row.At.Before(filters.From) {
		return false
	}
	if !filters.To.IsZero() && row.At.After(filters.To) {
		return false
	}
	if filters.Actor != 0 && row.ActorID != filters.Actor {
		return false
	}
	if filters.Entity != "" && row.Entity != filters.Entity {
		return false
	}
	if filters.Action != "" && row.Action != filters.Action {
		return false
	}
	return true
}

func (m *mockRepository) TimelineWindow(ctx context.Context, tenantID uuid.UUID, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	all, _ := m.TimelineAll(ctx, tenantID, filters)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockRepository) TimelineAll(ctx context.Context, tenantID uuid.UUID, filters TimelineFilters) ([]TimelineRow, error) {
	var out []TimelineRow
	for _, row := range m.rows {
		if m.matches(row, filters) {
			out = append(out, row)
		}
	}
	return out, nil
}

func seededRepository(n int) *mockRepository {
	repo := &mockRepository{}
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		repo.rows = append(repo.rows, TimelineRow{
			At:       base.Add(time.Duration(i) * time.Minute),
			ActorID:  int64(i%3 + 1),
			Action:   "bill.finalize",
			Entity:   "bill",
			EntityID: fmt.Sprintf("bill-%d", i),
			Outcome:  "success",
		})
	}
	return repo
}

func auditContext() context.Context {
	return shared.ContextWithTenant(context.Background(), uuid.New())
}

func TestTimelineDefaultPaging(t *testing.T) {
	svc := NewService(seededRepository(25))

	result, err := svc.Timeline(auditContext(), TimelineFilters{})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 20)
	assert.Equal(t, 1, result.Paging.Page)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Zero(t, result.Paging.PrevPage)
}

func TestTimelineSecondPage(t *testing.T) {
	svc := NewService(seededRepository(25))

	result, err := svc.Timeline(auditContext(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 5)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 1, result.Paging.PrevPage)
}

func TestTimelinePageSizeClamped(t *testing.T) {
	svc := NewService(seededRepository(120))

	result, err := svc.Timeline(auditContext(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 50)
	assert.Equal(t, 50, result.Paging.PageSize)
}

func TestTimelineActorFilter(t *testing.T) {
	svc := NewService(seededRepository(9))

	result, err := svc.Timeline(auditContext(), TimelineFilters{Actor: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	for _, row := range result.Rows {
		assert.Equal(t, int64(2), row.ActorID)
	}
}

func TestTimelineRequiresTenant(t *testing.T) {
	svc := NewService(seededRepository(1))

	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, shared.ErrTenantMissing)
}

func TestExportIgnoresPaging(t *testing.T) {
	svc := NewService(seededRepository(75))

	rows, err := svc.Export(auditContext(), TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 75)
}
