package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	rows       []TimelineRow
	gotOffset  int
	gotLimit   int
	gotFilters TimelineFilters
}

func (f *fakeRepository) TimelineWindow(_ context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	f.gotFilters = filters
	f.gotOffset = offset
	f.gotLimit = limit
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

func trailRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{
			At:       base.Add(-time.Duration(i) * time.Minute),
			ActorID:  1,
			Action:   "role.update",
			Entity:   "role",
			EntityID: "10",
		}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &fakeRepository{rows: trailRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, result.Rows, 10)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	// One extra row is fetched to discover the next page.
	require.Equal(t, 11, repo.gotLimit)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.PrevPage)
	require.Equal(t, 20, repo.gotOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &fakeRepository{rows: trailRows(60)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: -4})
	require.NoError(t, err)
	require.Equal(t, 1, result.Paging.Page)
	require.Equal(t, 20, result.Paging.PageSize)
}

func TestTimelineTrimsFilterText(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), TimelineFilters{Entity: "  role ", Action: " role.delete  "})
	require.NoError(t, err)
	require.Equal(t, "role", repo.gotFilters.Entity)
	require.Equal(t, "role.delete", repo.gotFilters.Action)
}

func TestTimelineWithoutRepository(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
}
