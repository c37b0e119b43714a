package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
)

func TestMemoryLogStorage_BulkMatchOnlyTouchesQueued(t *testing.T) {
	s := NewMemoryLogStorage()
	ctx := context.Background()

	for _, l := range []model.NotificationLog{
		{ID: "a", UserID: "u1", Type: model.TypeDeadline, Status: model.StatusQueued},
		{ID: "b", UserID: "u1", Type: model.TypeDeadline, Status: model.StatusSent},
		{ID: "c", UserID: "u1", Type: model.TypeOverdue, Status: model.StatusQueued},
		{ID: "d", UserID: "u2", Type: model.TypeDeadline, Status: model.StatusQueued},
	} {
		l := l
		require.NoError(t, s.Create(ctx, &l))
	}

	n, err := s.UpdateQueuedByUserType(ctx, "u1", model.TypeDeadline, model.SentUpdate(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, _ := s.GetByID(ctx, "a")
	assert.Equal(t, model.StatusSent, a.Status)
	for _, id := range []string{"c", "d"} {
		l, _ := s.GetByID(ctx, id)
		assert.Equal(t, model.StatusQueued, l.Status, id)
	}
}

func TestMemoryLogStorage_MarkAbandoned(t *testing.T) {
	s := NewMemoryLogStorage()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &model.NotificationLog{ID: "q", Status: model.StatusQueued}))
	require.NoError(t, s.Create(ctx, &model.NotificationLog{ID: "f", Status: model.StatusFailed}))

	changed, err := s.MarkAbandoned(ctx, "q", "attempts exhausted")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.MarkAbandoned(ctx, "f", "attempts exhausted")
	require.NoError(t, err)
	assert.False(t, changed, "failed rows keep their last error")

	assert.ErrorIs(t, s.UpdateStatus(ctx, "missing", model.SkippedQuietHoursUpdate()), appErr.ErrNotFound)
}

func TestMemorySettingsStorage(t *testing.T) {
	s := NewMemorySettingsStorage()
	ctx := context.Background()

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, appErr.ErrNotFound)

	rs := model.DefaultSettings("u1")
	require.NoError(t, s.Upsert(ctx, &rs))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTimezone, got.Timezone)
}
