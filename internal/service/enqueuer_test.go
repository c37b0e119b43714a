package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/queue"
)

func TestNotifyEnqueuer(t *testing.T) {
	ms := queue.NewMemoryStore()
	enq := NewNotifyEnqueuer(queue.New(ms, testLogger()), testLogger())

	t.Run("valid job is queued with its delay", func(t *testing.T) {
		before := time.Now()
		h, err := enq.Enqueue(context.Background(), queue.Job{
			RecipientUserID: "u1", Type: model.TypeAssigned, Text: "hi",
		}, queue.Options{Delay: time.Hour})
		require.NoError(t, err)
		assert.NotEmpty(t, h.ID)
		assert.False(t, h.RunAt.Before(before.Add(time.Hour)))
		assert.Equal(t, 1, ms.Len())
	})

	t.Run("invalid job is rejected before the queue", func(t *testing.T) {
		_, err := enq.Enqueue(context.Background(), queue.Job{Type: model.TypeAssigned, Text: "hi"}, queue.Options{})
		assert.ErrorIs(t, err, appErr.ErrInvalidJob)
		assert.Equal(t, 1, ms.Len())
	})
}
