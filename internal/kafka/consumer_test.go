package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []model.TaskEvent
	err    error
}

func (h *recordingHandler) HandleTaskEvent(_ context.Context, ev model.TaskEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return map[string][]int32{"tasks": {0}} }
func (s *fakeSession) MemberID() string { return "member-1" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "tasks" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func newTestConsumer(h TaskEventHandler) *Consumer {
	return NewKafkaConsumer("tasks", nil, h, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func message(offset int64, value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "tasks", Offset: offset, Value: []byte(value), Timestamp: time.Now()}
}

func TestConsumer_HandleMessage(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		handlerErr error
		wantMark   bool
		wantCalls  int
	}{
		{
			name:      "due changed event",
			value:     `{"kind":"due_changed","task_id":"t1","user_id":"u1","due_at":"2025-03-12T12:00:00Z","text":"Report"}`,
			wantMark:  true,
			wantCalls: 1,
		},
		{
			name:     "malformed json is skipped",
			value:    `{"kind":`,
			wantMark: true,
		},
		{
			name:       "invalid event is skipped",
			value:      `{"kind":"archived","task_id":"t1","user_id":"u1","text":"x"}`,
			handlerErr: appErr.NewInvalidInput("unknown kind"),
			wantMark:   true,
			wantCalls:  1,
		},
		{
			name:       "transient failure is not committed",
			value:      `{"kind":"assigned","task_id":"t1","user_id":"u1","text":"x"}`,
			handlerErr: appErr.NewInternal("db down"),
			wantMark:   false,
			wantCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{err: tt.handlerErr}
			c := newTestConsumer(h)

			assert.Equal(t, tt.wantMark, c.handleMessage(context.Background(), message(7, tt.value)))
			assert.Len(t, h.events, tt.wantCalls)
		})
	}
}

func TestConsumer_HandleMessageDecodesEvent(t *testing.T) {
	h := &recordingHandler{}
	c := newTestConsumer(h)

	ok := c.handleMessage(context.Background(), message(1,
		`{"kind":"due_changed","task_id":"t1","user_id":"u1","due_at":"2025-03-12T12:00:00Z","text":"Report"}`))
	require.True(t, ok)
	require.Len(t, h.events, 1)

	ev := h.events[0]
	assert.Equal(t, model.TaskDueChanged, ev.Kind)
	assert.Equal(t, "t1", ev.TaskID)
	assert.Equal(t, "u1", ev.UserID)
	require.NotNil(t, ev.DueAt)
	assert.True(t, time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC).Equal(*ev.DueAt))
}

func TestConsumer_ConsumeClaimMarksHandledMessages(t *testing.T) {
	h := &recordingHandler{}
	c := newTestConsumer(h)

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 3)}
	claim.ch <- message(1, `{"kind":"comment","task_id":"t1","user_id":"u1","text":"hi"}`)
	claim.ch <- message(2, `garbage`)
	claim.ch <- message(3, `{"kind":"trial","user_id":"u1","text":"trial ends"}`)
	close(claim.ch)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Equal(t, []int64{1, 2, 3}, session.marked)
	assert.Len(t, h.events, 2)
}

func TestConsumer_ConsumeClaimLeavesFailedMessages(t *testing.T) {
	h := &recordingHandler{err: errors.New("settings store unavailable")}
	c := newTestConsumer(h)

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 1)}
	claim.ch <- message(5, `{"kind":"assigned","task_id":"t1","user_id":"u1","text":"x"}`)
	close(claim.ch)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(session, claim))
	assert.Empty(t, session.marked)
}
