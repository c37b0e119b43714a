package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/queue"
	"github.com/samims/taskpulse/internal/sender"
	"github.com/samims/taskpulse/internal/storage"
	"github.com/samims/taskpulse/internal/store"
)

type dispatcherFixture struct {
	logs       *store.MemoryLogStorage
	settings   *store.MemorySettingsStorage
	directory  *storage.MockUserDirectory
	sender     *sender.MockSender
	enqueuer   *recordingEnqueuer
	publisher  *recordingPublisher
	dispatcher *dispatcher
}

func newDispatcherFixture(t *testing.T, now time.Time) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		logs:      store.NewMemoryLogStorage(),
		settings:  store.NewMemorySettingsStorage(),
		directory: storage.NewMockUserDirectory(t),
		sender:    sender.NewMockSender(t),
		enqueuer:  &recordingEnqueuer{},
		publisher: &recordingPublisher{},
	}
	d := NewDispatcher(f.logs, f.settings, f.directory, f.sender, f.enqueuer, f.publisher, testLogger()).(*dispatcher)
	d.now = fixedClock(now)
	f.dispatcher = d
	return f
}

func (f *dispatcherFixture) queuedLog(t *testing.T, id, userID string, typ model.NotificationType) {
	t.Helper()
	require.NoError(t, f.logs.Create(context.Background(), &model.NotificationLog{
		ID: id, UserID: userID, Type: typ, Status: model.StatusQueued,
	}))
}

func (f *dispatcherFixture) status(t *testing.T, id string) *model.NotificationLog {
	t.Helper()
	l, err := f.logs.GetByID(context.Background(), id)
	require.NoError(t, err)
	return l
}

var noon = time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)

func reminderJob(logID string) queue.Job {
	return queue.Job{
		RecipientUserID: "u1",
		Type:            model.TypeDeadline,
		Text:            "Ship release",
		Payload:         queue.Payload{TaskID: "t1", NotificationLogID: logID},
	}
}

func TestDispatcher_Handle_Sent(t *testing.T) {
	f := newDispatcherFixture(t, noon)
	f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
	f.directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil).Once()
	f.sender.On("Send", mock.Anything, "4242", "Ship release").Return(nil).Once()

	require.NoError(t, f.dispatcher.Handle(context.Background(), reminderJob("log-1")))

	l := f.status(t, "log-1")
	assert.Equal(t, model.StatusSent, l.Status)
	require.NotNil(t, l.SentAt)
	assert.True(t, noon.Equal(*l.SentAt))
	assert.Nil(t, l.Error)
	assert.Equal(t, []model.NotificationStatus{model.StatusSent}, f.publisher.Statuses())
}

func TestDispatcher_Handle_ChannelIDSkipsDirectory(t *testing.T) {
	f := newDispatcherFixture(t, noon)
	f.sender.On("Send", mock.Anything, "777", "ping").Return(nil).Once()

	job := queue.Job{RecipientChannelID: "777", Type: model.TypeComment, Text: "ping"}
	require.NoError(t, f.dispatcher.Handle(context.Background(), job))
	f.directory.AssertNotCalled(t, "ChannelID", mock.Anything, mock.Anything)
}

func TestDispatcher_Handle_SendFailure(t *testing.T) {
	f := newDispatcherFixture(t, noon)
	f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
	f.directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)
	sendErr := errors.New("telegram: 502 bad gateway")
	f.sender.On("Send", mock.Anything, "4242", mock.Anything).Return(sendErr).Once()

	err := f.dispatcher.Handle(context.Background(), reminderJob("log-1"))
	require.ErrorIs(t, err, sendErr)

	l := f.status(t, "log-1")
	assert.Equal(t, model.StatusFailed, l.Status)
	require.NotNil(t, l.Error)
	assert.Equal(t, sendErr.Error(), *l.Error)
	assert.Nil(t, l.SentAt)
	assert.Equal(t, []model.NotificationStatus{model.StatusFailed}, f.publisher.Statuses())
}

func TestDispatcher_Handle_LogIDTargetsExactRow(t *testing.T) {
	f := newDispatcherFixture(t, noon)
	f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
	f.queuedLog(t, "log-2", "u1", model.TypeDeadline)
	f.directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)
	f.sender.On("Send", mock.Anything, "4242", mock.Anything).Return(nil)

	require.NoError(t, f.dispatcher.Handle(context.Background(), reminderJob("log-2")))

	assert.Equal(t, model.StatusQueued, f.status(t, "log-1").Status)
	assert.Equal(t, model.StatusSent, f.status(t, "log-2").Status)
}

func TestDispatcher_Handle_LegacyJobMatchesQueuedRows(t *testing.T) {
	f := newDispatcherFixture(t, noon)
	f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
	f.queuedLog(t, "log-2", "u1", model.TypeDeadline)
	f.queuedLog(t, "log-3", "u1", model.TypeOverdue)
	f.queuedLog(t, "log-4", "u2", model.TypeDeadline)
	f.directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)
	f.sender.On("Send", mock.Anything, "4242", mock.Anything).Return(nil)

	require.NoError(t, f.dispatcher.Handle(context.Background(), reminderJob("")))

	assert.Equal(t, model.StatusSent, f.status(t, "log-1").Status)
	assert.Equal(t, model.StatusSent, f.status(t, "log-2").Status)
	assert.Equal(t, model.StatusQueued, f.status(t, "log-3").Status, "other type untouched")
	assert.Equal(t, model.StatusQueued, f.status(t, "log-4").Status, "other user untouched")
}

func TestDispatcher_Handle_QuietHours(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantDelay time.Duration
	}{
		{
			name:      "late evening waits until morning",
			now:       time.Date(2025, 3, 10, 23, 30, 0, 0, time.Local),
			wantDelay: 8*time.Hour + 30*time.Minute,
		},
		{
			name:      "window end less than a minute away waits one minute",
			now:       time.Date(2025, 3, 11, 7, 59, 30, 0, time.Local),
			wantDelay: time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t, tt.now)
			rs := model.DefaultSettings("u1")
			rs.QuietHours = model.QuietHours{Enabled: true, From: "22:00", To: "08:00"}
			require.NoError(t, f.settings.Upsert(context.Background(), &rs))
			f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
			f.directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)

			job := reminderJob("log-1")
			require.NoError(t, f.dispatcher.Handle(context.Background(), job))

			f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
			calls := f.enqueuer.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, job, calls[0].job, "payload re-enqueued unchanged")
			assert.Equal(t, tt.wantDelay, calls[0].opts.Delay)
			assert.Equal(t, model.StatusSkippedQuietHours, f.status(t, "log-1").Status)
			assert.Equal(t, []model.NotificationStatus{model.StatusSkippedQuietHours}, f.publisher.Statuses())
		})
	}
}

func TestDispatcher_Handle_DeferredJobIsSentAfterQuietHours(t *testing.T) {
	evening := time.Date(2025, 3, 10, 23, 30, 0, 0, time.Local)
	morning := time.Date(2025, 3, 11, 8, 0, 0, 0, time.Local)

	f := newDispatcherFixture(t, evening)
	rs := model.DefaultSettings("u1")
	rs.QuietHours = model.QuietHours{Enabled: true, From: "22:00", To: "08:00"}
	require.NoError(t, f.settings.Upsert(context.Background(), &rs))
	f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
	f.directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)
	f.sender.On("Send", mock.Anything, "4242", "Ship release").Return(nil).Once()

	require.NoError(t, f.dispatcher.Handle(context.Background(), reminderJob("log-1")))
	assert.Equal(t, model.StatusSkippedQuietHours, f.status(t, "log-1").Status)

	calls := f.enqueuer.Calls()
	require.Len(t, calls, 1)
	assert.True(t, evening.Add(calls[0].opts.Delay).Equal(morning))

	f.dispatcher.now = fixedClock(morning)
	require.NoError(t, f.dispatcher.Handle(context.Background(), calls[0].job))

	l := f.status(t, "log-1")
	assert.Equal(t, model.StatusSent, l.Status)
	require.NotNil(t, l.SentAt)
	assert.True(t, morning.Equal(*l.SentAt))
	assert.Nil(t, l.Error)
	assert.Len(t, f.enqueuer.Calls(), 1, "no second deferral")
	assert.Equal(t, []model.NotificationStatus{model.StatusSkippedQuietHours, model.StatusSent}, f.publisher.Statuses())
}

func TestDispatcher_Handle_DisabledTypeIsDropped(t *testing.T) {
	f := newDispatcherFixture(t, noon)
	rs := model.DefaultSettings("u1")
	rs.EnabledTypes[model.TypeDeadline] = false
	require.NoError(t, f.settings.Upsert(context.Background(), &rs))
	f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
	f.directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)

	require.NoError(t, f.dispatcher.Handle(context.Background(), reminderJob("log-1")))

	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.enqueuer.Calls())
	l := f.status(t, "log-1")
	assert.Equal(t, model.StatusFailed, l.Status)
	require.NotNil(t, l.Error)
	assert.Equal(t, errTypeDisabled, *l.Error)
	assert.Equal(t, []model.NotificationStatus{model.StatusFailed}, f.publisher.Statuses())
}

func TestDispatcher_Handle_QuietHoursDeferralFailureIsRetried(t *testing.T) {
	f := newDispatcherFixture(t, time.Date(2025, 3, 10, 23, 30, 0, 0, time.Local))
	rs := model.DefaultSettings("u1")
	rs.QuietHours = model.QuietHours{Enabled: true, From: "22:00", To: "08:00"}
	require.NoError(t, f.settings.Upsert(context.Background(), &rs))
	f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
	f.directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)
	f.enqueuer.err = errors.New("redis down")

	err := f.dispatcher.Handle(context.Background(), reminderJob("log-1"))
	require.Error(t, err)
	assert.Equal(t, model.StatusQueued, f.status(t, "log-1").Status)
}

func TestDispatcher_Handle_SettingsUnavailableFailsOpen(t *testing.T) {
	settings := store.NewMockSettingsStorage(t)
	settings.On("Get", mock.Anything, "u1").Return(nil, errors.New("timeout"))
	directory := storage.NewMockUserDirectory(t)
	directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)
	snd := sender.NewMockSender(t)
	snd.On("Send", mock.Anything, "4242", mock.Anything).Return(nil).Once()
	logs := store.NewMemoryLogStorage()

	d := NewDispatcher(logs, settings, directory, snd, &recordingEnqueuer{}, nil, testLogger())
	require.NoError(t, d.Handle(context.Background(), reminderJob("")))
}

func TestDispatcher_Handle_NoRecipient(t *testing.T) {
	t.Run("job without user or channel", func(t *testing.T) {
		f := newDispatcherFixture(t, noon)
		err := f.dispatcher.Handle(context.Background(), queue.Job{Type: model.TypeComment, Text: "x"})
		assert.ErrorIs(t, err, appErr.ErrNoRecipient)
	})

	t.Run("user without linked channel", func(t *testing.T) {
		f := newDispatcherFixture(t, noon)
		f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
		f.directory.On("ChannelID", mock.Anything, "u1").Return("", appErr.ErrNoRecipient)

		err := f.dispatcher.Handle(context.Background(), reminderJob("log-1"))
		assert.ErrorIs(t, err, appErr.ErrNoRecipient)
		assert.Equal(t, model.StatusQueued, f.status(t, "log-1").Status)
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDispatcher_Handle_LogWriteFailureAfterSend(t *testing.T) {
	logs := store.NewMockNotificationLogStorage(t)
	logs.On("UpdateStatus", mock.Anything, "log-1", mock.MatchedBy(func(u model.StatusUpdate) bool {
		return u.Status == model.StatusSent
	})).Return(errors.New("db gone")).Once()
	directory := storage.NewMockUserDirectory(t)
	directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)
	snd := sender.NewMockSender(t)
	snd.On("Send", mock.Anything, "4242", mock.Anything).Return(nil).Once()

	d := NewDispatcher(logs, store.NewMemorySettingsStorage(), directory, snd, &recordingEnqueuer{}, nil, testLogger())
	assert.NoError(t, d.Handle(context.Background(), reminderJob("log-1")), "a sent message is never retried")
}

func TestDispatcher_Exhausted(t *testing.T) {
	tests := []struct {
		name       string
		status     model.NotificationStatus
		prevErr    string
		lastErr    string
		wantStatus model.NotificationStatus
		wantErr    string
	}{
		{"failed row keeps last error", model.StatusFailed, "boom", "boom", model.StatusFailed, "boom"},
		{"deferred row is failed", model.StatusSkippedQuietHours, "", "redis down", model.StatusFailed, "attempts exhausted: redis down"},
		{"queued row is failed", model.StatusQueued, "", "redis down", model.StatusFailed, "attempts exhausted: redis down"},
		{"sent row is untouched", model.StatusSent, "", "late ack", model.StatusSent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t, noon)
			f.queuedLog(t, "log-1", "u1", model.TypeDeadline)
			switch tt.status {
			case model.StatusFailed:
				require.NoError(t, f.logs.UpdateStatus(context.Background(), "log-1", model.FailedUpdate(tt.prevErr)))
			case model.StatusSent:
				require.NoError(t, f.logs.UpdateStatus(context.Background(), "log-1", model.SentUpdate(noon)))
			case model.StatusSkippedQuietHours:
				require.NoError(t, f.logs.UpdateStatus(context.Background(), "log-1", model.SkippedQuietHoursUpdate()))
			}

			f.dispatcher.Exhausted(context.Background(), reminderJob("log-1"), errors.New(tt.lastErr))

			l := f.status(t, "log-1")
			assert.Equal(t, tt.wantStatus, l.Status)
			if tt.wantErr == "" {
				assert.Nil(t, l.Error)
				return
			}
			require.NotNil(t, l.Error)
			assert.Equal(t, tt.wantErr, *l.Error)
		})
	}
}

// A job whose send always fails is tried exactly the configured number of
// times and its log ends at failed with the last error.
func TestDispatcher_WithQueue_RetriesUntilExhausted(t *testing.T) {
	logs := store.NewMemoryLogStorage()
	require.NoError(t, logs.Create(context.Background(), &model.NotificationLog{
		ID: "log-1", UserID: "u1", Type: model.TypeDeadline, Status: model.StatusQueued,
	}))

	var sends atomic.Int32
	directory := storage.NewMockUserDirectory(t)
	directory.On("ChannelID", mock.Anything, "u1").Return("4242", nil)
	snd := sender.NewMockSender(t)
	snd.On("Send", mock.Anything, "4242", mock.Anything).Run(func(mock.Arguments) { sends.Add(1) }).Return(errors.New("chat not found"))

	q := queue.New(queue.NewMemoryStore(), testLogger(),
		queue.WithRetryPolicy(queue.RetryPolicy{Attempts: 5, Backoff: time.Millisecond}),
		queue.WithPollInterval(time.Millisecond),
	)
	enq := NewNotifyEnqueuer(q, testLogger())
	d := NewDispatcher(logs, store.NewMemorySettingsStorage(), directory, snd, enq, nil, testLogger())

	_, err := enq.Enqueue(context.Background(), reminderJob("log-1"), queue.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Consume(ctx, d)
	}()

	require.Eventually(t, func() bool { return sends.Load() == 5 }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, int32(5), sends.Load())
	l, err := logs.GetByID(context.Background(), "log-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, l.Status)
	require.NotNil(t, l.Error)
	assert.Equal(t, "chat not found", *l.Error)
}
