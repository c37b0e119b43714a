package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type enqueueCall struct {
	job  queue.Job
	opts queue.Options
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	calls []enqueueCall
	err   error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, job queue.Job, opts queue.Options) (queue.JobHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return queue.JobHandle{}, e.err
	}
	e.calls = append(e.calls, enqueueCall{job: job, opts: opts})
	return queue.JobHandle{ID: job.Payload.NotificationLogID + "-job"}, nil
}

func (e *recordingEnqueuer) Calls() []enqueueCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]enqueueCall(nil), e.calls...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.DeliveryEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.DeliveryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Statuses() []model.NotificationStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.NotificationStatus, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Status)
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
