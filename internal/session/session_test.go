package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-parser/internal/batch"
	"cv-parser/internal/resume"
)

type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingExtractor) Attempt(ctx context.Context, text, _ string) (resume.Record, bool, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return resume.Extracted(resume.Fields{Name: text}), false, nil
}

func TestRunRejectsConcurrentBatch(t *testing.T) {
	ex := &blockingExtractor{started: make(chan struct{}, 1), release: make(chan struct{})}
	p := batch.NewProcessor(ex)
	s := newSession("s", time.Now())
	s.SetCredential("sk-test")

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), p, []batch.Item{{Text: "one"}})
		done <- err
	}()
	<-ex.started
	assert.True(t, s.Running())

	_, err := s.Run(context.Background(), p, []batch.Item{{Text: "two"}})
	assert.True(t, errors.Is(err, ErrBusy))

	close(ex.release)
	require.NoError(t, <-done)
	assert.Equal(t, Progress{Completed: 1, Total: 1}, s.Progress())
	assert.Equal(t, 1, s.Results().Len())
}

func TestResetDuringRunDiscardsLateRecords(t *testing.T) {
	ex := &blockingExtractor{started: make(chan struct{}, 1), release: make(chan struct{})}
	p := batch.NewProcessor(ex)
	s := newSession("s", time.Now())
	s.SetCredential("sk-test")

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), p, []batch.Item{{Text: "one"}, {Text: "two"}})
		done <- err
	}()
	<-ex.started
	s.Reset()

	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, s.Results().Len())
	assert.False(t, s.HasCredential())
	assert.Equal(t, Progress{}, s.Progress())
}

func TestRegistryExpiresIdleSessions(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	reg := NewRegistry(time.Minute, func() time.Time { return now })

	s := reg.Create()
	s.SetCredential("sk-test")
	_, err := reg.Get(s.ID)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = reg.Get(s.ID)
	require.NoError(t, err, "access refreshes the idle timer")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, reg.Sweep())
	assert.Zero(t, reg.Len())
	assert.False(t, s.HasCredential())

	_, err = reg.Get(s.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestRegistryDelete(t *testing.T) {
	reg := NewRegistry(0, nil)
	s := reg.Create()
	s.Results().Append(resume.Extracted(resume.Fields{Name: "A"}))

	require.NoError(t, reg.Delete(s.ID))
	assert.Zero(t, s.Results().Len())
	assert.True(t, errors.Is(reg.Delete(s.ID), ErrSessionNotFound))
}
