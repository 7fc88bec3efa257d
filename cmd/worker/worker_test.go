package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sage/internal/domain/homologation"
	"sage/pkg/logger"
)

type fakeHomologation struct {
	reports atomic.Int32
	matches atomic.Int32
}

func (f *fakeHomologation) SendReportIfDue(context.Context) (bool, error) {
	f.reports.Add(1)
	return true, nil
}

func (f *fakeHomologation) AutoMatch(context.Context) ([]homologation.MatchReport, error) {
	f.matches.Add(1)
	return nil, nil
}

type fakePurger struct{ calls atomic.Int32 }

func (f *fakePurger) CleanupExpired(context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, nil
}

func TestWorker_RunsEveryJob(t *testing.T) {
	h := &fakeHomologation{}
	keys := &fakePurger{}
	w := NewWorker(WorkerConfig{
		Tick:            5 * time.Millisecond,
		MatchInterval:   5 * time.Millisecond,
		CleanupInterval: 5 * time.Millisecond,
	}, h, keys, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return h.reports.Load() > 1 && h.matches.Load() > 0 && keys.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{}, &fakeHomologation{}, &fakePurger{}, logger.Nop())
	assert.Equal(t, time.Minute, w.cfg.Tick)
	assert.Equal(t, defaultMatchInterval, w.cfg.MatchInterval)
	assert.Equal(t, defaultCleanupInterval, w.cfg.CleanupInterval)
}
