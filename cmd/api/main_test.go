package main

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingCleaner struct {
	calls   atomic.Int32
	removed int64
	err     error
}

func (c *countingCleaner) CleanupExpired(_ context.Context, _ time.Time) (int64, error) {
	c.calls.Add(1)
	return c.removed, c.err
}

func TestRunResetTokenJanitor_CleansUntilCancelled(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cleaner := &countingCleaner{removed: 2}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runResetTokenJanitor(ctx, cleaner, 5*time.Millisecond, zap.New(core))
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
	assert.NotZero(t, logs.FilterMessage("removed expired reset tokens").Len())
}

func TestRunResetTokenJanitor_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cleaner := &countingCleaner{err: errors.New("db down")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runResetTokenJanitor(ctx, cleaner, 5*time.Millisecond, zap.New(core))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("reset token cleanup failed").Len() > 0
	}, time.Second, 5*time.Millisecond)
}

// recordingSyncer は書き込みと Sync の呼び出しを記録します。
type recordingSyncer struct {
	bytes.Buffer
	synced bool
}

func (s *recordingSyncer) Sync() error {
	s.synced = true
	return nil
}

func TestExitCode_FlushesLogsBeforeExit(t *testing.T) {
	sink := &recordingSyncer{}
	log := zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zap.InfoLevel))

	assert.Equal(t, 1, exitCode(log, errors.New("listen: address already in use")))
	assert.True(t, sink.synced)
	assert.Contains(t, sink.String(), "server exited with error")
	assert.Contains(t, sink.String(), "address already in use")

	clean := &recordingSyncer{}
	assert.Equal(t, 0, exitCode(zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), clean, zap.InfoLevel)), nil))
	assert.True(t, clean.synced)
	assert.Empty(t, clean.String())
}
