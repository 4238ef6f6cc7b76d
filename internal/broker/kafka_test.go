package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastBackoff = Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond}

func TestBackoffDoublesUpToMax(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 35 * time.Millisecond}

	d := b.next(0)
	assert.Equal(t, 10*time.Millisecond, d)
	d = b.next(d)
	assert.Equal(t, 20*time.Millisecond, d)
	d = b.next(d)
	assert.Equal(t, 35*time.Millisecond, d)
	assert.Equal(t, 35*time.Millisecond, b.next(d))
}

func TestRetryRedeliversSameMessage(t *testing.T) {
	var offsets []int64
	handler := Retry(func(_ context.Context, msg kafka.Message) error {
		offsets = append(offsets, msg.Offset)
		if len(offsets) < 3 {
			return errors.New("database is restarting")
		}
		return nil
	}, fastBackoff)

	err := handler(context.Background(), kafka.Message{Offset: 10})

	require.NoError(t, err)
	assert.Equal(t, []int64{10, 10, 10}, offsets)
}

func TestRetryGivesUpOnMalformed(t *testing.T) {
	calls := 0
	handler := Retry(func(context.Context, kafka.Message) error {
		calls++
		return fmt.Errorf("%w: truncated body", ErrMalformed)
	}, fastBackoff)

	err := handler(context.Background(), kafka.Message{})

	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := Retry(func(context.Context, kafka.Message) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("still down")
	}, fastBackoff)

	err := handler(ctx, kafka.Message{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestSettleNeverCommitsPastFailure(t *testing.T) {
	ctx := context.Background()
	msg := kafka.Message{Partition: 2, Offset: 10}

	commit, err := settle(ctx, msg, nil)
	assert.True(t, commit)
	assert.NoError(t, err)

	commit, err = settle(ctx, msg, fmt.Errorf("%w: bad json", ErrMalformed))
	assert.True(t, commit, "malformed messages are skipped")
	assert.NoError(t, err)

	failure := errors.New("connection refused")
	commit, err = settle(ctx, msg, failure)
	assert.False(t, commit)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "offset 10")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	commit, err = settle(cancelled, msg, context.Canceled)
	assert.False(t, commit)
	assert.ErrorIs(t, err, context.Canceled)
}
