package framebus

import (
	"context"
	"sync"
	"testing"
	"time"

	"deskrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(b byte) domain.EncodedFrame {
	return domain.EncodedFrame{Data: []byte{b}, Width: 1, Height: 1}
}

func TestBus_PublishAssignsIncreasingSeq(t *testing.T) {
	bus := New(4)
	for i := 1; i <= 10; i++ {
		assert.Equal(t, uint64(i), bus.Publish(frame(byte(i))))
	}

	latest, ok := bus.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(10), latest.Seq)
}

func TestBus_LatestEmpty(t *testing.T) {
	_, ok := New(2).Latest()
	assert.False(t, ok)
}

func TestBus_SubscriberStartsAtNextFrame(t *testing.T) {
	bus := New(4)
	bus.Publish(frame(1))

	sub := bus.Subscribe()
	defer sub.Close()
	bus.Publish(frame(2))

	got, skipped, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Seq)
	assert.Equal(t, 0, skipped)
}

func TestBus_LaggingSubscriberJumpsToOldest(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe()
	defer sub.Close()

	for i := 1; i <= 10; i++ {
		bus.Publish(frame(byte(i)))
	}

	got, skipped, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Seq)
	assert.Equal(t, 6, skipped)
	assert.Equal(t, []byte{7}, got.Data)

	for want := uint64(8); want <= 10; want++ {
		got, skipped, err = sub.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got.Seq)
		assert.Equal(t, 0, skipped)
	}
}

func TestBus_PublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := New(2)
	stalled := bus.Subscribe()
	defer stalled.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Publish(frame(byte(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a subscriber that never reads")
	}
}

func TestBus_ConcurrentSubscribersSeeIncreasingSeq(t *testing.T) {
	bus := New(8)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const subscribers = 4
	const frames = 200

	var wg sync.WaitGroup
	errs := make(chan string, subscribers)
	ready := make(chan struct{}, subscribers)

	for i := 0; i < subscribers; i++ {
		sub := bus.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sub.Close()
			ready <- struct{}{}

			var last uint64
			for last < frames {
				f, _, err := sub.Next(ctx)
				if err != nil {
					errs <- err.Error()
					return
				}
				if f.Seq <= last {
					errs <- "sequence went backwards"
					return
				}
				last = f.Seq
			}
		}()
	}
	for i := 0; i < subscribers; i++ {
		<-ready
	}

	for i := 1; i <= frames; i++ {
		bus.Publish(frame(byte(i)))
	}

	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
	assert.Equal(t, 0, bus.Subscribers())
}

func TestSubscription_NextHonoursContext(t *testing.T) {
	bus := New(2)
	sub := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscription_CloseWakesWaiter(t *testing.T) {
	bus := New(2)
	sub := bus.Subscribe()
	assert.Equal(t, 1, bus.Subscribers())

	errCh := make(chan error, 1)
	go func() {
		_, _, err := sub.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Close()
	sub.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, domain.ErrBusClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
	assert.Equal(t, 0, bus.Subscribers())
}

func TestBus_CloseReleasesSubscribers(t *testing.T) {
	bus := New(2)
	sub := bus.Subscribe()
	defer sub.Close()

	errCh := make(chan error, 1)
	go func() {
		_, _, err := sub.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Close()
	bus.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, domain.ErrBusClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
	assert.Equal(t, uint64(0), bus.Publish(frame(1)))
}
