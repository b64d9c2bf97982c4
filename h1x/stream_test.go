package h1x

import (
	"context"
	"testing"
	"time"
)

func TestMemStreamWaitReadyParksDuringWriteHold(t *testing.T) {
	st := NewMemStream()
	st.HoldWrites(true)

	released := make(chan struct{})
	go func() {
		_ = st.WaitReady(context.Background())
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("WaitReady returned while writes were held")
	case <-time.After(20 * time.Millisecond):
	}

	st.HoldWrites(false)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not wake when the hold was released")
	}
}

func TestMemStreamWaitReadyWakesOnFeed(t *testing.T) {
	st := NewMemStream()
	woke := make(chan struct{})
	go func() {
		_ = st.WaitReady(context.Background())
		close(woke)
	}()
	time.Sleep(5 * time.Millisecond)
	st.Feed([]byte("x"))
	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not wake on Feed")
	}
}

func TestMemStreamWaitReadyHonorsContext(t *testing.T) {
	st := NewMemStream()
	ctx, cancel := context.WithCancel(context.Background())
	woke := make(chan error, 1)
	go func() { woke <- st.WaitReady(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-woke:
		if err == nil {
			t.Fatal("want context error")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not observe cancellation")
	}
}
