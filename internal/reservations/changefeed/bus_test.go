package changefeed

import (
	"errors"
	"testing"
	"time"

	"reservd/pkg/model"
)

func record(seq uint64) model.ChangeRecord {
	return model.ChangeRecord{
		Sequence:      seq,
		ReservationID: "res-1",
		Operation:     model.OpUpdate,
		Snapshot:      testSnapshot("res-1"),
	}
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	sub := bus.Subscribe()

	for i := uint64(1); i <= 3; i++ {
		bus.Publish(record(i))
	}

	for want := uint64(1); want <= 3; want++ {
		select {
		case rec := <-sub.Records():
			if rec.Sequence != want {
				t.Fatalf("expected sequence %d, got %d", want, rec.Sequence)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for record %d", want)
		}
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	first := bus.Subscribe()
	second := bus.Subscribe()

	bus.Publish(record(1))

	for _, sub := range []*Subscription{first, second} {
		select {
		case rec := <-sub.Records():
			if rec.Sequence != 1 {
				t.Fatalf("expected sequence 1, got %d", rec.Sequence)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}
}

func TestBus_SlowSubscriberIsDisconnected(t *testing.T) {
	bus := NewBus(2)
	defer bus.Close()

	slow := bus.Subscribe()

	// Fill the slow subscriber's backlog and push one more without draining.
	bus.Publish(record(1))
	bus.Publish(record(2))
	bus.Publish(record(3))

	if got := bus.Subscribers(); got != 0 {
		t.Fatalf("expected slow subscriber to be dropped, %d still subscribed", got)
	}

	// The slow subscriber's channel is closed with the overrun error after
	// the buffered records drain.
	drained := 0
	for range slow.Records() {
		drained++
	}
	if drained != 2 {
		t.Errorf("expected 2 buffered records before disconnect, got %d", drained)
	}
	if !errors.Is(slow.Err(), ErrSubscriberOverrun) {
		t.Errorf("expected ErrSubscriberOverrun, got %v", slow.Err())
	}

	// New subscribers keep working after a disconnect.
	fresh := bus.Subscribe()
	bus.Publish(record(4))
	select {
	case rec := <-fresh.Records():
		if rec.Sequence != 4 {
			t.Errorf("expected sequence 4, got %d", rec.Sequence)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery to fresh subscriber")
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	bus.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := uint64(1); i <= 100; i++ {
			bus.Publish(record(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a stalled subscriber")
	}
}

func TestBus_CloseEndsSubscriptionsCleanly(t *testing.T) {
	bus := NewBus(4)
	sub := bus.Subscribe()

	bus.Close()

	if _, open := <-sub.Records(); open {
		t.Fatal("expected records channel to be closed")
	}
	if err := sub.Err(); err != nil {
		t.Errorf("expected nil error on clean close, got %v", err)
	}
}

func TestBus_SubscribeAfterClose(t *testing.T) {
	bus := NewBus(4)
	bus.Close()

	sub := bus.Subscribe()
	if _, open := <-sub.Records(); open {
		t.Fatal("subscription on a closed bus should be finished immediately")
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	sub := bus.Subscribe()
	sub.Close()
	sub.Close()

	if got := bus.Subscribers(); got != 0 {
		t.Errorf("expected 0 subscribers, got %d", got)
	}
}
