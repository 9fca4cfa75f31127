package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"reservd/internal/reservations/changefeed"
	"reservd/pkg/kafka"
	"reservd/pkg/logger"
	"reservd/pkg/model"
)

const schemaVersion = "1"

// Publisher is the subset of the Kafka producer the relay needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Relay forwards change records from the notification bus to Kafka. Messages
// are keyed by resource id so records for one resource stay ordered on a
// single partition.
//
// The bus disconnects slow subscribers instead of blocking writers, so the
// relay keeps track of the last sequence it forwarded and backfills the gap
// from the change log whenever it gets dropped.
type Relay struct {
	log      *logger.Logger
	bus      *changefeed.Bus
	feed     *changefeed.Log
	producer Publisher
	source   string

	lastSeq uint64

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

func NewRelay(log *logger.Logger, bus *changefeed.Bus, feed *changefeed.Log, producer Publisher, source string) *Relay {
	return &Relay{
		log:      log,
		bus:      bus,
		feed:     feed,
		producer: producer,
		source:   source,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run consumes the bus until Stop is called or the bus closes. It blocks and
// is meant to be launched in its own goroutine.
func (r *Relay) Run() {
	defer close(r.doneCh)

	for {
		sub := r.bus.Subscribe()

		// Backfill anything appended between (re)subscriptions.
		r.backfill()

		if stopped := r.consume(sub); stopped {
			sub.Close()
			return
		}

		if err := sub.Err(); errors.Is(err, changefeed.ErrSubscriberOverrun) {
			r.log.Warn("Change relay fell behind, resubscribing",
				"last_sequence", r.lastSeq,
			)
			continue
		}

		// Bus closed. Flush whatever is left in the log and exit.
		r.backfill()
		return
	}
}

// Stop signals the relay to exit and waits for it to finish.
func (r *Relay) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *Relay) consume(sub *changefeed.Subscription) (stopped bool) {
	for {
		select {
		case <-r.stopCh:
			return true
		case rec, ok := <-sub.Records():
			if !ok {
				return false
			}
			r.forward(rec)
		}
	}
}

// backfill replays records the relay missed while disconnected.
func (r *Relay) backfill() {
	for _, rec := range r.feed.ReadFrom(r.lastSeq + 1) {
		r.forward(rec)
	}
}

func (r *Relay) forward(rec model.ChangeRecord) {
	if rec.Sequence <= r.lastSeq {
		return
	}

	msg := kafka.NewMessage().
		WithKey(rec.Snapshot.ResourceID).
		WithValue(rec).
		WithEventType("reservation." + string(rec.Operation)).
		WithSchemaVersion(schemaVersion).
		WithSource(r.source).
		Build()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.producer.Publish(ctx, msg); err != nil {
		// The backfill on the next record (or resubscribe) will not retry
		// this sequence. Losing a relay message is preferable to stalling
		// the feed; downstream consumers reconcile from the change log.
		r.log.Error("Failed to relay change record",
			"sequence", rec.Sequence,
			"reservation_id", rec.ReservationID,
			"operation", rec.Operation,
			"error", err,
		)
	}

	r.lastSeq = rec.Sequence
}
