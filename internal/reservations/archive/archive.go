package archive

import (
	"context"
	"errors"
	"sync"

	"reservd/internal/reservations/changefeed"
	"reservd/pkg/logger"
	"reservd/pkg/model"
)

// Archiver drains the notification bus into the Mongo archive. The archive
// must stay gapless so the change log can be rebuilt from it on restart, so
// sequences are only advanced in order: a failed write or a missed bus record
// sends the archiver back to the change log, which re-reads everything from
// the first unarchived sequence.
type Archiver struct {
	log  *logger.Logger
	bus  *changefeed.Bus
	feed *changefeed.Log
	repo ArchiveRepository

	lastSeq uint64

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewArchiver creates an archiver that resumes after lastArchived, the
// highest sequence already persisted.
func NewArchiver(log *logger.Logger, bus *changefeed.Bus, feed *changefeed.Log, repo ArchiveRepository, lastArchived uint64) *Archiver {
	return &Archiver{
		log:     log,
		bus:     bus,
		feed:    feed,
		repo:    repo,
		lastSeq: lastArchived,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

type consumeResult int

const (
	consumeStopped consumeResult = iota
	consumeClosed
	consumeResync
)

// Run consumes the bus until Stop is called or the bus closes. It blocks and
// is meant to be launched in its own goroutine.
func (a *Archiver) Run() {
	defer close(a.doneCh)

	sub := a.bus.Subscribe()
	// Closure so the deferred close targets the current subscription after a
	// resubscribe.
	defer func() { sub.Close() }()

	for {
		a.backfill()

		switch a.consume(sub) {
		case consumeStopped:
			// Persist anything published before the subscription was cut.
			a.backfill()
			return
		case consumeResync:
			continue
		case consumeClosed:
			if errors.Is(sub.Err(), changefeed.ErrSubscriberOverrun) {
				a.log.Warn("Archive writer fell behind, resubscribing",
					"last_sequence", a.lastSeq,
				)
				sub = a.bus.Subscribe()
				continue
			}
			a.backfill()
			return
		}
	}
}

// Stop signals the archiver to exit and waits for it to finish.
func (a *Archiver) Stop() {
	a.once.Do(func() { close(a.stopCh) })
	<-a.doneCh
}

func (a *Archiver) consume(sub *changefeed.Subscription) consumeResult {
	for {
		select {
		case <-a.stopCh:
			return consumeStopped
		case rec, ok := <-sub.Records():
			if !ok {
				return consumeClosed
			}
			if rec.Sequence <= a.lastSeq {
				continue
			}
			if rec.Sequence != a.lastSeq+1 || a.persist(rec) != nil {
				// Either an earlier sequence never made it to the archive or
				// this write failed. Re-read the missing range from the log
				// so no sequence is skipped.
				return consumeResync
			}
		}
	}
}

// backfill archives records from the first unarchived sequence onward,
// stopping at the first failure; the failed sequence is retried on the next
// pass.
func (a *Archiver) backfill() {
	for _, rec := range a.feed.ReadFrom(a.lastSeq + 1) {
		if a.persist(rec) != nil {
			return
		}
	}
}

func (a *Archiver) persist(rec model.ChangeRecord) error {
	if err := a.repo.SaveRecord(context.Background(), rec); err != nil {
		a.log.Error("Failed to archive change record",
			"sequence", rec.Sequence,
			"reservation_id", rec.ReservationID,
			"operation", rec.Operation,
			"error", err,
		)
		// SaveRecord tolerates duplicates, so the retry is safe even if the
		// write half succeeded.
		return err
	}

	a.lastSeq = rec.Sequence
	return nil
}
