package changefeed

import (
	"sync"
	"time"

	"reservd/pkg/model"
)

// Log is the append-only record of every committed mutation. Sequence
// numbers are 1-based, strictly increasing and gapless; they are never
// reused. The log stores snapshots by value, so history is unaffected by
// later mutation of live records.
type Log struct {
	mu      sync.RWMutex
	records []model.ChangeRecord
}

func NewLog() *Log {
	return &Log{}
}

// NewLogFrom seeds a log with previously persisted records, e.g. when
// rehydrating from the archive at startup. Records must already be in
// sequence order starting at 1.
func NewLogFrom(records []model.ChangeRecord) *Log {
	l := &Log{records: make([]model.ChangeRecord, len(records))}
	copy(l.records, records)
	return l
}

// Append assigns the next sequence number and stores the record. The caller
// holds the per-resource lock of the mutation being recorded, so per-resource
// append order matches commit order.
func (l *Log) Append(reservationID string, op model.Operation, snapshot model.Reservation) model.ChangeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := model.ChangeRecord{
		Sequence:      uint64(len(l.records)) + 1,
		ReservationID: reservationID,
		Operation:     op,
		Snapshot:      snapshot,
		RecordedAt:    time.Now().UTC(),
	}
	l.records = append(l.records, rec)
	return rec
}

// ReadFrom returns a copy of every record with sequence >= from. A from of
// 0 or 1 reads the full history; reading past the end returns an empty
// slice. The result is a snapshot: it does not grow with later appends.
func (l *Log) ReadFrom(from uint64) []model.ChangeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if from < 1 {
		from = 1
	}
	if from > uint64(len(l.records)) {
		return nil
	}
	out := make([]model.ChangeRecord, uint64(len(l.records))-from+1)
	copy(out, l.records[from-1:])
	return out
}

// LastSequence returns the sequence of the most recent record, 0 when empty.
func (l *Log) LastSequence() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records))
}
