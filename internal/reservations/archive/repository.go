package archive

import (
	"context"
	"fmt"
	"time"

	"reservd/pkg/config"
	mongotx "reservd/pkg/db/mongo"
	"reservd/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RecordsCollectionName   = "ChangeRecords"
	SnapshotsCollectionName = "Reservations"
)

// ArchiveRepository persists the change log to MongoDB so the in-memory core
// can be rebuilt after a restart.
type ArchiveRepository interface {
	// SaveRecord stores a change record and upserts the reservation snapshot
	// in a single transaction.
	SaveRecord(ctx context.Context, rec model.ChangeRecord) error

	// LoadRecords returns all archived records in sequence order.
	LoadRecords(ctx context.Context) ([]model.ChangeRecord, error)

	// LastSequence returns the highest archived sequence, or zero when the
	// archive is empty.
	LastSequence(ctx context.Context) (uint64, error)
}

type mongoArchiveRepository struct {
	cfg       *config.Config
	db        *mongo.Database
	records   *mongo.Collection
	snapshots *mongo.Collection
	txManager mongotx.TransactionManager
}

func NewMongoArchiveRepository(cfg *config.Config) ArchiveRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoArchiveRepository{
		cfg:       cfg,
		db:        db,
		records:   db.Collection(RecordsCollectionName),
		snapshots: db.Collection(SnapshotsCollectionName),
		txManager: mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless it is a transaction
// SessionContext, which cannot be wrapped without breaking transaction
// semantics.
func (r *mongoArchiveRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoArchiveRepository) SaveRecord(ctx context.Context, rec model.ChangeRecord) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.records.InsertOne(sessCtx, rec); err != nil {
			// A duplicate sequence means the record was archived on an
			// earlier attempt; fall through to the snapshot upsert, which
			// is idempotent.
			if !mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("failed to insert change record %d: %w", rec.Sequence, err)
			}
		}

		filter := bson.M{"_id": rec.Snapshot.ID}
		update := bson.M{"$set": rec.Snapshot}
		opts := options.Update().SetUpsert(true)

		if _, err := r.snapshots.UpdateOne(sessCtx, filter, update, opts); err != nil {
			return fmt.Errorf("failed to upsert snapshot for reservation %s: %w", rec.ReservationID, err)
		}

		return nil
	})
}

func (r *mongoArchiveRepository) LoadRecords(ctx context.Context) ([]model.ChangeRecord, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.M{"_id": 1})
	cursor, err := r.records.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load change records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []model.ChangeRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode change records: %w", err)
	}

	return records, nil
}

func (r *mongoArchiveRepository) LastSequence(ctx context.Context) (uint64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"_id": -1})

	var rec model.ChangeRecord
	err := r.records.FindOne(ctx, bson.M{}, opts).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read last archived sequence: %w", err)
	}

	return rec.Sequence, nil
}
