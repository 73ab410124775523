package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

const (
	collectionRecords  = "inventory_records"
	collectionEvents   = "scan_events"
	collectionCounters = "counters"

	recordSequence = "inventory_records"
)

type RecordRepository struct {
	records  *mongo.Collection
	events   *mongo.Collection
	counters *mongo.Collection
}

var _ ports.RecordRepository = (*RecordRepository)(nil)

func NewRecordRepository(db *mongo.Database) *RecordRepository {
	return &RecordRepository{
		records:  db.Collection(collectionRecords),
		events:   db.Collection(collectionEvents),
		counters: db.Collection(collectionCounters),
	}
}

// FindByKey retrieves a record by its reference and serial.
func (r *RecordRepository) FindByKey(ctx context.Context, key domain.Key) (*domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec domain.InventoryRecord
	err := r.records.FindOne(ctx, bson.M{"reference": key.Reference, "serial": key.Serial}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, domain.NewStoreError("find record", err)
	}
	normalizeTimes(&rec)
	return &rec, nil
}

// Create assigns the next sequential id and inserts the record.
func (r *RecordRepository) Create(ctx context.Context, rec *domain.InventoryRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return domain.NewStoreError("create record", err)
	}
	rec.ID = id

	if _, err := r.records.InsertOne(ctx, rec); err != nil {
		return domain.NewStoreError("create record", err)
	}
	return nil
}

func (r *RecordRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": recordSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

// Update replaces the mutable fields of the record identified by rec's key.
func (r *RecordRepository) Update(ctx context.Context, rec *domain.InventoryRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"reference": rec.Reference, "serial": rec.Serial}
	update := bson.M{"$set": bson.M{
		"status":         string(rec.Status),
		"stocked_by":     rec.StockedBy,
		"installed_by":   rec.InstalledBy,
		"uninstalled_by": rec.UninstalledBy,
		"stocked_at":     rec.StockedAt,
		"dispatched_at":  rec.DispatchedAt,
		"installed_at":   rec.InstalledAt,
		"uninstalled_at": rec.UninstalledAt,
		"client":         rec.Client,
	}}

	res, err := r.records.UpdateOne(ctx, filter, update)
	if err != nil {
		return domain.NewStoreError("update record", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// List returns records sorted by id descending, optionally filtered by client.
func (r *RecordRepository) List(ctx context.Context, f ports.ListRecordsFilter) ([]*domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.Client != "" {
		filter["client"] = f.Client
	}
	opts := options.Find().SetSort(bson.D{{Key: "record_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.records.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.NewStoreError("list records", err)
	}
	defer cur.Close(ctx)

	var out []*domain.InventoryRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, domain.NewStoreError("list records", err)
	}
	for _, rec := range out {
		normalizeTimes(rec)
	}
	return out, nil
}

// InsertEvent persists a scan event to the audit collection.
func (r *RecordRepository) InsertEvent(ctx context.Context, e *domain.ScanEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.events.InsertOne(ctx, e)
	return domain.NewStoreError("insert event", err)
}

// EnsureIndexes creates the unique item key index and the listing indexes.
func (r *RecordRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reference", Value: 1}, {Key: "serial", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "record_id", Value: -1}}},
		{Keys: bson.D{{Key: "client", Value: 1}, {Key: "record_id", Value: -1}}},
	}
	if _, err := r.records.Indexes().CreateMany(ctx, indexes); err != nil {
		return err
	}

	_, err := r.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "reference", Value: 1}, {Key: "serial", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}

// normalizeTimes converts decoded timestamps to UTC; BSON dates carry
// millisecond precision and decode in the local zone.
func normalizeTimes(rec *domain.InventoryRecord) {
	for _, ts := range []**time.Time{&rec.StockedAt, &rec.DispatchedAt, &rec.InstalledAt, &rec.UninstalledAt} {
		if *ts != nil {
			v := (**ts).UTC()
			*ts = &v
		}
	}
}
