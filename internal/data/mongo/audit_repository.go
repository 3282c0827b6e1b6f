// Package mongo archives published domain events so audit and compliance
// consumers can read them without touching the transactional store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vcard-ledger/internal/domain/outbox"
)

// ErrAuditRecordNotFound indicates no archived event carries the requested id
var ErrAuditRecordNotFound = errors.New("audit record not found")

// AuditRecord is the archived form of an outbound domain event
type AuditRecord struct {
	EventID       string    `bson:"event_id"`
	Type          string    `bson:"type"`
	AggregateID   string    `bson:"aggregate_id"`
	OccurredAt    time.Time `bson:"timestamp"`
	CorrelationID string    `bson:"correlation_id"`
	ActorID       string    `bson:"actor_id"`
	Payload       bson.M    `bson:"payload"`
	ArchivedAt    time.Time `bson:"archived_at"`
}

// AuditRepository appends domain events to a MongoDB collection. Records are never updated.
type AuditRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, collection *mongo.Collection) *AuditRepository {
	return &AuditRepository{
		collection: collection,
		logger:     logger,
	}
}

// EnsureIndexes creates the unique event_id index that makes Archive idempotent
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("event_id_unique"),
	})
	if err != nil {
		r.logger.Error("Failed to create audit indexes", "error", err)
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

// Archive stores the event once. Re-archiving an already stored event is a no-op,
// which keeps outbox redelivery after a crash harmless.
func (r *AuditRepository) Archive(ctx context.Context, event *outbox.Event) error {
	existing, err := r.GetByEventID(ctx, event.EventID.String())
	if err != nil && !errors.Is(err, ErrAuditRecordNotFound) {
		r.logger.Error("Failed to check for existing audit record",
			"event_id", event.EventID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing audit record: %w", err)
	}
	if existing != nil {
		r.logger.Debug("Event already archived", "event_id", event.EventID.String())
		return nil
	}

	record, err := toAuditRecord(event)
	if err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		r.logger.Error("Failed to archive event",
			"event_id", event.EventID.String(),
			"event_type", string(event.Type),
			"error", err)
		return fmt.Errorf("failed to archive event: %w", err)
	}

	return nil
}

// GetByEventID retrieves an archived event
func (r *AuditRepository) GetByEventID(ctx context.Context, eventID string) (*AuditRecord, error) {
	var record AuditRecord
	err := r.collection.FindOne(ctx, bson.M{"event_id": eventID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAuditRecordNotFound
		}
		r.logger.Error("Failed to get audit record", "event_id", eventID, "error", err)
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}
	return &record, nil
}

// ListByAggregate returns the archived events of one card or transaction, oldest first
func (r *AuditRepository) ListByAggregate(ctx context.Context, aggregateID string, limit int64) ([]*AuditRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"aggregate_id": aggregateID}, opts)
	if err != nil {
		r.logger.Error("Failed to list audit records", "aggregate_id", aggregateID, "error", err)
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*AuditRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode audit records: %w", err)
	}
	return records, nil
}

func toAuditRecord(event *outbox.Event) (*AuditRecord, error) {
	payload := bson.M{}
	if len(event.Payload) > 0 {
		if err := bson.UnmarshalExtJSON(event.Payload, false, &payload); err != nil {
			return nil, fmt.Errorf("failed to convert event payload: %w", err)
		}
	}

	return &AuditRecord{
		EventID:       event.EventID.String(),
		Type:          string(event.Type),
		AggregateID:   event.AggregateID.String(),
		OccurredAt:    event.OccurredAt,
		CorrelationID: event.CorrelationID,
		ActorID:       event.ActorID,
		Payload:       payload,
		ArchivedAt:    time.Now().UTC(),
	}, nil
}
