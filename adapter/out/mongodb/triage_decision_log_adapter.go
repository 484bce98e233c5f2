package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// =============================================================================
// MongoDB Decision Log Adapter
// =============================================================================

const (
	collectionDecisions = "triage_decisions"

	// Decision records are audit data, kept for 90 days.
	decisionRetention = 90 * 24 * time.Hour
)

// DecisionLogAdapter implements out.DecisionLog using MongoDB.
type DecisionLogAdapter struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewDecisionLogAdapter creates a new MongoDB decision log adapter.
func NewDecisionLogAdapter(db *mongo.Database) *DecisionLogAdapter {
	collection := db.Collection(collectionDecisions)
	return &DecisionLogAdapter{
		db:         db,
		collection: collection,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *DecisionLogAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "decided_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "message_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

// decisionDocument represents the MongoDB document structure.
type decisionDocument struct {
	OwnerID       string    `bson:"owner_id"`
	MessageID     string    `bson:"message_id"`
	Outcome       string    `bson:"outcome"`
	ThreadID      *int64    `bson:"thread_id,omitempty"`
	BestScore     float64   `bson:"best_score"`
	Threshold     float64   `bson:"threshold"`
	CandidateSize int       `bson:"candidate_size"`
	Relevance     string    `bson:"relevance,omitempty"`
	Reason        string    `bson:"reason,omitempty"`
	DecidedAt     time.Time `bson:"decided_at"`
	ExpiresAt     time.Time `bson:"expires_at"`
}

// =============================================================================
// Operations
// =============================================================================

// Record appends one decision record.
func (a *DecisionLogAdapter) Record(ctx context.Context, rec *domain.DecisionRecord) error {
	doc := &decisionDocument{
		OwnerID:       rec.OwnerID.String(),
		MessageID:     rec.MessageID,
		Outcome:       string(rec.Outcome),
		ThreadID:      rec.ThreadID,
		BestScore:     rec.BestScore,
		Threshold:     rec.Threshold,
		CandidateSize: rec.CandidateSize,
		Relevance:     string(rec.Relevance),
		Reason:        rec.Reason,
		DecidedAt:     rec.DecidedAt,
		ExpiresAt:     rec.DecidedAt.Add(decisionRetention),
	}

	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// ListRecent returns the latest decisions for an owner, newest first.
func (a *DecisionLogAdapter) ListRecent(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.DecisionRecord, error) {
	filter := bson.M{"owner_id": ownerID.String()}

	findOpts := options.Find().SetSort(bson.D{{Key: "decided_at", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := a.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.DecisionRecord
	for cursor.Next(ctx) {
		var doc decisionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode decision: %w", err)
		}

		rec, err := a.toDomain(&doc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func (a *DecisionLogAdapter) toDomain(doc *decisionDocument) (*domain.DecisionRecord, error) {
	ownerID, err := uuid.Parse(doc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse owner ID: %w", err)
	}

	return &domain.DecisionRecord{
		OwnerID:       ownerID,
		MessageID:     doc.MessageID,
		Outcome:       domain.DecisionOutcome(doc.Outcome),
		ThreadID:      doc.ThreadID,
		BestScore:     doc.BestScore,
		Threshold:     doc.Threshold,
		CandidateSize: doc.CandidateSize,
		Relevance:     domain.Relevance(doc.Relevance),
		Reason:        doc.Reason,
		DecidedAt:     doc.DecidedAt,
	}, nil
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.DecisionLog = (*DecisionLogAdapter)(nil)
