// Package mongo stores the append-only transaction history in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
)

const (
	// HistoryCollectionName is the name of the transaction history collection in MongoDB
	HistoryCollectionName = "transaction_history"
)

// HistoryRepository implements the reconciliation.HistoryRepository interface for MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the lookup indexes used by listing and import deletion
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(HistoryCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "import_id", Value: 1}}},
	})
	if err != nil {
		r.logger.Error("Failed to create history indexes", "error", err)
		return fmt.Errorf("failed to create history indexes: %w", err)
	}

	return nil
}

// Append stores history entries. Entries are never updated afterwards.
func (r *HistoryRepository) Append(ctx context.Context, entries ...*reconciliation.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	collection := r.db.Collection(HistoryCollectionName)

	docs := make([]interface{}, len(entries))
	for i, entry := range entries {
		docs[i] = entry
	}

	_, err := collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		r.logger.Error("Failed to append history entries",
			"transaction_id", entries[0].TransactionID.String(),
			"count", len(entries),
			"error", err)
		return fmt.Errorf("failed to append history entries: %w", err)
	}

	return nil
}

// ListByTransactionID returns the history of a transaction, oldest first
func (r *HistoryRepository) ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*reconciliation.HistoryEntry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"transaction_id": transactionID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get history entries",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get history entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*reconciliation.HistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode history entries",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode history entries: %w", err)
	}

	return entries, nil
}

// DeleteByImportID removes the history of every transaction of an import
func (r *HistoryRepository) DeleteByImportID(ctx context.Context, importID uuid.UUID) (int64, error) {
	collection := r.db.Collection(HistoryCollectionName)

	result, err := collection.DeleteMany(ctx, bson.M{"import_id": importID})
	if err != nil {
		r.logger.Error("Failed to delete history entries",
			"import_id", importID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to delete history entries: %w", err)
	}

	return result.DeletedCount, nil
}
