package repository

import (
	"context"

	"github.com/orghub/security-log/internal/models"
	"github.com/orghub/security-log/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const detailCollection = "security_log_details"

type LogDetailRepository struct {
	db *storage.Mongo
}

func NewLogDetailRepository(db *storage.Mongo) *LogDetailRepository {
	return &LogDetailRepository{db: db}
}

// Inserts a new detail document
func (r *LogDetailRepository) Create(ctx context.Context, detail *models.LogDetail) error {
	_, err := r.db.Collection(detailCollection).InsertOne(ctx, detail)
	return err
}

// Retrieves the detail document for a correlation id. Returns (nil, nil) when
// no document correlates: a missing detail is an accepted degraded state.
func (r *LogDetailRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*models.LogDetail, error) {
	var detail models.LogDetail
	err := r.db.Collection(detailCollection).
		FindOne(ctx, bson.M{"correlation_id": correlationID}).
		Decode(&detail)

	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &detail, nil
}
