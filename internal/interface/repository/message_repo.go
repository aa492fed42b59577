package repository

import (
	"context"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMessageLogRepository implements the MessageLogRepository interface
type MongoMessageLogRepository struct {
	collection *mongo.Collection
}

type messageLogDoc struct {
	ReportDate time.Time               `bson:"reportDate"`
	MessageID  string                  `bson:"messageId"`
	LoggedAt   time.Time               `bson:"loggedAt"`
	Message    entity.CanonicalMessage `bson:"message"`
}

// NewMongoMessageLogRepository creates a new MongoDB message log repository
func NewMongoMessageLogRepository(db *mongo.Database) repository.MessageLogRepository {
	collection := db.Collection("messageLogs")

	// One archive entry per (report date, message); re-runs overwrite.
	ctx := context.Background()
	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "reportDate", Value: 1},
				{Key: "messageId", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.M{"reportDate": 1},
		},
	})

	return &MongoMessageLogRepository{
		collection: collection,
	}
}

// SaveBatch archives the canonical messages a report was built from.
// Existing entries for the same date and message are replaced.
func (r *MongoMessageLogRepository) SaveBatch(ctx context.Context, reportDate time.Time, messages []*entity.CanonicalMessage) error {
	if len(messages) == 0 {
		return nil
	}

	day := reportDate.UTC().Truncate(24 * time.Hour)
	now := time.Now().UTC()

	models := make([]mongo.WriteModel, 0, len(messages))
	for _, msg := range messages {
		doc := messageLogDoc{
			ReportDate: day,
			MessageID:  msg.MessageID,
			LoggedAt:   now,
			Message:    *msg,
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"reportDate": day, "messageId": msg.MessageID}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	_, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

// FindByReportDate returns the archived messages for a report date.
func (r *MongoMessageLogRepository) FindByReportDate(ctx context.Context, reportDate time.Time) ([]*entity.CanonicalMessage, error) {
	day := reportDate.UTC().Truncate(24 * time.Hour)

	cursor, err := r.collection.Find(ctx, bson.M{"reportDate": day}, &options.FindOptions{
		Sort: bson.D{{Key: "message.receivedAt", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageLogDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	messages := make([]*entity.CanonicalMessage, 0, len(docs))
	for i := range docs {
		messages = append(messages, &docs[i].Message)
	}
	return messages, nil
}
