package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/inklet-app/inklet/backend/internal/models"
)

// MongoStore holds saved works and daily cards.
type MongoStore struct {
	works *mongo.Collection
	daily *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		works: db.Collection("works"),
		daily: db.Collection("daily_cards"),
	}
}

// EnsureIndexes creates the unique (user_id, date) index the daily upsert
// depends on for its one-row-per-day guarantee.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.daily.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("daily_cards index: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertWork(ctx context.Context, w *models.Work) (string, error) {
	w.CreatedAt = time.Now()
	res, err := s.works.InsertOne(ctx, w)
	if err != nil {
		return "", fmt.Errorf("mongo insert work: %w", err)
	}
	oid := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *MongoStore) ListWorksByUser(ctx context.Context, userID string) ([]models.Work, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.works.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var works []models.Work
	if err := cur.All(ctx, &works); err != nil {
		return nil, err
	}
	return works, nil
}

func (s *MongoStore) GetWorkByID(ctx context.Context, id string) (*models.Work, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	var w models.Work
	if err := s.works.FindOne(ctx, bson.M{"_id": oid}).Decode(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *MongoStore) DeleteWork(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	_, err = s.works.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

// UpsertDailyCard writes the card for its (user, date) key. Repeated runs
// on the same date converge to one row; last writer wins.
func (s *MongoStore) UpsertDailyCard(ctx context.Context, card *models.DailyCard) error {
	filter := bson.M{"user_id": card.UserID, "date": card.Date}
	update := bson.M{"$set": bson.M{
		"user_id":    card.UserID,
		"date":       card.Date,
		"title":      card.Title,
		"message":    card.Message,
		"media":      card.Media,
		"note_ids":   card.NoteIDs,
		"updated_at": card.UpdatedAt,
	}}
	opts := options.Update().SetUpsert(true)
	_, err := s.daily.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("mongo upsert daily card: %w", err)
	}
	return nil
}

// GetDailyCard returns the stored card for the date, or nil when absent.
func (s *MongoStore) GetDailyCard(ctx context.Context, userID, date string) (*models.DailyCard, error) {
	var card models.DailyCard
	err := s.daily.FindOne(ctx, bson.M{"user_id": userID, "date": date}).Decode(&card)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}
