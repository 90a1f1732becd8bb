package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

const defaultMongoDatabase = "yugioh"

// MongoStore keeps the card table in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	cards  *mongo.Collection
}

type cardDoc struct {
	ID          int64  `bson:"_id"`
	Name        string `bson:"name"`
	Category    string `bson:"category"`
	Description string `bson:"description"`
	RawData     string `bson:"raw_data"`
	ImageURL    string `bson:"image_url"`
	UpdatedAt   int64  `bson:"updated_at"`
}

func (d cardDoc) card() models.Card {
	return models.Card{
		ID:          d.ID,
		Name:        d.Name,
		Category:    d.Category,
		Description: d.Description,
		RawData:     d.RawData,
		ImageURL:    d.ImageURL,
	}
}

// OpenMongo connects to uri. The database comes from the URI path, falling
// back to "yugioh".
func OpenMongo(ctx context.Context, uri string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb needs a connection URI")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	s := &MongoStore{
		client: client,
		cards:  client.Database(mongoDatabase(uri)).Collection("cards"),
	}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	_, err = s.cards.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		slog.Warn("Could not create card name index", "err", err)
	}
	return s, nil
}

func mongoDatabase(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Driver returns "mongodb".
func (s *MongoStore) Driver() string { return DriverMongo }

// Ping checks the connection within ten seconds.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}
	return nil
}

// FetchPage returns limit cards starting at offset in name order.
func (s *MongoStore) FetchPage(ctx context.Context, offset, limit int) (catalog.Page, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cards, err := s.find(ctx, bson.M{}, opts)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("fetch page at %d: %w", offset, err)
	}
	return catalog.Page{Cards: cards, Raw: len(cards)}, nil
}

// Query matches name or description case-insensitively.
func (s *MongoStore) Query(ctx context.Context, f catalog.Filter) ([]models.Card, error) {
	var or bson.A
	if f.Name != "" {
		or = append(or, bson.M{"name": containsRegex(f.Name)})
	}
	if f.Description != "" {
		or = append(or, bson.M{"description": containsRegex(f.Description)})
	}
	if len(or) == 0 {
		return nil, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cards, err := s.find(ctx, bson.M{"$or": or}, opts)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	return cards, nil
}

func containsRegex(text string) bson.Regex {
	return bson.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
}

func (s *MongoStore) find(ctx context.Context, filter any, opts *options.FindOptionsBuilder) ([]models.Card, error) {
	cursor, err := s.cards.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []cardDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	cards := make([]models.Card, 0, len(docs))
	for _, d := range docs {
		cards = append(cards, d.card())
	}
	return cards, nil
}

// GetCard returns one card by id.
func (s *MongoStore) GetCard(ctx context.Context, id int64) (models.Card, bool, error) {
	var doc cardDoc
	err := s.cards.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Card{}, false, nil
	}
	if err != nil {
		return models.Card{}, false, fmt.Errorf("get card %d: %w", id, err)
	}
	return doc.card(), true, nil
}

// UpsertCards replaces each card document by id in one bulk write.
func (s *MongoStore) UpsertCards(ctx context.Context, cards []models.Card) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	writes := make([]mongo.WriteModel, 0, len(cards))
	for _, c := range cards {
		doc := cardDoc{
			ID:          c.ID,
			Name:        c.Name,
			Category:    c.Category,
			Description: c.Description,
			RawData:     c.RawData,
			ImageURL:    c.ImageURL,
			UpdatedAt:   now,
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": c.ID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	if _, err := s.cards.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return 0, fmt.Errorf("upsert cards: %w", err)
	}
	return len(cards), nil
}

// CountCards returns the number of card documents.
func (s *MongoStore) CountCards(ctx context.Context) (int, error) {
	n, err := s.cards.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return int(n), nil
}

// CardIDs returns every card id in name order.
func (s *MongoStore) CardIDs(ctx context.Context) ([]int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	cursor, err := s.cards.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list card ids: %w", err)
	}
	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list card ids: %w", err)
	}
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
