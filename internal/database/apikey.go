package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"TradeGate/entity"
)

// CheckApiKey resolves a bearer token to the staff identity it was
// issued for.
func (m *MongoDB) CheckApiKey(key string) (*entity.StaffAuth, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(apiKeysCollection)

	var result struct {
		Username string `bson:"username"`
		Role     string `bson:"role"`
		Key      string `bson:"key"`
	}
	err = collection.FindOne(m.ctx, bson.D{{Key: "key", Value: key}}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb find api key: %w", err)
	}

	if result.Username == "" {
		return nil, fmt.Errorf("api key not found")
	}

	return &entity.StaffAuth{Username: result.Username, Role: result.Role}, nil
}

func (m *MongoDB) getKeyByUsername(username string) (string, error) {
	connection, err := m.connect()
	if err != nil {
		return "", err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(apiKeysCollection)

	var result struct {
		Key string `bson:"key"`
	}
	err = collection.FindOne(m.ctx, bson.D{{Key: "username", Value: username}}).Decode(&result)
	if err != nil {
		return "", m.findError(err)
	}

	return result.Key, nil
}

// GenerateApiKey issues (or returns the existing) token for a staff
// username.
func (m *MongoDB) GenerateApiKey(username, role string) (string, error) {
	k, err := m.getKeyByUsername(username)
	if err != nil {
		return "", fmt.Errorf("failed to get existing API key: %w", err)
	}
	if k != "" {
		return k, nil
	}

	connection, err := m.connect()
	if err != nil {
		return "", err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(apiKeysCollection)

	key := uuid.NewString()
	doc := bson.D{
		{Key: "username", Value: username},
		{Key: "role", Value: role},
		{Key: "key", Value: key},
	}

	_, err = collection.InsertOne(m.ctx, doc)
	if err != nil {
		return "", fmt.Errorf("mongodb insert error: %w", err)
	}

	return key, nil
}
