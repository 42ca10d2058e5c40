package repository

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"TradeGate/entity"
)

func (m *MongoDB) InsertLead(lead *entity.Lead) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)

	_, err = collection.InsertOne(m.ctx, lead)
	if err != nil {
		return fmt.Errorf("mongodb insert lead: %w", err)
	}
	return nil
}

func (m *MongoDB) GetLead(id string) (*entity.Lead, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)

	var lead entity.Lead
	err = collection.FindOne(m.ctx, bson.D{{Key: "_id", Value: id}}).Decode(&lead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb find lead: %w", err)
	}
	return &lead, nil
}

func (m *MongoDB) ListLeads(status entity.LeadStatus, channel entity.ChannelType) ([]entity.Lead, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)

	filter := bson.D{}
	if status != "" {
		filter = append(filter, bson.E{Key: "status", Value: status})
	}
	if channel != "" {
		filter = append(filter, bson.E{Key: "channel", Value: channel})
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find leads: %w", err)
	}
	defer cursor.Close(m.ctx)

	var leads []entity.Lead
	if err = cursor.All(m.ctx, &leads); err != nil {
		return nil, fmt.Errorf("mongodb decode leads: %w", err)
	}
	return leads, nil
}

// UpdateLeadStatus applies a monotonic status transition. The write is
// conditional on the last-seen status, so a concurrent transition makes
// the stale caller fail with entity.ErrStaleState instead of silently
// overwriting.
func (m *MongoDB) UpdateLeadStatus(id string, from, to entity.LeadStatus) error {
	if !from.CanTransition(to) {
		return entity.ErrInvalidTransition
	}

	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)

	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: from}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: to}}}}

	res, err := collection.UpdateOne(m.ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongodb update lead status: %w", err)
	}
	if res.MatchedCount == 0 {
		return entity.ErrStaleState
	}
	return nil
}
