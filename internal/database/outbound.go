package repository

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"TradeGate/entity"
)

// EnqueueOutbound appends a message to the delivery queue. The per-
// channel sequence from the counters collection preserves enqueue order
// between items sharing a scheduled_for time.
func (m *MongoDB) EnqueueOutbound(item *entity.Outbound) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err = db.Collection("counters").FindOneAndUpdate(
		m.ctx,
		bson.D{{Key: "_id", Value: "outbound:" + string(item.Channel)}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: 1}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return fmt.Errorf("mongodb outbound counter: %w", err)
	}
	item.Seq = counter.Seq

	_, err = db.Collection(outboundCollection).InsertOne(m.ctx, item)
	if err != nil {
		return fmt.Errorf("mongodb enqueue outbound: %w", err)
	}
	return nil
}

// ClaimDueOutbound atomically claims the oldest due pending item for a
// channel by flipping it to sending. Returns entity.ErrNotFound when
// nothing is due. Candidates are the head of each recipient's queue in
// (scheduled_for, seq) order: an earlier item backing off (not_before
// in the future) blocks later items for that recipient, so a retrying
// message is never overtaken, while other recipients keep flowing.
func (m *MongoDB) ClaimDueOutbound(channel entity.ChannelType, now time.Time) (*entity.Outbound, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(outboundCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "channel", Value: channel},
			{Key: "status", Value: entity.OutboundPending},
			{Key: "scheduled_for", Value: bson.D{{Key: "$lte", Value: now}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "scheduled_for", Value: 1}, {Key: "seq", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$recipient"},
			{Key: "head", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$head"}}}},
		{{Key: "$match", Value: bson.D{{Key: "not_before", Value: bson.D{{Key: "$lte", Value: now}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "scheduled_for", Value: 1}, {Key: "seq", Value: 1}}}},
		{{Key: "$limit", Value: 1}},
	}

	cursor, err := collection.Aggregate(m.ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb find due outbound: %w", err)
	}
	defer cursor.Close(m.ctx)

	var heads []entity.Outbound
	if err = cursor.All(m.ctx, &heads); err != nil {
		return nil, fmt.Errorf("mongodb decode due outbound: %w", err)
	}
	if len(heads) == 0 {
		return nil, entity.ErrNotFound
	}
	item := heads[0]

	// Conditional claim: losing to a concurrent worker is harmless,
	// the caller's next tick re-evaluates the queue.
	res, err := collection.UpdateOne(
		m.ctx,
		bson.D{{Key: "_id", Value: item.ID}, {Key: "status", Value: entity.OutboundPending}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: entity.OutboundSending}}}},
	)
	if err != nil {
		return nil, fmt.Errorf("mongodb claim outbound: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, entity.ErrNotFound
	}
	item.Status = entity.OutboundSending
	return &item, nil
}

func (m *MongoDB) MarkOutboundSent(id string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(outboundCollection)

	_, err = collection.UpdateOne(
		m.ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.OutboundSent},
			{Key: "sent_at", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb mark outbound sent: %w", err)
	}
	return nil
}

// ReleaseOutbound puts a claimed item back to pending after a transport
// failure, recording the attempt and deferring it until nextAttempt.
// The backoff lands on not_before, never scheduled_for, so the item
// keeps its position in the recipient's delivery order.
func (m *MongoDB) ReleaseOutbound(id string, attempts int, lastError string, nextAttempt time.Time) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(outboundCollection)

	_, err = collection.UpdateOne(
		m.ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.OutboundPending},
			{Key: "attempts", Value: attempts},
			{Key: "last_error", Value: lastError},
			{Key: "not_before", Value: nextAttempt},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb release outbound: %w", err)
	}
	return nil
}

func (m *MongoDB) MarkOutboundFailed(id string, attempts int, lastError string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(outboundCollection)

	_, err = collection.UpdateOne(
		m.ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.OutboundFailed},
			{Key: "attempts", Value: attempts},
			{Key: "last_error", Value: lastError},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb mark outbound failed: %w", err)
	}
	return nil
}

func (m *MongoDB) ListOutbound(status entity.OutboundStatus) ([]entity.Outbound, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(outboundCollection)

	filter := bson.D{}
	if status != "" {
		filter = append(filter, bson.E{Key: "status", Value: status})
	}

	opts := options.Find().SetSort(bson.D{{Key: "scheduled_for", Value: 1}, {Key: "seq", Value: 1}})
	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find outbound: %w", err)
	}
	defer cursor.Close(m.ctx)

	var items []entity.Outbound
	if err = cursor.All(m.ctx, &items); err != nil {
		return nil, fmt.Errorf("mongodb decode outbound: %w", err)
	}
	return items, nil
}

// RequeueStuckSending recovers items left in sending by a crashed
// worker. Called at startup before the workers begin.
func (m *MongoDB) RequeueStuckSending() (int64, error) {
	connection, err := m.connect()
	if err != nil {
		return 0, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(outboundCollection)

	res, err := collection.UpdateMany(
		m.ctx,
		bson.D{{Key: "status", Value: entity.OutboundSending}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: entity.OutboundPending}}}},
	)
	if err != nil {
		return 0, fmt.Errorf("mongodb requeue sending: %w", err)
	}
	return res.ModifiedCount, nil
}
