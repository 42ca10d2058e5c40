package repository

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"TradeGate/entity"
)

func (m *MongoDB) GetAnalyticsSummary(since time.Time) (*entity.AnalyticsSummary, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	summary := &entity.AnalyticsSummary{}

	summary.Sessions, err = m.dailyCounts(db.Collection(sessionsCollection), since, "$channel")
	if err != nil {
		return nil, fmt.Errorf("aggregate sessions: %w", err)
	}

	summary.Messages, err = m.dailyMessageCounts(db, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate messages: %w", err)
	}

	summary.Leads, err = m.dailyCounts(db.Collection(leadsCollection), since, "$channel")
	if err != nil {
		return nil, fmt.Errorf("aggregate leads: %w", err)
	}

	return summary, nil
}

// dailyMessageCounts buckets messages by the owning session's channel.
// Messages carry no channel of their own, so it comes in via $lookup.
func (m *MongoDB) dailyMessageCounts(db *mongo.Database, since time.Time) ([]entity.DailyCount, error) {
	collection := db.Collection(messagesCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: sessionsCollection},
			{Key: "localField", Value: "session_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "session"},
		}}},
		{{Key: "$unwind", Value: "$session"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "day", Value: bson.D{{Key: "$dateToString", Value: bson.D{
					{Key: "format", Value: "%Y-%m-%d"},
					{Key: "date", Value: "$created_at"},
				}}}},
				{Key: "channel", Value: "$session.channel"},
			}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.day", Value: 1}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "day", Value: "$_id.day"},
			{Key: "channel", Value: "$_id.channel"},
			{Key: "count", Value: 1},
		}}},
	}

	cursor, err := collection.Aggregate(m.ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(m.ctx)

	var counts []entity.DailyCount
	if err = cursor.All(m.ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (m *MongoDB) dailyCounts(collection *mongo.Collection, since time.Time, bucket string) ([]entity.DailyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "day", Value: bson.D{{Key: "$dateToString", Value: bson.D{
					{Key: "format", Value: "%Y-%m-%d"},
					{Key: "date", Value: "$created_at"},
				}}}},
				{Key: "channel", Value: bucket},
			}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.day", Value: 1}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "day", Value: "$_id.day"},
			{Key: "channel", Value: "$_id.channel"},
			{Key: "count", Value: 1},
		}}},
	}

	cursor, err := collection.Aggregate(m.ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(m.ctx)

	var counts []entity.DailyCount
	if err = cursor.All(m.ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}
