package repository

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"TradeGate/entity"
)

// ResolveOpenSession returns the open session for (channel, sender),
// creating one atomically if none exists. The unique partial index on
// (channel, sender_id, open) guarantees two near-simultaneous inbound
// events cannot create two sessions; the loser of the race re-reads
// the winner's document.
func (m *MongoDB) ResolveOpenSession(ev entity.InboundEvent) (*entity.Session, bool, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)

	fresh := entity.NewSession(ev)
	filter := bson.D{
		{Key: "channel", Value: ev.Channel},
		{Key: "sender_id", Value: ev.SenderID},
		{Key: "open", Value: true},
	}
	update := bson.D{{Key: "$setOnInsert", Value: fresh}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var session entity.Session
	err = collection.FindOneAndUpdate(m.ctx, filter, update, opts).Decode(&session)
	if err != nil {
		if isDuplicateKey(err) {
			// Lost the creation race; the winner's session is now open.
			err = collection.FindOne(m.ctx, filter).Decode(&session)
			if err != nil {
				return nil, false, fmt.Errorf("%w: %v", entity.ErrRoutingConflict, err)
			}
			return &session, false, nil
		}
		return nil, false, fmt.Errorf("mongodb resolve session: %w", err)
	}

	return &session, session.ID == fresh.ID, nil
}

func (m *MongoDB) GetSession(id string) (*entity.Session, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)

	var session entity.Session
	err = collection.FindOne(m.ctx, bson.D{{Key: "_id", Value: id}}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb find session: %w", err)
	}
	return &session, nil
}

// UpdateSessionStatus moves a session between ownership states with a
// conditional write: the update only applies if the current status is
// one of from. A stale caller gets entity.ErrStaleState.
func (m *MongoDB) UpdateSessionStatus(id string, from []entity.SessionStatus, to entity.SessionStatus, assignedTo string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)

	set := bson.D{
		{Key: "status", Value: to},
		{Key: "last_activity", Value: time.Now().UTC()},
	}
	if assignedTo != "" {
		set = append(set, bson.E{Key: "assigned_to", Value: assignedTo})
	}
	if to == entity.SessionClosed {
		set = append(set, bson.E{Key: "open", Value: false})
	}

	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: bson.D{{Key: "$in", Value: from}}},
	}

	res, err := collection.UpdateOne(m.ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("mongodb update session status: %w", err)
	}
	if res.MatchedCount == 0 {
		return entity.ErrStaleState
	}
	return nil
}

// CloseIdleSessions closes every open session with no activity since
// cutoff and returns how many were closed.
func (m *MongoDB) CloseIdleSessions(cutoff time.Time) (int64, error) {
	connection, err := m.connect()
	if err != nil {
		return 0, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)

	filter := bson.D{
		{Key: "open", Value: true},
		{Key: "last_activity", Value: bson.D{{Key: "$lt", Value: cutoff}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: entity.SessionClosed},
		{Key: "open", Value: false},
	}}}

	res, err := collection.UpdateMany(m.ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("mongodb close idle sessions: %w", err)
	}
	return res.ModifiedCount, nil
}

// ListSessions returns session summaries, newest activity first, with
// the last message text and unread inbound count joined in.
func (m *MongoDB) ListSessions(status entity.SessionStatus, channel entity.ChannelType) ([]entity.SessionSummary, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)

	match := bson.D{}
	if status != "" {
		match = append(match, bson.E{Key: "status", Value: status})
	}
	if channel != "" {
		match = append(match, bson.E{Key: "channel", Value: channel})
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "last_activity", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: messagesCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "session_id"},
			{Key: "as", Value: "msgs"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "last_message", Value: bson.D{{Key: "$last", Value: "$msgs.content"}}},
			{Key: "unread", Value: bson.D{{Key: "$size", Value: bson.D{
				{Key: "$filter", Value: bson.D{
					{Key: "input", Value: "$msgs"},
					{Key: "as", Value: "msg"},
					{Key: "cond", Value: bson.D{{Key: "$and", Value: bson.A{
						bson.D{{Key: "$eq", Value: bson.A{"$$msg.direction", entity.DirectionInbound}}},
						bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$$msg.read_by", bson.A{}}}}}}, 0}}},
					}}}},
				}},
			}}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "msgs", Value: 0}}}},
	}

	cursor, err := collection.Aggregate(m.ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb aggregate sessions: %w", err)
	}
	defer cursor.Close(m.ctx)

	var summaries []entity.SessionSummary
	if err = cursor.All(m.ctx, &summaries); err != nil {
		return nil, fmt.Errorf("mongodb decode session summaries: %w", err)
	}
	return summaries, nil
}
