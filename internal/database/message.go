package repository

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"TradeGate/entity"
)

// AppendMessage persists a message into the session's append-only
// ledger. The sequence number is taken from the session document's
// counter in the same update that bumps last_activity, so ties on
// created_at still order deterministically.
func (m *MongoDB) AppendMessage(msg *entity.Message) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	var session entity.Session
	err = db.Collection(sessionsCollection).FindOneAndUpdate(
		m.ctx,
		bson.D{{Key: "_id", Value: msg.SessionID}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "msg_seq", Value: 1}}},
			{Key: "$set", Value: bson.D{{Key: "last_activity", Value: time.Now().UTC()}}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&session)
	if err != nil {
		return fmt.Errorf("mongodb bump session seq: %w", err)
	}

	msg.Seq = session.MsgSeq
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err = db.Collection(messagesCollection).InsertOne(m.ctx, msg)
	if err != nil {
		return fmt.Errorf("mongodb insert message: %w", err)
	}
	return nil
}

// GetMessages returns a session's full history in display order.
func (m *MongoDB) GetMessages(sessionID string) ([]entity.Message, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(messagesCollection)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}})
	cursor, err := collection.Find(m.ctx, bson.D{{Key: "session_id", Value: sessionID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find messages: %w", err)
	}
	defer cursor.Close(m.ctx)

	var messages []entity.Message
	if err = cursor.All(m.ctx, &messages); err != nil {
		return nil, fmt.Errorf("mongodb decode messages: %w", err)
	}
	return messages, nil
}

// MarkMessagesRead records a staff read receipt on all inbound messages
// of a session.
func (m *MongoDB) MarkMessagesRead(username, sessionID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(messagesCollection)

	filter := bson.D{
		{Key: "session_id", Value: sessionID},
		{Key: "direction", Value: entity.DirectionInbound},
	}
	update := bson.D{{Key: "$addToSet", Value: bson.D{{Key: "read_by", Value: username}}}}

	_, err = collection.UpdateMany(m.ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongodb mark messages read: %w", err)
	}
	return nil
}
