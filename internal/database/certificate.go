package repository

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"TradeGate/entity"
)

// InsertRenewalReminder records that a certificate reminded in its
// current window. The window key is the document id, so a second run
// inside the same window fails with entity.ErrDuplicateEvent and the
// watch job skips the certificate.
func (m *MongoDB) InsertRenewalReminder(reminder *entity.RenewalReminder) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(renewalsCollection)

	_, err = collection.InsertOne(m.ctx, reminder)
	if err != nil {
		if isDuplicateKey(err) {
			return entity.ErrDuplicateEvent
		}
		return fmt.Errorf("mongodb insert renewal reminder: %w", err)
	}
	return nil
}

func (m *MongoDB) ListRenewalReminders(certificateID string) ([]entity.RenewalReminder, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(renewalsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: -1}})
	cursor, err := collection.Find(m.ctx, bson.D{{Key: "certificate_id", Value: certificateID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find renewal reminders: %w", err)
	}
	defer cursor.Close(m.ctx)

	var reminders []entity.RenewalReminder
	if err = cursor.All(m.ctx, &reminders); err != nil {
		return nil, fmt.Errorf("mongodb decode renewal reminders: %w", err)
	}
	return reminders, nil
}
