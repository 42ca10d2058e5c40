package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"TradeGate/internal/config"
	"TradeGate/internal/lib/sl"
)

const (
	sessionsCollection  = "sessions"
	messagesCollection  = "messages"
	leadsCollection     = "leads"
	invoicesCollection  = "invoices"
	jobsCollection      = "jobs"
	chaseCollection     = "chase-entries"
	paymentsCollection  = "payment-events"
	payLinksCollection  = "payment-links"
	renewalsCollection  = "renewal-reminders"
	outboundCollection  = "outbound"
	apiKeysCollection   = "api-keys"
	readMarksCollection = "read-marks"
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
	log           *slog.Logger
}

func NewMongoClient(conf *config.Config, logger *slog.Logger) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
		log:           logger.With(sl.Module("mongodb")),
	}
	return client, nil
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect error: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(m.ctx)
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find error: %w", err)
}

// EnsureIndexes bootstraps the uniqueness constraints the gateway
// relies on. Called once at startup.
func (m *MongoDB) EnsureIndexes() error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	// One open session per (channel, sender). The partial filter keeps
	// closed sessions out of the constraint.
	_, err = db.Collection(sessionsCollection).Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "channel", Value: 1}, {Key: "sender_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "open", Value: true}}),
	})
	if err != nil {
		return fmt.Errorf("mongodb create session index: %w", err)
	}

	_, err = db.Collection(messagesCollection).Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongodb create message index: %w", err)
	}

	// At most one chase entry per (invoice, offset) makes the chasing
	// job idempotent per offset.
	_, err = db.Collection(chaseCollection).Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "invoice_id", Value: 1}, {Key: "offset_days", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb create chase index: %w", err)
	}

	// Provider event id is the reconciliation idempotency key.
	_, err = db.Collection(paymentsCollection).Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb create payment index: %w", err)
	}

	_, err = db.Collection(payLinksCollection).Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "provider_session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb create payment link index: %w", err)
	}

	_, err = db.Collection(outboundCollection).Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "channel", Value: 1}, {Key: "status", Value: 1}, {Key: "scheduled_for", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongodb create outbound index: %w", err)
	}

	return nil
}

func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
