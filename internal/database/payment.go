package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"TradeGate/entity"
)

// HasPaymentEvent reports whether a provider event id was already
// applied. Used as the durable replay check before reconciliation.
func (m *MongoDB) HasPaymentEvent(eventID string) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(paymentsCollection)

	err = collection.FindOne(m.ctx, bson.D{{Key: "event_id", Value: eventID}}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("mongodb find payment event: %w", err)
	}
	return true, nil
}

// ApplyPaymentEvent executes the whole reconciliation as one
// transaction: record the payment event, recompute the invoice's paid
// total and status, cascade the linked job to paid when settled, and
// flag in-flight chase entries. A crash mid-way leaves nothing applied
// and the event reprocessable. A replayed event id aborts with
// entity.ErrDuplicateEvent before any side effect.
func (m *MongoDB) ApplyPaymentEvent(event *entity.PaymentEvent) (*entity.Invoice, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	mongoSession, err := connection.StartSession()
	if err != nil {
		return nil, fmt.Errorf("mongodb start session: %w", err)
	}
	defer mongoSession.EndSession(m.ctx)

	result, err := mongoSession.WithTransaction(m.ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return m.applyPaymentTx(sc, db, event)
	})
	if err != nil {
		if errors.Is(err, entity.ErrDuplicateEvent) || errors.Is(err, entity.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("mongodb payment transaction: %w", err)
	}

	invoice, _ := result.(*entity.Invoice)
	return invoice, nil
}

func (m *MongoDB) applyPaymentTx(sc context.Context, db *mongo.Database, event *entity.PaymentEvent) (interface{}, error) {
	// The unique event_id index turns redelivery into a duplicate key.
	_, err := db.Collection(paymentsCollection).InsertOne(sc, event)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, entity.ErrDuplicateEvent
		}
		return nil, fmt.Errorf("insert payment event: %w", err)
	}

	var invoice entity.Invoice
	err = db.Collection(invoicesCollection).FindOne(sc, bson.D{{Key: "_id", Value: event.InvoiceID}}).Decode(&invoice)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}

	invoice.AmountPaid += event.Amount
	if invoice.AmountPaid >= invoice.Total {
		invoice.Status = entity.InvoicePaid
	} else if invoice.AmountPaid > 0 {
		invoice.Status = entity.InvoicePartial
	}

	_, err = db.Collection(invoicesCollection).UpdateOne(
		sc,
		bson.D{{Key: "_id", Value: invoice.ID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "amount_paid", Value: invoice.AmountPaid},
			{Key: "status", Value: invoice.Status},
		}}},
	)
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	if invoice.Status == entity.InvoicePaid {
		if invoice.JobID != "" {
			_, err = db.Collection(jobsCollection).UpdateOne(
				sc,
				bson.D{{Key: "_id", Value: invoice.JobID}},
				bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: "paid"}}}},
			)
			if err != nil {
				return nil, fmt.Errorf("cascade job status: %w", err)
			}
		}

		// Halts the chasing job for this invoice.
		_, err = db.Collection(chaseCollection).UpdateMany(
			sc,
			bson.D{{Key: "invoice_id", Value: invoice.ID}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "payment_received", Value: true}}}},
		)
		if err != nil {
			return nil, fmt.Errorf("mark chase entries paid: %w", err)
		}
	}

	return &invoice, nil
}
