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

func (m *MongoDB) GetInvoice(id string) (*entity.Invoice, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(invoicesCollection)

	var invoice entity.Invoice
	err = collection.FindOne(m.ctx, bson.D{{Key: "_id", Value: id}}).Decode(&invoice)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb find invoice: %w", err)
	}
	return &invoice, nil
}

// ListCustomerInvoices returns a customer's invoices, newest first.
func (m *MongoDB) ListCustomerInvoices(customerID string) ([]entity.Invoice, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(invoicesCollection)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := collection.Find(m.ctx, bson.D{{Key: "customer_id", Value: customerID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find customer invoices: %w", err)
	}
	defer cursor.Close(m.ctx)

	var invoices []entity.Invoice
	if err = cursor.All(m.ctx, &invoices); err != nil {
		return nil, fmt.Errorf("mongodb decode invoices: %w", err)
	}
	return invoices, nil
}

// ListOverdueInvoices returns invoices still owed money past their due
// date: status overdue, or sent/partial with the due date behind now.
func (m *MongoDB) ListOverdueInvoices(now time.Time) ([]entity.Invoice, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(invoicesCollection)

	filter := bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{
			entity.InvoiceOverdue, entity.InvoiceSent, entity.InvoicePartial,
		}}}},
		{Key: "due_date", Value: bson.D{{Key: "$lt", Value: now}}},
		{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{"$amount_paid", "$total"}}}},
	}

	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find overdue invoices: %w", err)
	}
	defer cursor.Close(m.ctx)

	var invoices []entity.Invoice
	if err = cursor.All(m.ctx, &invoices); err != nil {
		return nil, fmt.Errorf("mongodb decode invoices: %w", err)
	}
	return invoices, nil
}

func (m *MongoDB) ListChaseEntries(invoiceID string) ([]entity.ChaseEntry, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chaseCollection)

	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := collection.Find(m.ctx, bson.D{{Key: "invoice_id", Value: invoiceID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find chase entries: %w", err)
	}
	defer cursor.Close(m.ctx)

	var entries []entity.ChaseEntry
	if err = cursor.All(m.ctx, &entries); err != nil {
		return nil, fmt.Errorf("mongodb decode chase entries: %w", err)
	}
	return entries, nil
}

// InsertChaseEntry records one reminder. The unique (invoice, offset)
// index makes re-runs of the chasing job no-ops per offset: a duplicate
// insert reports entity.ErrDuplicateEvent.
func (m *MongoDB) InsertChaseEntry(entry *entity.ChaseEntry) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chaseCollection)

	_, err = collection.InsertOne(m.ctx, entry)
	if err != nil {
		if isDuplicateKey(err) {
			return entity.ErrDuplicateEvent
		}
		return fmt.Errorf("mongodb insert chase entry: %w", err)
	}
	return nil
}

// MarkChaseResponseSeen flags open reminders for an invoice once the
// customer has replied on any channel.
func (m *MongoDB) MarkChaseResponseSeen(invoiceID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chaseCollection)

	_, err = collection.UpdateMany(
		m.ctx,
		bson.D{{Key: "invoice_id", Value: invoiceID}, {Key: "response_seen", Value: false}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "response_seen", Value: true}}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb mark chase response: %w", err)
	}
	return nil
}

// MarkChaseResponseSeenByContact matches an inbound sender against
// invoice contact details and flags open reminders on every invoice
// that was being chased at that phone number or email address.
func (m *MongoDB) MarkChaseResponseSeenByContact(contact string) error {
	if contact == "" {
		return nil
	}

	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "phone", Value: contact}},
		bson.D{{Key: "email", Value: contact}},
	}}}
	cursor, err := db.Collection(invoicesCollection).Find(m.ctx, filter)
	if err != nil {
		return fmt.Errorf("mongodb find invoices by contact: %w", err)
	}

	var invoices []entity.Invoice
	if err = cursor.All(m.ctx, &invoices); err != nil {
		return fmt.Errorf("mongodb decode invoices: %w", err)
	}

	for _, invoice := range invoices {
		_, err = db.Collection(chaseCollection).UpdateMany(
			m.ctx,
			bson.D{{Key: "invoice_id", Value: invoice.ID}, {Key: "response_seen", Value: false}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "response_seen", Value: true}}}},
		)
		if err != nil {
			return fmt.Errorf("mongodb mark chase response: %w", err)
		}
	}
	return nil
}

func (m *MongoDB) InsertPaymentLink(link *entity.PaymentLink) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(payLinksCollection)

	_, err = collection.InsertOne(m.ctx, link)
	if err != nil {
		return fmt.Errorf("mongodb insert payment link: %w", err)
	}
	return nil
}

func (m *MongoDB) GetPaymentLinkBySession(providerSessionID string) (*entity.PaymentLink, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(payLinksCollection)

	var link entity.PaymentLink
	err = collection.FindOne(m.ctx, bson.D{{Key: "provider_session_id", Value: providerSessionID}}).Decode(&link)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb find payment link: %w", err)
	}
	return &link, nil
}
