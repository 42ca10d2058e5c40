package invoice

import "TradeGate/entity"

type Core interface {
	GetOverdueInvoices() ([]entity.Invoice, error)
	GetInvoiceChase(invoiceID string) (*entity.Invoice, []entity.ChaseEntry, error)
	ChaseInvoice(invoiceID string) error
}
