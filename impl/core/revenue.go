package core

import (
	"context"
	"time"

	"TradeGate/entity"
)

// Scheduler is the revenue automation job surface exposed to the staff
// API for manual runs.
type Scheduler interface {
	RunChase(ctx context.Context)
	RunCertWatch(ctx context.Context)
	ChaseInvoiceByID(id string) error
}

// CertRegistry reads the external certificate registry.
type CertRegistry interface {
	ListExpiringCertificates(before time.Time) ([]entity.Certificate, error)
}

// InvoiceStore is the invoice slice of the repository the staff API
// reads.
type InvoiceStore interface {
	GetInvoice(id string) (*entity.Invoice, error)
	ListOverdueInvoices(now time.Time) ([]entity.Invoice, error)
	ListChaseEntries(invoiceID string) ([]entity.ChaseEntry, error)
}

func (c *Core) SetScheduler(scheduler Scheduler) {
	c.scheduler = scheduler
}

func (c *Core) SetCertRegistry(certs CertRegistry) {
	c.certs = certs
}

func (c *Core) SetInvoiceStore(invoices InvoiceStore) {
	c.invoices = invoices
}

func (c *Core) GetOverdueInvoices() ([]entity.Invoice, error) {
	return c.invoices.ListOverdueInvoices(time.Now().UTC())
}

func (c *Core) GetInvoiceChase(invoiceID string) (*entity.Invoice, []entity.ChaseEntry, error) {
	invoice, err := c.invoices.GetInvoice(invoiceID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := c.invoices.ListChaseEntries(invoiceID)
	if err != nil {
		return nil, nil, err
	}
	return invoice, entries, nil
}

// ChaseInvoice triggers the reminder sequence for one invoice outside
// the daily schedule.
func (c *Core) ChaseInvoice(invoiceID string) error {
	return c.scheduler.ChaseInvoiceByID(invoiceID)
}

// RunRevenueJobs triggers the full chase and certificate sweep now.
func (c *Core) RunRevenueJobs(ctx context.Context) {
	c.scheduler.RunChase(ctx)
	c.scheduler.RunCertWatch(ctx)
}

func (c *Core) GetExpiringCertificates(days int) ([]entity.Certificate, error) {
	if days <= 0 {
		days = 90
	}
	return c.certs.ListExpiringCertificates(time.Now().UTC().AddDate(0, 0, days))
}
