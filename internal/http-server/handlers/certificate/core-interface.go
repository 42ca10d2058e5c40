package certificate

import "TradeGate/entity"

type Core interface {
	GetExpiringCertificates(days int) ([]entity.Certificate, error)
}
