package lead

import "TradeGate/entity"

type Core interface {
	GetLeads(status entity.LeadStatus, channel entity.ChannelType) ([]entity.Lead, error)
	UpdateLeadStatus(id string, to entity.LeadStatus) error
}
