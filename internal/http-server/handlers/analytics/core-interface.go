package analytics

import (
	"time"

	"TradeGate/entity"
)

type Core interface {
	GetAnalyticsSummary(since time.Time) (*entity.AnalyticsSummary, error)
	ChannelStatuses() map[entity.ChannelType]entity.AdapterStatus
}
