package outbound

import (
	"time"

	"TradeGate/entity"
)

type Core interface {
	GetOutbound(status entity.OutboundStatus) ([]entity.Outbound, error)
	CreateOutbound(recipient string, channel entity.ChannelType, msgType, content string, scheduledFor time.Time) (*entity.Outbound, error)
}
