package session

import "TradeGate/entity"

type Core interface {
	GetSessions(status entity.SessionStatus, channel entity.ChannelType) ([]entity.SessionSummary, error)
	GetSession(id string) (*entity.Session, error)
	GetSessionMessages(sessionID string) ([]entity.Message, error)
	SendStaffReply(sessionID, username, content string) error
	AssignSession(sessionID, username string) error
	CloseSession(sessionID string) error
	HandleMarkRead(username, sessionID string) error
}
