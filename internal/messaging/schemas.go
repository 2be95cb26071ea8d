package messaging

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Aidin1998/dexter/pkg/models"
)

// MessageType defines the type of message being sent
type MessageType string

const (
	MsgOrderSettled MessageType = "order.settled"
)

// Topic defines Kafka topics for different message types
type Topic string

const (
	TopicSettlements Topic = "settlements"
)

const (
	schemaVersion = "1"
	sourceName    = "dexter"
)

// BaseMessage contains common fields for all messages
type BaseMessage struct {
	MessageID string      `json:"message_id"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Version   string      `json:"version"`
	Source    string      `json:"source"`
}

// SettlementMessage is the wire form of a settlement report
type SettlementMessage struct {
	BaseMessage
	OrderID   string          `json:"order_id"`
	Side      models.Side     `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  uint64          `json:"quantity"`
	Outcome   models.Outcome  `json:"outcome"`
	AmountOut decimal.Decimal `json:"amount_out"`
	Status    string          `json:"status"`
	SettledAt time.Time       `json:"settled_at"`
}

// NewSettlementMessage wraps a report in a message envelope.
func NewSettlementMessage(r models.SettlementReport) SettlementMessage {
	return SettlementMessage{
		BaseMessage: BaseMessage{
			MessageID: uuid.NewString(),
			Type:      MsgOrderSettled,
			Timestamp: time.Now().UTC(),
			Version:   schemaVersion,
			Source:    sourceName,
		},
		OrderID:   r.Order.ID.String(),
		Side:      r.Order.Side,
		Price:     decimal.NewFromFloat(r.Order.Price),
		Quantity:  r.Order.Quantity,
		Outcome:   r.Outcome,
		AmountOut: decimal.NewFromFloat(r.AmountOut),
		Status:    r.Status,
		SettledAt: r.SettledAt,
	}
}
