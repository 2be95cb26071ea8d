package messaging

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Aidin1998/dexter/pkg/models"
)

// Publisher is anything that accepts settlement reports
type Publisher interface {
	Publish(ctx context.Context, report models.SettlementReport) error
}

// MessageBus fans every report out to all registered publishers
type MessageBus struct {
	publishers []Publisher
}

// NewMessageBus creates a bus over the given publishers; nil entries are skipped.
func NewMessageBus(publishers ...Publisher) *MessageBus {
	mb := &MessageBus{}
	for _, p := range publishers {
		if p != nil {
			mb.publishers = append(mb.publishers, p)
		}
	}
	return mb
}

// Publish hands the report to every publisher. A failing publisher does not
// stop the others; all errors are joined.
func (mb *MessageBus) Publish(ctx context.Context, report models.SettlementReport) error {
	var errs []error
	for _, p := range mb.publishers {
		if err := p.Publish(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes reports to the structured log
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that logs each report at info level.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish never fails.
func (p *LogPublisher) Publish(_ context.Context, report models.SettlementReport) error {
	p.logger.Info("order settled",
		zap.String("order_id", report.Order.ID.String()),
		zap.String("side", report.Order.Side.String()),
		zap.Float64("price", report.Order.Price),
		zap.Uint64("quantity", report.Order.Quantity),
		zap.String("outcome", string(report.Outcome)),
		zap.Float64("amount_out", report.AmountOut),
		zap.String("status", report.Status))
	return nil
}
