package observability

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
)

var allKinds = []events.Kind{
	events.KindTokenRejected,
	events.KindTokenRevoked,
	events.KindLoginFailed,
	events.KindUserRegistered,
	events.KindUserLoggedOut,
	events.KindAccessDenied,
	events.KindStorageError,
	events.KindStaleRoleClaim,
	events.KindTicketCreated,
	events.KindTicketClosed,
	events.KindCommentAdded,
}

// RegisterEventSinks subscribes the logging and counting sinks to every
// event kind. Sinks never return errors; a broken sink must not fail the
// operation that emitted the event.
func RegisterEventSinks(bus events.Dispatcher, logger *zap.Logger, metrics *Metrics) {
	if bus == nil {
		return
	}

	for _, kind := range allKinds {
		bus.Subscribe(kind, func(_ context.Context, event events.Event) error {
			metrics.RecordEvent(string(event.Kind))

			fields := []zap.Field{
				zap.String("kind", string(event.Kind)),
				zap.String("outcome", string(event.Outcome)),
			}
			if event.Subject != "" {
				fields = append(fields, zap.String("subject", event.Subject))
			}
			if len(event.Fields) > 0 {
				fields = append(fields, zap.Any("fields", event.Fields))
			}

			switch event.Outcome {
			case events.OutcomeError:
				logger.Error("event", fields...)
			case events.OutcomeDenied, events.OutcomeRejected:
				logger.Warn("event", fields...)
			default:
				logger.Info("event", fields...)
			}
			return nil
		})
	}
}
