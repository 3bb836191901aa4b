package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/sla"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// SLAService evaluates open tickets against their SLA budgets and
// persists newly detected breaches.
type SLAService struct {
	store      repository.Store
	tx         repository.TxRunner
	notifier   *NotificationService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	Store      repository.Store
	TxRunner   repository.TxRunner
	Notifier   *NotificationService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	return &SLAService{
		store:      deps.Store,
		tx:         deps.TxRunner,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// RunSweep evaluates every open, not-yet-flagged ticket and returns the
// display keys of tickets whose violation flag newly flipped in this
// pass. The flag write is conditional on the ticket still being open and
// unflagged, so a sweep racing a concurrent close or a previous sweep is
// discarded per ticket; each surviving flag and its alert fan-out share
// one transaction. Running the sweep twice back to back flags nothing new
// the second time.
func (s *SLAService) RunSweep(ctx context.Context, now time.Time) ([]string, error) {
	tickets, err := s.store.Tickets.ListOpenUnflagged(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var flagged []string
	for i := range tickets {
		ticket := &tickets[i]

		violated, err := sla.Violated(ticket, now)
		if err != nil {
			// A ticket without a creation timestamp cannot be evaluated.
			s.logger.Error("skipping ticket in sweep",
				zap.String("ticket", ticket.DisplayKey), zap.Error(err))
			continue
		}
		if !violated {
			continue
		}
		if !sla.KnownPriority(ticket.Priority) {
			s.logger.Warn("unknown priority, default SLA target applied",
				zap.String("ticket", ticket.DisplayKey),
				zap.String("priority", string(ticket.Priority)))
		}

		newlyFlagged := false
		err = s.tx.InTx(ctx, func(ctx context.Context, store repository.Store) error {
			ok, err := store.Tickets.MarkViolatedIfOpen(ctx, ticket.ID)
			if err != nil {
				return err
			}
			if !ok {
				// Closed or flagged by a concurrent writer since our read.
				return nil
			}
			newlyFlagged = true
			ticket.SLAViolated = true
			if err := store.Activities.Create(ctx, &domain.TicketActivity{
				TicketID:      ticket.ID,
				ChangedByType: domain.AuthorTypeSystem,
				ChangeType:    domain.ChangeTypeSLA,
				OldValue:      map[string]any{"sla_violated": false},
				NewValue:      map[string]any{"sla_violated": true},
			}); err != nil {
				return err
			}
			_, err = s.notifier.FanOut(ctx, store, ticket, domain.AlertSLAViolation, nil)
			return err
		})
		if err != nil {
			return flagged, apperrors.MapError(err)
		}
		if !newlyFlagged {
			continue
		}

		flagged = append(flagged, ticket.DisplayKey)
		hours, _ := sla.HoursOpen(ticket, now)
		s.publishViolation(ctx, ticket, hours)
		s.logger.Info("sla breach flagged",
			zap.String("ticket", ticket.DisplayKey),
			zap.String("priority", string(ticket.Priority)),
			zap.Float64("hours_open", hours))
	}

	s.metrics.RecordSweep(len(flagged))
	return flagged, nil
}

func (s *SLAService) publishViolation(ctx context.Context, ticket *domain.Ticket, hours float64) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSLAViolation,
		TicketID:  ticket.ID,
		Timestamp: time.Now(),
		Payload: events.SLAViolationPayload{
			DisplayKey:  ticket.DisplayKey,
			Priority:    ticket.Priority,
			TargetHours: sla.TargetHours(ticket.Priority),
			HoursOpen:   hours,
		},
	})
}
