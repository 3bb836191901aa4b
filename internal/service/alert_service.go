package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

const unreadCountTTL = 5 * time.Minute

// AlertService exposes alert inboxes and the one-way read transitions.
// Unread counts are cached in redis; the cache is dropped on every
// transition so a stale counter lives at most one TTL.
type AlertService struct {
	store  repository.Store
	cache  *redis.Client
	logger *zap.Logger
}

// NewAlertService constructs the service. The cache client may be nil, in
// which case counts always hit the database.
func NewAlertService(store repository.Store, cache *redis.Client, logger *zap.Logger) *AlertService {
	return &AlertService{store: store, cache: cache, logger: logger}
}

// ListAlerts returns a recipient's alerts, newest first.
func (s *AlertService) ListAlerts(ctx context.Context, recipient Recipient, filter repository.AlertFilter) ([]domain.Alert, error) {
	alerts, err := s.store.Alerts.ListByRecipient(ctx, recipient.Type, recipient.ID, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return alerts, nil
}

// MarkRead marks one alert read. The transition is one-way and
// idempotent: marking an already read alert succeeds and changes nothing.
func (s *AlertService) MarkRead(ctx context.Context, recipient Recipient, alertID string) error {
	alert, err := s.store.Alerts.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("alert", map[string]any{"alert_id": alertID})
		}
		return apperrors.MapError(err)
	}
	if alert.RecipientType != recipient.Type || alert.RecipientID != recipient.ID {
		return apperrors.NewForbidden("alert belongs to another recipient")
	}
	if err := s.store.Alerts.MarkRead(ctx, alertID); err != nil {
		return apperrors.MapError(err)
	}
	s.dropCachedCount(ctx, recipient)
	return nil
}

// MarkAllRead marks every unread alert for the recipient. Each row is an
// independent transition; partial progress before an error stays applied.
func (s *AlertService) MarkAllRead(ctx context.Context, recipient Recipient) (int64, error) {
	count, err := s.store.Alerts.MarkAllRead(ctx, recipient.Type, recipient.ID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	s.dropCachedCount(ctx, recipient)
	return count, nil
}

// UnreadCount returns the number of unread alerts for the recipient.
func (s *AlertService) UnreadCount(ctx context.Context, recipient Recipient) (int, error) {
	key := unreadCountKey(recipient)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			if count, convErr := strconv.Atoi(cached); convErr == nil {
				return count, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("unread count cache read failed", zap.Error(err))
		}
	}

	count, err := s.store.Alerts.CountUnread(ctx, recipient.Type, recipient.ID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, unreadCountTTL).Err(); err != nil {
			s.logger.Warn("unread count cache write failed", zap.Error(err))
		}
	}
	return count, nil
}

func (s *AlertService) dropCachedCount(ctx context.Context, recipient Recipient) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, unreadCountKey(recipient)).Err(); err != nil {
		s.logger.Warn("unread count cache invalidation failed", zap.Error(err))
	}
}

func unreadCountKey(recipient Recipient) string {
	return fmt.Sprintf("alerts:unread:%s:%s", recipient.Type, recipient.ID)
}
