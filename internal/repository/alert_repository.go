package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// AlertFilter captures alert listing parameters.
type AlertFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// AlertRepository handles persistence for per-recipient alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *domain.Alert) error
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	ListByRecipient(ctx context.Context, recipientType domain.SubjectType, recipientID string, filter AlertFilter) ([]domain.Alert, error)
	// MarkRead is a one-way transition; marking an already read alert is a
	// no-op, never an error.
	MarkRead(ctx context.Context, id string) error
	// MarkAllRead flips every unread alert for the recipient. Each row is
	// an independent transition; the count of flipped rows is returned.
	MarkAllRead(ctx context.Context, recipientType domain.SubjectType, recipientID string) (int64, error)
	CountUnread(ctx context.Context, recipientType domain.SubjectType, recipientID string) (int, error)
	DeleteByTicket(ctx context.Context, ticketID string) error
}

type alertRepository struct {
	db DB
}

// NewAlertRepository instantiates the repository.
func NewAlertRepository(db DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	const query = `
        INSERT INTO alerts (recipient_type, recipient_id, ticket_id, alert_type, title, message, read_flag)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		alert.RecipientType,
		alert.RecipientID,
		alert.TicketID,
		alert.Type,
		alert.Title,
		alert.Message,
		alert.Read,
	).Scan(&alert.ID, &alert.CreatedAt)
}

func (r *alertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	const query = `
        SELECT id, recipient_type, recipient_id, ticket_id, alert_type, title, message, read_flag, created_at
        FROM alerts WHERE id=$1`
	var alert domain.Alert
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&alert.ID,
		&alert.RecipientType,
		&alert.RecipientID,
		&alert.TicketID,
		&alert.Type,
		&alert.Title,
		&alert.Message,
		&alert.Read,
		&alert.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) ListByRecipient(ctx context.Context, recipientType domain.SubjectType, recipientID string, filter AlertFilter) ([]domain.Alert, error) {
	query := `
        SELECT id, recipient_type, recipient_id, ticket_id, alert_type, title, message, read_flag, created_at
        FROM alerts`
	clauses := []string{"recipient_type=$1", "recipient_id=$2"}
	args := []any{recipientType, recipientID}
	if filter.UnreadOnly {
		clauses = append(clauses, "read_flag=FALSE")
	}
	query += " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Alert
	for rows.Next() {
		var alert domain.Alert
		if err := rows.Scan(
			&alert.ID,
			&alert.RecipientType,
			&alert.RecipientID,
			&alert.TicketID,
			&alert.Type,
			&alert.Title,
			&alert.Message,
			&alert.Read,
			&alert.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}

func (r *alertRepository) MarkRead(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE alerts SET read_flag=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *alertRepository) MarkAllRead(ctx context.Context, recipientType domain.SubjectType, recipientID string) (int64, error) {
	const query = `
        UPDATE alerts SET read_flag=TRUE
        WHERE recipient_type=$1 AND recipient_id=$2 AND read_flag=FALSE`
	cmd, err := r.db.Exec(ctx, query, recipientType, recipientID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *alertRepository) CountUnread(ctx context.Context, recipientType domain.SubjectType, recipientID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM alerts
        WHERE recipient_type=$1 AND recipient_id=$2 AND read_flag=FALSE`
	var count int
	if err := r.db.QueryRow(ctx, query, recipientType, recipientID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *alertRepository) DeleteByTicket(ctx context.Context, ticketID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM alerts WHERE ticket_id=$1`, ticketID)
	return err
}
