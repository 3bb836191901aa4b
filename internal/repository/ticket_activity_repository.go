package repository

import (
	"context"
	"encoding/json"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// TicketActivityRepository handles persistence for the ticket audit trail.
type TicketActivityRepository interface {
	Create(ctx context.Context, entry *domain.TicketActivity) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error)
	DeleteByTicket(ctx context.Context, ticketID string) error
}

type ticketActivityRepository struct {
	db DB
}

// NewTicketActivityRepository instantiates the repository.
func NewTicketActivityRepository(db DB) TicketActivityRepository {
	return &ticketActivityRepository{db: db}
}

func (r *ticketActivityRepository) Create(ctx context.Context, entry *domain.TicketActivity) error {
	oldVal, err := json.Marshal(entry.OldValue)
	if err != nil {
		return err
	}
	newVal, err := json.Marshal(entry.NewValue)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO ticket_activities (ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.ChangedByType,
		entry.ChangedByID,
		entry.ChangeType,
		oldVal,
		newVal,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketActivityRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_activities WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketActivity
	for rows.Next() {
		var entry domain.TicketActivity
		var oldVal, newVal []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ChangedByType,
			&entry.ChangedByID,
			&entry.ChangeType,
			&oldVal,
			&newVal,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(oldVal, &entry.OldValue); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(newVal, &entry.NewValue); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *ticketActivityRepository) DeleteByTicket(ctx context.Context, ticketID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM ticket_activities WHERE ticket_id=$1`, ticketID)
	return err
}
