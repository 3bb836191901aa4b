package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
)

// fakeState backs the in-memory repositories shared by the service tests.
// All repositories operate on the same maps, mirroring how the real ones
// share a database.
type fakeState struct {
	now     time.Time
	nextID  int
	nextSeq int64

	tickets    map[string]*domain.Ticket
	agents     map[string]*domain.Agent
	users      map[string]*domain.User
	alerts     []*domain.Alert
	messages   []*domain.TicketMessage
	activities []*domain.TicketActivity

	// assignHook, when set, intercepts AssignIfUnassigned before the
	// normal compare-and-set. Returning false simulates losing the race.
	assignHook     func(ticketID, agentID string) bool
	assignAttempts int

	// alertCreateErr, when set, can fail alert inserts mid fan-out so
	// tests can exercise the transaction rollback path.
	alertCreateErr func(alert *domain.Alert) error
}

func newFakeState() *fakeState {
	return &fakeState{
		now:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		tickets: make(map[string]*domain.Ticket),
		agents:  make(map[string]*domain.Agent),
		users:   make(map[string]*domain.User),
	}
}

func (s *fakeState) genID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%03d", prefix, s.nextID)
}

func (s *fakeState) store() repository.Store {
	return repository.Store{
		Tickets:    &fakeTicketRepo{s: s},
		Agents:     &fakeAgentRepo{s: s},
		Alerts:     &fakeAlertRepo{s: s},
		Users:      &fakeUserRepo{s: s},
		Messages:   &fakeMessageRepo{s: s},
		Activities: &fakeActivityRepo{s: s},
	}
}

func (s *fakeState) addUser(id string) *domain.User {
	user := &domain.User{ID: id, Name: id, Email: id + "@example.com", Status: domain.UserStatusActive}
	s.users[id] = user
	return user
}

func (s *fakeState) addAgent(id string, role domain.AgentRole, active bool) *domain.Agent {
	agent := &domain.Agent{ID: id, Name: id, Email: id + "@example.com", Role: role, Active: active}
	s.agents[id] = agent
	return agent
}

func (s *fakeState) alertsFor(recipient Recipient) []*domain.Alert {
	var result []*domain.Alert
	for _, alert := range s.alerts {
		if alert.RecipientType == recipient.Type && alert.RecipientID == recipient.ID {
			result = append(result, alert)
		}
	}
	return result
}

// stateSnapshot captures the collections a transaction can touch. Counters
// are deliberately left out: like a database sequence, IDs burned inside a
// rolled-back unit stay burned.
type stateSnapshot struct {
	tickets    map[string]*domain.Ticket
	agents     map[string]*domain.Agent
	users      map[string]*domain.User
	alerts     []*domain.Alert
	messages   []*domain.TicketMessage
	activities []*domain.TicketActivity
}

func (s *fakeState) snapshot() stateSnapshot {
	snap := stateSnapshot{
		tickets: make(map[string]*domain.Ticket, len(s.tickets)),
		agents:  make(map[string]*domain.Agent, len(s.agents)),
		users:   make(map[string]*domain.User, len(s.users)),
	}
	for id, ticket := range s.tickets {
		clone := *ticket
		snap.tickets[id] = &clone
	}
	for id, agent := range s.agents {
		clone := *agent
		snap.agents[id] = &clone
	}
	for id, user := range s.users {
		clone := *user
		snap.users[id] = &clone
	}
	for _, alert := range s.alerts {
		clone := *alert
		snap.alerts = append(snap.alerts, &clone)
	}
	for _, msg := range s.messages {
		clone := *msg
		snap.messages = append(snap.messages, &clone)
	}
	for _, entry := range s.activities {
		clone := *entry
		snap.activities = append(snap.activities, &clone)
	}
	return snap
}

func (s *fakeState) restore(snap stateSnapshot) {
	s.tickets = snap.tickets
	s.agents = snap.agents
	s.users = snap.users
	s.alerts = snap.alerts
	s.messages = snap.messages
	s.activities = snap.activities
}

// fakeTxRunner mirrors the real runner's all-or-nothing contract: the state
// is snapshotted before the callback and restored when it fails, so a
// failing step inside the unit leaves nothing behind.
type fakeTxRunner struct {
	s *fakeState
}

func (r *fakeTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, store repository.Store) error) error {
	snap := r.s.snapshot()
	if err := fn(ctx, r.s.store()); err != nil {
		r.s.restore(snap)
		return err
	}
	return nil
}

type fakeTicketRepo struct {
	s *fakeState
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.nextSeq++
	ticket.ID = r.s.genID("tkt")
	ticket.DisplayKey = fmt.Sprintf("TKT-%04d", r.s.nextSeq)
	ticket.CreatedAt = r.s.now
	ticket.UpdatedAt = r.s.now
	clone := *ticket
	r.s.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.s.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = r.s.now
	clone := *ticket
	r.s.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) GetByDisplayKey(_ context.Context, key string) (*domain.Ticket, error) {
	for _, ticket := range r.s.tickets {
		if ticket.DisplayKey == key {
			clone := *ticket
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if filter.SearchTerm != nil && !strings.Contains(ticket.Title, *filter.SearchTerm) {
			continue
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DisplayKey < result[j].DisplayKey })
	return result, nil
}

func (r *fakeTicketRepo) ListOpenUnflagged(_ context.Context) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if ticket.Status.Closed() || ticket.SLAViolated {
			continue
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DisplayKey < result[j].DisplayKey })
	return result, nil
}

func (r *fakeTicketRepo) CountOpenByAgent(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, ticket := range r.s.tickets {
		if ticket.AssigneeID == nil || ticket.Status.Closed() {
			continue
		}
		counts[*ticket.AssigneeID]++
	}
	return counts, nil
}

func (r *fakeTicketRepo) AssignIfUnassigned(_ context.Context, ticketID, agentID string) (bool, error) {
	r.s.assignAttempts++
	if r.s.assignHook != nil {
		if !r.s.assignHook(ticketID, agentID) {
			return false, nil
		}
	}
	ticket, ok := r.s.tickets[ticketID]
	if !ok || ticket.AssigneeID != nil {
		return false, nil
	}
	ticket.AssigneeID = &agentID
	return true, nil
}

func (r *fakeTicketRepo) MarkViolatedIfOpen(_ context.Context, ticketID string) (bool, error) {
	ticket, ok := r.s.tickets[ticketID]
	if !ok || ticket.Status.Closed() || ticket.SLAViolated {
		return false, nil
	}
	ticket.SLAViolated = true
	return true, nil
}

func (r *fakeTicketRepo) Delete(_ context.Context, ticketID string) error {
	if _, ok := r.s.tickets[ticketID]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, ticketID)
	return nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

type fakeAgentRepo struct {
	s *fakeState
}

func (r *fakeAgentRepo) Create(_ context.Context, agent *domain.Agent) error {
	agent.ID = r.s.genID("agt")
	agent.CreatedAt = r.s.now
	agent.UpdatedAt = r.s.now
	clone := *agent
	r.s.agents[agent.ID] = &clone
	return nil
}

func (r *fakeAgentRepo) Update(_ context.Context, agent *domain.Agent) error {
	if _, ok := r.s.agents[agent.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *agent
	r.s.agents[agent.ID] = &clone
	return nil
}

func (r *fakeAgentRepo) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	agent, ok := r.s.agents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *agent
	return &clone, nil
}

func (r *fakeAgentRepo) GetByEmail(_ context.Context, email string) (*domain.Agent, error) {
	for _, agent := range r.s.agents {
		if agent.Email == email {
			clone := *agent
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAgentRepo) List(_ context.Context, filter repository.AgentFilter) ([]domain.Agent, error) {
	var result []domain.Agent
	for _, agent := range r.s.agents {
		if filter.Role != nil && agent.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && agent.Active != *filter.Active {
			continue
		}
		result = append(result, *agent)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeAgentRepo) ListWorkloads(_ context.Context) ([]domain.AgentWorkload, error) {
	var result []domain.AgentWorkload
	for _, agent := range r.s.agents {
		w := domain.AgentWorkload{AgentID: agent.ID, Name: agent.Name, Email: agent.Email, Active: agent.Active}
		for _, ticket := range r.s.tickets {
			if ticket.AssigneeID == nil || *ticket.AssigneeID != agent.ID {
				continue
			}
			if ticket.Status.Closed() {
				w.ClosedCount++
			} else {
				w.OpenCount++
			}
			if ticket.SLAViolated {
				w.SLAViolationCount++
			}
		}
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AgentID < result[j].AgentID })
	return result, nil
}

type fakeAlertRepo struct {
	s *fakeState
}

func (r *fakeAlertRepo) Create(_ context.Context, alert *domain.Alert) error {
	if r.s.alertCreateErr != nil {
		if err := r.s.alertCreateErr(alert); err != nil {
			return err
		}
	}
	alert.ID = r.s.genID("alr")
	alert.CreatedAt = r.s.now
	clone := *alert
	r.s.alerts = append(r.s.alerts, &clone)
	return nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, id string) (*domain.Alert, error) {
	for _, alert := range r.s.alerts {
		if alert.ID == id {
			clone := *alert
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAlertRepo) ListByRecipient(_ context.Context, recipientType domain.SubjectType, recipientID string, filter repository.AlertFilter) ([]domain.Alert, error) {
	var result []domain.Alert
	for _, alert := range r.s.alerts {
		if alert.RecipientType != recipientType || alert.RecipientID != recipientID {
			continue
		}
		if filter.UnreadOnly && alert.Read {
			continue
		}
		result = append(result, *alert)
	}
	return result, nil
}

func (r *fakeAlertRepo) MarkRead(_ context.Context, id string) error {
	for _, alert := range r.s.alerts {
		if alert.ID == id {
			alert.Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeAlertRepo) MarkAllRead(_ context.Context, recipientType domain.SubjectType, recipientID string) (int64, error) {
	var count int64
	for _, alert := range r.s.alerts {
		if alert.RecipientType == recipientType && alert.RecipientID == recipientID && !alert.Read {
			alert.Read = true
			count++
		}
	}
	return count, nil
}

func (r *fakeAlertRepo) CountUnread(_ context.Context, recipientType domain.SubjectType, recipientID string) (int, error) {
	count := 0
	for _, alert := range r.s.alerts {
		if alert.RecipientType == recipientType && alert.RecipientID == recipientID && !alert.Read {
			count++
		}
	}
	return count, nil
}

func (r *fakeAlertRepo) DeleteByTicket(_ context.Context, ticketID string) error {
	kept := r.s.alerts[:0]
	for _, alert := range r.s.alerts {
		if alert.TicketID != ticketID {
			kept = append(kept, alert)
		}
	}
	r.s.alerts = kept
	return nil
}

type fakeUserRepo struct {
	s *fakeState
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = r.s.genID("usr")
	user.CreatedAt = r.s.now
	user.UpdatedAt = r.s.now
	clone := *user
	r.s.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	r.s.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeMessageRepo struct {
	s *fakeState
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	msg.ID = r.s.genID("msg")
	msg.CreatedAt = r.s.now
	clone := *msg
	r.s.messages = append(r.s.messages, &clone)
	return nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	var result []domain.TicketMessage
	for _, msg := range r.s.messages {
		if msg.TicketID == ticketID {
			result = append(result, *msg)
		}
	}
	return result, nil
}

func (r *fakeMessageRepo) DeleteByTicket(_ context.Context, ticketID string) error {
	kept := r.s.messages[:0]
	for _, msg := range r.s.messages {
		if msg.TicketID != ticketID {
			kept = append(kept, msg)
		}
	}
	r.s.messages = kept
	return nil
}

type fakeActivityRepo struct {
	s *fakeState
}

func (r *fakeActivityRepo) Create(_ context.Context, entry *domain.TicketActivity) error {
	entry.ID = r.s.genID("act")
	entry.CreatedAt = r.s.now
	clone := *entry
	r.s.activities = append(r.s.activities, &clone)
	return nil
}

func (r *fakeActivityRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error) {
	var result []domain.TicketActivity
	for _, entry := range r.s.activities {
		if entry.TicketID == ticketID {
			result = append(result, *entry)
		}
	}
	return result, nil
}

func (r *fakeActivityRepo) DeleteByTicket(_ context.Context, ticketID string) error {
	kept := r.s.activities[:0]
	for _, entry := range r.s.activities {
		if entry.TicketID != ticketID {
			kept = append(kept, entry)
		}
	}
	r.s.activities = kept
	return nil
}
