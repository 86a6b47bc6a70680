package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// MemoryStore is an in-memory implementation of every store interface and
// of store.Transactor. InTx serializes units of work and rolls the whole
// state back when fn fails, so tests observe the same atomicity as the
// PostgreSQL transactor.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	state memState

	// Optional hooks. When set they run before the corresponding write and
	// a non-nil error aborts it.
	EnqueueFn    func(msg *store.OutboxMessage) error
	CreateTaskFn func(task *domain.Task) error
}

type memState struct {
	tasks         map[uuid.UUID]domain.Task
	rules         map[uuid.UUID]domain.RecurrenceRule
	reminders     map[uuid.UUID]domain.Reminder
	reminderOrder []uuid.UUID
	contacts      map[string]domain.Contact
	outbox        []store.OutboxMessage
	nextOutboxID  int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{
		tasks:     make(map[uuid.UUID]domain.Task),
		rules:     make(map[uuid.UUID]domain.RecurrenceRule),
		reminders: make(map[uuid.UUID]domain.Reminder),
		contacts:  make(map[string]domain.Contact),
	}}
}

func (s memState) clone() memState {
	c := memState{
		tasks:         make(map[uuid.UUID]domain.Task, len(s.tasks)),
		rules:         make(map[uuid.UUID]domain.RecurrenceRule, len(s.rules)),
		reminders:     make(map[uuid.UUID]domain.Reminder, len(s.reminders)),
		reminderOrder: append([]uuid.UUID(nil), s.reminderOrder...),
		contacts:      make(map[string]domain.Contact, len(s.contacts)),
		outbox:        append([]store.OutboxMessage(nil), s.outbox...),
		nextOutboxID:  s.nextOutboxID,
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.reminders {
		c.reminders[k] = v
	}
	for k, v := range s.contacts {
		c.contacts[k] = v
	}
	return c
}

// Stores returns the store set backed by this MemoryStore.
func (m *MemoryStore) Stores() store.Stores {
	return store.Stores{
		Tasks:     m.TaskStore(),
		Rules:     m.RuleStore(),
		Reminders: m.ReminderStore(),
		Outbox:    m.OutboxStore(),
	}
}

// TaskStore returns a store.TaskStore view.
func (m *MemoryStore) TaskStore() store.TaskStore { return &memTasks{m} }

// RuleStore returns a store.RuleStore view.
func (m *MemoryStore) RuleStore() store.RuleStore { return &memRules{m} }

// ReminderStore returns a store.ReminderStore view.
func (m *MemoryStore) ReminderStore() store.ReminderStore { return &memReminders{m} }

// OutboxStore returns a store.OutboxStore view.
func (m *MemoryStore) OutboxStore() store.OutboxStore { return &memOutbox{m} }

// ContactStore returns a store.ContactStore view.
func (m *MemoryStore) ContactStore() store.ContactStore { return &memContacts{m} }

var _ store.Transactor = (*MemoryStore)(nil)

// InTx implements store.Transactor.
func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(ctx, m.Stores()); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// AddContact registers a contact.
func (m *MemoryStore) AddContact(c domain.Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.contacts[c.OwnerID] = c
}

// Seed inserts a task with an optional rule and reminders, bypassing
// validation hooks.
func (m *MemoryStore) Seed(task *domain.Task, rule *domain.RecurrenceRule, reminders ...*domain.Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.tasks[task.ID] = cloneTask(*task)
	if rule != nil {
		m.state.rules[rule.ID] = cloneRule(*rule)
	}
	for _, r := range reminders {
		m.state.reminders[r.ID] = cloneReminder(*r)
		m.state.reminderOrder = append(m.state.reminderOrder, r.ID)
	}
}

// AllTasks returns every task ordered by creation time.
func (m *MemoryStore) AllTasks() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Task, 0, len(m.state.tasks))
	for _, t := range m.state.tasks {
		c := cloneTask(t)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Rule returns the rule attached to taskID, or nil.
func (m *MemoryStore) Rule(taskID uuid.UUID) *domain.RecurrenceRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.state.rules {
		if r.TaskID == taskID {
			c := cloneRule(r)
			return &c
		}
	}
	return nil
}

// RemindersFor returns the reminders of taskID in insertion order.
func (m *MemoryStore) RemindersFor(taskID uuid.UUID) []*domain.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Reminder
	for _, id := range m.state.reminderOrder {
		if r := m.state.reminders[id]; r.TaskID == taskID {
			c := cloneReminder(r)
			out = append(out, &c)
		}
	}
	return out
}

// OutboxMessages returns every outbox message in insertion order.
func (m *MemoryStore) OutboxMessages() []store.OutboxMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.OutboxMessage(nil), m.state.outbox...)
}

func cloneTask(t domain.Task) domain.Task {
	t.Tags = append([]string(nil), t.Tags...)
	t.DueAt = cloneTime(t.DueAt)
	t.CompletedAt = cloneTime(t.CompletedAt)
	return t
}

func cloneRule(r domain.RecurrenceRule) domain.RecurrenceRule {
	r.DaysOfWeek = append([]int(nil), r.DaysOfWeek...)
	r.NextDue = cloneTime(r.NextDue)
	return r
}

func cloneReminder(r domain.Reminder) domain.Reminder {
	r.Channels = append([]domain.Channel(nil), r.Channels...)
	r.SentAt = cloneTime(r.SentAt)
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

type memTasks struct{ m *MemoryStore }

func (s *memTasks) Create(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	if s.m.CreateTaskFn != nil {
		if err := s.m.CreateTaskFn(task); err != nil {
			return err
		}
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.state.tasks[task.ID]; ok {
		return store.ErrDuplicate
	}
	s.m.state.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (s *memTasks) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.state.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	c := cloneTask(t)
	return &c, nil
}

func (s *memTasks) WithTx(*sql.Tx) store.TaskStore { return s }

type memRules struct{ m *MemoryStore }

func (s *memRules) Create(_ context.Context, rule *domain.RecurrenceRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.state.tasks[rule.TaskID]; !ok {
		return fmt.Errorf("%w: task %s does not exist", store.ErrInvalidEntity, rule.TaskID)
	}
	for _, r := range s.m.state.rules {
		if r.TaskID == rule.TaskID || r.ID == rule.ID {
			return store.ErrDuplicate
		}
	}
	s.m.state.rules[rule.ID] = cloneRule(*rule)
	return nil
}

func (s *memRules) GetByTaskID(_ context.Context, taskID uuid.UUID) (*domain.RecurrenceRule, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, r := range s.m.state.rules {
		if r.TaskID == taskID {
			c := cloneRule(r)
			return &c, nil
		}
	}
	return nil, store.ErrRuleNotFound
}

func (s *memRules) Advance(_ context.Context, id uuid.UUID, nextDue time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.state.rules[id]
	if !ok {
		return store.ErrRuleNotFound
	}
	next := nextDue.UTC()
	r.NextDue = &next
	r.Active = false
	s.m.state.rules[id] = r
	return nil
}

func (s *memRules) WithTx(*sql.Tx) store.RuleStore { return s }

type memReminders struct{ m *MemoryStore }

func (s *memReminders) Create(_ context.Context, reminder *domain.Reminder) error {
	if err := reminder.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.state.tasks[reminder.TaskID]; !ok {
		return fmt.Errorf("%w: task %s does not exist", store.ErrInvalidEntity, reminder.TaskID)
	}
	if _, ok := s.m.state.reminders[reminder.ID]; ok {
		return store.ErrDuplicate
	}
	s.m.state.reminders[reminder.ID] = cloneReminder(*reminder)
	s.m.state.reminderOrder = append(s.m.state.reminderOrder, reminder.ID)
	return nil
}

func (s *memReminders) ListByTask(_ context.Context, taskID uuid.UUID) ([]*domain.Reminder, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*domain.Reminder
	for _, id := range s.m.state.reminderOrder {
		if r := s.m.state.reminders[id]; r.TaskID == taskID {
			c := cloneReminder(r)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memReminders) ClaimDue(_ context.Context, now time.Time, limit int) ([]store.DueReminder, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	now = now.UTC()
	var due []store.DueReminder
	for _, id := range s.m.state.reminderOrder {
		r := s.m.state.reminders[id]
		task, ok := s.m.state.tasks[r.TaskID]
		if !ok || !r.IsDue(&task, now) {
			continue
		}
		due = append(due, store.DueReminder{
			Reminder: cloneReminder(r),
			OwnerID:  task.OwnerID,
			Title:    task.Title,
			DueAt:    task.DueAt.UTC(),
		})
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].Reminder.ID.String() < due[j].Reminder.ID.String()
		}
		return due[i].DueAt.Before(due[j].DueAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	for i := range due {
		sentAt := now
		due[i].Reminder.SentAt = &sentAt
		r := s.m.state.reminders[due[i].Reminder.ID]
		r.SentAt = cloneTime(&sentAt)
		s.m.state.reminders[r.ID] = r
	}
	return due, nil
}

func (s *memReminders) WithTx(*sql.Tx) store.ReminderStore { return s }

type memOutbox struct{ m *MemoryStore }

func (s *memOutbox) Enqueue(_ context.Context, msg *store.OutboxMessage) error {
	if s.m.EnqueueFn != nil {
		if err := s.m.EnqueueFn(msg); err != nil {
			return err
		}
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.state.outbox {
		if existing.EventID == msg.EventID {
			return store.ErrDuplicate
		}
	}
	s.m.state.nextOutboxID++
	msg.ID = s.m.state.nextOutboxID
	msg.CreatedAt = time.Now().UTC()
	c := *msg
	c.Payload = append([]byte(nil), msg.Payload...)
	s.m.state.outbox = append(s.m.state.outbox, c)
	return nil
}

func (s *memOutbox) FetchPending(_ context.Context, limit int) ([]*store.OutboxMessage, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*store.OutboxMessage
	for _, msg := range s.m.state.outbox {
		if msg.PublishedAt != nil {
			continue
		}
		c := msg
		out = append(out, &c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memOutbox) find(id int64) (int, error) {
	for i, msg := range s.m.state.outbox {
		if msg.ID == id {
			return i, nil
		}
	}
	return 0, store.ErrOutboxMessageNotFound
}

func (s *memOutbox) MarkPublished(_ context.Context, id int64, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	i, err := s.find(id)
	if err != nil {
		return err
	}
	at = at.UTC()
	s.m.state.outbox[i].PublishedAt = &at
	return nil
}

func (s *memOutbox) MarkFailed(_ context.Context, id int64, reason string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	i, err := s.find(id)
	if err != nil {
		return err
	}
	s.m.state.outbox[i].Attempts++
	s.m.state.outbox[i].LastError = reason
	return nil
}

func (s *memOutbox) TryLockRelay(context.Context) (bool, error) { return true, nil }

func (s *memOutbox) CountPending(context.Context) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for _, msg := range s.m.state.outbox {
		if msg.PublishedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *memOutbox) WithTx(*sql.Tx) store.OutboxStore { return s }

type memContacts struct{ m *MemoryStore }

func (s *memContacts) GetByOwner(_ context.Context, ownerID string) (*domain.Contact, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.state.contacts[ownerID]
	if !ok {
		return nil, store.ErrContactNotFound
	}
	return &c, nil
}
