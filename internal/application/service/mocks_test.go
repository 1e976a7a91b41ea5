package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/quote-revision/internal/application/dispatcher"
	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/event"
	"github.com/garyjia/quote-revision/internal/domain/revision"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// memStore is an in-memory QuoteStore with the same optimistic version check as the real stores
type memStore struct {
	mu     sync.Mutex
	quotes map[string]*entity.Quote
	items  map[string][]entity.QuoteItem
	edits  map[string][]*entity.QuoteEdit

	loadCalls   int
	commitCalls int
	commitErr   error
}

func newMemStore() *memStore {
	return &memStore{
		quotes: make(map[string]*entity.Quote),
		items:  make(map[string][]entity.QuoteItem),
		edits:  make(map[string][]*entity.QuoteEdit),
	}
}

func (m *memStore) CreateQuote(ctx context.Context, quote *entity.Quote, items []entity.QuoteItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *quote
	m.quotes[quote.ID] = &cp
	m.items[quote.ID] = entity.CloneItems(items)
	return nil
}

func (m *memStore) LoadQuote(ctx context.Context, id string) (*entity.Quote, []entity.QuoteItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
	q, ok := m.quotes[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", port.ErrQuoteNotFound, id)
	}
	cp := *q
	return &cp, revision.Recompute(m.items[id]), nil
}

func (m *memStore) CommitQuoteVersion(ctx context.Context, id string, expectedVersion int, items []entity.QuoteItem, edit *entity.QuoteEdit) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitCalls++
	if m.commitErr != nil {
		return 0, m.commitErr
	}
	q, ok := m.quotes[id]
	if !ok {
		return 0, port.ErrQuoteNotFound
	}
	if q.Status.IsTerminal() {
		return 0, fmt.Errorf("%w: status %s", port.ErrQuoteNotEditable, q.Status)
	}
	if q.Version != expectedVersion {
		return 0, fmt.Errorf("%w: expected %d, have %d", port.ErrStaleQuoteVersion, expectedVersion, q.Version)
	}
	q.Version++
	q.TotalAmount = revision.CalculateTotal(items)
	m.items[id] = entity.CloneItems(items)
	m.edits[id] = append(m.edits[id], edit)
	return q.Version, nil
}

func (m *memStore) ListEdits(ctx context.Context, quoteID string) ([]*entity.QuoteEdit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.QuoteEdit(nil), m.edits[quoteID]...), nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id string, from, to entity.QuoteStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return port.ErrQuoteNotFound
	}
	if q.Status != from {
		return port.ErrStatusConflict
	}
	q.Status = to
	return nil
}

// bump simulates another writer committing a version
func (m *memStore) bump(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[id].Version++
}

func (m *memStore) snapshot(id string) (entity.Quote, []entity.QuoteItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.quotes[id], entity.CloneItems(m.items[id])
}

type mockArchive struct {
	mu       sync.Mutex
	sessions []*entity.QuoteReviewSession
	saveErr  error
}

func (m *mockArchive) Save(ctx context.Context, session *entity.QuoteReviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return m.saveErr
}

func (m *mockArchive) ListByQuote(ctx context.Context, quoteID string) ([]*entity.QuoteReviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.QuoteReviewSession
	for _, s := range m.sessions {
		if s.QuoteID == quoteID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockArchive) last() *entity.QuoteReviewSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) == 0 {
		return nil
	}
	return m.sessions[len(m.sessions)-1]
}

// recordingDispatcher runs nothing and keeps every published event
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(eventType event.Type, name string, handler dispatcher.Handler) {
}
func (d *recordingDispatcher) Unsubscribe(eventType event.Type, name string) {}
func (d *recordingDispatcher) Handlers(eventType event.Type) []string        { return nil }
func (d *recordingDispatcher) Close() error                                  { return nil }

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = d.Dispatch(ctx, evt)
}

func (d *recordingDispatcher) ofType(typ event.Type) []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*event.Event
	for _, e := range d.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockMetrics struct {
	port.NopMetrics
	mu        sync.Mutex
	started   int
	committed int
	conflicts int
	outcomes  []string
}

func (m *mockMetrics) SessionStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *mockMetrics) BatchCommitted(commands int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed++
}

func (m *mockMetrics) CommitConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *mockMetrics) SessionFinalized(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

type mockNotifier struct {
	notifyFunc func(ctx context.Context, threadID, text string) error
	sent       []string
}

func (m *mockNotifier) Notify(ctx context.Context, threadID, text string) error {
	m.sent = append(m.sent, threadID+": "+text)
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, threadID, text)
	}
	return nil
}

type mockInterpreter struct {
	interpretFunc func(ctx context.Context, transcript string, items []entity.QuoteItem) (*entity.VoiceEditCommand, error)
}

func (m *mockInterpreter) Interpret(ctx context.Context, transcript string, items []entity.QuoteItem) (*entity.VoiceEditCommand, error) {
	return m.interpretFunc(ctx, transcript, items)
}

type mockTemplates struct {
	templates map[string]*entity.QuoteTemplate
}

func (m *mockTemplates) Upsert(ctx context.Context, tmpl *entity.QuoteTemplate) error {
	if m.templates == nil {
		m.templates = make(map[string]*entity.QuoteTemplate)
	}
	m.templates[tmpl.ContractorID] = tmpl
	return nil
}

func (m *mockTemplates) GetByContractor(ctx context.Context, contractorID string) (*entity.QuoteTemplate, error) {
	if t, ok := m.templates[contractorID]; ok {
		return t, nil
	}
	return nil, port.ErrTemplateNotFound
}

type mockExporter struct {
	gotTemplate *entity.QuoteTemplate
}

func (m *mockExporter) Export(ctx context.Context, quote *entity.Quote, items []entity.QuoteItem, tmpl *entity.QuoteTemplate) ([]byte, error) {
	m.gotTemplate = tmpl
	return []byte("xlsx"), nil
}

func (m *mockExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (m *mockExporter) FileExtension() string { return "xlsx" }
