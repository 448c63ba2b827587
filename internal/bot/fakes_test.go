package bot

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/countmein/backend/internal/models"
	"github.com/countmein/backend/internal/session"
)

type memPolls struct {
	mu     sync.Mutex
	nextID int64
	polls  map[int64]*models.Poll
	clock  time.Time
	err    error
}

func newMemPolls() *memPolls {
	return &memPolls{polls: make(map[int64]*models.Poll), clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *memPolls) Create(_ context.Context, p *models.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	m.clock = m.clock.Add(time.Minute)
	p.ID = m.nextID
	p.CreatedAt, p.UpdatedAt = m.clock, m.clock
	m.polls[p.ID] = p.Clone()
	return nil
}

func (m *memPolls) GetByID(_ context.Context, id int64) (*models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.polls[id]
	if !ok {
		return nil, models.ErrPollNotFound
	}
	return p.Clone(), nil
}

func (m *memPolls) sorted(keep func(*models.Poll) bool, limit int) []*models.Poll {
	var out []*models.Poll
	for _, p := range m.polls {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memPolls) ListByAdmin(_ context.Context, adminID string, limit int) ([]*models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(p *models.Poll) bool { return p.AdminID == adminID }, limit), nil
}

func (m *memPolls) SearchByTitlePrefix(_ context.Context, adminID, prefix string, limit int) ([]*models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.sorted(func(p *models.Poll) bool {
		return p.AdminID == adminID && strings.HasPrefix(p.TitleLower, prefix)
	}, limit), nil
}

func (m *memPolls) Transact(_ context.Context, id int64, fn func(*models.Poll) error) (*models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	stored, ok := m.polls[id]
	if !ok {
		return nil, models.ErrPollNotFound
	}
	p := stored.Clone()
	if err := fn(p); err != nil {
		return nil, err
	}
	m.polls[id] = p
	return p.Clone(), nil
}

func (m *memPolls) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.polls, id)
	return nil
}

func (m *memPolls) get(id int64) *models.Poll {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.polls[id]; ok {
		return p.Clone()
	}
	return nil
}

type memUsers struct {
	mu          sync.Mutex
	users       map[int64]models.Profile
	respondents map[int64]models.Profile
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[int64]models.Profile), respondents: make(map[int64]models.Profile)}
}

func (m *memUsers) UpsertUser(_ context.Context, id int64, p models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = p
	return nil
}

func (m *memUsers) UpsertRespondent(_ context.Context, id int64, p models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respondents[id] = p
	return nil
}

type sent struct {
	method  string
	payload any
	delay   time.Duration
}

type memDelivery struct {
	mu    sync.Mutex
	calls []sent
}

func (m *memDelivery) Enqueue(_ context.Context, method string, payload any, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sent{method: method, payload: payload, delay: delay})
	return nil
}

// take returns and forgets the calls queued so far.
func (m *memDelivery) take() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.calls
	m.calls = nil
	return out
}

type fixture struct {
	bot      *Bot
	polls    *memPolls
	users    *memUsers
	delivery *memDelivery
	sessions *session.Store
	redis    *miniredis.Miniredis
}

func testConfig() Config {
	return Config{
		TitleMaxLength: 3072,
		MaxOptions:     10,
		SessionTTL:     time.Hour,
		ListLimit:      30,
		InlineLimit:    50,
		DeliverDelay:   500 * time.Millisecond,
		BotUsername:    "countmeinbot",
		ThumbURL:       "https://example.com/thumb.jpg",
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		polls:    newMemPolls(),
		users:    newMemUsers(),
		delivery: &memDelivery{},
		sessions: session.NewStore(client),
		redis:    mr,
	}
	f.bot = New(f.polls, f.users, f.sessions, f.delivery, cfg, nil)
	return f
}

func (f *fixture) token(t *testing.T, chatID string) string {
	t.Helper()
	tok, err := f.sessions.Get(context.Background(), chatID)
	if err != nil {
		t.Fatalf("session get: %v", err)
	}
	return tok
}
