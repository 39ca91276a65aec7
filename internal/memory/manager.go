package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// maxStoredMessages caps how many messages a session keeps. Beyond
	// it, the oldest non-system messages are dropped for good.
	maxStoredMessages = 20

	// contextTokenBudget bounds the estimated token total of the
	// context window handed to the model.
	contextTokenBudget = 8000

	// maxSearchHistory caps the preference search log, oldest out first.
	maxSearchHistory = 50
)

// ErrNoSession means AddMessage was called before InitializeSession for
// that user. That is a caller bug, not a runtime condition to absorb.
var ErrNoSession = errors.New("memory: no active session")

// userState is one user's live session and preferences. persisted is
// false when storage was unavailable at session setup; writes are then
// skipped and the session lives only in process memory.
type userState struct {
	session   *Session
	prefs     *UserPreferences
	persisted bool
}

// Manager owns session and preference lifecycle for all users. It is
// constructed once and injected; storage failures degrade to in-memory
// operation instead of failing the conversation.
type Manager struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	users map[string]*userState
}

// NewManager creates a manager over the given store.
func NewManager(store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger.With("component", "memory"),
		now:    time.Now,
		users:  make(map[string]*userState),
	}
}

// InitializeSession loads or creates the user's preferences and active
// session. It never fails: on storage errors it degrades to an
// unpersisted in-memory session so the conversation can proceed.
func (m *Manager) InitializeSession(ctx context.Context, userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.users[userID]
	if st == nil {
		st = &userState{}
		m.users[userID] = st
	}
	now := m.now()

	if st.prefs == nil {
		st.prefs = m.loadOrCreatePreferences(ctx, userID, now)
	}

	candidate := st.session
	fromStore := false
	if candidate == nil {
		loaded, err := m.store.LatestSession(ctx, userID)
		if err != nil {
			m.logger.Warn("load session failed, continuing in-memory",
				"user", userID, "error", err)
			st.session = m.newSession(userID, now)
			st.persisted = false
			return st.session
		}
		candidate = loaded
		fromStore = true
	}

	if ChooseSession(candidate, now) == Resume {
		if fromStore {
			st.persisted = true
			m.logger.Info("resumed session",
				"user", userID, "session", candidate.ID, "messages", len(candidate.Messages))
		}
		st.session = candidate
		return st.session
	}

	sess := m.newSession(userID, now)
	if err := m.store.CreateSession(ctx, sess); err != nil {
		m.logger.Warn("persist session failed, continuing in-memory",
			"user", userID, "error", err)
		st.persisted = false
	} else {
		st.persisted = true
	}
	st.session = sess
	return sess
}

func (m *Manager) loadOrCreatePreferences(ctx context.Context, userID string, now time.Time) *UserPreferences {
	p, err := m.store.Preferences(ctx, userID)
	if err == nil {
		return p
	}
	if !errors.Is(err, ErrNotFound) {
		m.logger.Warn("load preferences failed, using defaults",
			"user", userID, "error", err)
		return defaultPreferences(userID)
	}

	p = defaultPreferences(userID)
	p.UpdatedAtMs = now.UnixMilli()
	if err := m.store.CreatePreferences(ctx, p); err != nil {
		m.logger.Warn("create preferences failed, continuing unpersisted",
			"user", userID, "error", err)
	}
	return p
}

func (m *Manager) newSession(userID string, now time.Time) *Session {
	ms := now.UnixMilli()
	return &Session{
		ID:             newID(),
		UserID:         userID,
		Messages:       []Message{},
		LastActivityMs: ms,
		CreatedAtMs:    ms,
		UpdatedAtMs:    ms,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ActiveSession returns the user's current session, or nil before
// InitializeSession.
func (m *Manager) ActiveSession(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st := m.users[userID]; st != nil {
		return st.session
	}
	return nil
}

// ActiveSessionCount returns how many users currently hold a live
// session in this manager. Used for runtime telemetry.
func (m *Manager) ActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, st := range m.users {
		if st.session != nil {
			n++
		}
	}
	return n
}

// AddMessage appends a message to the user's active session, extracts
// preferences from user-role content, trims the session to its size
// cap, and persists. Only a missing session is an error; persistence
// failures are logged and absorbed.
func (m *Manager) AddMessage(ctx context.Context, userID string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.users[userID]
	if st == nil || st.session == nil {
		return fmt.Errorf("add message for %s: %w", userID, ErrNoSession)
	}

	now := m.now().UnixMilli()
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.CreatedAtMs == 0 {
		msg.CreatedAtMs = now
	}

	sess := st.session
	sess.Messages = append(sess.Messages, msg)
	sess.LastActivityMs = now
	sess.UpdatedAtMs = now

	if msg.Role == RoleUser {
		if st.prefs == nil {
			st.prefs = defaultPreferences(userID)
		}
		if st.prefs.merge(ExtractPreferences(msg.Content)) {
			m.persistPreferences(ctx, st.prefs)
		}
	}

	dropped := trimMessages(sess)

	if st.persisted {
		if err := m.store.AppendMessage(ctx, sess.ID, msg); err != nil {
			m.logger.Warn("persist message failed",
				"session", sess.ID, "error", err)
		}
		if err := m.store.DeleteMessages(ctx, dropped); err != nil {
			m.logger.Warn("prune trimmed messages failed",
				"session", sess.ID, "error", err)
		}
	}
	return nil
}

// trimMessages enforces the size cap: all system messages survive, and
// the most recent non-system messages fill the rest. Returns the ids of
// dropped messages so the store can forget them too.
func trimMessages(sess *Session) []string {
	if len(sess.Messages) <= maxStoredMessages {
		return nil
	}

	systemCount := 0
	for _, msg := range sess.Messages {
		if msg.Role == RoleSystem {
			systemCount++
		}
	}
	keep := maxStoredMessages - systemCount
	if keep < 0 {
		keep = 0
	}
	drop := len(sess.Messages) - systemCount - keep
	if drop <= 0 {
		return nil
	}

	kept := make([]Message, 0, len(sess.Messages)-drop)
	dropped := make([]string, 0, drop)
	for _, msg := range sess.Messages {
		if msg.Role != RoleSystem && drop > 0 {
			drop--
			dropped = append(dropped, msg.ID)
			continue
		}
		kept = append(kept, msg)
	}
	sess.Messages = kept
	return dropped
}

// ConversationContext returns the token-budgeted message subsequence
// for prompt assembly: every system message, plus as many of the most
// recent other messages as fit the budget, in original order.
func (m *Manager) ConversationContext(userID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.users[userID]
	if st == nil || st.session == nil {
		return nil
	}
	return budgetMessages(st.session.Messages)
}

func budgetMessages(msgs []Message) []Message {
	used := 0
	include := make([]bool, len(msgs))
	for i, msg := range msgs {
		if msg.Role == RoleSystem {
			include[i] = true
			used += estimateTokens(msg.Content)
		}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleSystem {
			continue
		}
		cost := estimateTokens(msgs[i].Content)
		if used+cost > contextTokenBudget {
			break
		}
		include[i] = true
		used += cost
	}

	out := make([]Message, 0, len(msgs))
	for i, msg := range msgs {
		if include[i] {
			out = append(out, msg)
		}
	}
	return out
}

// Preferences returns a copy of the user's current preference profile,
// or nil before InitializeSession.
func (m *Manager) Preferences(userID string) *UserPreferences {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.users[userID]
	if st == nil || st.prefs == nil {
		return nil
	}
	cp := *st.prefs
	return &cp
}

// AddToSearchHistory appends a query to the user's search log. No
// dedup; the log is capped at maxSearchHistory, oldest out first.
func (m *Manager) AddToSearchHistory(ctx context.Context, userID, query string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.users[userID]
	if st == nil || st.prefs == nil {
		return
	}
	st.prefs.SearchHistory = append(st.prefs.SearchHistory, query)
	if n := len(st.prefs.SearchHistory); n > maxSearchHistory {
		st.prefs.SearchHistory = st.prefs.SearchHistory[n-maxSearchHistory:]
	}
	m.persistPreferences(ctx, st.prefs)
}

// MarkViewed records that the user looked at a listing. Deduplicated.
func (m *Manager) MarkViewed(ctx context.Context, userID, listingID string) {
	m.appendUnique(ctx, userID, listingID, func(p *UserPreferences) *[]string {
		return &p.ViewedProperties
	})
}

// AddFavorite records a listing the user flagged. Deduplicated.
func (m *Manager) AddFavorite(ctx context.Context, userID, listingID string) {
	m.appendUnique(ctx, userID, listingID, func(p *UserPreferences) *[]string {
		return &p.FavoriteProperties
	})
}

func (m *Manager) appendUnique(ctx context.Context, userID, value string, field func(*UserPreferences) *[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.users[userID]
	if st == nil || st.prefs == nil {
		return
	}
	if unionInto(field(st.prefs), []string{value}) {
		m.persistPreferences(ctx, st.prefs)
	}
}

// persistPreferences saves the profile, recreating the row once if the
// update reports it missing. Failures are logged, never raised; the
// in-memory profile stays authoritative for this process.
func (m *Manager) persistPreferences(ctx context.Context, p *UserPreferences) {
	p.UpdatedAtMs = m.now().UnixMilli()

	err := m.store.UpdatePreferences(ctx, p)
	if err == nil {
		return
	}
	if errors.Is(err, ErrNotFound) {
		m.logger.Warn("preferences row missing, recreating", "user", p.UserID)
		if err := m.store.CreatePreferences(ctx, p); err != nil {
			m.logger.Warn("recreate preferences failed",
				"user", p.UserID, "error", err)
		}
		return
	}
	m.logger.Warn("persist preferences failed", "user", p.UserID, "error", err)
}
