package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) (*Manager, *Store, *sql.DB) {
	t.Helper()
	store, db := setupTestStore(t)
	return NewManager(store, nil), store, db
}

func TestInitializeSessionCreatesNew(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	sess := m.InitializeSession(ctx, "user-1")
	if sess == nil || sess.ID == "" {
		t.Fatalf("no session created: %+v", sess)
	}
	if sess.UserID != "user-1" || len(sess.Messages) != 0 {
		t.Errorf("unexpected session: %+v", sess)
	}

	// Both the session and the default preferences are persisted.
	if _, err := store.Session(ctx, sess.ID); err != nil {
		t.Errorf("session not persisted: %v", err)
	}
	p, err := store.Preferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("preferences not created: %v", err)
	}
	if p.UserID != "user-1" || p.Language != "en" {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestInitializeSessionResumesAcrossRestart(t *testing.T) {
	m1, store, _ := newTestManager(t)
	ctx := context.Background()

	sess := m1.InitializeSession(ctx, "user-1")
	if err := m1.AddMessage(ctx, "user-1", Message{Role: RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("add message: %v", err)
	}

	// A fresh manager over the same store stands in for a restart.
	m2 := NewManager(store, nil)
	resumed := m2.InitializeSession(ctx, "user-1")
	if resumed.ID != sess.ID {
		t.Fatalf("got session %s, want resumed %s", resumed.ID, sess.ID)
	}
	if len(resumed.Messages) != 1 || resumed.Messages[0].Content != "hello" {
		t.Errorf("messages not restored: %+v", resumed.Messages)
	}

	// And messages added after the resume are persisted too.
	if err := m2.AddMessage(ctx, "user-1", Message{Role: RoleUser, Content: "still here"}); err != nil {
		t.Fatalf("add after resume: %v", err)
	}
	stored, err := store.SessionMessages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("got %d stored messages, want 2", len(stored))
	}
}

func TestInitializeSessionStaleStartsFresh(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)

	m.now = func() time.Time { return base }
	first := m.InitializeSession(ctx, "user-1")

	m.now = func() time.Time { return base.Add(30 * time.Minute) }
	if again := m.InitializeSession(ctx, "user-1"); again.ID != first.ID {
		t.Errorf("within the window the session should be kept: %s vs %s", again.ID, first.ID)
	}

	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	fresh := m.InitializeSession(ctx, "user-1")
	if fresh.ID == first.ID {
		t.Error("a stale session should be abandoned, not resumed")
	}
}

func TestInitializeSessionDegradesWithoutStorage(t *testing.T) {
	m, _, db := newTestManager(t)
	ctx := context.Background()
	db.Close()

	sess := m.InitializeSession(ctx, "user-1")
	if sess == nil || sess.ID == "" {
		t.Fatal("expected an in-memory fallback session")
	}

	// The conversation still works, nothing is raised.
	if err := m.AddMessage(ctx, "user-1", Message{Role: RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("add message on fallback session: %v", err)
	}
	got := m.ConversationContext("user-1")
	if len(got) != 1 || got[0].Content != "hello" {
		t.Errorf("context = %+v", got)
	}
}

func TestAddMessageWithoutSession(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.AddMessage(context.Background(), "user-1", Message{Role: RoleUser, Content: "hi"})
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("got %v, want ErrNoSession", err)
	}
}

func TestAddMessageFillsIDAndTimestamp(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	m.InitializeSession(ctx, "user-1")
	if err := m.AddMessage(ctx, "user-1", Message{Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	sess := m.ActiveSession("user-1")
	msg := sess.Messages[0]
	if msg.ID == "" || msg.CreatedAtMs == 0 {
		t.Errorf("id/timestamp not filled: %+v", msg)
	}
	if sess.LastActivityMs < msg.CreatedAtMs {
		t.Errorf("last activity %d not bumped to %d", sess.LastActivityMs, msg.CreatedAtMs)
	}
}

func TestAddMessageExtractsPreferences(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	m.InitializeSession(ctx, "user-1")
	err := m.AddMessage(ctx, "user-1", Message{
		Role:    RoleUser,
		Content: "Looking for a 2BHK flat in Sanepa under 25,000",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	p := m.Preferences("user-1")
	if p.Bedrooms != 2 {
		t.Errorf("bedrooms = %d, want 2", p.Bedrooms)
	}
	if len(p.PropertyTypes) != 1 || p.PropertyTypes[0] != "apartment" {
		t.Errorf("property types = %v", p.PropertyTypes)
	}
	if len(p.Locations) != 1 || p.Locations[0] != "Sanepa" {
		t.Errorf("locations = %v", p.Locations)
	}
	if p.PriceRange == nil || p.PriceRange.Max != 25000 {
		t.Errorf("price range = %+v", p.PriceRange)
	}

	// The merged profile reached the store.
	stored, err := store.Preferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("load stored prefs: %v", err)
	}
	if stored.Bedrooms != 2 || len(stored.Locations) != 1 {
		t.Errorf("stored profile out of date: %+v", stored)
	}
}

func TestAddMessageAssistantSkipsExtraction(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	m.InitializeSession(ctx, "user-1")
	err := m.AddMessage(ctx, "user-1", Message{
		Role:    RoleAssistant,
		Content: "I found a 3BHK house in Budhanilkantha under 90,000",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	p := m.Preferences("user-1")
	if p.Bedrooms != 0 || len(p.Locations) != 0 {
		t.Errorf("assistant text should not shape the profile: %+v", p)
	}
}

func TestTrimKeepsSystemAndRecent(t *testing.T) {
	sess := &Session{ID: "sess-1"}
	sess.Messages = append(sess.Messages, Message{ID: "sys-1", Role: RoleSystem, Content: "s"})
	for i := 0; i < 24; i++ {
		sess.Messages = append(sess.Messages, Message{
			ID:   fmt.Sprintf("msg-%02d", i),
			Role: RoleUser, Content: "x",
		})
	}

	dropped := trimMessages(sess)

	if len(sess.Messages) != 20 {
		t.Fatalf("kept %d messages, want 20", len(sess.Messages))
	}
	if sess.Messages[0].ID != "sys-1" {
		t.Errorf("system message lost its place: %s", sess.Messages[0].ID)
	}
	// 24 non-system minus (20-1) kept = 5 dropped, the oldest five.
	if len(dropped) != 5 {
		t.Fatalf("dropped %d, want 5: %v", len(dropped), dropped)
	}
	for i, id := range []string{"msg-00", "msg-01", "msg-02", "msg-03", "msg-04"} {
		if dropped[i] != id {
			t.Errorf("dropped[%d] = %s, want %s", i, dropped[i], id)
		}
	}
	if sess.Messages[1].ID != "msg-05" {
		t.Errorf("oldest kept = %s, want msg-05", sess.Messages[1].ID)
	}
}

func TestTrimUnderCapIsNoOp(t *testing.T) {
	sess := &Session{ID: "sess-1"}
	for i := 0; i < 20; i++ {
		sess.Messages = append(sess.Messages, Message{ID: fmt.Sprintf("m%d", i), Role: RoleUser})
	}
	if dropped := trimMessages(sess); dropped != nil {
		t.Errorf("dropped %v from a session at the cap", dropped)
	}
	if len(sess.Messages) != 20 {
		t.Errorf("kept %d, want 20", len(sess.Messages))
	}
}

func TestTrimDeletesFromStore(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	sess := m.InitializeSession(ctx, "user-1")
	for i := 0; i < 25; i++ {
		err := m.AddMessage(ctx, "user-1", Message{Role: RoleUser, Content: fmt.Sprintf("query %d", i)})
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	if got := len(m.ActiveSession("user-1").Messages); got != 20 {
		t.Errorf("in-memory kept %d, want 20", got)
	}
	stored, err := store.SessionMessages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored) != 20 {
		t.Errorf("store kept %d, want 20", len(stored))
	}
	if stored[0].Content != "query 5" {
		t.Errorf("oldest stored = %q, want %q", stored[0].Content, "query 5")
	}
}

func TestBudgetStopsAtFirstOversized(t *testing.T) {
	msgs := []Message{
		{ID: "m1", Role: RoleUser, Content: strings.Repeat("a", 400)},
		{ID: "m2", Role: RoleUser, Content: strings.Repeat("b", 40000)},
		{ID: "m3", Role: RoleUser, Content: strings.Repeat("c", 400)},
	}

	got := budgetMessages(msgs)
	// Newest-first scan: m3 fits, m2 busts the budget and stops the
	// scan, so m1 is never considered.
	if len(got) != 1 || got[0].ID != "m3" {
		t.Errorf("got %d messages (first %s), want only m3", len(got), got[0].ID)
	}
}

func TestBudgetAlwaysKeepsSystem(t *testing.T) {
	msgs := []Message{
		{ID: "sys", Role: RoleSystem, Content: strings.Repeat("s", 40000)},
		{ID: "m1", Role: RoleUser, Content: strings.Repeat("a", 400)},
	}

	got := budgetMessages(msgs)
	if len(got) != 1 || got[0].ID != "sys" {
		t.Errorf("system must survive even over budget; got %+v", got)
	}
}

func TestBudgetPreservesOrder(t *testing.T) {
	msgs := []Message{
		{ID: "sys", Role: RoleSystem, Content: "persona"},
		{ID: "m1", Role: RoleUser, Content: "first"},
		{ID: "m2", Role: RoleAssistant, Content: "second"},
		{ID: "m3", Role: RoleUser, Content: "third"},
	}

	got := budgetMessages(msgs)
	if len(got) != 4 {
		t.Fatalf("small conversation should fit whole, got %d", len(got))
	}
	for i, want := range []string{"sys", "m1", "m2", "m3"} {
		if got[i].ID != want {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestConversationContextBeforeInit(t *testing.T) {
	m, _, _ := newTestManager(t)
	if got := m.ConversationContext("user-1"); got != nil {
		t.Errorf("expected nil before initialization, got %+v", got)
	}
}

func TestActiveSessionCount(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	if got := m.ActiveSessionCount(); got != 0 {
		t.Fatalf("count before init = %d, want 0", got)
	}

	m.InitializeSession(ctx, "user-1")
	m.InitializeSession(ctx, "user-2")
	m.InitializeSession(ctx, "user-1") // same user, still one session

	if got := m.ActiveSessionCount(); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestSearchHistoryCap(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	m.InitializeSession(ctx, "user-1")
	for i := 0; i < 55; i++ {
		m.AddToSearchHistory(ctx, "user-1", fmt.Sprintf("query %d", i))
	}

	p := m.Preferences("user-1")
	if len(p.SearchHistory) != 50 {
		t.Fatalf("history length %d, want 50", len(p.SearchHistory))
	}
	if p.SearchHistory[0] != "query 5" || p.SearchHistory[49] != "query 54" {
		t.Errorf("wrong window: first %q, last %q", p.SearchHistory[0], p.SearchHistory[49])
	}
}

func TestSearchHistoryKeepsDuplicates(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	m.InitializeSession(ctx, "user-1")
	m.AddToSearchHistory(ctx, "user-1", "flat in sanepa")
	m.AddToSearchHistory(ctx, "user-1", "flat in sanepa")

	p := m.Preferences("user-1")
	if len(p.SearchHistory) != 2 {
		t.Errorf("repeat searches are kept, got %v", p.SearchHistory)
	}
}

func TestViewedAndFavoritesDedup(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	m.InitializeSession(ctx, "user-1")
	m.MarkViewed(ctx, "user-1", "lst-0001")
	m.MarkViewed(ctx, "user-1", "lst-0001")
	m.AddFavorite(ctx, "user-1", "lst-0002")
	m.AddFavorite(ctx, "user-1", "lst-0002")

	p := m.Preferences("user-1")
	if len(p.ViewedProperties) != 1 || p.ViewedProperties[0] != "lst-0001" {
		t.Errorf("viewed = %v", p.ViewedProperties)
	}
	if len(p.FavoriteProperties) != 1 || p.FavoriteProperties[0] != "lst-0002" {
		t.Errorf("favorites = %v", p.FavoriteProperties)
	}
}

func TestPreferencesRecreatedWhenRowVanishes(t *testing.T) {
	m, store, db := newTestManager(t)
	ctx := context.Background()

	m.InitializeSession(ctx, "user-1")
	if _, err := db.Exec(`DELETE FROM preferences`); err != nil {
		t.Fatalf("drop row: %v", err)
	}

	err := m.AddMessage(ctx, "user-1", Message{
		Role:    RoleUser,
		Content: "a flat in Sanepa please",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	p, err := store.Preferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("preferences were not recreated: %v", err)
	}
	if len(p.Locations) != 1 || p.Locations[0] != "Sanepa" {
		t.Errorf("recreated profile incomplete: %+v", p)
	}
}

func TestPreferencesCopyIsolated(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	m.InitializeSession(ctx, "user-1")
	p := m.Preferences("user-1")
	p.Bedrooms = 99

	if got := m.Preferences("user-1"); got.Bedrooms == 99 {
		t.Error("Preferences must return a copy, not the live profile")
	}
}
