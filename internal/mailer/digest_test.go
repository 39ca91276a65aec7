package mailer

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/config"
	"github.com/gharkhoji/gharkhoji/internal/events"
	"github.com/gharkhoji/gharkhoji/internal/listings"
	"github.com/gharkhoji/gharkhoji/internal/memory"
	"github.com/gharkhoji/gharkhoji/internal/opstate"

	_ "modernc.org/sqlite"
)

// sentMail captures one delivery made through an injected sendFunc.
type sentMail struct {
	from       string
	recipients []string
	msg        []byte
}

func testStores(t *testing.T) (*memory.Store, *listings.Store, *opstate.Store) {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mem := memory.NewStore(db, nil)
	if err := mem.Migrate(ctx); err != nil {
		t.Fatalf("migrate memory: %v", err)
	}
	lst := listings.NewStore(db, nil)
	if err := lst.Migrate(ctx); err != nil {
		t.Fatalf("migrate listings: %v", err)
	}
	state := opstate.NewStore(db, nil)
	if err := state.Migrate(ctx); err != nil {
		t.Fatalf("migrate opstate: %v", err)
	}
	return mem, lst, state
}

// seedTestListings loads a small fixed corpus: two Sanepa apartments
// for rent and one Budhanilkantha house for sale.
func seedTestListings(t *testing.T, lst *listings.Store) {
	t.Helper()
	const data = `[
		{"id": "lst-sanepa-1", "title": "Bright 2BHK in Sanepa",
		 "property_type": "apartment", "listing_type": "rent", "price": 25000,
		 "location": "Sanepa", "city": "Lalitpur", "bedrooms": 2, "bathrooms": 1,
		 "area_sqft": 850, "amenities": ["parking", "water tank"], "match_score": 90},
		{"id": "lst-sanepa-2", "title": "Sanepa Heights studio",
		 "property_type": "apartment", "listing_type": "rent", "price": 18000,
		 "location": "Sanepa", "city": "Lalitpur", "bedrooms": 1, "bathrooms": 1,
		 "match_score": 70},
		{"id": "lst-budha-1", "title": "House in Budhanilkantha",
		 "property_type": "house", "listing_type": "sale", "price": 32000000,
		 "location": "Budhanilkantha", "city": "Kathmandu", "bedrooms": 4,
		 "bathrooms": 3, "match_score": 80}
	]`
	if _, err := lst.ImportJSON(context.Background(), strings.NewReader(data)); err != nil {
		t.Fatalf("import listings: %v", err)
	}
}

func digestConfig(recipients ...config.DigestRecipient) config.EmailConfig {
	return config.EmailConfig{
		Enabled: true,
		From:    "Gharkhoji <agent@gharkhoji.example.com>",
		Digest: config.DigestConfig{
			Enabled:     true,
			IntervalHrs: 24,
			Recipients:  recipients,
		},
	}
}

func TestCriteriaFromPreferences(t *testing.T) {
	tests := []struct {
		name  string
		prefs *memory.UserPreferences
		want  listings.Criteria
	}{
		{
			name:  "empty profile",
			prefs: &memory.UserPreferences{},
			want:  listings.Criteria{},
		},
		{
			name: "first location and type win",
			prefs: &memory.UserPreferences{
				Locations:     []string{"Sanepa", "Baluwatar"},
				PropertyTypes: []string{"apartment", "house"},
			},
			want: listings.Criteria{Location: "Sanepa", PropertyType: "apartment"},
		},
		{
			name: "price range",
			prefs: &memory.UserPreferences{
				PriceRange: &memory.PriceRange{Min: 10000, Max: 30000},
			},
			want: listings.Criteria{MinPrice: 10000, MaxPrice: 30000},
		},
		{
			name:  "bedrooms",
			prefs: &memory.UserPreferences{Bedrooms: 2},
			want:  listings.Criteria{Bedrooms: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := criteriaFromPreferences(tt.prefs)
			if got != tt.want {
				t.Errorf("criteriaFromPreferences() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDescribeCriteria(t *testing.T) {
	tests := []struct {
		name string
		c    listings.Criteria
		want string
	}{
		{"empty", listings.Criteria{}, "all listings"},
		{
			"type location and ceiling",
			listings.Criteria{PropertyType: "apartment", Location: "Sanepa", MaxPrice: 25000},
			"apartment, in Sanepa, up to NPR 25,000",
		},
		{
			"price band",
			listings.Criteria{MinPrice: 10000, MaxPrice: 30000},
			"NPR 10,000 to 30,000",
		},
		{
			"bedrooms and location",
			listings.Criteria{Bedrooms: 2, Location: "Patan"},
			"2 bedrooms, in Patan",
		},
		{
			"floor only",
			listings.Criteria{MinPrice: 5000000},
			"from NPR 5,000,000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeCriteria(tt.c); got != tt.want {
				t.Errorf("describeCriteria(%+v) = %q, want %q", tt.c, got, tt.want)
			}
		})
	}
}

func TestFormatNPR(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{25000, "25,000"},
		{4500000, "4,500,000"},
		{12500000, "12,500,000"},
	}

	for _, tt := range tests {
		if got := formatNPR(tt.n); got != tt.want {
			t.Errorf("formatNPR(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRenderDigest(t *testing.T) {
	criteria := listings.Criteria{Location: "Sanepa", PropertyType: "apartment"}
	matches := []listings.Listing{
		{
			Title: "Bright 2BHK in Sanepa", Location: "Sanepa", City: "Lalitpur",
			Price: 25000, ListingType: listings.ForRent, Bedrooms: 2, Bathrooms: 1,
			AreaSqft: 850, Amenities: []string{"parking", "water tank"},
			Description: "South facing with morning sun.",
		},
		{
			Title: "House in Budhanilkantha", Location: "Budhanilkantha", City: "Kathmandu",
			Price: 32000000, ListingType: listings.ForSale, Bedrooms: 4, Bathrooms: 3,
		},
	}

	body := renderDigest(criteria, matches)

	for _, want := range []string{
		"# Your Gharkhoji property digest",
		"(apartment, in Sanepa)",
		"## Bright 2BHK in Sanepa",
		"NPR 25,000/month",
		"2 bed, 1 bath",
		"850 sqft",
		"parking, water tank",
		"South facing with morning sun.",
		"## House in Budhanilkantha",
		"NPR 32,000,000",
		"Reply to this email",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("digest body missing %q:\n%s", want, body)
		}
	}

	if strings.Contains(body, "32,000,000/month") {
		t.Error("sale price should not carry a /month suffix")
	}
}

func TestDigestSendsWhenDue(t *testing.T) {
	mem, lst, state := testStores(t)
	seedTestListings(t, lst)
	ctx := context.Background()

	if err := mem.CreatePreferences(ctx, &memory.UserPreferences{
		UserID:        "renter@example.com",
		Locations:     []string{"Sanepa"},
		PropertyTypes: []string{"apartment"},
	}); err != nil {
		t.Fatalf("create preferences: %v", err)
	}

	bus := events.New()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	d := NewDigest(digestConfig(config.DigestRecipient{
		UserID: "renter@example.com", Email: "renter@example.com",
	}), mem, lst, state, bus, nil)

	var sent []sentMail
	d.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{from: from, recipients: rcpts, msg: msg})
		return nil
	}
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.scan(ctx)

	if len(sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(sent))
	}
	if got := sent[0].recipients[0]; got != "renter@example.com" {
		t.Errorf("recipient = %q, want renter@example.com", got)
	}
	body := string(sent[0].msg)
	if !strings.Contains(body, "Bright 2BHK in Sanepa") {
		t.Errorf("digest mail should include the top match:\n%s", body)
	}
	if !strings.Contains(body, "Subject: Your property matches for Mar 15") {
		t.Error("digest subject should carry the send date")
	}

	stored, err := state.Get(ctx, digestNamespace, "renter@example.com")
	if err != nil {
		t.Fatalf("get marker: %v", err)
	}
	if stored != "2026-03-15T09:00:00Z" {
		t.Errorf("marker = %q, want 2026-03-15T09:00:00Z", stored)
	}

	select {
	case e := <-sub:
		if e.Kind != events.KindDigestSent {
			t.Errorf("event kind = %q, want %q", e.Kind, events.KindDigestSent)
		}
		if e.Data["user_id"] != "renter@example.com" {
			t.Errorf("event user_id = %v", e.Data["user_id"])
		}
		if e.Data["listings"] != 2 {
			t.Errorf("event listings = %v, want 2", e.Data["listings"])
		}
	default:
		t.Fatal("no digest event published")
	}

	// Within the interval nothing more goes out.
	d.scan(ctx)
	if len(sent) != 1 {
		t.Fatalf("scan inside interval sent %d extra mails", len(sent)-1)
	}

	// Past the interval the next scan delivers again.
	now = now.Add(25 * time.Hour)
	d.scan(ctx)
	if len(sent) != 2 {
		t.Fatalf("scan past interval sent %d mails total, want 2", len(sent))
	}
}

func TestDigestSkipsUnknownUser(t *testing.T) {
	mem, lst, state := testStores(t)
	seedTestListings(t, lst)
	ctx := context.Background()

	d := NewDigest(digestConfig(config.DigestRecipient{
		UserID: "stranger@example.com", Email: "stranger@example.com",
	}), mem, lst, state, nil, nil)

	var sent []sentMail
	d.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{})
		return nil
	}

	d.scan(ctx)

	if len(sent) != 0 {
		t.Errorf("sent %d mails for a user with no profile", len(sent))
	}
	stored, _ := state.Get(ctx, digestNamespace, "stranger@example.com")
	if stored != "" {
		t.Errorf("marker should stay unset so the user is retried, got %q", stored)
	}
}

func TestDigestSkipsUnsearchableProfile(t *testing.T) {
	mem, lst, state := testStores(t)
	seedTestListings(t, lst)
	ctx := context.Background()

	// A profile with nothing searchable in it.
	if err := mem.CreatePreferences(ctx, &memory.UserPreferences{
		UserID:             "quiet@example.com",
		CommunicationStyle: "brief",
	}); err != nil {
		t.Fatalf("create preferences: %v", err)
	}

	d := NewDigest(digestConfig(config.DigestRecipient{
		UserID: "quiet@example.com", Email: "quiet@example.com",
	}), mem, lst, state, nil, nil)

	var sent []sentMail
	d.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{})
		return nil
	}

	d.scan(ctx)

	if len(sent) != 0 {
		t.Errorf("sent %d mails for an unsearchable profile", len(sent))
	}
}

func TestDigestMarksZeroMatches(t *testing.T) {
	mem, lst, state := testStores(t)
	seedTestListings(t, lst)
	ctx := context.Background()

	if err := mem.CreatePreferences(ctx, &memory.UserPreferences{
		UserID:    "pokhara@example.com",
		Locations: []string{"Pokhara"},
	}); err != nil {
		t.Fatalf("create preferences: %v", err)
	}

	d := NewDigest(digestConfig(config.DigestRecipient{
		UserID: "pokhara@example.com", Email: "pokhara@example.com",
	}), mem, lst, state, nil, nil)

	var sent []sentMail
	d.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{})
		return nil
	}
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.scan(ctx)

	if len(sent) != 0 {
		t.Errorf("sent %d mails with zero matches", len(sent))
	}
	stored, _ := state.Get(ctx, digestNamespace, "pokhara@example.com")
	if stored != "2026-03-15T09:00:00Z" {
		t.Errorf("zero-match evaluation should still set the marker, got %q", stored)
	}
}

func TestDigestCorruptMarkerTreatedAsDue(t *testing.T) {
	mem, lst, state := testStores(t)
	seedTestListings(t, lst)
	ctx := context.Background()

	if err := mem.CreatePreferences(ctx, &memory.UserPreferences{
		UserID:    "renter@example.com",
		Locations: []string{"Sanepa"},
	}); err != nil {
		t.Fatalf("create preferences: %v", err)
	}
	if err := state.Set(ctx, digestNamespace, "renter@example.com", "not-a-timestamp"); err != nil {
		t.Fatalf("set marker: %v", err)
	}

	d := NewDigest(digestConfig(config.DigestRecipient{
		UserID: "renter@example.com", Email: "renter@example.com",
	}), mem, lst, state, nil, nil)

	var sent []sentMail
	d.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{})
		return nil
	}
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.scan(ctx)

	if len(sent) != 1 {
		t.Fatalf("corrupt marker should be treated as due, sent %d", len(sent))
	}
	stored, _ := state.Get(ctx, digestNamespace, "renter@example.com")
	if stored != "2026-03-15T09:00:00Z" {
		t.Errorf("marker should be rewritten, got %q", stored)
	}
}

func TestDigestStartStop(t *testing.T) {
	mem, lst, state := testStores(t)
	seedTestListings(t, lst)
	ctx := context.Background()

	if err := mem.CreatePreferences(ctx, &memory.UserPreferences{
		UserID:    "renter@example.com",
		Locations: []string{"Sanepa"},
	}); err != nil {
		t.Fatalf("create preferences: %v", err)
	}

	d := NewDigest(digestConfig(config.DigestRecipient{
		UserID: "renter@example.com", Email: "renter@example.com",
	}), mem, lst, state, nil, nil)

	sendCh := make(chan sentMail, 4)
	d.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sendCh <- sentMail{from: from, recipients: rcpts, msg: msg}
		return nil
	}

	d.Start(ctx)
	select {
	case m := <-sendCh:
		if m.recipients[0] != "renter@example.com" {
			t.Errorf("recipient = %q", m.recipients[0])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initial scan never delivered")
	}
	d.Stop()
}
