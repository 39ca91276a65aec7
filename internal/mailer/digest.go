package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/config"
	"github.com/gharkhoji/gharkhoji/internal/events"
	"github.com/gharkhoji/gharkhoji/internal/listings"
	"github.com/gharkhoji/gharkhoji/internal/memory"
	"github.com/gharkhoji/gharkhoji/internal/opstate"
)

const (
	// digestNamespace is the opstate namespace for per-user send markers.
	digestNamespace = "digest"

	// digestScanInterval is how often recipients are checked against
	// their markers. The configured interval_hours decides whether a
	// scan actually sends.
	digestScanInterval = time.Hour
)

// Digest periodically mails each configured recipient the listings
// matching their stored preferences. A per-user opstate marker keeps
// one delivery per configured interval, surviving restarts.
type Digest struct {
	cfg      config.EmailConfig
	memory   *memory.Store
	listings *listings.Store
	state    *opstate.Store
	bus      *events.Bus
	logger   *slog.Logger
	send     sendFunc
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDigest creates the digest worker. Call Start to begin scanning.
func NewDigest(cfg config.EmailConfig, mem *memory.Store, lst *listings.Store, state *opstate.Store, bus *events.Bus, logger *slog.Logger) *Digest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Digest{
		cfg:      cfg,
		memory:   mem,
		listings: lst,
		state:    state,
		bus:      bus,
		logger:   logger.With("component", "digest"),
		send:     SendMail,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the background digest worker. It scans immediately on
// startup to catch up after downtime, then hourly.
func (d *Digest) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go d.run(workerCtx)
}

// Stop cancels the worker and waits for its goroutine to exit.
func (d *Digest) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	<-d.done
}

func (d *Digest) run(ctx context.Context) {
	defer close(d.done)

	d.logger.Info("digest worker starting",
		"recipients", len(d.cfg.Digest.Recipients),
		"interval_hours", d.cfg.Digest.IntervalHrs,
	)
	d.scan(ctx)

	ticker := time.NewTicker(digestScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("digest worker stopped")
			return
		case <-ticker.C:
			d.scan(ctx)
		}
	}
}

func (d *Digest) interval() time.Duration {
	hrs := d.cfg.Digest.IntervalHrs
	if hrs <= 0 {
		hrs = 24
	}
	return time.Duration(hrs) * time.Hour
}

func (d *Digest) scan(ctx context.Context) {
	for _, rcpt := range d.cfg.Digest.Recipients {
		if ctx.Err() != nil {
			return
		}
		if err := d.process(ctx, rcpt); err != nil {
			d.logger.Warn("digest delivery failed",
				"user", rcpt.UserID, "email", rcpt.Email, "error", err)
		}
	}
}

// process evaluates one recipient: skip if not due, skip if nothing is
// known or nothing matches, otherwise compose, send, and mark.
func (d *Digest) process(ctx context.Context, rcpt config.DigestRecipient) error {
	due, err := d.due(ctx, rcpt.UserID)
	if err != nil {
		return err
	}
	if !due {
		return nil
	}

	prefs, err := d.memory.Preferences(ctx, rcpt.UserID)
	if errors.Is(err, memory.ErrNotFound) {
		// Nothing known about this user yet; try again next scan.
		d.logger.Debug("no preferences for digest recipient", "user", rcpt.UserID)
		return nil
	}
	if err != nil {
		return err
	}

	criteria := criteriaFromPreferences(prefs)
	if criteria.Empty() {
		d.logger.Debug("recipient has no searchable preferences", "user", rcpt.UserID)
		return nil
	}

	matches, err := d.listings.Search(ctx, criteria)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		// Evaluated with nothing to say: mark so the empty result is
		// not re-run every scan for the rest of the interval.
		return d.mark(ctx, rcpt.UserID)
	}

	msg, err := ComposeMessage(ComposeOptions{
		From:    d.cfg.From,
		To:      []string{rcpt.Email},
		Subject: fmt.Sprintf("Your property matches for %s", d.now().Format("Jan 2")),
		Body:    renderDigest(criteria, matches),
	})
	if err != nil {
		return err
	}

	if err := d.send(ctx, d.cfg.SMTP, d.cfg.From, []string{rcpt.Email}, msg); err != nil {
		return err
	}
	if err := d.mark(ctx, rcpt.UserID); err != nil {
		return err
	}

	d.logger.Info("digest sent", "user", rcpt.UserID, "listings", len(matches))
	d.bus.Emit(events.SourceDigest, events.KindDigestSent, map[string]any{
		"user_id":  rcpt.UserID,
		"listings": len(matches),
	})
	return nil
}

// due reports whether the interval has elapsed since the user's last
// marker. A missing marker means due; a corrupt one is treated as due
// and overwritten by the next mark.
func (d *Digest) due(ctx context.Context, userID string) (bool, error) {
	stored, err := d.state.Get(ctx, digestNamespace, userID)
	if err != nil {
		return false, fmt.Errorf("get digest marker: %w", err)
	}
	if stored == "" {
		return true, nil
	}
	last, err := time.Parse(time.RFC3339, stored)
	if err != nil {
		d.logger.Warn("corrupt digest marker", "user", userID, "stored", stored)
		return true, nil
	}
	return d.now().Sub(last) >= d.interval(), nil
}

func (d *Digest) mark(ctx context.Context, userID string) error {
	return d.state.Set(ctx, digestNamespace, userID, d.now().UTC().Format(time.RFC3339))
}

// criteriaFromPreferences turns a stored profile into search filters.
// Collections keep only their first entry; preference extraction
// appends, so the first is the longest-held.
func criteriaFromPreferences(p *memory.UserPreferences) listings.Criteria {
	var c listings.Criteria
	if len(p.Locations) > 0 {
		c.Location = p.Locations[0]
	}
	if len(p.PropertyTypes) > 0 {
		c.PropertyType = p.PropertyTypes[0]
	}
	if pr := p.PriceRange; pr != nil {
		c.MinPrice = pr.Min
		c.MaxPrice = pr.Max
	}
	if p.Bedrooms > 0 {
		c.Bedrooms = p.Bedrooms
	}
	return c
}

// renderDigest builds the markdown body for a digest email.
func renderDigest(criteria listings.Criteria, matches []listings.Listing) string {
	var b strings.Builder
	b.WriteString("# Your Gharkhoji property digest\n\n")
	fmt.Fprintf(&b, "Matches for your saved search (%s):\n\n", describeCriteria(criteria))

	for _, l := range matches {
		fmt.Fprintf(&b, "## %s\n\n", l.Title)
		fmt.Fprintf(&b, "- **Location:** %s, %s\n", l.Location, l.City)
		suffix := ""
		if l.ListingType == listings.ForRent {
			suffix = "/month"
		}
		fmt.Fprintf(&b, "- **Price:** NPR %s%s\n", formatNPR(l.Price), suffix)
		if l.Bedrooms > 0 {
			fmt.Fprintf(&b, "- **Layout:** %d bed, %d bath\n", l.Bedrooms, l.Bathrooms)
		}
		if l.AreaSqft > 0 {
			fmt.Fprintf(&b, "- **Area:** %d sqft\n", l.AreaSqft)
		}
		if len(l.Amenities) > 0 {
			fmt.Fprintf(&b, "- **Amenities:** %s\n", strings.Join(l.Amenities, ", "))
		}
		if l.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", l.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("Reply to this email to ask about any of these.\n")
	return b.String()
}

// describeCriteria renders the active filters as a short phrase.
func describeCriteria(c listings.Criteria) string {
	var parts []string
	if c.PropertyType != "" {
		parts = append(parts, c.PropertyType)
	}
	if c.Bedrooms > 0 {
		parts = append(parts, fmt.Sprintf("%d bedrooms", c.Bedrooms))
	}
	if c.Location != "" {
		parts = append(parts, "in "+c.Location)
	}
	switch {
	case c.MinPrice > 0 && c.MaxPrice > 0:
		parts = append(parts, fmt.Sprintf("NPR %s to %s", formatNPR(c.MinPrice), formatNPR(c.MaxPrice)))
	case c.MaxPrice > 0:
		parts = append(parts, "up to NPR "+formatNPR(c.MaxPrice))
	case c.MinPrice > 0:
		parts = append(parts, "from NPR "+formatNPR(c.MinPrice))
	}
	if len(parts) == 0 {
		return "all listings"
	}
	return strings.Join(parts, ", ")
}

// formatNPR renders an NPR amount with comma grouping.
func formatNPR(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
