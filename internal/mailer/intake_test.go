package mailer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/agent"
	"github.com/gharkhoji/gharkhoji/internal/config"
	"github.com/gharkhoji/gharkhoji/internal/events"
)

// fakeInbox serves canned envelopes, newest-first like the real
// mailbox listing.
type fakeInbox struct {
	envelopes []Envelope
	messages  map[uint32]*Message
}

func (f *fakeInbox) ListMessages(ctx context.Context, opts ListOptions) ([]Envelope, error) {
	if opts.SinceUID > 0 {
		var out []Envelope
		for _, e := range f.envelopes {
			if e.UID > opts.SinceUID {
				out = append(out, e)
			}
		}
		return out, nil
	}
	limit := opts.Limit
	if limit <= 0 || limit > len(f.envelopes) {
		limit = len(f.envelopes)
	}
	return f.envelopes[:limit], nil
}

func (f *fakeInbox) ReadMessage(ctx context.Context, folder string, uid uint32) (*Message, error) {
	m, ok := f.messages[uid]
	if !ok {
		return nil, fmt.Errorf("no message with uid %d", uid)
	}
	return m, nil
}

// fakeAgent records every inquiry and answers with a fixed string.
type fakeAgent struct {
	queries []string
	users   []string
	answer  string
}

func (f *fakeAgent) ProcessQuery(ctx context.Context, query, userID string) *agent.Response {
	f.queries = append(f.queries, query)
	f.users = append(f.users, userID)
	return &agent.Response{
		FinalAnswer: f.answer,
		IsComplete:  true,
		ToolsUsed:   []string{"search_properties"},
	}
}

func intakeConfig() config.EmailConfig {
	return config.EmailConfig{
		Enabled: true,
		From:    "Gharkhoji <agent@gharkhoji.example.com>",
		IMAP:    config.IMAPConfig{Folder: "INBOX"},
		Intake:  config.IntakeConfig{Enabled: true, IntervalSec: 300},
	}
}

func TestBuildInquiry(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    string
	}{
		{"both", "Flat in Sanepa?", "Budget is 25k.", "Flat in Sanepa?\n\nBudget is 25k."},
		{"subject only", "Flat in Sanepa?", "  ", "Flat in Sanepa?"},
		{"body only", "", "Budget is 25k.", "Budget is 25k."},
		{"neither", " ", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildInquiry(tt.subject, tt.body); got != tt.want {
				t.Errorf("buildInquiry(%q, %q) = %q, want %q", tt.subject, tt.body, got, tt.want)
			}
		})
	}
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "Re: your property inquiry"},
		{"Flat wanted", "Re: Flat wanted"},
		{"Re: Flat wanted", "Re: Flat wanted"},
		{"RE: flat", "RE: flat"},
		{"  spaced  ", "Re: spaced"},
	}

	for _, tt := range tests {
		if got := replySubject(tt.in); got != tt.want {
			t.Errorf("replySubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIntakeFirstRunSeeds(t *testing.T) {
	_, _, state := testStores(t)
	ctx := context.Background()

	box := &fakeInbox{envelopes: []Envelope{{UID: 7}, {UID: 5}, {UID: 3}}}
	ag := &fakeAgent{answer: "Found 2 listings."}
	in := NewIntake(intakeConfig(), box, ag, state, nil, nil)

	var sent []sentMail
	in.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{})
		return nil
	}

	n, err := in.checkMailbox(ctx)
	if err != nil {
		t.Fatalf("checkMailbox: %v", err)
	}
	if n != 0 {
		t.Errorf("first run answered %d messages, want 0", n)
	}
	if len(sent) != 0 {
		t.Errorf("first run sent %d replies to pre-existing mail", len(sent))
	}
	if len(ag.queries) != 0 {
		t.Errorf("first run ran %d queries", len(ag.queries))
	}

	stored, _ := state.Get(ctx, intakeNamespace, "inquiries:INBOX")
	if stored != "7" {
		t.Errorf("seeded mark = %q, want 7", stored)
	}

	// Nothing new: the next poll stays quiet.
	n, err = in.checkMailbox(ctx)
	if err != nil {
		t.Fatalf("second checkMailbox: %v", err)
	}
	if n != 0 || len(sent) != 0 {
		t.Errorf("idle poll answered %d, sent %d", n, len(sent))
	}
}

func TestIntakeEmptyMailboxLeavesMarkUnset(t *testing.T) {
	_, _, state := testStores(t)
	ctx := context.Background()

	box := &fakeInbox{}
	in := NewIntake(intakeConfig(), box, &fakeAgent{}, state, nil, nil)

	if _, err := in.checkMailbox(ctx); err != nil {
		t.Fatalf("checkMailbox: %v", err)
	}
	stored, _ := state.Get(ctx, intakeNamespace, "inquiries:INBOX")
	if stored != "" {
		t.Errorf("empty mailbox should leave the mark unset, got %q", stored)
	}
}

func TestIntakeAnswersNewMail(t *testing.T) {
	_, _, state := testStores(t)
	ctx := context.Background()
	if err := state.Set(ctx, intakeNamespace, "inquiries:INBOX", "3"); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	box := &fakeInbox{
		envelopes: []Envelope{
			{UID: 5, From: "Renter Two <two@example.com>", Subject: "House in Budhanilkantha"},
			{UID: 4, From: "Renter One <RENTER.ONE@Example.com>", Subject: "2 bedroom flat in Sanepa?"},
		},
		messages: map[uint32]*Message{
			4: {
				Envelope:   Envelope{UID: 4, From: "Renter One <RENTER.ONE@Example.com>", Subject: "2 bedroom flat in Sanepa?"},
				MessageID:  "msg-4@mail.example.com",
				References: []string{"root-4@mail.example.com"},
				TextBody:   "Looking for a 2BHK under 30k.",
			},
			5: {
				Envelope:  Envelope{UID: 5, From: "Renter Two <two@example.com>", Subject: "House in Budhanilkantha"},
				MessageID: "msg-5@mail.example.com",
				TextBody:  "Anything for sale up there?",
			},
		},
	}
	ag := &fakeAgent{answer: "Found **2 listings** matching your search."}
	in := NewIntake(intakeConfig(), box, ag, state, nil, nil)

	var sent []sentMail
	in.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{from: from, recipients: rcpts, msg: msg})
		return nil
	}

	n, err := in.checkMailbox(ctx)
	if err != nil {
		t.Fatalf("checkMailbox: %v", err)
	}
	if n != 2 {
		t.Fatalf("answered %d messages, want 2", n)
	}
	if len(sent) != 2 {
		t.Fatalf("sent %d replies, want 2", len(sent))
	}

	stored, _ := state.Get(ctx, intakeNamespace, "inquiries:INBOX")
	if stored != "5" {
		t.Errorf("mark = %q, want 5", stored)
	}

	// Oldest first: UID 4 is answered before UID 5.
	if got := sent[0].recipients[0]; got != "Renter One <RENTER.ONE@Example.com>" {
		t.Errorf("first reply went to %q", got)
	}
	if ag.users[0] != "renter.one@example.com" {
		t.Errorf("first user id = %q, want lowercased bare address", ag.users[0])
	}
	if want := "2 bedroom flat in Sanepa?\n\nLooking for a 2BHK under 30k."; ag.queries[0] != want {
		t.Errorf("first query = %q, want %q", ag.queries[0], want)
	}

	reply := string(sent[0].msg)
	if !strings.Contains(reply, "Subject: Re: 2 bedroom flat in Sanepa?") {
		t.Error("reply should carry a Re: subject")
	}
	if !strings.Contains(reply, "In-Reply-To:") || !strings.Contains(reply, "<msg-4@mail.example.com>") {
		t.Error("reply should reference the inquiry in In-Reply-To")
	}
	if !strings.Contains(reply, "References:") || !strings.Contains(reply, "<root-4@mail.example.com>") {
		t.Error("reply should extend the References chain")
	}
}

func TestIntakeSkipsFailedRead(t *testing.T) {
	_, _, state := testStores(t)
	ctx := context.Background()
	if err := state.Set(ctx, intakeNamespace, "inquiries:INBOX", "3"); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	box := &fakeInbox{
		envelopes: []Envelope{
			{UID: 6, From: "a@example.com", Subject: "Query A"},
			{UID: 5, From: "b@example.com", Subject: "Query B"}, // no body fetchable
			{UID: 4, From: "c@example.com", Subject: "Query C"},
		},
		messages: map[uint32]*Message{
			6: {Envelope: Envelope{UID: 6, From: "a@example.com", Subject: "Query A"}, TextBody: "a"},
			4: {Envelope: Envelope{UID: 4, From: "c@example.com", Subject: "Query C"}, TextBody: "c"},
		},
	}
	ag := &fakeAgent{answer: "ok"}
	in := NewIntake(intakeConfig(), box, ag, state, nil, nil)

	var sent []sentMail
	in.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{recipients: rcpts})
		return nil
	}

	n, err := in.checkMailbox(ctx)
	if err != nil {
		t.Fatalf("checkMailbox: %v", err)
	}
	if n != 2 {
		t.Errorf("answered %d messages, want 2", n)
	}

	// The unreadable message is skipped, not retried: the mark already
	// moved past it.
	stored, _ := state.Get(ctx, intakeNamespace, "inquiries:INBOX")
	if stored != "6" {
		t.Errorf("mark = %q, want 6", stored)
	}
	if len(ag.queries) != 2 {
		t.Fatalf("ran %d queries, want 2", len(ag.queries))
	}
	if !strings.HasPrefix(ag.queries[0], "Query C") || !strings.HasPrefix(ag.queries[1], "Query A") {
		t.Errorf("queries out of order: %v", ag.queries)
	}
}

func TestIntakeCorruptMarkReseeds(t *testing.T) {
	_, _, state := testStores(t)
	ctx := context.Background()
	if err := state.Set(ctx, intakeNamespace, "inquiries:INBOX", "bogus"); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	box := &fakeInbox{envelopes: []Envelope{{UID: 9, From: "a@example.com"}}}
	in := NewIntake(intakeConfig(), box, &fakeAgent{}, state, nil, nil)

	var sent []sentMail
	in.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{})
		return nil
	}

	n, err := in.checkMailbox(ctx)
	if err != nil {
		t.Fatalf("checkMailbox: %v", err)
	}
	if n != 0 || len(sent) != 0 {
		t.Errorf("reseed should not answer anything: n=%d sent=%d", n, len(sent))
	}
	stored, _ := state.Get(ctx, intakeNamespace, "inquiries:INBOX")
	if stored != "9" {
		t.Errorf("mark = %q, want 9", stored)
	}
}

func TestIntakeSkipsSelfSentMail(t *testing.T) {
	_, _, state := testStores(t)
	ctx := context.Background()
	if err := state.Set(ctx, intakeNamespace, "inquiries:INBOX", "3"); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	box := &fakeInbox{
		envelopes: []Envelope{
			{UID: 5, From: "Gharkhoji <agent@gharkhoji.example.com>", Subject: "Re: flat"},
			{UID: 4, From: "renter@example.com", Subject: "Flat wanted"},
		},
		messages: map[uint32]*Message{
			4: {Envelope: Envelope{UID: 4, From: "renter@example.com", Subject: "Flat wanted"}, TextBody: "2BHK please"},
		},
	}
	ag := &fakeAgent{answer: "ok"}
	in := NewIntake(intakeConfig(), box, ag, state, nil, nil)

	var sent []sentMail
	in.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{recipients: rcpts})
		return nil
	}

	n, err := in.checkMailbox(ctx)
	if err != nil {
		t.Fatalf("checkMailbox: %v", err)
	}
	if n != 1 {
		t.Errorf("answered %d messages, want 1", n)
	}
	if len(sent) != 1 || sent[0].recipients[0] != "renter@example.com" {
		t.Errorf("replies = %+v, want one to renter@example.com", sent)
	}
	stored, _ := state.Get(ctx, intakeNamespace, "inquiries:INBOX")
	if stored != "5" {
		t.Errorf("mark = %q, want 5 (self mail still advances it)", stored)
	}
}

func TestIntakePrefersReplyTo(t *testing.T) {
	_, _, state := testStores(t)
	ctx := context.Background()
	if err := state.Set(ctx, intakeNamespace, "inquiries:INBOX", "3"); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	box := &fakeInbox{
		envelopes: []Envelope{{UID: 4, From: "noreply@example.com", Subject: "Flat wanted"}},
		messages: map[uint32]*Message{
			4: {
				Envelope: Envelope{UID: 4, From: "noreply@example.com", Subject: "Flat wanted"},
				ReplyTo:  "Replies <replies@example.com>",
				TextBody: "2BHK please",
			},
		},
	}
	ag := &fakeAgent{answer: "ok"}
	in := NewIntake(intakeConfig(), box, ag, state, nil, nil)

	var sent []sentMail
	in.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sent = append(sent, sentMail{recipients: rcpts})
		return nil
	}

	if _, err := in.checkMailbox(ctx); err != nil {
		t.Fatalf("checkMailbox: %v", err)
	}
	if len(sent) != 1 || sent[0].recipients[0] != "Replies <replies@example.com>" {
		t.Errorf("reply should go to the Reply-To address, got %+v", sent)
	}
	if len(ag.users) != 1 || ag.users[0] != "replies@example.com" {
		t.Errorf("user id should come from Reply-To, got %v", ag.users)
	}
}

func TestIntakePollEmitsEvents(t *testing.T) {
	_, _, state := testStores(t)
	ctx := context.Background()
	if err := state.Set(ctx, intakeNamespace, "inquiries:INBOX", "3"); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	box := &fakeInbox{
		envelopes: []Envelope{{UID: 4, From: "renter@example.com", Subject: "Flat wanted"}},
		messages: map[uint32]*Message{
			4: {Envelope: Envelope{UID: 4, From: "renter@example.com", Subject: "Flat wanted"}, TextBody: "hi"},
		},
	}
	bus := events.New()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	in := NewIntake(intakeConfig(), box, &fakeAgent{answer: "ok"}, state, bus, nil)
	in.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		return nil
	}

	in.poll(ctx)

	first := <-sub
	if first.Source != events.SourceIntake || first.Kind != events.KindPollStart {
		t.Errorf("first event = %s/%s, want intake/poll_start", first.Source, first.Kind)
	}
	second := <-sub
	if second.Kind != events.KindPollComplete {
		t.Errorf("second event kind = %q, want poll_complete", second.Kind)
	}
	if second.Data["new_messages"] != 1 {
		t.Errorf("poll_complete new_messages = %v, want 1", second.Data["new_messages"])
	}
}

func TestIntakeStartStop(t *testing.T) {
	_, _, state := testStores(t)
	ctx := context.Background()
	if err := state.Set(ctx, intakeNamespace, "inquiries:INBOX", "3"); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	box := &fakeInbox{
		envelopes: []Envelope{{UID: 4, From: "renter@example.com", Subject: "Flat wanted"}},
		messages: map[uint32]*Message{
			4: {Envelope: Envelope{UID: 4, From: "renter@example.com", Subject: "Flat wanted"}, TextBody: "hi"},
		},
	}
	ag := &fakeAgent{answer: "ok"}
	in := NewIntake(intakeConfig(), box, ag, state, nil, nil)

	sendCh := make(chan sentMail, 4)
	in.send = func(ctx context.Context, cfg config.SMTPConfig, from string, rcpts []string, msg []byte) error {
		sendCh <- sentMail{recipients: rcpts}
		return nil
	}

	in.Start(ctx)
	select {
	case m := <-sendCh:
		if m.recipients[0] != "renter@example.com" {
			t.Errorf("reply went to %q", m.recipients[0])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initial poll never replied")
	}
	in.Stop()

	if len(ag.queries) != 1 {
		t.Errorf("ran %d queries, want 1", len(ag.queries))
	}
}
