package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/agent"
	"github.com/gharkhoji/gharkhoji/internal/config"
	"github.com/gharkhoji/gharkhoji/internal/events"
	"github.com/gharkhoji/gharkhoji/internal/opstate"
)

const (
	// intakeNamespace is the opstate namespace for the mailbox
	// high-water mark.
	intakeNamespace = "intake"

	defaultIntakeInterval = 300 * time.Second
)

// inbox is the mailbox surface the poller reads from.
type inbox interface {
	ListMessages(ctx context.Context, opts ListOptions) ([]Envelope, error)
	ReadMessage(ctx context.Context, folder string, uid uint32) (*Message, error)
}

// answerer runs one inquiry through the agent.
type answerer interface {
	ProcessQuery(ctx context.Context, query, userID string) *agent.Response
}

// Intake polls an IMAP folder for new inquiries, runs each through the
// agent, and replies in-thread. A UID high-water mark in opstate keeps
// every message answered at most once, across restarts.
type Intake struct {
	cfg    config.EmailConfig
	box    inbox
	agent  answerer
	state  *opstate.Store
	bus    *events.Bus
	logger *slog.Logger
	send   sendFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// NewIntake creates the mailbox poller. Call Start to begin polling.
func NewIntake(cfg config.EmailConfig, box inbox, ag answerer, state *opstate.Store, bus *events.Bus, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		cfg:    cfg,
		box:    box,
		agent:  ag,
		state:  state,
		bus:    bus,
		logger: logger.With("component", "intake"),
		send:   SendMail,
		done:   make(chan struct{}),
	}
}

// Start begins the background poller. It polls immediately, then on
// the configured interval.
func (i *Intake) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	go i.run(workerCtx)
}

// Stop cancels the poller and waits for its goroutine to exit.
func (i *Intake) Stop() {
	if i.cancel != nil {
		i.cancel()
	}
	<-i.done
}

func (i *Intake) run(ctx context.Context) {
	defer close(i.done)

	interval := defaultIntakeInterval
	if i.cfg.Intake.IntervalSec > 0 {
		interval = time.Duration(i.cfg.Intake.IntervalSec) * time.Second
	}
	i.logger.Info("intake poller starting", "folder", i.folder(), "interval", interval)
	i.poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			i.logger.Info("intake poller stopped")
			return
		case <-ticker.C:
			i.poll(ctx)
		}
	}
}

func (i *Intake) folder() string {
	if i.cfg.IMAP.Folder != "" {
		return i.cfg.IMAP.Folder
	}
	return "INBOX"
}

func (i *Intake) stateKey() string {
	return "inquiries:" + i.folder()
}

func (i *Intake) poll(ctx context.Context) {
	i.bus.Emit(events.SourceIntake, events.KindPollStart, nil)
	answered, err := i.checkMailbox(ctx)
	if err != nil {
		i.logger.Warn("mailbox poll failed", "error", err)
	}
	i.bus.Emit(events.SourceIntake, events.KindPollComplete, map[string]any{
		"new_messages": answered,
	})
}

// checkMailbox lists messages above the high-water mark and answers
// them oldest-first. The mark advances before any reply goes out, so a
// crash mid-batch drops the remainder rather than double-replying.
func (i *Intake) checkMailbox(ctx context.Context) (int, error) {
	folder := i.folder()

	stored, err := i.state.Get(ctx, intakeNamespace, i.stateKey())
	if err != nil {
		return 0, fmt.Errorf("get high-water mark: %w", err)
	}
	if stored == "" {
		return 0, i.seed(ctx, folder)
	}
	mark, err := strconv.ParseUint(stored, 10, 32)
	if err != nil {
		i.logger.Warn("corrupt high-water mark, reseeding", "stored", stored)
		return 0, i.seed(ctx, folder)
	}

	envelopes, err := i.box.ListMessages(ctx, ListOptions{Folder: folder, SinceUID: uint32(mark)})
	if err != nil {
		return 0, fmt.Errorf("list new messages: %w", err)
	}
	if len(envelopes) == 0 {
		return 0, nil
	}

	// Listing is newest-first, so the first envelope carries the
	// highest UID.
	highest := envelopes[0].UID
	if err := i.state.Set(ctx, intakeNamespace, i.stateKey(), strconv.FormatUint(uint64(highest), 10)); err != nil {
		return 0, fmt.Errorf("advance high-water mark: %w", err)
	}

	answered := 0
	for idx := len(envelopes) - 1; idx >= 0; idx-- {
		if ctx.Err() != nil {
			return answered, ctx.Err()
		}
		env := envelopes[idx]
		if i.isSelf(env.From) {
			// Our own replies showing up in the folder must not loop.
			i.logger.Debug("skipping self-sent message", "uid", env.UID)
			continue
		}
		if err := i.answer(ctx, folder, env); err != nil {
			i.logger.Warn("inquiry failed", "uid", env.UID, "from", env.From, "error", err)
			continue
		}
		answered++
	}
	return answered, nil
}

// seed records the newest existing UID without answering anything, so
// a first run against a full mailbox does not reply to old mail.
func (i *Intake) seed(ctx context.Context, folder string) error {
	envelopes, err := i.box.ListMessages(ctx, ListOptions{Folder: folder, Limit: 1})
	if err != nil {
		return fmt.Errorf("seed list: %w", err)
	}
	if len(envelopes) == 0 {
		// Empty mailbox: leave the mark unset and seed on a later poll.
		return nil
	}
	seedUID := envelopes[0].UID
	i.logger.Info("first run, seeding high-water mark", "folder", folder, "uid", seedUID)
	return i.state.Set(ctx, intakeNamespace, i.stateKey(), strconv.FormatUint(uint64(seedUID), 10))
}

// answer reads one message, runs it through the agent, and mails the
// answer back in the same thread.
func (i *Intake) answer(ctx context.Context, folder string, env Envelope) error {
	full, err := i.box.ReadMessage(ctx, folder, env.UID)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	replyAddr := full.ReplyTo
	if replyAddr == "" {
		replyAddr = full.From
	}
	if replyAddr == "" {
		return fmt.Errorf("message has no sender")
	}

	userID := strings.ToLower(extractAddress(replyAddr))
	query := buildInquiry(full.Subject, full.TextBody)
	if query == "" {
		return fmt.Errorf("message has no usable text")
	}

	i.logger.Info("inquiry received", "from", userID, "uid", env.UID, "subject", full.Subject)
	resp := i.agent.ProcessQuery(ctx, query, userID)

	refs := append([]string{}, full.References...)
	if full.MessageID != "" {
		refs = append(refs, full.MessageID)
	}
	msg, err := ComposeMessage(ComposeOptions{
		From:       i.cfg.From,
		To:         []string{replyAddr},
		Subject:    replySubject(full.Subject),
		Body:       resp.FinalAnswer,
		InReplyTo:  full.MessageID,
		References: refs,
	})
	if err != nil {
		return fmt.Errorf("compose reply: %w", err)
	}

	if err := i.send(ctx, i.cfg.SMTP, i.cfg.From, []string{replyAddr}, msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	i.logger.Info("inquiry answered", "to", userID, "uid", env.UID, "tools", resp.ToolsUsed)
	return nil
}

// isSelf reports whether an address matches the configured From.
func (i *Intake) isSelf(from string) bool {
	self := extractAddress(i.cfg.From)
	if self == "" {
		return false
	}
	return strings.EqualFold(extractAddress(from), self)
}

// buildInquiry joins subject and body into the query the agent sees.
func buildInquiry(subject, body string) string {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	switch {
	case subject == "":
		return body
	case body == "":
		return subject
	default:
		return subject + "\n\n" + body
	}
}

// replySubject prefixes "Re: " unless the thread already carries one.
func replySubject(subject string) string {
	s := strings.TrimSpace(subject)
	if s == "" {
		return "Re: your property inquiry"
	}
	if strings.HasPrefix(strings.ToLower(s), "re:") {
		return s
	}
	return "Re: " + s
}
