package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/gharkhoji/gharkhoji/internal/config"
	"github.com/gharkhoji/gharkhoji/internal/events"
)

// discoveryPrefix is the Home Assistant MQTT discovery root. HA ships
// with this default and almost nobody changes it.
const discoveryPrefix = "homeassistant"

// StatsSource provides runtime data for sensor state publishing. The
// concrete adapter is wired in main to avoid coupling this package to
// the API server or agent loop.
type StatsSource interface {
	// Uptime returns the process uptime.
	Uptime() time.Duration
	// Version returns the software version string.
	Version() string
	// DefaultModel returns the configured default LLM model name.
	DefaultModel() string
	// ActiveSessions returns the count of active conversation sessions.
	ActiveSessions() int
	// QueriesServed returns the number of queries answered since start.
	QueriesServed() int64
	// LastQueryTime returns when the most recent query completed.
	LastQueryTime() time.Time
}

// Publisher manages the MQTT connection, publishes HA discovery config
// messages on (re-)connect, and runs a periodic loop that pushes
// sensor state updates to the broker.
type Publisher struct {
	cfg        config.MQTTConfig
	instanceID string
	device     DeviceInfo
	tokens     *DailyTokens
	stats      StatsSource
	bus        *events.Bus
	logger     *slog.Logger
	cm         *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// to begin the connection and publish loop.
func New(cfg config.MQTTConfig, instanceID string, tokens *DailyTokens, stats StatsSource, bus *events.Bus, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:        cfg,
		instanceID: instanceID,
		device:     NewDeviceInfo(instanceID, cfg.TopicPrefix),
		tokens:     tokens,
		stats:      stats,
		bus:        bus,
		logger:     logger.With("component", "mqtt"),
	}
}

// Start connects to the MQTT broker and begins the periodic publish
// loop. It blocks until ctx is cancelled. On every (re-)connect it
// publishes discovery configs and a birth message.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := p.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.BrokerURL)
			p.publishDiscovery(ctx, cm)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.TopicPrefix + "-" + p.instanceID,
		},
	}

	// Enable TLS for mqtts:// or ssl:// schemes.
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	if p.bus != nil && p.tokens != nil {
		go p.consumeTokenEvents(ctx)
	}

	// Wait for the initial connection before starting the publish loop.
	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying in the background.
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	p.runLoop(ctx)
	return nil
}

// Stop gracefully disconnects by publishing an "offline" availability
// message before closing the MQTT connection. The provided context
// controls how long to wait for the publish and disconnect to complete.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

// AwaitConnection blocks until the MQTT broker connection is
// established or ctx expires.
func (p *Publisher) AwaitConnection(ctx context.Context) error {
	if p.cm == nil {
		return fmt.Errorf("mqtt publisher not started")
	}
	return p.cm.AwaitConnection(ctx)
}

// consumeTokenEvents accumulates token spend from llm_response events
// so tokens_today reflects every completion, not just agent queries.
func (p *Publisher) consumeTokenEvents(ctx context.Context) {
	ch := p.bus.Subscribe(64)
	defer p.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Kind != events.KindLLMResponse {
				continue
			}
			in, _ := e.Data["input_tokens"].(int)
			out, _ := e.Data["output_tokens"].(int)
			p.tokens.OnTokens(in, out)
		}
	}
}

// --- Topic helpers ---

func (p *Publisher) baseTopic() string {
	return p.cfg.TopicPrefix
}

func (p *Publisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

func (p *Publisher) stateTopic(entity string) string {
	return p.baseTopic() + "/" + entity + "/state"
}

func (p *Publisher) discoveryTopic(component, entity string) string {
	return discoveryPrefix + "/" + component + "/" + p.cfg.TopicPrefix + "/" + entity + "/config"
}

// --- Discovery ---

type sensorDef struct {
	entitySuffix string
	config       SensorConfig
}

// sensorDefinitions returns the discovery payloads. Sensor names are
// short: HasEntityName makes HA prefix them with the device name, and
// ObjectID keeps entity IDs clean (sensor.gharkhoji_uptime, not
// sensor.gharkhoji_gharkhoji_uptime).
func (p *Publisher) sensorDefinitions() []sensorDef {
	avail := p.availabilityTopic()
	sensor := func(suffix, name string) SensorConfig {
		return SensorConfig{
			Name:              name,
			ObjectID:          suffix,
			HasEntityName:     true,
			UniqueID:          p.instanceID + "_" + suffix,
			StateTopic:        p.stateTopic(suffix),
			AvailabilityTopic: avail,
			Device:            p.device,
		}
	}

	uptime := sensor("uptime", "Uptime")
	uptime.Icon = "mdi:clock-outline"
	uptime.EntityCategory = "diagnostic"

	version := sensor("version", "Version")
	version.Icon = "mdi:tag"
	version.EntityCategory = "diagnostic"

	queries := sensor("queries_served", "Queries Served")
	queries.Icon = "mdi:chat-question"
	queries.StateClass = "total_increasing"

	sessions := sensor("active_sessions", "Active Sessions")
	sessions.Icon = "mdi:account-group"
	sessions.StateClass = "measurement"

	tokens := sensor("tokens_today", "Tokens Today")
	tokens.Icon = "mdi:counter"
	tokens.StateClass = "total_increasing"
	tokens.UnitOfMeasurement = "tokens"

	lastQuery := sensor("last_query", "Last Query")
	lastQuery.Icon = "mdi:clock-check"
	lastQuery.EntityCategory = "diagnostic"

	model := sensor("default_model", "Default Model")
	model.Icon = "mdi:brain"
	model.EntityCategory = "diagnostic"

	return []sensorDef{
		{entitySuffix: "uptime", config: uptime},
		{entitySuffix: "version", config: version},
		{entitySuffix: "queries_served", config: queries},
		{entitySuffix: "active_sessions", config: sessions},
		{entitySuffix: "tokens_today", config: tokens},
		{entitySuffix: "last_query", config: lastQuery},
		{entitySuffix: "default_model", config: model},
	}
}

func (p *Publisher) publishDiscovery(ctx context.Context, cm *autopaho.ConnectionManager) {
	for _, s := range p.sensorDefinitions() {
		topic := p.discoveryTopic("sensor", s.entitySuffix)
		payload, err := json.Marshal(s.config)
		if err != nil {
			p.logger.Error("mqtt marshal discovery payload",
				"entity", s.entitySuffix, "error", err)
			continue
		}

		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   topic,
			Payload: payload,
			QoS:     1,
			Retain:  true,
		}); err != nil {
			p.logger.Warn("mqtt discovery publish failed",
				"entity", s.entitySuffix, "topic", topic, "error", err)
		} else {
			p.logger.Debug("mqtt discovery published",
				"entity", s.entitySuffix, "topic", topic)
		}
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed",
			"status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}

// --- Periodic state loop ---

func (p *Publisher) runLoop(ctx context.Context) {
	interval := time.Duration(p.cfg.IntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Publish immediately on start.
	p.publishStates(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishStates(ctx)
		}
	}
}

func (p *Publisher) publishStates(ctx context.Context) {
	if p.cm == nil {
		return
	}

	states := map[string]string{
		"uptime":          p.stats.Uptime().Truncate(time.Second).String(),
		"version":         p.stats.Version(),
		"queries_served":  strconv.FormatInt(p.stats.QueriesServed(), 10),
		"active_sessions": strconv.Itoa(p.stats.ActiveSessions()),
		"default_model":   p.stats.DefaultModel(),
	}

	input, output, _ := p.tokens.Snapshot()
	states["tokens_today"] = strconv.FormatInt(input+output, 10)

	last := p.stats.LastQueryTime()
	if !last.IsZero() {
		states["last_query"] = last.Format(time.RFC3339)
	} else {
		states["last_query"] = "never"
	}

	for entity, value := range states {
		if _, err := p.cm.Publish(ctx, &paho.Publish{
			Topic:   p.stateTopic(entity),
			Payload: []byte(value),
			QoS:     0,
			Retain:  true,
		}); err != nil {
			p.logger.Debug("mqtt state publish failed",
				"entity", entity, "error", err)
		}
	}

	p.logger.Debug("mqtt sensor states published",
		"entities", len(states))
}
