package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oakhurst-automation/stategate/internal/infrastructure/mqtt"
)

// bridgeTimeout bounds store writes triggered by incoming MQTT messages.
const bridgeTimeout = 5 * time.Second

// ackPayload is the wire format protocol bridges publish on ack topics.
type ackPayload struct {
	Val    any    `json:"val"`
	Source string `json:"source,omitempty"`
}

// commandPayload is the wire format published on state topics when the
// engine issues a write. Bridges pick it up and drive the device.
type commandPayload struct {
	Val    any    `json:"val"`
	Ack    bool   `json:"ack"`
	TS     int64  `json:"ts"`
	Source string `json:"source,omitempty"`
}

// Bridge connects a store to the MQTT bus.
//
// Outbound: unacknowledged writes are published on per-datapoint state
// topics for protocol bridges to execute. Inbound: device confirmations
// arriving on ack topics are applied back into the store, which in turn
// fans them out to subscribed consumers.
type Bridge struct {
	store  *SQLiteStore
	client *mqtt.Client
	topics mqtt.Topics
	logger Logger
}

// NewBridge creates a bridge between the store and the MQTT client.
func NewBridge(store *SQLiteStore, client *mqtt.Client) *Bridge {
	return &Bridge{
		store:  store,
		client: client,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to the ack wildcard topic.
func (b *Bridge) Start() error {
	if err := b.client.Subscribe(b.topics.AllAcks(), 1, b.handleAck); err != nil {
		return fmt.Errorf("subscribing to acks: %w", err)
	}
	return nil
}

// Stop withdraws the ack subscription.
func (b *Bridge) Stop() {
	if err := b.client.Unsubscribe(b.topics.AllAcks()); err != nil {
		b.logger.Warn("unsubscribing from acks", "error", err)
	}
}

// PublishWrite announces an unacknowledged write on the datapoint's state
// topic. Acknowledged writes stay local; they already reflect device state.
func (b *Bridge) PublishWrite(id string, state State) {
	if state.Ack {
		return
	}

	payload, err := json.Marshal(commandPayload{
		Val:    state.Val,
		Ack:    false,
		TS:     state.TS,
		Source: state.From,
	})
	if err != nil {
		b.logger.Warn("encoding command payload", "id", id, "error", err)
		return
	}

	if err := b.client.Publish(b.topics.State(id), payload, 1, false); err != nil {
		b.logger.Warn("publishing command", "id", id, "error", err)
	}
}

// handleAck applies a device confirmation into the store.
func (b *Bridge) handleAck(topic string, payload []byte) error {
	id := mqtt.IDFromTopic(topic)
	if id == "" {
		return fmt.Errorf("ack on unrecognized topic %q", topic)
	}

	var ack ackPayload
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack payload for %q: %w", id, err)
	}

	source := ack.Source
	if source == "" {
		source = "system.adapter.mqtt"
	}

	ctx, cancel := context.WithTimeout(context.Background(), bridgeTimeout)
	defer cancel()

	if _, err := b.store.Acknowledge(ctx, id, ack.Val, source); err != nil {
		return fmt.Errorf("applying ack for %q: %w", id, err)
	}
	b.logger.Debug("ack applied", "id", id)
	return nil
}
