// Package bridge forwards committed device state to an MQTT broker so
// external integrations can follow the panel.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/device"
)

// ErrNotConnected is returned when publishing while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt bridge not connected")

const connectTimeout = 10 * time.Second

// Publisher is the subset of the MQTT client the bridge needs.
type Publisher interface {
	Publish(topic string, retain bool, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// Options configures the broker connection.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
}

// StatePayload is the retained message published for each device.
type StatePayload struct {
	ID        string        `json:"id"`
	RoomID    string        `json:"room_id"`
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Status    device.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Bridge is a device.Sink that publishes device state as retained messages
// on <prefix>/devices/<id>/state.
type Bridge struct {
	pub    Publisher
	prefix string
}

var _ device.Sink = (*Bridge)(nil)

// New creates a Bridge over an existing publisher.
func New(pub Publisher, prefix string) *Bridge {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "homepanel"
	}
	return &Bridge{pub: pub, prefix: prefix}
}

// Connect dials the broker and returns a Bridge over the connection.
func Connect(ctx context.Context, opts Options) (*Bridge, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetAutoReconnect(true)
	co.SetConnectTimeout(connectTimeout)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", opts.Broker).Msg("MQTT bridge connected")
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", opts.Broker).Msg("MQTT connection lost")
	}

	cli := mqtt.NewClient(co)
	tok := cli.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", opts.Broker, err)
	}
	return New(&pahoPublisher{cli: cli}, opts.TopicPrefix), nil
}

// Topic returns the state topic for a device id.
func (b *Bridge) Topic(deviceID string) string {
	return b.prefix + "/devices/" + deviceID + "/state"
}

// PublishStatus publishes the device's full merged status.
func (b *Bridge) PublishStatus(_ context.Context, d device.Device) error {
	if !b.pub.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(StatePayload{
		ID:        d.ID,
		RoomID:    d.RoomID,
		Name:      d.Name,
		Type:      d.Type,
		Status:    d.Status,
		UpdatedAt: d.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding state for %s: %w", d.ID, err)
	}
	if err := b.pub.Publish(b.Topic(d.ID), true, payload); err != nil {
		return fmt.Errorf("publishing state for %s: %w", d.ID, err)
	}
	log.Debug().Str("device_id", d.ID).Str("topic", b.Topic(d.ID)).Msg("Published device state")
	return nil
}

// IsConnected reports whether the broker is reachable.
func (b *Bridge) IsConnected() bool {
	return b.pub.IsConnected()
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.pub.Disconnect()
}

type pahoPublisher struct {
	cli mqtt.Client
}

func (p *pahoPublisher) Publish(topic string, retain bool, payload []byte) error {
	t := p.cli.Publish(topic, 1, retain, payload)
	if !t.WaitTimeout(connectTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return t.Error()
}

func (p *pahoPublisher) IsConnected() bool {
	return p.cli.IsConnectionOpen()
}

func (p *pahoPublisher) Disconnect() {
	p.cli.Disconnect(250)
}
