package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const updateTimeout = 5 * time.Second

// LocationUpdater applies a GPS fix to an ambulance
type LocationUpdater interface {
	UpdateAmbulanceLocation(ctx context.Context, ambulanceID string, lat, lon float64, requester models.Identity) (*models.Ambulance, error)
}

// Client is the subset of the paho client the ingest uses
type Client interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Ingest owns the broker connection for vehicle location reports
type Ingest struct {
	client Client
	topic  string
}

type locationPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// NewLocationHandler returns the handler for ambulances/<id>/location
// messages. Bad payloads are logged and dropped.
func NewLocationHandler(updater LocationUpdater) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		ambulanceID, err := ambulanceIDFromTopic(msg.Topic())
		if err != nil {
			zap.S().Warnw("ignoring location message", "topic", msg.Topic(), "error", err)
			return
		}

		var p locationPayload
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			zap.S().Warnw("invalid location payload", "ambulanceId", ambulanceID, "error", err)
			return
		}
		if p.Latitude == nil || p.Longitude == nil {
			zap.S().Warnw("location payload missing coordinates", "ambulanceId", ambulanceID)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()
		if _, err := updater.UpdateAmbulanceLocation(ctx, ambulanceID, *p.Latitude, *p.Longitude, models.SystemIdentity); err != nil {
			zap.S().Warnw("failed to apply location update", "ambulanceId", ambulanceID, "error", err)
		}
	}
}

// ambulanceIDFromTopic takes the segment before the trailing "location"
func ambulanceIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[len(parts)-1] != "location" {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}
	id := parts[len(parts)-2]
	if id == "" || id == "+" || id == "#" {
		return "", fmt.Errorf("no ambulance id in topic %q", topic)
	}
	return id, nil
}

// Connect dials the broker from conf. It returns nil, nil when no broker is
// configured.
func Connect(conf *config.Config, updater LocationUpdater) (*Ingest, error) {
	if conf.MQTTBrokerURL == "" {
		return nil, nil
	}

	handler := NewLocationHandler(updater)
	topic := conf.MQTTLocationTopic
	opts := mqtt.NewClientOptions().
		AddBroker(conf.MQTTBrokerURL).
		SetClientID(conf.MQTTClientID).
		SetUsername(conf.MQTTUsername).
		SetPassword(conf.MQTTPassword).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	ing := &Ingest{topic: topic}
	// resubscribe after every reconnect
	opts.OnConnect = func(mqtt.Client) { ing.resubscribe(handler) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		zap.S().Warnw("mqtt connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	ing.client = client
	if err := waitToken(client.Connect()); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", err)
	}
	return ing, nil
}

func (i *Ingest) resubscribe(handler mqtt.MessageHandler) {
	if err := i.Subscribe(handler); err != nil {
		zap.S().Errorw("failed to subscribe to location topic", "topic", i.topic, "error", err)
		return
	}
	zap.S().Infow("subscribed to location topic", "topic", i.topic)
}

// Subscribe registers handler on the ingest topic
func (i *Ingest) Subscribe(handler mqtt.MessageHandler) error {
	return waitToken(i.client.Subscribe(i.topic, 1, handler))
}

// Close disconnects from the broker
func (i *Ingest) Close() {
	if i == nil || i.client == nil {
		return
	}
	if i.client.IsConnected() {
		i.client.Disconnect(250)
	}
}

func waitToken(t mqtt.Token) error {
	if !t.WaitTimeout(10 * time.Second) {
		return errors.New("mqtt operation timed out")
	}
	return t.Error()
}
