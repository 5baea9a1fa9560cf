package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// MQTTNotifier publishes events as JSON to "<prefix>/reservations/<kind>"
// and "<prefix>/calls/<kind>".
type MQTTNotifier struct {
	cfg    MQTTConfig
	client paho.Client
	logger zerolog.Logger
}

func NewMQTTNotifier(cfg MQTTConfig, logger zerolog.Logger) *MQTTNotifier {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "restaurant"
	}
	return &MQTTNotifier{cfg: cfg, logger: logger}
}

func (n *MQTTNotifier) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(n.cfg.BrokerURL).
		SetClientID(n.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	if n.cfg.Username != "" {
		opts.SetUsername(n.cfg.Username)
		opts.SetPassword(n.cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		n.logger.Error().Err(err).Msg("mqtt connection lost")
	})

	n.client = paho.NewClient(opts)
	if token := n.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		n.client.Disconnect(250)
	}()
	return nil
}

func (n *MQTTNotifier) Publish(ctx context.Context, ev Event) error {
	if n.client == nil {
		return fmt.Errorf("mqtt notifier not started")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := n.client.Publish(Topic(n.cfg.TopicPrefix, ev.Type), 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Topic maps "reservation.created" to "<prefix>/reservations/created".
func Topic(prefix string, t EventType) string {
	entity, kind, _ := strings.Cut(string(t), ".")
	return strings.TrimSuffix(prefix, "/") + "/" + entity + "s/" + kind
}
