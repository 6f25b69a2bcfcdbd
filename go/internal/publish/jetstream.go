package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL           string
	StreamName    string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration // how long to keep updates replayable
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "MATCH_UPDATES",
		Subject:       DefaultTopic,
		MaxReconnects: -1, // infinite
		ReconnectWait: 2 * time.Second,
		MaxAge:        24 * time.Hour,
	}
}

// JetStreamPublisher fans updates out over a NATS JetStream stream, for
// consumers that need replayable delivery instead of plain pub/sub.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}

	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:      p.config.StreamName,
		Subjects:  []string{p.config.Subject},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    p.config.MaxAge,
		Storage:   jetstream.FileStorage,
	}

	if _, err := p.js.Stream(ctx, p.config.StreamName); err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", p.config.StreamName).Msg("created JetStream stream")
	}
	return nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, update Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.config.Subject, payload); err != nil {
		return fmt.Errorf("failed to publish update to JetStream: %w", err)
	}
	return nil
}

func (p *JetStreamPublisher) Check(ctx context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("NATS connection is down")
	}
	return nil
}

func (p *JetStreamPublisher) Close() error {
	p.nc.Close()
	return nil
}
