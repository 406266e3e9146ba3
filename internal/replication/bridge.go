// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

//go:build nats

package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	natsserver "github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/noteplane/noteplane/internal/config"
	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/metrics"
	"github.com/noteplane/noteplane/internal/store"
)

const (
	streamName       = "NOTEPLANE_CANVAS"
	poisonQueueTopic = "dlq.canvas"
)

// Bridge connects a provider's write stream to NATS JetStream. Local
// writes go out through Provider(); peer writes come back through the
// Watermill router and are applied to the inner provider directly, so
// they are never republished.
type Bridge struct {
	cfg      config.NATSConfig
	provider store.Provider

	embedded   *natsserver.Server
	natsConn   *natsgo.Conn
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	breaker    *gobreaker.CircuitBreaker[any]

	mu     sync.Mutex
	closed bool
}

// New builds the bridge per cfg: embedded server when requested, stream
// provisioning, publisher with circuit breaker, and the apply router.
// The caller still has to run Serve (normally under supervision).
func New(cfg config.NATSConfig, provider store.Provider) (*Bridge, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	logger := newWatermillLogger()
	b := &Bridge{cfg: cfg, provider: provider}

	natsURL := cfg.URL
	if cfg.EmbeddedServer {
		srv, err := startEmbeddedServer(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		b.embedded = srv
		natsURL = srv.ClientURL()
		logging.Info().Str("url", natsURL).Msg("embedded NATS server started")
	}

	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	b.natsConn = nc

	if err := b.ensureStream(context.Background()); err != nil {
		b.Close()
		return nil, err
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL: natsURL,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2 * time.Second),
		},
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("create replication publisher: %w", err)
	}
	b.publisher = pub

	b.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "replication-publish",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL: natsURL,
		// One consumer goroutine keeps peer writes in stream order.
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2 * time.Second),
		},
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(streamName),
				natsgo.MaxDeliver(5),
				natsgo.AckWait(30 * time.Second),
				natsgo.DeliverNew(),
			},
			// Per-instance durable: every instance sees every event.
			DurablePrefix: "np-" + cfg.InstanceID,
		},
	}, logger)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("create replication subscriber: %w", err)
	}
	b.subscriber = sub

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, logger)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("create replication router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)
	poison, err := middleware.PoisonQueue(pub, poisonQueueTopic)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("create poison queue: %w", err)
	}
	router.AddMiddleware(poison)

	router.AddConsumerHandler("canvas-apply", TopicPrefix+">", sub, b.applyPeerEvent)
	b.router = router

	logging.Info().
		Str("instance_id", cfg.InstanceID).
		Str("url", natsURL).
		Msg("replication bridge ready")
	return b, nil
}

// ensureStream provisions the canvas stream idempotently.
func (b *Bridge) ensureStream(ctx context.Context) error {
	js, err := jetstream.New(b.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:        streamName,
		Subjects:    []string{TopicPrefix + ">", poisonQueueTopic},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      b.cfg.StreamRetention,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	if _, err := js.Stream(ctx, streamName); err == nil {
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", streamName, err)
		}
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("check stream %s: %w", streamName, err)
	}

	if _, err := js.CreateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("create stream %s: %w", streamName, err)
	}
	return nil
}

// Provider returns the provider the server should hand to its API layer:
// every write accepted by a session store is also published.
func (b *Bridge) Provider() store.Provider {
	return &replicatedProvider{inner: b.provider, bridge: b}
}

// Serve implements suture.Service by running the apply router.
func (b *Bridge) Serve(ctx context.Context) error {
	if err := b.router.Run(ctx); err != nil {
		return fmt.Errorf("replication router: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (b *Bridge) String() string {
	return "replication-bridge"
}

// Close tears down every component that was successfully built.
func (b *Bridge) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.router != nil {
		_ = b.router.Close()
	}
	if b.subscriber != nil {
		_ = b.subscriber.Close()
	}
	if b.publisher != nil {
		_ = b.publisher.Close()
	}
	if b.natsConn != nil {
		b.natsConn.Close()
	}
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
	return nil
}

// publish sends one applied write to peers. Failures are logged, never
// surfaced: the local write already succeeded and local state is
// authoritative for this instance.
func (b *Bridge) publish(sessionID, path string, value any) {
	raw, err := store.Marshal(value)
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("replication: encode failed")
		return
	}
	data, err := Event{
		SessionID: sessionID,
		Path:      path,
		Value:     raw,
		Origin:    b.cfg.InstanceID,
		At:        time.Now().UTC(),
	}.Encode()
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("replication: encode failed")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("origin", b.cfg.InstanceID)

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, b.publisher.Publish(TopicPrefix+sessionID, msg)
	})
	if err != nil {
		logging.Warn().Err(err).
			Str("session_id", sessionID).
			Str("path", path).
			Msg("replication: publish failed")
		return
	}
	metrics.ReplicationPublishedTotal.Inc()
}

// applyPeerEvent applies one replicated write to the local store. Errors
// trigger the router's retry chain and eventually the poison queue.
func (b *Bridge) applyPeerEvent(msg *message.Message) error {
	ev, err := DecodeEvent(msg.Payload)
	if err != nil {
		return fmt.Errorf("decode replicated event: %w", err)
	}

	if ev.Origin == b.cfg.InstanceID {
		metrics.ReplicationLoopSuppressedTotal.Inc()
		return nil
	}

	st, err := b.provider.Session(ev.SessionID, true)
	if err != nil {
		return fmt.Errorf("open session %s: %w", ev.SessionID, err)
	}

	var value any
	if len(ev.Value) > 0 {
		value = ev.Value
	}
	if err := st.Write(msg.Context(), ev.Path, value); err != nil {
		return fmt.Errorf("apply replicated write %s: %w", ev.Path, err)
	}
	metrics.ReplicationAppliedTotal.Inc()
	return nil
}

// replicatedProvider wraps session stores so accepted writes replicate.
type replicatedProvider struct {
	inner  store.Provider
	bridge *Bridge
}

func (p *replicatedProvider) Session(sessionID string, create bool) (store.Store, error) {
	st, err := p.inner.Session(sessionID, create)
	if err != nil {
		return nil, err
	}
	return &replicatedStore{Store: st, sessionID: sessionID, bridge: p.bridge}, nil
}

func (p *replicatedProvider) SessionIDs() ([]string, error) { return p.inner.SessionIDs() }

func (p *replicatedProvider) Close() error { return p.inner.Close() }

// replicatedStore publishes after the local store accepted the write.
// Reads and subscriptions stay purely local.
type replicatedStore struct {
	store.Store
	sessionID string
	bridge    *Bridge
}

func (s *replicatedStore) Write(ctx context.Context, path string, value any) error {
	if err := s.Store.Write(ctx, path, value); err != nil {
		return err
	}
	s.bridge.publish(s.sessionID, path, value)
	return nil
}
