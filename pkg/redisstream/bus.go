package redisstream

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatsurface/pkg/session"
)

// UpdatesTopic is the watermill topic (and Redis stream) carrying session updates.
const UpdatesTopic = "chatsurface.session-updates"

// Bus carries session updates from sessions to the UI. It implements
// session.Notifier.
type Bus struct {
	pub     message.Publisher
	sub     message.Subscriber
	clients []*redis.Client
	topic   string
	shared  bool
}

var _ session.Notifier = &Bus{}

// BuildBus constructs a bus backed by Redis Streams when enabled. If
// settings.Enabled is false, it returns an in-memory bus.
func BuildBus(ctx context.Context, s Settings) (*Bus, error) {
	logger := NewWatermillLogger(log.Logger)
	if !s.Enabled {
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return &Bus{pub: pubSub, sub: pubSub, topic: UpdatesTopic, shared: true}, nil
	}

	admin := redis.NewClient(&redis.Options{Addr: s.Addr})
	err := EnsureGroupAtTail(ctx, admin, UpdatesTopic, s.Group)
	_ = admin.Close()
	if err != nil {
		return nil, err
	}

	// publisher and subscriber get their own clients, as each may close its client
	pubClient := redis.NewClient(&redis.Options{Addr: s.Addr})
	subClient := redis.NewClient(&redis.Options{Addr: s.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     pubClient,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = pubClient.Close()
		_ = subClient.Close()
		return nil, errors.Wrap(err, "redis publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        subClient,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = subClient.Close()
		return nil, errors.Wrap(err, "redis subscriber")
	}

	log.Info().Str("addr", s.Addr).Str("group", s.Group).Str("consumer", s.Consumer).Msg("update bus on redis streams")
	return &Bus{pub: pub, sub: sub, clients: []*redis.Client{pubClient, subClient}, topic: UpdatesTopic}, nil
}

func (b *Bus) Notify(ctx context.Context, u session.Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "marshal update")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("session_id", u.SessionID)
	msg.Metadata.Set("kind", string(u.Kind))
	msg.SetContext(ctx)
	if err := b.pub.Publish(b.topic, msg); err != nil {
		return errors.Wrapf(err, "publish %s update", u.Kind)
	}
	return nil
}

// Subscribe returns updates until ctx is done or the bus is closed. Every
// message is acked once decoded; undecodable messages are acked and skipped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan session.Update, error) {
	msgs, err := b.sub.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to updates")
	}
	out := make(chan session.Update, 64)
	go func() {
		defer close(out)
		for msg := range msgs {
			var u session.Update
			if err := json.Unmarshal(msg.Payload, &u); err != nil {
				log.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("skipping undecodable update")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	var first error
	if err := b.pub.Close(); err != nil {
		first = errors.Wrap(err, "close publisher")
	}
	// the in-memory bus uses one value for both sides
	if !b.shared {
		if err := b.sub.Close(); err != nil && first == nil {
			first = errors.Wrap(err, "close subscriber")
		}
	}
	for _, c := range b.clients {
		if err := c.Close(); err != nil && !errors.Is(err, redis.ErrClosed) && first == nil {
			first = errors.Wrap(err, "close redis client")
		}
	}
	return first
}

// EnsureGroupAtTail creates the consumer group for a given stream at the tail ($) if it doesn't exist.
// This prevents full historical replay on first subscribe.
func EnsureGroupAtTail(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		// BUSYGROUP: the group already exists
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", group, stream)
	}
	log.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}
