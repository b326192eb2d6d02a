package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"strconv"

	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	BroadcastChannel  = "notifications:broadcast"
)

// UserChannel derives the Redis channel name for an account.
func UserChannel(accountID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(accountID), 10)
}

// broadcastEnvelope carries a broadcast message with the accounts that must
// not receive it.
type broadcastEnvelope struct {
	Message json.RawMessage `json:"message"`
	Exclude []uint          `json:"exclude,omitempty"`
}

func decodeBroadcast(payload string) (*broadcastEnvelope, error) {
	var env broadcastEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Notifier publishes events into Redis channels. A Notifier without a client
// publishes nothing.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether the notifier has a Redis client.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishUser sends a message to one account's channel.
func (n *Notifier) PublishUser(ctx context.Context, accountID uint, message []byte) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(accountID), message).Err()
}

// PublishBroadcast sends a message to every connected account not listed in
// exclude. message must be valid JSON.
func (n *Notifier) PublishBroadcast(ctx context.Context, message []byte, exclude []uint) error {
	if !n.Enabled() {
		return nil
	}
	payload, err := json.Marshal(broadcastEnvelope{Message: message, Exclude: exclude})
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// StartSubscriber subscribes to the account and broadcast channels and calls
// onMessage for each message until ctx is done. It returns once the
// subscription is confirmed.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", BroadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()
	return nil
}
