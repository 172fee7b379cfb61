package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Publisher 与 Fetcher 由 pkg.KafkaProducer / pkg.KafkaConsumer 实现
type Publisher interface {
	Send(ctx context.Context, key string, value []byte) error
}

type Fetcher interface {
	Fetch(ctx context.Context) (key, value []byte, err error)
}

// envelope 跨实例传递的房间帧
type envelope struct {
	Instance string `json:"instance"`
	Room     string `json:"room"`
	Exclude  string `json:"exclude,omitempty"`
	Frame    Frame  `json:"frame"`
}

// KafkaBridge 本地立即投递，同时发布到 kafka，其他实例消费后投递给各自的房间
type KafkaBridge struct {
	instance string
	local    *Hub
	pub      Publisher
	sub      Fetcher
	log      logrus.FieldLogger
}

// NewKafkaBridge instance 同时作为消费组 id 后缀，为空时随机生成
func NewKafkaBridge(instance string, local *Hub, pub Publisher, sub Fetcher, log logrus.FieldLogger) *KafkaBridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if instance == "" {
		instance = uuid.NewString()
	}
	return &KafkaBridge{
		instance: instance,
		local:    local,
		pub:      pub,
		sub:      sub,
		log:      log,
	}
}

func (b *KafkaBridge) Instance() string { return b.instance }

func (b *KafkaBridge) Broadcast(ctx context.Context, room string, frame Frame, exclude string) error {
	if err := b.local.Broadcast(ctx, room, frame, exclude); err != nil {
		return err
	}
	value, err := json.Marshal(envelope{Instance: b.instance, Room: room, Exclude: exclude, Frame: frame})
	if err != nil {
		return err
	}
	return b.pub.Send(ctx, room, value)
}

// Run 消费直到 ctx 取消
func (b *KafkaBridge) Run(ctx context.Context) error {
	for {
		_, value, err := b.sub.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			b.log.WithError(err).Warn("gateway: kafka fetch failed")
			return err
		}
		if err := b.deliver(ctx, value); err != nil {
			b.log.WithError(err).Warn("gateway: drop malformed kafka frame")
		}
	}
}

func (b *KafkaBridge) deliver(ctx context.Context, value []byte) error {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return err
	}
	if env.Instance == b.instance {
		return nil
	}
	if env.Room == "" {
		return errors.New("missing room")
	}
	return b.local.Broadcast(ctx, env.Room, env.Frame, env.Exclude)
}
