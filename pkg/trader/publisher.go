package trader

import (
	"context"
	"strconv"

	kafkawrapper "github.com/x5500/QUIKSharp-sub001/pkg/kafka_wrapper"
	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

// KafkaPublisher forwards lifecycle events to a kafka topic. Events are
// keyed by order number so one order's events stay on one partition.
type KafkaPublisher struct {
	producer *kafkawrapper.Producer
	topic    string
}

func NewKafkaPublisher(producer *kafkawrapper.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishEvent(ctx context.Context, ev *model.LifecycleEvent) error {
	key := ev.OrderNum
	if key == 0 {
		key = ev.TransID
	}
	return p.producer.PublishJSON(ctx, p.topic, strconv.FormatInt(key, 10), ev, map[string]string{
		"kind": string(ev.Kind),
	})
}
