package candlestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/x5500/QUIKSharp-sub001/pkg/quik"
	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

const defaultDepth = 1000

// CandleStore keeps a bounded per-instrument history of candle events in
// redis. Newest candle first; history is capped at Depth entries.
type CandleStore struct {
	client *redis.Client
	depth  int64
}

func New(client *redis.Client, depth int64) *CandleStore {
	if depth <= 0 {
		depth = defaultDepth
	}
	return &CandleStore{client: client, depth: depth}
}

// Bind subscribes the store to the transport's candle feed. Store failures
// are logged and dropped; the feed must not stall on redis.
func (s *CandleStore) Bind(events *quik.Pubsub) {
	events.Subscribe(quik.EventNewCandle, func(msg *quik.Message) {
		c := &model.Candle{}
		if err := msg.DecodeData(c); err != nil {
			zap.S().Warnw("dropping undecodable candle", "err", err)
			return
		}
		if err := s.Add(context.Background(), c); err != nil {
			zap.S().Warnw("candle store write failed",
				"sec_code", c.SecCode, "interval", c.Interval, "err", err)
		}
	})
}

func (s *CandleStore) Add(ctx context.Context, c *model.Candle) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	key := s.key(c.ClassCode, c.SecCode, c.Interval)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, b)
	pipe.LTrim(ctx, key, 0, s.depth-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Last returns the most recent candle for the instrument, nil when the
// history is empty.
func (s *CandleStore) Last(ctx context.Context, classCode, secCode string, interval int) (*model.Candle, error) {
	res, err := s.Recent(ctx, classCode, secCode, interval, 1)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return res[0], nil
}

// Recent returns up to n candles, newest first.
func (s *CandleStore) Recent(ctx context.Context, classCode, secCode string, interval int, n int64) ([]*model.Candle, error) {
	key := s.key(classCode, secCode, interval)
	raw, err := s.client.LRange(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Candle, 0, len(raw))
	for _, item := range raw {
		c := &model.Candle{}
		if err := json.Unmarshal([]byte(item), c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *CandleStore) key(classCode, secCode string, interval int) string {
	return fmt.Sprintf("candles:%s:%s:%d", classCode, secCode, interval)
}
