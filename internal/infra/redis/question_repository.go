package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"medexam-service/internal/app"
	"medexam-service/internal/domain"
)

// QuestionRepository caches the question bank in Redis and falls back to a
// backing repository on cache miss. Layout:
//
//	SET question:{id}              -> question JSON
//	SET questions:active:{topic}   -> JSON array of active question ids
//
// Both keys carry a jittered TTL so a stale catalog heals itself; the engine's
// own session-scoped cache means a live session never re-reads evicted keys.
type QuestionRepository struct {
	client *redis.Client
	source app.QuestionRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, source app.QuestionRepository, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) ListActive(ctx context.Context, topic string) ([]domain.Question, error) {
	listKey := r.activeKey(topic)

	if raw, err := r.client.Get(ctx, listKey).Bytes(); err == nil {
		var ids []int64
		if err := json.Unmarshal(raw, &ids); err == nil {
			return r.GetByIDs(ctx, ids)
		}
	}

	result, err, _ := r.sf.Do(listKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if raw, err := r.client.Get(ctx, listKey).Bytes(); err == nil {
			var ids []int64
			if err := json.Unmarshal(raw, &ids); err == nil {
				return r.GetByIDs(ctx, ids)
			}
		}

		questions, err := r.source.ListActive(ctx, topic)
		if err != nil {
			return nil, err
		}

		ids := make([]int64, len(questions))
		pipe := r.client.Pipeline()
		ttl := r.ttlWithJitter()
		for i, q := range questions {
			ids[i] = q.ID
			if data, err := json.Marshal(q); err == nil {
				pipe.Set(ctx, r.questionKey(q.ID), data, ttl)
			}
		}
		if data, err := json.Marshal(ids); err == nil {
			pipe.Set(ctx, listKey, data, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.questionKey(id)
	}

	byID := make(map[int64]domain.Question, len(ids))
	var missing []int64
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		missing = ids
	} else {
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var q domain.Question
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			byID[q.ID] = q
		}
	}

	if len(missing) > 0 {
		loaded, err := r.source.GetByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		pipe := r.client.Pipeline()
		ttl := r.ttlWithJitter()
		for _, q := range loaded {
			byID[q.ID] = q
			if data, err := json.Marshal(q); err == nil {
				pipe.Set(ctx, r.questionKey(q.ID), data, ttl)
			}
		}
		_, _ = pipe.Exec(ctx)
	}

	// Preserve request order, dropping ids unknown to the backing store.
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

func (r *QuestionRepository) questionKey(id int64) string {
	return "question:" + strconv.FormatInt(id, 10)
}

func (r *QuestionRepository) activeKey(topic string) string {
	if topic == "" {
		return "questions:active:all"
	}
	return "questions:active:" + topic
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
