package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/model"
)

// PaperCache holds the student-facing paper of published exams.
type PaperCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPaperCache creates a PaperCache. A zero ttl keeps papers until unpublished.
func NewPaperCache(rdb *redis.Client, ttl time.Duration) *PaperCache {
	return &PaperCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached paper, or nil on a miss.
func (c *PaperCache) Get(ctx context.Context, examID string) (*model.ExamPaper, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.ExamPaperKey(examID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paper model.ExamPaper
	if err := json.Unmarshal(raw, &paper); err != nil {
		return nil, fmt.Errorf("decode cached paper: %w", err)
	}
	return &paper, nil
}

// Set stores a paper.
func (c *PaperCache) Set(ctx context.Context, paper *model.ExamPaper) error {
	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("encode paper: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamPaperKey(paper.ExamID.String()), data, c.ttl).Err()
}

// Delete drops a cached paper.
func (c *PaperCache) Delete(ctx context.Context, examID string) error {
	return c.rdb.Del(ctx, config.CacheKey.ExamPaperKey(examID)).Err()
}
