package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nohow2117/gotracker/internal/models"
)

// TestCache keeps recently served split tests (with their variant sets) in
// memory so the hot /split path avoids two queries per request. Admin writes
// invalidate the affected slug.
type TestCache struct {
	c *lru.Cache[string, *models.TestWithVariants]
}

func New(size int) (*TestCache, error) {
	c, err := lru.New[string, *models.TestWithVariants](size)
	if err != nil {
		return nil, err
	}
	return &TestCache{c: c}, nil
}

func (tc *TestCache) Get(slug string) (*models.TestWithVariants, bool) {
	return tc.c.Get(slug)
}

func (tc *TestCache) Set(slug string, t *models.TestWithVariants) {
	tc.c.Add(slug, t)
}

func (tc *TestCache) Invalidate(slug string) {
	tc.c.Remove(slug)
}
