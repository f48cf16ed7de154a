package cache

import (
	"testing"

	"github.com/nohow2117/gotracker/internal/models"
)

func testEntry(id int64, slug string) *models.TestWithVariants {
	return &models.TestWithVariants{
		SplitTest: models.SplitTest{ID: id, Slug: slug, Active: true},
		Variants:  []models.Variant{{ID: id * 10, TestID: id, PageID: 1, Weight: 1}},
	}
}

func TestCache_SetAndGet(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatal(err)
	}

	c.Set("summer-sale", testEntry(1, "summer-sale"))

	got, found := c.Get("summer-sale")
	if !found {
		t.Fatal("expected cache hit")
	}
	if got.ID != 1 || len(got.Variants) != 1 {
		t.Errorf("got %+v, want test with ID=1 and one variant", got)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatal(err)
	}

	if _, found := c.Get("nonexistent"); found {
		t.Error("expected cache miss")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatal(err)
	}

	c.Set("summer-sale", testEntry(1, "summer-sale"))
	c.Invalidate("summer-sale")

	if _, found := c.Get("summer-sale"); found {
		t.Error("expected cache miss after invalidate")
	}
}

func TestCache_EvictsLRU(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatal(err)
	}

	c.Set("a", testEntry(1, "a"))
	c.Set("b", testEntry(2, "b"))
	// Access "a" to make "b" the LRU
	c.Get("a")
	// Insert "c" — should evict "b" (LRU)
	c.Set("c", testEntry(3, "c"))

	if _, found := c.Get("b"); found {
		t.Error("expected 'b' to be evicted")
	}
	if _, found := c.Get("a"); !found {
		t.Error("expected 'a' to still be cached")
	}
	if _, found := c.Get("c"); !found {
		t.Error("expected 'c' to be cached")
	}
}
