package enrich

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ayusman/handcard/internal/annotation"
)

func TestRedisCache_Integration(t *testing.T) {
	addr := os.Getenv("HANDCARD_TEST_REDIS_ADDR")
	if testing.Short() || addr == "" {
		t.Skip("skipping redis integration test (set HANDCARD_TEST_REDIS_ADDR)")
	}

	ctx := context.Background()
	cache := NewRedisCache(addr, "", 0, time.Minute)
	defer cache.Close()

	if err := cache.Ping(ctx); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}

	key := CacheKey(t.Name(), []byte(time.Now().String()))

	if _, ok, err := cache.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	want := annotation.Rendered("A kiwi.", &annotation.Scores{Safety: 90, Nutrition: 90, AllergenRisk: 20, Freshness: 60})
	if err := cache.Set(ctx, key, want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := cache.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Text != want.Text || *got.Scores != *want.Scores {
		t.Errorf("got %+v, want %+v", got, want)
	}

	failedKey := key + "-failed"
	if err := cache.Set(ctx, failedKey, annotation.Failed("boom")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok, _ := cache.Get(ctx, failedKey); ok {
		t.Error("failed content must not be cached")
	}
}
