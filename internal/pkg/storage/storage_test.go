package storage

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLocalArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	archive, err := New(ctx, Config{LocalPath: t.TempDir()})
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}

	key := WebhookKey("sepay", "FT123", time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	if !strings.HasPrefix(key, "webhooks/sepay/2026/03/04/FT123-") {
		t.Fatalf("unexpected key %q", key)
	}

	if ok, _ := archive.Exists(ctx, key); ok {
		t.Fatalf("expected key to be absent")
	}
	if err := archive.Put(ctx, key, []byte(`{"id":1}`), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := archive.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("expected key to exist, err=%v", err)
	}
	data, err := archive.Get(ctx, key)
	if err != nil || string(data) != `{"id":1}` {
		t.Fatalf("unexpected get result %q err=%v", data, err)
	}
}
