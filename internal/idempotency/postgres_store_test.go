package idempotency

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestPostgresStoreReplaysClaimResponse(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := "claim-submit-" + time.Now().Format("20060102150405.000")
	rec := Record{
		StatusCode: 201,
		Response:   []byte(`{"claimCodeHash":"0xabc","status":"created"}`),
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  time.Now().Add(time.Minute).UTC(),
	}

	if err := store.Save(ctx, key, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.StatusCode != rec.StatusCode {
		t.Fatalf("unexpected record: %#v", got)
	}
	if string(got.Response) != string(rec.Response) {
		t.Fatalf("response body not replayed: %s", got.Response)
	}

	if unknown, err := store.Get(ctx, key+"-missing"); err != nil || unknown != nil {
		t.Fatalf("expected nil, nil for unknown key, got %#v, %v", unknown, err)
	}
}

func TestPostgresStoreExpiredRecordIsGone(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	key := "claim-expired-" + time.Now().Format("20060102150405.000")
	rec := Record{
		StatusCode: 201,
		Response:   []byte(`{}`),
		CreatedAt:  time.Now().Add(-2 * time.Minute).UTC(),
		ExpiresAt:  time.Now().Add(-time.Minute).UTC(),
	}
	if err := store.Save(ctx, key, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expired record should not replay: %#v", got)
	}
}
