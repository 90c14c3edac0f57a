package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestIdempotencyStatus_Valid(t *testing.T) {
	if domain.IdempotencyStatus("queued").Valid() {
		t.Fatal("unexpected status must not be valid")
	}
	for _, s := range []domain.IdempotencyStatus{
		domain.IdempotencyStatusProcessing,
		domain.IdempotencyStatusDone,
		domain.IdempotencyStatusFailed,
	} {
		if !s.Valid() {
			t.Fatalf("expected status %s to be valid", s)
		}
	}
}

func TestIdempotencyStatus_Terminal(t *testing.T) {
	if domain.IdempotencyStatusProcessing.Terminal() {
		t.Fatal("processing must not be terminal")
	}
	if !domain.IdempotencyStatusDone.Terminal() {
		t.Fatal("done must be terminal")
	}
	if !domain.IdempotencyStatusFailed.Terminal() {
		t.Fatal("failed must be terminal")
	}
}

func TestIdempotencyRecord_Expired(t *testing.T) {
	now := time.Now().UTC()
	record := domain.IdempotencyRecord{TTLAt: now}

	if record.Expired(now.Add(-time.Second)) {
		t.Fatal("record must not be expired before its TTL")
	}
	if !record.Expired(now) {
		t.Fatal("record must be expired exactly at its TTL")
	}
	if !record.Expired(now.Add(time.Second)) {
		t.Fatal("record must be expired after its TTL")
	}
}
