package store

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Fatalf("missing key reported present")
	}
	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(raw) != "v" {
		t.Fatalf("get=%q ok=%v err=%v", raw, ok, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("deleted key reported present")
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatalf("key missing before expiry")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("key still present after expiry")
	}
}

func TestGetJSONDegradesOnBadPayload(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var dest payload
	ok, err := GetJSON(ctx, s, "missing", &dest)
	if ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	_ = s.Set(ctx, "bad", []byte("{not json"), 0)
	ok, err = GetJSON(ctx, s, "bad", &dest)
	if ok || err != nil {
		t.Fatalf("bad payload: ok=%v err=%v", ok, err)
	}
	if dest != (payload{}) {
		t.Fatalf("dest mutated by bad payload: %+v", dest)
	}
}

func TestSetJSONGetJSONRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	in := payload{Name: "experiments", Count: 3}
	if err := SetJSON(ctx, s, "k", in); err != nil {
		t.Fatalf("set json: %v", err)
	}
	var out payload
	ok, err := GetJSON(ctx, s, "k", &out)
	if !ok || err != nil || out != in {
		t.Fatalf("out=%+v ok=%v err=%v", out, ok, err)
	}
}
