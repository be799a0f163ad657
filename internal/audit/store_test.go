package audit

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:", 90)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_WriteAndQuery(t *testing.T) {
	s := newTestStore(t)

	evt := Event{
		User:     "bob",
		Action:   "rule.create",
		Resource: "firewall/abc-123",
		Details:  map[string]any{"port": "8080", "action": "ACCEPT"},
		Status:   201,
		IP:       "10.0.0.5",
	}
	if err := s.Write(evt); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	events, err := s.Query(time.Now().Add(-time.Hour), time.Now().Add(time.Hour), "", "", 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	got := events[0]
	if got.User != "bob" {
		t.Errorf("expected user bob, got %s", got.User)
	}
	if got.Action != "rule.create" {
		t.Errorf("expected action rule.create, got %s", got.Action)
	}
	if got.Status != 201 {
		t.Errorf("expected status 201, got %d", got.Status)
	}
	if got.IP != "10.0.0.5" {
		t.Errorf("expected ip 10.0.0.5, got %s", got.IP)
	}
	if got.Details["port"] != "8080" {
		t.Errorf("expected details port 8080, got %v", got.Details["port"])
	}
}

func TestStore_QueryFilters(t *testing.T) {
	s := newTestStore(t)

	writes := []Event{
		{User: "alice", Action: "rule.create", Resource: "firewall/1", Status: 201},
		{User: "alice", Action: "rule.delete", Resource: "firewall/1", Status: 200},
		{User: "bob", Action: "rule.create", Resource: "firewall/2", Status: 201},
		{User: "bob", Action: "session.login", Resource: "session", Status: 200},
	}
	for _, evt := range writes {
		if err := s.Write(evt); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	byAction, err := s.Query(start, end, "rule.create", "", 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(byAction) != 2 {
		t.Errorf("expected 2 rule.create events, got %d", len(byAction))
	}

	byUser, err := s.Query(start, end, "", "bob", 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(byUser) != 2 {
		t.Errorf("expected 2 events for bob, got %d", len(byUser))
	}

	both, err := s.Query(start, end, "rule.create", "bob", 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(both) != 1 {
		t.Errorf("expected 1 event for bob+rule.create, got %d", len(both))
	}

	limited, err := s.Query(start, end, "", "", 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit of 2, got %d", len(limited))
	}
}

func TestStore_Prune(t *testing.T) {
	s := newTestStore(t)

	old := Event{
		Timestamp: time.Now().AddDate(0, 0, -120),
		User:      "alice",
		Action:    "rule.create",
		Resource:  "firewall/old",
		Status:    201,
	}
	recent := Event{
		User:     "alice",
		Action:   "rule.create",
		Resource: "firewall/new",
		Status:   201,
	}
	if err := s.Write(old); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := s.Write(recent); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	removed, err := s.Prune()
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 pruned event, got %d", removed)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 remaining event, got %d", count)
	}
}

func TestStore_StartPruner(t *testing.T) {
	s := newTestStore(t)

	old := Event{
		Timestamp: time.Now().AddDate(0, 0, -120),
		User:      "alice",
		Action:    "rule.delete",
		Resource:  "firewall/stale",
		Status:    200,
	}
	if err := s.Write(old); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	stop := s.StartPruner(10 * time.Millisecond)
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		count, err := s.Count()
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pruner never removed the stale event, %d remaining", count)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Stopping twice must not panic
	stop()
	stop()
}
