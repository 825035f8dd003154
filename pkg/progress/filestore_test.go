package progress

import (
	"path/filepath"
	"testing"
	"time"

	"gymtrack/pkg/card"
)

func testRecord(badges int, hours int, dex int) card.ValidatedRecord {
	return card.ValidatedRecord{
		Name:    "RED",
		Badges:  badges,
		Time:    card.Playtime{Hours: hours, Minutes: 15},
		Pokedex: dex,
	}
}

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trainer_data.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, path
}

func TestMergeInsertAndDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	out, err := s.Merge("alice", testRecord(3, 10, 40), t0, "msg-1")
	if err != nil || out != OutcomeInserted {
		t.Fatalf("got %s err=%v", out, err)
	}
	// replaying the exact same message must be a no-op
	out, err = s.Merge("alice", testRecord(3, 10, 40), t0, "msg-1")
	if err != nil || out != OutcomeIgnoredDuplicate {
		t.Fatalf("got %s err=%v", out, err)
	}
	entries, err := s.GetForUser("alice")
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries=%v err=%v", entries, err)
	}
}

func TestMergeLatestWinsBothOrders(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	newer := testRecord(3, 12, 55)
	older := testRecord(3, 10, 40)

	// chronological arrival: the newer report supersedes
	s, _ := newTestStore(t)
	if out, _ := s.Merge("alice", older, t1, "m1"); out != OutcomeInserted {
		t.Fatalf("got %s", out)
	}
	if out, _ := s.Merge("alice", newer, t2, "m2"); out != OutcomeSuperseded {
		t.Fatalf("got %s", out)
	}
	entries, _ := s.GetForUser("alice")
	if entries[0].Time.Hours != 12 || entries[0].SourceMessageID != "m2" {
		t.Fatalf("state %+v", entries[0])
	}

	// reversed arrival: the stale report is ignored, state converges anyway
	s2, _ := newTestStore(t)
	if out, _ := s2.Merge("alice", newer, t2, "m2"); out != OutcomeInserted {
		t.Fatalf("got %s", out)
	}
	if out, _ := s2.Merge("alice", older, t1, "m1"); out != OutcomeIgnoredStale {
		t.Fatalf("got %s", out)
	}
	entries2, _ := s2.GetForUser("alice")
	if entries2[0].Time.Hours != 12 || entries2[0].SourceMessageID != "m2" {
		t.Fatalf("state %+v", entries2[0])
	}
}

func TestMergeStaleMessageStillLedgered(t *testing.T) {
	s, _ := newTestStore(t)
	t1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, _ = s.Merge("alice", testRecord(3, 12, 55), t1.Add(time.Hour), "m2")
	if out, _ := s.Merge("alice", testRecord(3, 10, 40), t1, "m1"); out != OutcomeIgnoredStale {
		t.Fatalf("got %s", out)
	}
	// a replay of the stale message is now a duplicate, not stale again
	if out, _ := s.Merge("alice", testRecord(3, 10, 40), t1, "m1"); out != OutcomeIgnoredDuplicate {
		t.Fatalf("got %s", out)
	}
}

func TestMergeDistinctBadgeLevelsCoexist(t *testing.T) {
	s, _ := newTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, badges := range []int{0, 3, 8} {
		out, err := s.Merge("alice", testRecord(badges, 5+i, 20*i), base.Add(time.Duration(i)*time.Hour), "m"+string(rune('a'+i)))
		if err != nil || out != OutcomeInserted {
			t.Fatalf("badges=%d got %s err=%v", badges, out, err)
		}
	}
	entries, _ := s.GetForUser("alice")
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	// sorted ascending by badge level
	if entries[0].BadgeLevel != 0 || entries[1].BadgeLevel != 3 || entries[2].BadgeLevel != 8 {
		t.Fatalf("order %v", entries)
	}
}

func TestGetLatestPerUser(t *testing.T) {
	s, _ := newTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, _ = s.Merge("alice", testRecord(3, 10, 40), base, "a1")
	_, _ = s.Merge("alice", testRecord(5, 14, 80), base.Add(time.Hour), "a2")
	_, _ = s.Merge("bob", testRecord(1, 4, 12), base, "b1")

	latest, err := s.GetLatestPerUser()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest["alice"].BadgeLevel != 5 || latest["bob"].BadgeLevel != 1 {
		t.Fatalf("latest %+v", latest)
	}
}

func TestGetForUserUnknown(t *testing.T) {
	s, _ := newTestStore(t)
	entries, err := s.GetForUser("nobody")
	if err != nil || len(entries) != 0 {
		t.Fatalf("entries=%v err=%v", entries, err)
	}
}

func TestStateSurvivesReload(t *testing.T) {
	s, path := newTestStore(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, _ = s.Merge("alice", testRecord(3, 10, 40), t0, "m1")

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	entries, _ := reopened.GetForUser("alice")
	if len(entries) != 1 || entries[0].TrainerName != "RED" || entries[0].Time.String() != "10:15" {
		t.Fatalf("entries %+v", entries)
	}
	// the idempotency ledger is durable too
	if out, _ := reopened.Merge("alice", testRecord(3, 10, 40), t0, "m1"); out != OutcomeIgnoredDuplicate {
		t.Fatalf("got %s", out)
	}
}

func TestMergeRequiresIdentifiers(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Merge("", testRecord(3, 10, 40), time.Now(), "m1"); err == nil {
		t.Fatalf("empty user must fail")
	}
	if _, err := s.Merge("alice", testRecord(3, 10, 40), time.Now(), ""); err == nil {
		t.Fatalf("empty message id must fail")
	}
}
