package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"gymtrack/pkg/card"
)

// badgeRecord is one per-badge-level observation in the flat file.
type badgeRecord struct {
	TrainerName string        `json:"trainer_name"`
	Time        card.Playtime `json:"time"`
	Pokedex     int           `json:"pokedex"`
	EventTime   time.Time     `json:"event_time"`
	MessageID   string        `json:"message_id"`
}

type userRecord struct {
	TrainerName  string                 `json:"trainer_name"`
	BadgeRecords map[string]badgeRecord `json:"badge_records"`
}

type fileState struct {
	Users     map[string]*userRecord `json:"users"`
	Processed map[string]bool        `json:"processed_messages"`
}

// FileStore keeps the whole progress state in one JSON file, replaced
// atomically (temp file + fsync + rename) on every accepted write. The
// single mutex both serializes merges and gives readers a consistent
// snapshot; the file is rewritten whole, so finer locking buys nothing.
type FileStore struct {
	path  string
	mu    sync.RWMutex
	state fileState
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		state: fileState{
			Users:     make(map[string]*userRecord),
			Processed: make(map[string]bool),
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Merge(userID string, rec card.ValidatedRecord, eventTime time.Time, messageID string) (Outcome, error) {
	if userID == "" || messageID == "" {
		return OutcomeIgnoredStale, errors.New("userID and messageID are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Processed[messageID] {
		return OutcomeIgnoredDuplicate, nil
	}

	u, ok := s.state.Users[userID]
	if !ok {
		u = &userRecord{TrainerName: rec.Name, BadgeRecords: make(map[string]badgeRecord)}
		s.state.Users[userID] = u
	}

	key := strconv.Itoa(rec.Badges)
	incoming := badgeRecord{
		TrainerName: rec.Name,
		Time:        rec.Time,
		Pokedex:     rec.Pokedex,
		EventTime:   eventTime,
		MessageID:   messageID,
	}

	outcome := OutcomeIgnoredStale
	existing, exists := u.BadgeRecords[key]
	switch {
	case !exists:
		u.BadgeRecords[key] = incoming
		outcome = OutcomeInserted
	case eventTime.After(existing.EventTime):
		u.BadgeRecords[key] = incoming
		outcome = OutcomeSuperseded
	}
	if outcome.Changed() {
		u.TrainerName = rec.Name
	}

	// the message is ledgered for every outcome past the duplicate check, so
	// an exact replay of a stale report is detected as a duplicate next time
	s.state.Processed[messageID] = true

	if err := s.persistLocked(); err != nil {
		// keep memory consistent with disk rather than acknowledging a write
		// that never became durable
		_ = s.loadLocked()
		return outcome, err
	}
	return outcome, nil
}

func (s *FileStore) GetForUser(userID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.Users[userID]
	if !ok {
		return nil, nil
	}
	entries := make([]Entry, 0, len(u.BadgeRecords))
	for key, br := range u.BadgeRecords {
		level, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		entries = append(entries, entryFromRecord(userID, level, br))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].BadgeLevel < entries[j].BadgeLevel })
	return entries, nil
}

func (s *FileStore) GetLatestPerUser() (map[string]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.state.Users))
	for userID, u := range s.state.Users {
		bestLevel := -1
		var best badgeRecord
		for key, br := range u.BadgeRecords {
			level, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			if level > bestLevel {
				bestLevel = level
				best = br
			}
		}
		if bestLevel >= 0 {
			out[userID] = entryFromRecord(userID, bestLevel, best)
		}
	}
	return out, nil
}

func entryFromRecord(userID string, level int, br badgeRecord) Entry {
	return Entry{
		UserID:          userID,
		TrainerName:     br.TrainerName,
		BadgeLevel:      level,
		Time:            br.Time,
		PokedexCount:    br.Pokedex,
		SourceEventTime: br.EventTime,
		SourceMessageID: br.MessageID,
	}
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load progress data: %w", err)
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse progress data %s: %w", s.path, err)
	}
	if state.Users == nil {
		state.Users = make(map[string]*userRecord)
	}
	if state.Processed == nil {
		state.Processed = make(map[string]bool)
	}
	s.state = state
	return nil
}

// persistLocked writes the whole state to a temp file in the same directory,
// fsyncs it, and renames it over the live file so a crash mid-write can
// never corrupt stored progress.
func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		return fmt.Errorf("temp progress file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write progress data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync progress data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace progress data: %w", err)
	}
	return nil
}
