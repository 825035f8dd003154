package progress

import (
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"gymtrack/models"
	"gymtrack/pkg/card"
)

// GormStore implements Store on Postgres. Each merge runs in a transaction;
// a striped process-level mutex serializes the read-compare-write per key,
// which holds because a single service instance owns the tables. Merges for
// different keys proceed on independent stripes.
type GormStore struct {
	db      *gorm.DB
	stripes [16]sync.Mutex
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) lockFor(userID string, badgeLevel int) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{byte(badgeLevel)})
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}

func (s *GormStore) Merge(userID string, rec card.ValidatedRecord, eventTime time.Time, messageID string) (Outcome, error) {
	if userID == "" || messageID == "" {
		return OutcomeIgnoredStale, errors.New("userID and messageID are required")
	}
	mu := s.lockFor(userID, rec.Badges)
	mu.Lock()
	defer mu.Unlock()

	outcome := OutcomeIgnoredStale
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var seen int64
		if err := tx.Model(&models.ProcessedMessage{}).Where("message_id = ?", messageID).Count(&seen).Error; err != nil {
			return err
		}
		if seen > 0 {
			outcome = OutcomeIgnoredDuplicate
			return nil
		}

		var existing models.ProgressEntry
		err := tx.Where("user_id = ? AND badge_level = ?", userID, rec.Badges).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry := models.ProgressEntry{
				UserID:          userID,
				BadgeLevel:      rec.Badges,
				TrainerName:     rec.Name,
				Playtime:        rec.Time.String(),
				PokedexCount:    rec.Pokedex,
				SourceEventTime: eventTime,
				SourceMessageID: messageID,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			outcome = OutcomeInserted
		case err != nil:
			return err
		case eventTime.After(existing.SourceEventTime):
			existing.TrainerName = rec.Name
			existing.Playtime = rec.Time.String()
			existing.PokedexCount = rec.Pokedex
			existing.SourceEventTime = eventTime
			existing.SourceMessageID = messageID
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			outcome = OutcomeSuperseded
		default:
			outcome = OutcomeIgnoredStale
		}

		return tx.Create(&models.ProcessedMessage{MessageID: messageID}).Error
	})
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (s *GormStore) GetForUser(userID string) ([]Entry, error) {
	var rows []models.ProgressEntry
	if err := s.db.Where("user_id = ?", userID).Order("badge_level asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e, err := entryFromModel(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *GormStore) GetLatestPerUser() (map[string]Entry, error) {
	var rows []models.ProgressEntry
	if err := s.db.Order("user_id, badge_level asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]Entry)
	for _, row := range rows {
		e, err := entryFromModel(row)
		if err != nil {
			return nil, err
		}
		if prev, ok := out[row.UserID]; !ok || e.BadgeLevel > prev.BadgeLevel {
			out[row.UserID] = e
		}
	}
	return out, nil
}

func entryFromModel(row models.ProgressEntry) (Entry, error) {
	pt, err := card.ParsePlaytime(row.Playtime)
	if err != nil {
		return Entry{}, errors.New("corrupt playtime for entry " + strconv.FormatUint(uint64(row.ID), 10) + ": " + err.Error())
	}
	return Entry{
		UserID:          row.UserID,
		TrainerName:     row.TrainerName,
		BadgeLevel:      row.BadgeLevel,
		Time:            pt,
		PokedexCount:    row.PokedexCount,
		SourceEventTime: row.SourceEventTime,
		SourceMessageID: row.SourceMessageID,
	}, nil
}
