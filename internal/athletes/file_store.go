package athletes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
)

// FileStore is the local JSON fallback for when Google Sheets is
// unavailable or unconfigured. One file, athlete ID -> record. The mutex
// covers the whole read-modify-write of Save, so concurrent saves for
// different athletes can't drop each other's records.
type FileStore struct {
	mutex sync.Mutex
	path  string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Get(_ context.Context, athleteID int64) (*Athlete, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	records, err := fs.readAll()
	if err != nil {
		return nil, err
	}
	athlete, ok := records[strconv.FormatInt(athleteID, 10)]
	if !ok {
		return nil, ErrAthleteNotFound
	}
	return &athlete, nil
}

func (fs *FileStore) Save(_ context.Context, athlete *Athlete) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	records, err := fs.readAll()
	if err != nil {
		return err
	}
	records[strconv.FormatInt(athlete.ID, 10)] = *athlete
	return fs.writeAll(records)
}

func (fs *FileStore) List(_ context.Context) ([]Athlete, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	records, err := fs.readAll()
	if err != nil {
		return nil, err
	}
	athletes := make([]Athlete, 0, len(records))
	for _, athlete := range records {
		athletes = append(athletes, athlete)
	}
	sort.Slice(athletes, func(i, j int) bool {
		return athletes[i].ID < athletes[j].ID
	})
	return athletes, nil
}

// ListStats returns the stats stored alongside the credential records; the
// file backend has no separate summary table.
func (fs *FileStore) ListStats(ctx context.Context) ([]Stats, error) {
	athletes, err := fs.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]Stats, 0, len(athletes))
	for _, athlete := range athletes {
		s := athlete.Stats
		if s.Name == "" {
			s.Name = athlete.Name
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (fs *FileStore) readAll() (map[string]Athlete, error) {
	records := map[string]Athlete{}

	fileBytes, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("athletes file store [%s] not created yet", fs.path)
			return records, nil
		}
		return nil, fmt.Errorf("read athletes store file: %w", err)
	}

	if len(fileBytes) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(fileBytes, &records); err != nil {
		return nil, fmt.Errorf("unmarshal athletes store file: %w", err)
	}
	return records, nil
}

// writeAll writes to a temp file then renames it over the store file, so a
// crash mid-write can't leave a half-written store behind.
func (fs *FileStore) writeAll(records map[string]Athlete) error {
	recordsJson, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal athletes records: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(fs.path), ".athletes-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}

	if _, err := tmpFile.Write(recordsJson); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), fs.path); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("rename temp store file: %w", err)
	}
	return nil
}
