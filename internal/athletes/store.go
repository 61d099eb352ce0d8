package athletes

import (
	"context"
	"errors"
)

var ErrAthleteNotFound = errors.New("athlete not found")

// Store persists athlete credentials and reads the summary stats. Two
// implementations exist: SheetsStore (Google Sheets) and FileStore (local
// JSON file fallback), picked by configuration. The storage layer itself is
// last-write-wins; the Keeper serializes writers per athlete one level up.
//
//go:generate mockgen -source=store.go -destination=store_mock.go -package=athletes
type Store interface {
	// Get returns ErrAthleteNotFound when the athlete isn't registered.
	Get(ctx context.Context, athleteID int64) (*Athlete, error)
	// Save upserts the athlete's credential record.
	Save(ctx context.Context, athlete *Athlete) error
	// List returns all registered athletes, credentials included.
	List(ctx context.Context) ([]Athlete, error)
	// ListStats reads the yearly summary table.
	ListStats(ctx context.Context) ([]Stats, error)
}
