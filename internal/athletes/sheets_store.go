package athletes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pacemates/paceline/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

const (
	SheetCredentials = "Credentials"
	SheetSummary     = "Summary"
)

// Summary sheet headers. "Athelete" is misspelled in the production sheet
// and has to stay that way.
const (
	summaryColAthlete   = "Athelete"
	summaryColDistance  = "Total Distance(miles)"
	summaryColRuns      = "Number of Runs"
	summaryColWeeklyVol = "WeeklyVolGen"
	summaryColWeekLabel = "XAxisLabel"
)

// SheetsStore keeps athlete credentials and yearly stats in a Google
// spreadsheet: a Credentials tab (athlete_id, name, access_token,
// refresh_token, expires_at) and a Summary tab maintained externally.
type SheetsStore struct {
	srv           *sheetsv4.Service
	spreadsheetID string
}

func NewSheetsStore(ctx context.Context, credentialsPath, spreadsheetID string, opts ...option.ClientOption) (*SheetsStore, error) {
	allOpts := []option.ClientOption{
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	}
	if credentialsPath != "" {
		allOpts = append(allOpts, option.WithCredentialsFile(credentialsPath))
	}
	allOpts = append(allOpts, opts...)

	srv, err := sheetsv4.NewService(ctx, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("new sheets service: %w", err)
	}
	return &SheetsStore{
		srv:           srv,
		spreadsheetID: spreadsheetID,
	}, nil
}

func (ss *SheetsStore) Get(ctx context.Context, athleteID int64) (athlete *Athlete, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sheetsStore.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := ss.readAll(ctx, SheetCredentials)
	if err != nil {
		return nil, err
	}

	athlete, _ = findAthleteRow(rows, athleteID)
	if athlete == nil {
		return nil, ErrAthleteNotFound
	}
	return athlete, nil
}

func (ss *SheetsStore) Save(ctx context.Context, athlete *Athlete) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sheetsStore.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := ss.readAll(ctx, SheetCredentials)
	if err != nil {
		return err
	}

	row := []interface{}{
		strconv.FormatInt(athlete.ID, 10),
		athlete.Name,
		athlete.Token.AccessToken,
		athlete.Token.RefreshToken,
		strconv.FormatInt(athlete.Token.ExpiresAt, 10),
	}

	if _, rowNum := findAthleteRow(rows, athlete.ID); rowNum > 0 {
		return ss.updateRow(ctx, SheetCredentials, fmt.Sprintf("A%d:E%d", rowNum, rowNum), row)
	}

	log.Debugf("athletes sheet: registering new athlete %d", athlete.ID)
	return ss.appendRow(ctx, SheetCredentials, row)
}

func (ss *SheetsStore) List(ctx context.Context) (athletes []Athlete, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sheetsStore.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := ss.readAll(ctx, SheetCredentials)
	if err != nil {
		return nil, err
	}

	// header row at index 0
	for i := 1; i < len(rows); i++ {
		athlete, ok := athleteFromRow(rows[i])
		if !ok {
			continue
		}
		athletes = append(athletes, *athlete)
	}
	return athletes, nil
}

func (ss *SheetsStore) ListStats(ctx context.Context) (stats []Stats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sheetsStore.listStats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := ss.readAll(ctx, SheetSummary)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	colIdx := map[string]int{}
	for i := range rows[0] {
		colIdx[strings.TrimSpace(cell(rows[0], i))] = i
	}
	athleteIdx, ok := colIdx[summaryColAthlete]
	if !ok {
		return nil, fmt.Errorf("summary sheet: column %q not found", summaryColAthlete)
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		name := strings.TrimSpace(cell(row, athleteIdx))
		if name == "" {
			continue
		}

		s := Stats{Name: name}
		if idx, ok := colIdx[summaryColDistance]; ok {
			s.TotalDistanceMiles, _ = strconv.ParseFloat(strings.TrimSpace(cell(row, idx)), 64)
		}
		if idx, ok := colIdx[summaryColRuns]; ok {
			s.RunCount, _ = strconv.Atoi(strings.TrimSpace(cell(row, idx)))
		}
		if idx, ok := colIdx[summaryColWeeklyVol]; ok {
			s.WeeklyVolumes = parseCsvFloats(cell(row, idx))
		}
		if idx, ok := colIdx[summaryColWeekLabel]; ok {
			s.WeekLabels = parseCsvStrings(cell(row, idx))
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (ss *SheetsStore) readAll(ctx context.Context, sheet string) ([][]interface{}, error) {
	resp, err := ss.srv.Spreadsheets.Values.Get(ss.spreadsheetID, sheet+"!A:Z").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return resp.Values, nil
}

func (ss *SheetsStore) appendRow(ctx context.Context, sheet string, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := ss.srv.Spreadsheets.Values.Append(ss.spreadsheetID, sheet+"!A:Z", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row to sheet %s: %w", sheet, err)
	}
	return nil
}

func (ss *SheetsStore) updateRow(ctx context.Context, sheet, a1Range string, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := ss.srv.Spreadsheets.Values.Update(ss.spreadsheetID, sheet+"!"+a1Range, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update sheet %s row %s: %w", sheet, a1Range, err)
	}
	return nil
}

// findAthleteRow returns the athlete and its 1-indexed sheet row, (nil, 0)
// when not present.
func findAthleteRow(rows [][]interface{}, athleteID int64) (*Athlete, int) {
	id := strconv.FormatInt(athleteID, 10)
	for i := 1; i < len(rows); i++ {
		if cell(rows[i], 0) != id {
			continue
		}
		if athlete, ok := athleteFromRow(rows[i]); ok {
			return athlete, i + 1 // sheet rows are 1-indexed
		}
	}
	return nil, 0
}

func athleteFromRow(row []interface{}) (*Athlete, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(cell(row, 0)), 10, 64)
	if err != nil {
		return nil, false
	}
	expiresAt, _ := strconv.ParseInt(strings.TrimSpace(cell(row, 4)), 10, 64)
	return &Athlete{
		ID:   id,
		Name: cell(row, 1),
		Token: TokenRecord{
			AccessToken:  cell(row, 2),
			RefreshToken: cell(row, 3),
			ExpiresAt:    expiresAt,
		},
	}, true
}

// cell tolerates ragged sheet rows.
func cell(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}

func parseCsvFloats(s string) []float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			value = 0
		}
		values = append(values, value)
	}
	return values
}

func parseCsvStrings(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		values = append(values, strings.TrimSpace(part))
	}
	return values
}
