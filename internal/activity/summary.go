package activity

import (
	"fmt"
	"sort"
	"time"
)

// AllowedSummaryTypes are the activity types that count towards the weekly
// volume tables; everything else (yoga, golf, ...) is skipped.
var AllowedSummaryTypes = map[string]bool{
	"Ride":           true,
	"Run":            true,
	"Swim":           true,
	"WeightTraining": true,
	"Workout":        true,
}

// TypeSummary is total moving time grouped by activity type.
type TypeSummary struct {
	Rows      []TypeRow `json:"rows"`
	TotalTime string    `json:"total_time"`
}

type TypeRow struct {
	Type string `json:"type"`
	Time string `json:"time"`
}

// WeeklySummary is a per-ISO-week volume table: one row per week, one
// column per activity type, times rendered HH:MM:SS.
type WeeklySummary struct {
	ActivityTypes []string  `json:"activity_types"`
	Rows          []WeekRow `json:"rows"`
}

type WeekRow struct {
	// Week is the Monday the week starts on, formatted YYYY-MM-DD.
	Week   string            `json:"week"`
	ByType map[string]string `json:"by_type"`
	Total  string            `json:"total"`
}

// SummarizeByType groups total moving time by activity type, all types
// included.
func SummarizeByType(activities []Activity) TypeSummary {
	typeTime := make(map[string]int64)
	var totalTime int64
	for _, act := range activities {
		actType := act.Type
		if actType == "" {
			actType = "Unknown"
		}
		typeTime[actType] += act.MovingTimeSeconds
		totalTime += act.MovingTimeSeconds
	}

	summary := TypeSummary{
		TotalTime: SecondsToHMS(totalTime),
	}
	for actType, seconds := range typeTime {
		summary.Rows = append(summary.Rows, TypeRow{
			Type: actType,
			Time: SecondsToHMS(seconds),
		})
	}
	sort.Slice(summary.Rows, func(i, j int) bool {
		return summary.Rows[i].Type < summary.Rows[j].Type
	})
	return summary
}

// SummarizeWeekly groups moving time of the allowed activity types by the
// week they fall in, keyed by the week's Monday.
func SummarizeWeekly(activities []Activity) WeeklySummary {
	weekData := make(map[string]map[string]int64)
	weekTotals := make(map[string]int64)
	typesSeen := make(map[string]bool)

	for _, act := range activities {
		if !AllowedSummaryTypes[act.Type] {
			continue
		}
		week := WeekStart(act.StartDate).Format("2006-01-02")
		if weekData[week] == nil {
			weekData[week] = make(map[string]int64)
		}
		weekData[week][act.Type] += act.MovingTimeSeconds
		weekTotals[week] += act.MovingTimeSeconds
		typesSeen[act.Type] = true
	}

	sortedWeeks := make([]string, 0, len(weekData))
	for week := range weekData {
		sortedWeeks = append(sortedWeeks, week)
	}
	sort.Strings(sortedWeeks)

	sortedTypes := make([]string, 0, len(typesSeen))
	for actType := range typesSeen {
		sortedTypes = append(sortedTypes, actType)
	}
	sort.Strings(sortedTypes)

	summary := WeeklySummary{
		ActivityTypes: sortedTypes,
	}
	for _, week := range sortedWeeks {
		row := WeekRow{
			Week:   week,
			ByType: make(map[string]string),
			Total:  SecondsToHMS(weekTotals[week]),
		}
		for _, actType := range sortedTypes {
			if seconds := weekData[week][actType]; seconds > 0 {
				row.ByType[actType] = SecondsToHMS(seconds)
			}
		}
		summary.Rows = append(summary.Rows, row)
	}
	return summary
}

// WeekStart returns the Monday 00:00 of the week t falls in.
func WeekStart(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -daysSinceMonday)
}

func SecondsToHMS(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
