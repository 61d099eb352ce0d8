// Package fitfile turns uploaded Garmin FIT activity exports into the same
// normalized shape the Strava client produces.
package fitfile

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pacemates/paceline/internal/activity"
	"github.com/pacemates/paceline/internal/telemetry/tracing"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/basetype"
	"github.com/muktihari/fit/profile/filedef"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxFileSize caps uploads at 25 MB; real watch exports are far
// smaller.
const DefaultMaxFileSize int64 = 25 * 1024 * 1024

// fitHeaderMarker sits at bytes 8..11 of every FIT file header.
const fitHeaderMarker = ".FIT"

// ParseError means the uploaded bytes are not a usable FIT activity file.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "fit parse error: " + e.Reason
}

// Normalizer validates and decodes FIT uploads. Validation is cheap and
// happens before any full decode; the upload bytes never touch disk.
type Normalizer struct {
	maxFileSize int64
}

func NewNormalizer(maxFileSize int64) *Normalizer {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Normalizer{maxFileSize: maxFileSize}
}

// Normalize decodes the uploaded file into one Activity with ordered
// splits. Same input bytes always produce the same output.
func (n *Normalizer) Normalize(ctx context.Context, fileBytes []byte) (act *activity.Activity, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "fitNormalizer.normalize")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("file.size", len(fileBytes)))

	if err := n.validate(fileBytes); err != nil {
		return nil, err
	}

	lis := filedef.NewListener()
	defer lis.Close()

	dec := decoder.New(bytes.NewReader(fileBytes),
		decoder.WithMesgListener(lis),
		decoder.WithBroadcastOnly(),
	)

	fileId, err := dec.PeekFileId()
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid file header: %s", err)}
	}
	if fileId.Type != typedef.FileActivity {
		return nil, &ParseError{Reason: fmt.Sprintf("not an activity file (type %s)", fileId.Type)}
	}

	if _, err := dec.Decode(); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("decode: %s", err)}
	}

	activityFile, ok := lis.File().(*filedef.Activity)
	if !ok {
		return nil, &ParseError{Reason: "decoded file is not an activity"}
	}
	if len(activityFile.Sessions) == 0 && len(activityFile.Records) == 0 {
		return nil, &ParseError{Reason: "file contains no session and no records"}
	}

	act = n.buildActivity(activityFile)
	act.Splits = buildSplits(activityFile)

	log.Debugf("fit upload normalized: %s, %.2f mi, %d splits",
		act.Type, act.DistanceMiles(), len(act.Splits))

	return act, nil
}

// validate fails fast on anything obviously not a FIT activity upload,
// before attempting a full decode. Oversized files are rejected without
// looking at their content.
func (n *Normalizer) validate(fileBytes []byte) error {
	if int64(len(fileBytes)) > n.maxFileSize {
		return &ParseError{Reason: fmt.Sprintf(
			"file size %d exceeds the maximum of %d bytes", len(fileBytes), n.maxFileSize,
		)}
	}
	if len(fileBytes) == 0 {
		return &ParseError{Reason: "file is empty"}
	}
	if len(fileBytes) < 12 || string(fileBytes[8:12]) != fitHeaderMarker {
		return &ParseError{Reason: "missing FIT header marker"}
	}
	return nil
}

func (n *Normalizer) buildActivity(file *filedef.Activity) *activity.Activity {
	act := &activity.Activity{
		Type:   "Workout",
		Source: activity.SourceFitUpload,
	}

	if len(file.Sessions) > 0 {
		session := file.Sessions[0]
		act.Type = sportType(session.Sport)
		act.StartDate = session.StartTime
		if session.TotalDistance != basetype.Uint32Invalid {
			act.DistanceMeters = float64(session.TotalDistance) / 100
		}
		if session.TotalTimerTime != basetype.Uint32Invalid {
			act.MovingTimeSeconds = int64(session.TotalTimerTime / 1000)
		}
		if session.TotalElapsedTime != basetype.Uint32Invalid {
			act.ElapsedTimeSeconds = int64(session.TotalElapsedTime / 1000)
		}
		if session.TotalAscent != basetype.Uint16Invalid {
			act.ElevationGainMeters = float64(session.TotalAscent)
		}
		if session.AvgHeartRate != basetype.Uint8Invalid {
			act.AverageHeartRate = float64(session.AvgHeartRate)
		}
		if session.AvgCadence != basetype.Uint8Invalid {
			act.AverageCadence = float64(session.AvgCadence)
		}
		if session.AvgSpeed != basetype.Uint16Invalid {
			act.AverageSpeed = float64(session.AvgSpeed) / 1000
		}
		if session.TotalCalories != basetype.Uint16Invalid {
			act.Calories = float64(session.TotalCalories)
		}
	} else {
		// no session summary: derive what we can from the records
		records := file.Records
		act.StartDate = records[0].Timestamp
		last := records[len(records)-1]
		if last.Distance != basetype.Uint32Invalid {
			act.DistanceMeters = float64(last.Distance) / 100
		}
		elapsed := int64(last.Timestamp.Sub(records[0].Timestamp).Seconds())
		act.MovingTimeSeconds = elapsed
		act.ElapsedTimeSeconds = elapsed
	}

	if act.AverageSpeed == 0 && act.MovingTimeSeconds > 0 {
		act.AverageSpeed = act.DistanceMeters / float64(act.MovingTimeSeconds)
	}

	act.StartDate = act.StartDate.UTC()
	// FIT timestamps carry no timezone; local equals UTC here
	act.StartDateLocal = act.StartDate
	// derived from the content, so the same bytes map to the same id
	act.ID = act.StartDate.Unix()
	act.Name = fmt.Sprintf("%s - %s", act.Type, act.StartDate.Format("January 2, 2006"))

	return act
}

// buildSplits prefers recorded laps; a file without laps (or with a single
// whole-activity lap) gets mile splits computed from the record stream.
func buildSplits(file *filedef.Activity) []activity.Split {
	if len(file.Laps) > 1 {
		return splitsFromLaps(file.Laps)
	}
	if splits := splitsFromRecords(file.Records); len(splits) > 0 {
		return splits
	}
	if len(file.Laps) == 1 {
		return splitsFromLaps(file.Laps)
	}
	return nil
}

func splitsFromLaps(laps []*mesgdef.Lap) []activity.Split {
	splits := make([]activity.Split, 0, len(laps))
	for i, lap := range laps {
		split := activity.Split{Number: i + 1}
		if lap.TotalDistance != basetype.Uint32Invalid {
			split.DistanceMeters = float64(lap.TotalDistance) / 100
		}
		if lap.TotalElapsedTime != basetype.Uint32Invalid {
			split.ElapsedTimeSeconds = int64(lap.TotalElapsedTime / 1000)
		}
		if lap.TotalTimerTime != basetype.Uint32Invalid {
			split.MovingTimeSeconds = int64(lap.TotalTimerTime / 1000)
		}
		if lap.AvgSpeed != basetype.Uint16Invalid {
			split.AverageSpeed = float64(lap.AvgSpeed) / 1000
		}
		if lap.AvgHeartRate != basetype.Uint8Invalid {
			split.AverageHeartRate = float64(lap.AvgHeartRate)
		}
		if lap.TotalAscent != basetype.Uint16Invalid {
			split.ElevationDifference = float64(lap.TotalAscent)
		}
		if split.AverageSpeed == 0 && split.MovingTimeSeconds > 0 {
			split.AverageSpeed = split.DistanceMeters / float64(split.MovingTimeSeconds)
		}
		splits = append(splits, split)
	}
	return splits
}

// splitsFromRecords walks the record distance/timestamp progression and cuts
// a split at every crossed mile boundary. A trailing partial mile is
// dropped, matching how the mile splits looked before laps were recorded.
func splitsFromRecords(records []*mesgdef.Record) []activity.Split {
	var splits []activity.Split

	splitNumber := 1
	splitStartIdx := 0
	var hrSum, hrCount int64

	for i, record := range records {
		if record.Distance == basetype.Uint32Invalid {
			continue
		}
		if record.HeartRate != basetype.Uint8Invalid {
			hrSum += int64(record.HeartRate)
			hrCount++
		}

		distance := float64(record.Distance) / 100
		if distance < float64(splitNumber)*activity.MetersPerMile || i == 0 {
			continue
		}

		start := records[splitStartIdx]
		elapsed := elapsedSeconds(start.Timestamp, record.Timestamp)

		split := activity.Split{
			Number:             splitNumber,
			DistanceMeters:     activity.MetersPerMile,
			ElapsedTimeSeconds: elapsed,
			MovingTimeSeconds:  elapsed,
		}
		if elapsed > 0 {
			startDistance := 0.0
			if start.Distance != basetype.Uint32Invalid {
				startDistance = float64(start.Distance) / 100
			}
			split.AverageSpeed = (distance - startDistance) / float64(elapsed)
		}
		if start.Altitude != basetype.Uint16Invalid && record.Altitude != basetype.Uint16Invalid {
			split.ElevationDifference = altitudeMeters(record.Altitude) - altitudeMeters(start.Altitude)
		}
		if hrCount > 0 {
			split.AverageHeartRate = float64(hrSum) / float64(hrCount)
		}

		splits = append(splits, split)
		splitStartIdx = i
		splitNumber++
		hrSum, hrCount = 0, 0
	}

	return splits
}

func elapsedSeconds(from, to time.Time) int64 {
	if to.Before(from) {
		return 0
	}
	return int64(to.Sub(from).Seconds())
}

// altitude is stored with scale 5 and offset 500
func altitudeMeters(raw uint16) float64 {
	return float64(raw)/5 - 500
}

func sportType(sport typedef.Sport) string {
	switch sport {
	case typedef.SportRunning:
		return "Run"
	case typedef.SportCycling:
		return "Ride"
	case typedef.SportWalking:
		return "Walk"
	case typedef.SportHiking:
		return "Hike"
	case typedef.SportSwimming:
		return "Swim"
	default:
		return "Workout"
	}
}
