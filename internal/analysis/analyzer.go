// Package analysis asks a language model for a natural-language read of one
// normalized activity.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pacemates/paceline/internal/activity"
	"github.com/pacemates/paceline/internal/telemetry/tracing"

	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const systemPrompt = "You are a fitness data analyst."

// DefaultIntent is used when the athlete submits no focus of their own.
const DefaultIntent = "overall performance, pacing and training effect"

// ErrEmptyAnalysis - the model call succeeded but returned no text.
var ErrEmptyAnalysis = errors.New("analysis: model returned an empty response")

// RequestError - the chat completion call itself failed (network error or a
// non-2xx upstream response).
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("analysis request: %s", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Analyzer sends one single-turn chat completion per request. No caching,
// no retries - a failed call surfaces to the user, who may resubmit.
type Analyzer struct {
	client *openai.Client
	model  string
}

func NewAnalyzer(apiKey, model string) *Analyzer {
	return &Analyzer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// NewAnalyzerWithClient is used in tests, with a client pointed at a fake
// completions endpoint.
func NewAnalyzerWithClient(client *openai.Client, model string) *Analyzer {
	return &Analyzer{
		client: client,
		model:  model,
	}
}

// Analyze sends the activity summary and the athlete's training intent to
// the model and returns its free-text response unmodified.
func (a *Analyzer) Analyze(ctx context.Context, act *activity.Activity, intent string) (analysisText string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.analyze")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int64("activity.id", act.ID),
		attribute.String("analysis.model", a.model),
	)

	prompt := BuildPrompt(act, intent)
	log.Tracef("analysis prompt (%d chars) built for activity %d", len(prompt), act.ID)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", &RequestError{Err: err}
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyAnalysis
	}

	return resp.Choices[0].Message.Content, nil
}

// BuildPrompt embeds the activity type, summary metrics, the split table
// and the training intent into one prompt. An empty intent falls back to
// DefaultIntent, so the prompt is never missing a focus.
func BuildPrompt(act *activity.Activity, intent string) string {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		intent = DefaultIntent
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this %s activity:\n", act.Type)
	fmt.Fprintf(&b, "- name: %s\n", act.Name)
	fmt.Fprintf(&b, "- date: %s\n", act.StartDateLocal.Format("2006-01-02"))
	fmt.Fprintf(&b, "- distance: %.2f miles\n", act.DistanceMiles())
	fmt.Fprintf(&b, "- moving time: %s\n", activity.SecondsToHMS(act.MovingTimeSeconds))
	if pace := act.PaceMinPerMile(); pace > 0 {
		fmt.Fprintf(&b, "- average pace: %.2f min/mile\n", pace)
	}
	fmt.Fprintf(&b, "- elevation gain: %.0f m\n", act.ElevationGainMeters)
	if act.AverageHeartRate > 0 {
		fmt.Fprintf(&b, "- average heart rate: %.0f bpm\n", act.AverageHeartRate)
	}
	if act.AverageCadence > 0 {
		fmt.Fprintf(&b, "- average cadence: %.0f\n", act.AverageCadence)
	}
	if act.Calories > 0 {
		fmt.Fprintf(&b, "- calories: %.0f\n", act.Calories)
	}

	if len(act.Splits) > 0 {
		b.WriteString("\nSplits (mile / time / pace min per mile / avg HR):\n")
		for _, split := range act.Splits {
			fmt.Fprintf(&b, "%d | %s | %.2f | %.0f\n",
				split.Number,
				activity.SecondsToHMS(split.MovingTimeSeconds),
				split.PaceMinPerMile(),
				split.AverageHeartRate,
			)
		}
	}

	fmt.Fprintf(&b, "\nFocus on: %s", intent)

	return b.String()
}
