// internal/signal/extractor.go
package signal

import (
	"context"
	"log/slog"
	"strings"

	"github.com/user/auticonnect/internal/generator"
	"github.com/user/auticonnect/internal/types"
)

// Classifier is the scoring oracle. The extractor treats it as fallible and
// falls back to heuristics when it errors.
type Classifier interface {
	Classify(ctx context.Context, text string, cc generator.ChatContext) (*generator.Classification, error)
}

// Signal component weights. The classifier verdict is the primary signal,
// participant-specific triggers weigh high, and local text heuristics are a
// low-weight tiebreaker. On the degraded path only the local components
// remain and split the weight between them.
const (
	classifierWeight = 0.65
	triggerWeight    = 0.25
	heuristicWeight  = 0.10

	degradedTriggerWeight   = 0.5
	degradedHeuristicWeight = 0.5
)

// respondRecency is how many preceding turns count as "responding to"
// another participant; absenceSpan is how many trailing window turns without
// the speaker count as disengagement.
const (
	respondRecency = 3
	absenceSpan    = 10
)

// Extractor turns a raw message plus conversational context into a Signal.
type Extractor struct {
	classifier Classifier
}

// New creates an Extractor over the given classifier.
func New(classifier Classifier) *Extractor {
	return &Extractor{classifier: classifier}
}

// Extract computes the Signal for one turn. It never returns an error: when
// the classifier is unavailable the result is computed from heuristics alone
// and tagged Degraded so downstream weighting can discount it.
func (e *Extractor) Extract(ctx context.Context, text string, profile *types.Participant, cc generator.ChatContext) types.Signal {
	trigger := triggerScore(text, profile)
	heuristic := heuristicScore(text, cc.Turns)

	sig := types.Signal{
		EngagementDelta: engagementDelta(profile.ID, cc.Turns),
	}

	cls, err := e.classifier.Classify(ctx, text, cc)
	if err != nil {
		slog.Warn("classifier unavailable, using heuristic signal",
			"participant", string(profile.ID), "error", err)
		sig.Degraded = true
		sig.AnxietyScore = clamp(degradedTriggerWeight*trigger + degradedHeuristicWeight*heuristic)
		return sig
	}

	sig.AnxietyScore = clamp(classifierWeight*cls.Distress + triggerWeight*trigger + heuristicWeight*heuristic)
	sig.TopicDrift = !cls.OnTopic
	return sig
}

// triggerScore is 100 when the message mentions one of the participant's
// known anxiety triggers, 0 otherwise.
func triggerScore(text string, profile *types.Participant) float64 {
	lower := strings.ToLower(text)
	for _, trigger := range profile.AnxietyTriggers {
		t := strings.ToLower(strings.TrimSpace(trigger))
		if t != "" && strings.Contains(lower, t) {
			return 100
		}
	}
	return 0
}

// distressWords is the fallback lexicon used when the classifier is down.
var distressWords = []string{
	"socorro", "pânico", "panico", "ansioso", "ansiosa", "ansiedade",
	"medo", "não aguento", "nao aguento", "desespero", "sozinho", "sozinha",
	"quero sair", "me ajuda",
}

// heuristicScore estimates distress from the text alone: lexicon hits,
// repeated punctuation, shouting, and message-length anomalies.
func heuristicScore(text string, window []*types.Turn) float64 {
	var score float64
	lower := strings.ToLower(text)

	for _, w := range distressWords {
		if strings.Contains(lower, w) {
			score += 25
			if score >= 75 {
				score = 75
				break
			}
		}
	}

	if strings.Contains(text, "!!") || strings.Contains(text, "??") {
		score += 15
	}

	if isShouting(text) {
		score += 20
	}

	if isLengthAnomaly(text, window) {
		score += 10
	}

	return clamp(score)
}

// isShouting reports whether a message of meaningful length is mostly caps.
func isShouting(text string) bool {
	var letters, upper int
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			letters++
		case r >= 'A' && r <= 'Z':
			letters++
			upper++
		}
	}
	return letters >= 8 && float64(upper)/float64(letters) > 0.7
}

// isLengthAnomaly reports whether the message is far longer than the recent
// window average.
func isLengthAnomaly(text string, window []*types.Turn) bool {
	if len(window) < 3 {
		return len(text) > 600
	}
	var total int
	for _, t := range window {
		total += len(t.Text)
	}
	avg := float64(total) / float64(len(window))
	return avg > 0 && float64(len(text)) > 4*avg
}

// engagementDelta is +1 when the turn responds to another participant within
// the recency window, -1 when the speaker has been absent from the recent
// window, 0 otherwise.
func engagementDelta(speaker types.ParticipantID, window []*types.Turn) int {
	if len(window) == 0 {
		return 0
	}

	// A long personal silence outweighs the fact that someone else spoke
	// recently: the first turn after an absence still flags the gap.
	if len(window) >= absenceSpan {
		absent := true
		for _, t := range window[len(window)-absenceSpan:] {
			if t.Speaker == speaker {
				absent = false
				break
			}
		}
		if absent {
			return -1
		}
	}

	start := len(window) - respondRecency
	if start < 0 {
		start = 0
	}
	for _, t := range window[start:] {
		if t.Speaker != speaker {
			return 1
		}
	}

	return 0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
