package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lingua-dev/lingua/internal/domain"
	"github.com/lingua-dev/lingua/internal/identity"
	"github.com/lingua-dev/lingua/internal/store"
)

// SessionSummary rolls the per-utterance analyses of one session into a
// single record.
type SessionSummary struct {
	SessionID          string    `json:"session_id"`
	CreatedAt          time.Time `json:"created_at"`
	UtteranceCount     int       `json:"utterance_count"`
	AverageWords       float64   `json:"average_words"`
	TotalGrammarPoints int       `json:"total_grammar_points"`
	CoreWordDiversity  int       `json:"core_word_diversity"`
}

// Trends holds parallel per-session sequences in chronological order.
type Trends struct {
	GrammarPoints     []int `json:"grammar_points"`
	CoreWordDiversity []int `json:"core_word_diversity"`
	UtteranceCount    []int `json:"utterance_count"`
}

// GrowthSummary is the cross-session growth view for one user.
type GrowthSummary struct {
	ChildName string           `json:"child_name"`
	Sessions  []SessionSummary `json:"sessions"`
	Trends    Trends           `json:"trends"`
}

// Aggregator replays stored transcripts through the utterance analyzer and
// produces growth summaries. It holds no state of its own.
type Aggregator struct {
	repo store.Repository
}

// NewAggregator creates an aggregator over the given repository.
func NewAggregator(repo store.Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// BuildGrowthSummary analyzes every session of the user in chronological
// order. Sessions without turns contribute nothing; a session whose
// transcript cannot be fetched is skipped with a logged warning so one bad
// read does not sink the whole report.
func (a *Aggregator) BuildGrowthSummary(ctx context.Context, userID string) (*GrowthSummary, error) {
	userID = identity.SanitizeUserID(userID)
	if userID == "" {
		return nil, store.ErrInvalidUserID
	}

	progress, err := a.repo.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user progress: %w", err)
	}

	sessions := append([]domain.SessionProgress(nil), progress.Sessions...)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	summary := &GrowthSummary{ChildName: userID}
	for _, info := range sessions {
		if info.TurnCount == 0 {
			continue
		}

		transcript, err := a.repo.GetTranscript(ctx, info.SessionID)
		if err != nil {
			slog.Warn("skipping session in growth summary",
				"session_id", info.SessionID,
				"error", err)
			continue
		}

		sessionSummary := summarizeSession(transcript)
		summary.Sessions = append(summary.Sessions, sessionSummary)
		summary.Trends.GrammarPoints = append(summary.Trends.GrammarPoints, sessionSummary.TotalGrammarPoints)
		summary.Trends.CoreWordDiversity = append(summary.Trends.CoreWordDiversity, sessionSummary.CoreWordDiversity)
		summary.Trends.UtteranceCount = append(summary.Trends.UtteranceCount, sessionSummary.UtteranceCount)
	}

	return summary, nil
}

// summarizeSession analyzes the child side of every turn. Turns without
// child speech are skipped entirely.
func summarizeSession(transcript *domain.Transcript) SessionSummary {
	summary := SessionSummary{
		SessionID: transcript.Session.SessionID,
		CreatedAt: transcript.Session.CreatedAt,
	}

	totalWords := 0
	distinctCore := make(map[string]bool)
	for _, turn := range transcript.Turns {
		utterance := strings.TrimSpace(turn.Child)
		if utterance == "" {
			continue
		}
		result := Analyze(utterance)
		summary.UtteranceCount++
		totalWords += result.WordCount
		summary.TotalGrammarPoints += result.Grammar.Points
		for _, w := range result.CoreWordsUsed {
			distinctCore[w] = true
		}
	}

	if summary.UtteranceCount > 0 {
		summary.AverageWords = float64(totalWords) / float64(summary.UtteranceCount)
	}
	summary.CoreWordDiversity = len(distinctCore)
	return summary
}

// RenderReport renders the growth summary as a deterministic multi-line
// human-readable report.
func RenderReport(summary *GrowthSummary) string {
	if len(summary.Sessions) == 0 {
		return fmt.Sprintf("No sessions available for %s.", summary.ChildName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Growth Report for %s\n\n", summary.ChildName)

	for i, session := range summary.Sessions {
		fmt.Fprintf(&b, "Session %d (%s):\n", i+1, session.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
		fmt.Fprintf(&b, "  Utterances: %d\n", session.UtteranceCount)
		fmt.Fprintf(&b, "  Avg words per utterance: %.2f\n", session.AverageWords)
		fmt.Fprintf(&b, "  Total grammar points: %d\n", session.TotalGrammarPoints)
		fmt.Fprintf(&b, "  Core word diversity: %d\n\n", session.CoreWordDiversity)
	}

	b.WriteString("Trends:\n")
	fmt.Fprintf(&b, "  Grammar points per session: %s\n", joinInts(summary.Trends.GrammarPoints))
	fmt.Fprintf(&b, "  Core word diversity per session: %s\n", joinInts(summary.Trends.CoreWordDiversity))
	fmt.Fprintf(&b, "  Utterance count per session: %s", joinInts(summary.Trends.UtteranceCount))

	return b.String()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
