package snapshot

import (
	"github.com/inkfold/inkfold/pkg/editlog"
)

// DegradeStep names one detail-dropping pass applied when the estimate
// exceeds the budget. The order of steps is policy, not a hidden
// constant.
type DegradeStep string

const (
	// StepShortenSections halves section summaries to their lead text.
	StepShortenSections DegradeStep = "shorten_sections"
	// StepDropLowPriorityEdits keeps only the two newest recent edits.
	StepDropLowPriorityEdits DegradeStep = "drop_low_priority_edits"
	// StepDropMinorCharacters drops minor and mentioned characters from
	// the active set and presence map.
	StepDropMinorCharacters DegradeStep = "drop_minor_characters"
	// StepDropSupportingCharacters additionally drops supporting
	// characters. Protagonist and antagonist data is never dropped by
	// the default policy.
	StepDropSupportingCharacters DegradeStep = "drop_supporting_characters"
	// StepDropAlignmentDetail clears section summaries, markers, and
	// the alignment map entirely.
	StepDropAlignmentDetail DegradeStep = "drop_alignment_detail"
)

// BudgetPolicy bounds a snapshot's estimated token cost. Order lists the
// degradation passes tried in sequence until the estimate fits.
type BudgetPolicy struct {
	TokenBudget int
	Order       []DegradeStep
}

// DefaultBudgetPolicy returns the documented default degradation order:
// shorten section summaries, drop low-priority edits, drop
// minor/mentioned characters, drop supporting characters, then drop
// alignment detail.
func DefaultBudgetPolicy() BudgetPolicy {
	return BudgetPolicy{
		TokenBudget: 4000,
		Order: []DegradeStep{
			StepShortenSections,
			StepDropLowPriorityEdits,
			StepDropMinorCharacters,
			StepDropSupportingCharacters,
			StepDropAlignmentDetail,
		},
	}
}

// EstimateTokens approximates cost as total assembled text length over
// four. Nothing in scope tokenizes for real; the estimate only needs to
// be monotone in content size.
func EstimateTokens(s *Snapshot) int {
	n := len(s.ProjectSummary) + len(s.DocumentSummary)
	for _, sec := range s.SectionSummaries {
		n += len(sec.Title) + len(sec.Summary)
		for _, kp := range sec.KeyPoints {
			n += len(kp)
		}
	}
	for _, e := range s.RecentEdits {
		n += len(e.Snippet) + 16
	}
	for _, m := range s.Markers {
		n += len(m.Label) + 16
	}
	n += 24 * len(s.ActiveCharacterIDs)
	n += 24 * len(s.ActiveOutlineNodeIDs)
	n += 32 * len(s.Presence)
	n += 32 * len(s.Alignment)
	return n / 4
}

func nextLevel(l CompressionLevel) CompressionLevel {
	switch l {
	case CompressionFull:
		return CompressionStandard
	case CompressionStandard:
		return CompressionCompact
	default:
		return CompressionMinimal
	}
}

// applyBudget degrades the snapshot in policy order until the estimate
// fits the budget or the steps run out. Each applied step lowers the
// compression level one notch (floor: minimal).
func applyBudget(s *Snapshot, policy BudgetPolicy, roleOf func(id string) int) {
	s.CompressionLevel = CompressionFull
	s.TokenEstimate = EstimateTokens(s)
	if policy.TokenBudget <= 0 {
		return
	}

	for _, step := range policy.Order {
		if s.TokenEstimate <= policy.TokenBudget {
			return
		}
		switch step {
		case StepShortenSections:
			for i := range s.SectionSummaries {
				sec := &s.SectionSummaries[i]
				sec.Summary = truncate(sec.Summary, 80)
				sec.KeyPoints = nil
			}
		case StepDropLowPriorityEdits:
			if len(s.RecentEdits) > 2 {
				s.RecentEdits = s.RecentEdits[:2]
			}
		case StepDropMinorCharacters:
			dropCharactersBelow(s, 3, roleOf) // keeps supporting and up
		case StepDropSupportingCharacters:
			dropCharactersBelow(s, 6, roleOf) // keeps antagonist and up
		case StepDropAlignmentDetail:
			s.SectionSummaries = nil
			s.Markers = nil
			s.Alignment = nil
		}
		s.CompressionLevel = nextLevel(s.CompressionLevel)
		s.TokenEstimate = EstimateTokens(s)
	}
}

// dropCharactersBelow removes characters whose role weight is under
// minWeight from the active set and presence map.
func dropCharactersBelow(s *Snapshot, minWeight int, roleOf func(id string) int) {
	kept := s.ActiveCharacterIDs[:0]
	for _, id := range s.ActiveCharacterIDs {
		if roleOf(id) >= minWeight {
			kept = append(kept, id)
		}
	}
	s.ActiveCharacterIDs = kept
	for id := range s.Presence {
		if roleOf(id) < minWeight {
			delete(s.Presence, id)
		}
	}
}

// trimEdits caps the overall recent-edit list carried by a snapshot.
func trimEdits(edits []editlog.RecentEdit, max int) []editlog.RecentEdit {
	if len(edits) > max {
		return edits[:max]
	}
	return edits
}
