package services

import (
	"fmt"
)

// AwardScoreRuleVersion tags the rule set stored on applications so a
// later rule change is distinguishable in old rows.
const AwardScoreRuleVersion = "2026-02-25-v1"

// AwardScoreRule is the scoring rule for one award uid.
//
// Score semantics:
//   - non-zero: the award carries a fixed score, submitted values are
//     overridden
//   - exactly zero: the student must submit a score (capped by MaxScore
//     when set)
//   - nil: the rule permits a null score
type AwardScoreRule struct {
	Score    *float64
	MaxScore *float64
}

// ScoreResolver maps an award uid plus an optional submitted score to
// the score that gets stored. Pure lookup, no side effects.
type ScoreResolver interface {
	Resolve(awardUID int, submitted *float64) (*float64, error)
	RuleVersion() string
}

// AwardScoreTable is the table-driven ScoreResolver.
type AwardScoreTable struct {
	version string
	rules   map[int]AwardScoreRule
}

func NewAwardScoreTable(version string, rules map[int]AwardScoreRule) *AwardScoreTable {
	return &AwardScoreTable{version: version, rules: rules}
}

func ptr(v float64) *float64 { return &v }

// DefaultAwardScoreTable holds the built-in award dictionary.
func DefaultAwardScoreTable() *AwardScoreTable {
	return NewAwardScoreTable(AwardScoreRuleVersion, map[int]AwardScoreRule{
		// fixed-score awards
		101: {Score: ptr(10)},
		102: {Score: ptr(8)},
		103: {Score: ptr(5)},
		104: {Score: ptr(3)},
		201: {Score: ptr(15)},
		202: {Score: ptr(12)},
		// self-scored awards, capped
		301: {Score: ptr(0), MaxScore: ptr(20)},
		302: {Score: ptr(0), MaxScore: ptr(10)},
		303: {Score: ptr(0)},
		// recorded without a score
		401: {},
	})
}

func (t *AwardScoreTable) RuleVersion() string { return t.version }

func (t *AwardScoreTable) Resolve(awardUID int, submitted *float64) (*float64, error) {
	rule, ok := t.rules[awardUID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown award uid %d", ErrInvalidScore, awardUID)
	}
	if rule.Score == nil {
		// rule permits a null score; a submitted value passes through
		return submitted, nil
	}
	if *rule.Score != 0 {
		s := *rule.Score
		return &s, nil
	}
	if submitted == nil {
		return nil, fmt.Errorf("%w: award uid %d requires a submitted score", ErrInvalidScore, awardUID)
	}
	if *submitted < 0 {
		return nil, fmt.Errorf("%w: score must not be negative", ErrInvalidScore)
	}
	if rule.MaxScore != nil && *submitted > *rule.MaxScore {
		return nil, fmt.Errorf("%w: score %.2f exceeds max %.2f for award uid %d",
			ErrInvalidScore, *submitted, *rule.MaxScore, awardUID)
	}
	s := *submitted
	return &s, nil
}
