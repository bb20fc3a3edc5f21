package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFixedRuleOverridesSubmitted(t *testing.T) {
	table := DefaultAwardScoreTable()

	score, err := table.Resolve(101, floatPtr(5))
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 10.0, *score)
}

func TestResolveZeroRuleRequiresSubmitted(t *testing.T) {
	table := DefaultAwardScoreTable()

	_, err := table.Resolve(301, nil)
	assert.ErrorIs(t, err, ErrInvalidScore)

	score, err := table.Resolve(301, floatPtr(12))
	require.NoError(t, err)
	assert.Equal(t, 12.0, *score)
}

func TestResolveZeroRuleCapsAtMax(t *testing.T) {
	table := DefaultAwardScoreTable()

	_, err := table.Resolve(301, floatPtr(25))
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = table.Resolve(301, floatPtr(-1))
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestResolveNilRulePermitsNullScore(t *testing.T) {
	table := DefaultAwardScoreTable()

	score, err := table.Resolve(401, nil)
	require.NoError(t, err)
	assert.Nil(t, score)

	score, err = table.Resolve(401, floatPtr(7))
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 7.0, *score)
}

func TestResolveUnknownAward(t *testing.T) {
	table := DefaultAwardScoreTable()

	_, err := table.Resolve(99999, floatPtr(1))
	assert.ErrorIs(t, err, ErrInvalidScore)
}
