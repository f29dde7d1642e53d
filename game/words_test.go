package game

import (
	"math/rand"
	"testing"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(entries []domain.WordEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Word)
	}
	return out
}

func TestWordBank_CandidatesAvoidUsedWords(t *testing.T) {
	t.Parallel()
	bank := DefaultWordBank()
	rng := rand.New(rand.NewSource(3))
	easy := words(bank.Tier(domain.DifficultyEasy))
	used := easy[:10]

	for i := 0; i < 50; i++ {
		candidates := bank.Candidates(domain.DifficultyEasy, used, CandidatesCount, rng)
		require.Len(t, candidates, CandidatesCount)
		seen := map[string]bool{}
		for _, c := range candidates {
			assert.NotContains(t, used, c.Word)
			assert.False(t, seen[c.Word], "candidates must be distinct")
			seen[c.Word] = true
		}
	}
}

func TestWordBank_ExhaustedTierResamples(t *testing.T) {
	t.Parallel()
	bank := DefaultWordBank()
	rng := rand.New(rand.NewSource(11))
	allEasy := words(bank.Tier(domain.DifficultyEasy))
	require.Len(t, allEasy, 16)

	candidates := bank.Candidates(domain.DifficultyEasy, allEasy, CandidatesCount, rng)
	assert.Len(t, candidates, CandidatesCount)
	for _, c := range candidates {
		assert.Contains(t, allEasy, c.Word)
	}

	// two unused words left is still below the candidate count
	candidates = bank.Candidates(domain.DifficultyEasy, allEasy[:14], CandidatesCount, rng)
	assert.Len(t, candidates, CandidatesCount)

	picked, ok := bank.AutoPick(domain.DifficultyEasy, allEasy, rng)
	assert.True(t, ok)
	assert.Contains(t, allEasy, picked.Word)
}

func TestWordBank_AutoPickRespectsUsedWords(t *testing.T) {
	t.Parallel()
	bank := DefaultWordBank()
	rng := rand.New(rand.NewSource(5))
	medium := words(bank.Tier(domain.DifficultyMedium))
	used := medium[1:]

	for i := 0; i < 20; i++ {
		picked, ok := bank.AutoPick(domain.DifficultyMedium, used, rng)
		require.True(t, ok)
		assert.Equal(t, medium[0], picked.Word)
	}
}

func TestWordBank_UnknownDifficultyFallsBackToEasy(t *testing.T) {
	t.Parallel()
	bank := DefaultWordBank()
	assert.Equal(t, bank.Tier(domain.DifficultyEasy), bank.Tier("impossible"))
}

func TestWordBank_EmptyBank(t *testing.T) {
	t.Parallel()
	bank := NewWordBank(map[domain.Difficulty][]domain.WordEntry{})
	rng := rand.New(rand.NewSource(1))
	assert.Empty(t, bank.Candidates(domain.DifficultyEasy, nil, 3, rng))
	_, ok := bank.AutoPick(domain.DifficultyEasy, nil, rng)
	assert.False(t, ok)
}
