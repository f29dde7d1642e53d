package game

import "github.com/lishuceo/draw-and-guess/domain"

// CandidatesCount is how many words the drawer is offered.
const CandidatesCount = 3

// RandomSource is the subset of *rand.Rand the game needs. Tests inject a seeded source.
type RandomSource interface {
	Intn(n int) int
}

type WordBank struct {
	tiers map[domain.Difficulty][]domain.WordEntry
}

func NewWordBank(tiers map[domain.Difficulty][]domain.WordEntry) *WordBank {
	return &WordBank{tiers: tiers}
}

func DefaultWordBank() *WordBank {
	return NewWordBank(defaultTiers)
}

// Tier returns the vocabulary for difficulty, falling back to easy for unknown values.
func (wb *WordBank) Tier(difficulty domain.Difficulty) []domain.WordEntry {
	if tier, ok := wb.tiers[difficulty]; ok && len(tier) > 0 {
		return tier
	}
	return wb.tiers[domain.DifficultyEasy]
}

// Candidates draws up to count distinct entries not present in used. When fewer than count
// unused entries remain it samples from the whole tier instead, so repeats become possible
// but the drawer is never offered an empty list.
func (wb *WordBank) Candidates(difficulty domain.Difficulty, used []string, count int, rng RandomSource) []domain.WordEntry {
	tier := wb.Tier(difficulty)
	pool := unusedEntries(tier, used)
	if len(pool) < count {
		pool = append([]domain.WordEntry(nil), tier...)
	}
	shuffle(pool, rng)
	if count > len(pool) {
		count = len(pool)
	}
	return pool[:count]
}

// AutoPick chooses one entry for a drawer who let the selection window lapse. It follows the
// same avoid-repeats rule as Candidates.
func (wb *WordBank) AutoPick(difficulty domain.Difficulty, used []string, rng RandomSource) (domain.WordEntry, bool) {
	tier := wb.Tier(difficulty)
	pool := unusedEntries(tier, used)
	if len(pool) == 0 {
		pool = tier
	}
	if len(pool) == 0 {
		return domain.WordEntry{}, false
	}
	return pool[rng.Intn(len(pool))], true
}

func unusedEntries(tier []domain.WordEntry, used []string) []domain.WordEntry {
	usedSet := make(map[string]struct{}, len(used))
	for _, w := range used {
		usedSet[w] = struct{}{}
	}
	pool := make([]domain.WordEntry, 0, len(tier))
	for _, e := range tier {
		if _, ok := usedSet[e.Word]; !ok {
			pool = append(pool, e)
		}
	}
	return pool
}

// Fisher-Yates.
func shuffle[T any](s []T, rng RandomSource) {
	for i := len(s) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

var defaultTiers = map[domain.Difficulty][]domain.WordEntry{
	domain.DifficultyEasy: {
		{Word: "apple", Category: "fruit"},
		{Word: "cat", Category: "animal"},
		{Word: "sun", Category: "nature"},
		{Word: "book", Category: "object"},
		{Word: "dog", Category: "animal"},
		{Word: "banana", Category: "fruit"},
		{Word: "moon", Category: "nature"},
		{Word: "flower", Category: "plant"},
		{Word: "fish", Category: "animal"},
		{Word: "tree", Category: "plant"},
		{Word: "star", Category: "nature"},
		{Word: "ball", Category: "object"},
		{Word: "bird", Category: "animal"},
		{Word: "cloud", Category: "nature"},
		{Word: "car", Category: "vehicle"},
		{Word: "house", Category: "building"},
	},
	domain.DifficultyMedium: {
		{Word: "bicycle", Category: "vehicle"},
		{Word: "guitar", Category: "instrument"},
		{Word: "elephant", Category: "animal"},
		{Word: "computer", Category: "electronics"},
		{Word: "airplane", Category: "vehicle"},
		{Word: "piano", Category: "instrument"},
		{Word: "panda", Category: "animal"},
		{Word: "phone", Category: "electronics"},
		{Word: "train", Category: "vehicle"},
		{Word: "violin", Category: "instrument"},
		{Word: "giraffe", Category: "animal"},
		{Word: "camera", Category: "electronics"},
		{Word: "ship", Category: "vehicle"},
		{Word: "drum", Category: "instrument"},
		{Word: "tiger", Category: "animal"},
		{Word: "glasses", Category: "object"},
	},
	domain.DifficultyHard: {
		{Word: "mona lisa", Category: "art"},
		{Word: "telescope", Category: "science"},
		{Word: "roller coaster", Category: "entertainment"},
		{Word: "great wall", Category: "landmark"},
		{Word: "statue of liberty", Category: "landmark"},
		{Word: "microscope", Category: "science"},
		{Word: "ferris wheel", Category: "entertainment"},
		{Word: "eiffel tower", Category: "landmark"},
		{Word: "astronaut", Category: "occupation"},
		{Word: "pyramid", Category: "landmark"},
		{Word: "dinosaur", Category: "history"},
		{Word: "pirate ship", Category: "entertainment"},
		{Word: "lighthouse", Category: "landmark"},
		{Word: "robot", Category: "technology"},
		{Word: "carousel", Category: "entertainment"},
		{Word: "terracotta army", Category: "history"},
	},
}
