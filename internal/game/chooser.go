package game

import (
	"math/rand/v2"
	"sync"

	"rps-tracker/internal/domain"
)

// Chooser picks the computer's move.
type Chooser interface {
	Choose() domain.Choice
}

type RandomChooser struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomChooser uses src when given, otherwise a freshly seeded PCG.
func NewRandomChooser(src rand.Source) *RandomChooser {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &RandomChooser{rng: rand.New(src)}
}

func (c *RandomChooser) Choose() domain.Choice {
	c.mu.Lock()
	i := c.rng.IntN(len(domain.Choices))
	c.mu.Unlock()
	return domain.Choices[i]
}

// FixedChooser always returns the same choice.
type FixedChooser domain.Choice

func (c FixedChooser) Choose() domain.Choice {
	return domain.Choice(c)
}

// SequenceChooser replays a scripted list of choices, wrapping around.
type SequenceChooser struct {
	mu      sync.Mutex
	choices []domain.Choice
	next    int
}

func NewSequenceChooser(choices ...domain.Choice) *SequenceChooser {
	if len(choices) == 0 {
		choices = []domain.Choice{domain.Rock}
	}
	return &SequenceChooser{choices: choices}
}

func (c *SequenceChooser) Choose() domain.Choice {
	c.mu.Lock()
	defer c.mu.Unlock()
	choice := c.choices[c.next%len(c.choices)]
	c.next++
	return choice
}
