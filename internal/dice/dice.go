package dice

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"ludo/internal/rules"
)

// Uniform draws fair values in [1,6]. It is the online die.
type Uniform struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniform constructs a Uniform die with provided rng or a time-seeded default.
func NewUniform(rng *rand.Rand) *Uniform {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Uniform{rng: rng}
}

// Roll implements rules.DiceSource.
func (u *Uniform) Roll(rules.MatchState) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rng.Intn(6) + 1
}

// Difficulty picks a weight table for the assist die.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Normal Difficulty = "normal"
	Hard   Difficulty = "hard"
)

// Weights holds the relative weight of pips 1 through 6.
type Weights [6]int

var difficultyWeights = map[Difficulty]Weights{
	Easy:   {10, 10, 11, 12, 13, 15},
	Normal: {8, 9, 10, 12, 14, 17},
	Hard:   {6, 8, 10, 13, 16, 20},
}

// WeightsFor returns the table for d.
func WeightsFor(d Difficulty) (Weights, error) {
	w, ok := difficultyWeights[Difficulty(strings.ToLower(string(d)))]
	if !ok {
		return Weights{}, fmt.Errorf("unknown difficulty %q", d)
	}
	return w, nil
}

func (w Weights) total() int {
	sum := 0
	for _, v := range w {
		sum += v
	}
	return sum
}

const (
	assistAttempts    = 8
	repeatSixSuppress = 0.35
)

// Assist is the pass-and-play die. It favors higher pips and values the
// current player can actually use.
type Assist struct {
	mu      sync.Mutex
	rng     *rand.Rand
	weights Weights
}

// NewAssist constructs an assist die. A nil rng is time-seeded.
func NewAssist(rng *rand.Rand, w Weights) (*Assist, error) {
	if w.total() <= 0 {
		return nil, fmt.Errorf("dice weights must sum to a positive value")
	}
	for i, v := range w {
		if v < 0 {
			return nil, fmt.Errorf("negative weight %d for pip %d", v, i+1)
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Assist{rng: rng, weights: w}, nil
}

// Roll implements rules.DiceSource. It never returns a value outside [1,6];
// when nothing is playable it returns 6.
func (a *Assist) Roll(s rules.MatchState) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(s.Players) == 0 {
		return a.draw()
	}
	p := s.Current()
	for i := 0; i < assistAttempts; i++ {
		v := a.draw()
		if v == 6 && s.SixStreak > 0 && a.rng.Float64() < repeatSixSuppress {
			continue
		}
		if rules.HasLegalMove(p, v) {
			return v
		}
	}
	for v := 6; v >= 1; v-- {
		if rules.HasLegalMove(p, v) {
			return v
		}
	}
	return 6
}

func (a *Assist) draw() int {
	n := a.rng.Intn(a.weights.total())
	for i, w := range a.weights {
		if n < w {
			return i + 1
		}
		n -= w
	}
	return 6
}
