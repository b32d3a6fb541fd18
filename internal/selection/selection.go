// Package selection picks the next item for a CAT session by maximum
// Fisher information at the current ability estimate.
package selection

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/abhisek/catengine/internal/irt"
)

// DefaultShortlistSize is how many unanswered pool items are scored per pick.
const DefaultShortlistSize = 50

// ErrPoolExhausted is returned when every pool item has been answered.
var ErrPoolExhausted = errors.New("selection: no unanswered items in pool")

// ParamEnsurer returns parameters for ids, initializing missing rows first.
type ParamEnsurer interface {
	Ensure(ctx context.Context, ids []string) (map[string]irt.Params, error)
}

// Choice is the outcome of one selection.
type Choice struct {
	QuestionID  string
	Information float64
	Params      irt.Params
	Random      bool // chosen by the uniform fallback
}

// Selector chooses items. It is safe for concurrent use.
type Selector struct {
	params    ParamEnsurer
	shortlist int

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Selector. shortlist <= 0 uses DefaultShortlistSize and a
// nil rng uses a randomly seeded source.
func New(params ParamEnsurer, shortlist int, rng *rand.Rand) *Selector {
	if shortlist <= 0 {
		shortlist = DefaultShortlistSize
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{params: params, shortlist: shortlist, rng: rng}
}

// Select returns the most informative unanswered item at theta. Ties keep
// the earliest item in pool order. When nothing carries information, a
// uniformly random unanswered item is returned instead.
func (s *Selector) Select(ctx context.Context, theta float64, pool []string, answered map[string]bool) (Choice, error) {
	unanswered := Unanswered(pool, answered)
	if len(unanswered) == 0 {
		return Choice{}, ErrPoolExhausted
	}

	shortlist := unanswered
	if len(shortlist) > s.shortlist {
		shortlist = shortlist[:s.shortlist]
	}

	params, err := s.params.Ensure(ctx, shortlist)
	if err != nil {
		return Choice{}, fmt.Errorf("ensure shortlist params: %w", err)
	}

	best := Choice{}
	for _, id := range shortlist {
		p, ok := params[id]
		if !ok {
			continue
		}
		info := irt.Information(theta, p)
		if info > best.Information {
			best = Choice{QuestionID: id, Information: info, Params: p}
		}
	}
	if best.QuestionID != "" {
		return best, nil
	}

	id := s.pick(unanswered)
	choice := Choice{QuestionID: id, Random: true}
	if _, ok := params[id]; !ok && len(unanswered) > len(shortlist) {
		// The pick may lie beyond the shortlist, whose params were never ensured.
		extra, err := s.params.Ensure(ctx, []string{id})
		if err != nil {
			return Choice{}, fmt.Errorf("ensure fallback params: %w", err)
		}
		params = extra
	}
	if p, ok := params[id]; ok {
		choice.Params = p
		choice.Information = irt.Information(theta, p)
	}
	return choice, nil
}

func (s *Selector) pick(ids []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ids[s.rng.IntN(len(ids))]
}

// Unanswered filters pool down to items not in answered, keeping pool order.
func Unanswered(pool []string, answered map[string]bool) []string {
	out := make([]string, 0, len(pool))
	for _, id := range pool {
		if !answered[id] {
			out = append(out, id)
		}
	}
	return out
}
