package annotation

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/lewtec/mosaico/internal/domain"
)

// QueueState is derived from the cursor position
type QueueState int

const (
	NotStarted QueueState = iota
	InProgress
	Complete
)

func (s QueueState) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case InProgress:
		return "in progress"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Constraints bound numeric columns of eligible rows, inclusive on both ends
type Constraints struct {
	Min map[string]float64
	Max map[string]float64
}

// check fails for a constraint on a column the table does not have
func (c Constraints) check(store *Store) error {
	for _, bound := range []struct {
		option string
		values map[string]float64
	}{{"min_values", c.Min}, {"max_values", c.Max}} {
		for _, col := range sortedKeys(bound.values) {
			if !store.HasColumn(col) {
				return &domain.ConfigurationError{Option: bound.option, Reason: fmt.Sprintf("%s is not a column in the table", col)}
			}
		}
	}
	return nil
}

// Eligible reports whether the row is unlabeled in the active column and
// satisfies every constraint at once
func (c Constraints) Eligible(p *domain.Patch, mode domain.Mode) bool {
	label := p.Label
	if mode == domain.ModeContext {
		label = p.ContextLabel
	}
	if label != "" {
		return false
	}
	for col, minValue := range c.Min {
		v, ok := numberOf(p, col)
		if !ok || !(v >= minValue) {
			return false
		}
	}
	for col, maxValue := range c.Max {
		v, ok := numberOf(p, col)
		if !ok || !(v <= maxValue) {
			return false
		}
	}
	return true
}

// BuildQueue returns the eligible row keys in a uniformly shuffled order
// drawn from rng
func BuildQueue(store *Store, mode domain.Mode, constraints Constraints, rng *rand.Rand) ([]string, error) {
	if err := constraints.check(store); err != nil {
		return nil, err
	}
	keys := make([]string, 0, store.Len())
	for _, key := range store.order {
		if constraints.Eligible(store.rows[key], mode) {
			keys = append(keys, key)
		}
	}
	rng.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
	return keys, nil
}

// Queue is the fixed traversal order of one annotation pass plus its cursor
type Queue struct {
	keys     []string
	current  int
	previous int
}

// NewQueue wraps keys in a cursor that has not started yet
func NewQueue(keys []string) *Queue {
	return &Queue{keys: keys, current: -1, previous: 0}
}

// Len is the number of rows in the pass
func (q *Queue) Len() int { return len(q.keys) }

// Keys returns the traversal order
func (q *Queue) Keys() []string { return append([]string(nil), q.keys...) }

// Index is the cursor position, -1 before the first advance
func (q *Queue) Index() int { return q.current }

// PreviousIndex is the cursor position before the last move
func (q *Queue) PreviousIndex() int { return q.previous }

// State derives the pass state from the cursor
func (q *Queue) State() QueueState {
	switch {
	case q.current < 0:
		return NotStarted
	case q.current >= len(q.keys):
		return Complete
	default:
		return InProgress
	}
}

// Current is the focal row key, empty when there is none
func (q *Queue) Current() string {
	if q.current < 0 || q.current >= len(q.keys) {
		return ""
	}
	return q.keys[q.current]
}

// Advance moves to the next row. At the terminal position it reports
// completion and leaves the cursor where it is.
func (q *Queue) Advance() (string, bool) {
	if q.current == len(q.keys) {
		return "", true
	}
	q.previous = q.current
	q.current++
	if q.current == len(q.keys) {
		return "", true
	}
	return q.keys[q.current], false
}

// Retreat moves to the previous row. At the terminal position it reports
// completion, like Advance does, instead of stepping back into the queue.
// At the first row it stays put.
func (q *Queue) Retreat() (string, bool) {
	if q.current == len(q.keys) {
		return "", true
	}
	if q.current > 0 {
		q.previous = q.current
		q.current--
	}
	return q.Current(), false
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
