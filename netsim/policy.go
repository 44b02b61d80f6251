package netsim

import (
	"fmt"
	"math/rand"
	"sync"
)

// Action is the fate of one outgoing datagram.
type Action int

const (
	Deliver Action = iota
	Drop
	Corrupt
	Duplicate
	Reorder
)

func (a Action) String() string {
	switch a {
	case Deliver:
		return "deliver"
	case Drop:
		return "drop"
	case Corrupt:
		return "corrupt"
	case Duplicate:
		return "duplicate"
	case Reorder:
		return "reorder"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Policy decides what happens to each outgoing datagram. Conn serializes
// calls to Decide.
type Policy interface {
	Decide(p []byte) Action
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(p []byte) Action

func (f PolicyFunc) Decide(p []byte) Action { return f(p) }

// Rates are independent per-datagram fault probabilities in [0, 1].
type Rates struct {
	Drop      float64
	Corrupt   float64
	Duplicate float64
	Reorder   float64
}

// Validate checks that every rate is a probability and that they sum to at
// most one.
func (r Rates) Validate() error {
	sum := 0.0
	for _, v := range []float64{r.Drop, r.Corrupt, r.Duplicate, r.Reorder} {
		if v < 0 || v > 1 {
			return fmt.Errorf("netsim: rate %v outside [0, 1]", v)
		}
		sum += v
	}
	if sum > 1 {
		return fmt.Errorf("netsim: rates sum to %v, more than 1", sum)
	}
	return nil
}

// Zero reports whether no fault is configured.
func (r Rates) Zero() bool {
	return r == Rates{}
}

type randomPolicy struct {
	mu    sync.Mutex
	rng   *rand.Rand
	rates Rates
}

// RandomPolicy applies faults with the given rates from a generator seeded
// with seed, so runs are reproducible.
func RandomPolicy(rates Rates, seed int64) Policy {
	return &randomPolicy{rng: rand.New(rand.NewSource(seed)), rates: rates}
}

func (p *randomPolicy) Decide([]byte) Action {
	p.mu.Lock()
	x := p.rng.Float64()
	p.mu.Unlock()

	for _, c := range []struct {
		rate   float64
		action Action
	}{
		{p.rates.Drop, Drop},
		{p.rates.Corrupt, Corrupt},
		{p.rates.Duplicate, Duplicate},
		{p.rates.Reorder, Reorder},
	} {
		if x < c.rate {
			return c.action
		}
		x -= c.rate
	}
	return Deliver
}

// EveryNth applies action to every n-th datagram, counting from 1.
func EveryNth(n int, action Action) Policy {
	count := 0
	return PolicyFunc(func([]byte) Action {
		count++
		if n > 0 && count%n == 0 {
			return action
		}
		return Deliver
	})
}

// Script applies actions to the first len(actions) datagrams in order and
// delivers everything after.
func Script(actions ...Action) Policy {
	i := 0
	return PolicyFunc(func([]byte) Action {
		if i >= len(actions) {
			return Deliver
		}
		a := actions[i]
		i++
		return a
	})
}

// Once applies action to the first datagram for which match returns true.
func Once(match func(p []byte) bool, action Action) Policy {
	used := false
	return PolicyFunc(func(p []byte) Action {
		if !used && match(p) {
			used = true
			return action
		}
		return Deliver
	})
}
