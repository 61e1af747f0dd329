package ml

import (
	"context"
	"math"
	"sync"
)

// Scorer is the online (per record) anomaly scorer. Called once per record, in record order.
type Scorer interface {
	Score(ctx context.Context, features map[string]float64) (float64, error)
}

type stats struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	M2   float64 `json:"m2"`
}

func (s *stats) std() float64 {
	if s.N < 2 {
		return 0
	}
	return math.Sqrt(s.M2 / float64(s.N-1))
}

func (s *stats) add(x float64) {
	s.N++
	d := x - s.Mean
	s.Mean += d / float64(s.N)
	s.M2 += d * (x - s.Mean)
}

// ZScore learns a running mean/std per feature (Welford) and maps |z| to [0,1)
// as |z|/(|z|+k). With the default k=2 and a 0.6 threshold a record becomes a
// candidate at |z| > 3.
type ZScore struct {
	mu     sync.Mutex
	k      float64
	warmup int
	keys   map[string]*stats
}

func NewZScore(k float64, warmup int) *ZScore {
	if k <= 0 {
		k = 2
	}
	return &ZScore{k: k, warmup: warmup, keys: map[string]*stats{}}
}

// Score rates the record against what was learned so far, then learns it.
// The highest per-feature score wins.
func (z *ZScore) Score(_ context.Context, features map[string]float64) (float64, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	best := 0.0
	for key, x := range features {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		st := z.keys[key]
		if st == nil {
			st = &stats{}
			z.keys[key] = st
		}
		if st.N >= z.warmup && st.N > 0 {
			if sc := z.score(st, x); sc > best {
				best = sc
			}
		}
		st.add(x)
	}
	return best, nil
}

func (z *ZScore) score(st *stats, x float64) float64 {
	d := math.Abs(x - st.Mean)
	sd := st.std()
	if sd == 0 {
		if d == 0 {
			return 0
		}
		return 1
	}
	a := d / sd
	return a / (a + z.k)
}

// Reset forgets everything learned; called at session start.
func (z *ZScore) Reset() {
	z.mu.Lock()
	z.keys = map[string]*stats{}
	z.mu.Unlock()
}
