// Package rng is the single seeded randomness source of a run. A *RNG is
// created once per run and passed explicitly to every stochastic handler
// call; nothing in the simulation may reach for an ambient source.
package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const seedDomain = "InsMarket:rng:v1"

// RNG wraps a ChaCha8 stream. The generator state is the one field of a run
// that is not reconstructible from the log; reproducibility comes from
// reseeding.
type RNG struct {
	src *rand.ChaCha8
	r   *rand.Rand
}

// New derives the ChaCha8 key from the 64-bit run seed.
func New(seed uint64) *RNG {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	key := sha256.Sum256(append([]byte(seedDomain), buf[:]...))

	src := rand.NewChaCha8(key)
	return &RNG{src: src, r: rand.New(src)}
}

// Source exposes the underlying stream for distribution samplers.
func (g *RNG) Source() rand.Source {
	return g.src
}

// IntN returns a uniform int in [0, n). n <= 0 yields 0.
func (g *RNG) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return g.r.IntN(n)
}

// Between returns a uniform int in [lo, hi].
func (g *RNG) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.r.IntN(hi-lo+1)
}

func (g *RNG) Float64() float64 {
	return g.r.Float64()
}

// Poisson draws an occurrence count. Non-positive rates yield zero without
// consuming the stream.
func (g *RNG) Poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: g.src}.Rand())
}

func (g *RNG) LogNormal(mu, sigma float64) float64 {
	return distuv.LogNormal{Mu: mu, Sigma: sigma, Src: g.src}.Rand()
}

// Pareto draws from a Pareto(scale, shape) distribution; every draw is at
// least scale.
func (g *RNG) Pareto(scale, shape float64) float64 {
	return distuv.Pareto{Xm: scale, Alpha: shape, Src: g.src}.Rand()
}

// Fraction clips a damage draw into [0, 1].
func Fraction(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	return math.Min(x, 1)
}
