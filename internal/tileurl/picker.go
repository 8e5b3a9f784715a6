package tileurl

import (
	"math/rand/v2"
	"strings"
	"sync/atomic"
)

// Picker chooses one alias host for a {$serverpart} placeholder of tile
// (z,x,y). It is called once per resolved URL and must be safe for
// concurrent use.
type Picker interface {
	Pick(aliases []string, z, x, y int) string
}

// ByTile derives the alias from the tile address, so a tile always maps to
// the same host and documents are reproducible across requests.
type ByTile struct{}

func (ByTile) Pick(aliases []string, _, x, y int) string {
	if len(aliases) == 0 {
		return ""
	}
	return aliases[(x+y)%len(aliases)]
}

// RoundRobin cycles through the aliases with a counter shared by every
// request. The same tile gets a different host on each call.
type RoundRobin struct {
	n atomic.Uint64
}

func (p *RoundRobin) Pick(aliases []string, _, _, _ int) string {
	if len(aliases) == 0 {
		return ""
	}
	i := p.n.Add(1) - 1
	return aliases[i%uint64(len(aliases))]
}

// Random picks uniformly at random.
type Random struct{}

func (Random) Pick(aliases []string, _, _, _ int) string {
	if len(aliases) == 0 {
		return ""
	}
	return aliases[rand.IntN(len(aliases))]
}

const (
	StrategyTile       = "tile"
	StrategyRoundRobin = "roundrobin"
	StrategyRandom     = "random"
)

// NewPicker maps a configured strategy name to a Picker; anything unknown is
// ByTile.
func NewPicker(strategy string) Picker {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyRandom:
		return Random{}
	case StrategyRoundRobin:
		return &RoundRobin{}
	}
	return ByTile{}
}
