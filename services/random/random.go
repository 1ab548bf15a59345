// Package random picks colours for the idle colour cycle.
package random

import (
	"math/rand"

	"github.com/Jagichan/RGBMoodLight/types"
)

// Generator draws each component uniformly from [1,255], so chance alone
// never switches a channel fully off.
type Generator struct {
	r *rand.Rand
}

func New(seed int64) *Generator {
	return &Generator{r: rand.New(rand.NewSource(seed))}
}

func (g *Generator) component() uint8 { return uint8(g.r.Intn(255) + 1) }

// Next returns a fresh colour.
func (g *Generator) Next() types.Color {
	r := g.component()
	gr := g.component()
	b := g.component()
	return types.RGB(r, gr, b)
}
