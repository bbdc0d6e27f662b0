package geogrid

import (
	"fmt"
	"math"
	"strings"
)

// Op selects the scalar operation applied by Combine.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpPow
)

var opNames = [...]string{
	OpAdd: "add",
	OpSub: "sub",
	OpMul: "mul",
	OpDiv: "div",
	OpPow: "pow",
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return opNames[op]
}

// ParseOp returns the Op named by s ("add", "sub", "mul", "div" or "pow").
func ParseOp(s string) (Op, error) {
	for i, name := range opNames {
		if strings.EqualFold(s, name) {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("unknown grid operation %q", s)
}

// Apply evaluates the operation on two scalars using Go float semantics, so
// division by zero yields an infinity or NaN.
func (op Op) Apply(a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpPow:
		return math.Pow(a, b)
	}
	panic(fmt.Sprintf("geogrid: invalid operation %d", int(op)))
}

// Add returns g + other. See Combine.
func (g *Grid) Add(other *Grid) (*Grid, error) { return g.Combine(OpAdd, other) }

// Sub returns g - other. See Combine.
func (g *Grid) Sub(other *Grid) (*Grid, error) { return g.Combine(OpSub, other) }

// Mul returns g * other. See Combine.
func (g *Grid) Mul(other *Grid) (*Grid, error) { return g.Combine(OpMul, other) }

// Div returns g / other. See Combine.
func (g *Grid) Div(other *Grid) (*Grid, error) { return g.Combine(OpDiv, other) }

// Pow returns g raised to other. See Combine.
func (g *Grid) Pow(other *Grid) (*Grid, error) { return g.Combine(OpPow, other) }

// Combine returns a copy of g in which every tile populated in other is
// replaced by op(g, other). Iteration is driven by other's populated tiles:
//   - tiles populated only in g keep their value,
//   - tiles populated only in other are not added to the result,
//   - a result equal to the default value leaves the tile unchanged, since
//     default writes never clear a tile.
//
// Neither operand is modified. The grids must share the same rectangle.
func (g *Grid) Combine(op Op, other *Grid) (*Grid, error) {
	if op < 0 || int(op) >= len(opNames) {
		return nil, fmt.Errorf("%w: unknown operation %d", ErrConfiguration, int(op))
	}
	if g.rect != other.rect {
		return nil, fmt.Errorf("%w: %s and %s", ErrIncompatibleGrid, g.rect, other.rect)
	}

	// Snapshot other before cloning g so that g.Combine(op, g) never holds
	// two read locks on the same grid.
	tiles := other.snapshot()
	result := g.Clone()

	for _, t := range tiles {
		key := result.TileOf(t.Anchor)
		cur, ok := result.values[key]
		if !ok {
			continue
		}
		result.Set(t.Anchor, op.Apply(cur, other.Get(t.Anchor)))
	}
	return result, nil
}
