package gpu

// Blending selects the blend equation of a draw.
type Blending int

const (
	BlendNone Blending = iota
	BlendNormal
	BlendAdditive
)

// State is the fixed-function state applied before a draw.
type State struct {
	Blending   Blending
	DepthTest  bool
	DepthWrite bool
	CullFront  bool
	CullBack   bool
}

// DefaultState is opaque, depth tested and written, back faces culled.
func DefaultState() State {
	return State{DepthTest: true, DepthWrite: true, CullBack: true}
}

// Transparent reports whether the draw blends with what is behind it.
func (s State) Transparent() bool {
	return s.Blending != BlendNone
}

// State bitmask bits, in sort-key significance order.
const (
	StateBitBlending   = 1 << 0
	StateBitCullFront  = 1 << 1
	StateBitDepthTest  = 1 << 2
	StateBitDepthWrite = 1 << 3
	StateBitCullBack   = 1 << 4
)

// Mask packs the boolean state into a bitmask used as a sort key.
func (s State) Mask() uint8 {
	var m uint8
	if s.Blending != BlendNone {
		m |= StateBitBlending
	}
	if s.CullFront {
		m |= StateBitCullFront
	}
	if s.DepthTest {
		m |= StateBitDepthTest
	}
	if s.DepthWrite {
		m |= StateBitDepthWrite
	}
	if s.CullBack {
		m |= StateBitCullBack
	}
	return m
}
