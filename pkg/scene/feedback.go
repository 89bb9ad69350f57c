package scene

import "github.com/taigrr/lumen/pkg/gpu"

// Feedback is a transform feedback pass: Program reads the vertex streams of
// Source and its captured outputs are written into Target. The two swap after
// each pass so the next frame reads what this one wrote.
type Feedback struct {
	Program *gpu.Program
	Source  *gpu.Geometry
	Target  *gpu.Geometry
}

// NewFeedback creates a ping-pong pass. Source and target must declare the
// same attributes.
func NewFeedback(program *gpu.Program, source, target *gpu.Geometry) *Feedback {
	return &Feedback{Program: program, Source: source, Target: target}
}

// Swap exchanges source and target.
func (f *Feedback) Swap() {
	f.Source, f.Target = f.Target, f.Source
}

// Count returns the number of vertices processed per pass.
func (f *Feedback) Count() int {
	if f.Source == nil {
		return 0
	}
	return f.Source.VertexCount()
}

func (f *Feedback) dispose(d Disposer) {
	if f.Source != nil {
		d.Push(f.Source)
	}
	if f.Target != nil {
		d.Push(f.Target)
	}
}
