package gpu

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// GLSLVersion is prepended to every shader stage.
const GLSLVersion = "#version 300 es"

// Program is a vertex/fragment shader pair. The sources are opaque; the only
// thing the engine does with them is prepend the version line and defines.
type Program struct {
	versioned

	Name     string
	Vertex   string
	Fragment string

	// FeedbackVaryings names the vertex outputs captured by a transform
	// feedback pass. Empty for rasterized programs.
	FeedbackVaryings []string

	defines map[string]string
}

// NewProgram creates a program descriptor.
func NewProgram(name, vertex, fragment string) *Program {
	return &Program{
		versioned: newVersioned(),
		Name:      name,
		Vertex:    vertex,
		Fragment:  fragment,
		defines:   make(map[string]string),
	}
}

// SetDefine sets a preprocessor define. Changing a define forces the program
// to be rebuilt the next time it is drawn.
func (p *Program) SetDefine(name, value string) {
	if old, ok := p.defines[name]; ok && old == value {
		return
	}
	p.defines[name] = value
	p.touch()
}

// Define returns the value of a define.
func (p *Program) Define(name string) (string, bool) {
	v, ok := p.defines[name]
	return v, ok
}

// VertexSource returns the full vertex stage source.
func (p *Program) VertexSource() string {
	return p.source(p.Vertex)
}

// FragmentSource returns the full fragment stage source.
func (p *Program) FragmentSource() string {
	return p.source(p.Fragment)
}

func (p *Program) source(body string) string {
	var sb strings.Builder
	sb.WriteString(GLSLVersion)
	sb.WriteByte('\n')
	for _, name := range slices.Sorted(maps.Keys(p.defines)) {
		fmt.Fprintf(&sb, "#define %s %s\n", name, p.defines[name])
	}
	sb.WriteString(body)
	return sb.String()
}
