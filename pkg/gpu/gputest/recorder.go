// Package gputest provides a gpu.Device that records calls instead of
// drawing, for tests of code built on top of the gpu package.
package gputest

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/taigrr/lumen/pkg/gpu"
)

// ErrCompile is returned by CreateProgram for programs listed in FailPrograms.
var ErrCompile = errors.New("gputest: compile failed")

// Call is one recorded device call.
type Call struct {
	Op   string
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Op, c.Args)
}

// Draw captures the state of a draw call.
type Draw struct {
	Program     gpu.ProgramID
	VertexArray gpu.VertexArrayID
	Framebuffer gpu.FramebufferID
	Mode        gpu.DrawMode
	Count       int
	Indexed     bool
	State       gpu.State
	Discard     bool
	Feedback    bool
	Textures    map[int]gpu.TextureID
}

// Recorder is a gpu.Device that assigns sequential object ids and records
// every call.
type Recorder struct {
	mu sync.Mutex

	// FailPrograms names programs whose compilation fails.
	FailPrograms map[string]bool

	Calls []Call
	Draws []Draw

	// Uniforms holds the last value set per program and uniform name.
	Uniforms map[gpu.ProgramID]map[string]any
	// Buffers holds the last bytes written per uniform buffer.
	Buffers map[gpu.BufferID][]byte

	next      uint32
	live      map[string]map[uint32]bool
	program   gpu.ProgramID
	vao       gpu.VertexArrayID
	fbo       gpu.FramebufferID
	state     gpu.State
	discard   bool
	feedback  bool
	textures  map[int]gpu.TextureID
	bindings  map[int]gpu.BufferID
	viewportW int
	viewportH int
}

// New creates an empty recorder.
func New() *Recorder {
	r := &Recorder{FailPrograms: make(map[string]bool)}
	r.Reset()
	return r
}

// Reset forgets every call and object, as a lost context would.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = nil
	r.Draws = nil
	r.Uniforms = make(map[gpu.ProgramID]map[string]any)
	r.Buffers = make(map[gpu.BufferID][]byte)
	r.live = map[string]map[uint32]bool{
		"program": {}, "vao": {}, "texture": {}, "buffer": {}, "framebuffer": {},
	}
	r.textures = make(map[int]gpu.TextureID)
	r.bindings = make(map[int]gpu.BufferID)
	r.program, r.vao, r.fbo = 0, 0, 0
}

// ClearCalls drops the call log but keeps live objects.
func (r *Recorder) ClearCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = nil
	r.Draws = nil
}

func (r *Recorder) record(op string, args ...any) {
	r.Calls = append(r.Calls, Call{Op: op, Args: args})
}

func (r *Recorder) create(kind string) uint32 {
	r.next++
	r.live[kind][r.next] = true
	return r.next
}

func (r *Recorder) destroy(kind string, id uint32) {
	delete(r.live[kind], id)
}

// Live returns the number of live objects of a kind: "program", "vao",
// "texture", "buffer" or "framebuffer".
func (r *Recorder) Live(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live[kind])
}

// Count returns how many times op was called.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Ops returns the recorded operation names in call order.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		ops[i] = c.Op
	}
	return ops
}

// ViewportSize returns the last viewport size.
func (r *Recorder) ViewportSize() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewportW, r.viewportH
}

func (r *Recorder) CreateProgram(p *gpu.Program) (gpu.ProgramID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateProgram", p.Name)
	if r.FailPrograms[p.Name] {
		return 0, fmt.Errorf("%w: %s", ErrCompile, p.Name)
	}
	id := gpu.ProgramID(r.create("program"))
	r.Uniforms[id] = make(map[string]any)
	return id, nil
}

func (r *Recorder) DeleteProgram(id gpu.ProgramID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeleteProgram", id)
	r.destroy("program", uint32(id))
	delete(r.Uniforms, id)
}

func (r *Recorder) UseProgram(id gpu.ProgramID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("UseProgram", id)
	r.program = id
}

func (r *Recorder) SetUniform(id gpu.ProgramID, name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SetUniform", id, name)
	if r.Uniforms[id] == nil {
		r.Uniforms[id] = make(map[string]any)
	}
	r.Uniforms[id][name] = value
}

func (r *Recorder) BindUniformBlock(id gpu.ProgramID, block string, binding int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("BindUniformBlock", id, block, binding)
}

func (r *Recorder) CreateVertexArray(id gpu.ProgramID, g *gpu.Geometry) (gpu.VertexArrayID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateVertexArray", id, g.Name)
	return gpu.VertexArrayID(r.create("vao")), nil
}

func (r *Recorder) UpdateVertexArray(id gpu.VertexArrayID, g *gpu.Geometry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("UpdateVertexArray", id, g.Name)
}

func (r *Recorder) DeleteVertexArray(id gpu.VertexArrayID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeleteVertexArray", id)
	r.destroy("vao", uint32(id))
}

func (r *Recorder) BindVertexArray(id gpu.VertexArrayID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("BindVertexArray", id)
	r.vao = id
}

func (r *Recorder) CreateTexture(t *gpu.Texture) gpu.TextureID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateTexture", t.Name)
	return gpu.TextureID(r.create("texture"))
}

func (r *Recorder) UploadTexture(id gpu.TextureID, t *gpu.Texture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("UploadTexture", id, t.Name)
}

func (r *Recorder) DeleteTexture(id gpu.TextureID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeleteTexture", id)
	r.destroy("texture", uint32(id))
}

func (r *Recorder) BindTexture(unit int, id gpu.TextureID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("BindTexture", unit, id)
	r.textures[unit] = id
}

func (r *Recorder) CreateUniformBuffer(b *gpu.UniformBuffer) gpu.BufferID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateUniformBuffer", b.Block)
	return gpu.BufferID(r.create("buffer"))
}

func (r *Recorder) WriteUniformBuffer(id gpu.BufferID, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("WriteUniformBuffer", id, len(data))
	r.Buffers[id] = append([]byte(nil), data...)
}

func (r *Recorder) BindUniformBuffer(binding int, id gpu.BufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("BindUniformBuffer", binding, id)
	r.bindings[binding] = id
}

// BoundBuffer returns the buffer bound at a uniform binding point.
func (r *Recorder) BoundBuffer(binding int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Buffers[r.bindings[binding]]
}

func (r *Recorder) DeleteBuffer(id gpu.BufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeleteBuffer", id)
	r.destroy("buffer", uint32(id))
	delete(r.Buffers, id)
}

func (r *Recorder) CreateFramebuffer(rb *gpu.RenderBuffer) gpu.FramebufferID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateFramebuffer", rb.Name, rb.Width, rb.Height)
	return gpu.FramebufferID(r.create("framebuffer"))
}

func (r *Recorder) DeleteFramebuffer(id gpu.FramebufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeleteFramebuffer", id)
	r.destroy("framebuffer", uint32(id))
}

func (r *Recorder) BindFramebuffer(id gpu.FramebufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("BindFramebuffer", id)
	r.fbo = id
}

func (r *Recorder) BlitFramebuffer(src, dst gpu.FramebufferID, width, height int, mask gpu.ClearMask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("BlitFramebuffer", src, dst, width, height, mask)
}

func (r *Recorder) Viewport(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Viewport", width, height)
	r.viewportW, r.viewportH = width, height
}

func (r *Recorder) Clear(color [4]float32, mask gpu.ClearMask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Clear", color, mask)
}

func (r *Recorder) SetState(s gpu.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SetState", s)
	r.state = s
}

func (r *Recorder) SetRasterizerDiscard(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SetRasterizerDiscard", enabled)
	r.discard = enabled
}

func (r *Recorder) BeginFeedback(target gpu.VertexArrayID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("BeginFeedback", target)
	r.feedback = true
}

func (r *Recorder) EndFeedback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("EndFeedback")
	r.feedback = false
}

func (r *Recorder) DrawArrays(mode gpu.DrawMode, first, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DrawArrays", mode, first, count)
	r.draw(mode, count, false)
}

func (r *Recorder) DrawElements(mode gpu.DrawMode, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DrawElements", mode, count)
	r.draw(mode, count, true)
}

func (r *Recorder) draw(mode gpu.DrawMode, count int, indexed bool) {
	r.Draws = append(r.Draws, Draw{
		Program:     r.program,
		VertexArray: r.vao,
		Framebuffer: r.fbo,
		Mode:        mode,
		Count:       count,
		Indexed:     indexed,
		State:       r.state,
		Discard:     r.discard,
		Feedback:    r.feedback,
		Textures:    maps.Clone(r.textures),
	})
}

var _ gpu.Device = (*Recorder)(nil)
