package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/chewxy/math32"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/scene"
)

// ErrEmptyShader is returned by CreateProgram for a program without vertex
// or fragment source.
var ErrEmptyShader = errors.New("empty shader source")

// Stats counts device work since the last ResetStats.
type Stats struct {
	Draws      int
	Primitives int
	Fragments  int
	Feedback   int // vertices passed through feedback
}

type program struct {
	name     string
	uniforms map[string]any
	blocks   map[string]int
}

type stream struct {
	size int
	data []float32
}

// streams is the uploaded vertex data of one geometry. Every vertex array
// made from the same geometry shares it, so feedback output is visible to
// all of them.
type streams struct {
	attribs map[string]*stream
	indices []uint32
	refs    int
}

type vertexArray struct {
	geometry gpu.Handle
	data     *streams
}

// Device is a software gpu.Device. It does not run shader code: every
// program is drawn with the fixed lighting model of the built-in programs
// (base color, base color map, vertex color, ambient and point lights read
// from the bound uniform blocks). Feedback passes copy the source streams
// into the target unchanged.
type Device struct {
	screen       *Framebuffer
	programs     map[gpu.ProgramID]*program
	geometries   map[gpu.Handle]*streams
	vertexArrays map[gpu.VertexArrayID]*vertexArray
	textures     map[gpu.TextureID]*sampler
	buffers      map[gpu.BufferID][]byte
	framebuffers map[gpu.FramebufferID]*Framebuffer
	bindings     map[int]gpu.BufferID
	units        map[int]gpu.TextureID
	next         uint32

	current  gpu.ProgramID
	vao      gpu.VertexArrayID
	target   gpu.FramebufferID
	state    gpu.State
	discard  bool
	feedback gpu.VertexArrayID

	stats Stats
}

var _ gpu.Device = (*Device)(nil)

// NewDevice creates a device whose default framebuffer is width x height.
func NewDevice(width, height int) *Device {
	return &Device{
		screen:       NewFramebuffer(width, height),
		programs:     make(map[gpu.ProgramID]*program),
		geometries:   make(map[gpu.Handle]*streams),
		vertexArrays: make(map[gpu.VertexArrayID]*vertexArray),
		textures:     make(map[gpu.TextureID]*sampler),
		buffers:      make(map[gpu.BufferID][]byte),
		framebuffers: make(map[gpu.FramebufferID]*Framebuffer),
		bindings:     make(map[int]gpu.BufferID),
		units:        make(map[int]gpu.TextureID),
		state:        gpu.DefaultState(),
	}
}

// Screen returns the default framebuffer.
func (d *Device) Screen() *Framebuffer { return d.screen }

// Stats returns the work counters.
func (d *Device) Stats() Stats { return d.stats }

// ResetStats zeroes the work counters.
func (d *Device) ResetStats() { d.stats = Stats{} }

// Objects returns the number of live device objects.
func (d *Device) Objects() int {
	return len(d.programs) + len(d.vertexArrays) + len(d.textures) + len(d.buffers) + len(d.framebuffers)
}

func (d *Device) id() uint32 {
	d.next++
	return d.next
}

func (d *Device) CreateProgram(p *gpu.Program) (gpu.ProgramID, error) {
	if strings.TrimSpace(p.Vertex) == "" || strings.TrimSpace(p.Fragment) == "" {
		return 0, fmt.Errorf("program %q: %w", p.Name, ErrEmptyShader)
	}
	id := gpu.ProgramID(d.id())
	d.programs[id] = &program{
		name:     p.Name,
		uniforms: make(map[string]any),
		blocks:   make(map[string]int),
	}
	return id, nil
}

func (d *Device) DeleteProgram(id gpu.ProgramID) {
	delete(d.programs, id)
	if d.current == id {
		d.current = 0
	}
}

func (d *Device) UseProgram(id gpu.ProgramID) { d.current = id }

func (d *Device) SetUniform(id gpu.ProgramID, name string, value any) {
	if p, ok := d.programs[id]; ok {
		p.uniforms[name] = value
	}
}

func (d *Device) BindUniformBlock(id gpu.ProgramID, block string, binding int) {
	if p, ok := d.programs[id]; ok {
		p.blocks[block] = binding
	}
}

func (d *Device) CreateVertexArray(id gpu.ProgramID, g *gpu.Geometry) (gpu.VertexArrayID, error) {
	if _, ok := d.programs[id]; !ok {
		return 0, fmt.Errorf("vertex array %q: unknown program %d", g.Name, id)
	}
	s, ok := d.geometries[g.Handle()]
	if !ok {
		s = &streams{}
		s.upload(g)
		d.geometries[g.Handle()] = s
	}
	s.refs++
	vid := gpu.VertexArrayID(d.id())
	d.vertexArrays[vid] = &vertexArray{geometry: g.Handle(), data: s}
	return vid, nil
}

func (d *Device) UpdateVertexArray(id gpu.VertexArrayID, g *gpu.Geometry) {
	if va, ok := d.vertexArrays[id]; ok {
		va.data.upload(g)
	}
}

func (s *streams) upload(g *gpu.Geometry) {
	s.attribs = make(map[string]*stream, len(g.Attributes()))
	for _, a := range g.Attributes() {
		data := make([]float32, len(a.Data))
		copy(data, a.Data)
		s.attribs[a.Name] = &stream{size: a.Size, data: data}
	}
	s.indices = nil
	if g.Indexed() {
		s.indices = append([]uint32(nil), g.Indices()...)
	}
}

func (d *Device) DeleteVertexArray(id gpu.VertexArrayID) {
	va, ok := d.vertexArrays[id]
	if !ok {
		return
	}
	delete(d.vertexArrays, id)
	if va.data.refs--; va.data.refs <= 0 {
		delete(d.geometries, va.geometry)
	}
	if d.vao == id {
		d.vao = 0
	}
}

func (d *Device) BindVertexArray(id gpu.VertexArrayID) { d.vao = id }

func (d *Device) CreateTexture(t *gpu.Texture) gpu.TextureID {
	id := gpu.TextureID(d.id())
	d.textures[id] = newSampler(t)
	return id
}

func (d *Device) UploadTexture(id gpu.TextureID, t *gpu.Texture) {
	if _, ok := d.textures[id]; ok {
		d.textures[id] = newSampler(t)
	}
}

func (d *Device) DeleteTexture(id gpu.TextureID) { delete(d.textures, id) }

func (d *Device) BindTexture(unit int, id gpu.TextureID) { d.units[unit] = id }

func (d *Device) CreateUniformBuffer(b *gpu.UniformBuffer) gpu.BufferID {
	id := gpu.BufferID(d.id())
	d.buffers[id] = make([]byte, b.Size())
	return id
}

func (d *Device) WriteUniformBuffer(id gpu.BufferID, data []byte) {
	if _, ok := d.buffers[id]; ok {
		d.buffers[id] = append(d.buffers[id][:0], data...)
	}
}

func (d *Device) BindUniformBuffer(binding int, id gpu.BufferID) { d.bindings[binding] = id }

func (d *Device) DeleteBuffer(id gpu.BufferID) { delete(d.buffers, id) }

func (d *Device) CreateFramebuffer(rb *gpu.RenderBuffer) gpu.FramebufferID {
	id := gpu.FramebufferID(d.id())
	d.framebuffers[id] = NewFramebuffer(rb.Width, rb.Height)
	return id
}

func (d *Device) DeleteFramebuffer(id gpu.FramebufferID) {
	delete(d.framebuffers, id)
	if d.target == id {
		d.target = 0
	}
}

func (d *Device) BindFramebuffer(id gpu.FramebufferID) { d.target = id }

func (d *Device) framebuffer(id gpu.FramebufferID) *Framebuffer {
	if id == 0 {
		return d.screen
	}
	return d.framebuffers[id]
}

func (d *Device) BlitFramebuffer(src, dst gpu.FramebufferID, width, height int, mask gpu.ClearMask) {
	s, t := d.framebuffer(src), d.framebuffer(dst)
	if s == nil || t == nil || s == t {
		return
	}
	t.copyFrom(s, width, height, mask)
}

// Viewport resizes the default framebuffer when it is bound. Offscreen
// framebuffers keep the size they were created with.
func (d *Device) Viewport(width, height int) {
	if d.target == 0 {
		d.screen.Resize(width, height)
	}
}

func (d *Device) Clear(c [4]float32, mask gpu.ClearMask) {
	fb := d.framebuffer(d.target)
	if fb == nil {
		return
	}
	if mask&gpu.ClearColor != 0 {
		fb.Clear(toRGBA(math3d.V4(float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3]))))
	}
	if mask&gpu.ClearDepth != 0 {
		fb.ClearDepth()
	}
}

func (d *Device) SetState(s gpu.State) { d.state = s }

func (d *Device) SetRasterizerDiscard(enabled bool) { d.discard = enabled }

func (d *Device) BeginFeedback(target gpu.VertexArrayID) { d.feedback = target }

func (d *Device) EndFeedback() { d.feedback = 0 }

func (d *Device) DrawArrays(mode gpu.DrawMode, first, count int) {
	va := d.vertexArrays[d.vao]
	if va == nil || count <= 0 {
		return
	}
	if d.feedback != 0 {
		d.capture(va, first, count)
	}
	if d.discard {
		return
	}
	idx := make([]uint32, count)
	for i := range idx {
		idx[i] = uint32(first + i)
	}
	d.draw(mode, va.data, idx)
}

func (d *Device) DrawElements(mode gpu.DrawMode, count int) {
	va := d.vertexArrays[d.vao]
	if va == nil || d.discard || count <= 0 {
		return
	}
	idx := va.data.indices
	if count < len(idx) {
		idx = idx[:count]
	}
	d.draw(mode, va.data, idx)
}

// capture copies the vertices [first, first+count) of every source stream
// into the stream of the same name in the feedback target.
func (d *Device) capture(src *vertexArray, first, count int) {
	dst := d.vertexArrays[d.feedback]
	if dst == nil || dst.data == src.data {
		return
	}
	for name, out := range dst.data.attribs {
		in, ok := src.data.attribs[name]
		if !ok || in.size != out.size {
			continue
		}
		lo, hi := first*in.size, (first+count)*in.size
		if lo >= len(in.data) || lo >= len(out.data) {
			continue
		}
		hi = min(hi, len(in.data), len(out.data))
		copy(out.data[lo:hi], in.data[lo:hi])
	}
	d.stats.Feedback += count
}

func (d *Device) draw(mode gpu.DrawMode, s *streams, idx []uint32) {
	p := d.programs[d.current]
	fb := d.framebuffer(d.target)
	if p == nil || fb == nil || fb.Width == 0 || fb.Height == 0 {
		return
	}
	pos := s.attribs[gpu.AttribPosition]
	if pos == nil {
		return
	}
	d.stats.Draws++

	env := d.environment(p)
	n := len(pos.data) / max(pos.size, 1)
	verts := make([]vertex, n)
	done := make([]bool, n)
	at := func(i uint32) (vertex, bool) {
		if int(i) >= n {
			return vertex{}, false
		}
		if !done[i] {
			verts[i] = env.vertex(s, int(i))
			done[i] = true
		}
		return verts[i], true
	}

	r := &rasterizer{fb: fb, state: d.state, shade: env.shade, pointSize: env.pointSize}
	switch mode {
	case gpu.Points:
		for _, i := range idx {
			if v, ok := at(i); ok {
				r.point(v)
				d.stats.Primitives++
			}
		}
	case gpu.Lines:
		for k := 0; k+1 < len(idx); k += 2 {
			a, okA := at(idx[k])
			b, okB := at(idx[k+1])
			if okA && okB {
				r.line(a, b)
				d.stats.Primitives++
			}
		}
	case gpu.TriangleStrip:
		for k := 0; k+2 < len(idx); k++ {
			i0, i1, i2 := idx[k], idx[k+1], idx[k+2]
			if k%2 == 1 {
				i0, i1 = i1, i0
			}
			d.triangle(r, at, i0, i1, i2)
		}
	default:
		for k := 0; k+2 < len(idx); k += 3 {
			d.triangle(r, at, idx[k], idx[k+1], idx[k+2])
		}
	}
	d.stats.Fragments += r.fragments
}

func (d *Device) triangle(r *rasterizer, at func(uint32) (vertex, bool), i0, i1, i2 uint32) {
	a, okA := at(i0)
	b, okB := at(i1)
	c, okC := at(i2)
	if okA && okB && okC {
		r.triangle(a, b, c)
		d.stats.Primitives++
	}
}

type pointLight struct {
	position  math3d.Vec3
	color     math3d.Vec3
	intensity float64
}

// environment is everything a draw reads besides the vertex streams.
type environment struct {
	model       math3d.Mat4
	normal      math3d.Mat4
	viewProj    math3d.Mat4
	baseColor   math3d.Vec4
	texture     *sampler
	pointSize   float64
	lit         bool
	ambient     math3d.Vec3
	pointLights []pointLight
}

func (d *Device) environment(p *program) *environment {
	env := &environment{
		model:     math3d.Identity(),
		viewProj:  math3d.Identity(),
		baseColor: math3d.V4(1, 1, 1, 1),
		ambient:   math3d.V3(1, 1, 1),
	}
	if m, ok := mat4Value(p.uniforms[scene.UniformModelMatrix]); ok {
		env.model = m
	}
	env.normal = env.model
	if m, ok := mat4Value(p.uniforms[scene.UniformNormalMatrix]); ok {
		env.normal = m
	}
	if c, ok := vec4Value(p.uniforms[scene.UniformBaseColor]); ok {
		env.baseColor = c
	}
	if s, ok := floatValue(p.uniforms[scene.UniformPointSize]); ok {
		env.pointSize = s
	}
	if unit, ok := p.uniforms[scene.SamplerBaseColor].(int32); ok {
		env.texture = d.textures[d.units[int(unit)]]
	}

	if buf := d.block(p, scene.BlockCamera); len(buf) >= scene.CameraViewProjection+64 {
		env.viewProj = readMat4(buf, scene.CameraViewProjection)
	}
	if buf := d.block(p, scene.BlockAmbient); len(buf) >= scene.AmbientBlockSize {
		env.lit = true
		env.ambient = readVec3(buf, scene.AmbientColor).Scale(readFloat(buf, scene.AmbientIntensity))
	}
	if buf := d.block(p, scene.BlockPointLights); buf != nil {
		env.lit = true
		for off := 0; off+scene.PointLightStride <= len(buf); off += scene.PointLightStride {
			l := pointLight{
				position:  readVec3(buf, off+scene.LightPosition),
				intensity: readFloat(buf, off+scene.LightIntensity),
				color:     readVec3(buf, off+scene.LightColor),
			}
			if l.intensity != 0 {
				env.pointLights = append(env.pointLights, l)
			}
		}
	}
	return env
}

// block returns the contents of the buffer bound to the binding point of
// the named block, or nil.
func (d *Device) block(p *program, name string) []byte {
	binding, ok := p.blocks[name]
	if !ok {
		return nil
	}
	id, ok := d.bindings[binding]
	if !ok {
		return nil
	}
	return d.buffers[id]
}

func (e *environment) vertex(s *streams, i int) vertex {
	local := streamVec4(s.attribs[gpu.AttribPosition], i, math3d.V4(0, 0, 0, 1))
	local.W = 1
	world := e.model.MulVec4(local)
	v := vertex{
		clip: e.viewProj.MulVec4(world),
		tint: streamVec4(s.attribs[gpu.AttribColor], i, math3d.V4(1, 1, 1, 1)),
	}
	if uv := s.attribs[gpu.AttribUV]; uv != nil {
		t := streamVec4(uv, i, math3d.Vec4{})
		v.uv = math3d.V2(t.X, t.Y)
	}
	if n := s.attribs[gpu.AttribNormal]; n != nil && e.lit {
		normal := e.normal.MulVec3Dir(streamVec4(n, i, math3d.Vec4{}).Vec3()).Normalize()
		light := e.light(world.Vec3(), normal)
		v.tint = math3d.V4(v.tint.X*light.X, v.tint.Y*light.Y, v.tint.Z*light.Z, v.tint.W)
	}
	return v
}

// light sums ambient and point light contributions at a world position.
func (e *environment) light(world, normal math3d.Vec3) math3d.Vec3 {
	sum := e.ambient
	for _, l := range e.pointLights {
		toLight := l.position.Sub(world)
		dist := toLight.Len()
		if dist == 0 {
			continue
		}
		lambert := max(normal.Dot(toLight.Scale(1/dist)), 0)
		sum = sum.Add(l.color.Scale(l.intensity * lambert / (1 + dist*dist)))
	}
	return sum
}

func (e *environment) shade(uv math3d.Vec2, tint math3d.Vec4) math3d.Vec4 {
	c := e.baseColor.Mul(tint)
	if e.texture != nil {
		c = c.Mul(e.texture.Sample(uv.X, uv.Y))
	}
	return c
}

// streamVec4 reads vertex i of s, filling missing components from def.
func streamVec4(s *stream, i int, def math3d.Vec4) math3d.Vec4 {
	if s == nil || s.size == 0 || (i+1)*s.size > len(s.data) {
		return def
	}
	v := [4]float64{def.X, def.Y, def.Z, def.W}
	for k := range min(s.size, 4) {
		v[k] = float64(s.data[i*s.size+k])
	}
	return math3d.V4(v[0], v[1], v[2], v[3])
}

func readFloat(buf []byte, off int) float64 {
	return float64(math32.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
}

func readVec3(buf []byte, off int) math3d.Vec3 {
	return math3d.V3(readFloat(buf, off), readFloat(buf, off+4), readFloat(buf, off+8))
}

func readMat4(buf []byte, off int) math3d.Mat4 {
	var m math3d.Mat4
	for i := range m {
		m[i] = readFloat(buf, off+i*4)
	}
	return m
}

func mat4Value(v any) (math3d.Mat4, bool) {
	switch m := v.(type) {
	case math3d.Mat4:
		return m, true
	case [16]float32:
		return math3d.FromSlice(m[:]), true
	}
	return math3d.Mat4{}, false
}

func vec4Value(v any) (math3d.Vec4, bool) {
	switch c := v.(type) {
	case math3d.Vec4:
		return c, true
	case [4]float32:
		return math3d.V4(float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3])), true
	case color.RGBA:
		return fromRGBA(c), true
	}
	return math3d.Vec4{}, false
}

func floatValue(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	case int32:
		return float64(f), true
	case int:
		return float64(f), true
	}
	return 0, false
}
