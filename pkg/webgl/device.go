//go:build js && wasm

package webgl

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall/js"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/render"
)

// ErrNoContext is returned when the canvas cannot provide a WebGL2 context.
var ErrNoContext = errors.New("webgl2 not available")

type program struct {
	obj       js.Value
	locations map[string]js.Value
	varyings  int
}

// buffers holds the GL buffers of one geometry. Vertex arrays made for
// different programs from the same geometry share them, so feedback output
// written through one is read through the others.
type buffers struct {
	attribs map[string]js.Value
	order   []string
	index   js.Value
	refs    int
}

type vertexArray struct {
	obj      js.Value
	program  js.Value
	geometry gpu.Handle
	data     *buffers
}

type framebuffer struct {
	obj   js.Value
	color js.Value
	depth js.Value
}

// Device is a gpu.Device on a WebGL2 context. Methods must be called from
// the goroutine driving requestAnimationFrame.
type Device struct {
	canvas js.Value
	gl     js.Value

	programs     map[gpu.ProgramID]*program
	geometries   map[gpu.Handle]*buffers
	vertexArrays map[gpu.VertexArrayID]*vertexArray
	textures     map[gpu.TextureID]js.Value
	buffers      map[gpu.BufferID]js.Value
	framebuffers map[gpu.FramebufferID]*framebuffer
	next         uint32

	current  *program
	bound    *vertexArray
	feedback js.Value
	state    gpu.State

	listeners []js.Func
}

var _ gpu.Device = (*Device)(nil)

// New creates a device on canvas.
func New(canvas js.Value) (*Device, error) {
	gl := canvas.Call("getContext", "webgl2", map[string]any{
		"antialias":          true,
		"premultipliedAlpha": false,
	})
	if gl.IsNull() || gl.IsUndefined() {
		return nil, ErrNoContext
	}
	d := &Device{canvas: canvas, gl: gl}
	d.reset()
	d.SetState(gpu.DefaultState())
	return d, nil
}

func (d *Device) reset() {
	d.programs = make(map[gpu.ProgramID]*program)
	d.geometries = make(map[gpu.Handle]*buffers)
	d.vertexArrays = make(map[gpu.VertexArrayID]*vertexArray)
	d.textures = make(map[gpu.TextureID]js.Value)
	d.buffers = make(map[gpu.BufferID]js.Value)
	d.framebuffers = make(map[gpu.FramebufferID]*framebuffer)
	d.current, d.bound = nil, nil
	d.feedback = js.Undefined()
}

// HandleContextLoss forwards context loss and restoration events of the
// canvas to r. Every object of the lost context is forgotten; the renderer
// rebuilds what it needs on the next frame.
func (d *Device) HandleContextLoss(r *render.Renderer) {
	lost := js.FuncOf(func(_ js.Value, args []js.Value) any {
		// Without preventDefault the context is never restored.
		args[0].Call("preventDefault")
		d.reset()
		r.ContextLost()
		return nil
	})
	restored := js.FuncOf(func(js.Value, []js.Value) any {
		d.SetState(d.state)
		r.ContextRestored()
		return nil
	})
	d.canvas.Call("addEventListener", "webglcontextlost", lost)
	d.canvas.Call("addEventListener", "webglcontextrestored", restored)
	d.listeners = append(d.listeners, lost, restored)
}

// Release removes the event listeners installed by the device.
func (d *Device) Release() {
	for _, fn := range d.listeners {
		fn.Release()
	}
	d.listeners = nil
}

func (d *Device) id() uint32 {
	d.next++
	return d.next
}

func (d *Device) enum(name string) int {
	return d.gl.Get(name).Int()
}

func (d *Device) compile(kind, source string) (js.Value, error) {
	sh := d.gl.Call("createShader", d.gl.Get(kind))
	d.gl.Call("shaderSource", sh, source)
	d.gl.Call("compileShader", sh)
	if !d.gl.Call("getShaderParameter", sh, d.gl.Get("COMPILE_STATUS")).Bool() {
		log := d.gl.Call("getShaderInfoLog", sh).String()
		d.gl.Call("deleteShader", sh)
		return js.Null(), fmt.Errorf("compile %s: %s", kind, log)
	}
	return sh, nil
}

func (d *Device) CreateProgram(p *gpu.Program) (gpu.ProgramID, error) {
	vs, err := d.compile("VERTEX_SHADER", p.VertexSource())
	if err != nil {
		return 0, err
	}
	defer d.gl.Call("deleteShader", vs)
	fs, err := d.compile("FRAGMENT_SHADER", p.FragmentSource())
	if err != nil {
		return 0, err
	}
	defer d.gl.Call("deleteShader", fs)

	obj := d.gl.Call("createProgram")
	d.gl.Call("attachShader", obj, vs)
	d.gl.Call("attachShader", obj, fs)
	if len(p.FeedbackVaryings) > 0 {
		varyings := make([]any, len(p.FeedbackVaryings))
		for i, v := range p.FeedbackVaryings {
			varyings[i] = v
		}
		d.gl.Call("transformFeedbackVaryings", obj, varyings, d.gl.Get("SEPARATE_ATTRIBS"))
	}
	d.gl.Call("linkProgram", obj)
	if !d.gl.Call("getProgramParameter", obj, d.gl.Get("LINK_STATUS")).Bool() {
		log := d.gl.Call("getProgramInfoLog", obj).String()
		d.gl.Call("deleteProgram", obj)
		return 0, fmt.Errorf("link: %s", log)
	}

	id := gpu.ProgramID(d.id())
	d.programs[id] = &program{obj: obj, locations: make(map[string]js.Value), varyings: len(p.FeedbackVaryings)}
	render.Logger().Debug("webgl program linked", slog.String("program", p.Name), slog.Uint64("id", uint64(id)))
	return id, nil
}

func (d *Device) DeleteProgram(id gpu.ProgramID) {
	p, ok := d.programs[id]
	if !ok {
		return
	}
	d.gl.Call("deleteProgram", p.obj)
	delete(d.programs, id)
	if d.current == p {
		d.current = nil
	}
}

func (d *Device) UseProgram(id gpu.ProgramID) {
	p, ok := d.programs[id]
	if !ok {
		return
	}
	d.gl.Call("useProgram", p.obj)
	d.current = p
}

func (d *Device) location(p *program, name string) js.Value {
	loc, ok := p.locations[name]
	if !ok {
		loc = d.gl.Call("getUniformLocation", p.obj, name)
		p.locations[name] = loc
	}
	return loc
}

// SetUniform uploads value to the named uniform. The program must be
// current, as the renderer guarantees.
func (d *Device) SetUniform(id gpu.ProgramID, name string, value any) {
	p, ok := d.programs[id]
	if !ok {
		return
	}
	loc := d.location(p, name)
	if loc.IsNull() {
		return
	}
	kind, fs, i := uniformValue(value)
	switch kind {
	case uniform1f:
		d.gl.Call("uniform1f", loc, fs[0])
	case uniform2f:
		d.gl.Call("uniform2f", loc, fs[0], fs[1])
	case uniform3f:
		d.gl.Call("uniform3f", loc, fs[0], fs[1], fs[2])
	case uniform4f:
		d.gl.Call("uniform4f", loc, fs[0], fs[1], fs[2], fs[3])
	case uniform1i:
		d.gl.Call("uniform1i", loc, i)
	case uniformMat4:
		d.gl.Call("uniformMatrix4fv", loc, false, float32Array(fs))
	case uniformFloats:
		d.gl.Call("uniform1fv", loc, float32Array(fs))
	default:
		render.Logger().Warn("unsupported uniform type", slog.String("uniform", name), slog.String("type", fmt.Sprintf("%T", value)))
	}
}

func (d *Device) BindUniformBlock(id gpu.ProgramID, block string, binding int) {
	p, ok := d.programs[id]
	if !ok {
		return
	}
	idx := d.gl.Call("getUniformBlockIndex", p.obj, block)
	if idx.Int() == d.enum("INVALID_INDEX") {
		return
	}
	d.gl.Call("uniformBlockBinding", p.obj, idx, binding)
}

func (d *Device) CreateVertexArray(id gpu.ProgramID, g *gpu.Geometry) (gpu.VertexArrayID, error) {
	p, ok := d.programs[id]
	if !ok {
		return 0, fmt.Errorf("vertex array %q: unknown program %d", g.Name, id)
	}
	data, ok := d.geometries[g.Handle()]
	if !ok {
		data = &buffers{attribs: make(map[string]js.Value), index: js.Null()}
		d.upload(data, g)
		d.geometries[g.Handle()] = data
	}
	data.refs++

	va := &vertexArray{
		obj:      d.gl.Call("createVertexArray"),
		program:  p.obj,
		geometry: g.Handle(),
		data:     data,
	}
	d.bindAttributes(va, g)
	vid := gpu.VertexArrayID(d.id())
	d.vertexArrays[vid] = va
	return vid, nil
}

func (d *Device) UpdateVertexArray(id gpu.VertexArrayID, g *gpu.Geometry) {
	va, ok := d.vertexArrays[id]
	if !ok {
		return
	}
	d.upload(va.data, g)
	d.bindAttributes(va, g)
}

// upload writes every stream of g into the geometry's buffers, creating
// buffers for new streams.
func (d *Device) upload(b *buffers, g *gpu.Geometry) {
	arrayBuffer := d.gl.Get("ARRAY_BUFFER")
	usage := d.gl.Get("DYNAMIC_DRAW")
	b.order = b.order[:0]
	for _, a := range g.Attributes() {
		buf, ok := b.attribs[a.Name]
		if !ok {
			buf = d.gl.Call("createBuffer")
			b.attribs[a.Name] = buf
		}
		b.order = append(b.order, a.Name)
		d.gl.Call("bindBuffer", arrayBuffer, buf)
		d.gl.Call("bufferData", arrayBuffer, float32Array(a.Data), usage)
	}
	d.gl.Call("bindBuffer", arrayBuffer, js.Null())

	if g.Indexed() {
		if b.index.IsNull() {
			b.index = d.gl.Call("createBuffer")
		}
		// Index buffers stay bound to the vertex array that last used them, so
		// upload outside of any.
		d.gl.Call("bindVertexArray", js.Null())
		d.bound = nil
		target := d.gl.Get("ELEMENT_ARRAY_BUFFER")
		d.gl.Call("bindBuffer", target, b.index)
		d.gl.Call("bufferData", target, uint32Array(g.Indices()), d.gl.Get("STATIC_DRAW"))
		d.gl.Call("bindBuffer", target, js.Null())
	}
}

func (d *Device) bindAttributes(va *vertexArray, g *gpu.Geometry) {
	arrayBuffer := d.gl.Get("ARRAY_BUFFER")
	d.gl.Call("bindVertexArray", va.obj)
	for _, a := range g.Attributes() {
		loc := d.gl.Call("getAttribLocation", va.program, a.Name).Int()
		if loc < 0 {
			continue
		}
		d.gl.Call("bindBuffer", arrayBuffer, va.data.attribs[a.Name])
		d.gl.Call("enableVertexAttribArray", loc)
		d.gl.Call("vertexAttribPointer", loc, a.Size, d.gl.Get("FLOAT"), a.Normalized, 0, 0)
	}
	if !va.data.index.IsNull() {
		d.gl.Call("bindBuffer", d.gl.Get("ELEMENT_ARRAY_BUFFER"), va.data.index)
	}
	d.gl.Call("bindVertexArray", js.Null())
	d.gl.Call("bindBuffer", arrayBuffer, js.Null())
	d.bound = nil
}

func (d *Device) DeleteVertexArray(id gpu.VertexArrayID) {
	va, ok := d.vertexArrays[id]
	if !ok {
		return
	}
	d.gl.Call("deleteVertexArray", va.obj)
	delete(d.vertexArrays, id)
	if d.bound == va {
		d.bound = nil
	}
	if va.data.refs--; va.data.refs > 0 {
		return
	}
	for _, buf := range va.data.attribs {
		d.gl.Call("deleteBuffer", buf)
	}
	if !va.data.index.IsNull() {
		d.gl.Call("deleteBuffer", va.data.index)
	}
	delete(d.geometries, va.geometry)
}

func (d *Device) BindVertexArray(id gpu.VertexArrayID) {
	va := d.vertexArrays[id]
	if va == nil {
		d.gl.Call("bindVertexArray", js.Null())
		d.bound = nil
		return
	}
	d.gl.Call("bindVertexArray", va.obj)
	d.bound = va
}

func (d *Device) CreateTexture(*gpu.Texture) gpu.TextureID {
	id := gpu.TextureID(d.id())
	d.textures[id] = d.gl.Call("createTexture")
	return id
}

func (d *Device) UploadTexture(id gpu.TextureID, t *gpu.Texture) {
	tex, ok := d.textures[id]
	if !ok {
		return
	}
	target := d.gl.Get("TEXTURE_2D")
	img := t.Pixels()
	w, h := t.Size()

	d.gl.Call("bindTexture", target, tex)
	d.gl.Call("pixelStorei", d.gl.Get("UNPACK_FLIP_Y_WEBGL"), t.FlipY)
	d.gl.Call("pixelStorei", d.gl.Get("UNPACK_ROW_LENGTH"), img.Stride/4)
	rgba := d.gl.Get("RGBA")
	d.gl.Call("texImage2D", target, 0, rgba, w, h, 0, rgba, d.gl.Get("UNSIGNED_BYTE"), uint8Array(img.Pix))
	d.gl.Call("pixelStorei", d.gl.Get("UNPACK_ROW_LENGTH"), 0)

	d.gl.Call("texParameteri", target, d.gl.Get("TEXTURE_MIN_FILTER"), filter(t.MinFilter))
	d.gl.Call("texParameteri", target, d.gl.Get("TEXTURE_MAG_FILTER"), magFilter(t.MagFilter))
	d.gl.Call("texParameteri", target, d.gl.Get("TEXTURE_WRAP_S"), wrap(t.WrapS))
	d.gl.Call("texParameteri", target, d.gl.Get("TEXTURE_WRAP_T"), wrap(t.WrapT))
	if t.MinFilter == gpu.FilterLinearMipmapLinear {
		d.gl.Call("generateMipmap", target)
	}
}

func (d *Device) DeleteTexture(id gpu.TextureID) {
	if tex, ok := d.textures[id]; ok {
		d.gl.Call("deleteTexture", tex)
		delete(d.textures, id)
	}
}

func (d *Device) BindTexture(unit int, id gpu.TextureID) {
	d.gl.Call("activeTexture", d.enum("TEXTURE0")+unit)
	tex, ok := d.textures[id]
	if !ok {
		tex = js.Null()
	}
	d.gl.Call("bindTexture", d.gl.Get("TEXTURE_2D"), tex)
}

func (d *Device) CreateUniformBuffer(b *gpu.UniformBuffer) gpu.BufferID {
	buf := d.gl.Call("createBuffer")
	target := d.gl.Get("UNIFORM_BUFFER")
	d.gl.Call("bindBuffer", target, buf)
	d.gl.Call("bufferData", target, b.Size(), d.gl.Get("DYNAMIC_DRAW"))
	d.gl.Call("bindBuffer", target, js.Null())
	id := gpu.BufferID(d.id())
	d.buffers[id] = buf
	return id
}

func (d *Device) WriteUniformBuffer(id gpu.BufferID, data []byte) {
	buf, ok := d.buffers[id]
	if !ok {
		return
	}
	target := d.gl.Get("UNIFORM_BUFFER")
	d.gl.Call("bindBuffer", target, buf)
	// bufferData rather than bufferSubData: the light block grows.
	d.gl.Call("bufferData", target, uint8Array(data), d.gl.Get("DYNAMIC_DRAW"))
	d.gl.Call("bindBuffer", target, js.Null())
}

func (d *Device) BindUniformBuffer(binding int, id gpu.BufferID) {
	if buf, ok := d.buffers[id]; ok {
		d.gl.Call("bindBufferBase", d.gl.Get("UNIFORM_BUFFER"), binding, buf)
	}
}

func (d *Device) DeleteBuffer(id gpu.BufferID) {
	if buf, ok := d.buffers[id]; ok {
		d.gl.Call("deleteBuffer", buf)
		delete(d.buffers, id)
	}
}

func (d *Device) CreateFramebuffer(rb *gpu.RenderBuffer) gpu.FramebufferID {
	samples := min(rb.Samples, d.gl.Call("getParameter", d.gl.Get("MAX_SAMPLES")).Int())
	target := d.gl.Get("RENDERBUFFER")
	storage := func(format string) js.Value {
		obj := d.gl.Call("createRenderbuffer")
		d.gl.Call("bindRenderbuffer", target, obj)
		d.gl.Call("renderbufferStorageMultisample", target, samples, d.gl.Get(format), rb.Width, rb.Height)
		return obj
	}
	fb := &framebuffer{
		obj:   d.gl.Call("createFramebuffer"),
		color: storage("RGBA8"),
		depth: storage("DEPTH_COMPONENT24"),
	}
	d.gl.Call("bindRenderbuffer", target, js.Null())

	fbTarget := d.gl.Get("FRAMEBUFFER")
	d.gl.Call("bindFramebuffer", fbTarget, fb.obj)
	d.gl.Call("framebufferRenderbuffer", fbTarget, d.gl.Get("COLOR_ATTACHMENT0"), target, fb.color)
	d.gl.Call("framebufferRenderbuffer", fbTarget, d.gl.Get("DEPTH_ATTACHMENT"), target, fb.depth)
	if status := d.gl.Call("checkFramebufferStatus", fbTarget).Int(); status != d.enum("FRAMEBUFFER_COMPLETE") {
		render.Logger().Warn("incomplete framebuffer", slog.String("target", rb.Name), slog.Int("status", status))
	}
	d.gl.Call("bindFramebuffer", fbTarget, js.Null())

	id := gpu.FramebufferID(d.id())
	d.framebuffers[id] = fb
	return id
}

func (d *Device) DeleteFramebuffer(id gpu.FramebufferID) {
	fb, ok := d.framebuffers[id]
	if !ok {
		return
	}
	d.gl.Call("deleteFramebuffer", fb.obj)
	d.gl.Call("deleteRenderbuffer", fb.color)
	d.gl.Call("deleteRenderbuffer", fb.depth)
	delete(d.framebuffers, id)
}

func (d *Device) framebufferObject(id gpu.FramebufferID) js.Value {
	if fb, ok := d.framebuffers[id]; ok {
		return fb.obj
	}
	return js.Null()
}

func (d *Device) BindFramebuffer(id gpu.FramebufferID) {
	d.gl.Call("bindFramebuffer", d.gl.Get("FRAMEBUFFER"), d.framebufferObject(id))
}

func (d *Device) BlitFramebuffer(src, dst gpu.FramebufferID, width, height int, mask gpu.ClearMask) {
	d.gl.Call("bindFramebuffer", d.gl.Get("READ_FRAMEBUFFER"), d.framebufferObject(src))
	d.gl.Call("bindFramebuffer", d.gl.Get("DRAW_FRAMEBUFFER"), d.framebufferObject(dst))
	d.gl.Call("blitFramebuffer", 0, 0, width, height, 0, 0, width, height, clearBits(mask), glNearest)
}

// Viewport sets the viewport and keeps the canvas drawing buffer in step.
func (d *Device) Viewport(width, height int) {
	if d.canvas.Get("width").Int() != width || d.canvas.Get("height").Int() != height {
		d.canvas.Set("width", width)
		d.canvas.Set("height", height)
	}
	d.gl.Call("viewport", 0, 0, width, height)
}

func (d *Device) Clear(c [4]float32, mask gpu.ClearMask) {
	d.gl.Call("clearColor", c[0], c[1], c[2], c[3])
	if mask&gpu.ClearDepth != 0 && !d.state.DepthWrite {
		d.gl.Call("depthMask", true)
		defer d.gl.Call("depthMask", false)
	}
	d.gl.Call("clear", clearBits(mask))
}

func (d *Device) toggle(capability string, on bool) {
	if on {
		d.gl.Call("enable", d.gl.Get(capability))
	} else {
		d.gl.Call("disable", d.gl.Get(capability))
	}
}

func (d *Device) SetState(s gpu.State) {
	d.state = s
	d.toggle("BLEND", s.Blending != gpu.BlendNone)
	if s.Blending != gpu.BlendNone {
		src, dst := blendFunc(s.Blending)
		d.gl.Call("blendFunc", src, dst)
	}
	d.toggle("DEPTH_TEST", s.DepthTest)
	d.gl.Call("depthFunc", d.gl.Get("LEQUAL"))
	d.gl.Call("depthMask", s.DepthWrite)
	face, cull := cullFace(s)
	d.toggle("CULL_FACE", cull)
	if cull {
		d.gl.Call("cullFace", face)
	}
}

func (d *Device) SetRasterizerDiscard(enabled bool) {
	d.toggle("RASTERIZER_DISCARD", enabled)
}

// BeginFeedback binds the streams of target as capture buffers: varying i
// of the current program is written to the i-th attribute of the target
// geometry.
func (d *Device) BeginFeedback(target gpu.VertexArrayID) {
	va, ok := d.vertexArrays[target]
	if !ok || d.current == nil {
		return
	}
	if d.feedback.IsUndefined() {
		d.feedback = d.gl.Call("createTransformFeedback")
	}
	tf := d.gl.Get("TRANSFORM_FEEDBACK")
	d.gl.Call("bindTransformFeedback", tf, d.feedback)
	for i := 0; i < d.current.varyings && i < len(va.data.order); i++ {
		buf := va.data.attribs[va.data.order[i]]
		d.gl.Call("bindBufferBase", d.gl.Get("TRANSFORM_FEEDBACK_BUFFER"), i, buf)
	}
	d.gl.Call("beginTransformFeedback", glPoints)
}

func (d *Device) EndFeedback() {
	if d.feedback.IsUndefined() {
		return
	}
	d.gl.Call("endTransformFeedback")
	buf := d.gl.Get("TRANSFORM_FEEDBACK_BUFFER")
	if d.current != nil {
		for i := range d.current.varyings {
			d.gl.Call("bindBufferBase", buf, i, js.Null())
		}
	}
	d.gl.Call("bindTransformFeedback", d.gl.Get("TRANSFORM_FEEDBACK"), js.Null())
}

func (d *Device) DrawArrays(mode gpu.DrawMode, first, count int) {
	d.gl.Call("drawArrays", drawMode(mode), first, count)
}

func (d *Device) DrawElements(mode gpu.DrawMode, count int) {
	d.gl.Call("drawElements", drawMode(mode), count, d.gl.Get("UNSIGNED_INT"), 0)
}

func uint8Array(b []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(arr, b)
	return arr
}

func float32Array(fs []float32) js.Value {
	u8 := uint8Array(float32Bytes(fs))
	return js.Global().Get("Float32Array").New(u8.Get("buffer"), 0, len(fs))
}

func uint32Array(us []uint32) js.Value {
	u8 := uint8Array(uint32Bytes(us))
	return js.Global().Get("Uint32Array").New(u8.Get("buffer"), 0, len(us))
}
