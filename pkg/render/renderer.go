// Package render draws a scene graph through a gpu.Device. A Renderer runs
// the per-frame pipeline: transform update, light and camera block sync,
// feedback passes, frustum culling, opaque and transparent passes sorted to
// minimize state changes, and particles.
package render

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/scene"
)

// FrameStats counts the work of the last frame.
type FrameStats struct {
	Objects     int
	Culled      int
	Opaque      int
	Transparent int
	Particles   int
	Feedback    int
	PointLights int
	Draws       int
	Disposed    int
}

// Renderer draws one scene with one camera.
type Renderer struct {
	dev       gpu.Device
	cache     *gpu.Cache
	disposals *gpu.DisposeQueue
	opts      Options

	root   *scene.Node
	camera *scene.Camera

	width, height int

	cameraBlock   *gpu.UniformBuffer
	windowBlock   *gpu.UniformBuffer
	ambient       *AmbientLight
	points        *PointLights
	cameraVersion uint64

	target    *gpu.RenderBuffer
	particles *ParticleSystem

	lost bool

	// per-frame scratch, reused across frames
	candidates  []drawItem
	visible     []drawItem
	opaque      []drawItem
	transparent []drawItem
	feedback    []*scene.Object
	pointLights []PointLight
	ambients    []*scene.Light

	bound gpu.ProgramID
	state gpu.State
	fresh bool

	stats FrameStats
}

// New creates a renderer for root as seen by camera.
func New(dev gpu.Device, root *scene.Node, camera *scene.Camera, opts Options) *Renderer {
	opts = opts.withDefaults()
	r := &Renderer{
		dev:         dev,
		cache:       gpu.NewCache(dev),
		disposals:   gpu.NewDisposeQueue(),
		opts:        opts,
		root:        root,
		camera:      camera,
		cameraBlock: newCameraBlock(),
		windowBlock: newWindowBlock(),
		ambient:     NewAmbientLight(),
		points:      NewPointLights(opts.PointLights),
		target:      gpu.NewRenderBuffer("opaque", opts.Width, opts.Height),
		particles:   NewParticleSystem(),
	}
	r.Resize(opts.Width, opts.Height)
	return r
}

// Cache returns the GPU resource cache.
func (r *Renderer) Cache() *gpu.Cache { return r.cache }

// Disposals returns the queue that destroyed scene objects push their
// resources onto. It is drained at the start of every frame.
func (r *Renderer) Disposals() *gpu.DisposeQueue { return r.disposals }

// Particles returns the particle system.
func (r *Renderer) Particles() *ParticleSystem { return r.particles }

// PointLights returns the point light block.
func (r *Renderer) PointLights() *PointLights { return r.points }

// Stats returns the counters of the last frame.
func (r *Renderer) Stats() FrameStats { return r.stats }

// Size returns the drawing buffer size.
func (r *Renderer) Size() (width, height int) { return r.width, r.height }

// Resize changes the drawing buffer size. The camera aspect ratio, the
// offscreen target and the window block follow.
func (r *Renderer) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	r.width, r.height = width, height
	if r.camera != nil {
		r.camera.SetAspectRatio(float64(width) / float64(height))
	}
	r.target.SetSize(width, height)
	writeWindow(r.windowBlock, width, height, float64(r.windowBlock.Float(scene.WindowTime)), r.opts.PixelRatio)
	if !r.lost {
		r.dev.Viewport(width, height)
	}
}

// ContextLost handles loss of the rendering context. Every cached object is
// forgotten and every uniform marked for upload; drawing is suspended until
// ContextRestored.
func (r *Renderer) ContextLost() {
	Logger().Warn("rendering context lost", slog.Int("cached", r.cache.Len()))
	r.lost = true
	r.cache.Lost()
	r.cameraVersion = 0
	r.bound = 0
	r.fresh = false
}

// ContextRestored resumes drawing. Resources are rebuilt on demand by the
// next frames.
func (r *Renderer) ContextRestored() {
	Logger().Info("rendering context restored")
	r.lost = false
	r.dev.Viewport(r.width, r.height)
}

// Lost reports whether the context is currently lost.
func (r *Renderer) Lost() bool { return r.lost }

// Render draws one frame. elapsed is the time since the application
// started and feeds the window block.
func (r *Renderer) Render(elapsed time.Duration) error {
	if r.lost {
		return nil
	}
	r.stats = FrameStats{}
	r.bound = 0
	r.fresh = false

	r.stats.Disposed = r.disposals.Drain(r.cache.Release)

	r.root.UpdateWorldTransform(true)

	if v := r.camera.Version(); v != r.cameraVersion {
		writeCamera(r.cameraBlock, r.camera)
		r.cameraVersion = v
	}
	writeWindow(r.windowBlock, r.width, r.height, elapsed.Seconds(), r.opts.PixelRatio)

	r.collect()
	r.syncLights()
	r.syncBlocks()

	if err := r.runFeedback(); err != nil {
		return err
	}

	items := r.candidates
	if r.opts.Cull {
		items, r.stats.Culled = cull(r.camera.Frustum(), r.candidates, r.visible)
		r.visible = items
	}
	r.opaque, r.transparent = partition(items, r.opaque, r.transparent)
	sortDraws(r.opaque)
	sortDraws(r.transparent)
	r.stats.Opaque = len(r.opaque)
	r.stats.Transparent = len(r.transparent)

	if err := r.drawPasses(); err != nil {
		return err
	}

	Logger().Debug("frame",
		slog.Int("draws", r.stats.Draws),
		slog.Int("culled", r.stats.Culled),
		slog.Int("transparent", r.stats.Transparent))
	return nil
}

// collect walks the scene and sorts attached objects by kind. Particle
// emitters are moved out of their node into the particle system.
func (r *Renderer) collect() {
	r.candidates = r.candidates[:0]
	r.feedback = r.feedback[:0]
	r.pointLights = r.pointLights[:0]
	r.ambients = r.ambients[:0]

	visit := func(n *scene.Node) bool {
		for _, o := range n.ObjectsOf(scene.KindMesh) {
			if o.Geometry == nil || o.Material == nil {
				continue
			}
			r.candidates = append(r.candidates, drawItem{object: o, node: n})
		}
		for _, o := range n.ObjectsOf(scene.KindPointLight) {
			r.pointLights = append(r.pointLights, PointLight{
				Position:  n.WorldPosition(),
				Color:     o.Light.Color,
				Intensity: o.Light.Intensity,
			})
		}
		for _, o := range n.ObjectsOf(scene.KindAmbientLight) {
			r.ambients = append(r.ambients, o.Light)
		}
		if emitters := n.ObjectsOf(scene.KindParticles); len(emitters) > 0 {
			for _, o := range append([]*scene.Object(nil), emitters...) {
				n.Detach(o)
				r.particles.Add(o, n)
			}
		}
		r.feedback = append(r.feedback, n.ObjectsOf(scene.KindFeedback)...)
		return true
	}
	visit(r.root)
	r.root.Traverse(visit)
	r.stats.Objects = len(r.candidates)
	r.stats.Feedback = len(r.feedback)
	r.stats.PointLights = len(r.pointLights)
}

func (r *Renderer) syncLights() {
	r.ambient.Sync(r.ambients)
	if r.points.Sync(r.pointLights) {
		Logger().Debug("point light block grew", slog.Int("capacity", r.points.Capacity()))
	}
}

func (r *Renderer) syncBlocks() {
	r.cache.UniformBuffer(r.cameraBlock)
	r.cache.UniformBuffer(r.windowBlock)
	r.cache.UniformBuffer(r.ambient.Buffer())
	r.cache.UniformBuffer(r.points.Buffer())
}

func (r *Renderer) blocks() [4]*gpu.UniformBuffer {
	return [4]*gpu.UniformBuffer{r.cameraBlock, r.windowBlock, r.ambient.Buffer(), r.points.Buffer()}
}

// useProgram resolves p through the cache and makes it current. Programs
// that declare the point light capacity are kept in step with the light
// block, which rebuilds them when it grows.
func (r *Renderer) useProgram(p *gpu.Program) (gpu.ProgramID, error) {
	if _, ok := p.Define(scene.DefinePointLights); ok {
		p.SetDefine(scene.DefinePointLights, strconv.Itoa(r.points.Capacity()))
	}
	built := r.cache.Stats().ProgramsBuilt
	id, err := r.cache.Program(p)
	if err != nil {
		return 0, err
	}
	if r.cache.Stats().ProgramsBuilt != built {
		Logger().Debug("program built", slog.String("program", p.Name), slog.Uint64("version", p.Version()))
	}
	if id != r.bound {
		r.dev.UseProgram(id)
		r.bound = id
		for _, b := range r.blocks() {
			r.cache.BindBlock(p, b)
		}
	}
	return id, nil
}

func (r *Renderer) runFeedback() error {
	if len(r.feedback) == 0 {
		return nil
	}
	r.dev.SetRasterizerDiscard(true)
	defer r.dev.SetRasterizerDiscard(false)

	for _, o := range r.feedback {
		fb := o.Feedback
		if fb == nil || fb.Program == nil || fb.Source == nil || fb.Target == nil {
			continue
		}
		if _, err := r.useProgram(fb.Program); err != nil {
			return fmt.Errorf("feedback %q: %w", o.Name, err)
		}
		src, err := r.cache.VertexArray(fb.Program, fb.Source)
		if err != nil {
			return fmt.Errorf("feedback %q: %w", o.Name, err)
		}
		dst, err := r.cache.VertexArray(fb.Program, fb.Target)
		if err != nil {
			return fmt.Errorf("feedback %q: %w", o.Name, err)
		}
		r.cache.ApplyUniforms(fb.Program, o.Uniforms)
		r.dev.BindVertexArray(src)
		r.dev.BeginFeedback(dst)
		r.dev.DrawArrays(gpu.Points, 0, fb.Count())
		r.dev.EndFeedback()
		fb.Swap()
	}
	return nil
}

func (r *Renderer) drawPasses() error {
	clearColor := [4]float32{
		float32(r.opts.ClearColor.X), float32(r.opts.ClearColor.Y),
		float32(r.opts.ClearColor.Z), float32(r.opts.ClearColor.W),
	}

	var fbo gpu.FramebufferID
	if r.opts.Offscreen {
		fbo = r.cache.Framebuffer(r.target)
	}
	r.dev.BindFramebuffer(fbo)
	r.dev.Viewport(r.width, r.height)
	r.dev.Clear(clearColor, gpu.ClearColor|gpu.ClearDepth)

	for _, it := range r.opaque {
		if err := r.draw(it, false); err != nil {
			return err
		}
	}

	if r.opts.Offscreen {
		r.dev.BlitFramebuffer(fbo, 0, r.width, r.height, gpu.ClearColor|gpu.ClearDepth)
		r.dev.BindFramebuffer(0)
	}

	for _, it := range r.transparent {
		if err := r.draw(it, true); err != nil {
			return err
		}
	}

	particles := r.particles.items(r.disposals)
	sortDraws(particles)
	r.stats.Particles = len(particles)
	for _, it := range particles {
		if err := r.draw(it, true); err != nil {
			return err
		}
	}
	return nil
}

// draw issues one draw call. Only uniforms that changed, or that another
// object wrote since, are uploaded.
func (r *Renderer) draw(it drawItem, blended bool) error {
	o := it.object
	mat := o.Material
	prog := mat.Program

	if _, err := r.useProgram(prog); err != nil {
		return fmt.Errorf("draw %q: %w", o.Name, err)
	}
	vao, err := r.cache.VertexArray(prog, o.Geometry)
	if err != nil {
		return fmt.Errorf("draw %q: %w", o.Name, err)
	}

	world := it.node.World()
	if u := o.Uniforms.Get(scene.UniformModelMatrix); u == nil || u.Value() != world {
		o.Uniforms.Set(scene.UniformModelMatrix, world)
		o.Uniforms.Set(scene.UniformNormalMatrix, normalMatrix(world))
	}
	r.cache.ApplyUniforms(prog, mat.Uniforms)
	r.cache.ApplyUniforms(prog, o.Uniforms)

	unit := 0
	for _, bindings := range [2][]scene.TextureBinding{mat.Textures, o.Textures} {
		for _, b := range bindings {
			if b.Texture == nil {
				continue
			}
			r.dev.BindTexture(unit, r.cache.Texture(b.Texture))
			r.cache.BindSampler(prog, b.Sampler, unit)
			unit++
		}
	}

	state := o.State
	if blended {
		state.DepthWrite = false
	}
	if !r.fresh || state != r.state {
		r.dev.SetState(state)
		r.state = state
		r.fresh = true
	}

	r.dev.BindVertexArray(vao)
	g := o.Geometry
	if g.Indexed() {
		r.dev.DrawElements(g.Mode, g.DrawCount())
	} else {
		r.dev.DrawArrays(g.Mode, 0, g.DrawCount())
	}
	r.stats.Draws++
	return nil
}

func normalMatrix(world math3d.Mat4) math3d.Mat4 {
	n := world.Inverse().Transpose()
	n[12], n[13], n[14] = 0, 0, 0
	n[3], n[7], n[11] = 0, 0, 0
	return n
}

// Dispose frees the GPU objects of the renderer's own blocks and target,
// along with anything still waiting in the disposal queue.
func (r *Renderer) Dispose() {
	r.disposals.Push(r.cameraBlock, r.windowBlock, r.ambient.Buffer(), r.points.Buffer(), r.target)
	r.disposals.Drain(r.cache.Release)
	r.particles.Clear()
}
