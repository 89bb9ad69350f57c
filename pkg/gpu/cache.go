package gpu

import "fmt"

// Cache memoizes the GPU objects materialized for descriptors. Entries are
// keyed by descriptor handle, so two descriptors with identical contents still
// get independent GPU objects: the cache remembers what was uploaded, it does
// not deduplicate content.
type Cache struct {
	dev Device

	programs     map[Handle]*programEntry
	vertexArrays map[vertexArrayKey]*vertexArrayEntry
	textures     map[Handle]*textureEntry
	buffers      map[Handle]*bufferEntry
	framebuffers map[Handle]*framebufferEntry
	uniforms     map[Handle]*Uniforms

	stats CacheStats
}

// CacheStats counts cache activity since creation.
type CacheStats struct {
	ProgramsBuilt    int
	VertexArrays     int
	TextureUploads   int
	BufferWrites     int
	UniformUploads   int
	UniformsSkipped  int
	ContextLosses    int
	ResourcesFreed   int
	FramebuffersMade int
}

type programEntry struct {
	id      ProgramID
	version uint64
	// writer records which uniform set last uploaded each location.
	writer   map[string]Handle
	samplers map[string]int
	blocks   map[string]int
}

type vertexArrayKey struct {
	program  Handle
	geometry Handle
}

type vertexArrayEntry struct {
	id      VertexArrayID
	version uint64
}

type textureEntry struct {
	id      TextureID
	version uint64
}

type bufferEntry struct {
	id      BufferID
	version uint64
}

type framebufferEntry struct {
	id      FramebufferID
	version uint64
}

// NewCache creates an empty cache bound to dev.
func NewCache(dev Device) *Cache {
	c := &Cache{dev: dev}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.programs = make(map[Handle]*programEntry)
	c.vertexArrays = make(map[vertexArrayKey]*vertexArrayEntry)
	c.textures = make(map[Handle]*textureEntry)
	c.buffers = make(map[Handle]*bufferEntry)
	c.framebuffers = make(map[Handle]*framebufferEntry)
	if c.uniforms == nil {
		c.uniforms = make(map[Handle]*Uniforms)
	}
}

// Device returns the device the cache materializes objects on.
func (c *Cache) Device() Device {
	return c.dev
}

// Stats returns the activity counters.
func (c *Cache) Stats() CacheStats {
	return c.stats
}

// Program returns the compiled program for p, building it on first use and
// rebuilding it when its version changed.
func (c *Cache) Program(p *Program) (ProgramID, error) {
	e, ok := c.programs[p.Handle()]
	if ok && e.version == p.Version() {
		return e.id, nil
	}
	if ok {
		c.dev.DeleteProgram(e.id)
		c.dropVertexArrays(func(k vertexArrayKey) bool { return k.program == p.Handle() })
	}

	id, err := c.dev.CreateProgram(p)
	if err != nil {
		delete(c.programs, p.Handle())
		return 0, fmt.Errorf("build program %q: %w", p.Name, err)
	}
	c.programs[p.Handle()] = &programEntry{
		id:       id,
		version:  p.Version(),
		writer:   make(map[string]Handle),
		samplers: make(map[string]int),
		blocks:   make(map[string]int),
	}
	c.stats.ProgramsBuilt++
	return id, nil
}

// VertexArray returns the vertex array binding g to program p, creating it
// on first use and re-uploading the streams when g's version changed.
// Program must have been resolved first.
func (c *Cache) VertexArray(p *Program, g *Geometry) (VertexArrayID, error) {
	pe, ok := c.programs[p.Handle()]
	if !ok {
		return 0, fmt.Errorf("vertex array for %q: program %q not built", g.Name, p.Name)
	}

	key := vertexArrayKey{program: p.Handle(), geometry: g.Handle()}
	e, ok := c.vertexArrays[key]
	if !ok {
		id, err := c.dev.CreateVertexArray(pe.id, g)
		if err != nil {
			return 0, fmt.Errorf("create vertex array %q: %w", g.Name, err)
		}
		c.vertexArrays[key] = &vertexArrayEntry{id: id, version: g.Version()}
		c.stats.VertexArrays++
		return id, nil
	}
	if e.version != g.Version() {
		c.dev.UpdateVertexArray(e.id, g)
		e.version = g.Version()
	}
	return e.id, nil
}

// Texture returns the texture object for t, uploading pixels only when the
// texture changed since the last upload.
func (c *Cache) Texture(t *Texture) TextureID {
	e, ok := c.textures[t.Handle()]
	if !ok {
		e = &textureEntry{id: c.dev.CreateTexture(t)}
		c.textures[t.Handle()] = e
	}
	if e.version != t.Version() {
		c.dev.UploadTexture(e.id, t)
		e.version = t.Version()
		c.stats.TextureUploads++
	}
	return e.id
}

// UniformBuffer returns the buffer object for b, writing its bytes only when
// they changed since the last write.
func (c *Cache) UniformBuffer(b *UniformBuffer) BufferID {
	e, ok := c.buffers[b.Handle()]
	if !ok {
		e = &bufferEntry{id: c.dev.CreateUniformBuffer(b)}
		c.buffers[b.Handle()] = e
		c.dev.BindUniformBuffer(b.Binding, e.id)
	}
	if e.version != b.Version() {
		c.dev.WriteUniformBuffer(e.id, b.Bytes())
		e.version = b.Version()
		c.stats.BufferWrites++
	}
	return e.id
}

// Framebuffer returns the framebuffer for rb, recreating it after a resize.
func (c *Cache) Framebuffer(rb *RenderBuffer) FramebufferID {
	e, ok := c.framebuffers[rb.Handle()]
	if ok && e.version == rb.Version() {
		return e.id
	}
	if ok {
		c.dev.DeleteFramebuffer(e.id)
	}
	id := c.dev.CreateFramebuffer(rb)
	c.framebuffers[rb.Handle()] = &framebufferEntry{id: id, version: rb.Version()}
	c.stats.FramebuffersMade++
	return id
}

// BindBlock attaches a uniform block of program p to buffer b's binding
// point, once per program build.
func (c *Cache) BindBlock(p *Program, b *UniformBuffer) {
	pe, ok := c.programs[p.Handle()]
	if !ok {
		return
	}
	if binding, ok := pe.blocks[b.Block]; ok && binding == b.Binding {
		return
	}
	c.dev.BindUniformBlock(pe.id, b.Block, b.Binding)
	pe.blocks[b.Block] = b.Binding
}

// ApplyUniforms uploads the uniforms of set that program p does not hold yet:
// those flagged as changed, and those another set wrote to the same location
// since. It returns the number of uploads.
func (c *Cache) ApplyUniforms(p *Program, set *Uniforms) int {
	pe, ok := c.programs[p.Handle()]
	if !ok || set == nil {
		return 0
	}
	c.uniforms[set.Handle()] = set

	n := 0
	for _, u := range set.All() {
		if !u.needsUpdate && pe.writer[u.Name] == set.Handle() {
			c.stats.UniformsSkipped++
			continue
		}
		c.dev.SetUniform(pe.id, u.Name, u.value)
		pe.writer[u.Name] = set.Handle()
		u.needsUpdate = false
		n++
	}
	c.stats.UniformUploads += n
	return n
}

// BindSampler points the sampler uniform name of program p at unit, skipping
// the upload when it already does.
func (c *Cache) BindSampler(p *Program, name string, unit int) {
	pe, ok := c.programs[p.Handle()]
	if !ok {
		return
	}
	if u, ok := pe.samplers[name]; ok && u == unit {
		return
	}
	c.dev.SetUniform(pe.id, name, int32(unit))
	pe.samplers[name] = unit
}

// Release deletes every GPU object materialized for the resource with handle
// h. It is a no-op for handles the cache never saw.
func (c *Cache) Release(h Handle) {
	if e, ok := c.programs[h]; ok {
		c.dev.DeleteProgram(e.id)
		delete(c.programs, h)
		c.stats.ResourcesFreed++
	}
	c.dropVertexArrays(func(k vertexArrayKey) bool { return k.program == h || k.geometry == h })
	if e, ok := c.textures[h]; ok {
		c.dev.DeleteTexture(e.id)
		delete(c.textures, h)
		c.stats.ResourcesFreed++
	}
	if e, ok := c.buffers[h]; ok {
		c.dev.DeleteBuffer(e.id)
		delete(c.buffers, h)
		c.stats.ResourcesFreed++
	}
	if e, ok := c.framebuffers[h]; ok {
		c.dev.DeleteFramebuffer(e.id)
		delete(c.framebuffers, h)
		c.stats.ResourcesFreed++
	}
	delete(c.uniforms, h)
}

func (c *Cache) dropVertexArrays(match func(vertexArrayKey) bool) {
	for k, e := range c.vertexArrays {
		if match(k) {
			c.dev.DeleteVertexArray(e.id)
			delete(c.vertexArrays, k)
			c.stats.ResourcesFreed++
		}
	}
}

// Lost handles a lost rendering context. Every GPU object is already gone,
// so entries are forgotten without deleting them, and every uniform the cache
// has seen is marked dirty. Objects are rebuilt lazily on the next draws.
func (c *Cache) Lost() {
	c.reset()
	for _, set := range c.uniforms {
		set.MarkAllDirty()
	}
	c.stats.ContextLosses++
}

// Len returns the number of live cached objects, all kinds together.
func (c *Cache) Len() int {
	return len(c.programs) + len(c.vertexArrays) + len(c.textures) + len(c.buffers) + len(c.framebuffers)
}
