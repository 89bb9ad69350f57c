package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/gpu/gputest"
)

func triangle() *gpu.Geometry {
	g := gpu.NewGeometry("tri", gpu.Triangles)
	g.SetAttribute(gpu.AttribPosition, 3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0})
	return g
}

func TestCacheProgramMemoized(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	p := gpu.NewProgram("basic", "void main(){}", "void main(){}")

	id1, err := c.Program(p)
	require.NoError(t, err)
	id2, err := c.Program(p)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, dev.Count("CreateProgram"))
}

func TestCacheIdentityNotContent(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	a := gpu.NewProgram("same", "v", "f")
	b := gpu.NewProgram("same", "v", "f")

	ida, err := c.Program(a)
	require.NoError(t, err)
	idb, err := c.Program(b)
	require.NoError(t, err)

	assert.NotEqual(t, ida, idb)
	assert.Equal(t, 2, dev.Live("program"))
}

func TestCacheProgramRebuildOnDefine(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	p := gpu.NewProgram("lit", "v", "f")
	g := triangle()

	_, err := c.Program(p)
	require.NoError(t, err)
	_, err = c.VertexArray(p, g)
	require.NoError(t, err)

	p.SetDefine("POINT_LIGHTS", "4")
	_, err = c.Program(p)
	require.NoError(t, err)

	assert.Equal(t, 2, dev.Count("CreateProgram"))
	assert.Equal(t, 1, dev.Count("DeleteProgram"))
	assert.Equal(t, 1, dev.Count("DeleteVertexArray"), "vertex arrays of the old program are dropped")
	assert.Equal(t, 1, dev.Live("program"))
	assert.Equal(t, 0, dev.Live("vao"))
}

func TestCacheProgramFailure(t *testing.T) {
	dev := gputest.New()
	dev.FailPrograms["broken"] = true
	c := gpu.NewCache(dev)

	_, err := c.Program(gpu.NewProgram("broken", "v", "f"))
	require.ErrorIs(t, err, gputest.ErrCompile)
	assert.Contains(t, err.Error(), "broken")
}

func TestCacheVertexArrayNeedsProgram(t *testing.T) {
	c := gpu.NewCache(gputest.New())
	_, err := c.VertexArray(gpu.NewProgram("p", "v", "f"), triangle())
	assert.Error(t, err)
}

func TestCacheVertexArrayPerProgramAndGeometry(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	p1 := gpu.NewProgram("a", "v", "f")
	p2 := gpu.NewProgram("b", "v", "f")
	g := triangle()

	for _, p := range []*gpu.Program{p1, p2, p1} {
		_, err := c.Program(p)
		require.NoError(t, err)
		_, err = c.VertexArray(p, g)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, dev.Count("CreateVertexArray"))

	g.SetIndices([]uint32{0, 1, 2})
	_, err := c.VertexArray(p1, g)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Count("UpdateVertexArray"))
}

func TestCacheTextureUploadOnlyOnVersionChange(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	tex := gpu.NewTexture("albedo")

	c.Texture(tex)
	c.Texture(tex)
	assert.Equal(t, 1, dev.Count("UploadTexture"))

	tex.MarkChanged()
	c.Texture(tex)
	assert.Equal(t, 2, dev.Count("UploadTexture"))
	assert.Equal(t, 1, dev.Count("CreateTexture"))
}

func TestCacheUniformBufferWrites(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	b := gpu.NewUniformBuffer("Window", 1, 16)

	c.UniformBuffer(b)
	c.UniformBuffer(b)
	assert.Equal(t, 1, dev.Count("WriteUniformBuffer"))

	b.SetFloat(8, 1.5)
	c.UniformBuffer(b)
	assert.Equal(t, 2, dev.Count("WriteUniformBuffer"))

	b.SetFloat(8, 1.5)
	c.UniformBuffer(b)
	assert.Equal(t, 2, dev.Count("WriteUniformBuffer"), "unchanged bytes do not bump the version")
}

func TestCacheFramebufferResize(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	rb := gpu.NewRenderBuffer("opaque", 64, 32)

	first := c.Framebuffer(rb)
	assert.Equal(t, first, c.Framebuffer(rb))

	rb.SetSize(128, 64)
	second := c.Framebuffer(rb)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, dev.Live("framebuffer"))
}

func TestApplyUniformsDirtyTracking(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	p := gpu.NewProgram("p", "v", "f")
	_, err := c.Program(p)
	require.NoError(t, err)

	set := gpu.NewUniforms()
	set.Set("opacity", float32(0.5))
	set.Set("tint", float32(1))

	assert.Equal(t, 2, c.ApplyUniforms(p, set))
	assert.Equal(t, 0, c.ApplyUniforms(p, set), "clean uniforms are not re-uploaded")

	set.Set("opacity", float32(0.25))
	assert.Equal(t, 1, c.ApplyUniforms(p, set))
	assert.False(t, set.Get("opacity").NeedsUpdate())
}

func TestApplyUniformsOtherOwnerWroteLocation(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	p := gpu.NewProgram("shared", "v", "f")
	id, err := c.Program(p)
	require.NoError(t, err)

	a := gpu.NewUniforms()
	a.Set("modelMatrix", float32(1))
	b := gpu.NewUniforms()
	b.Set("modelMatrix", float32(2))

	c.ApplyUniforms(p, a)
	c.ApplyUniforms(p, b)
	assert.Equal(t, 1, c.ApplyUniforms(p, a), "a must restore its value after b overwrote it")
	assert.Equal(t, float32(1), dev.Uniforms[id]["modelMatrix"])
}

func TestCacheLost(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	p := gpu.NewProgram("p", "v", "f")
	g := triangle()
	tex := gpu.NewTexture("t")
	set := gpu.NewUniforms()
	set.Set("x", float32(1))

	_, err := c.Program(p)
	require.NoError(t, err)
	_, err = c.VertexArray(p, g)
	require.NoError(t, err)
	c.Texture(tex)
	c.ApplyUniforms(p, set)
	require.False(t, set.Get("x").NeedsUpdate())

	c.Lost()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, dev.Count("DeleteProgram"), "lost objects are not deleted")
	assert.True(t, set.Get("x").NeedsUpdate())
	assert.Equal(t, 1, c.Stats().ContextLosses)

	_, err = c.Program(p)
	require.NoError(t, err)
	assert.Equal(t, 2, dev.Count("CreateProgram"))
}

func TestCacheRelease(t *testing.T) {
	dev := gputest.New()
	c := gpu.NewCache(dev)
	p := gpu.NewProgram("p", "v", "f")
	g := triangle()
	tex := gpu.NewTexture("t")

	_, err := c.Program(p)
	require.NoError(t, err)
	_, err = c.VertexArray(p, g)
	require.NoError(t, err)
	c.Texture(tex)

	c.Release(g.Handle())
	assert.Equal(t, 0, dev.Live("vao"))
	assert.Equal(t, 1, dev.Live("program"))

	c.Release(tex.Handle())
	assert.Equal(t, 0, dev.Live("texture"))

	c.Release(p.Handle())
	assert.Equal(t, 0, dev.Live("program"))
	assert.Equal(t, 0, c.Len())

	c.Release(p.Handle())
	assert.Equal(t, 1, dev.Count("DeleteProgram"))
}

func TestDisposeQueue(t *testing.T) {
	q := gpu.NewDisposeQueue()
	g := triangle()
	tex := gpu.NewTexture("t")

	q.Push(g, tex, g, nil)
	assert.Equal(t, 2, q.Len())

	var released []gpu.Handle
	n := q.Drain(func(h gpu.Handle) { released = append(released, h) })
	assert.Equal(t, 2, n)
	assert.Equal(t, []gpu.Handle{g.Handle(), tex.Handle()}, released)
	assert.Equal(t, 0, q.Len())

	q.Push(g)
	assert.Equal(t, 1, q.Len(), "a drained handle can be queued again")
}
