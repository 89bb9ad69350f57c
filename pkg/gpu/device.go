package gpu

// Object names returned by a Device. Zero is never a valid object, and the
// zero FramebufferID is the default (on-screen) framebuffer.
type (
	ProgramID     uint32
	VertexArrayID uint32
	TextureID     uint32
	BufferID      uint32
	FramebufferID uint32
)

// ClearMask selects which buffers Clear and BlitFramebuffer touch.
type ClearMask int

const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
)

// Device is the rendering-context binding layer. All calls must happen on the
// goroutine that owns the context.
type Device interface {
	CreateProgram(p *Program) (ProgramID, error)
	DeleteProgram(id ProgramID)
	UseProgram(id ProgramID)
	SetUniform(id ProgramID, name string, value any)
	BindUniformBlock(id ProgramID, block string, binding int)

	// CreateVertexArray uploads every attribute and index stream of g and
	// binds them to the attribute locations of program id.
	CreateVertexArray(id ProgramID, g *Geometry) (VertexArrayID, error)
	UpdateVertexArray(id VertexArrayID, g *Geometry)
	DeleteVertexArray(id VertexArrayID)
	BindVertexArray(id VertexArrayID)

	CreateTexture(t *Texture) TextureID
	UploadTexture(id TextureID, t *Texture)
	DeleteTexture(id TextureID)
	BindTexture(unit int, id TextureID)

	CreateUniformBuffer(b *UniformBuffer) BufferID
	WriteUniformBuffer(id BufferID, data []byte)
	BindUniformBuffer(binding int, id BufferID)
	DeleteBuffer(id BufferID)

	CreateFramebuffer(rb *RenderBuffer) FramebufferID
	DeleteFramebuffer(id FramebufferID)
	BindFramebuffer(id FramebufferID)
	BlitFramebuffer(src, dst FramebufferID, width, height int, mask ClearMask)

	Viewport(width, height int)
	Clear(color [4]float32, mask ClearMask)
	SetState(s State)
	SetRasterizerDiscard(enabled bool)

	// BeginFeedback captures vertex outputs into the streams of target.
	BeginFeedback(target VertexArrayID)
	EndFeedback()

	DrawArrays(mode DrawMode, first, count int)
	DrawElements(mode DrawMode, count int)
}
