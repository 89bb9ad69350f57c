package gpu

// Uniform is a named shader constant with a dirty flag. Values are float32,
// int32, bool, math3d.Vec2/Vec3/Vec4 or math3d.Mat4.
type Uniform struct {
	Name        string
	value       any
	needsUpdate bool
}

// Set replaces the value and marks the uniform for upload.
func (u *Uniform) Set(v any) {
	u.value = v
	u.needsUpdate = true
}

// Value returns the current value.
func (u *Uniform) Value() any {
	return u.value
}

// NeedsUpdate reports whether the value changed since the last upload.
func (u *Uniform) NeedsUpdate() bool {
	return u.needsUpdate
}

// Uniforms is an ordered set of uniforms owned by one material or object.
// Its handle lets the cache tell which set last wrote a program's uniform
// locations.
type Uniforms struct {
	versioned

	list  []*Uniform
	index map[string]int
}

// NewUniforms creates an empty set with its own handle.
func NewUniforms() *Uniforms {
	return &Uniforms{
		versioned: newVersioned(),
		index:     make(map[string]int),
	}
}

// Set creates or updates a uniform and returns it.
func (s *Uniforms) Set(name string, v any) *Uniform {
	s.touch()
	if i, ok := s.index[name]; ok {
		u := s.list[i]
		u.Set(v)
		return u
	}
	u := &Uniform{Name: name}
	u.Set(v)
	s.index[name] = len(s.list)
	s.list = append(s.list, u)
	return u
}

// Get returns the named uniform or nil.
func (s *Uniforms) Get(name string) *Uniform {
	if i, ok := s.index[name]; ok {
		return s.list[i]
	}
	return nil
}

// All returns the uniforms in insertion order.
func (s *Uniforms) All() []*Uniform {
	return s.list
}

// Len returns the number of uniforms.
func (s *Uniforms) Len() int {
	return len(s.list)
}

// MarkAllDirty forces every uniform to be uploaded on next use.
func (s *Uniforms) MarkAllDirty() {
	for _, u := range s.list {
		u.needsUpdate = true
	}
}
