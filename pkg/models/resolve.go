package models

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

// ErrReference matches every *ReferenceError.
var ErrReference = errors.New("dangling reference")

// ReferenceError reports an index that points outside its array.
type ReferenceError struct {
	Kind  string
	Index int
	Len   int
	Owner string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s references %s %d, only %d exist", e.Owner, e.Kind, e.Index, e.Len)
}

// Is reports whether target is ErrReference.
func (e *ReferenceError) Is(target error) bool { return target == ErrReference }

func checkIndex(kind string, i, n int, owner string) error {
	if i < 0 || i >= n {
		return &ReferenceError{Kind: kind, Index: i, Len: n, Owner: owner}
	}
	return nil
}

// ResolveOptions configures Resolve.
type ResolveOptions struct {
	// Dir is the directory external buffer and image URIs are read from.
	// External files are rejected when empty.
	Dir string
	// URLs stores image blobs. Defaults to a fresh MemoryURLs.
	URLs ObjectURLs
	// Loader decodes images. Defaults to a loader with Concurrency slots.
	Loader *ImageLoader
	// Concurrency bounds the default loader. Defaults to 4.
	Concurrency int64
}

// Path is the node property an animation channel drives.
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
	PathWeights
)

var pathNames = map[string]Path{
	"translation": PathTranslation,
	"rotation":    PathRotation,
	"scale":       PathScale,
	"weights":     PathWeights,
}

func (p Path) String() string {
	switch p {
	case PathTranslation:
		return "translation"
	case PathRotation:
		return "rotation"
	case PathScale:
		return "scale"
	case PathWeights:
		return "weights"
	}
	return fmt.Sprintf("Path(%d)", int(p))
}

// Interpolation is a keyframe interpolation mode.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	InterpolationCubicSpline
)

// Track is one animation channel with its keyframes.
type Track struct {
	Node          string
	Path          Path
	Interpolation Interpolation
	Input         *Accessor
	Output        *Accessor
}

// Animation groups tracks by the name of the node they drive.
type Animation struct {
	Name  string
	Bones map[string][]*Track
}

// Texture pairs an image with sampling parameters. GPU is the texture the
// image is uploaded into once decoded.
type Texture struct {
	Index int
	Image *ImageHandle
	GPU   *gpu.Texture
}

// Material is a metallic-roughness material.
type Material struct {
	Index                    int
	Name                     string
	BaseColor                math3d.Vec4
	Metallic                 float64
	Roughness                float64
	BaseColorTexture         *Texture
	MetallicRoughnessTexture *Texture
	AlphaMode                gltf.AlphaMode
	DoubleSided              bool
}

// Primitive is one draw call worth of a mesh.
type Primitive struct {
	Name       string
	Attributes map[string]*Accessor
	Indices    *Accessor
	Material   *Material
	Mode       gltf.PrimitiveMode
	Targets    []map[string]*Accessor

	geometry *gpu.Geometry
}

// Mesh is a list of primitives plus default morph weights.
type Mesh struct {
	Index      int
	Name       string
	Primitives []*Primitive
	Weights    []float64
}

// Joint is a node used as a bone of a skin. IDs run from zero in skin
// joint order.
type Joint struct {
	ID          int
	Name        string
	Node        *Node
	Parent      *Joint
	Children    []*Joint
	InverseBind math3d.Mat4
	// Tracks holds the channels driving this joint, by animation name.
	Tracks map[string][]*Track
}

// Skin is a joint hierarchy bound to a mesh.
type Skin struct {
	Index      int
	Name       string
	Joints     []*Joint
	RootBones  []*Joint
	BonesCount int
	Skeleton   *Node
}

// Node is a resolved scene node.
type Node struct {
	Index    int
	Name     string
	Local    math3d.Mat4
	Mesh     *Mesh
	Skin     *Skin
	Parent   *Node
	Children []*Node
	Weights  []float64
	// Morphs holds weight tracks targeting this node, by animation name.
	Morphs map[string]*Track
}

// Graph is a fully resolved glTF asset. Nodes maps names to the nodes that
// own a mesh; Roots lists the top-level nodes of the default scene.
type Graph struct {
	Nodes      map[string]*Node
	Roots      []*Node
	All        []*Node
	Animations map[string]*Animation
	Images     []*ImageHandle
	Textures   []*Texture
	Materials  []*Material
	Meshes     []*Mesh
	Skins      []*Skin

	loader *ImageLoader
}

// Loader returns the loader decoding the graph's images.
func (g *Graph) Loader() *ImageLoader { return g.loader }

type resolver struct {
	doc     *gltf.Document
	body    []byte
	opts    ResolveOptions
	buffers [][]byte
	g       *Graph

	accessors []*Accessor
	rawAnims  []rawAnimation
}

type rawAnimation struct {
	Name     string `json:"name"`
	Channels []struct {
		Sampler int `json:"sampler"`
		Target  struct {
			Node *int   `json:"node"`
			Path string `json:"path"`
		} `json:"target"`
	} `json:"channels"`
	Samplers []struct {
		Input         int    `json:"input"`
		Output        int    `json:"output"`
		Interpolation string `json:"interpolation"`
	} `json:"samplers"`
}

// Resolve turns a parsed container into a graph with every index replaced
// by a pointer. Images start decoding in the background; call
// Graph.Loader().Poll() from the render loop to deliver them.
func Resolve(c *Container, opts ResolveOptions) (*Graph, error) {
	if c == nil || c.Content == nil {
		return nil, formatErrorf("container has no content")
	}
	if opts.URLs == nil {
		opts.URLs = NewMemoryURLs()
	}
	if opts.Loader == nil {
		if opts.Concurrency == 0 {
			opts.Concurrency = 4
		}
		opts.Loader = NewImageLoader(opts.Concurrency)
	}
	rs := &resolver{
		doc:  c.Content,
		body: c.Body,
		opts: opts,
		g: &Graph{
			Nodes:      make(map[string]*Node),
			Animations: make(map[string]*Animation),
			loader:     opts.Loader,
		},
	}
	var raw struct {
		Animations []rawAnimation `json:"animations"`
	}
	if len(c.JSON) > 0 {
		if err := json.Unmarshal(c.JSON, &raw); err != nil {
			return nil, fmt.Errorf("decode animations: %w", err)
		}
	}
	rs.rawAnims = raw.Animations

	stages := []struct {
		name string
		run  func() error
	}{
		{"buffers", rs.loadBuffers},
		{"accessors", rs.resolveAccessors},
		{"animations", rs.resolveAnimations},
		{"images", rs.resolveImages},
		{"textures", rs.resolveTextures},
		{"materials", rs.resolveMaterials},
		{"meshes", rs.resolveMeshes},
		{"skins", rs.resolveSkins},
		{"nodes", rs.resolveNodes},
		{"names", rs.buildNameMap},
	}
	for _, s := range stages {
		if err := s.run(); err != nil {
			for _, h := range rs.g.Images {
				h.Release()
			}
			return nil, fmt.Errorf("resolve %s: %w", s.name, err)
		}
	}
	for _, h := range rs.g.Images {
		opts.Loader.Load(h)
	}
	Logger().Debug("resolved gltf",
		"nodes", len(rs.g.All), "meshes", len(rs.g.Meshes), "skins", len(rs.g.Skins),
		"animations", len(rs.g.Animations), "images", len(rs.g.Images))
	return rs.g, nil
}

// Load opens, parses and resolves a .glb file. External resources are read
// relative to the file.
func Load(path string) (*Graph, error) {
	c, err := Open(path)
	if err != nil {
		return nil, err
	}
	return Resolve(c, ResolveOptions{Dir: filepath.Dir(path)})
}

func (rs *resolver) loadBuffers() error {
	rs.buffers = make([][]byte, len(rs.doc.Buffers))
	for i, b := range rs.doc.Buffers {
		data, err := rs.external(b.URI, i == 0 && rs.body != nil)
		if err != nil {
			return fmt.Errorf("buffer %d: %w", i, err)
		}
		if len(data) < b.ByteLength {
			return formatErrorf("buffer %d holds %d bytes, declares %d", i, len(data), b.ByteLength)
		}
		rs.buffers[i] = data
	}
	return nil
}

// external returns the bytes behind a URI: the GLB body when the URI is
// empty, a data URI payload, or a file under Dir.
func (rs *resolver) external(uri string, useBody bool) ([]byte, error) {
	switch {
	case uri == "":
		if !useBody {
			return nil, formatErrorf("no URI and no binary chunk")
		}
		return rs.body, nil
	case strings.HasPrefix(uri, "data:"):
		_, payload, ok := strings.Cut(uri, ";base64,")
		if !ok {
			return nil, formatErrorf("data URI is not base64")
		}
		return base64.StdEncoding.DecodeString(payload)
	case rs.opts.Dir == "":
		return nil, fmt.Errorf("external file %q: no base directory", uri)
	}
	data, err := os.ReadFile(filepath.Join(rs.opts.Dir, filepath.FromSlash(uri)))
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", uri, err)
	}
	return data, nil
}

func (rs *resolver) view(i int, owner string) ([]byte, int, error) {
	if err := checkIndex("bufferView", i, len(rs.doc.BufferViews), owner); err != nil {
		return nil, 0, err
	}
	v := rs.doc.BufferViews[i]
	if err := checkIndex("buffer", v.Buffer, len(rs.buffers), fmt.Sprintf("bufferView %d", i)); err != nil {
		return nil, 0, err
	}
	buf := rs.buffers[v.Buffer]
	end := v.ByteOffset + v.ByteLength
	if v.ByteOffset < 0 || v.ByteLength < 0 || end > len(buf) {
		return nil, 0, formatErrorf("bufferView %d spans [%d, %d) of a %d byte buffer", i, v.ByteOffset, end, len(buf))
	}
	if v.ByteStride < 0 {
		return nil, 0, formatErrorf("bufferView %d has negative stride %d", i, v.ByteStride)
	}
	return buf[v.ByteOffset:end], v.ByteStride, nil
}

func (rs *resolver) accessor(i int, owner string) (*Accessor, error) {
	if err := checkIndex("accessor", i, len(rs.accessors), owner); err != nil {
		return nil, err
	}
	return rs.accessors[i], nil
}

func (rs *resolver) resolveAccessors() error {
	rs.accessors = make([]*Accessor, len(rs.doc.Accessors))
	for i, a := range rs.doc.Accessors {
		acc, err := rs.decodeAccessor(i, a)
		if err != nil {
			return err
		}
		rs.accessors[i] = acc
	}
	return nil
}

func (rs *resolver) resolveAnimations() error {
	for ai, a := range rs.rawAnims {
		owner := fmt.Sprintf("animation %d", ai)
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("animation%d", ai)
		}
		anim := rs.g.Animations[name]
		if anim == nil {
			anim = &Animation{Name: name, Bones: make(map[string][]*Track)}
			rs.g.Animations[name] = anim
		}
		for _, ch := range a.Channels {
			if ch.Target.Node == nil {
				continue
			}
			if err := checkIndex("sampler", ch.Sampler, len(a.Samplers), owner); err != nil {
				return err
			}
			if err := checkIndex("node", *ch.Target.Node, len(rs.doc.Nodes), owner); err != nil {
				return err
			}
			path, ok := pathNames[ch.Target.Path]
			if !ok {
				Logger().Debug("skipping channel", "animation", name, "path", ch.Target.Path)
				continue
			}
			s := a.Samplers[ch.Sampler]
			in, err := rs.accessor(s.Input, owner)
			if err != nil {
				return err
			}
			out, err := rs.accessor(s.Output, owner)
			if err != nil {
				return err
			}
			t := &Track{
				Node:          nodeName(rs.doc.Nodes[*ch.Target.Node], *ch.Target.Node),
				Path:          path,
				Interpolation: interpolation(s.Interpolation),
				Input:         in,
				Output:        out,
			}
			anim.Bones[t.Node] = append(anim.Bones[t.Node], t)
		}
	}
	return nil
}

func interpolation(s string) Interpolation {
	switch s {
	case "STEP":
		return InterpolationStep
	case "CUBICSPLINE":
		return InterpolationCubicSpline
	}
	return InterpolationLinear
}

func nodeName(n *gltf.Node, i int) string {
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("node%d", i)
}

func (rs *resolver) resolveImages() error {
	for i, img := range rs.doc.Images {
		owner := fmt.Sprintf("image %d", i)
		var (
			data []byte
			err  error
		)
		if img.BufferView != nil {
			data, _, err = rs.view(*img.BufferView, owner)
		} else {
			data, err = rs.external(img.URI, false)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", owner, err)
		}
		mime := img.MimeType
		if mime == "" && strings.HasPrefix(img.URI, "data:") {
			mime, _, _ = strings.Cut(strings.TrimPrefix(img.URI, "data:"), ";")
		}
		rs.g.Images = append(rs.g.Images, newImageHandle(i, img.Name, mime, data, rs.opts.URLs))
	}
	return nil
}

func (rs *resolver) resolveTextures() error {
	for i, t := range rs.doc.Textures {
		owner := fmt.Sprintf("texture %d", i)
		tex := &Texture{Index: i, GPU: gpu.NewTexture(owner)}
		if t.Sampler != nil {
			if err := checkIndex("sampler", *t.Sampler, len(rs.doc.Samplers), owner); err != nil {
				return err
			}
			applySampler(tex.GPU, rs.doc.Samplers[*t.Sampler])
		}
		if t.Source != nil {
			if err := checkIndex("image", *t.Source, len(rs.g.Images), owner); err != nil {
				return err
			}
			tex.Image = rs.g.Images[*t.Source]
			tex.Image.Bind(tex.GPU)
		}
		rs.g.Textures = append(rs.g.Textures, tex)
	}
	return nil
}

func applySampler(t *gpu.Texture, s *gltf.Sampler) {
	if s.MagFilter == gltf.MagNearest {
		t.MagFilter = gpu.FilterNearest
	}
	switch s.MinFilter {
	case gltf.MinNearest:
		t.MinFilter = gpu.FilterNearest
	case gltf.MinLinear:
		t.MinFilter = gpu.FilterLinear
	}
	t.WrapS = wrap(s.WrapS)
	t.WrapT = wrap(s.WrapT)
}

func wrap(w gltf.WrappingMode) gpu.Wrap {
	switch w {
	case gltf.WrapClampToEdge:
		return gpu.WrapClamp
	case gltf.WrapMirroredRepeat:
		return gpu.WrapMirror
	}
	return gpu.WrapRepeat
}

func (rs *resolver) textureRef(i int, owner string) (*Texture, error) {
	if err := checkIndex("texture", i, len(rs.g.Textures), owner); err != nil {
		return nil, err
	}
	return rs.g.Textures[i], nil
}

func (rs *resolver) resolveMaterials() error {
	for i, m := range rs.doc.Materials {
		owner := fmt.Sprintf("material %d", i)
		mat := &Material{
			Index:       i,
			Name:        m.Name,
			BaseColor:   math3d.V4(1, 1, 1, 1),
			Metallic:    1,
			Roughness:   1,
			AlphaMode:   m.AlphaMode,
			DoubleSided: m.DoubleSided,
		}
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			if c := pbr.BaseColorFactor; c != nil {
				mat.BaseColor = math3d.V4(c[0], c[1], c[2], c[3])
			}
			if pbr.MetallicFactor != nil {
				mat.Metallic = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				mat.Roughness = *pbr.RoughnessFactor
			}
			var err error
			if ti := pbr.BaseColorTexture; ti != nil {
				if mat.BaseColorTexture, err = rs.textureRef(ti.Index, owner); err != nil {
					return err
				}
			}
			if ti := pbr.MetallicRoughnessTexture; ti != nil {
				if mat.MetallicRoughnessTexture, err = rs.textureRef(ti.Index, owner); err != nil {
					return err
				}
			}
		}
		rs.g.Materials = append(rs.g.Materials, mat)
	}
	return nil
}

func (rs *resolver) attributes(attrs map[string]int, owner string) (map[string]*Accessor, error) {
	out := make(map[string]*Accessor, len(attrs))
	for name, idx := range attrs {
		a, err := rs.accessor(idx, owner)
		if err != nil {
			return nil, err
		}
		out[name] = a
	}
	return out, nil
}

func meshName(m *gltf.Mesh, i int) string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("mesh%d", i)
}

func (rs *resolver) resolveMeshes() error {
	for i, m := range rs.doc.Meshes {
		mesh := &Mesh{Index: i, Name: m.Name, Weights: m.Weights}
		for pi, p := range m.Primitives {
			owner := fmt.Sprintf("mesh %d primitive %d", i, pi)
			attrs, err := rs.attributes(p.Attributes, owner)
			if err != nil {
				return err
			}
			prim := &Primitive{Name: fmt.Sprintf("%s/%d", meshName(m, i), pi), Attributes: attrs, Mode: p.Mode}
			if p.Indices != nil {
				if prim.Indices, err = rs.accessor(*p.Indices, owner); err != nil {
					return err
				}
			}
			if p.Material != nil {
				if err := checkIndex("material", *p.Material, len(rs.g.Materials), owner); err != nil {
					return err
				}
				prim.Material = rs.g.Materials[*p.Material]
			}
			for _, target := range p.Targets {
				t, err := rs.attributes(target, owner)
				if err != nil {
					return err
				}
				prim.Targets = append(prim.Targets, t)
			}
			mesh.Primitives = append(mesh.Primitives, prim)
		}
		rs.g.Meshes = append(rs.g.Meshes, mesh)
	}
	return nil
}

// resolveSkins runs before node linking; joints point at node shells that
// resolveNodes fills in.
func (rs *resolver) resolveSkins() error {
	rs.g.All = make([]*Node, len(rs.doc.Nodes))
	for i, n := range rs.doc.Nodes {
		rs.g.All[i] = &Node{Index: i, Name: nodeName(n, i), Local: localMatrix(n), Weights: n.Weights}
	}

	for si, s := range rs.doc.Skins {
		owner := fmt.Sprintf("skin %d", si)
		skin := &Skin{Index: si, Name: s.Name, BonesCount: len(s.Joints)}

		var ibm []math3d.Mat4
		if s.InverseBindMatrices != nil {
			a, err := rs.accessor(*s.InverseBindMatrices, owner)
			if err != nil {
				return err
			}
			if a.Type != gltf.AccessorMat4 || a.Count < len(s.Joints) {
				return formatErrorf("skin %d: inverse bind matrices are %d %v elements for %d joints",
					si, a.Count, a.Type, len(s.Joints))
			}
			ibm = a.Mat4s()
		}
		if s.Skeleton != nil {
			if err := checkIndex("node", *s.Skeleton, len(rs.g.All), owner); err != nil {
				return err
			}
			skin.Skeleton = rs.g.All[*s.Skeleton]
		}

		byNode := make(map[int]*Joint, len(s.Joints))
		for id, ni := range s.Joints {
			if err := checkIndex("node", ni, len(rs.g.All), owner); err != nil {
				return err
			}
			j := &Joint{
				ID:          id,
				Name:        rs.g.All[ni].Name,
				Node:        rs.g.All[ni],
				InverseBind: math3d.Identity(),
				Tracks:      make(map[string][]*Track),
			}
			if id < len(ibm) {
				j.InverseBind = ibm[id]
			}
			for name, anim := range rs.g.Animations {
				if tracks := anim.Bones[j.Name]; len(tracks) > 0 {
					j.Tracks[name] = tracks
				}
			}
			byNode[ni] = j
			skin.Joints = append(skin.Joints, j)
		}

		for _, ni := range s.Joints {
			parent := byNode[ni]
			for _, ci := range rs.doc.Nodes[ni].Children {
				if child, ok := byNode[ci]; ok && child.Parent == nil && child != parent {
					child.Parent = parent
					parent.Children = append(parent.Children, child)
				}
			}
		}
		for _, j := range skin.Joints {
			if j.Parent == nil {
				skin.RootBones = append(skin.RootBones, j)
			}
		}
		rs.g.Skins = append(rs.g.Skins, skin)
	}
	return nil
}

func localMatrix(n *gltf.Node) math3d.Mat4 {
	m := math3d.Mat4(n.Matrix)
	if m != (math3d.Mat4{}) && m != math3d.Identity() {
		return m
	}
	rot := math3d.Quat{X: n.Rotation[0], Y: n.Rotation[1], Z: n.Rotation[2], W: n.Rotation[3]}
	if rot == (math3d.Quat{}) {
		rot = math3d.IdentityQuat()
	}
	scale := math3d.V3(n.Scale[0], n.Scale[1], n.Scale[2])
	if scale == math3d.Zero3() {
		scale = math3d.V3(1, 1, 1)
	}
	pos := math3d.V3(n.Translation[0], n.Translation[1], n.Translation[2])
	return math3d.Compose(pos, rot, scale)
}

func (rs *resolver) resolveNodes() error {
	for i, n := range rs.doc.Nodes {
		owner := fmt.Sprintf("node %d", i)
		node := rs.g.All[i]
		if n.Mesh != nil {
			if err := checkIndex("mesh", *n.Mesh, len(rs.g.Meshes), owner); err != nil {
				return err
			}
			node.Mesh = rs.g.Meshes[*n.Mesh]
		}
		if n.Skin != nil {
			if err := checkIndex("skin", *n.Skin, len(rs.g.Skins), owner); err != nil {
				return err
			}
			node.Skin = rs.g.Skins[*n.Skin]
		}
		for _, ci := range n.Children {
			if err := checkIndex("node", ci, len(rs.g.All), owner); err != nil {
				return err
			}
			child := rs.g.All[ci]
			if child.Parent != nil || child == node {
				return formatErrorf("node %d has more than one parent", ci)
			}
			child.Parent = node
			node.Children = append(node.Children, child)
		}
		for name, anim := range rs.g.Animations {
			for _, t := range anim.Bones[node.Name] {
				if t.Path != PathWeights {
					continue
				}
				if node.Morphs == nil {
					node.Morphs = make(map[string]*Track)
				}
				node.Morphs[name] = t
			}
		}
	}

	switch {
	case len(rs.doc.Scenes) > 0:
		scene := 0
		if rs.doc.Scene != nil {
			scene = *rs.doc.Scene
		}
		if err := checkIndex("scene", scene, len(rs.doc.Scenes), "document"); err != nil {
			return err
		}
		for _, ni := range rs.doc.Scenes[scene].Nodes {
			if err := checkIndex("node", ni, len(rs.g.All), fmt.Sprintf("scene %d", scene)); err != nil {
				return err
			}
			rs.g.Roots = append(rs.g.Roots, rs.g.All[ni])
		}
	default:
		for _, n := range rs.g.All {
			if n.Parent == nil {
				rs.g.Roots = append(rs.g.Roots, n)
			}
		}
	}
	return nil
}

func (rs *resolver) buildNameMap() error {
	for _, n := range rs.g.All {
		if n.Mesh == nil {
			continue
		}
		if _, dup := rs.g.Nodes[n.Name]; dup {
			Logger().Debug("duplicate mesh node name, keeping first", "name", n.Name, "node", n.Index)
			continue
		}
		rs.g.Nodes[n.Name] = n
	}
	return nil
}
