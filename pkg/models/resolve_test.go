package models

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/scene"
)

func resolve(t *testing.T, json string, bin []byte) *Graph {
	t.Helper()
	c, err := ParseGLB(glb(json, bin))
	require.NoError(t, err)
	g, err := Resolve(c, ResolveOptions{})
	require.NoError(t, err)
	return g
}

var triangle = floats(
	0, 0, 0,
	1, 0, 0,
	0, 1, 0,
)

const cubeJSON = `{
	"asset": {"version": "2.0"},
	"scene": 0,
	"scenes": [{"nodes": [1]}],
	"nodes": [
		{"name": "Cube", "mesh": 0, "translation": [1, 2, 3]},
		{"name": "Root", "children": [0]}
	],
	"meshes": [{"name": "cube", "primitives": [{"attributes": {"POSITION": 0}}]}],
	"accessors": [{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"}],
	"bufferViews": [{"buffer": 0, "byteLength": 36}],
	"buffers": [{"byteLength": 36}]
}`

func TestResolveMeshNodeNameMap(t *testing.T) {
	g := resolve(t, cubeJSON, triangle)

	require.Len(t, g.Nodes, 1)
	cube := g.Nodes["Cube"]
	require.NotNil(t, cube)
	require.NotNil(t, cube.Mesh)
	assert.Len(t, cube.Mesh.Primitives, 1)

	require.Len(t, g.Roots, 1)
	assert.Equal(t, "Root", g.Roots[0].Name)
	assert.Same(t, g.Roots[0], cube.Parent)
	assert.Equal(t, math3d.V3(1, 2, 3), cube.Local.Translation())

	pos := cube.Mesh.Primitives[0].Attributes["POSITION"]
	require.NotNil(t, pos)
	assert.Equal(t, 3, pos.Components())
	assert.Equal(t, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, pos.Data)
}

func TestSparseAccessor(t *testing.T) {
	bin := make([]byte, 12)
	binary.LittleEndian.PutUint16(bin[0:], 1)
	binary.LittleEndian.PutUint16(bin[2:], 3)
	copy(bin[4:], floats(9, 9))

	g := resolve(t, `{
		"accessors": [{
			"componentType": 5126, "count": 4, "type": "SCALAR",
			"sparse": {
				"count": 2,
				"indices": {"bufferView": 0, "componentType": 5123},
				"values": {"bufferView": 1}
			}
		}],
		"meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}],
		"nodes": [{"name": "S", "mesh": 0}],
		"bufferViews": [
			{"buffer": 0, "byteLength": 4},
			{"buffer": 0, "byteOffset": 4, "byteLength": 8}
		],
		"buffers": [{"byteLength": 12}]
	}`, bin)

	a := g.Nodes["S"].Mesh.Primitives[0].Attributes["POSITION"]
	assert.Equal(t, []float32{0, 9, 0, 9}, a.Data)
}

func TestSparseIndexOutOfRange(t *testing.T) {
	bin := make([]byte, 8)
	binary.LittleEndian.PutUint16(bin[0:], 7)
	copy(bin[4:], floats(1))

	c, err := ParseGLB(glb(`{
		"accessors": [{
			"componentType": 5126, "count": 2, "type": "SCALAR",
			"sparse": {
				"count": 1,
				"indices": {"bufferView": 0, "componentType": 5123},
				"values": {"bufferView": 1}
			}
		}],
		"bufferViews": [
			{"buffer": 0, "byteLength": 2},
			{"buffer": 0, "byteOffset": 4, "byteLength": 4}
		],
		"buffers": [{"byteLength": 8}]
	}`, bin))
	require.NoError(t, err)
	_, err = Resolve(c, ResolveOptions{})
	assert.ErrorIs(t, err, ErrReference)
}

func TestAccessorStrideAndTypes(t *testing.T) {
	// Two VEC2 floats interleaved with four bytes of padding, then four
	// normalized unsigned bytes.
	bin := append(floats(1, 2, 0, 3, 4, 0), 0, 255, 51, 255)

	g := resolve(t, `{
		"accessors": [
			{"bufferView": 0, "componentType": 5126, "count": 2, "type": "VEC2"},
			{"bufferView": 1, "componentType": 5121, "normalized": true, "count": 1, "type": "VEC4"}
		],
		"meshes": [{"primitives": [{"attributes": {"TEXCOORD_0": 0, "COLOR_0": 1}}]}],
		"nodes": [{"name": "M", "mesh": 0}],
		"bufferViews": [
			{"buffer": 0, "byteLength": 24, "byteStride": 12},
			{"buffer": 0, "byteOffset": 24, "byteLength": 4}
		],
		"buffers": [{"byteLength": 28}]
	}`, bin)

	attrs := g.Nodes["M"].Mesh.Primitives[0].Attributes
	assert.Equal(t, []float32{1, 2, 3, 4}, attrs["TEXCOORD_0"].Data)

	col := attrs["COLOR_0"]
	assert.Equal(t, []uint8{0, 255, 51, 255}, col.Data)
	assert.InDeltaSlice(t, []float32{0, 1, 0.2, 1}, col.Float32s(), 1e-6)
	assert.Equal(t, []uint32{0, 255, 51, 255}, col.Uint32s())
}

func TestAccessorOverrunsView(t *testing.T) {
	c, err := ParseGLB(glb(`{
		"accessors": [{"bufferView": 0, "componentType": 5126, "count": 4, "type": "VEC3"}],
		"bufferViews": [{"buffer": 0, "byteLength": 36}],
		"buffers": [{"byteLength": 36}]
	}`, triangle))
	require.NoError(t, err)
	_, err = Resolve(c, ResolveOptions{})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestResolveMalformedAccessors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"negative count", `{
			"accessors": [{"componentType": 5126, "count": -1, "type": "SCALAR"}]
		}`},
		{"negative byte offset", `{
			"accessors": [{"bufferView": 0, "byteOffset": -4, "componentType": 5126, "count": 1, "type": "SCALAR"}],
			"bufferViews": [{"buffer": 0, "byteLength": 36}],
			"buffers": [{"byteLength": 36}]
		}`},
		{"negative view length", `{
			"accessors": [{"bufferView": 0, "componentType": 5126, "count": 1, "type": "SCALAR"}],
			"bufferViews": [{"buffer": 0, "byteOffset": 8, "byteLength": -4}],
			"buffers": [{"byteLength": 36}]
		}`},
		{"negative stride", `{
			"accessors": [{"bufferView": 0, "componentType": 5126, "count": 2, "type": "SCALAR"}],
			"bufferViews": [{"buffer": 0, "byteLength": 36, "byteStride": -4}],
			"buffers": [{"byteLength": 36}]
		}`},
		{"negative sparse indices offset", `{
			"accessors": [{
				"componentType": 5126, "count": 2, "type": "SCALAR",
				"sparse": {
					"count": 1,
					"indices": {"bufferView": 0, "byteOffset": -4, "componentType": 5123},
					"values": {"bufferView": 0}
				}
			}],
			"bufferViews": [{"buffer": 0, "byteLength": 36}],
			"buffers": [{"byteLength": 36}]
		}`},
		{"negative sparse values offset", `{
			"accessors": [{
				"componentType": 5126, "count": 2, "type": "SCALAR",
				"sparse": {
					"count": 1,
					"indices": {"bufferView": 0, "componentType": 5123},
					"values": {"bufferView": 0, "byteOffset": -4}
				}
			}],
			"bufferViews": [{"buffer": 0, "byteLength": 36}],
			"buffers": [{"byteLength": 36}]
		}`},
		{"negative sparse count", `{
			"accessors": [{
				"componentType": 5126, "count": 2, "type": "SCALAR",
				"sparse": {
					"count": -1,
					"indices": {"bufferView": 0, "componentType": 5123},
					"values": {"bufferView": 0}
				}
			}],
			"bufferViews": [{"buffer": 0, "byteLength": 36}],
			"buffers": [{"byteLength": 36}]
		}`},
		{"inverse bind matrices not MAT4", `{
			"nodes": [{"name": "A"}],
			"skins": [{"joints": [0], "inverseBindMatrices": 0}],
			"accessors": [{"bufferView": 0, "componentType": 5126, "count": 1, "type": "VEC4"}],
			"bufferViews": [{"buffer": 0, "byteLength": 36}],
			"buffers": [{"byteLength": 36}]
		}`},
		{"too few inverse bind matrices", `{
			"nodes": [{"name": "A"}, {"name": "B"}],
			"skins": [{"joints": [0, 1], "inverseBindMatrices": 0}],
			"accessors": [{"componentType": 5126, "count": 1, "type": "MAT4"}]
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseGLB(glb(tt.json, triangle))
			require.NoError(t, err)
			require.NotPanics(t, func() {
				_, err = Resolve(c, ResolveOptions{})
			})
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestResolveReferenceErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		kind string
	}{
		{"node mesh", `{"nodes": [{"mesh": 3}]}`, "mesh"},
		{"node child", `{"nodes": [{"children": [5]}]}`, "node"},
		{"primitive accessor", `{"meshes": [{"primitives": [{"attributes": {"POSITION": 2}}]}]}`, "accessor"},
		{"primitive material", `{"meshes": [{"primitives": [{"attributes": {}, "material": 0}]}]}`, "material"},
		{"texture source", `{"textures": [{"source": 1}]}`, "image"},
		{"skin joint", `{"skins": [{"joints": [4]}]}`, "node"},
		{"animation sampler", `{"nodes": [{}], "animations": [{"channels": [{"sampler": 1, "target": {"node": 0, "path": "scale"}}], "samplers": []}]}`, "sampler"},
		{"accessor view", `{"accessors": [{"bufferView": 0, "componentType": 5126, "count": 1, "type": "SCALAR"}]}`, "bufferView"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseGLB(glb(tt.json, nil))
			require.NoError(t, err)
			_, err = Resolve(c, ResolveOptions{})
			require.ErrorIs(t, err, ErrReference)
			var re *ReferenceError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.kind, re.Kind)
		})
	}
}

const skinJSON = `{
	"nodes": [
		{"name": "A"},
		{"name": "B", "children": [0]},
		{"name": "Body", "mesh": 0, "skin": 0}
	],
	"skins": [{"joints": [0, 1], "inverseBindMatrices": 1}],
	"meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}],
	"animations": [
		{
			"name": "walk",
			"channels": [
				{"sampler": 0, "target": {"node": 0, "path": "translation"}},
				{"sampler": 1, "target": {"node": 0, "path": "rotation"}},
				{"sampler": 2, "target": {"node": 2, "path": "weights"}}
			],
			"samplers": [
				{"input": 2, "output": 3},
				{"input": 2, "output": 4, "interpolation": "STEP"},
				{"input": 2, "output": 5, "interpolation": "CUBICSPLINE"}
			]
		}
	],
	"accessors": [
		{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
		{"bufferView": 1, "componentType": 5126, "count": 2, "type": "MAT4"},
		{"bufferView": 2, "componentType": 5126, "count": 2, "type": "SCALAR"},
		{"componentType": 5126, "count": 2, "type": "VEC3"},
		{"componentType": 5126, "count": 2, "type": "VEC4"},
		{"componentType": 5126, "count": 6, "type": "SCALAR"}
	],
	"bufferViews": [
		{"buffer": 0, "byteLength": 36},
		{"buffer": 0, "byteOffset": 36, "byteLength": 128},
		{"buffer": 0, "byteOffset": 164, "byteLength": 8}
	],
	"buffers": [{"byteLength": 172}]
}`

func skinBin() []byte {
	bin := bytes.Clone(triangle)
	a := math3d.Translate(math3d.V3(1, 2, 3)).Float32s()
	b := math3d.Identity().Float32s()
	bin = append(bin, floats(a[:]...)...)
	bin = append(bin, floats(b[:]...)...)
	return append(bin, floats(0, 1)...)
}

func TestResolveSkin(t *testing.T) {
	g := resolve(t, skinJSON, skinBin())

	require.Len(t, g.Skins, 1)
	skin := g.Skins[0]
	assert.Equal(t, 2, skin.BonesCount)
	require.Len(t, skin.Joints, 2)

	a, b := skin.Joints[0], skin.Joints[1]
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, 0, a.ID)
	assert.Equal(t, "B", b.Name)
	assert.Equal(t, 1, b.ID)

	require.Len(t, skin.RootBones, 1)
	assert.Same(t, b, skin.RootBones[0])
	assert.Same(t, b, a.Parent)
	assert.Equal(t, []*Joint{a}, b.Children)

	assert.Equal(t, math3d.V3(1, 2, 3), a.InverseBind.Translation())
	assert.Equal(t, math3d.Identity(), b.InverseBind)

	assert.Same(t, skin, g.Nodes["Body"].Skin)
	assert.Same(t, g.All[0], a.Node)
}

func TestResolveAnimations(t *testing.T) {
	g := resolve(t, skinJSON, skinBin())

	require.Contains(t, g.Animations, "walk")
	walk := g.Animations["walk"]
	require.Len(t, walk.Bones["A"], 2)
	assert.Equal(t, PathTranslation, walk.Bones["A"][0].Path)
	assert.Equal(t, InterpolationLinear, walk.Bones["A"][0].Interpolation)
	assert.Equal(t, PathRotation, walk.Bones["A"][1].Path)
	assert.Equal(t, InterpolationStep, walk.Bones["A"][1].Interpolation)
	assert.Equal(t, []float32{0, 1}, walk.Bones["A"][0].Input.Data)

	joint := g.Skins[0].Joints[0]
	assert.Equal(t, walk.Bones["A"], joint.Tracks["walk"])
	assert.Empty(t, g.Skins[0].Joints[1].Tracks)

	body := g.Nodes["Body"]
	require.Contains(t, body.Morphs, "walk")
	assert.Equal(t, PathWeights, body.Morphs["walk"].Path)
	assert.Equal(t, InterpolationCubicSpline, body.Morphs["walk"].Interpolation)
}

func TestPrimitiveGeometry(t *testing.T) {
	g := resolve(t, cubeJSON, triangle)
	prim := g.Nodes["Cube"].Mesh.Primitives[0]

	geom := prim.Geometry()
	assert.Same(t, geom, prim.Geometry(), "geometry is cached")
	assert.Equal(t, gpu.Triangles, geom.Mode)
	assert.Equal(t, 3, geom.VertexCount())

	normals := geom.Attribute(gpu.AttribNormal)
	require.NotNil(t, normals, "normals are synthesized")
	for i := range 3 {
		assert.InDeltaSlice(t, []float32{0, 0, 1}, normals.Data[i*3:i*3+3], 1e-6)
	}
	assert.Equal(t, math3d.V3(1, 1, 0), geom.Bounds().Max)
}

func TestSmoothNormalsIndexed(t *testing.T) {
	// Two triangles folded along the x axis share the edge vertices.
	positions := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
	n := smoothNormals(positions, []uint32{0, 1, 2, 0, 3, 1})
	require.Len(t, n, 12)

	s := float32(1 / math.Sqrt2)
	assert.InDeltaSlice(t, []float32{0, s, s}, n[0:3], 1e-6)
	assert.InDeltaSlice(t, []float32{0, s, s}, n[3:6], 1e-6)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, n[6:9], 1e-6)
	assert.InDeltaSlice(t, []float32{0, 1, 0}, n[9:12], 1e-6)
}

func TestInstantiate(t *testing.T) {
	g := resolve(t, cubeJSON, triangle)
	program := scene.NewBasicProgram()

	root := g.Instantiate(program)
	cube := root.Find("Cube")
	require.NotNil(t, cube)
	assert.Equal(t, "Root", cube.Parent().Name)

	meshes := cube.ObjectsOf(scene.KindMesh)
	require.Len(t, meshes, 1)
	assert.Same(t, program, meshes[0].Material.Program)
	assert.Same(t, g.Nodes["Cube"].Mesh.Primitives[0].Geometry(), meshes[0].Geometry)

	root.UpdateWorldTransform(true)
	assert.Equal(t, math3d.V3(1, 2, 3), cube.WorldPosition())
}

type countingURLs struct {
	*MemoryURLs
	mu      sync.Mutex
	revoked map[string]int
}

func newCountingURLs() *countingURLs {
	return &countingURLs{MemoryURLs: NewMemoryURLs(), revoked: make(map[string]int)}
}

func (c *countingURLs) Revoke(url string) {
	c.mu.Lock()
	c.revoked[url]++
	c.mu.Unlock()
	c.MemoryURLs.Revoke(url)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageGLB(data []byte) []byte {
	return glb(fmt.Sprintf(`{
		"images": [{"bufferView": 0, "mimeType": "image/png"}],
		"textures": [{"source": 0, "sampler": 0}],
		"samplers": [{"magFilter": 9728, "wrapS": 33071}],
		"materials": [{"name": "m", "pbrMetallicRoughness": {
			"baseColorTexture": {"index": 0},
			"baseColorFactor": [1, 0.5, 0.25, 1],
			"metallicFactor": 0
		}}],
		"bufferViews": [{"buffer": 0, "byteLength": %d}],
		"buffers": [{"byteLength": %d}]
	}`, len(data), len(data)), data)
}

func TestImageLoadRevokesOnce(t *testing.T) {
	urls := newCountingURLs()
	c, err := ParseGLB(imageGLB(pngBytes(t)))
	require.NoError(t, err)
	g, err := Resolve(c, ResolveOptions{URLs: urls})
	require.NoError(t, err)

	require.Len(t, g.Images, 1)
	tex := g.Textures[0]
	assert.Same(t, g.Images[0], tex.Image)
	assert.False(t, tex.GPU.Ready())
	assert.Equal(t, gpu.FilterNearest, tex.GPU.MagFilter)
	assert.Equal(t, gpu.WrapClamp, tex.GPU.WrapS)
	assert.Equal(t, gpu.WrapRepeat, tex.GPU.WrapT)
	before := tex.GPU.Version()

	g.Loader().Wait()
	assert.Equal(t, 1, g.Loader().Poll())
	assert.True(t, tex.GPU.Ready())
	assert.Greater(t, tex.GPU.Version(), before)
	w, h := tex.GPU.Size()
	assert.Equal(t, [2]int{2, 2}, [2]int{w, h})

	g.Images[0].Release()
	assert.Equal(t, 1, urls.revoked[g.Images[0].URL])
	assert.Zero(t, urls.Len())

	mat := g.Materials[0]
	assert.Same(t, tex, mat.BaseColorTexture)
	assert.Equal(t, math3d.V4(1, 0.5, 0.25, 1), mat.BaseColor)
	assert.Zero(t, mat.Metallic)
	assert.Equal(t, 1.0, mat.Roughness)
}

func TestImageDecodeFailureRevokesOnce(t *testing.T) {
	urls := newCountingURLs()
	c, err := ParseGLB(imageGLB([]byte("not an image")))
	require.NoError(t, err)
	g, err := Resolve(c, ResolveOptions{URLs: urls})
	require.NoError(t, err)

	h := g.Images[0]
	g.Loader().Wait()
	g.Loader().Poll()
	assert.True(t, h.Done())
	assert.Error(t, h.Err())
	assert.Nil(t, h.Image())
	assert.False(t, g.Textures[0].GPU.Ready())

	h.Release()
	assert.Equal(t, 1, urls.revoked[h.URL])
}

func TestImageReleaseBeforeLoad(t *testing.T) {
	urls := newCountingURLs()
	h := newImageHandle(0, "early", "image/png", pngBytes(t), urls)
	h.Release()

	l := NewImageLoader(1)
	l.Load(h)
	l.Wait()
	l.Poll()

	assert.Error(t, h.Err(), "the blob is gone once revoked")
	assert.Equal(t, 1, urls.revoked[h.URL])
}

func TestImageBindAfterLoad(t *testing.T) {
	h := newImageHandle(0, "late", "image/png", pngBytes(t), NewMemoryURLs())
	l := NewImageLoader(2)
	l.Load(h)
	l.Wait()
	l.Poll()

	tex := gpu.NewTexture("late")
	h.Bind(tex)
	assert.True(t, tex.Ready())
}
