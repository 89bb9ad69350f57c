package scene

import "github.com/taigrr/lumen/pkg/gpu"

// Uniform block names and binding points shared by every built-in program.
const (
	BlockCamera      = "Camera"
	BlockWindow      = "Window"
	BlockAmbient     = "AmbientLight"
	BlockPointLights = "PointLights"

	BindingCamera      = 0
	BindingWindow      = 1
	BindingAmbient     = 2
	BindingPointLights = 3
)

// std140 byte offsets of the built-in blocks.
const (
	CameraView           = 0
	CameraProjection     = 64
	CameraViewProjection = 128
	CameraInverseView    = 192
	CameraPosition       = 256
	CameraBlockSize      = 272

	WindowResolution = 0
	WindowTime       = 8
	WindowPixelRatio = 12
	WindowBlockSize  = 16

	AmbientColor     = 0
	AmbientIntensity = 12
	AmbientBlockSize = 16

	// PointLightStride is the size of one light in the point light block:
	// position and intensity, then color and padding.
	PointLightStride = 32
	LightPosition    = 0
	LightIntensity   = 12
	LightColor       = 16
)

// DefinePointLights is the define carrying the point light capacity. The
// renderer updates it on every program when the light block grows.
const DefinePointLights = "POINT_LIGHTS"

const blocks = `
layout(std140) uniform Camera {
	mat4 view;
	mat4 projection;
	mat4 viewProjection;
	mat4 inverseView;
	vec3 cameraPosition;
};
layout(std140) uniform Window {
	vec2 resolution;
	float time;
	float pixelRatio;
};
layout(std140) uniform AmbientLight {
	vec3 ambientColor;
	float ambientIntensity;
};
struct PointLight {
	vec3 position;
	float intensity;
	vec3 color;
};
layout(std140) uniform PointLights {
	PointLight pointLights[POINT_LIGHTS];
};
`

const basicVertex = blocks + `
in vec3 position;
in vec3 normal;
in vec2 uv;
uniform mat4 modelMatrix;
uniform mat4 normalMatrix;
out vec3 vNormal;
out vec3 vWorld;
out vec2 vUV;
void main() {
	vec4 world = modelMatrix * vec4(position, 1.0);
	vWorld = world.xyz;
	vNormal = normalize(mat3(normalMatrix) * normal);
	vUV = uv;
	gl_Position = viewProjection * world;
}
`

const basicFragment = `precision highp float;
` + blocks + `
in vec3 vNormal;
in vec3 vWorld;
in vec2 vUV;
uniform vec4 baseColor;
uniform sampler2D baseColorMap;
out vec4 fragColor;
void main() {
	vec4 albedo = baseColor * texture(baseColorMap, vUV);
	vec3 light = ambientColor * ambientIntensity;
	for (int i = 0; i < POINT_LIGHTS; i++) {
		vec3 toLight = pointLights[i].position - vWorld;
		float d = length(toLight);
		float lambert = max(dot(vNormal, toLight / d), 0.0);
		light += pointLights[i].color * pointLights[i].intensity * lambert / (1.0 + d * d);
	}
	fragColor = vec4(albedo.rgb * light, albedo.a);
}
`

const particleVertex = blocks + `
in vec3 position;
in vec4 color;
uniform mat4 modelMatrix;
uniform float pointSize;
out vec4 vColor;
void main() {
	vColor = color;
	vec4 view4 = view * modelMatrix * vec4(position, 1.0);
	gl_PointSize = pointSize * resolution.y / max(-view4.z, 0.001);
	gl_Position = projection * view4;
}
`

const particleFragment = `precision highp float;
in vec4 vColor;
out vec4 fragColor;
void main() {
	vec2 c = gl_PointCoord * 2.0 - 1.0;
	fragColor = vColor * (1.0 - dot(c, c));
}
`

// NewBasicProgram creates the lit program used for glTF meshes.
func NewBasicProgram() *gpu.Program {
	p := gpu.NewProgram("basic", basicVertex, basicFragment)
	p.SetDefine(DefinePointLights, "1")
	return p
}

// NewParticleProgram creates the program used for particle emitters.
func NewParticleProgram() *gpu.Program {
	p := gpu.NewProgram("particles", particleVertex, particleFragment)
	p.SetDefine(DefinePointLights, "1")
	return p
}
