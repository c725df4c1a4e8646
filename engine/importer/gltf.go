package importer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/scene"
)

// glTF stores key times in seconds. Animations are converted to millisecond
// ticks so sampling works in the same unit as other formats.
const gltfTicksPerSecond = 1000.0

var gltfIdentity = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// GLTFLoader reads glTF 2.0 files, both .gltf and .glb.
type GLTFLoader struct{}

func (l *GLTFLoader) Extensions() []string {
	return []string{".gltf", ".glb"}
}

func (l *GLTFLoader) Load(path string) (*scene.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	return ConvertGLTF(doc, path)
}

type gltfConverter struct {
	doc       *gltf.Document
	s         *scene.Scene
	nodeNames []string
	// scene meshes created for each (mesh, skin) pair
	converted map[[2]int][]uint32
	// scene meshes listed on each glTF node
	nodeMeshes      map[uint32][]uint32
	defaultMaterial int
}

// ConvertGLTF turns a decoded glTF document into a scene graph. The root
// of the result is a synthetic node holding the document's scene roots.
// Every primitive becomes its own mesh, skin joints become bones and every
// animation channel targeting a node's TRS is converted to keys.
func ConvertGLTF(doc *gltf.Document, source string) (*scene.Scene, error) {
	c := &gltfConverter{
		doc:             doc,
		s:               scene.NewScene(source),
		converted:       map[[2]int][]uint32{},
		nodeMeshes:      map[uint32][]uint32{},
		defaultMaterial: -1,
	}

	c.nodeNames = make([]string, len(doc.Nodes))
	for i, n := range doc.Nodes {
		c.nodeNames[i] = n.Name
		if n.Name == "" {
			c.nodeNames[i] = fmt.Sprintf("node_%d", i)
		}
	}

	for _, m := range doc.Materials {
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("material_%d", len(c.s.Materials))
		}
		c.s.Materials = append(c.s.Materials, &scene.Material{Name: name, BaseColor: math.NewVec4(1, 1, 1, 1)})
	}

	for i, n := range doc.Nodes {
		if n.Mesh == nil {
			continue
		}
		meshes, err := c.convertNodeMesh(n)
		if err != nil {
			return nil, errors.Wrapf(err, "node '%s'", c.nodeNames[i])
		}
		c.nodeMeshes[uint32(i)] = meshes
	}

	visited := make([]bool, len(doc.Nodes))
	for _, root := range c.sceneRoots() {
		c.buildNode(root, c.s.RootNode, visited)
	}

	for i, a := range doc.Animations {
		anim, err := c.convertAnimation(i, a)
		if err != nil {
			return nil, errors.Wrapf(err, "animation %d", i)
		}
		c.s.Animations = append(c.s.Animations, anim)
	}

	return c.s, nil
}

func (c *gltfConverter) sceneRoots() []uint32 {
	doc := c.doc
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			idx = int(*doc.Scene)
		}
		return doc.Scenes[idx].Nodes
	}

	// No scene list: every node that is nobody's child is a root.
	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, ch := range n.Children {
			if int(ch) < len(isChild) {
				isChild[ch] = true
			}
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func (c *gltfConverter) buildNode(idx uint32, parent *scene.Node, visited []bool) {
	if int(idx) >= len(c.doc.Nodes) || visited[idx] {
		return
	}
	visited[idx] = true

	n := c.doc.Nodes[idx]
	node := scene.NewNode(c.nodeNames[idx], parent)
	node.Transform = gltfLocalMatrix(n)
	node.Meshes = c.nodeMeshes[idx]

	for _, ch := range n.Children {
		c.buildNode(ch, node, visited)
	}
}

func (c *gltfConverter) convertNodeMesh(n *gltf.Node) ([]uint32, error) {
	meshIdx := int(*n.Mesh)
	if meshIdx >= len(c.doc.Meshes) {
		return nil, errors.Errorf("mesh index %d out of range", meshIdx)
	}
	skinIdx := -1
	if n.Skin != nil && int(*n.Skin) < len(c.doc.Skins) {
		skinIdx = int(*n.Skin)
	}
	key := [2]int{meshIdx, skinIdx}
	if out, ok := c.converted[key]; ok {
		return out, nil
	}

	var skin *gltf.Skin
	if skinIdx >= 0 {
		skin = c.doc.Skins[skinIdx]
	}

	m := c.doc.Meshes[meshIdx]
	out := make([]uint32, 0, len(m.Primitives))
	for pi, p := range m.Primitives {
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("mesh_%d", meshIdx)
		}
		if len(m.Primitives) > 1 {
			name = fmt.Sprintf("%s_%d", name, pi)
		}
		sm, err := c.convertPrimitive(name, p, skin)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh '%s'", name)
		}
		out = append(out, uint32(len(c.s.Meshes)))
		c.s.Meshes = append(c.s.Meshes, sm)
	}
	c.converted[key] = out
	return out, nil
}

func (c *gltfConverter) accessor(idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(c.doc.Accessors) {
		return nil, errors.Errorf("accessor %d out of range", idx)
	}
	return c.doc.Accessors[idx], nil
}

func (c *gltfConverter) convertPrimitive(name string, p *gltf.Primitive, skin *gltf.Skin) (*scene.Mesh, error) {
	doc := c.doc
	mesh := &scene.Mesh{Name: name}

	posIdx, ok := p.Attributes["POSITION"]
	if !ok {
		return nil, errors.New("primitive has no POSITION attribute")
	}
	acr, err := c.accessor(posIdx)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "read positions")
	}
	mesh.Vertices = make([]math.Vec3, len(positions))
	for i, v := range positions {
		mesh.Vertices[i] = math.NewVec3(v[0], v[1], v[2])
	}

	if idx, ok := p.Attributes["NORMAL"]; ok {
		if acr, err = c.accessor(idx); err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "read normals")
		}
		mesh.Normals = make([]math.Vec3, len(normals))
		for i, v := range normals {
			mesh.Normals[i] = math.NewVec3(v[0], v[1], v[2])
		}
	}

	if idx, ok := p.Attributes["TEXCOORD_0"]; ok {
		if acr, err = c.accessor(idx); err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "read texture coordinates")
		}
		mesh.TextureCoords = make([]math.Vec2, len(uvs))
		for i, v := range uvs {
			mesh.TextureCoords[i] = math.NewVec2(v[0], v[1])
		}
	}

	// glTF tangents carry the bitangent sign in w.
	if idx, ok := p.Attributes["TANGENT"]; ok && mesh.HasNormals() {
		if acr, err = c.accessor(idx); err != nil {
			return nil, err
		}
		tangents, err := modeler.ReadTangent(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "read tangents")
		}
		if len(tangents) == len(mesh.Vertices) {
			mesh.Tangents = make([]math.Vec3, len(tangents))
			mesh.Bitangents = make([]math.Vec3, len(tangents))
			for i, v := range tangents {
				t := math.NewVec3(v[0], v[1], v[2])
				mesh.Tangents[i] = t
				mesh.Bitangents[i] = mesh.Normals[i].Cross(t).MulScalar(v[3])
			}
		}
	}

	var indices []uint32
	if p.Indices != nil {
		if acr, err = c.accessor(*p.Indices); err != nil {
			return nil, err
		}
		if indices, err = modeler.ReadIndices(doc, acr, nil); err != nil {
			return nil, errors.Wrapf(err, "read indices")
		}
	} else {
		indices = make([]uint32, len(mesh.Vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	mesh.Faces = gltfFaces(p.Mode, indices)

	if p.Material != nil && int(*p.Material) < len(c.s.Materials) {
		mesh.MaterialIndex = *p.Material
	} else {
		mesh.MaterialIndex = c.defaultMaterialIndex()
	}

	if skin != nil {
		bones, err := c.convertSkin(p, skin, len(mesh.Vertices))
		if err != nil {
			return nil, errors.Wrapf(err, "skin '%s'", skin.Name)
		}
		mesh.Bones = bones
	}

	return mesh, nil
}

func (c *gltfConverter) defaultMaterialIndex() uint32 {
	if c.defaultMaterial < 0 {
		c.defaultMaterial = len(c.s.Materials)
		c.s.Materials = append(c.s.Materials, &scene.Material{Name: defaultMaterialName, BaseColor: math.NewVec4(1, 1, 1, 1)})
	}
	return uint32(c.defaultMaterial)
}

// gltfFaces splits an index list into faces according to the primitive
// mode. Strips, fans and loops are expanded into plain triangles and lines.
func gltfFaces(mode gltf.PrimitiveMode, indices []uint32) []scene.Face {
	var faces []scene.Face
	face := func(idx ...uint32) {
		faces = append(faces, scene.Face{Indices: idx})
	}

	switch mode {
	case gltf.PrimitivePoints:
		for _, i := range indices {
			face(i)
		}
	case gltf.PrimitiveLines:
		for i := 0; i+1 < len(indices); i += 2 {
			face(indices[i], indices[i+1])
		}
	case gltf.PrimitiveLineStrip, gltf.PrimitiveLineLoop:
		for i := 0; i+1 < len(indices); i++ {
			face(indices[i], indices[i+1])
		}
		if mode == gltf.PrimitiveLineLoop && len(indices) > 2 {
			face(indices[len(indices)-1], indices[0])
		}
	case gltf.PrimitiveTriangleStrip:
		for i := 0; i+2 < len(indices); i++ {
			if i%2 == 0 {
				face(indices[i], indices[i+1], indices[i+2])
			} else {
				face(indices[i+1], indices[i], indices[i+2])
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 1; i+1 < len(indices); i++ {
			face(indices[0], indices[i], indices[i+1])
		}
	default:
		for i := 0; i+2 < len(indices); i += 3 {
			face(indices[i], indices[i+1], indices[i+2])
		}
	}
	return faces
}

// convertSkin creates one bone per joint of skin. Weights come from the
// primitive's JOINTS_0/WEIGHTS_0 pair; zero weights are not recorded.
func (c *gltfConverter) convertSkin(p *gltf.Primitive, skin *gltf.Skin, vertexCount int) ([]*scene.Bone, error) {
	doc := c.doc

	offsets := make([]math.Mat4, len(skin.Joints))
	for i := range offsets {
		offsets[i] = math.NewMat4Identity()
	}
	if skin.InverseBindMatrices != nil {
		acr, err := c.accessor(*skin.InverseBindMatrices)
		if err != nil {
			return nil, err
		}
		data, err := modeler.ReadAccessor(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "read inverse bind matrices")
		}
		mats, ok := data.([][4][4]float32)
		if !ok {
			return nil, errors.Errorf("inverse bind matrices have unexpected type %T", data)
		}
		for i := 0; i < len(mats) && i < len(offsets); i++ {
			var cm mgl32.Mat4
			for col := 0; col < 4; col++ {
				for row := 0; row < 4; row++ {
					cm[col*4+row] = mats[i][col][row]
				}
			}
			offsets[i] = fromMgl(cm)
		}
	}

	bones := make([]*scene.Bone, len(skin.Joints))
	for i, j := range skin.Joints {
		name := fmt.Sprintf("joint_%d", j)
		if int(j) < len(c.nodeNames) {
			name = c.nodeNames[j]
		}
		bones[i] = &scene.Bone{Name: name, Offset: offsets[i]}
	}

	jIdx, hasJoints := p.Attributes["JOINTS_0"]
	wIdx, hasWeights := p.Attributes["WEIGHTS_0"]
	if !hasJoints || !hasWeights {
		return bones, nil
	}

	acr, err := c.accessor(jIdx)
	if err != nil {
		return nil, err
	}
	joints, err := modeler.ReadJoints(doc, acr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "read joints")
	}
	if acr, err = c.accessor(wIdx); err != nil {
		return nil, err
	}
	weights, err := modeler.ReadWeights(doc, acr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "read weights")
	}

	for v := 0; v < len(joints) && v < len(weights) && v < vertexCount; v++ {
		for k := 0; k < 4; k++ {
			w := weights[v][k]
			j := int(joints[v][k])
			if w <= 0 || j >= len(bones) {
				continue
			}
			bones[j].Weights = append(bones[j].Weights, scene.VertexWeight{VertexID: uint32(v), Weight: w})
		}
	}
	return bones, nil
}

func (c *gltfConverter) convertAnimation(index int, a *gltf.Animation) (*scene.Animation, error) {
	anim := &scene.Animation{
		Name:           a.Name,
		TicksPerSecond: gltfTicksPerSecond,
	}
	if anim.Name == "" {
		anim.Name = fmt.Sprintf("animation_%d", index)
	}

	channels := map[uint32]*scene.NodeAnim{}
	var order []uint32
	maxTime := float32(0)

	for _, ch := range a.Channels {
		if ch.Target.Node == nil || ch.Sampler == nil {
			continue
		}
		nodeIdx := *ch.Target.Node
		if int(nodeIdx) >= len(c.doc.Nodes) || int(*ch.Sampler) >= len(a.Samplers) {
			continue
		}
		sampler := a.Samplers[*ch.Sampler]
		if sampler.Input == nil || sampler.Output == nil {
			continue
		}
		if sampler.Interpolation == gltf.InterpolationStep {
			core.LogDebug("animation '%s': step interpolation on node '%s' is sampled linearly.", anim.Name, c.nodeNames[nodeIdx])
		}
		cubic := sampler.Interpolation == gltf.InterpolationCubicSpline

		times, err := c.readScalars(*sampler.Input)
		if err != nil {
			return nil, err
		}
		for _, t := range times {
			maxTime = math.Max(maxTime, t)
		}

		na, ok := channels[nodeIdx]
		if !ok {
			na = &scene.NodeAnim{NodeName: c.nodeNames[nodeIdx]}
			channels[nodeIdx] = na
			order = append(order, nodeIdx)
		}

		switch ch.Target.Path {
		case gltf.TRSTranslation, gltf.TRSScale:
			values, err := c.readVec3s(*sampler.Output)
			if err != nil {
				return nil, err
			}
			keys := gltfVectorKeys(times, values, cubic)
			if ch.Target.Path == gltf.TRSTranslation {
				na.PositionKeys = keys
			} else {
				na.ScalingKeys = keys
			}
		case gltf.TRSRotation:
			values, err := c.readVec4s(*sampler.Output)
			if err != nil {
				return nil, err
			}
			na.RotationKeys = gltfQuatKeys(times, values, cubic)
		default:
			// Morph target weights have no place in a skinned mesh.
		}
	}

	for _, nodeIdx := range order {
		na := channels[nodeIdx]
		t, r, s := gltfRestTRS(c.doc.Nodes[nodeIdx])
		if len(na.PositionKeys) == 0 {
			na.PositionKeys = []scene.VectorKey{{Value: math.NewVec3(t[0], t[1], t[2])}}
		}
		if len(na.RotationKeys) == 0 {
			na.RotationKeys = []scene.QuatKey{{Value: math.Quaternion{X: r.V[0], Y: r.V[1], Z: r.V[2], W: r.W}}}
		}
		if len(na.ScalingKeys) == 0 {
			na.ScalingKeys = []scene.VectorKey{{Value: math.NewVec3(s[0], s[1], s[2])}}
		}
		anim.Channels = append(anim.Channels, na)
	}
	anim.Duration = float64(maxTime) * gltfTicksPerSecond

	return anim, nil
}

func (c *gltfConverter) readScalars(idx uint32) ([]float32, error) {
	acr, err := c.accessor(idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadAccessor(c.doc, acr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "read key times")
	}
	times, ok := data.([]float32)
	if !ok {
		return nil, errors.Errorf("key times have unexpected type %T", data)
	}
	return times, nil
}

func (c *gltfConverter) readVec3s(idx uint32) ([][3]float32, error) {
	acr, err := c.accessor(idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadAccessor(c.doc, acr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "read key values")
	}
	values, ok := data.([][3]float32)
	if !ok {
		return nil, errors.Errorf("key values have unexpected type %T", data)
	}
	return values, nil
}

// readVec4s reads rotation keys, which may be stored as normalized
// integers.
func (c *gltfConverter) readVec4s(idx uint32) ([][4]float32, error) {
	acr, err := c.accessor(idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadAccessor(c.doc, acr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "read rotation keys")
	}

	switch d := data.(type) {
	case [][4]float32:
		return d, nil
	case [][4]int8:
		return normalizeVec4s(d, 127), nil
	case [][4]uint8:
		return normalizeVec4s(d, 255), nil
	case [][4]int16:
		return normalizeVec4s(d, 32767), nil
	case [][4]uint16:
		return normalizeVec4s(d, 65535), nil
	default:
		return nil, errors.Errorf("rotation keys have unexpected type %T", data)
	}
}

func normalizeVec4s[T int8 | uint8 | int16 | uint16](in [][4]T, scale float32) [][4]float32 {
	out := make([][4]float32, len(in))
	for i, v := range in {
		for k := 0; k < 4; k++ {
			out[i][k] = math.Max(float32(v[k])/scale, -1)
		}
	}
	return out
}

// gltfVectorKeys pairs key times with values. Cubic spline samplers store
// in-tangent, value and out-tangent per key; only the value is kept.
func gltfVectorKeys(times []float32, values [][3]float32, cubic bool) []scene.VectorKey {
	stride, offset := 1, 0
	if cubic {
		stride, offset = 3, 1
	}
	keys := make([]scene.VectorKey, 0, len(times))
	for i, t := range times {
		vi := i*stride + offset
		if vi >= len(values) {
			break
		}
		v := values[vi]
		keys = append(keys, scene.VectorKey{
			Time:  float64(t) * gltfTicksPerSecond,
			Value: math.NewVec3(v[0], v[1], v[2]),
		})
	}
	return keys
}

func gltfQuatKeys(times []float32, values [][4]float32, cubic bool) []scene.QuatKey {
	stride, offset := 1, 0
	if cubic {
		stride, offset = 3, 1
	}
	keys := make([]scene.QuatKey, 0, len(times))
	for i, t := range times {
		vi := i*stride + offset
		if vi >= len(values) {
			break
		}
		v := values[vi]
		keys = append(keys, scene.QuatKey{
			Time:  float64(t) * gltfTicksPerSecond,
			Value: math.Quaternion{X: v[0], Y: v[1], Z: v[2], W: v[3]},
		})
	}
	return keys
}

func gltfUsesMatrix(n *gltf.Node) bool {
	return n.Matrix != [16]float32{} && n.Matrix != gltfIdentity
}

// gltfRestTRS returns the node's rest translation, rotation and scale,
// decomposing the matrix form when the node uses it.
func gltfRestTRS(n *gltf.Node) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	if gltfUsesMatrix(n) {
		m := mgl32.Mat4(n.Matrix)
		t := m.Col(3).Vec3()
		s := mgl32.Vec3{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}
		rm := mgl32.Ident4()
		for col := 0; col < 3; col++ {
			if s[col] == 0 {
				continue
			}
			c := m.Col(col).Vec3().Mul(1 / s[col])
			rm.SetCol(col, c.Vec4(0))
		}
		return t, mgl32.Mat4ToQuat(rm).Normalize(), s
	}

	t := mgl32.Vec3(n.Translation)
	r := mgl32.QuatIdent()
	if n.Rotation != [4]float32{} {
		r = mgl32.Quat{W: n.Rotation[3], V: mgl32.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]}}
	}
	s := mgl32.Vec3{1, 1, 1}
	if n.Scale != [3]float32{} {
		s = mgl32.Vec3(n.Scale)
	}
	return t, r, s
}

// gltfLocalMatrix returns the node's transform relative to its parent as
// T * R * S, or its explicit matrix.
func gltfLocalMatrix(n *gltf.Node) math.Mat4 {
	if gltfUsesMatrix(n) {
		return fromMgl(mgl32.Mat4(n.Matrix))
	}
	t, r, s := gltfRestTRS(n)
	m := mgl32.Translate3D(t[0], t[1], t[2]).Mul4(r.Mat4()).Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	return fromMgl(m)
}

// fromMgl converts a column-major mgl32 matrix to the engine's row-major
// layout.
func fromMgl(m mgl32.Mat4) math.Mat4 {
	return math.NewMat4Transposed(math.Mat4{Data: [16]float32(m)})
}
