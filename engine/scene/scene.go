package scene

import (
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/spaghettifunk/skinmesh/engine/math"
)

// Scene is the importer-neutral result of reading a model file: a node
// tree plus the meshes, materials and animations it references. Importers
// produce it, the mesh pipeline consumes it and never mutates it after
// import.
type Scene struct {
	// Source is the file the scene was read from.
	Source     string
	RootNode   *Node
	Meshes     []*Mesh
	Materials  []*Material
	Animations []*Animation
}

// Node is one element of the transform hierarchy. Transform is relative to
// the parent node.
type Node struct {
	Name      string
	Transform math.Mat4
	Parent    *Node
	Children  []*Node
	// Meshes holds indices into Scene.Meshes.
	Meshes []uint32
}

// Face is a polygon as a list of indices into the owning mesh's vertices.
type Face struct {
	Indices []uint32
}

// Mesh is one drawable part of the scene. Optional channels are nil when
// the source file did not carry them.
type Mesh struct {
	Name          string
	Vertices      []math.Vec3
	Normals       []math.Vec3
	Tangents      []math.Vec3
	Bitangents    []math.Vec3
	TextureCoords []math.Vec2
	Faces         []Face
	Bones         []*Bone
	MaterialIndex uint32
}

// VertexWeight is how strongly a bone influences a single vertex.
type VertexWeight struct {
	VertexID uint32
	Weight   float32
}

// Bone binds a node of the hierarchy, by name, to the vertices it moves.
type Bone struct {
	Name string
	// Offset takes a mesh-space vertex into the bone's space at bind time.
	Offset  math.Mat4
	Weights []VertexWeight
}

type Material struct {
	Name      string
	BaseColor math.Vec4
}

type VectorKey struct {
	Time  float64
	Value math.Vec3
}

type QuatKey struct {
	Time  float64
	Value math.Quaternion
}

// NodeAnim animates the node with the same name. Each key list is sorted by
// time.
type NodeAnim struct {
	NodeName     string
	PositionKeys []VectorKey
	RotationKeys []QuatKey
	ScalingKeys  []VectorKey
}

// Animation is a set of channels sharing one timeline. Duration and key
// times are in ticks.
type Animation struct {
	Name           string
	Duration       float64
	TicksPerSecond float64
	Channels       []*NodeAnim
}

func NewScene(source string) *Scene {
	return &Scene{
		Source: source,
		RootNode: &Node{
			Name:      "RootNode",
			Transform: math.NewMat4Identity(),
		},
	}
}

// NewNode creates a node with an identity transform and attaches it to
// parent when parent is not nil.
func NewNode(name string, parent *Node) *Node {
	n := &Node{
		Name:      name,
		Transform: math.NewMat4Identity(),
		Parent:    parent,
	}
	if parent != nil {
		parent.Children = append(parent.Children, n)
	}
	return n
}

func (s *Scene) HasMeshes() bool {
	return s != nil && len(s.Meshes) > 0
}

func (s *Scene) HasAnimations() bool {
	return s != nil && len(s.Animations) > 0
}

// FindNode searches the subtree rooted at n depth first.
func (n *Node) FindNode(name string) *Node {
	if n == nil {
		return nil
	}
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.FindNode(name); found != nil {
			return found
		}
	}
	return nil
}

// HasMesh reports whether meshIndex is listed in the node's own mesh list.
func (n *Node) HasMesh(meshIndex uint32) bool {
	for _, m := range n.Meshes {
		if m == meshIndex {
			return true
		}
	}
	return false
}

func (m *Mesh) HasBones() bool {
	return len(m.Bones) > 0
}

func (m *Mesh) HasNormals() bool {
	return len(m.Normals) == len(m.Vertices) && len(m.Vertices) > 0
}

func (m *Mesh) HasTextureCoords() bool {
	return len(m.TextureCoords) == len(m.Vertices) && len(m.Vertices) > 0
}

func (m *Mesh) HasTangentsAndBitangents() bool {
	return len(m.Tangents) == len(m.Vertices) && len(m.Bitangents) == len(m.Vertices) && len(m.Vertices) > 0
}

// FindChannel returns the channel animating nodeName, or nil.
func (a *Animation) FindChannel(nodeName string) *NodeAnim {
	for _, c := range a.Channels {
		if c.NodeName == nodeName {
			return c
		}
	}
	return nil
}

// Dump writes a human readable dump of the scene, skipping parent links.
func (s *Scene) Dump(w io.Writer) {
	cfg := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
		MaxDepth:                8,
	}
	cfg.Fdump(w, s.summary())
}

type nodeSummary struct {
	Name     string
	Meshes   []uint32
	Children []nodeSummary
}

type sceneSummary struct {
	Source     string
	Nodes      nodeSummary
	Meshes     []string
	Materials  []string
	Animations []string
}

func (s *Scene) summary() sceneSummary {
	out := sceneSummary{Source: s.Source}
	if s.RootNode != nil {
		out.Nodes = summarizeNode(s.RootNode)
	}
	for _, m := range s.Meshes {
		out.Meshes = append(out.Meshes, m.Name)
	}
	for _, m := range s.Materials {
		out.Materials = append(out.Materials, m.Name)
	}
	for _, a := range s.Animations {
		out.Animations = append(out.Animations, a.Name)
	}
	return out
}

func summarizeNode(n *Node) nodeSummary {
	ns := nodeSummary{Name: n.Name, Meshes: n.Meshes}
	for _, c := range n.Children {
		ns.Children = append(ns.Children, summarizeNode(c))
	}
	return ns
}
