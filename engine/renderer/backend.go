package renderer

import (
	"github.com/spaghettifunk/skinmesh/engine/math"
)

// BufferHandle is an opaque GPU buffer reference handed out by a backend.
type BufferHandle uint32

/** @brief The handle value no backend ever hands out. */
const InvalidBufferHandle BufferHandle = 0

type AttributeType uint8

const (
	AttributeFloat32 AttributeType = iota
	AttributeUint8
)

func (t AttributeType) Size() uint32 {
	switch t {
	case AttributeUint8:
		return 1
	default:
		return 4
	}
}

/**
 * @brief One interleaved attribute of a vertex.
 */
type VertexAttribute struct {
	/** @brief The attribute name, as referenced by shaders. */
	Name string
	/** @brief The attribute type. */
	Type AttributeType
	/** @brief The number of components. */
	Components uint32
	/** @brief The byte offset from the start of the vertex. */
	Offset uint32
}

/**
 * @brief Describes how a vertex array is laid out in memory.
 */
type VertexLayout struct {
	/** @brief The size of one vertex in bytes. */
	Stride     uint32
	Attributes []VertexAttribute
}

// NewVertexLayout packs attrs back to back, computing offsets and stride.
func NewVertexLayout(attrs ...VertexAttribute) *VertexLayout {
	l := &VertexLayout{Attributes: make([]VertexAttribute, len(attrs))}
	for i, a := range attrs {
		a.Offset = l.Stride
		l.Attributes[i] = a
		l.Stride += a.Type.Size() * a.Components
	}
	return l
}

// RendererBackend is the GPU collaborator of the mesh pipeline. It turns
// finished vertex and index arrays into buffers and receives the bone
// palette at draw time.
type RendererBackend interface {
	CreateVertexBuffer(name string, layout *VertexLayout, vertexCount uint32, vertices interface{}) (BufferHandle, error)
	CreateIndexBuffer(name string, indices []uint16) (BufferHandle, error)
	DestroyBuffer(handle BufferHandle) error
	// SetBoneTransforms uploads a bone palette. Slot 0 holds the model
	// transform and bone i lives in slot i+1.
	SetBoneTransforms(transforms []math.Mat4) error
}
