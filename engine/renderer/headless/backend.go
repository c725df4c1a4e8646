package headless

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/renderer"
)

type BufferKind uint8

const (
	BufferKindVertex BufferKind = iota
	BufferKindIndex
)

// Buffer is what the headless backend remembers about a created buffer.
type Buffer struct {
	// Label is unique per buffer, like a debug name on a real device.
	Label  string
	Name   string
	Kind   BufferKind
	Count  uint32
	Stride uint32
	Size   uint64
}

// Backend keeps buffers in memory instead of on a GPU. The CLI and the
// tests use it wherever a renderer is required.
type Backend struct {
	mu          sync.Mutex
	ids         *core.Identifiers
	buffers     map[renderer.BufferHandle]*Buffer
	bones       []math.Mat4
	boneUploads int

	// FailCreate makes every buffer creation fail.
	FailCreate bool
}

func NewBackend() *Backend {
	return &Backend{
		ids:     core.NewIdentifiers(64),
		buffers: map[renderer.BufferHandle]*Buffer{},
	}
}

func (b *Backend) create(buf *Buffer) (renderer.BufferHandle, error) {
	if b.FailCreate {
		return renderer.InvalidBufferHandle, fmt.Errorf("headless: buffer creation for '%s' disabled", buf.Name)
	}
	buf.Label = uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Handles are offset by one so that zero stays invalid.
	h := renderer.BufferHandle(b.ids.Acquire(buf) + 1)
	b.buffers[h] = buf
	return h, nil
}

func (b *Backend) CreateVertexBuffer(name string, layout *renderer.VertexLayout, vertexCount uint32, vertices interface{}) (renderer.BufferHandle, error) {
	if layout == nil || layout.Stride == 0 {
		return renderer.InvalidBufferHandle, fmt.Errorf("headless: vertex buffer '%s' has no layout", name)
	}
	if vertices == nil && vertexCount > 0 {
		return renderer.InvalidBufferHandle, fmt.Errorf("headless: vertex buffer '%s' has no data", name)
	}
	return b.create(&Buffer{
		Name:   name,
		Kind:   BufferKindVertex,
		Count:  vertexCount,
		Stride: layout.Stride,
		Size:   uint64(vertexCount) * uint64(layout.Stride),
	})
}

func (b *Backend) CreateIndexBuffer(name string, indices []uint16) (renderer.BufferHandle, error) {
	return b.create(&Buffer{
		Name:   name,
		Kind:   BufferKindIndex,
		Count:  uint32(len(indices)),
		Stride: 2,
		Size:   uint64(len(indices)) * 2,
	})
}

func (b *Backend) DestroyBuffer(handle renderer.BufferHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.buffers[handle]; !ok {
		return fmt.Errorf("headless: unknown buffer handle %d", handle)
	}
	delete(b.buffers, handle)
	return b.ids.Release(uint32(handle) - 1)
}

func (b *Backend) SetBoneTransforms(transforms []math.Mat4) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bones = append(b.bones[:0], transforms...)
	b.boneUploads++
	return nil
}

// Buffer returns a copy of the buffer behind handle.
func (b *Backend) Buffer(handle renderer.BufferHandle) (Buffer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[handle]
	if !ok {
		return Buffer{}, false
	}
	return *buf, true
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (b *Backend) LiveBuffers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers)
}

// BoneTransforms returns the last uploaded palette and the upload count.
func (b *Backend) BoneTransforms() ([]math.Mat4, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]math.Mat4, len(b.bones))
	copy(out, b.bones)
	return out, b.boneUploads
}
