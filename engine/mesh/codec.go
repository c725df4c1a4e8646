package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/math"
)

// CacheVersion must be bumped whenever SubMesh or SkinVertex change shape.
// Files with any other version are ignored, never migrated.
const CacheVersion uint8 = 106

// CacheData is the part of a mesh asset that survives in the cache file.
// Bone offsets and animations are not stored.
type CacheData struct {
	SubMeshes     []*SubMesh
	MaterialCount uint32
}

// Codec reads and writes the binary mesh cache.
//
//	u8  version
//	u32 submeshCount
//	  string name, string nodeName      (u32 length + bytes)
//	  16 x f32 transform                (row-major)
//	  3 x f32 bounds min, 3 x f32 bounds max
//	  u32 materialIndex
//	  u32 faceCount,   faceCount x 3 x u32
//	  u32 indexCount,  indexCount x u16
//	  u32 vertexCount, vertexCount x SkinVertex (76 bytes)
//	u32 materialCount
//
// Everything is little endian with no padding.
type Codec struct {
	Version uint8
}

func NewCodec() *Codec {
	return &Codec{Version: CacheVersion}
}

// CachePath returns where the cache for source lives under cacheDir.
// Relative sources keep their directory structure, absolute ones are
// keyed by their path with the volume and leading separator removed.
func CachePath(cacheDir, source string) string {
	rel := filepath.Clean(source)
	if filepath.IsAbs(rel) {
		rel = rel[len(filepath.VolumeName(rel)):]
	}
	rel = filepath.Clean(string(filepath.Separator) + rel)[1:]
	return filepath.Join(cacheDir, rel+".bin")
}

// Write stores data at path, creating parent directories as needed.
func (c *Codec) Write(path string, data *CacheData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create cache directory for '%s'", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "open cache file '%s'", path)
	}

	w := bufio.NewWriter(f)
	if err := c.Encode(w, data); err != nil {
		f.Close()
		os.Remove(path)
		return errors.Wrapf(err, "write cache file '%s'", path)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return errors.Wrapf(err, "write cache file '%s'", path)
	}
	return f.Close()
}

// Read loads the cache at path. A missing, truncated or other-version file
// yields an error matching core.ErrCacheMiss.
func (c *Codec) Read(path string) (*CacheData, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(core.ErrCacheMiss, "no cache file '%s'", path)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrCacheMiss, err)
	}
	return c.Decode(bytes.NewReader(buf))
}

func (c *Codec) Encode(w io.Writer, data *CacheData) error {
	e := &encoder{w: w}
	e.write(c.Version)
	e.write(uint32(len(data.SubMeshes)))

	for _, sm := range data.SubMeshes {
		e.writeString(sm.Name)
		e.writeString(sm.NodeName)
		e.write(sm.Transform.Data)
		e.write(sm.Bounds)
		e.write(sm.MaterialIndex)

		e.write(uint32(len(sm.Faces)))
		e.write(sm.Faces)

		e.write(uint32(len(sm.Indices)))
		e.write(sm.Indices)

		e.write(uint32(len(sm.Vertices)))
		e.write(sm.Vertices)
	}

	e.write(data.MaterialCount)
	return e.err
}

// Decode reads a cache stream. The reader must be a *bytes.Reader so that
// element counts can be checked against the bytes left before allocating.
func (c *Codec) Decode(r *bytes.Reader) (*CacheData, error) {
	d := &decoder{r: r}

	var version uint8
	d.read(&version)
	if d.err != nil {
		return nil, d.miss("read version")
	}
	if version != c.Version {
		return nil, fmt.Errorf("%w: %w: file has %d, want %d", core.ErrCacheMiss, core.ErrCacheVersion, version, c.Version)
	}

	var count uint32
	d.read(&count)

	data := &CacheData{}
	for i := uint32(0); i < count && d.err == nil; i++ {
		sm := &SubMesh{}
		sm.Name = d.readString()
		sm.NodeName = d.readString()

		var transform [16]float32
		d.read(&transform)
		sm.Transform = math.NewMat4FromRows(transform)
		d.read(&sm.Bounds)
		d.read(&sm.MaterialIndex)

		if n := d.readCount(3 * 4); n > 0 {
			sm.Faces = make([]Face, n)
			d.read(sm.Faces)
		}
		if n := d.readCount(2); n > 0 {
			sm.Indices = make([]uint16, n)
			d.read(sm.Indices)
		}
		if n := d.readCount(SkinVertexSize); n > 0 {
			sm.Vertices = make([]SkinVertex, n)
			d.read(sm.Vertices)
		}
		data.SubMeshes = append(data.SubMeshes, sm)
	}
	d.read(&data.MaterialCount)

	if d.err != nil {
		return nil, d.miss("decode")
	}
	return data, nil
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) write(v interface{}) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *encoder) writeString(s string) {
	e.write(uint32(len(s)))
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

type decoder struct {
	r   *bytes.Reader
	err error
}

func (d *decoder) read(v interface{}) {
	if d.err != nil {
		return
	}
	d.err = binary.Read(d.r, binary.LittleEndian, v)
}

// readCount reads a u32 element count and rejects counts the remaining
// bytes cannot hold.
func (d *decoder) readCount(elemSize int) int {
	var n uint32
	d.read(&n)
	if d.err != nil {
		return 0
	}
	if uint64(n)*uint64(elemSize) > uint64(d.r.Len()) {
		d.err = errors.Errorf("count %d exceeds remaining %d bytes", n, d.r.Len())
		return 0
	}
	return int(n)
}

func (d *decoder) readString() string {
	n := d.readCount(1)
	if n == 0 || d.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.err = err
		return ""
	}
	return string(buf)
}

func (d *decoder) miss(what string) error {
	return fmt.Errorf("%w: %s: %v", core.ErrCacheMiss, what, d.err)
}
