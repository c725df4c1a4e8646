package importer

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/scene"
)

const defaultMaterialName = "DefaultMaterial"

// OBJLoader reads Wavefront OBJ files. Every object, group or material
// change starts a new mesh, attached to its own child of the root node.
type OBJLoader struct{}

func (l *OBJLoader) Extensions() []string {
	return []string{".obj"}
}

func (l *OBJLoader) Load(path string) (*scene.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseOBJ(f, path)
}

type objVertexKey struct {
	position, uv, normal int
}

type objParser struct {
	s         *scene.Scene
	positions []math.Vec3
	uvs       []math.Vec2
	normals   []math.Vec3
	materials map[string]uint32

	name       string
	material   uint32
	mesh       *scene.Mesh
	vertexMap  map[objVertexKey]uint32
	anyUV      bool
	anyNormal  bool
	meshSerial int
}

// ParseOBJ reads OBJ text from r. source is recorded on the scene and used
// in error messages.
func ParseOBJ(r io.Reader, source string) (*scene.Scene, error) {
	p := &objParser{
		s:         scene.NewScene(source),
		materials: map[string]uint32{},
		name:      "default",
	}
	p.material = p.materialIndex(defaultMaterialName)
	p.reset()

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if err := p.parseLine(fields); err != nil {
			return nil, errors.Wrapf(err, "%s:%d", source, lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", source)
	}
	p.finishMesh()

	return p.s, nil
}

func (p *objParser) parseLine(fields []string) error {
	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, math.NewVec3(v[0], v[1], v[2]))
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		p.uvs = append(p.uvs, math.NewVec2(v[0], v[1]))
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, math.NewVec3(v[0], v[1], v[2]))
	case "f":
		return p.parseFace(fields[1:])
	case "l":
		return p.parseLineElement(fields[1:])
	case "o", "g":
		p.finishMesh()
		if len(fields) > 1 {
			p.name = strings.Join(fields[1:], " ")
			p.mesh.Name = p.name
		}
	case "usemtl":
		name := defaultMaterialName
		if len(fields) > 1 {
			name = fields[1]
		}
		idx := p.materialIndex(name)
		if idx != p.material {
			p.finishMesh()
			p.material = idx
		}
	}
	// mtllib, s and anything else carry nothing the pipeline uses.
	return nil
}

func (p *objParser) parseFace(corners []string) error {
	if len(corners) < 1 {
		return errors.New("face without corners")
	}
	face := scene.Face{Indices: make([]uint32, 0, len(corners))}
	for _, c := range corners {
		idx, err := p.vertex(c)
		if err != nil {
			return err
		}
		face.Indices = append(face.Indices, idx)
	}
	p.mesh.Faces = append(p.mesh.Faces, face)
	return nil
}

// parseLineElement turns a polyline into consecutive two-corner faces.
func (p *objParser) parseLineElement(corners []string) error {
	if len(corners) < 2 {
		return errors.New("line element needs at least two corners")
	}
	prev, err := p.vertex(corners[0])
	if err != nil {
		return err
	}
	for _, c := range corners[1:] {
		idx, err := p.vertex(c)
		if err != nil {
			return err
		}
		p.mesh.Faces = append(p.mesh.Faces, scene.Face{Indices: []uint32{prev, idx}})
		prev = idx
	}
	return nil
}

// vertex resolves a "p", "p/t", "p//n" or "p/t/n" corner to a mesh-local
// vertex index, creating the vertex on first use.
func (p *objParser) vertex(corner string) (uint32, error) {
	parts := strings.Split(corner, "/")
	key := objVertexKey{position: -1, uv: -1, normal: -1}

	var err error
	if key.position, err = resolveIndex(parts[0], len(p.positions)); err != nil {
		return 0, errors.Wrapf(err, "position of '%s'", corner)
	}
	if len(parts) > 1 && parts[1] != "" {
		if key.uv, err = resolveIndex(parts[1], len(p.uvs)); err != nil {
			return 0, errors.Wrapf(err, "texture coordinate of '%s'", corner)
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if key.normal, err = resolveIndex(parts[2], len(p.normals)); err != nil {
			return 0, errors.Wrapf(err, "normal of '%s'", corner)
		}
	}

	if idx, ok := p.vertexMap[key]; ok {
		return idx, nil
	}

	idx := uint32(len(p.mesh.Vertices))
	p.mesh.Vertices = append(p.mesh.Vertices, p.positions[key.position])

	uv := math.NewVec2Zero()
	if key.uv >= 0 {
		uv = p.uvs[key.uv]
		p.anyUV = true
	}
	p.mesh.TextureCoords = append(p.mesh.TextureCoords, uv)

	n := math.NewVec3Zero()
	if key.normal >= 0 {
		n = p.normals[key.normal]
		p.anyNormal = true
	}
	p.mesh.Normals = append(p.mesh.Normals, n)

	p.vertexMap[key] = idx
	return idx, nil
}

func (p *objParser) materialIndex(name string) uint32 {
	if idx, ok := p.materials[name]; ok {
		return idx
	}
	idx := uint32(len(p.s.Materials))
	p.s.Materials = append(p.s.Materials, &scene.Material{
		Name:      name,
		BaseColor: math.NewVec4(1, 1, 1, 1),
	})
	p.materials[name] = idx
	return idx
}

func (p *objParser) reset() {
	p.mesh = &scene.Mesh{Name: p.name}
	p.vertexMap = map[objVertexKey]uint32{}
	p.anyUV = false
	p.anyNormal = false
}

// finishMesh moves the mesh being built into the scene if it has faces and
// starts a fresh one.
func (p *objParser) finishMesh() {
	if len(p.mesh.Faces) > 0 {
		m := p.mesh
		m.MaterialIndex = p.material
		if !p.anyUV {
			m.TextureCoords = nil
		}
		if !p.anyNormal {
			m.Normals = nil
		}

		meshIndex := uint32(len(p.s.Meshes))
		p.s.Meshes = append(p.s.Meshes, m)

		nodeName := m.Name
		if p.s.RootNode.FindNode(nodeName) != nil {
			p.meshSerial++
			nodeName = nodeName + "_" + strconv.Itoa(p.meshSerial)
		}
		node := scene.NewNode(nodeName, p.s.RootNode)
		node.Meshes = []uint32{meshIndex}
	}
	p.reset()
}

func parseFloats(fields []string, want int) ([]float32, error) {
	if len(fields) < want {
		return nil, errors.Errorf("expected %d values, got %d", want, len(fields))
	}
	out := make([]float32, want)
	for i := 0; i < want; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// resolveIndex converts a 1-based, possibly negative OBJ index into a
// 0-based one.
func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	default:
		return 0, errors.Errorf("index %d out of range (count=%d)", i, count)
	}
}
