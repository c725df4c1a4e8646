package mesh

import (
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/scene"
)

// AddBoneInfluence stores boneIndex in the first free slot of v. The slot's
// weight becomes weight/(slot+1) and every earlier slot k is rescaled by
// (k+1)/(slot+1). It returns false, changing nothing, when all slots are
// taken.
func (v *SkinVertex) AddBoneInfluence(boneIndex uint32, weight float32) bool {
	for slot := 0; slot < MaxBoneInfluences; slot++ {
		if v.BoneIndex[slot] != 0 || v.BoneWeight[slot] != 0 {
			continue
		}

		// Slot values are offset by one so that zero means unbound.
		v.BoneIndex[slot] = uint8(boneIndex + 1)
		v.BoneWeight[slot] = weight / float32(slot+1)

		for k := 0; k < slot; k++ {
			v.BoneWeight[k] = v.BoneWeight[k] * float32(k+1)
			v.BoneWeight[k] = v.BoneWeight[k] / float32(slot+1)
		}
		return true
	}
	return false
}

// BindSkin interns every bone of an imported mesh into table and writes
// its influences into vertices. Weights aimed at vertices outside the
// slice are skipped, as are influences beyond the fourth on a vertex.
func BindSkin(vertices []SkinVertex, bones []*scene.Bone, table *BoneTable) {
	for _, bone := range bones {
		boneIndex, ok := table.Intern(bone.Name, bone.Offset)
		if !ok {
			continue
		}

		for _, w := range bone.Weights {
			if int(w.VertexID) >= len(vertices) {
				core.LogDebug("bone '%s' weights vertex %d, mesh has %d. Skipped.", bone.Name, w.VertexID, len(vertices))
				continue
			}
			if !vertices[w.VertexID].AddBoneInfluence(boneIndex, w.Weight) {
				core.LogDebug("vertex %d already has %d influences, bone '%s' dropped.", w.VertexID, MaxBoneInfluences, bone.Name)
			}
		}
	}
}
