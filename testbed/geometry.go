package testbed

import (
	"github.com/spaghettifunk/anima-renderer/engine/renderer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// cube face normals with the two tangent axes spanning the face
var cubeFaces = [6][3][3]float32{
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
}

/**
 * @brief Builds a cube of the given half extent centered on the origin. Each
 * face gets its own four vertices so faces can be shaded apart; colors are
 * a darker tint of the face normal.
 */
func NewCube(halfExtent float32) ([]metadata.DrawVert, []metadata.TriIndex) {
	verts := make([]metadata.DrawVert, 0, 24)
	indexes := make([]metadata.TriIndex, 0, 36)
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	for _, face := range cubeFaces {
		n, u, v := face[0], face[1], face[2]
		base := metadata.TriIndex(len(verts))
		color := renderer.PackColor(0.5+0.4*n[0], 0.5+0.4*n[1], 0.5+0.4*n[2], 1)
		for _, c := range corners {
			var dv metadata.DrawVert
			for i := 0; i < 3; i++ {
				dv.Xyz[i] = (n[i] + c[0]*u[i] + c[1]*v[i]) * halfExtent
				dv.Normal[i] = byte((n[i] + 1) * 127.5)
			}
			dv.SetTexCoord((c[0]+1)*0.5, (1-c[1])*0.5)
			dv.SetColor(color)
			verts = append(verts, dv)
		}
		indexes = append(indexes, base, base+1, base+2, base, base+2, base+3)
	}
	return verts, indexes
}
