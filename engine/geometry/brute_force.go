package geometry

// BruteForce tests every triangle of a scene. It is the reference intersector for tests and
// small scenes.
type BruteForce struct {
	scene Scene
}

var _ Intersector = &BruteForce{}

// NewBruteForce wraps scene without reordering it.
func NewBruteForce(scene Scene) *BruteForce {
	return &BruteForce{scene: scene}
}

func (b *BruteForce) Scene() *Scene {
	return &b.scene
}

func (b *BruteForce) Intersect(ray Ray, tMin, tMax float32) (Hit, bool) {
	var (
		found   bool
		bestTri uint32
		bestU   float32
		bestV   float32
	)
	closest := tMax
	for tri := range b.scene.Triangles {
		if t, u, v, ok := intersectTriangle(&b.scene, uint32(tri), ray, tMin, closest); ok {
			closest, bestTri, bestU, bestV, found = t, uint32(tri), u, v, true
		}
	}
	if !found {
		return Hit{}, false
	}
	return buildHit(&b.scene, bestTri, ray, closest, bestU, bestV), true
}
