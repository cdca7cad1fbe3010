package arbor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a node's local placement: translation, per-axis scale, rotation
// as a unit quaternion, and the origin (pivot) that scale and rotation are
// applied about. The pivot maps onto Position.
type Transform struct {
	Position mgl64.Vec3
	Scale    mgl64.Vec3
	Rotation mgl64.Quat
	Origin   mgl64.Vec3
}

// IdentityTransform returns a transform with unit scale and no rotation.
func IdentityTransform() Transform {
	return Transform{
		Scale:    mgl64.Vec3{1, 1, 1},
		Rotation: mgl64.QuatIdent(),
	}
}

// Translation returns an identity transform moved to (x, y).
func Translation(x, y float64) Transform {
	t := IdentityTransform()
	t.Position = mgl64.Vec3{x, y, 0}
	return t
}

// SetRotationZ sets the rotation to angle radians around the Z axis.
func (t *Transform) SetRotationZ(angle float64) {
	t.Rotation = mgl64.QuatRotate(angle, mgl64.Vec3{0, 0, 1})
}

// RotationZ returns the rotation angle around Z, assuming a pure Z rotation.
func (t Transform) RotationZ() float64 {
	return 2 * math.Atan2(t.Rotation.V.Z(), t.Rotation.W)
}

// Combine composes t (the parent) with child. Fields compose independently:
// positions compound as parent.Position + child.Position*parent.Scale, scales
// multiply, rotations combine with the Hamilton product. The parent rotation
// is not applied to the child's position; the origin stays local to the child.
func (t Transform) Combine(child Transform) Transform {
	return Transform{
		Position: t.Position.Add(mulVec3(child.Position, t.Scale)),
		Scale:    mulVec3(t.Scale, child.Scale),
		Rotation: normalizeQuat(t.Rotation.Mul(child.Rotation)),
		Origin:   child.Origin,
	}
}

// Apply maps a local point through the transform.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	v := mulVec3(p.Sub(t.Origin), t.Scale)
	if !isIdentityQuat(t.Rotation) {
		v = t.Rotation.Rotate(v)
	}
	return t.Position.Add(v)
}

func mulVec3(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func isIdentityQuat(q mgl64.Quat) bool {
	return q.V[0] == 0 && q.V[1] == 0 && q.V[2] == 0 && (q.W == 1 || q.W == -1)
}

// normalizeQuat guards against the zero quaternion, which a zero-value
// Transform carries.
func normalizeQuat(q mgl64.Quat) mgl64.Quat {
	if q.W == 0 && q.V[0] == 0 && q.V[1] == 0 && q.V[2] == 0 {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

// --- BoundingBox ---

// BoundingBox is an axis-aligned box given by its min and max corners.
type BoundingBox struct {
	Min, Max mgl64.Vec3
}

// NewBoundingBox returns the box spanning the two corners in any order.
func NewBoundingBox(a, b mgl64.Vec3) BoundingBox {
	return BoundingBox{
		Min: mgl64.Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])},
		Max: mgl64.Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])},
	}
}

// BoxFromRect returns a flat box (zero depth) covering r.
func BoxFromRect(r Rect) BoundingBox {
	return BoundingBox{
		Min: mgl64.Vec3{r.X, r.Y, 0},
		Max: mgl64.Vec3{r.X + r.Width, r.Y + r.Height, 0},
	}
}

// SizeBox returns a flat box from the origin to (w, h).
func SizeBox(w, h float64) BoundingBox {
	return BoundingBox{Max: mgl64.Vec3{w, h, 0}}
}

// Rect projects the box onto the XY plane.
func (b BoundingBox) Rect() Rect {
	return Rect{X: b.Min[0], Y: b.Min[1], Width: b.Max[0] - b.Min[0], Height: b.Max[1] - b.Min[1]}
}

// Width returns the X extent.
func (b BoundingBox) Width() float64 { return b.Max[0] - b.Min[0] }

// Height returns the Y extent.
func (b BoundingBox) Height() float64 { return b.Max[1] - b.Min[1] }

// Transform returns the axis-aligned box enclosing b after mapping it
// through t. Without rotation this is exact; with rotation it is the bound of
// the eight rotated corners.
func (b BoundingBox) Transform(t Transform) BoundingBox {
	if isIdentityQuat(normalizeQuat(t.Rotation)) {
		return NewBoundingBox(
			t.Position.Add(mulVec3(b.Min.Sub(t.Origin), t.Scale)),
			t.Position.Add(mulVec3(b.Max.Sub(t.Origin), t.Scale)),
		)
	}
	t.Rotation = normalizeQuat(t.Rotation)
	var out BoundingBox
	for i := 0; i < 8; i++ {
		c := mgl64.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		p := t.Apply(c)
		if i == 0 {
			out = BoundingBox{Min: p, Max: p}
			continue
		}
		out = out.extend(p)
	}
	return out
}

func (b BoundingBox) extend(p mgl64.Vec3) BoundingBox {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

// Intersects reports whether the boxes overlap on all three axes.
// Touching faces count as intersecting.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

// IntersectsXY reports whether the XY projections overlap.
func (b BoundingBox) IntersectsXY(o BoundingBox) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1]
}

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p mgl64.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// ContainsXY reports whether (x, y) lies inside the XY projection.
func (b BoundingBox) ContainsXY(x, y float64) bool {
	return x >= b.Min[0] && x <= b.Max[0] && y >= b.Min[1] && y <= b.Max[1]
}

// Union returns the smallest box enclosing both.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return b.extend(o.Min).extend(o.Max)
}
