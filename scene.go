package arbor

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// SceneGraph owns a tree of SceneNodes. Nodes live in an id-keyed registry;
// parent and child links are ids, so there is no pointer aliasing between
// nodes. Global transforms and bounds are cached per node and recomputed
// incrementally by Update for ids in the dirty set.
//
// SceneGraph is not safe for concurrent use. WindowManager guards its graph
// with a RWMutex.
type SceneGraph struct {
	nodes  map[NodeID]*SceneNode
	nextID NodeID

	dirty            map[NodeID]struct{}
	globalTransforms map[NodeID]Transform
	globalBounds     map[NodeID]BoundingBox
	index            *spatialGrid
}

// NewSceneGraph creates a graph holding only a non-interactive root node.
func NewSceneGraph() *SceneGraph {
	return newSceneGraph(DefaultCellSize)
}

func newSceneGraph(cellSize float64) *SceneGraph {
	g := &SceneGraph{
		nodes:            make(map[NodeID]*SceneNode),
		nextID:           RootID + 1,
		dirty:            make(map[NodeID]struct{}),
		globalTransforms: make(map[NodeID]Transform),
		globalBounds:     make(map[NodeID]BoundingBox),
		index:            newSpatialGrid(cellSize),
	}
	root := newSceneNode(RootID, NodeRoot, "root")
	root.Properties.Interactive = false
	g.nodes[RootID] = root
	g.dirty[RootID] = struct{}{}
	return g
}

// Root returns the root id.
func (g *SceneGraph) Root() NodeID {
	return RootID
}

// NodeCount returns the number of live nodes including the root.
func (g *SceneGraph) NodeCount() int {
	return len(g.nodes)
}

// Node returns the node for id.
func (g *SceneGraph) Node(id NodeID) (*SceneNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Contains reports whether id is a live node.
func (g *SceneGraph) Contains(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Parent returns the parent of id. The root has no parent.
func (g *SceneGraph) Parent(id NodeID) (NodeID, bool) {
	n, ok := g.nodes[id]
	if !ok || id == RootID {
		return 0, false
	}
	return n.parent, true
}

// Children returns a copy of the child ids of id.
func (g *SceneGraph) Children(id NodeID) []NodeID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.children)
}

// --- Structure ---

// CreateNode adds a node of the given type under parent and marks it dirty.
func (g *SceneGraph) CreateNode(parent NodeID, typ NodeType, name string) (NodeID, error) {
	p, ok := g.nodes[parent]
	if !ok {
		return 0, fmt.Errorf("create node %q under %d: %w", name, parent, ErrParentNotFound)
	}
	id := g.nextID
	g.nextID++
	n := newSceneNode(id, typ, name)
	n.parent = parent
	g.nodes[id] = n
	p.children = append(p.children, id)
	g.dirty[id] = struct{}{}
	return id, nil
}

// CreateCustomNode adds a NodeCustom node carrying kind as its custom type
// name.
func (g *SceneGraph) CreateCustomNode(parent NodeID, kind, name string) (NodeID, error) {
	id, err := g.CreateNode(parent, NodeCustom, name)
	if err != nil {
		return 0, err
	}
	g.nodes[id].CustomType = kind
	return id, nil
}

// RemoveNode removes id and its whole subtree from the tree, the registry,
// the caches and the spatial index. The root cannot be removed.
func (g *SceneGraph) RemoveNode(id NodeID) error {
	if id == RootID {
		return ErrRootRemoval
	}
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("remove node %d: %w", id, ErrNodeNotFound)
	}
	if p, ok := g.nodes[n.parent]; ok {
		p.removeChild(id)
	}
	g.removeSubtree(n)
	return nil
}

func (g *SceneGraph) removeSubtree(n *SceneNode) {
	for _, c := range n.children {
		if child, ok := g.nodes[c]; ok {
			g.removeSubtree(child)
		}
	}
	n.children = nil
	delete(g.nodes, n.ID)
	delete(g.dirty, n.ID)
	delete(g.globalTransforms, n.ID)
	delete(g.globalBounds, n.ID)
	g.index.remove(n.ID)
}

// Reparent moves id (with its subtree) under newParent, appending it to the
// new parent's children.
func (g *SceneGraph) Reparent(id, newParent NodeID) error {
	if id == RootID {
		return fmt.Errorf("reparent root: %w", ErrInvalidState)
	}
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("reparent %d: %w", id, ErrNodeNotFound)
	}
	np, ok := g.nodes[newParent]
	if !ok {
		return fmt.Errorf("reparent %d under %d: %w", id, newParent, ErrParentNotFound)
	}
	if g.isAncestorOrSelf(id, newParent) {
		return fmt.Errorf("reparent %d under %d: %w", id, newParent, ErrCycle)
	}
	if old, ok := g.nodes[n.parent]; ok {
		old.removeChild(id)
	}
	n.parent = newParent
	np.children = append(np.children, id)
	g.MarkDirty(id)
	return nil
}

// isAncestorOrSelf reports whether candidate is node or one of its ancestors.
func (g *SceneGraph) isAncestorOrSelf(candidate, node NodeID) bool {
	for cur := node; ; {
		if cur == candidate {
			return true
		}
		if cur == RootID {
			return false
		}
		n, ok := g.nodes[cur]
		if !ok {
			return false
		}
		cur = n.parent
	}
}

// --- Mutation helpers ---

// SetTransform replaces the local transform of id and marks it dirty.
func (g *SceneGraph) SetTransform(id NodeID, t Transform) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("set transform %d: %w", id, ErrNodeNotFound)
	}
	n.Transform = t
	g.MarkDirty(id)
	return nil
}

// SetPosition moves id to (x, y) keeping its z and marks it dirty.
func (g *SceneGraph) SetPosition(id NodeID, x, y float64) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("set position %d: %w", id, ErrNodeNotFound)
	}
	n.Transform.Position = mgl64.Vec3{x, y, n.Transform.Position[2]}
	g.MarkDirty(id)
	return nil
}

// SetBounds replaces the local bounds of id and marks it dirty.
func (g *SceneGraph) SetBounds(id NodeID, b BoundingBox) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("set bounds %d: %w", id, ErrNodeNotFound)
	}
	n.Bounds = b
	g.MarkDirty(id)
	return nil
}

// SetProperties replaces the properties of id.
func (g *SceneGraph) SetProperties(id NodeID, p NodeProperties) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("set properties %d: %w", id, ErrNodeNotFound)
	}
	if p.Opacity < 0 {
		p.Opacity = 0
	} else if p.Opacity > 1 {
		p.Opacity = 1
	}
	n.Properties = p
	return nil
}

// SetVisible toggles the visible flag of id.
func (g *SceneGraph) SetVisible(id NodeID, visible bool) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("set visible %d: %w", id, ErrNodeNotFound)
	}
	n.Properties.Visible = visible
	return nil
}

// SetOpacity sets the opacity of id, clamped to [0, 1].
func (g *SceneGraph) SetOpacity(id NodeID, opacity float64) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("set opacity %d: %w", id, ErrNodeNotFound)
	}
	n.Properties.Opacity = max(0, min(1, opacity))
	return nil
}

// --- Dirty tracking ---

// MarkDirty adds id and all of its descendants to the dirty set. Already
// dirty nodes are skipped, along with their subtrees, which are dirty too.
func (g *SceneGraph) MarkDirty(id NodeID) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	if _, dirty := g.dirty[id]; dirty {
		return
	}
	g.dirty[id] = struct{}{}
	for _, c := range n.children {
		g.MarkDirty(c)
	}
}

// IsDirty reports whether id's cached globals are stale.
func (g *SceneGraph) IsDirty(id NodeID) bool {
	_, ok := g.dirty[id]
	return ok
}

// DirtyCount returns the size of the dirty set.
func (g *SceneGraph) DirtyCount() int {
	return len(g.dirty)
}

// Update recomputes the global transform and bounds of every dirty node,
// refreshes the spatial index and clears the dirty set. Nodes are processed
// parents first so each one composes against an already valid parent cache.
func (g *SceneGraph) Update() {
	if len(g.dirty) == 0 {
		return
	}
	type pending struct {
		id    NodeID
		depth int
	}
	work := make([]pending, 0, len(g.dirty))
	for id := range g.dirty {
		work = append(work, pending{id: id, depth: g.depth(id)})
	}
	slices.SortFunc(work, func(a, b pending) int {
		if a.depth != b.depth {
			return cmp.Compare(a.depth, b.depth)
		}
		return cmp.Compare(a.id, b.id)
	})

	for _, w := range work {
		n := g.nodes[w.id]
		global := n.Transform
		if w.id != RootID {
			parent, ok := g.globalTransforms[n.parent]
			if !ok {
				parent = g.foldTransform(n.parent)
			}
			global = parent.Combine(n.Transform)
		} else {
			global.Rotation = normalizeQuat(global.Rotation)
		}
		bounds := n.Bounds.Transform(global)
		g.globalTransforms[w.id] = global
		g.globalBounds[w.id] = bounds
		g.index.insert(w.id, bounds)
	}
	clear(g.dirty)
}

// foldTransform composes the local transforms from the root down to id.
func (g *SceneGraph) foldTransform(id NodeID) Transform {
	var chain []*SceneNode
	for cur := id; ; {
		n, ok := g.nodes[cur]
		if !ok {
			break
		}
		chain = append(chain, n)
		if cur == RootID {
			break
		}
		cur = n.parent
	}
	t := IdentityTransform()
	for i := len(chain) - 1; i >= 0; i-- {
		t = t.Combine(chain[i].Transform)
	}
	return t
}

func (g *SceneGraph) depth(id NodeID) int {
	d := 0
	for cur := id; cur != RootID; d++ {
		n, ok := g.nodes[cur]
		if !ok {
			break
		}
		cur = n.parent
	}
	return d
}

// GlobalTransform returns the cached global transform of id. ok is false for
// unknown or dirty nodes.
func (g *SceneGraph) GlobalTransform(id NodeID) (Transform, bool) {
	if g.IsDirty(id) {
		return Transform{}, false
	}
	t, ok := g.globalTransforms[id]
	return t, ok
}

// GlobalBounds returns the cached global bounds of id. ok is false for
// unknown or dirty nodes.
func (g *SceneGraph) GlobalBounds(id NodeID) (BoundingBox, bool) {
	if g.IsDirty(id) {
		return BoundingBox{}, false
	}
	b, ok := g.globalBounds[id]
	return b, ok
}

// --- Visibility ---

// IsEffectivelyVisible reports whether id and every ancestor up to the root
// are visible with nonzero opacity.
func (g *SceneGraph) IsEffectivelyVisible(id NodeID) bool {
	for cur := id; ; {
		n, ok := g.nodes[cur]
		if !ok || !n.isSelfVisible() {
			return false
		}
		if cur == RootID {
			return true
		}
		cur = n.parent
	}
}

// EffectiveOpacity returns the product of the opacities from id up to the
// root, or 0 if any of them is hidden.
func (g *SceneGraph) EffectiveOpacity(id NodeID) float64 {
	alpha := 1.0
	for cur := id; ; {
		n, ok := g.nodes[cur]
		if !ok || !n.Properties.Visible {
			return 0
		}
		alpha *= n.Properties.Opacity
		if cur == RootID {
			return alpha
		}
		cur = n.parent
	}
}

// --- Traversal & queries ---

// NodesInDrawOrder returns the visible nodes breadth-first from the root.
// Siblings are visited in ascending Layer order, ties in insertion order.
// Subtrees whose root is not effectively visible are skipped.
func (g *SceneGraph) NodesInDrawOrder() []NodeID {
	root := g.nodes[RootID]
	if !root.isSelfVisible() {
		return nil
	}
	out := make([]NodeID, 0, len(g.nodes))
	queue := []NodeID{RootID}
	var kids []*SceneNode
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)

		kids = kids[:0]
		for _, c := range g.nodes[id].children {
			if child, ok := g.nodes[c]; ok && child.isSelfVisible() {
				kids = append(kids, child)
			}
		}
		slices.SortStableFunc(kids, func(a, b *SceneNode) int {
			return cmp.Compare(a.Properties.Layer, b.Properties.Layer)
		})
		for _, k := range kids {
			queue = append(queue, k.ID)
		}
	}
	return out
}

// HitTest returns the interactive, effectively visible nodes whose cached
// global bounds contain (x, y), in ascending id order.
func (g *SceneGraph) HitTest(x, y float64) []NodeID {
	candidates := g.index.queryPoint(x, y)
	out := candidates[:0]
	for _, id := range candidates {
		n := g.nodes[id]
		if n != nil && n.Properties.Interactive && g.IsEffectivelyVisible(id) {
			out = append(out, id)
		}
	}
	return out
}

// TopmostAt returns the hit node drawn last at (x, y).
func (g *SceneGraph) TopmostAt(x, y float64) (NodeID, bool) {
	hits := g.HitTest(x, y)
	if len(hits) == 0 {
		return 0, false
	}
	if len(hits) == 1 {
		return hits[0], true
	}
	order := g.NodesInDrawOrder()
	for i := len(order) - 1; i >= 0; i-- {
		if _, found := slices.BinarySearch(hits, order[i]); found {
			return order[i], true
		}
	}
	return 0, false
}

// QueryRegion returns every indexed node whose global bounds intersect box
// on the XY plane, in ascending id order. No visibility filtering applies.
func (g *SceneGraph) QueryRegion(box BoundingBox) []NodeID {
	return g.index.queryRegion(box)
}

// FindByName returns the lowest id whose Name equals name.
func (g *SceneGraph) FindByName(name string) (NodeID, bool) {
	var best NodeID
	found := false
	for id, n := range g.nodes {
		if n.Name == name && (!found || id < best) {
			best, found = id, true
		}
	}
	return best, found
}

// FindByTag returns every node whose Properties.Tag equals tag, ascending.
func (g *SceneGraph) FindByTag(tag string) []NodeID {
	var out []NodeID
	for id, n := range g.nodes {
		if n.Properties.Tag == tag {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// FindParentOfType walks up from id (excluding id itself) and returns the
// first ancestor of the given type.
func (g *SceneGraph) FindParentOfType(id NodeID, typ NodeType) (NodeID, bool) {
	n, ok := g.nodes[id]
	if !ok || id == RootID {
		return 0, false
	}
	for cur := n.parent; ; {
		p, ok := g.nodes[cur]
		if !ok {
			return 0, false
		}
		if p.Type == typ {
			return cur, true
		}
		if cur == RootID {
			return 0, false
		}
		cur = p.parent
	}
}

// PrintTree writes an indented dump of the graph to w.
func (g *SceneGraph) PrintTree(w io.Writer) {
	g.printNode(w, RootID, 0)
}

func (g *SceneGraph) printNode(w io.Writer, id NodeID, depth int) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	flags := ""
	if !n.Properties.Visible {
		flags += " hidden"
	}
	if g.IsDirty(id) {
		flags += " dirty"
	}
	_, _ = fmt.Fprintf(w, "%s%s [%d] %q layer=%d%s\n",
		strings.Repeat("  ", depth), n.TypeName(), id, n.Name, n.Properties.Layer, flags)
	for _, c := range n.children {
		g.printNode(w, c, depth+1)
	}
}
