package arbor

// NodeID identifies a node in a SceneGraph. The root is always RootID; every
// other node gets a fresh, increasing id that is never reused.
type NodeID uint64

// RootID is the id of the root node of every SceneGraph.
const RootID NodeID = 0

// NodeType classifies what a node represents on the desktop.
type NodeType uint8

const (
	NodeRoot       NodeType = iota // the single root of the graph
	NodeWindow                     // a top-level client window
	NodePanel                      // shell panel (bar, dock)
	NodeOverlay                    // transient overlay (OSD, switcher)
	NodeWidget                     // leaf UI element
	NodeContainer                  // grouping node with no visual of its own
	NodeDecoration                 // window frame, title bar, shadow
	NodeBackground                 // wallpaper / desktop background
	NodeCustom                     // user-defined kind, see SceneNode.CustomType
)

func (t NodeType) String() string {
	switch t {
	case NodeRoot:
		return "Root"
	case NodeWindow:
		return "Window"
	case NodePanel:
		return "Panel"
	case NodeOverlay:
		return "Overlay"
	case NodeWidget:
		return "Widget"
	case NodeContainer:
		return "Container"
	case NodeDecoration:
		return "Decoration"
	case NodeBackground:
		return "Background"
	case NodeCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// NodeProperties are the non-spatial attributes of a node.
type NodeProperties struct {
	Visible      bool
	Opacity      float64 // [0, 1]
	ClipToBounds bool
	Interactive  bool
	Layer        int // draw-order key among siblings, ascending
	Tag          string
	Data         map[string]any
}

// DefaultNodeProperties returns visible, opaque, interactive properties on
// layer 0.
func DefaultNodeProperties() NodeProperties {
	return NodeProperties{
		Visible:     true,
		Opacity:     1,
		Interactive: true,
	}
}

// SceneNode is one spatial element of the scene graph. Nodes are owned by
// their SceneGraph and reference each other by id: children are owned by the
// node, the parent id is only a back-reference for traversal.
//
// Fields can be mutated directly through the pointer returned by
// SceneGraph.Node; call SceneGraph.MarkDirty afterwards when Transform or
// Bounds changed.
type SceneNode struct {
	ID         NodeID
	Name       string
	Type       NodeType
	CustomType string // set when Type is NodeCustom

	Transform  Transform
	Bounds     BoundingBox // local space
	Properties NodeProperties

	parent   NodeID
	children []NodeID
}

func newSceneNode(id NodeID, typ NodeType, name string) *SceneNode {
	return &SceneNode{
		ID:         id,
		Name:       name,
		Type:       typ,
		Transform:  IdentityTransform(),
		Properties: DefaultNodeProperties(),
	}
}

// Parent returns the parent id. The root returns RootID.
func (n *SceneNode) Parent() NodeID {
	return n.parent
}

// Children returns the child ids in insertion order. The returned slice must
// not be modified.
func (n *SceneNode) Children() []NodeID {
	return n.children
}

// NumChildren returns the number of children.
func (n *SceneNode) NumChildren() int {
	return len(n.children)
}

// TypeName returns CustomType for custom nodes and the type name otherwise.
func (n *SceneNode) TypeName() string {
	if n.Type == NodeCustom && n.CustomType != "" {
		return n.CustomType
	}
	return n.Type.String()
}

func (n *SceneNode) removeChild(id NodeID) {
	for i, c := range n.children {
		if c == id {
			copy(n.children[i:], n.children[i+1:])
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

// isSelfVisible reports the node's own contribution to effective visibility.
func (n *SceneNode) isSelfVisible() bool {
	return n.Properties.Visible && n.Properties.Opacity > 0
}
