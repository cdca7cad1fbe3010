package arbor

import "testing"

func TestNodeTypeString(t *testing.T) {
	tests := map[NodeType]string{
		NodeRoot:       "Root",
		NodeWindow:     "Window",
		NodeDecoration: "Decoration",
		NodeCustom:     "Custom",
		NodeType(200):  "Unknown",
	}
	for typ, want := range tests {
		if got := typ.String(); got != want {
			t.Errorf("NodeType(%d).String() = %q, want %q", typ, got, want)
		}
	}
}

func TestDefaultNodeProperties(t *testing.T) {
	p := DefaultNodeProperties()
	if !p.Visible || !p.Interactive || p.Opacity != 1 || p.Layer != 0 {
		t.Errorf("DefaultNodeProperties = %+v", p)
	}
}

func TestSceneNodeRemoveChild(t *testing.T) {
	n := newSceneNode(1, NodeContainer, "c")
	n.children = []NodeID{2, 3, 4}
	n.removeChild(3)
	if n.NumChildren() != 2 || n.Children()[0] != 2 || n.Children()[1] != 4 {
		t.Errorf("children = %v, want [2 4]", n.Children())
	}
	n.removeChild(99)
	if n.NumChildren() != 2 {
		t.Errorf("removing unknown child changed count to %d", n.NumChildren())
	}
}

func TestKeyModifiersHas(t *testing.T) {
	m := ModCtrl | ModShift | ModCapsLock
	if !m.Has(ModCtrl | ModShift) {
		t.Error("Has(Ctrl|Shift) = false")
	}
	if m.Has(ModAlt) {
		t.Error("Has(Alt) = true")
	}
	if m.chord() != ModCtrl|ModShift {
		t.Errorf("chord() = %b, want Ctrl|Shift", m.chord())
	}
}
