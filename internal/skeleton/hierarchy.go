// Package skeleton holds the immutable bone tree a motion clip was captured on.
package skeleton

import (
	"fmt"
	"strings"

	"github.com/OCAP2/skelscale/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

type bone struct {
	name     string
	parent   string
	hasPar   bool
	offset   mgl64.Vec3
	children []string
}

// Hierarchy is a validated, rooted bone tree. It is read-only after New.
type Hierarchy struct {
	root  string
	bones map[string]*bone
	order []string
}

// New builds a hierarchy from bone declarations.
//
// Children keep the order in which they were declared. New fails with a
// *ConfigurationError on duplicate names, unresolved parents, zero or several
// roots, and cycles.
func New(defs []core.BoneDef) (*Hierarchy, error) {
	if len(defs) == 0 {
		return nil, newConfigError("", ViolationNoRoot, "empty skeleton")
	}

	h := &Hierarchy{bones: make(map[string]*bone, len(defs))}
	for _, d := range defs {
		if _, ok := h.bones[d.Name]; ok {
			return nil, newConfigError(d.Name, ViolationDuplicateBone, "")
		}
		h.bones[d.Name] = &bone{
			name:   d.Name,
			parent: d.Parent,
			hasPar: d.Parent != "",
			offset: d.Offset,
		}
	}

	for _, d := range defs {
		if d.Parent == "" {
			if h.root != "" {
				return nil, newConfigError(d.Name, ViolationMultipleRoots,
					fmt.Sprintf("root %q already declared", h.root))
			}
			h.root = d.Name
			continue
		}
		p, ok := h.bones[d.Parent]
		if !ok {
			return nil, newConfigError(d.Name, ViolationMissingParent,
				fmt.Sprintf("parent %q is not declared", d.Parent))
		}
		p.children = append(p.children, d.Name)
	}

	if h.root != "" {
		h.order = h.walk(h.root)
	}

	// every bone not reached from the root sits on or below a cycle
	if len(h.order) != len(defs) {
		reached := make(map[string]struct{}, len(h.order))
		for _, name := range h.order {
			reached[name] = struct{}{}
		}
		for _, d := range defs {
			if _, ok := reached[d.Name]; !ok {
				return nil, h.cycleFrom(d.Name)
			}
		}
	}

	return h, nil
}

// cycleFrom follows parent links from an unreachable bone until one repeats
// and reports that bone, which lies on the cycle.
func (h *Hierarchy) cycleFrom(name string) *ConfigurationError {
	pos := make(map[string]int)
	var path []string
	for {
		if i, ok := pos[name]; ok {
			loop := append(path[i:], name)
			return newConfigError(name, ViolationCycle,
				"bone is its own ancestor: "+strings.Join(loop, " -> "))
		}
		pos[name] = len(path)
		path = append(path, name)
		name = h.bones[name].parent
	}
}

// walk returns the breadth-first order below start, children in declaration order.
func (h *Hierarchy) walk(start string) []string {
	order := []string{start}
	for i := 0; i < len(order); i++ {
		order = append(order, h.bones[order[i]].children...)
	}
	return order
}

// Root returns the root bone name.
func (h *Hierarchy) Root() string {
	return h.root
}

// Len returns the number of bones.
func (h *Hierarchy) Len() int {
	return len(h.order)
}

// Contains reports whether the bone is part of the hierarchy.
func (h *Hierarchy) Contains(name string) bool {
	_, ok := h.bones[name]
	return ok
}

// Parent returns the parent of a bone; false for the root and unknown bones.
func (h *Hierarchy) Parent(name string) (string, bool) {
	b, ok := h.bones[name]
	if !ok || !b.hasPar {
		return "", false
	}
	return b.parent, true
}

// Children returns the children of a bone in declaration order.
func (h *Hierarchy) Children(name string) []string {
	b, ok := h.bones[name]
	if !ok {
		return nil
	}
	out := make([]string, len(b.children))
	copy(out, b.children)
	return out
}

// Offset returns the rest-pose offset of a bone from its parent.
func (h *Hierarchy) Offset(name string) mgl64.Vec3 {
	if b, ok := h.bones[name]; ok {
		return b.offset
	}
	return mgl64.Vec3{}
}

// Order returns every bone with parents before children.
//
// The traversal is breadth-first from the root; siblings appear in the order
// they were declared. The result is the same for every call.
func (h *Hierarchy) Order() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Descendants returns the transitive children of a bone, breadth-first.
// The bone itself is not included.
func (h *Hierarchy) Descendants(name string) []string {
	if !h.Contains(name) {
		return nil
	}
	return h.walk(name)[1:]
}

// IsDescendant reports whether name lies strictly below ancestor.
func (h *Hierarchy) IsDescendant(name, ancestor string) bool {
	for cur, ok := h.Parent(name); ok; cur, ok = h.Parent(cur) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Defs returns the hierarchy as declarations in traversal order.
func (h *Hierarchy) Defs() []core.BoneDef {
	out := make([]core.BoneDef, 0, len(h.order))
	for _, name := range h.order {
		b := h.bones[name]
		out = append(out, core.BoneDef{Name: b.name, Parent: b.parent, Offset: b.offset})
	}
	return out
}
