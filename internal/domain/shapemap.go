package domain

import (
	"sort"
	"strings"
)

// ConformanceStatus states whether a node conforms to a shape.
type ConformanceStatus string

const (
	Conformant    ConformanceStatus = "conformant"
	NonConformant ConformanceStatus = "nonconformant"
)

// Association is one node/shape pair of a result shape map.
type Association struct {
	Node   string            `json:"node"`
	Shape  string            `json:"shape"`
	Status ConformanceStatus `json:"status"`
}

func (a Association) String() string {
	if a.Status == NonConformant {
		return a.Node + "@!" + a.Shape
	}
	return a.Node + "@" + a.Shape
}

// ShapeMap is a set of associations. Order carries no meaning.
type ShapeMap []Association

// Equal reports whether both maps hold the same associations, ignoring
// order and duplicates.
func (m ShapeMap) Equal(other ShapeMap) bool {
	a, b := m.keys(), other.keys()
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// String renders the map in compact syntax with a stable order.
func (m ShapeMap) String() string {
	parts := make([]string, 0, len(m))
	for k := range m.keys() {
		parts = append(parts, k)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",\n")
}

func (m ShapeMap) keys() map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for _, a := range m {
		out[a.String()] = struct{}{}
	}
	return out
}
