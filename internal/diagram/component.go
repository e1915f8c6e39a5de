package diagram

import (
	"fmt"
	"strings"
)

// ComponentType is the kind of an architecture component.
// The set is closed: no value outside the six constants is valid anywhere.
type ComponentType string

const (
	Frontend   ComponentType = "frontend"
	Backend    ComponentType = "backend"
	Storage    ComponentType = "storage"
	Auth       ComponentType = "auth"
	External   ComponentType = "external"
	Background ComponentType = "background"
)

var allComponentTypes = []ComponentType{Frontend, Backend, Storage, Auth, External, Background}

// AllComponentTypes returns every component type in declaration order.
func AllComponentTypes() []ComponentType {
	out := make([]ComponentType, len(allComponentTypes))
	copy(out, allComponentTypes)
	return out
}

// ParseComponentType parses a component type name. Matching is exact.
func ParseComponentType(s string) (ComponentType, error) {
	t := ComponentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown component type %q (must be one of %s)", s, typeList())
	}
	return t, nil
}

// Valid reports whether t is one of the six known component types.
func (t ComponentType) Valid() bool {
	switch t {
	case Frontend, Backend, Storage, Auth, External, Background:
		return true
	}
	return false
}

// String returns the string representation
func (t ComponentType) String() string {
	return string(t)
}

// Title returns the display name used in generated documents.
func (t ComponentType) Title() string {
	switch t {
	case Frontend:
		return "Frontend"
	case Backend:
		return "Backend"
	case Storage:
		return "Storage"
	case Auth:
		return "Auth"
	case External:
		return "External Service"
	case Background:
		return "Background Worker"
	}
	return string(t)
}

func typeList() string {
	names := make([]string, len(allComponentTypes))
	for i, t := range allComponentTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
