package compiler

import (
	"slices"
)

// ScopeKind classifies a scope-introducing expression.
type ScopeKind uint8

const (
	// ScopeGlobal is the outermost program scope.
	ScopeGlobal ScopeKind = iota
	// ScopeFunction is a def/lambda body scope.
	ScopeFunction
	// ScopeBlock is a begin scope.
	ScopeBlock
	// ScopeClass is a class body scope.
	ScopeClass
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeFunction:
		return "function"
	case ScopeBlock:
		return "block"
	case ScopeClass:
		return "class"
	}
	return "unknown"
}

// AllocKind is the storage assigned to a resolved variable.
type AllocKind uint8

const (
	// AllocGlobal stores the variable in the global table.
	AllocGlobal AllocKind = iota
	// AllocLocal stores the variable in a stack frame slot.
	AllocLocal
	// AllocCell stores the variable in a shared heap cell.
	AllocCell
)

// Scope is the record the analyzer builds for every scope-introducing
// expression. Free and Cells are kept sorted so cell layout is
// deterministic.
type Scope struct {
	Kind      ScopeKind
	Parent    *Scope
	AllocInfo map[string]AllocKind
	// Free names captured from enclosing function scopes.
	Free []string
	// Cells are names owned here but captured by inner closures.
	Cells []string
}

// NewScope creates a scope with the given parent.
func NewScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{
		Kind:      kind,
		Parent:    parent,
		AllocInfo: make(map[string]AllocKind),
	}
}

// AddLocal registers a declaration in this scope.
func (s *Scope) AddLocal(name string) {
	if s.Kind == ScopeGlobal {
		s.AllocInfo[name] = AllocGlobal
	} else {
		s.AllocInfo[name] = AllocLocal
	}
}

// addCell registers an own cell.
func (s *Scope) addCell(name string) {
	s.Cells = insertSorted(s.Cells, name)
	s.AllocInfo[name] = AllocCell
}

// addFree registers a variable captured from an enclosing scope.
func (s *Scope) addFree(name string) {
	s.Free = insertSorted(s.Free, name)
	s.AllocInfo[name] = AllocCell
}

// MaybePromote resolves a referenced name and, when the resolution
// crosses a function boundary, promotes the binding to a heap cell.
// Names that resolve nowhere are treated as global candidates; the
// compiler reports them if the global table has no such slot.
func (s *Scope) MaybePromote(name string) {
	initKind := AllocLocal
	if s.Kind == ScopeGlobal {
		initKind = AllocGlobal
	}
	if kind, ok := s.AllocInfo[name]; ok {
		initKind = kind
	}
	// Already promoted.
	if initKind == AllocCell {
		return
	}

	owner, kind := s.Resolve(name, initKind)
	if owner == nil {
		// Unresolved: a global defined later or not at all. The code
		// generator decides.
		s.AllocInfo[name] = AllocGlobal
		return
	}
	s.AllocInfo[name] = kind
	if kind == AllocCell {
		s.promote(name, owner)
	}
}

// promote records the name as an own cell of the owner scope and as a
// free variable in every scope between here and the owner.
func (s *Scope) promote(name string, owner *Scope) {
	owner.addCell(name)
	scope := s
	for scope != owner {
		scope.addFree(name)
		scope = scope.Parent
	}
}

// Resolve walks the scope chain for a binding of name. Crossing a
// function scope without finding it turns the resolution into a cell;
// resolving in the global scope turns it into a global. A nil owner
// means the name is bound nowhere in the chain.
func (s *Scope) Resolve(name string, kind AllocKind) (*Scope, AllocKind) {
	if _, ok := s.AllocInfo[name]; ok {
		return s, kind
	}
	// Crossed our function boundary without resolving: the binding
	// lives outside and must be reached through a cell.
	if s.Kind == ScopeFunction {
		kind = AllocCell
	}
	if s.Parent == nil {
		return nil, AllocGlobal
	}
	if s.Parent.Kind == ScopeGlobal {
		kind = AllocGlobal
	}
	return s.Parent.Resolve(name, kind)
}

// Lookup returns the allocation kind recorded for name, defaulting to
// global for unrecorded names.
func (s *Scope) Lookup(name string) AllocKind {
	if kind, ok := s.AllocInfo[name]; ok {
		return kind
	}
	return AllocGlobal
}

// insertSorted inserts name keeping the slice sorted and unique.
func insertSorted(names []string, name string) []string {
	i, found := slices.BinarySearch(names, name)
	if found {
		return names
	}
	return slices.Insert(names, i, name)
}
