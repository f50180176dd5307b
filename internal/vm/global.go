package vm

// GlobalVar is one named slot of the global table.
type GlobalVar struct {
	Name  string
	Value Value
}

// Global is the append-only indexed table of named global slots.
type Global struct {
	globals []GlobalVar
}

// NewGlobal creates an empty global table.
func NewGlobal() *Global {
	return &Global{}
}

// Get returns the slot at index; the index must be valid.
func (g *Global) Get(index int) GlobalVar {
	return g.globals[index]
}

// InRange reports whether index addresses an existing slot.
func (g *Global) InRange(index int) bool {
	return index >= 0 && index < len(g.globals)
}

// Set stores a value into an existing slot.
func (g *Global) Set(index int, v Value) {
	g.globals[index].Value = v
}

// Define registers a slot for name (default value 0) if not present.
func (g *Global) Define(name string) {
	if g.Exists(name) {
		return
	}
	g.globals = append(g.globals, GlobalVar{Name: name, Value: MakeNumber(0)})
}

// AddNative registers a built-in function, allocating its object on h.
func (g *Global) AddNative(h *Heap, name string, fn func(machine *VM) error, arity int) {
	if g.Exists(name) {
		return
	}
	obj := h.AllocNative(fn, name, arity)
	g.globals = append(g.globals, GlobalVar{Name: name, Value: MakeObject(obj)})
}

// AddConst registers a numeric constant slot.
func (g *Global) AddConst(name string, value float64) {
	if g.Exists(name) {
		return
	}
	g.globals = append(g.globals, GlobalVar{Name: name, Value: MakeNumber(value)})
}

// GetIndex returns the newest slot index for name, or -1.
func (g *Global) GetIndex(name string) int {
	for i := len(g.globals) - 1; i >= 0; i-- {
		if g.globals[i].Name == name {
			return i
		}
	}
	return -1
}

// Exists reports whether a slot with the given name is defined.
func (g *Global) Exists(name string) bool {
	return g.GetIndex(name) != -1
}

// Len returns the number of defined slots.
func (g *Global) Len() int {
	return len(g.globals)
}
