package vm

// LocalVar is one entry of a code unit's local-variable table.
// Lookups scan in reverse so the innermost declaration wins.
type LocalVar struct {
	Name       string
	ScopeLevel int
}

// Code is a compiled unit: bytecode plus the tables needed to run it.
type Code struct {
	// Name of the unit (usually the function name).
	Name string
	// Arity is the declared parameter count.
	Arity int
	// Constants is the constant pool.
	Constants []Value
	// Bytecode is the flat instruction stream.
	Bytecode []byte
	// ScopeLevel tracks block nesting while compiling.
	ScopeLevel int
	// Locals are the declared local variables in declaration order.
	Locals []LocalVar
	// CellNames lists captured (free) cells followed by own cells.
	CellNames []string
	// FreeCount is the number of leading free cells in CellNames.
	FreeCount int
}

// AddLocal registers a local at the current scope level.
func (c *Code) AddLocal(name string) {
	c.Locals = append(c.Locals, LocalVar{Name: name, ScopeLevel: c.ScopeLevel})
}

// AddConst appends a constant and returns its index.
func (c *Code) AddConst(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// GetLocalIndex finds the innermost local with the given name, or -1.
func (c *Code) GetLocalIndex(name string) int {
	for i := len(c.Locals) - 1; i >= 0; i-- {
		if c.Locals[i].Name == name {
			return i
		}
	}
	return -1
}

// GetCellIndex finds the cell slot for the given name, or -1.
func (c *Code) GetCellIndex(name string) int {
	for i := len(c.CellNames) - 1; i >= 0; i-- {
		if c.CellNames[i] == name {
			return i
		}
	}
	return -1
}
