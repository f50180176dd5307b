package vm

import (
	"fmt"
)

// ObjectKind identifies the kind of heap object.
type ObjectKind uint8

const (
	// OKString is an immutable string.
	OKString ObjectKind = iota
	// OKCode is a compiled code unit.
	OKCode
	// OKNative is a built-in function.
	OKNative
	// OKFunction is a user function with captured cells.
	OKFunction
	// OKCell is a single-slot heap cell shared by closures.
	OKCell
	// OKClass is a class with a property table and optional superclass.
	OKClass
	// OKInstance is an instance of a class.
	OKInstance
)

func (k ObjectKind) String() string {
	switch k {
	case OKString:
		return "string"
	case OKCode:
		return "code"
	case OKNative:
		return "native"
	case OKFunction:
		return "function"
	case OKCell:
		return "cell"
	case OKClass:
		return "class"
	case OKInstance:
		return "instance"
	default:
		return fmt.Sprintf("ObjectKind(%d)", k)
	}
}

// Object is a heap object. Every object carries the traceable header
// (mark bit, allocated size, intrusive list link) plus the payload for
// its kind.
type Object struct {
	Kind   ObjectKind
	marked bool
	size   int
	next   *Object // intrusive allocation list

	Str      string    // OKString
	Code     *Code     // OKCode
	Native   *Native   // OKNative
	Fn       *Function // OKFunction
	Cell     Value     // OKCell
	Class    *Class    // OKClass
	Instance *Instance // OKInstance
}

// Size returns the byte size recorded at allocation.
func (o *Object) Size() int { return o.size }

// Marked reports the mark bit; it is meaningful only during a collection.
func (o *Object) Marked() bool { return o.marked }

// Native is a built-in function payload. The callable reads its
// arguments via vm.Peek and pushes its result.
type Native struct {
	Fn    func(machine *VM) error
	Name  string
	Arity int
}

// Function is a user function payload: a code unit plus captured cells.
// Cells[0:FreeCount] are captured from enclosing scopes; the rest are
// own cells allocated per invocation.
type Function struct {
	Co    *Object   // OKCode
	Cells []*Object // OKCell
}

// Class is a class payload. Properties hold methods and shared values.
type Class struct {
	Name  string
	Super *Object // OKClass, nil for base classes
	Props map[string]Value
}

// Resolve looks a property up in the class chain.
func (c *Class) Resolve(name string) (Value, bool) {
	if v, ok := c.Props[name]; ok {
		return v, true
	}
	if c.Super != nil {
		return c.Super.Class.Resolve(name)
	}
	return Value{}, false
}

// Instance is an instance payload with its own property table.
type Instance struct {
	Class *Object // OKClass
	Props map[string]Value
}

// Resolve looks a property up on the instance, then in its class chain.
func (inst *Instance) Resolve(name string) (Value, bool) {
	if v, ok := inst.Props[name]; ok {
		return v, true
	}
	return inst.Class.Class.Resolve(name)
}

// String renders the object for diagnostics and constant dumps.
func (o *Object) String() string {
	switch o.Kind {
	case OKString:
		return fmt.Sprintf("%q", o.Str)
	case OKCode:
		return fmt.Sprintf("code %s/%d", o.Code.Name, o.Code.Arity)
	case OKNative:
		return fmt.Sprintf("native %s/%d", o.Native.Name, o.Native.Arity)
	case OKFunction:
		return fmt.Sprintf("%s/%d", o.Fn.Co.Code.Name, o.Fn.Co.Code.Arity)
	case OKCell:
		return fmt.Sprintf("cell %s", o.Cell)
	case OKClass:
		return fmt.Sprintf("class %s", o.Class.Name)
	case OKInstance:
		return fmt.Sprintf("instance %s", o.Instance.Class.Class.Name)
	default:
		return o.Kind.String()
	}
}
