// Package object defines nilan's runtime value model: the tagged
// Value that every stack slot and variable holds, and the heap Object
// variants a Value can point to — strings, arrays, functions, native
// functions, bound methods, classes, and instances.
package object

import "nilan/bytecode"

// ValueTag classifies a Value.
type ValueTag int

const (
	TagNil ValueTag = iota
	TagPrimitive
	TagObject
)

// PrimitiveKind distinguishes the two PRIMITIVE payload shapes.
type PrimitiveKind int

const (
	PrimBool PrimitiveKind = iota
	PrimInt
)

// Value is the VM's tagged cell: every operand stack slot, local
// slot, global, and attribute is a Value. PRIMITIVE payloads (bool
// encoded 0/1, or a 64-bit signed int) live directly in Int; OBJECT
// payloads reference a heap Object.
type Value struct {
	Tag      ValueTag
	PrimKind PrimitiveKind
	Int      int64
	Obj      *Object
}

// Nil is the singleton NIL value.
var Nil = Value{Tag: TagNil}

// Bool constructs a PRIMITIVE/BOOL value.
func Bool(b bool) Value {
	i := int64(0)
	if b {
		i = 1
	}
	return Value{Tag: TagPrimitive, PrimKind: PrimBool, Int: i}
}

// Int constructs a PRIMITIVE/INT value.
func Int(i int64) Value {
	return Value{Tag: TagPrimitive, PrimKind: PrimInt, Int: i}
}

// Obj constructs an OBJECT value wrapping o.
func Obj(o *Object) Value {
	return Value{Tag: TagObject, Obj: o}
}

func (v Value) IsNil() bool { return v.Tag == TagNil }

func (v Value) IsBool() bool { return v.Tag == TagPrimitive && v.PrimKind == PrimBool }

func (v Value) IsInt() bool { return v.Tag == TagPrimitive && v.PrimKind == PrimInt }

func (v Value) IsObject() bool { return v.Tag == TagObject }

// AsBool reads the boolean payload of a PRIMITIVE/BOOL value. Callers
// must have checked IsBool first.
func (v Value) AsBool() bool { return v.Int != 0 }

// Kind classifies an Object variant.
type Kind int

const (
	KindValue Kind = iota
	KindString
	KindArray
	KindFn
	KindNativeFn
	KindMethod
	KindClass
	KindInstance
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindFn:
		return "fn"
	case KindNativeFn:
		return "native fn"
	case KindMethod:
		return "method"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	}
	return "unknown"
}

// NativeFunc is the signature every registered native function
// implements. host is a natives.Host (typed as interface{} here so
// this package need not import the natives package — the caller is
// expected to already hold a concrete Host and pass itself).
type NativeFunc func(host interface{}, args []Value) (Value, error)

// Object is every heap-allocated runtime entity, tagged by Kind. Only
// one of the variant field groups below is meaningful for any given
// Kind — a flat struct rather than an interface hierarchy, since every
// variant is collected and walked uniformly by the GC regardless of
// its payload shape.
type Object struct {
	Kind   Kind
	Marked bool
	Listed bool // true once enrolled in the VM's object list — guards double-enrollment
	Next   *Object
	Prev   *Object

	// STRING
	Str  string
	Core bool // true when Str is borrowed from the constant pool

	// VALUE (boxed primitive/object, used uniformly by ARRAY items and
	// INSTANCE attributes)
	Boxed Value

	// ARRAY
	Items []*Object // each slot is nil (empty) or a KindValue box

	// FN
	Name   string
	Params []string
	Chunk  bytecode.Instructions

	// NATIVE_FN
	NativeName string
	Arity      int
	Native     NativeFunc

	// METHOD
	Instance *Object // KindInstance
	Fn       *Object // KindFn

	// CLASS
	ClassName string
	Init      *Object // KindFn, optional
	Methods   map[string]*Object

	// INSTANCE
	Class *Object // KindClass
	Attrs map[string]*Object // name -> KindValue box
}

// NewString makes a STRING object. core marks the buffer as borrowed
// from a constant pool (never released by the GC).
func NewString(s string, core bool) *Object {
	return &Object{Kind: KindString, Str: s, Core: core}
}

// NewBox wraps v uniformly so arrays and instance attributes can hold
// it by Object pointer.
func NewBox(v Value) *Object {
	return &Object{Kind: KindValue, Boxed: v}
}

// NewArray allocates an array of the given length, all slots empty.
func NewArray(length int) *Object {
	return &Object{Kind: KindArray, Items: make([]*Object, length)}
}

// NewFn allocates a function object; Chunk is filled in by the
// compiler once the body has been emitted.
func NewFn(name string, params []string) *Object {
	return &Object{Kind: KindFn, Name: name, Params: params}
}

// NewNativeFn allocates a native function object for the native
// registry.
func NewNativeFn(name string, arity int, fn NativeFunc) *Object {
	return &Object{Kind: KindNativeFn, NativeName: name, Arity: arity, Native: fn}
}

// NewMethod binds fn to instance: a METHOD is an FN whose frame gets
// this instance as its bound `this`.
func NewMethod(instance, fn *Object) *Object {
	return &Object{Kind: KindMethod, Instance: instance, Fn: fn}
}

// NewClass allocates a class entity; Init may be nil.
func NewClass(name string, init *Object) *Object {
	return &Object{Kind: KindClass, ClassName: name, Init: init, Methods: map[string]*Object{}}
}

// NewInstance allocates an instance of class with an empty attribute
// table.
func NewInstance(class *Object) *Object {
	return &Object{Kind: KindInstance, Class: class, Attrs: map[string]*Object{}}
}

// Children returns the objects o transitively references, so the GC's
// mark phase can recurse into them: ARRAY into its non-NIL items,
// METHOD into its instance, INSTANCE into each OBJECT-kind attribute
// value; every other variant marks only itself. VALUE boxes
// recurse into their wrapped Value's Object when it carries one — the
// box exists solely to let ARRAY/INSTANCE reference a Value uniformly,
// so without this a boxed string or array would be collected out from
// under a live container.
func (o *Object) Children() []*Object {
	switch o.Kind {
	case KindArray:
		var children []*Object
		for _, item := range o.Items {
			if item != nil {
				children = append(children, item)
			}
		}
		return children
	case KindMethod:
		if o.Instance != nil {
			return []*Object{o.Instance}
		}
		return nil
	case KindInstance:
		var children []*Object
		for _, attr := range o.Attrs {
			if attr != nil {
				children = append(children, attr)
			}
		}
		return children
	case KindValue:
		if o.Boxed.IsObject() && o.Boxed.Obj != nil {
			return []*Object{o.Boxed.Obj}
		}
		return nil
	default:
		return nil
	}
}
