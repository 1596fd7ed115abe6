// Package vm implements nilan's stack-based interpreter: fixed-size
// operand and frame stacks, a fetch-decode-execute dispatch loop over
// the full opcode table, call dispatch for functions/methods/classes,
// and a mark-and-sweep collector triggered only by the GBG opcode.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nilan/bytecode"
	"nilan/compiler"
	"nilan/object"
)

const (
	stackCapacity = 255
	frameCapacity = 255
)

// frame is one activation record: instruction pointer, the chunk it
// steps through, an optional bound instance for method/constructor
// calls, and a fixed 256-slot local array.
type frame struct {
	chunk    bytecode.Instructions
	ip       int
	instance *object.Object
	isCtor   bool
	locals   [256]object.Value
}

// VM is a single-threaded interpreter instance. Each Run executes one
// compiled program top to bottom; a VM may be Run again with another
// program, and only its globals carry over between runs.
type VM struct {
	stack [stackCapacity]object.Value
	sp    int

	frames   [frameCapacity]frame
	frameIdx int

	entities  []*object.Object
	intConsts []int64
	strConsts []string
	globals   map[string]object.Value

	head, tail *object.Object

	stdout io.Writer
	stdin  *bufio.Reader

	stopped      bool
	exitCode     int
	panicMessage *string

	debug bool
}

// Option configures a VM at construction time via functional options
// instead of exported fields.
type Option func(*VM)

// WithDebug enables the opcode-by-opcode trace described in spec
// §10.2: every decoded instruction and the operand-stack depth before
// it executes is written to stdout.
func WithDebug(debug bool) Option {
	return func(vm *VM) { vm.debug = debug }
}

// New creates a VM that prints to stdout and reads natives' `read_ln`
// input from stdin.
func New(stdout io.Writer, stdin io.Reader, opts ...Option) *VM {
	vm := &VM{
		globals: map[string]object.Value{},
		stdout:  stdout,
		stdin:   bufio.NewReader(stdin),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// ExitCode reports the code requested by a successful `exit(n)` call,
// 0 otherwise.
func (vm *VM) ExitCode() int { return vm.exitCode }

// Run loads a compiled program into the VM and executes its top-level
// chunk as frame 0 until HLT, a main-frame RET, or a native-requested
// stop.
func (vm *VM) Run(program *compiler.Program) error {
	vm.entities = program.Entities
	vm.intConsts = program.IntConsts
	vm.strConsts = program.StrConsts
	vm.frameIdx = 0
	vm.frames[0] = frame{chunk: program.MainChunk}
	return vm.loop()
}

func (vm *VM) loop() error {
	for {
		if vm.stopped {
			break
		}
		f := &vm.frames[vm.frameIdx]
		if f.ip < 0 || f.ip >= len(f.chunk) {
			return RuntimeError{Message: "bytecode truncation: instruction pointer past end of chunk"}
		}
		op := bytecode.Opcode(f.chunk[f.ip])

		if vm.debug {
			fmt.Fprintf(vm.stdout, "%04d %-14s sp=%d frame=%d\n", f.ip, op, vm.sp, vm.frameIdx)
		}

		switch op {
		case bytecode.HLT:
			return nil

		case bytecode.NIL:
			if err := vm.push(object.Nil); err != nil {
				return err
			}
			f.ip++

		case bytecode.BCONST:
			b := bytecode.ReadUint8(f.chunk, f.ip+1)
			if err := vm.push(object.Bool(b != 0)); err != nil {
				return err
			}
			f.ip += 2

		case bytecode.ICONST:
			idx := int(bytecode.ReadInt32(f.chunk, f.ip+1))
			n, err := vm.intConstAt(idx)
			if err != nil {
				return err
			}
			if err := vm.push(object.Int(n)); err != nil {
				return err
			}
			f.ip += 5

		case bytecode.SCONST:
			idx := int(bytecode.ReadInt32(f.chunk, f.ip+1))
			s, err := vm.strConstAt(idx)
			if err != nil {
				return err
			}
			str := object.NewString(s, true)
			vm.enroll(str)
			if err := vm.push(object.Obj(str)); err != nil {
				return err
			}
			f.ip += 5

		case bytecode.ARR:
			isEmpty := bytecode.ReadUint8(f.chunk, f.ip+1) != 0
			lengthVal, err := vm.pop()
			if err != nil {
				return err
			}
			length, err := vm.asInt(lengthVal)
			if err != nil {
				return err
			}
			if length < 0 {
				return RuntimeError{Message: "array literal: negative length"}
			}
			arr := object.NewArray(int(length))
			if !isEmpty {
				for i := int(length) - 1; i >= 0; i-- {
					v, err := vm.pop()
					if err != nil {
						return err
					}
					box := object.NewBox(v)
					vm.enroll(box)
					arr.Items[i] = box
				}
			}
			vm.enroll(arr)
			if err := vm.push(object.Obj(arr)); err != nil {
				return err
			}
			f.ip += 2

		case bytecode.ARR_LEN:
			v, err := vm.pop()
			if err != nil {
				return err
			}
			arr, err := vm.asArray(v)
			if err != nil {
				return err
			}
			if err := vm.push(object.Int(int64(len(arr.Items)))); err != nil {
				return err
			}
			f.ip++

		case bytecode.ARR_ITM:
			idxVal, err := vm.pop()
			if err != nil {
				return err
			}
			idx, err := vm.asInt(idxVal)
			if err != nil {
				return err
			}
			containerVal, err := vm.pop()
			if err != nil {
				return err
			}
			result, err := vm.indexContainer(containerVal, idx)
			if err != nil {
				return err
			}
			if err := vm.push(result); err != nil {
				return err
			}
			f.ip++

		case bytecode.ARR_SITM:
			idxVal, err := vm.pop()
			if err != nil {
				return err
			}
			idx, err := vm.asInt(idxVal)
			if err != nil {
				return err
			}
			containerVal, err := vm.pop()
			if err != nil {
				return err
			}
			arr, err := vm.asArray(containerVal)
			if err != nil {
				return err
			}
			if idx < 0 || idx >= int64(len(arr.Items)) {
				return RuntimeError{Message: fmt.Sprintf("array index %d out of range for length %d", idx, len(arr.Items))}
			}
			newVal, err := vm.peek(0)
			if err != nil {
				return err
			}
			if box := arr.Items[idx]; box != nil {
				box.Boxed = newVal
			} else {
				box := object.NewBox(newVal)
				vm.enroll(box)
				arr.Items[idx] = box
			}
			f.ip++

		case bytecode.LREAD:
			slot := int(bytecode.ReadUint8(f.chunk, f.ip+1))
			if err := vm.push(f.locals[slot]); err != nil {
				return err
			}
			f.ip += 2

		case bytecode.LSET:
			slot := int(bytecode.ReadUint8(f.chunk, f.ip+1))
			v, err := vm.peek(0)
			if err != nil {
				return err
			}
			f.locals[slot] = v
			f.ip += 2

		case bytecode.GWRITE:
			idx := int(bytecode.ReadInt32(f.chunk, f.ip+1))
			name, err := vm.strConstAt(idx)
			if err != nil {
				return err
			}
			v, err := vm.peek(0)
			if err != nil {
				return err
			}
			vm.globals[name] = v
			f.ip += 5

		case bytecode.GREAD:
			idx := int(bytecode.ReadInt32(f.chunk, f.ip+1))
			name, err := vm.strConstAt(idx)
			if err != nil {
				return err
			}
			v, ok := vm.globals[name]
			if !ok {
				return RuntimeError{Message: "undefined global '" + name + "'"}
			}
			if err := vm.push(v); err != nil {
				return err
			}
			f.ip += 5

		case bytecode.LOAD:
			idx := int(bytecode.ReadInt32(f.chunk, f.ip+1))
			if idx < 0 || idx >= len(vm.entities) {
				return RuntimeError{Message: "entity index out of range"}
			}
			if err := vm.push(object.Obj(vm.entities[idx])); err != nil {
				return err
			}
			f.ip += 5

		case bytecode.ADD, bytecode.SUB, bytecode.MULT, bytecode.DIV, bytecode.MOD:
			if err := vm.arith(op); err != nil {
				return err
			}
			f.ip++

		case bytecode.LT, bytecode.LE, bytecode.GT, bytecode.GE, bytecode.EQ, bytecode.NE:
			if err := vm.compare(op); err != nil {
				return err
			}
			f.ip++

		case bytecode.OR, bytecode.AND:
			right, err := vm.pop()
			if err != nil {
				return err
			}
			left, err := vm.pop()
			if err != nil {
				return err
			}
			lb, err := vm.asBool(left)
			if err != nil {
				return err
			}
			rb, err := vm.asBool(right)
			if err != nil {
				return err
			}
			var result bool
			if op == bytecode.OR {
				result = lb || rb
			} else {
				result = lb && rb
			}
			if err := vm.push(object.Bool(result)); err != nil {
				return err
			}
			f.ip++

		case bytecode.NOT:
			v, err := vm.pop()
			if err != nil {
				return err
			}
			b, err := vm.asBool(v)
			if err != nil {
				return err
			}
			if err := vm.push(object.Bool(!b)); err != nil {
				return err
			}
			f.ip++

		case bytecode.NNOT:
			v, err := vm.pop()
			if err != nil {
				return err
			}
			n, err := vm.asInt(v)
			if err != nil {
				return err
			}
			if err := vm.push(object.Int(-n)); err != nil {
				return err
			}
			f.ip++

		case bytecode.SLEFT, bytecode.SRIGHT, bytecode.BOR, bytecode.BXOR, bytecode.BAND:
			right, err := vm.pop()
			if err != nil {
				return err
			}
			left, err := vm.pop()
			if err != nil {
				return err
			}
			li, err := vm.asInt(left)
			if err != nil {
				return err
			}
			ri, err := vm.asInt(right)
			if err != nil {
				return err
			}
			var result int64
			switch op {
			case bytecode.SLEFT:
				result = li << uint64(ri)
			case bytecode.SRIGHT:
				result = li >> uint64(ri)
			case bytecode.BOR:
				result = li | ri
			case bytecode.BXOR:
				result = li ^ ri
			case bytecode.BAND:
				result = li & ri
			}
			if err := vm.push(object.Int(result)); err != nil {
				return err
			}
			f.ip++

		case bytecode.BNOT:
			v, err := vm.pop()
			if err != nil {
				return err
			}
			n, err := vm.asInt(v)
			if err != nil {
				return err
			}
			if err := vm.push(object.Int(^n)); err != nil {
				return err
			}
			f.ip++

		case bytecode.JMP:
			delta := bytecode.ReadInt32(f.chunk, f.ip+1)
			f.ip = f.ip + int(delta)

		case bytecode.JIT:
			delta := bytecode.ReadInt32(f.chunk, f.ip+1)
			v, err := vm.pop()
			if err != nil {
				return err
			}
			b, err := vm.asBool(v)
			if err != nil {
				return err
			}
			if b {
				f.ip = f.ip + int(delta)
			} else {
				f.ip += 5
			}

		case bytecode.JIF:
			delta := bytecode.ReadInt32(f.chunk, f.ip+1)
			v, err := vm.pop()
			if err != nil {
				return err
			}
			b, err := vm.asBool(v)
			if err != nil {
				return err
			}
			if !b {
				f.ip = f.ip + int(delta)
			} else {
				f.ip += 5
			}

		case bytecode.CONCAT:
			right, err := vm.pop()
			if err != nil {
				return err
			}
			left, err := vm.pop()
			if err != nil {
				return err
			}
			ls, err := vm.asString(left)
			if err != nil {
				return err
			}
			rs, err := vm.asString(right)
			if err != nil {
				return err
			}
			result := object.NewString(ls.Str+rs.Str, false)
			vm.enroll(result)
			if err := vm.push(object.Obj(result)); err != nil {
				return err
			}
			f.ip++

		case bytecode.STR_LEN:
			v, err := vm.pop()
			if err != nil {
				return err
			}
			s, err := vm.asString(v)
			if err != nil {
				return err
			}
			if err := vm.push(object.Int(int64(len(s.Str)))); err != nil {
				return err
			}
			f.ip++

		case bytecode.STR_ITM:
			sVal, err := vm.pop()
			if err != nil {
				return err
			}
			s, err := vm.asString(sVal)
			if err != nil {
				return err
			}
			idxVal, err := vm.pop()
			if err != nil {
				return err
			}
			idx, err := vm.asInt(idxVal)
			if err != nil {
				return err
			}
			if idx < 0 || idx >= int64(len(s.Str)) {
				return RuntimeError{Message: fmt.Sprintf("string index %d out of range for length %d", idx, len(s.Str))}
			}
			result := object.NewString(string(s.Str[idx]), false)
			vm.enroll(result)
			if err := vm.push(object.Obj(result)); err != nil {
				return err
			}
			f.ip++

		case bytecode.CLASS:
			idx := int(bytecode.ReadInt32(f.chunk, f.ip+1))
			if idx < 0 || idx >= len(vm.entities) || vm.entities[idx].Kind != object.KindClass {
				return RuntimeError{Message: "CLASS: entity index does not name a class"}
			}
			inst := object.NewInstance(vm.entities[idx])
			vm.enroll(inst)
			if err := vm.push(object.Obj(inst)); err != nil {
				return err
			}
			f.ip += 5

		case bytecode.THIS:
			if f.instance == nil {
				return RuntimeError{Message: "'this' used with no bound instance"}
			}
			if err := vm.push(object.Obj(f.instance)); err != nil {
				return err
			}
			f.ip++

		case bytecode.SET_PROPERTY:
			idx := int(bytecode.ReadInt32(f.chunk, f.ip+1))
			name, err := vm.strConstAt(idx)
			if err != nil {
				return err
			}
			recv, err := vm.pop()
			if err != nil {
				return err
			}
			inst, err := vm.asInstance(recv)
			if err != nil {
				return err
			}
			val, err := vm.peek(0)
			if err != nil {
				return err
			}
			if box, ok := inst.Attrs[name]; ok {
				box.Boxed = val
			} else {
				box := object.NewBox(val)
				vm.enroll(box)
				inst.Attrs[name] = box
			}
			f.ip += 5

		case bytecode.GET_PROPERTY:
			idx := int(bytecode.ReadInt32(f.chunk, f.ip+1))
			name, err := vm.strConstAt(idx)
			if err != nil {
				return err
			}
			recv, err := vm.pop()
			if err != nil {
				return err
			}
			inst, err := vm.asInstance(recv)
			if err != nil {
				return err
			}
			if box, ok := inst.Attrs[name]; ok {
				if err := vm.push(box.Boxed); err != nil {
					return err
				}
			} else if m, ok := inst.Class.Methods[name]; ok {
				method := object.NewMethod(inst, m)
				vm.enroll(method)
				if err := vm.push(object.Obj(method)); err != nil {
					return err
				}
			} else {
				return RuntimeError{Message: fmt.Sprintf("instance of '%s' has no attribute or method '%s'", inst.Class.ClassName, name)}
			}
			f.ip += 5

		case bytecode.IS:
			tag := int(bytecode.ReadUint8(f.chunk, f.ip+1))
			v, err := vm.pop()
			if err != nil {
				return err
			}
			if err := vm.push(object.Bool(matchesTag(v, tag))); err != nil {
				return err
			}
			f.ip += 2

		case bytecode.FROM:
			idx := int(bytecode.ReadInt32(f.chunk, f.ip+1))
			className, err := vm.strConstAt(idx)
			if err != nil {
				return err
			}
			v, err := vm.pop()
			if err != nil {
				return err
			}
			matches := v.IsObject() && v.Obj != nil && v.Obj.Kind == object.KindInstance && v.Obj.Class.ClassName == className
			if err := vm.push(object.Bool(matches)); err != nil {
				return err
			}
			f.ip += 5

		case bytecode.PRT:
			v, err := vm.pop()
			if err != nil {
				return err
			}
			fmt.Fprintln(vm.stdout, vm.format(v))
			f.ip++

		case bytecode.POP:
			if _, err := vm.pop(); err != nil {
				return err
			}
			f.ip++

		case bytecode.CALL:
			argc := int(bytecode.ReadUint8(f.chunk, f.ip+1))
			f.ip += 2
			if err := vm.call(argc); err != nil {
				return err
			}

		case bytecode.GBG:
			vm.gc()
			f.ip++

		case bytecode.RET:
			v, err := vm.pop()
			if err != nil {
				return err
			}
			if vm.frameIdx == 0 {
				return nil
			}
			vm.frameIdx--
			if err := vm.push(v); err != nil {
				return err
			}

		default:
			return RuntimeError{Message: fmt.Sprintf("unknown opcode %d", byte(op))}
		}
	}

	if vm.panicMessage != nil {
		return PanicError{Message: *vm.panicMessage}
	}
	return nil
}

// --- operand stack -------------------------------------------------

func (vm *VM) push(v object.Value) error {
	if vm.sp >= stackCapacity {
		return RuntimeError{Message: "operand stack overflow"}
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() (object.Value, error) {
	if vm.sp == 0 {
		return object.Nil, RuntimeError{Message: "operand stack underflow"}
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

func (vm *VM) peek(offset int) (object.Value, error) {
	idx := vm.sp - 1 - offset
	if idx < 0 {
		return object.Nil, RuntimeError{Message: "operand stack underflow"}
	}
	return vm.stack[idx], nil
}

// --- type coercion helpers ------------------------------------------

func (vm *VM) asInt(v object.Value) (int64, error) {
	if !v.IsInt() {
		return 0, RuntimeError{Message: "expected an int"}
	}
	return v.Int, nil
}

func (vm *VM) asBool(v object.Value) (bool, error) {
	if !v.IsBool() {
		return false, RuntimeError{Message: "expected a bool"}
	}
	return v.AsBool(), nil
}

func (vm *VM) asString(v object.Value) (*object.Object, error) {
	if !v.IsObject() || v.Obj == nil || v.Obj.Kind != object.KindString {
		return nil, RuntimeError{Message: "expected a string"}
	}
	return v.Obj, nil
}

func (vm *VM) asArray(v object.Value) (*object.Object, error) {
	if !v.IsObject() || v.Obj == nil || v.Obj.Kind != object.KindArray {
		return nil, RuntimeError{Message: "expected an array"}
	}
	return v.Obj, nil
}

func (vm *VM) asInstance(v object.Value) (*object.Object, error) {
	if !v.IsObject() || v.Obj == nil || v.Obj.Kind != object.KindInstance {
		return nil, RuntimeError{Message: "expected an instance"}
	}
	return v.Obj, nil
}

func (vm *VM) intConstAt(idx int) (int64, error) {
	if idx < 0 || idx >= len(vm.intConsts) {
		return 0, RuntimeError{Message: "integer constant index out of range"}
	}
	return vm.intConsts[idx], nil
}

func (vm *VM) strConstAt(idx int) (string, error) {
	if idx < 0 || idx >= len(vm.strConsts) {
		return "", RuntimeError{Message: "string constant index out of range"}
	}
	return vm.strConsts[idx], nil
}

// indexContainer implements the `[ ]` read path (ARR_ITM): arrays
// only. A string's characters are reachable only through the
// dedicated `str_char` native (STR_ITM), which pops its string and
// index operands in the opposite order from this opcode — the two
// never share an implementation, so there's nothing to keep in sync
// between them.
func (vm *VM) indexContainer(container object.Value, idx int64) (object.Value, error) {
	if !container.IsObject() || container.Obj == nil || container.Obj.Kind != object.KindArray {
		return object.Nil, RuntimeError{Message: "indexing operator applied to a non-array value"}
	}
	items := container.Obj.Items
	if idx < 0 || idx >= int64(len(items)) {
		return object.Nil, RuntimeError{Message: fmt.Sprintf("array index %d out of range for length %d", idx, len(items))}
	}
	if box := items[idx]; box != nil {
		return box.Boxed, nil
	}
	return object.Nil, nil
}

func (vm *VM) arith(op bytecode.Opcode) error {
	right, err := vm.pop()
	if err != nil {
		return err
	}
	left, err := vm.pop()
	if err != nil {
		return err
	}
	li, err := vm.asInt(left)
	if err != nil {
		return err
	}
	ri, err := vm.asInt(right)
	if err != nil {
		return err
	}
	var result int64
	switch op {
	case bytecode.ADD:
		result = li + ri
	case bytecode.SUB:
		result = li - ri
	case bytecode.MULT:
		result = li * ri
	case bytecode.DIV:
		if ri == 0 {
			return RuntimeError{Message: "division by zero"}
		}
		result = li / ri
	case bytecode.MOD:
		if ri == 0 {
			return RuntimeError{Message: "modulus by zero"}
		}
		result = li % ri
	}
	return vm.push(object.Int(result))
}

func (vm *VM) compare(op bytecode.Opcode) error {
	right, err := vm.pop()
	if err != nil {
		return err
	}
	left, err := vm.pop()
	if err != nil {
		return err
	}
	li, err := vm.asInt(left)
	if err != nil {
		return err
	}
	ri, err := vm.asInt(right)
	if err != nil {
		return err
	}
	var result bool
	switch op {
	case bytecode.LT:
		result = li < ri
	case bytecode.LE:
		result = li <= ri
	case bytecode.GT:
		result = li > ri
	case bytecode.GE:
		result = li >= ri
	case bytecode.EQ:
		result = li == ri
	case bytecode.NE:
		result = li != ri
	}
	return vm.push(object.Bool(result))
}

func matchesTag(v object.Value, tag int) bool {
	switch tag {
	case 0:
		return v.IsNil()
	case 1:
		return v.IsBool()
	case 2:
		return v.IsInt()
	case 3:
		return v.IsObject() && v.Obj != nil && v.Obj.Kind == object.KindString
	case 4:
		return v.IsObject() && v.Obj != nil && v.Obj.Kind == object.KindArray
	case 5:
		if !v.IsObject() || v.Obj == nil {
			return false
		}
		switch v.Obj.Kind {
		case object.KindFn, object.KindNativeFn, object.KindMethod:
			return true
		}
		return false
	case 6:
		return v.IsObject() && v.Obj != nil && v.Obj.Kind == object.KindClass
	case 7:
		return v.IsObject() && v.Obj != nil && v.Obj.Kind == object.KindInstance
	}
	return false
}

// --- call dispatch ----------------------------------------------------

func (vm *VM) call(argc int) error {
	calleeIdx := vm.sp - 1 - argc
	if calleeIdx < 0 {
		return RuntimeError{Message: "call: not enough operands for callee and arguments"}
	}
	calleeVal := vm.stack[calleeIdx]
	if !calleeVal.IsObject() || calleeVal.Obj == nil {
		return RuntimeError{Message: "call: value is not callable"}
	}
	callee := calleeVal.Obj

	switch callee.Kind {
	case object.KindFn:
		return vm.callFn(callee, nil, false, argc)
	case object.KindMethod:
		return vm.callFn(callee.Fn, callee.Instance, false, argc)
	case object.KindNativeFn:
		return vm.callNative(callee, argc)
	case object.KindClass:
		return vm.callClass(callee, argc)
	default:
		return RuntimeError{Message: fmt.Sprintf("call: %s is not callable", callee.Kind)}
	}
}

// callFn pushes a new frame for fn, copying argc popped operand-stack
// values directly into locals 0..argc-1 in pop order — the compiler
// already reverses argument push order, so a plain top-to-bottom copy
// lands the first parameter in slot 0.
func (vm *VM) callFn(fn *object.Object, instance *object.Object, isCtor bool, argc int) error {
	if argc != len(fn.Params) {
		return RuntimeError{Message: fmt.Sprintf("call: '%s' expects %d argument(s), got %d", fn.Name, len(fn.Params), argc)}
	}
	if vm.frameIdx+1 >= frameCapacity {
		return RuntimeError{Message: "frame stack overflow"}
	}
	nf := frame{chunk: fn.Chunk, instance: instance, isCtor: isCtor}
	for slot := 0; slot < argc; slot++ {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		nf.locals[slot] = v
	}
	if _, err := vm.pop(); err != nil { // the callee itself
		return err
	}
	vm.frameIdx++
	vm.frames[vm.frameIdx] = nf
	return nil
}

func (vm *VM) callNative(native *object.Object, argc int) error {
	if argc != native.Arity {
		return RuntimeError{Message: fmt.Sprintf("call: native '%s' expects %d argument(s), got %d", native.NativeName, native.Arity, argc)}
	}
	args := make([]object.Value, argc)
	for i := 0; i < argc; i++ {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	if _, err := vm.pop(); err != nil { // the callee itself
		return err
	}
	result, err := native.Native(vm, args)
	if err != nil {
		return RuntimeError{Message: err.Error()}
	}
	vm.enrollTree(result)
	return vm.push(result)
}

// callClass implements CALL's CLASS case: allocate a fresh instance,
// run the constructor bound to it if one exists (the
// constructor's synthetic `THIS; RET` guarantees the returned value
// is the instance), otherwise just replace the class with the
// instance on the stack.
func (vm *VM) callClass(class *object.Object, argc int) error {
	instance := object.NewInstance(class)
	vm.enroll(instance)
	if class.Init != nil {
		return vm.callFn(class.Init, instance, true, argc)
	}
	if argc != 0 {
		return RuntimeError{Message: fmt.Sprintf("call: class '%s' has no constructor but was given %d argument(s)", class.ClassName, argc)}
	}
	if _, err := vm.pop(); err != nil { // the CLASS callable
		return err
	}
	return vm.push(object.Obj(instance))
}

// --- garbage collection ------------------------------------------------

// gc runs one mark-and-sweep cycle. Roots: every active frame's bound
// instance and all 256 local slots (frames 0..frameIdx), every live
// operand-stack slot, and every global.
func (vm *VM) gc() {
	for i := 0; i <= vm.frameIdx; i++ {
		fr := &vm.frames[i]
		vm.markObj(fr.instance)
		for _, v := range fr.locals {
			vm.markValue(v)
		}
	}
	for i := 0; i < vm.sp; i++ {
		vm.markValue(vm.stack[i])
	}
	for _, v := range vm.globals {
		vm.markValue(v)
	}

	node := vm.head
	for node != nil {
		next := node.Next
		if node.Marked {
			node.Marked = false
		} else {
			vm.unlink(node)
		}
		node = next
	}
}

func (vm *VM) markValue(v object.Value) {
	if v.IsObject() {
		vm.markObj(v.Obj)
	}
}

func (vm *VM) markObj(o *object.Object) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true
	for _, child := range o.Children() {
		vm.markObj(child)
	}
}

// enroll links a freshly allocated heap object into the VM's object
// list, idempotently (Listed guards re-linking an already-tracked
// object reached again through enrollTree).
func (vm *VM) enroll(o *object.Object) {
	if o == nil || o.Listed {
		return
	}
	o.Listed = true
	o.Prev = vm.tail
	o.Next = nil
	if vm.tail != nil {
		vm.tail.Next = o
	} else {
		vm.head = o
	}
	vm.tail = o
}

// enrollTree enrolls v's object (if any) and recursively every object
// it references — needed for native results, whose object graphs
// (e.g. read_file_bytes' array of boxed ints) are built entirely
// outside the VM and arrive unlisted.
func (vm *VM) enrollTree(v object.Value) {
	if !v.IsObject() || v.Obj == nil || v.Obj.Listed {
		return
	}
	vm.enroll(v.Obj)
	for _, child := range v.Obj.Children() {
		vm.enrollTree(object.Obj(child))
	}
}

func (vm *VM) unlink(o *object.Object) {
	if o.Prev != nil {
		o.Prev.Next = o.Next
	} else {
		vm.head = o.Next
	}
	if o.Next != nil {
		o.Next.Prev = o.Prev
	} else {
		vm.tail = o.Prev
	}
	o.Next, o.Prev = nil, nil
	o.Listed = false
}

// --- print formatting ---------------------------------------------------

func (vm *VM) format(v object.Value) string {
	switch {
	case v.IsNil():
		return "NIL"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsInt():
		return strconv.FormatInt(v.Int, 10)
	case v.IsObject():
		return vm.formatObject(v.Obj)
	}
	return "NIL"
}

func (vm *VM) formatObject(o *object.Object) string {
	switch o.Kind {
	case object.KindString:
		return o.Str
	case object.KindArray:
		return fmt.Sprintf("<object array: %d> at %p", len(o.Items), o)
	case object.KindFn:
		return fmt.Sprintf("<fn '%s': %d> at %p", o.Name, len(o.Params), o)
	case object.KindNativeFn:
		return fmt.Sprintf("<native fn '%s' %d>", o.NativeName, o.Arity)
	case object.KindMethod:
		// Not enumerated explicitly by the print-format table; shown as
		// its bound function's own descriptor since a METHOD is just a
		// FN paired with a receiver.
		return vm.formatObject(o.Fn)
	case object.KindClass:
		return fmt.Sprintf("<class '%s'> at %p", o.ClassName, o)
	case object.KindInstance:
		return fmt.Sprintf("<instance of '%s'> at %p", o.Class.ClassName, o)
	default:
		return "NIL"
	}
}

// --- natives.Host ------------------------------------------------------

// Stop implements natives.Host: `exit(n)` requests graceful
// termination with the given code.
func (vm *VM) Stop(code int) {
	vm.stopped = true
	vm.exitCode = code
}

// Panic implements natives.Host: `panic(msg)` requests termination
// reported as a RUNTIME_ERROR/PanicError with exit code 1.
func (vm *VM) Panic(message string) {
	vm.stopped = true
	vm.panicMessage = &message
}

// ReadLine implements natives.Host for `read_ln`.
func (vm *VM) ReadLine() (string, error) {
	line, err := vm.stdin.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}
