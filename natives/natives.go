// Package natives implements the fixed, numbered table of built-in
// callables that `LOAD` addresses directly, ahead of the compiler's
// own function/class entities (see compiler.NativeCount). Host
// decouples a native's implementation from the vm package to avoid an
// import cycle; *vm.VM satisfies it.
package natives

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"nilan/bytecode"
	"nilan/object"
)

// Host is the subset of VM behavior a native needs: graceful stop
// (`exit`), the panic signal (`panic`), and blocking I/O (`read_ln`;
// `sleep`/`read_file_bytes` use the standard library directly).
type Host interface {
	Stop(code int)
	Panic(message string)
	ReadLine() (string, error)
}

// Func is the signature every native implements.
type Func func(host Host, args []object.Value) (object.Value, error)

// Spec names and fixes the arity of one entry in the native table.
// Synthetic entries (the last four) are FN objects built from
// primitive opcodes rather than a Go Func — see Build.
type Spec struct {
	Name  string
	Arity int
}

// Order is the fixed native numbering: the compiler's `LOAD` indices
// for these names are this slice's indices, immediately preceding the
// user-declared function/class entities.
var Order = []Spec{
	{"char_code", 1},
	{"code_char", 1},
	{"sub_str", 3},
	{"str_lower", 1},
	{"str_upper", 1},
	{"str_title", 1},
	{"cmp_str", 2},
	{"cmp_ic_str", 2},
	{"is_str_int", 1},
	{"ascii_to_int", 1},
	{"int_to_ascii", 1},
	{"time", 0},
	{"sleep", 1},
	{"read_ln", 0},
	{"read_file_bytes", 5},
	{"panic", 1},
	{"exit", 1},
	{"arr_len", 1},
	{"str_len", 1},
	{"str_char", 2},
	{"concat", 2},
}

// syntheticNames are the four natives implemented as ordinary FNs in
// bytecode using the corresponding primitive opcode, rather than as Go
// closures — they still occupy a slot in Order so the LOAD numbering
// stays contiguous, but Build emits bytecode for
// them instead of wiring a Func.
var syntheticNames = map[string]bytecode.Opcode{
	"arr_len":  bytecode.ARR_LEN,
	"str_len":  bytecode.STR_LEN,
	"str_char": bytecode.STR_ITM,
	"concat":   bytecode.CONCAT,
}

func argErr(name string, want, got int) error {
	return fmt.Errorf("native '%s' expects %d argument(s), got %d", name, want, got)
}

func typeErr(name string, argIndex int, want string) error {
	return fmt.Errorf("native '%s' argument %d must be %s", name, argIndex, want)
}

func wantString(name string, args []object.Value, i int) (string, error) {
	if !args[i].IsObject() || args[i].Obj == nil || args[i].Obj.Kind != object.KindString {
		return "", typeErr(name, i, "a string")
	}
	return args[i].Obj.Str, nil
}

func wantInt(name string, args []object.Value, i int) (int64, error) {
	if !args[i].IsInt() {
		return 0, typeErr(name, i, "an int")
	}
	return args[i].Int, nil
}

func strResult(s string) object.Value {
	return object.Obj(object.NewString(s, false))
}

// implementations holds the Go-backed natives (every Order entry not
// listed in syntheticNames).
var implementations = map[string]Func{
	"char_code": func(_ Host, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return object.Nil, argErr("char_code", 1, len(args))
		}
		s, err := wantString("char_code", args, 0)
		if err != nil {
			return object.Nil, err
		}
		if len(s) == 0 {
			return object.Nil, fmt.Errorf("native 'char_code' argument 0 must be non-empty")
		}
		return object.Int(int64(s[0])), nil
	},
	"code_char": func(_ Host, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return object.Nil, argErr("code_char", 1, len(args))
		}
		code, err := wantInt("code_char", args, 0)
		if err != nil {
			return object.Nil, err
		}
		return strResult(string(rune(byte(code)))), nil
	},
	"sub_str": func(_ Host, args []object.Value) (object.Value, error) {
		if len(args) != 3 {
			return object.Nil, argErr("sub_str", 3, len(args))
		}
		s, err := wantString("sub_str", args, 0)
		if err != nil {
			return object.Nil, err
		}
		start, err := wantInt("sub_str", args, 1)
		if err != nil {
			return object.Nil, err
		}
		end, err := wantInt("sub_str", args, 2)
		if err != nil {
			return object.Nil, err
		}
		if start < 0 || end > int64(len(s)) || start > end {
			return object.Nil, fmt.Errorf("native 'sub_str' range [%d,%d) out of bounds for length %d", start, end, len(s))
		}
		return strResult(s[start:end]), nil
	},
	"str_lower": func(_ Host, args []object.Value) (object.Value, error) {
		s, err := wantString("str_lower", args, 0)
		if err != nil {
			return object.Nil, err
		}
		return strResult(strings.ToLower(s)), nil
	},
	"str_upper": func(_ Host, args []object.Value) (object.Value, error) {
		s, err := wantString("str_upper", args, 0)
		if err != nil {
			return object.Nil, err
		}
		return strResult(strings.ToUpper(s)), nil
	},
	"str_title": func(_ Host, args []object.Value) (object.Value, error) {
		s, err := wantString("str_title", args, 0)
		if err != nil {
			return object.Nil, err
		}
		return strResult(strings.Title(strings.ToLower(s))), nil
	},
	"cmp_str": func(_ Host, args []object.Value) (object.Value, error) {
		a, err := wantString("cmp_str", args, 0)
		if err != nil {
			return object.Nil, err
		}
		b, err := wantString("cmp_str", args, 1)
		if err != nil {
			return object.Nil, err
		}
		return object.Int(int64(strings.Compare(a, b))), nil
	},
	"cmp_ic_str": func(_ Host, args []object.Value) (object.Value, error) {
		a, err := wantString("cmp_ic_str", args, 0)
		if err != nil {
			return object.Nil, err
		}
		b, err := wantString("cmp_ic_str", args, 1)
		if err != nil {
			return object.Nil, err
		}
		return object.Int(int64(strings.Compare(strings.ToLower(a), strings.ToLower(b)))), nil
	},
	"is_str_int": func(_ Host, args []object.Value) (object.Value, error) {
		s, err := wantString("is_str_int", args, 0)
		if err != nil {
			return object.Nil, err
		}
		_, convErr := strconv.ParseInt(s, 10, 64)
		return object.Bool(convErr == nil), nil
	},
	"ascii_to_int": func(_ Host, args []object.Value) (object.Value, error) {
		s, err := wantString("ascii_to_int", args, 0)
		if err != nil {
			return object.Nil, err
		}
		n, convErr := strconv.ParseInt(s, 10, 64)
		if convErr != nil {
			return object.Nil, fmt.Errorf("native 'ascii_to_int' argument is not a valid integer: %s", s)
		}
		return object.Int(n), nil
	},
	"int_to_ascii": func(_ Host, args []object.Value) (object.Value, error) {
		n, err := wantInt("int_to_ascii", args, 0)
		if err != nil {
			return object.Nil, err
		}
		return strResult(strconv.FormatInt(n, 10)), nil
	},
	"time": func(_ Host, args []object.Value) (object.Value, error) {
		if len(args) != 0 {
			return object.Nil, argErr("time", 0, len(args))
		}
		return object.Int(time.Now().Unix()), nil
	},
	"sleep": func(_ Host, args []object.Value) (object.Value, error) {
		ms, err := wantInt("sleep", args, 0)
		if err != nil {
			return object.Nil, err
		}
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
		return object.Nil, nil
	},
	"read_ln": func(host Host, args []object.Value) (object.Value, error) {
		if len(args) != 0 {
			return object.Nil, argErr("read_ln", 0, len(args))
		}
		line, err := host.ReadLine()
		if err != nil {
			return object.Nil, err
		}
		return strResult(line), nil
	},
	"read_file_bytes": func(_ Host, args []object.Value) (object.Value, error) {
		if len(args) != 5 {
			return object.Nil, argErr("read_file_bytes", 5, len(args))
		}
		path, err := wantString("read_file_bytes", args, 0)
		if err != nil {
			return object.Nil, err
		}
		offset, err := wantInt("read_file_bytes", args, 1)
		if err != nil {
			return object.Nil, err
		}
		length, err := wantInt("read_file_bytes", args, 2)
		if err != nil {
			return object.Nil, err
		}
		// args[3], args[4] are reserved (kept to preserve the fixed
		// 5-arity signature); this implementation ignores them.
		data, err := os.ReadFile(path)
		if err != nil {
			return object.Nil, fmt.Errorf("native 'read_file_bytes': %s", err)
		}
		if offset < 0 || length < 0 || offset+length > int64(len(data)) {
			return object.Nil, fmt.Errorf("native 'read_file_bytes' range [%d,%d) out of bounds for file of length %d", offset, offset+length, len(data))
		}
		arr := object.NewArray(int(length))
		for i := int64(0); i < length; i++ {
			arr.Items[i] = object.NewBox(object.Int(int64(data[offset+i])))
		}
		return object.Obj(arr), nil
	},
	"panic": func(host Host, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return object.Nil, argErr("panic", 1, len(args))
		}
		msg, err := wantString("panic", args, 0)
		if err != nil {
			return object.Nil, err
		}
		host.Panic(msg)
		return object.Nil, nil
	},
	"exit": func(host Host, args []object.Value) (object.Value, error) {
		code, err := wantInt("exit", args, 0)
		if err != nil {
			return object.Nil, err
		}
		host.Stop(int(code))
		return object.Nil, nil
	},
}

// Build constructs the native entity table in Order, ready to be
// appended to the front of the VM's combined entities vector. The 17
// Go-backed natives become KindNativeFn objects; the 4 synthetic ones
// (arr_len, str_len, str_char, concat) become KindFn objects whose
// bodies are a single primitive opcode followed by RET — exercised by
// the ordinary CALL/FN dispatch path like any user function.
func Build() []*object.Object {
	entities := make([]*object.Object, len(Order))
	for i, spec := range Order {
		if op, ok := syntheticNames[spec.Name]; ok {
			entities[i] = syntheticFn(spec, op)
			continue
		}
		fn, ok := implementations[spec.Name]
		if !ok {
			panic(fmt.Sprintf("natives: no implementation registered for %q", spec.Name))
		}
		entities[i] = object.NewNativeFn(spec.Name, spec.Arity, adapt(fn))
	}
	return entities
}

// adapt lets Build register a Host-typed Func where object.Object
// stores a plain interface{}-typed NativeFunc — the vm package passes
// itself (a Host) through untouched at call time.
func adapt(fn Func) object.NativeFunc {
	return func(host interface{}, args []object.Value) (object.Value, error) {
		return fn(host.(Host), args)
	}
}

// syntheticFn builds a parameter-per-operand FN whose body reads each
// local and applies a single primitive opcode.
func syntheticFn(spec Spec, op bytecode.Opcode) *object.Object {
	params := make([]string, spec.Arity)
	for i := range params {
		params[i] = fmt.Sprintf("p%d", i)
	}
	fn := object.NewFn(spec.Name, params)
	var ins bytecode.Instructions
	switch spec.Name {
	case "arr_len", "str_len":
		ins = append(ins, bytecode.Make(bytecode.LREAD, 0)...)
		ins = append(ins, bytecode.Make(op)...)
	case "str_char":
		// STR_ITM pops string, then index (spec's bytecode table) —
		// params are (s, idx), so push idx first and s last so s ends
		// up on top for the first pop.
		ins = append(ins, bytecode.Make(bytecode.LREAD, 1)...)
		ins = append(ins, bytecode.Make(bytecode.LREAD, 0)...)
		ins = append(ins, bytecode.Make(op)...)
	case "concat":
		ins = append(ins, bytecode.Make(bytecode.LREAD, 0)...)
		ins = append(ins, bytecode.Make(bytecode.LREAD, 1)...)
		ins = append(ins, bytecode.Make(op)...)
	}
	ins = append(ins, bytecode.Make(bytecode.RET)...)
	fn.Chunk = ins
	return fn
}
