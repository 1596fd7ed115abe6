// Package bytecode defines nilan's instruction encoding: the opcode
// set, little-endian multi-byte operands, and a disassembler. Shared
// by the compiler (which emits instructions) and the VM (which
// decodes them).
package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Opcode is a single bytecode instruction tag.
type Opcode byte

// Instructions is a flat byte sequence: opcode, operand bytes, opcode,
// operand bytes, ...
type Instructions []byte

const (
	NIL Opcode = iota
	BCONST
	ICONST
	SCONST
	ARR
	ARR_LEN
	ARR_ITM
	ARR_SITM
	LREAD
	LSET
	GWRITE
	GREAD
	LOAD
	ADD
	SUB
	MULT
	DIV
	MOD
	LT
	LE
	GT
	GE
	EQ
	NE
	OR
	AND
	NOT
	NNOT
	SLEFT
	SRIGHT
	BOR
	BXOR
	BAND
	BNOT
	JMP
	JIT
	JIF
	CONCAT
	STR_LEN
	STR_ITM
	CLASS
	THIS
	SET_PROPERTY
	GET_PROPERTY
	IS
	FROM
	PRT
	POP
	CALL
	GBG
	RET
	HLT
)

// widths: 0 for opcodes with no operand, 1 for u8 operands, 4
// for i32 operands (always little-endian).
var widths = map[Opcode][]int{
	NIL:          {},
	BCONST:       {1},
	ICONST:       {4},
	SCONST:       {4},
	ARR:          {1},
	ARR_LEN:      {},
	ARR_ITM:      {},
	ARR_SITM:     {},
	LREAD:        {1},
	LSET:         {1},
	GWRITE:       {4},
	GREAD:        {4},
	LOAD:         {4},
	ADD:          {},
	SUB:          {},
	MULT:         {},
	DIV:          {},
	MOD:          {},
	LT:           {},
	LE:           {},
	GT:           {},
	GE:           {},
	EQ:           {},
	NE:           {},
	OR:           {},
	AND:          {},
	NOT:          {},
	NNOT:         {},
	SLEFT:        {},
	SRIGHT:       {},
	BOR:          {},
	BXOR:         {},
	BAND:         {},
	BNOT:         {},
	JMP:          {4},
	JIT:          {4},
	JIF:          {4},
	CONCAT:       {},
	STR_LEN:      {},
	STR_ITM:      {},
	CLASS:        {4},
	THIS:         {},
	SET_PROPERTY: {4},
	GET_PROPERTY: {4},
	IS:           {1},
	FROM:         {4},
	PRT:          {},
	POP:          {},
	CALL:         {1},
	GBG:          {},
	RET:          {},
	HLT:          {},
}

var names = map[Opcode]string{
	NIL: "NIL", BCONST: "BCONST", ICONST: "ICONST", SCONST: "SCONST",
	ARR: "ARR", ARR_LEN: "ARR_LEN", ARR_ITM: "ARR_ITM", ARR_SITM: "ARR_SITM",
	LREAD: "LREAD", LSET: "LSET", GWRITE: "GWRITE", GREAD: "GREAD", LOAD: "LOAD",
	ADD: "ADD", SUB: "SUB", MULT: "MULT", DIV: "DIV", MOD: "MOD",
	LT: "LT", LE: "LE", GT: "GT", GE: "GE", EQ: "EQ", NE: "NE",
	OR: "OR", AND: "AND", NOT: "NOT", NNOT: "NNOT",
	SLEFT: "SLEFT", SRIGHT: "SRIGHT", BOR: "BOR", BXOR: "BXOR", BAND: "BAND", BNOT: "BNOT",
	JMP: "JMP", JIT: "JIT", JIF: "JIF",
	CONCAT: "CONCAT", STR_LEN: "STR_LEN", STR_ITM: "STR_ITM",
	CLASS: "CLASS", THIS: "THIS", SET_PROPERTY: "SET_PROPERTY", GET_PROPERTY: "GET_PROPERTY",
	IS: "IS", FROM: "FROM", PRT: "PRT", POP: "POP", CALL: "CALL",
	GBG: "GBG", RET: "RET", HLT: "HLT",
}

func (op Opcode) String() string {
	if name, ok := names[op]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(%d)", byte(op))
}

// Widths returns the operand byte widths for op, or an error if op is
// undefined.
func Widths(op Opcode) ([]int, error) {
	w, ok := widths[op]
	if !ok {
		return nil, fmt.Errorf("bytecode: undefined opcode %d", byte(op))
	}
	return w, nil
}

// Make encodes a single instruction: opcode byte followed by each
// operand, little-endian, sized per its definition. Signed operands
// (jump deltas, the i32 forms) are passed as plain ints and
// reinterpreted as uint32 — two's-complement makes the bit pattern
// identical either way.
func Make(op Opcode, operands ...int) Instructions {
	w, err := Widths(op)
	if err != nil {
		return Instructions{}
	}
	length := 1
	for _, width := range w {
		length += width
	}
	instruction := make(Instructions, length)
	instruction[0] = byte(op)
	offset := 1
	for i, operand := range operands {
		width := w[i]
		switch width {
		case 1:
			instruction[offset] = byte(operand)
		case 4:
			binary.LittleEndian.PutUint32(instruction[offset:], uint32(int32(operand)))
		}
		offset += width
	}
	return instruction
}

// ReadUint8 reads a u8 operand at offset.
func ReadUint8(ins Instructions, offset int) uint8 {
	return ins[offset]
}

// ReadInt32 reads a signed 32-bit little-endian operand at offset.
func ReadInt32(ins Instructions, offset int) int32 {
	return int32(binary.LittleEndian.Uint32(ins[offset:]))
}

// PatchInt32 overwrites the i32 operand at offset — used to back-patch
// forward jumps once the target is known.
func PatchInt32(ins Instructions, offset int, value int32) {
	binary.LittleEndian.PutUint32(ins[offset:], uint32(value))
}

// Disassemble renders a function's instructions as a human-readable
// listing, one line per instruction, covering the full opcode table.
func Disassemble(ins Instructions) string {
	out := ""
	i := 0
	for i < len(ins) {
		op := Opcode(ins[i])
		w, err := Widths(op)
		if err != nil {
			out += fmt.Sprintf("%04d ERROR: %s\n", i, err)
			i++
			continue
		}
		out += fmt.Sprintf("%04d %s", i, op)
		offset := i + 1
		for _, width := range w {
			switch width {
			case 1:
				out += fmt.Sprintf(" %d", ReadUint8(ins, offset))
			case 4:
				out += fmt.Sprintf(" %d", ReadInt32(ins, offset))
			}
			offset += width
		}
		out += "\n"
		i = offset
	}
	return out
}
