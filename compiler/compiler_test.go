package compiler_test

import (
	"testing"

	"nilan/bytecode"
	"nilan/compiler"
	"nilan/lexer"
	"nilan/parser"
)

// compileSource drives lexer -> parser -> compiler, mirroring the
// teacher's integration_test.go TestFullPipeline shape.
func compileSource(t *testing.T, source string) *compiler.Program {
	t.Helper()
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	p := parser.New(tokens)
	statements, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	program, err := compiler.Compile(statements)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return program
}

func assertInstructions(t *testing.T, got bytecode.Instructions, want bytecode.Instructions) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("instructions length = %d, want %d\ngot:  % x\nwant: % x", len(got), len(want), got, want)
	}
	for i, b := range want {
		if got[i] != b {
			t.Fatalf("byte %d = %d, want %d\ngot:  % x\nwant: % x", i, got[i], b, got, want)
		}
	}
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	program := compileSource(t, `print 2 + 3 * 4;`)

	var want bytecode.Instructions
	want = append(want, bytecode.Make(bytecode.ICONST, 0)...) // 2
	want = append(want, bytecode.Make(bytecode.ICONST, 1)...) // 3
	want = append(want, bytecode.Make(bytecode.ICONST, 2)...) // 4
	want = append(want, bytecode.Make(bytecode.MULT)...)
	want = append(want, bytecode.Make(bytecode.ADD)...)
	want = append(want, bytecode.Make(bytecode.PRT)...)
	want = append(want, bytecode.Make(bytecode.HLT)...)

	assertInstructions(t, program.MainChunk, want)
	if len(program.IntConsts) != 3 || program.IntConsts[0] != 2 || program.IntConsts[1] != 3 || program.IntConsts[2] != 4 {
		t.Fatalf("unexpected int constants: %v", program.IntConsts)
	}
}

func TestCompileVarDeclarationEmitsGlobalWrite(t *testing.T) {
	program := compileSource(t, `cl x = 5;`)
	// GWRITE leaves the assigned value on the stack — assignment is
	// itself an expression — so a bare `cl x = 5;` needs a trailing
	// POP to discard it as a statement.
	want := append(bytecode.Instructions{}, bytecode.Make(bytecode.ICONST, 0)...)
	want = append(want, bytecode.Make(bytecode.GWRITE, 0)...)
	want = append(want, bytecode.Make(bytecode.POP)...)
	want = append(want, bytecode.Make(bytecode.HLT)...)
	assertInstructions(t, program.MainChunk, want)
}

func TestCompileIfElseEmitsJumps(t *testing.T) {
	program := compileSource(t, `
		if (true) {
			print 1;
		} else {
			print 2;
		}
	`)
	disasm := bytecode.Disassemble(program.MainChunk)
	requireContains(t, disasm, "JIF")
	requireContains(t, disasm, "JMP")
}

func TestCompileWhileEmitsBackwardJump(t *testing.T) {
	program := compileSource(t, `
		cl i = 0;
		while (i < 3) {
			i = i + 1;
		}
	`)
	disasm := bytecode.Disassemble(program.MainChunk)
	requireContains(t, disasm, "JIT")
	requireContains(t, disasm, "JMP")
}

func TestCompileFunctionDeclarationRegistersEntity(t *testing.T) {
	program := compileSource(t, `
		proc add(a, b) {
			ret a + b;
		}
		print add(1, 2);
	`)
	if len(program.Entities) != compiler.NativeCount+1 {
		t.Fatalf("expected %d entities (natives + 1 fn), got %d", compiler.NativeCount+1, len(program.Entities))
	}
	fn := program.Entities[compiler.NativeCount]
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("unexpected function entity: name=%q arity=%d", fn.Name, len(fn.Params))
	}
}

func TestCompileClassDeclarationRegistersEntityWithInitAndMethods(t *testing.T) {
	program := compileSource(t, `
		klass Counter {
			init(start) {
				this.n = start;
			}
			proc bump(by) {
				this.n = this.n + by;
			}
		}
	`)
	class := program.Entities[compiler.NativeCount]
	if class.ClassName != "Counter" {
		t.Fatalf("expected class named Counter, got %q", class.ClassName)
	}
	if class.Init == nil {
		t.Fatalf("expected a compiled init chunk")
	}
	if _, ok := class.Methods["bump"]; !ok {
		t.Fatalf("expected a compiled bump method, got methods: %v", class.Methods)
	}
}

func TestCompileUndefinedNameIsError(t *testing.T) {
	lex := lexer.New(`print nope;`)
	tokens, err := lex.Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	p := parser.New(tokens)
	statements, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := compiler.Compile(statements); err == nil {
		t.Fatalf("expected a CompileError for an undefined name")
	}
}

func TestCompileBreakOutsideLoopIsError(t *testing.T) {
	lex := lexer.New(`break;`)
	tokens, err := lex.Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	p := parser.New(tokens)
	statements, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := compiler.Compile(statements); err == nil {
		t.Fatalf("expected a CompileError for break outside a loop")
	}
}

func TestCompileReturnOutsideFunctionIsError(t *testing.T) {
	lex := lexer.New(`ret 1;`)
	tokens, err := lex.Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	p := parser.New(tokens)
	statements, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := compiler.Compile(statements); err == nil {
		t.Fatalf("expected a CompileError for ret outside a function")
	}
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !contains(haystack, needle) {
		t.Fatalf("expected disassembly to contain %q:\n%s", needle, haystack)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
