package parser_test

import (
	"testing"

	"nilan/ast"
	"nilan/lexer"
	"nilan/parser"
)

func parse(t *testing.T, source string) []ast.Stmt {
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
	return statements
}

func TestParseVarDeclaration(t *testing.T) {
	stmts := parse(t, `cl x = 1 + 2;`)
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	v, ok := stmts[0].(ast.VarStmt)
	if !ok {
		t.Fatalf("expected VarStmt, got %T", stmts[0])
	}
	if v.Name.Lexeme != "x" {
		t.Fatalf("expected name 'x', got %q", v.Name.Lexeme)
	}
	if _, ok := v.Initializer.(ast.Binary); !ok {
		t.Fatalf("expected Binary initializer, got %T", v.Initializer)
	}
}

func TestParseVarDeclarationWithoutInitializer(t *testing.T) {
	stmts := parse(t, `cl x;`)
	v := stmts[0].(ast.VarStmt)
	if v.Initializer != nil {
		t.Fatalf("expected nil initializer, got %v", v.Initializer)
	}
}

func TestParseIfElifElse(t *testing.T) {
	stmts := parse(t, `
		if (x < 1) {
			print "a";
		} elif (x < 2) {
			print "b";
		} else {
			print "c";
		}
	`)
	ifStmt, ok := stmts[0].(ast.IfStmt)
	if !ok {
		t.Fatalf("expected IfStmt, got %T", stmts[0])
	}
	if len(ifStmt.Elifs) != 1 {
		t.Fatalf("expected 1 elif clause, got %d", len(ifStmt.Elifs))
	}
	if ifStmt.Else == nil {
		t.Fatalf("expected an else clause")
	}
}

func TestParseWhileWithBreakAndContinue(t *testing.T) {
	stmts := parse(t, `
		while (true) {
			break;
			continue;
		}
	`)
	w, ok := stmts[0].(ast.WhileStmt)
	if !ok {
		t.Fatalf("expected WhileStmt, got %T", stmts[0])
	}
	if len(w.Body.Statements) != 2 {
		t.Fatalf("expected 2 body statements, got %d", len(w.Body.Statements))
	}
	if _, ok := w.Body.Statements[0].(ast.BreakStmt); !ok {
		t.Fatalf("expected BreakStmt first, got %T", w.Body.Statements[0])
	}
	if _, ok := w.Body.Statements[1].(ast.ContinueStmt); !ok {
		t.Fatalf("expected ContinueStmt second, got %T", w.Body.Statements[1])
	}
}

func TestParseFunctionDeclaration(t *testing.T) {
	stmts := parse(t, `
		proc add(a, b) {
			ret a + b;
		}
	`)
	fn, ok := stmts[0].(ast.FuncStmt)
	if !ok {
		t.Fatalf("expected FuncStmt, got %T", stmts[0])
	}
	if fn.Name.Lexeme != "add" || len(fn.Params) != 2 {
		t.Fatalf("unexpected function shape: %+v", fn)
	}
	if fn.IsInit {
		t.Fatalf("a top-level proc must not be marked IsInit")
	}
}

func TestParseClassWithInitAndMethods(t *testing.T) {
	stmts := parse(t, `
		klass Counter {
			init(start) {
				this.n = start;
			}
			proc bump(by) {
				ret this.n;
			}
		}
	`)
	cls, ok := stmts[0].(ast.ClassStmt)
	if !ok {
		t.Fatalf("expected ClassStmt, got %T", stmts[0])
	}
	if cls.Init == nil {
		t.Fatalf("expected an init constructor")
	}
	if !cls.Init.IsInit {
		t.Fatalf("Init.IsInit must be true")
	}
	if len(cls.Methods) != 1 || cls.Methods[0].Name.Lexeme != "bump" {
		t.Fatalf("unexpected methods: %+v", cls.Methods)
	}
}

func TestParseClassRejectsSecondInit(t *testing.T) {
	lex := lexer.New(`
		klass Two {
			init() {}
			init() {}
		}
	`)
	tokens, err := lex.Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	p := parser.New(tokens)
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected a parse error for a second init")
	}
}

func TestParsePostfixChain(t *testing.T) {
	stmts := parse(t, `print a.b[0](1, 2);`)
	printStmt := stmts[0].(ast.PrintStmt)
	call, ok := printStmt.Value.(ast.Call)
	if !ok {
		t.Fatalf("expected outermost Call, got %T", printStmt.Value)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 call args, got %d", len(call.Args))
	}
	idx, ok := call.Callee.(ast.Index)
	if !ok {
		t.Fatalf("expected Index as callee, got %T", call.Callee)
	}
	if _, ok := idx.Array.(ast.Member); !ok {
		t.Fatalf("expected Member as the indexed expression, got %T", idx.Array)
	}
}

func TestParseArrayLiteralWithExplicitLength(t *testing.T) {
	stmts := parse(t, `cl xs = [1, 2, 3]: 5;`)
	v := stmts[0].(ast.VarStmt)
	arr, ok := v.Initializer.(ast.ArrayLiteral)
	if !ok {
		t.Fatalf("expected ArrayLiteral, got %T", v.Initializer)
	}
	if len(arr.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(arr.Items))
	}
	if arr.Length == nil {
		t.Fatalf("expected an explicit length expression")
	}
}

func TestParseIsAndFromTests(t *testing.T) {
	stmts := parse(t, `
		print x is int;
		print x from Animal;
	`)
	if _, ok := stmts[0].(ast.PrintStmt).Value.(ast.IsTest); !ok {
		t.Fatalf("expected IsTest, got %T", stmts[0].(ast.PrintStmt).Value)
	}
	if _, ok := stmts[1].(ast.PrintStmt).Value.(ast.FromTest); !ok {
		t.Fatalf("expected FromTest, got %T", stmts[1].(ast.PrintStmt).Value)
	}
}

func TestParseAssignmentTargets(t *testing.T) {
	stmts := parse(t, `
		x = 1;
		a.b = 2;
		xs[0] = 3;
	`)
	for i, want := range []any{ast.Identifier{}, ast.Member{}, ast.Index{}} {
		assign, ok := stmts[i].(ast.ExpressionStmt).Expression.(ast.Assign)
		if !ok {
			t.Fatalf("statement %d: expected Assign, got %T", i, stmts[i])
		}
		switch want.(type) {
		case ast.Identifier:
			if _, ok := assign.Target.(ast.Identifier); !ok {
				t.Fatalf("statement %d: expected Identifier target, got %T", i, assign.Target)
			}
		case ast.Member:
			if _, ok := assign.Target.(ast.Member); !ok {
				t.Fatalf("statement %d: expected Member target, got %T", i, assign.Target)
			}
		case ast.Index:
			if _, ok := assign.Target.(ast.Index); !ok {
				t.Fatalf("statement %d: expected Index target, got %T", i, assign.Target)
			}
		}
	}
}

func TestParseInvalidAssignmentTargetIsError(t *testing.T) {
	lex := lexer.New(`1 + 1 = 2;`)
	tokens, err := lex.Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	p := parser.New(tokens)
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected a parse error for an invalid assignment target")
	}
}
