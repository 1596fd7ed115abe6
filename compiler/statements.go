package compiler

import (
	"nilan/ast"
	"nilan/bytecode"
	"nilan/object"
	"nilan/token"
)

// compileBlockAs runs block's statements inside a freshly pushed scope
// of the given kind — IF/ELIF/ELSE/BLOCK all share this shape, only
// the scope kind differs.
func (c *Compiler) compileBlockAs(kind ScopeKind, block ast.BlockStmt) error {
	c.pushScope(kind)
	defer c.popScope()
	for _, s := range block.Statements {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) VisitBlockStmt(stmt ast.BlockStmt) any {
	if err := c.compileBlockAs(ScopeBlock, stmt); err != nil {
		return err
	}
	return nil
}

// VisitVarStmt declares name in the innermost scope and writes the
// initializer (or NIL) into it. GWRITE/LSET leave the written value on
// the stack, so a trailing POP discards it here.
func (c *Compiler) VisitVarStmt(stmt ast.VarStmt) any {
	if stmt.Initializer != nil {
		if err := c.compileExpr(stmt.Initializer); err != nil {
			return err
		}
	} else {
		c.emit(bytecode.NIL)
	}
	name := stmt.Name.Lexeme
	sym, err := c.declare(name, stmt.Tok.Line)
	if err != nil {
		return err
	}
	if sym.Global {
		c.emit(bytecode.GWRITE, c.strConst(name))
	} else {
		c.emit(bytecode.LSET, sym.Slot)
	}
	c.emit(bytecode.POP)
	return nil
}

// VisitIfStmt lowers if/elif/else: each branch emits its condition, a
// JIF to skip the body, the body, and a JMP to the construct's end;
// every JIF targets the start of the next check and every end-JMP is
// patched once the terminal offset is known.
func (c *Compiler) VisitIfStmt(stmt ast.IfStmt) any {
	var endJumps []int

	if err := c.compileExpr(stmt.Condition); err != nil {
		return err
	}
	jif := c.emitJump(bytecode.JIF)
	if err := c.compileBlockAs(ScopeIf, stmt.Then); err != nil {
		return err
	}
	endJumps = append(endJumps, c.emitJump(bytecode.JMP))
	c.patchJump(jif)

	for _, elif := range stmt.Elifs {
		if err := c.compileExpr(elif.Condition); err != nil {
			return err
		}
		jif := c.emitJump(bytecode.JIF)
		if err := c.compileBlockAs(ScopeElif, elif.Body); err != nil {
			return err
		}
		endJumps = append(endJumps, c.emitJump(bytecode.JMP))
		c.patchJump(jif)
	}

	if stmt.Else != nil {
		if err := c.compileBlockAs(ScopeElse, *stmt.Else); err != nil {
			return err
		}
	}

	for _, pos := range endJumps {
		c.patchJump(pos)
	}
	return nil
}

// VisitWhileStmt lowers `while` as an unconditional JMP to the
// condition, the body, the condition, then a JIT back to the body's
// first instruction. continue targets the condition
// re-evaluation; break targets the first instruction past the
// back-edge.
func (c *Compiler) VisitWhileStmt(stmt ast.WhileStmt) any {
	jmpToCond := c.emitJump(bytecode.JMP)
	bodyStart := len(*c.chunk())

	c.pushScope(ScopeWhile)
	for _, s := range stmt.Body.Statements {
		if err := c.compileStmt(s); err != nil {
			c.popScope()
			return err
		}
	}
	loop := c.popScope()

	c.patchJump(jmpToCond)
	condStart := len(*c.chunk())
	if err := c.compileExpr(stmt.Condition); err != nil {
		return err
	}
	c.emitBackJump(bytecode.JIT, bodyStart)
	loopEnd := len(*c.chunk())

	for _, pos := range loop.loop.continues {
		c.patchJumpTo(pos, condStart)
	}
	for _, pos := range loop.loop.breaks {
		c.patchJumpTo(pos, loopEnd)
	}
	return nil
}

func (c *Compiler) VisitBreakStmt(stmt ast.BreakStmt) any {
	loop := c.findLoopScope()
	if loop == nil {
		return CompileError{Line: stmt.Tok.Line, Message: "'break' used outside a loop"}
	}
	pos := c.emitJump(bytecode.JMP)
	loop.loop.breaks = append(loop.loop.breaks, pos)
	return nil
}

func (c *Compiler) VisitContinueStmt(stmt ast.ContinueStmt) any {
	loop := c.findLoopScope()
	if loop == nil {
		return CompileError{Line: stmt.Tok.Line, Message: "'continue' used outside a loop"}
	}
	pos := c.emitJump(bytecode.JMP)
	loop.loop.continues = append(loop.loop.continues, pos)
	return nil
}

func (c *Compiler) VisitPrintStmt(stmt ast.PrintStmt) any {
	if err := c.compileExpr(stmt.Value); err != nil {
		return err
	}
	c.emit(bytecode.PRT)
	return nil
}

func (c *Compiler) VisitReturnStmt(stmt ast.ReturnStmt) any {
	fn := c.findFuncScope()
	if fn == nil {
		return CompileError{Line: stmt.Tok.Line, Message: "'ret' used outside a function"}
	}
	if fn.kind == ScopeConstructor {
		return CompileError{Line: stmt.Tok.Line, Message: "'ret' is not allowed inside a constructor"}
	}
	if stmt.Value != nil {
		if err := c.compileExpr(stmt.Value); err != nil {
			return err
		}
	} else {
		c.emit(bytecode.NIL)
	}
	c.emit(bytecode.RET)
	return nil
}

func (c *Compiler) VisitExpressionStmt(stmt ast.ExpressionStmt) any {
	if err := c.compileExpr(stmt.Expression); err != nil {
		return err
	}
	c.emit(bytecode.POP)
	return nil
}

// endsInReturn reports whether the last statement of a body is
// literally a ReturnStmt — a shallow, statement-list-level check, not
// a reachability analysis.
func endsInReturn(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	_, ok := stmts[len(stmts)-1].(ast.ReturnStmt)
	return ok
}

// compileFunctionBody opens a scope of kind, declares params as
// locals in source order (slot 0 = first param), compiles body, and
// appends the closing instructions: `THIS; RET` unconditionally for a
// constructor, `NIL; RET` for an ordinary function whose last
// statement isn't already `ret`.
func (c *Compiler) compileFunctionBody(params []token.Token, body ast.BlockStmt, kind ScopeKind) (bytecode.Instructions, error) {
	c.pushScope(kind)
	for _, p := range params {
		if _, err := c.declare(p.Lexeme, p.Line); err != nil {
			c.popScope()
			return nil, err
		}
	}
	for _, s := range body.Statements {
		if err := c.compileStmt(s); err != nil {
			c.popScope()
			return nil, err
		}
	}
	if kind == ScopeConstructor {
		c.emit(bytecode.THIS)
		c.emit(bytecode.RET)
	} else if !endsInReturn(body.Statements) {
		c.emit(bytecode.NIL)
		c.emit(bytecode.RET)
	}
	scope := c.popScope()
	return *scope.instructions, nil
}

// declareEntity registers name in the combined entity table (spec
// §4.3), rejecting redeclaration and shadowing of a native name.
func (c *Compiler) declareEntity(name string, obj *object.Object, line int) error {
	if _, exists := c.entityIndex[name]; exists {
		return CompileError{Line: line, Message: "'" + name + "' is already declared"}
	}
	if _, isNative := c.nativeIndex(name); isNative {
		return CompileError{Line: line, Message: "'" + name + "' shadows a built-in name"}
	}
	c.entityIndex[name] = len(c.entities)
	c.entities = append(c.entities, obj)
	return nil
}

func paramNames(params []token.Token) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Lexeme
	}
	return names
}

// VisitFuncStmt handles a top-level `proc` declaration. Class
// methods/init are compiled directly by VisitClassStmt instead, since
// they need the enclosing CLASS scope's class-bound pre-declarations.
func (c *Compiler) VisitFuncStmt(stmt ast.FuncStmt) any {
	if c.top().kind != ScopeGlobal {
		return CompileError{Line: stmt.Tok.Line, Message: "'proc' declarations are only allowed at the top level"}
	}
	name := stmt.Name.Lexeme
	fn := object.NewFn(name, paramNames(stmt.Params))
	if err := c.declareEntity(name, fn, stmt.Tok.Line); err != nil {
		return err
	}
	chunk, err := c.compileFunctionBody(stmt.Params, stmt.Body, ScopeFn)
	if err != nil {
		return err
	}
	fn.Chunk = chunk
	return nil
}

// VisitClassStmt opens a CLASS scope, pre-declares every method/init
// name as class-bound (so methods may call each other by bare name),
// then compiles the constructor (if any) inside a CONSTRUCTOR
// sub-scope and each method inside its own FN sub-scope.
func (c *Compiler) VisitClassStmt(stmt ast.ClassStmt) any {
	if c.top().kind != ScopeGlobal {
		return CompileError{Line: stmt.Tok.Line, Message: "'klass' declarations are only allowed at the top level"}
	}
	name := stmt.Name.Lexeme
	class := object.NewClass(name, nil)
	if err := c.declareEntity(name, class, stmt.Tok.Line); err != nil {
		return err
	}

	c.pushScope(ScopeClass)
	classScope := c.top()
	for _, m := range stmt.Methods {
		classScope.symbols[m.Name.Lexeme] = &Symbol{Name: m.Name.Lexeme, ClassBound: true}
	}
	if stmt.Init != nil {
		classScope.symbols[stmt.Init.Name.Lexeme] = &Symbol{Name: stmt.Init.Name.Lexeme, ClassBound: true}
	}

	if stmt.Init != nil {
		initFn := object.NewFn(stmt.Init.Name.Lexeme, paramNames(stmt.Init.Params))
		chunk, err := c.compileFunctionBody(stmt.Init.Params, stmt.Init.Body, ScopeConstructor)
		if err != nil {
			c.popScope()
			return err
		}
		initFn.Chunk = chunk
		class.Init = initFn
	}

	for _, m := range stmt.Methods {
		mFn := object.NewFn(m.Name.Lexeme, paramNames(m.Params))
		chunk, err := c.compileFunctionBody(m.Params, m.Body, ScopeFn)
		if err != nil {
			c.popScope()
			return err
		}
		mFn.Chunk = chunk
		class.Methods[m.Name.Lexeme] = mFn
	}

	c.popScope()
	return nil
}
