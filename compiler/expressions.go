package compiler

import (
	"nilan/ast"
	"nilan/bytecode"
	"nilan/token"
)

// typeTag maps the keyword following `is` to the fixed IS operand
// encoding: 0 nil, 1 bool, 2 int, 3 str, 4 arr, 5 callable (proc),
// 6 class (klass), 7 instance.
func typeTag(tt token.TokenType) (int, bool) {
	switch tt {
	case token.NIL:
		return 0, true
	case token.BOOL:
		return 1, true
	case token.INT_KW:
		return 2, true
	case token.STR_KW:
		return 3, true
	case token.ARR_KW:
		return 4, true
	case token.PROC:
		return 5, true
	case token.KLASS:
		return 6, true
	case token.INSTANCE:
		return 7, true
	}
	return 0, false
}

func (c *Compiler) VisitNilLiteral(expr ast.NilLiteral) any {
	c.emit(bytecode.NIL)
	return nil
}

func (c *Compiler) VisitBoolLiteral(expr ast.BoolLiteral) any {
	v := 0
	if expr.Value {
		v = 1
	}
	c.emit(bytecode.BCONST, v)
	return nil
}

func (c *Compiler) VisitIntLiteral(expr ast.IntLiteral) any {
	c.emit(bytecode.ICONST, c.intConst(expr.Value))
	return nil
}

func (c *Compiler) VisitStrLiteral(expr ast.StrLiteral) any {
	c.emit(bytecode.SCONST, c.strConst(expr.Value))
	return nil
}

func (c *Compiler) VisitIdentifier(expr ast.Identifier) any {
	name := expr.Tok.Lexeme
	if idx, ok := c.nativeIndex(name); ok {
		c.emit(bytecode.LOAD, idx)
		return nil
	}
	if idx, ok := c.entityIndex[name]; ok {
		c.emit(bytecode.LOAD, NativeCount+idx)
		return nil
	}
	sym := c.resolve(name)
	if sym == nil {
		return CompileError{Line: expr.Tok.Line, Message: "undefined name '" + name + "'"}
	}
	switch {
	case sym.ClassBound:
		c.emit(bytecode.THIS)
		c.emit(bytecode.GET_PROPERTY, c.strConst(name))
	case sym.Global:
		c.emit(bytecode.GREAD, c.strConst(name))
	default:
		c.emit(bytecode.LREAD, sym.Slot)
	}
	return nil
}

func (c *Compiler) VisitThis(expr ast.This) any {
	if c.findClassScope() == nil {
		return CompileError{Line: expr.Tok.Line, Message: "'this' used outside a class scope"}
	}
	c.emit(bytecode.THIS)
	return nil
}

func (c *Compiler) VisitGrouping(expr ast.Grouping) any {
	if err := c.compileExpr(expr.Expression); err != nil {
		return err
	}
	return nil
}

func (c *Compiler) VisitUnary(expr ast.Unary) any {
	if err := c.compileExpr(expr.Right); err != nil {
		return err
	}
	switch expr.Operator.TokenType {
	case token.SUB:
		c.emit(bytecode.NNOT)
	case token.BANG:
		c.emit(bytecode.NOT)
	}
	return nil
}

func (c *Compiler) VisitBinary(expr ast.Binary) any {
	if err := c.compileExpr(expr.Left); err != nil {
		return err
	}
	if err := c.compileExpr(expr.Right); err != nil {
		return err
	}
	switch expr.Operator.TokenType {
	case token.ADD:
		c.emit(bytecode.ADD)
	case token.SUB:
		c.emit(bytecode.SUB)
	case token.MULT:
		c.emit(bytecode.MULT)
	case token.DIV:
		c.emit(bytecode.DIV)
	case token.MOD:
		c.emit(bytecode.MOD)
	}
	return nil
}

func (c *Compiler) VisitComparison(expr ast.Comparison) any {
	if err := c.compileExpr(expr.Left); err != nil {
		return err
	}
	if err := c.compileExpr(expr.Right); err != nil {
		return err
	}
	switch expr.Operator.TokenType {
	case token.LESS:
		c.emit(bytecode.LT)
	case token.LESS_EQUAL:
		c.emit(bytecode.LE)
	case token.LARGER:
		c.emit(bytecode.GT)
	case token.LARGER_EQUAL:
		c.emit(bytecode.GE)
	case token.EQUAL_EQUAL:
		c.emit(bytecode.EQ)
	case token.NOT_EQUAL:
		c.emit(bytecode.NE)
	}
	return nil
}

// VisitLogical compiles both operands unconditionally — OR/AND are
// strict, not short-circuiting.
func (c *Compiler) VisitLogical(expr ast.Logical) any {
	if err := c.compileExpr(expr.Left); err != nil {
		return err
	}
	if err := c.compileExpr(expr.Right); err != nil {
		return err
	}
	switch expr.Operator.TokenType {
	case token.OR:
		c.emit(bytecode.OR)
	case token.AND:
		c.emit(bytecode.AND)
	}
	return nil
}

func (c *Compiler) VisitIsTest(expr ast.IsTest) any {
	if err := c.compileExpr(expr.Value); err != nil {
		return err
	}
	tag, ok := typeTag(expr.TypeTag.TokenType)
	if !ok {
		return CompileError{Line: expr.Tok.Line, Message: "invalid type name after 'is'"}
	}
	c.emit(bytecode.IS, tag)
	return nil
}

func (c *Compiler) VisitFromTest(expr ast.FromTest) any {
	if err := c.compileExpr(expr.Value); err != nil {
		return err
	}
	c.emit(bytecode.FROM, c.strConst(expr.ClassName.Lexeme))
	return nil
}

// VisitArrayLiteral pushes items in source order, then the length
// (explicit or, when omitted, the item count) on top, matching the
// ARR opcode's "pop length, then length items" stack contract.
func (c *Compiler) VisitArrayLiteral(expr ast.ArrayLiteral) any {
	isEmpty := 0
	if expr.HasItems {
		for _, item := range expr.Items {
			if err := c.compileExpr(item); err != nil {
				return err
			}
		}
	} else {
		isEmpty = 1
	}
	if expr.Length != nil {
		if err := c.compileExpr(expr.Length); err != nil {
			return err
		}
	} else {
		c.emit(bytecode.ICONST, c.intConst(int64(len(expr.Items))))
	}
	c.emit(bytecode.ARR, isEmpty)
	return nil
}

func (c *Compiler) VisitIndex(expr ast.Index) any {
	if err := c.compileExpr(expr.Array); err != nil {
		return err
	}
	if err := c.compileExpr(expr.Idx); err != nil {
		return err
	}
	c.emit(bytecode.ARR_ITM)
	return nil
}

// VisitMember compiles a `.name` read: the object expression, then
// GET_PROPERTY — unlike assignment, reads are not affected by the
// THIS;SET_PROPERTY bug (§9), since that bug is specific to the
// AccessExpr assignment path in the source.
func (c *Compiler) VisitMember(expr ast.Member) any {
	if err := c.compileExpr(expr.Object); err != nil {
		return err
	}
	c.emit(bytecode.GET_PROPERTY, c.strConst(expr.Name.Lexeme))
	return nil
}

func (c *Compiler) VisitCall(expr ast.Call) any {
	if err := c.compileExpr(expr.Callee); err != nil {
		return err
	}
	// Arguments are pushed in reverse source order so CALL's top-down
	// pop lands the first parameter in slot 0.
	for i := len(expr.Args) - 1; i >= 0; i-- {
		if err := c.compileExpr(expr.Args[i]); err != nil {
			return err
		}
	}
	c.emit(bytecode.CALL, len(expr.Args))
	return nil
}

// VisitAssign implements the four assignment shapes. Member-target
// assignment always emits rhs, THIS, SET_PROPERTY — even when the
// left side is not literally `this` — rather than compiling the
// actual object sub-expression; `obj.name = v` for any obj other than
// `this` silently writes to `this` instead.
func (c *Compiler) VisitAssign(expr ast.Assign) any {
	switch target := expr.Target.(type) {
	case ast.Index:
		if err := c.compileExpr(expr.Value); err != nil {
			return err
		}
		if err := c.compileExpr(target.Array); err != nil {
			return err
		}
		if err := c.compileExpr(target.Idx); err != nil {
			return err
		}
		c.emit(bytecode.ARR_SITM)
		return nil

	case ast.Member:
		if err := c.compileExpr(expr.Value); err != nil {
			return err
		}
		if _, isThis := target.Object.(ast.This); isThis {
			classScope := c.findClassScope()
			if classScope == nil {
				return CompileError{Line: expr.Tok.Line, Message: "'this' used outside a class scope"}
			}
			if _, declared := classScope.symbols[target.Name.Lexeme]; !declared {
				classScope.symbols[target.Name.Lexeme] = &Symbol{Name: target.Name.Lexeme, ClassBound: true}
			}
		}
		c.emit(bytecode.THIS)
		c.emit(bytecode.SET_PROPERTY, c.strConst(target.Name.Lexeme))
		return nil

	case ast.Identifier:
		if err := c.compileExpr(expr.Value); err != nil {
			return err
		}
		name := target.Tok.Lexeme
		sym := c.resolve(name)
		if sym == nil {
			return CompileError{Line: expr.Tok.Line, Message: "undefined name '" + name + "'"}
		}
		switch {
		case sym.ClassBound:
			c.emit(bytecode.THIS)
			c.emit(bytecode.SET_PROPERTY, c.strConst(name))
		case sym.Global:
			c.emit(bytecode.GWRITE, c.strConst(name))
		default:
			c.emit(bytecode.LSET, sym.Slot)
		}
		return nil
	}
	return CompileError{Line: expr.Tok.Line, Message: "invalid assignment target"}
}
