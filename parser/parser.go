// Package parser implements nilan's recursive-descent parser: tokens
// in, an []ast.Stmt program out, covering the full statement and
// expression grammar (declarations, control flow, classes, arrays,
// postfix member/index/call chains).
package parser

import (
	"fmt"

	"nilan/ast"
	"nilan/token"
)

var comparisonTokenTypes = []token.TokenType{
	token.LESS,
	token.LESS_EQUAL,
	token.LARGER,
	token.LARGER_EQUAL,
	token.EQUAL_EQUAL,
	token.NOT_EQUAL,
}

var additiveTokenTypes = []token.TokenType{
	token.ADD,
	token.SUB,
}

var multiplicativeTokenTypes = []token.TokenType{
	token.MULT,
	token.DIV,
	token.MOD,
}

// typeTagTokenTypes are the keywords legal as the right-hand operand
// of `is`: nil, bool, int, str, arr, callable [proc], class [klass],
// instance.
var typeTagTokenTypes = []token.TokenType{
	token.NIL,
	token.BOOL,
	token.INT_KW,
	token.STR_KW,
	token.ARR_KW,
	token.PROC,
	token.KLASS,
	token.INSTANCE,
}

// Parser consumes a token stream produced by the lexer and builds an
// AST. Position always refers to the next unconsumed token.
type Parser struct {
	tokens   []token.Token
	position int
}

// New creates a Parser over the given token stream.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.position]
}

func (p *Parser) previous() token.Token {
	return p.tokens[p.position-1]
}

func (p *Parser) isFinished() bool {
	return p.peek().TokenType == token.EOF
}

func (p *Parser) advance() token.Token {
	if !p.isFinished() {
		p.position++
	}
	return p.previous()
}

func (p *Parser) check(tt token.TokenType) bool {
	if p.isFinished() {
		return false
	}
	return p.peek().TokenType == tt
}

func (p *Parser) isMatch(types []token.TokenType) bool {
	for _, tt := range types {
		if p.check(tt) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(tt token.TokenType, message string) (token.Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	tok := p.peek()
	return token.Token{}, SyntaxError{Line: tok.Line, Message: fmt.Sprintf("%s (got %q)", message, tok.Lexeme)}
}

// Parse parses the entire token stream into a program — a sequence
// of top-level declarations — stopping at the first SyntaxError, per
// §7's terminal error policy.
func (p *Parser) Parse() ([]ast.Stmt, error) {
	var statements []ast.Stmt
	for !p.isFinished() {
		stmt, err := p.declaration()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// declaration parses a var/function/class declaration, or falls
// through to a plain statement. Placement rules (no nested function
// declarations, no non-global classes) are enforced by the compiler,
// not here; classDeclaration rejects a second `init`.
func (p *Parser) declaration() (ast.Stmt, error) {
	switch {
	case p.isMatch([]token.TokenType{token.VAR}):
		return p.varDeclaration()
	case p.isMatch([]token.TokenType{token.PROC}):
		fn, err := p.function(false)
		if err != nil {
			return nil, err
		}
		return fn, nil
	case p.isMatch([]token.TokenType{token.KLASS}):
		return p.classDeclaration()
	default:
		return p.statement()
	}
}

func (p *Parser) varDeclaration() (ast.Stmt, error) {
	tok := p.previous()
	name, err := p.consume(token.IDENTIFIER, "expected variable name")
	if err != nil {
		return nil, err
	}
	var init ast.Expression
	if p.isMatch([]token.TokenType{token.ASSIGN}) {
		init, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.SEMICOLON, "expected ';' after variable declaration"); err != nil {
		return nil, err
	}
	return ast.VarStmt{Tok: tok, Name: name, Initializer: init}, nil
}

// function parses `IDENT(params...) { body }`. isInit is set by the
// caller when parsing a class's `init` constructor, whose keyword
// token (rather than an IDENT) has already been consumed.
func (p *Parser) function(isInit bool) (ast.FuncStmt, error) {
	tok := p.previous()
	var name token.Token
	var err error
	if isInit {
		name = tok
	} else {
		name, err = p.consume(token.IDENTIFIER, "expected function name")
		if err != nil {
			return ast.FuncStmt{}, err
		}
	}
	if _, err := p.consume(token.LPA, "expected '(' after function name"); err != nil {
		return ast.FuncStmt{}, err
	}
	var params []token.Token
	if !p.check(token.RPA) {
		for {
			param, err := p.consume(token.IDENTIFIER, "expected parameter name")
			if err != nil {
				return ast.FuncStmt{}, err
			}
			params = append(params, param)
			if !p.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}
	if _, err := p.consume(token.RPA, "expected ')' after parameters"); err != nil {
		return ast.FuncStmt{}, err
	}
	if _, err := p.consume(token.LCUR, "expected '{' before function body"); err != nil {
		return ast.FuncStmt{}, err
	}
	body, err := p.blockStatements()
	if err != nil {
		return ast.FuncStmt{}, err
	}
	return ast.FuncStmt{
		Tok:    tok,
		Name:   name,
		Params: params,
		Body:   ast.BlockStmt{Tok: tok, Statements: body},
		IsInit: isInit,
	}, nil
}

// classDeclaration parses `klass Name { (proc m(...){...} | init(...){...})* }`.
func (p *Parser) classDeclaration() (ast.Stmt, error) {
	tok := p.previous()
	name, err := p.consume(token.IDENTIFIER, "expected class name")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.LCUR, "expected '{' before class body"); err != nil {
		return nil, err
	}
	var initFn *ast.FuncStmt
	var methods []ast.FuncStmt
	for !p.check(token.RCUR) && !p.isFinished() {
		switch {
		case p.isMatch([]token.TokenType{token.INIT}):
			if initFn != nil {
				return nil, SyntaxError{Line: p.previous().Line, Message: "class declares more than one 'init'"}
			}
			fn, err := p.function(true)
			if err != nil {
				return nil, err
			}
			initFn = &fn
		case p.isMatch([]token.TokenType{token.PROC}):
			fn, err := p.function(false)
			if err != nil {
				return nil, err
			}
			methods = append(methods, fn)
		default:
			tok := p.peek()
			return nil, SyntaxError{Line: tok.Line, Message: fmt.Sprintf("expected method or 'init' in class body, got %q", tok.Lexeme)}
		}
	}
	if _, err := p.consume(token.RCUR, "expected '}' after class body"); err != nil {
		return nil, err
	}
	return ast.ClassStmt{Tok: tok, Name: name, Init: initFn, Methods: methods}, nil
}

// statement parses anything that is not a var/function/class
// declaration.
func (p *Parser) statement() (ast.Stmt, error) {
	switch {
	case p.isMatch([]token.TokenType{token.LCUR}):
		tok := p.previous()
		stmts, err := p.blockStatements()
		if err != nil {
			return nil, err
		}
		return ast.BlockStmt{Tok: tok, Statements: stmts}, nil
	case p.isMatch([]token.TokenType{token.IF}):
		return p.ifStatement()
	case p.isMatch([]token.TokenType{token.WHILE}):
		return p.whileStatement()
	case p.isMatch([]token.TokenType{token.BREAK}):
		tok := p.previous()
		if _, err := p.consume(token.SEMICOLON, "expected ';' after 'break'"); err != nil {
			return nil, err
		}
		return ast.BreakStmt{Tok: tok}, nil
	case p.isMatch([]token.TokenType{token.CONTINUE}):
		tok := p.previous()
		if _, err := p.consume(token.SEMICOLON, "expected ';' after 'continue'"); err != nil {
			return nil, err
		}
		return ast.ContinueStmt{Tok: tok}, nil
	case p.isMatch([]token.TokenType{token.PRINT}):
		return p.printStatement()
	case p.isMatch([]token.TokenType{token.RET}):
		return p.returnStatement()
	default:
		return p.expressionStatement()
	}
}

// blockStatements parses statements up to (and consuming) the closing
// '}'. The opening '{' has already been consumed by the caller.
func (p *Parser) blockStatements() ([]ast.Stmt, error) {
	var statements []ast.Stmt
	for !p.check(token.RCUR) && !p.isFinished() {
		stmt, err := p.declaration()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	if _, err := p.consume(token.RCUR, "expected '}' to close block"); err != nil {
		return nil, err
	}
	return statements, nil
}

func (p *Parser) ifStatement() (ast.Stmt, error) {
	tok := p.previous()
	if _, err := p.consume(token.LPA, "expected '(' after 'if'"); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPA, "expected ')' after condition"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.LCUR, "expected '{' before if body"); err != nil {
		return nil, err
	}
	thenStmts, err := p.blockStatements()
	if err != nil {
		return nil, err
	}
	stmt := ast.IfStmt{Tok: tok, Condition: cond, Then: ast.BlockStmt{Tok: tok, Statements: thenStmts}}

	for p.isMatch([]token.TokenType{token.ELIF}) {
		elifTok := p.previous()
		if _, err := p.consume(token.LPA, "expected '(' after 'elif'"); err != nil {
			return nil, err
		}
		elifCond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPA, "expected ')' after condition"); err != nil {
			return nil, err
		}
		if _, err := p.consume(token.LCUR, "expected '{' before elif body"); err != nil {
			return nil, err
		}
		elifStmts, err := p.blockStatements()
		if err != nil {
			return nil, err
		}
		stmt.Elifs = append(stmt.Elifs, ast.ElifClause{
			Tok:       elifTok,
			Condition: elifCond,
			Body:      ast.BlockStmt{Tok: elifTok, Statements: elifStmts},
		})
	}

	if p.isMatch([]token.TokenType{token.ELSE}) {
		elseTok := p.previous()
		if _, err := p.consume(token.LCUR, "expected '{' before else body"); err != nil {
			return nil, err
		}
		elseStmts, err := p.blockStatements()
		if err != nil {
			return nil, err
		}
		block := ast.BlockStmt{Tok: elseTok, Statements: elseStmts}
		stmt.Else = &block
	}

	return stmt, nil
}

func (p *Parser) whileStatement() (ast.Stmt, error) {
	tok := p.previous()
	if _, err := p.consume(token.LPA, "expected '(' after 'while'"); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPA, "expected ')' after condition"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.LCUR, "expected '{' before while body"); err != nil {
		return nil, err
	}
	body, err := p.blockStatements()
	if err != nil {
		return nil, err
	}
	return ast.WhileStmt{Tok: tok, Condition: cond, Body: ast.BlockStmt{Tok: tok, Statements: body}}, nil
}

func (p *Parser) printStatement() (ast.Stmt, error) {
	tok := p.previous()
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.SEMICOLON, "expected ';' after print expression"); err != nil {
		return nil, err
	}
	return ast.PrintStmt{Tok: tok, Value: value}, nil
}

func (p *Parser) returnStatement() (ast.Stmt, error) {
	tok := p.previous()
	var value ast.Expression
	if !p.check(token.SEMICOLON) {
		var err error
		value, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.SEMICOLON, "expected ';' after return statement"); err != nil {
		return nil, err
	}
	return ast.ReturnStmt{Tok: tok, Value: value}, nil
}

func (p *Parser) expressionStatement() (ast.Stmt, error) {
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.SEMICOLON, "expected ';' after expression"); err != nil {
		return nil, err
	}
	return ast.ExpressionStmt{Tok: expr.Anchor(), Expression: expr}, nil
}

// expression is the entry point for the precedence chain of spec
// §4.2: assignment → array literal → type test → logical OR →
// logical AND → comparison → additive → multiplicative → unary →
// postfix chain → this → primary.
func (p *Parser) expression() (ast.Expression, error) {
	return p.assignment()
}

func (p *Parser) assignment() (ast.Expression, error) {
	expr, err := p.arrayLiteral()
	if err != nil {
		return nil, err
	}
	if p.isMatch([]token.TokenType{token.ASSIGN}) {
		tok := p.previous()
		value, err := p.assignment()
		if err != nil {
			return nil, err
		}
		switch expr.(type) {
		case ast.Identifier, ast.Member, ast.Index:
			return ast.Assign{Tok: tok, Target: expr, Value: value}, nil
		default:
			return nil, SyntaxError{Line: tok.Line, Message: "invalid assignment target"}
		}
	}
	return expr, nil
}

// arrayLiteral parses `[ e1, e2, ... ] (: length)?`. Items and the
// length expression are parsed one level down (typeTest), so neither
// an assignment nor a nested array literal can appear directly as an
// item or length.
func (p *Parser) arrayLiteral() (ast.Expression, error) {
	if !p.check(token.LBRACKET) {
		return p.typeTest()
	}
	tok := p.advance()
	var items []ast.Expression
	if !p.check(token.RBRACKET) {
		for {
			item, err := p.typeTest()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if !p.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}
	if _, err := p.consume(token.RBRACKET, "expected ']' to close array literal"); err != nil {
		return nil, err
	}
	var length ast.Expression
	if p.isMatch([]token.TokenType{token.COLON}) {
		var err error
		length, err = p.typeTest()
		if err != nil {
			return nil, err
		}
	}
	return ast.ArrayLiteral{Tok: tok, Items: items, Length: length, HasItems: len(items) > 0}, nil
}

func (p *Parser) typeTest() (ast.Expression, error) {
	expr, err := p.or()
	if err != nil {
		return nil, err
	}
	switch {
	case p.isMatch([]token.TokenType{token.IS}):
		tok := p.previous()
		if !p.isMatch(typeTagTokenTypes) {
			bad := p.peek()
			return nil, SyntaxError{Line: bad.Line, Message: fmt.Sprintf("expected a type name after 'is', got %q", bad.Lexeme)}
		}
		return ast.IsTest{Tok: tok, Value: expr, TypeTag: p.previous()}, nil
	case p.isMatch([]token.TokenType{token.FROM}):
		tok := p.previous()
		className, err := p.consume(token.IDENTIFIER, "expected class name after 'from'")
		if err != nil {
			return nil, err
		}
		return ast.FromTest{Tok: tok, Value: expr, ClassName: className}, nil
	}
	return expr, nil
}

func (p *Parser) or() (ast.Expression, error) {
	expr, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isMatch([]token.TokenType{token.OR}) {
		op := p.previous()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		expr = ast.Logical{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) and() (ast.Expression, error) {
	expr, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.isMatch([]token.TokenType{token.AND}) {
		op := p.previous()
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		expr = ast.Logical{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) comparison() (ast.Expression, error) {
	expr, err := p.additive()
	if err != nil {
		return nil, err
	}
	for p.isMatch(comparisonTokenTypes) {
		op := p.previous()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		expr = ast.Comparison{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) additive() (ast.Expression, error) {
	expr, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.isMatch(additiveTokenTypes) {
		op := p.previous()
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		expr = ast.Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) multiplicative() (ast.Expression, error) {
	expr, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isMatch(multiplicativeTokenTypes) {
		op := p.previous()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		expr = ast.Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) unary() (ast.Expression, error) {
	if p.isMatch([]token.TokenType{token.SUB, token.BANG}) {
		op := p.previous()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Operator: op, Right: right}, nil
	}
	return p.postfix()
}

// postfix parses the `[index]` / `.name` / `(args)` chain applied to
// a `this` or primary base, left-associatively.
func (p *Parser) postfix() (ast.Expression, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isMatch([]token.TokenType{token.LBRACKET}):
			tok := p.previous()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(token.RBRACKET, "expected ']' after index"); err != nil {
				return nil, err
			}
			expr = ast.Index{Tok: tok, Array: expr, Idx: idx}
		case p.isMatch([]token.TokenType{token.DOT}):
			tok := p.previous()
			name, err := p.consume(token.IDENTIFIER, "expected property name after '.'")
			if err != nil {
				return nil, err
			}
			expr = ast.Member{Tok: tok, Object: expr, Name: name}
		case p.isMatch([]token.TokenType{token.LPA}):
			tok := p.previous()
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(token.RPA, "expected ')' after arguments"); err != nil {
				return nil, err
			}
			expr = ast.Call{Tok: tok, Callee: expr, Args: args}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) arguments() ([]ast.Expression, error) {
	var args []ast.Expression
	if p.check(token.RPA) {
		return args, nil
	}
	for {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.isMatch([]token.TokenType{token.COMMA}) {
			break
		}
	}
	return args, nil
}

func (p *Parser) primary() (ast.Expression, error) {
	switch {
	case p.isMatch([]token.TokenType{token.NIL}):
		return ast.NilLiteral{Tok: p.previous()}, nil
	case p.isMatch([]token.TokenType{token.TRUE}):
		return ast.BoolLiteral{Tok: p.previous(), Value: true}, nil
	case p.isMatch([]token.TokenType{token.FALSE}):
		return ast.BoolLiteral{Tok: p.previous(), Value: false}, nil
	case p.isMatch([]token.TokenType{token.INT}):
		tok := p.previous()
		return ast.IntLiteral{Tok: tok, Value: tok.Literal.(int64)}, nil
	case p.isMatch([]token.TokenType{token.STRING}):
		tok := p.previous()
		return ast.StrLiteral{Tok: tok, Value: tok.Literal.(string)}, nil
	case p.isMatch([]token.TokenType{token.THIS}):
		return ast.This{Tok: p.previous()}, nil
	case p.isMatch([]token.TokenType{token.IDENTIFIER}):
		return ast.Identifier{Tok: p.previous()}, nil
	case p.isMatch([]token.TokenType{token.LPA}):
		tok := p.previous()
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPA, "expected ')' to close grouping"); err != nil {
			return nil, err
		}
		return ast.Grouping{Tok: tok, Expression: expr}, nil
	}
	tok := p.peek()
	return nil, SyntaxError{Line: tok.Line, Message: fmt.Sprintf("unexpected token %q", tok.Lexeme)}
}
