package parser

import (
	"encoding/json"
	"fmt"
	"os"

	"nilan/ast"
)

const (
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

// astPrinter implements ast.ExpressionVisitor and ast.StmtVisitor,
// building a JSON-friendly representation of the tree out of maps and
// slices, covering the full grammar (classes, arrays, is/from tests,
// member/index/call postfixes).
type astPrinter struct{}

func nilOrAccept(expr ast.Expression, p ast.ExpressionVisitor) any {
	if expr == nil {
		return nil
	}
	return expr.Accept(p)
}

func (p astPrinter) VisitVarStmt(s ast.VarStmt) any {
	return map[string]any{
		"type":        "VarStmt",
		"name":        s.Name.Lexeme,
		"initializer": nilOrAccept(s.Initializer, p),
	}
}

func (p astPrinter) VisitBlockStmt(s ast.BlockStmt) any {
	stmts := make([]any, 0, len(s.Statements))
	for _, stmt := range s.Statements {
		stmts = append(stmts, stmt.Accept(p))
	}
	return map[string]any{
		"type":       "BlockStmt",
		"statements": stmts,
	}
}

func (p astPrinter) VisitIfStmt(s ast.IfStmt) any {
	elifs := make([]any, 0, len(s.Elifs))
	for _, e := range s.Elifs {
		elifs = append(elifs, map[string]any{
			"condition": e.Condition.Accept(p),
			"body":      e.Body.Accept(p),
		})
	}
	var elseVal any
	if s.Else != nil {
		elseVal = s.Else.Accept(p)
	}
	return map[string]any{
		"type":      "IfStmt",
		"condition": s.Condition.Accept(p),
		"then":      s.Then.Accept(p),
		"elifs":     elifs,
		"else":      elseVal,
	}
}

func (p astPrinter) VisitContinueStmt(s ast.ContinueStmt) any {
	return map[string]any{"type": "ContinueStmt"}
}

func (p astPrinter) VisitBreakStmt(s ast.BreakStmt) any {
	return map[string]any{"type": "BreakStmt"}
}

func (p astPrinter) VisitWhileStmt(s ast.WhileStmt) any {
	return map[string]any{
		"type":      "WhileStmt",
		"condition": s.Condition.Accept(p),
		"body":      s.Body.Accept(p),
	}
}

func (p astPrinter) VisitFuncStmt(s ast.FuncStmt) any {
	params := make([]string, 0, len(s.Params))
	for _, t := range s.Params {
		params = append(params, t.Lexeme)
	}
	return map[string]any{
		"type":   "FuncStmt",
		"name":   s.Name.Lexeme,
		"params": params,
		"isInit": s.IsInit,
		"body":   s.Body.Accept(p),
	}
}

func (p astPrinter) VisitClassStmt(s ast.ClassStmt) any {
	var initVal any
	if s.Init != nil {
		initVal = s.Init.Accept(p)
	}
	methods := make([]any, 0, len(s.Methods))
	for _, m := range s.Methods {
		methods = append(methods, m.Accept(p))
	}
	return map[string]any{
		"type":    "ClassStmt",
		"name":    s.Name.Lexeme,
		"init":    initVal,
		"methods": methods,
	}
}

func (p astPrinter) VisitPrintStmt(s ast.PrintStmt) any {
	return map[string]any{
		"type":  "PrintStmt",
		"value": s.Value.Accept(p),
	}
}

func (p astPrinter) VisitReturnStmt(s ast.ReturnStmt) any {
	return map[string]any{
		"type":  "ReturnStmt",
		"value": nilOrAccept(s.Value, p),
	}
}

func (p astPrinter) VisitExpressionStmt(s ast.ExpressionStmt) any {
	return map[string]any{
		"type":       "ExpressionStmt",
		"expression": s.Expression.Accept(p),
	}
}

func (p astPrinter) VisitAssign(e ast.Assign) any {
	return map[string]any{
		"type":   "Assign",
		"target": e.Target.Accept(p),
		"value":  e.Value.Accept(p),
	}
}

func (p astPrinter) VisitIsTest(e ast.IsTest) any {
	return map[string]any{
		"type":    "IsTest",
		"value":   e.Value.Accept(p),
		"typeTag": e.TypeTag.Lexeme,
	}
}

func (p astPrinter) VisitFromTest(e ast.FromTest) any {
	return map[string]any{
		"type":      "FromTest",
		"value":     e.Value.Accept(p),
		"className": e.ClassName.Lexeme,
	}
}

func (p astPrinter) VisitArrayLiteral(e ast.ArrayLiteral) any {
	items := make([]any, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, it.Accept(p))
	}
	return map[string]any{
		"type":     "ArrayLiteral",
		"items":    items,
		"length":   nilOrAccept(e.Length, p),
		"hasItems": e.HasItems,
	}
}

func (p astPrinter) VisitLogical(e ast.Logical) any {
	return map[string]any{
		"type":     "Logical",
		"operator": e.Operator.Lexeme,
		"left":     e.Left.Accept(p),
		"right":    e.Right.Accept(p),
	}
}

func (p astPrinter) VisitComparison(e ast.Comparison) any {
	return map[string]any{
		"type":     "Comparison",
		"operator": e.Operator.Lexeme,
		"left":     e.Left.Accept(p),
		"right":    e.Right.Accept(p),
	}
}

func (p astPrinter) VisitBinary(e ast.Binary) any {
	return map[string]any{
		"type":     "Binary",
		"operator": e.Operator.Lexeme,
		"left":     e.Left.Accept(p),
		"right":    e.Right.Accept(p),
	}
}

func (p astPrinter) VisitUnary(e ast.Unary) any {
	return map[string]any{
		"type":     "Unary",
		"operator": e.Operator.Lexeme,
		"right":    e.Right.Accept(p),
	}
}

func (p astPrinter) VisitIndex(e ast.Index) any {
	return map[string]any{
		"type":  "Index",
		"array": e.Array.Accept(p),
		"idx":   e.Idx.Accept(p),
	}
}

func (p astPrinter) VisitMember(e ast.Member) any {
	return map[string]any{
		"type":   "Member",
		"object": e.Object.Accept(p),
		"name":   e.Name.Lexeme,
	}
}

func (p astPrinter) VisitCall(e ast.Call) any {
	args := make([]any, 0, len(e.Args))
	for _, a := range e.Args {
		args = append(args, a.Accept(p))
	}
	return map[string]any{
		"type":   "Call",
		"callee": e.Callee.Accept(p),
		"args":   args,
	}
}

func (p astPrinter) VisitThis(e ast.This) any {
	return map[string]any{"type": "This"}
}

func (p astPrinter) VisitGrouping(e ast.Grouping) any {
	return map[string]any{
		"type":       "Grouping",
		"expression": e.Expression.Accept(p),
	}
}

func (p astPrinter) VisitNilLiteral(e ast.NilLiteral) any {
	return map[string]any{"type": "NilLiteral"}
}

func (p astPrinter) VisitBoolLiteral(e ast.BoolLiteral) any {
	return map[string]any{"type": "BoolLiteral", "value": e.Value}
}

func (p astPrinter) VisitIntLiteral(e ast.IntLiteral) any {
	return map[string]any{"type": "IntLiteral", "value": e.Value}
}

func (p astPrinter) VisitStrLiteral(e ast.StrLiteral) any {
	return map[string]any{"type": "StrLiteral", "value": e.Value}
}

func (p astPrinter) VisitIdentifier(e ast.Identifier) any {
	return map[string]any{"type": "Identifier", "name": e.Tok.Lexeme}
}

// PrintASTJSON converts a slice of statements into a prettified JSON
// string, printing it to stdout in yellow, and also returning it for
// callers that only want the string (the `check -ast` tooling).
func PrintASTJSON(statements []ast.Stmt) (string, error) {
	printer := astPrinter{}
	out := make([]any, 0, len(statements))
	for _, s := range statements {
		out = append(out, s.Accept(printer))
	}
	bytes, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}

	jsonStr := string(bytes)
	fmt.Println(colorYellow + "----- AST JSON -----")
	fmt.Println(colorYellow + jsonStr)
	fmt.Println(colorYellow + "-----" + colorReset)
	fmt.Println("")
	return jsonStr, nil
}

// WriteASTJSONToFile writes the prettified AST JSON to the given file path.
func WriteASTJSONToFile(statements []ast.Stmt, path string) error {
	s, err := PrintASTJSON(statements)
	if err != nil {
		return err
	}
	fDescriptor, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating AST file: %s", err.Error())
	}
	defer fDescriptor.Close()

	if _, err := fDescriptor.Write([]byte(s)); err != nil {
		return fmt.Errorf("error writing AST to file: %s", err.Error())
	}
	return nil
}
