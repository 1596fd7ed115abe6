package parser

import (
	"encoding/json"
	"testing"

	"nilan/lexer"
)

// parseForPrint drives the real lexer+parser (rather than hand-built
// nodes) so the printer is exercised against the actual grammar it
// has to serialize.
func parseForPrint(t *testing.T, source string) string {
	t.Helper()
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	p := New(tokens)
	statements, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := PrintASTJSON(statements)
	if err != nil {
		t.Fatalf("PrintASTJSON error: %v", err)
	}
	return out
}

func TestPrintASTJSONLiteral(t *testing.T) {
	jsonStr := parseForPrint(t, `print 42;`)

	var out []map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(out))
	}
	node := out[0]
	if typ, _ := node["type"].(string); typ != "PrintStmt" {
		t.Fatalf("expected type PrintStmt, got %v", node["type"])
	}
	value, ok := node["value"].(map[string]any)
	if !ok || value["type"] != "IntLiteral" || value["value"] != float64(42) {
		t.Fatalf("expected IntLiteral 42, got %v", node["value"])
	}
}

func TestPrintASTJSONVarStmtNilInitializer(t *testing.T) {
	jsonStr := parseForPrint(t, `cl x;`)

	var out []map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	node := out[0]
	if typ, _ := node["type"].(string); typ != "VarStmt" {
		t.Fatalf("expected type VarStmt, got %v", node["type"])
	}
	if nameVal, _ := node["name"].(string); nameVal != "x" {
		t.Fatalf("expected name 'x', got %v", node["name"])
	}
	if initVal, exists := node["initializer"]; !exists || initVal != nil {
		t.Fatalf("expected initializer to be nil, got %v", initVal)
	}
}

func TestPrintASTJSONBinaryExpression(t *testing.T) {
	jsonStr := parseForPrint(t, `1 + 2;`)

	var out []map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	node := out[0]
	expr, ok := node["expression"].(map[string]any)
	if !ok || expr["type"] != "Binary" || expr["operator"] != "+" {
		t.Fatalf("expected Binary '+', got %v", node["expression"])
	}
}

func TestPrintASTJSONClassStmt(t *testing.T) {
	jsonStr := parseForPrint(t, `
		klass Box {
			init(v) {
				this.v = v;
			}
		}
	`)

	var out []map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	node := out[0]
	if typ, _ := node["type"].(string); typ != "ClassStmt" {
		t.Fatalf("expected type ClassStmt, got %v", node["type"])
	}
	if name, _ := node["name"].(string); name != "Box" {
		t.Fatalf("expected name 'Box', got %v", node["name"])
	}
	init, ok := node["init"].(map[string]any)
	if !ok || init["type"] != "FuncStmt" || init["isInit"] != true {
		t.Fatalf("expected an init FuncStmt, got %v", node["init"])
	}
}
