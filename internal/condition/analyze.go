package condition

import (
	"fmt"
	"strings"

	"github.com/yuin/gopher-lua/ast"
	luaparse "github.com/yuin/gopher-lua/parse"
)

// AnalysisReport is advisory static-lint output. Warnings point at likely
// bugs, suggestions at style; neither blocks persistence.
type AnalysisReport struct {
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

const maxPolicyStatements = 50

// Analyze statically lints a policy script. A script that fails to parse gets
// the parse error as a warning rather than an error, because analysis is
// non-blocking by contract.
func (e *Evaluator) Analyze(script string) AnalysisReport {
	report := AnalysisReport{
		Warnings:    []string{},
		Suggestions: []string{},
	}

	if strings.TrimSpace(script) == "" {
		report.Warnings = append(report.Warnings, "script is empty; it will always evaluate to false")
		return report
	}
	if len(script) > MaxScriptBytes {
		report.Warnings = append(report.Warnings, fmt.Sprintf("script is %d bytes; policies should stay under %d bytes", len(script), MaxScriptBytes))
	}

	chunk, err := luaparse.Parse(strings.NewReader(script), "policy")
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("syntax error: %v", err))
		return report
	}

	if len(chunk) > maxPolicyStatements {
		report.Suggestions = append(report.Suggestions, fmt.Sprintf("script has %d top-level statements; consider splitting the policy", len(chunk)))
	}

	if !returnsValue(chunk) && !assignsAllow(chunk) {
		report.Suggestions = append(report.Suggestions, "script neither returns a value nor sets the allow global; it will always evaluate to false")
	}

	for _, lib := range []string{"os", "io", "require", "dofile", "loadfile"} {
		if referencesGlobal(chunk, lib) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%q is not available in the policy sandbox", lib))
		}
	}

	return report
}

// returnsValue reports whether the chunk ends in a return with a value
func returnsValue(chunk []ast.Stmt) bool {
	if len(chunk) == 0 {
		return false
	}
	ret, isReturn := chunk[len(chunk)-1].(*ast.ReturnStmt)
	return isReturn && len(ret.Exprs) > 0
}

// assignsAllow reports whether any top-level assignment targets `allow`
func assignsAllow(chunk []ast.Stmt) bool {
	for _, stmt := range chunk {
		assign, isAssign := stmt.(*ast.AssignStmt)
		if !isAssign {
			continue
		}
		for _, lhs := range assign.Lhs {
			if ident, isIdent := lhs.(*ast.IdentExpr); isIdent && ident.Value == "allow" {
				return true
			}
		}
	}
	return false
}

// referencesGlobal reports whether the chunk mentions the named global at the
// top level. A shallow scan is enough for lint purposes.
func referencesGlobal(chunk []ast.Stmt, name string) bool {
	found := false
	var visitExpr func(expr ast.Expr)
	visitExpr = func(expr ast.Expr) {
		if found || expr == nil {
			return
		}
		switch e := expr.(type) {
		case *ast.IdentExpr:
			if e.Value == name {
				found = true
			}
		case *ast.AttrGetExpr:
			visitExpr(e.Object)
			visitExpr(e.Key)
		case *ast.FuncCallExpr:
			visitExpr(e.Func)
			visitExpr(e.Receiver)
			for _, arg := range e.Args {
				visitExpr(arg)
			}
		case *ast.LogicalOpExpr:
			visitExpr(e.Lhs)
			visitExpr(e.Rhs)
		case *ast.RelationalOpExpr:
			visitExpr(e.Lhs)
			visitExpr(e.Rhs)
		case *ast.ArithmeticOpExpr:
			visitExpr(e.Lhs)
			visitExpr(e.Rhs)
		case *ast.UnaryNotOpExpr:
			visitExpr(e.Expr)
		case *ast.StringConcatOpExpr:
			visitExpr(e.Lhs)
			visitExpr(e.Rhs)
		}
	}

	for _, stmt := range chunk {
		switch s := stmt.(type) {
		case *ast.LocalAssignStmt:
			for _, expr := range s.Exprs {
				visitExpr(expr)
			}
		case *ast.AssignStmt:
			for _, expr := range s.Rhs {
				visitExpr(expr)
			}
		case *ast.ReturnStmt:
			for _, expr := range s.Exprs {
				visitExpr(expr)
			}
		case *ast.IfStmt:
			visitExpr(s.Condition)
		case *ast.FuncCallStmt:
			visitExpr(s.Expr)
		}
		if found {
			return true
		}
	}
	return false
}
