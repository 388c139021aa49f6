package jackcompile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func parseClass(t *testing.T, src string) *ClassAst {
	t.Helper()
	tokens, err := (&Tokenizer{}).Tokenize(strings.NewReader(src))
	assert.NoError(t, err)
	class, err := newParser("test.jack", tokens).ParseClass()
	assert.NoError(t, err)
	return class
}

func TestParseEmptyClass(t *testing.T) {
	class := parseClass(t, "class Main { }")
	assert.Equal(t, "Main", class.ClassName)
	assert.Empty(t, class.ClassVariables)
}

func TestParseClassVariablesAndFields(t *testing.T) {
	class := parseClass(t, `class Point {
		field int x, y;
		static boolean initialized;
	}`)
	assert.Len(t, class.ClassVariables, 2)
	assert.Equal(t, []string{"x", "y"}, class.ClassVariables[0].VariableNames)
	assert.Equal(t, ObjectFieldType, class.ClassVariables[0].FieldTP)
	assert.Equal(t, StaticFieldType, class.ClassVariables[1].FieldTP)
}

func TestExpressionIsLeftToRightWithNoPrecedence(t *testing.T) {
	class := parseClass(t, `class Main {
		function void main() {
			do Output.printInt(2 + 3 * 4);
			return;
		}
	}`)
	call := class.Subroutines[0].Body[0].Statement.(*DoStatementAst).Call
	expr := call.Params[0]
	// 2 + 3 * 4 must parse as a flat chain: First=2, then +3, then *4 -
	// never a tree that would group 3*4 first.
	assert.Equal(t, IntegerConstantTermType, expr.First.Type)
	assert.Equal(t, 2, expr.First.Value)
	assert.Len(t, expr.Rest, 2)
	assert.Equal(t, AddOpTP, expr.Rest[0].Op)
	assert.Equal(t, 3, expr.Rest[0].Term.Value)
	assert.Equal(t, MultiplyOpTP, expr.Rest[1].Op)
	assert.Equal(t, 4, expr.Rest[1].Term.Value)
}

func TestParseParenthesesOverrideOrder(t *testing.T) {
	class := parseClass(t, `class Main {
		function void main() {
			do Output.printInt((2 + 3) * 4);
			return;
		}
	}`)
	call := class.Subroutines[0].Body[0].Statement.(*DoStatementAst).Call
	expr := call.Params[0]
	assert.Equal(t, SubExpressionTermType, expr.First.Type)
	assert.Len(t, expr.Rest, 1)
	assert.Equal(t, MultiplyOpTP, expr.Rest[0].Op)
}

func TestParseArrayLet(t *testing.T) {
	class := parseClass(t, `class Main {
		function void main() {
			let a[i] = a[j] + 1;
			return;
		}
	}`)
	let := class.Subroutines[0].Body[0].Statement.(*LetStatementAst)
	assert.Equal(t, "a", let.LetVariable.VarName)
	assert.NotNil(t, let.LetVariable.ArrayIndex)
}

func TestParseMethodCallOnReceiver(t *testing.T) {
	class := parseClass(t, `class Main {
		function void main() {
			var Square s;
			do s.dispose();
			return;
		}
	}`)
	doStmt := class.Subroutines[0].Body[1].Statement.(*DoStatementAst)
	assert.Equal(t, "s", doStmt.Call.FuncProvider)
	assert.Equal(t, "dispose", doStmt.Call.FuncName)
}

func TestParseUnaryOps(t *testing.T) {
	class := parseClass(t, `class Main {
		function void main() {
			let x = -y;
			let b = ~flag;
			return;
		}
	}`)
	let1 := class.Subroutines[0].Body[0].Statement.(*LetStatementAst)
	assert.Equal(t, NegationOp, let1.Value.First.UnaryOp)
	let2 := class.Subroutines[0].Body[1].Statement.(*LetStatementAst)
	assert.Equal(t, BooleanNegationOp, let2.Value.First.UnaryOp)
}

func TestParseIntegerOutOfRangeErrors(t *testing.T) {
	tokens, err := (&Tokenizer{}).Tokenize(strings.NewReader(`class Main {
		function void main() {
			let x = 32768;
			return;
		}
	}`))
	assert.NoError(t, err)
	_, err = newParser("test.jack", tokens).ParseClass()
	assert.Error(t, err)
}

func TestParseIfElseAndWhile(t *testing.T) {
	class := parseClass(t, `class Main {
		function void main() {
			if (x > 0) {
				let x = x - 1;
			} else {
				let x = 0;
			}
			while (x < 10) {
				let x = x + 1;
			}
			return;
		}
	}`)
	body := class.Subroutines[0].Body
	assert.Equal(t, IfStatementTP, body[0].StatementTP)
	assert.Equal(t, WhileStatementTP, body[1].StatementTP)
	ifStmt := body[0].Statement.(*IfStatementAst)
	assert.Len(t, ifStmt.IfTrueStatements, 1)
	assert.Len(t, ifStmt.ElseStatements, 1)
}
