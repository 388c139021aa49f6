package jackcompile

import (
	"bytes"
	"fmt"
)

// Generator lowers one class's AST to VM text. Symbol tables are built by
// a declaration walk that precedes all statement emission, so that a
// forward reference (a method calling another method declared later in
// the file) always resolves.
type Generator struct {
	output      bytes.Buffer
	className   string
	classTable  *ClassSymbolTable
	subTable    *SubroutineSymbolTable
	currentSub  *SubroutineAst
	labelID     int
}

// GenerateClass builds the class's symbol table and emits VM text for
// every subroutine.
func GenerateClass(class *ClassAst) (string, error) {
	gen := &Generator{className: class.ClassName, classTable: newClassSymbolTable(class.ClassName)}
	for _, v := range class.ClassVariables {
		for _, name := range v.VariableNames {
			if err := gen.classTable.define(name, v.VariableType, v.FieldTP); err != nil {
				return "", err
			}
		}
	}
	for _, sub := range class.Subroutines {
		if err := gen.generateSubroutine(sub); err != nil {
			return "", err
		}
	}
	return gen.output.String(), nil
}

func (gen *Generator) emit(format string, args ...interface{}) {
	fmt.Fprintf(&gen.output, format, args...)
	gen.output.WriteByte('\n')
}

func (gen *Generator) generateSubroutine(sub *SubroutineAst) error {
	subTable := newSubroutineSymbolTable(sub.FuncTP == ClassMethodType)
	for _, param := range sub.Params {
		if err := subTable.defineArg(param.ParamName, param.ParamTP); err != nil {
			return makeSemanticError(gen.className, "%s.%s: %v", gen.className, sub.FuncName, err)
		}
	}
	localCount := 0
	for _, stmt := range sub.Body {
		if stmt.StatementTP != VariableDeclareStatementTP {
			continue
		}
		decl := stmt.Statement.(*VarDeclareAst)
		for _, name := range decl.VarNames {
			if err := subTable.defineLocal(name, decl.VarType); err != nil {
				return makeSemanticError(gen.className, "%s.%s: %v", gen.className, sub.FuncName, err)
			}
			localCount++
		}
	}

	gen.subTable, gen.currentSub = subTable, sub
	gen.emit("function %s.%s %d", gen.className, sub.FuncName, localCount)
	switch sub.FuncTP {
	case ClassConstructorType:
		gen.emit("push constant %d", gen.classTable.FieldCount())
		gen.emit("call Memory.alloc 1")
		gen.emit("pop pointer 0")
	case ClassMethodType:
		gen.emit("push argument 0")
		gen.emit("pop pointer 0")
	}
	for _, stmt := range sub.Body {
		if err := gen.generateStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (gen *Generator) generateStatement(stmt *StatementAst) error {
	switch stmt.StatementTP {
	case VariableDeclareStatementTP:
		return nil
	case LetStatementTP:
		return gen.generateLet(stmt.Statement.(*LetStatementAst))
	case IfStatementTP:
		return gen.generateIf(stmt.Statement.(*IfStatementAst))
	case WhileStatementTP:
		return gen.generateWhile(stmt.Statement.(*WhileStatementAst))
	case DoStatementTP:
		return gen.generateCall(stmt.Statement.(*DoStatementAst).Call, false)
	case ReturnStatementTP:
		return gen.generateReturn(stmt.Statement)
	default:
		return makeSemanticError(gen.className, "unknown statement kind")
	}
}

func (gen *Generator) generateLet(stmt *LetStatementAst) error {
	if stmt.LetVariable.ArrayIndex == nil {
		if err := gen.generateExpression(stmt.Value); err != nil {
			return err
		}
		return gen.popVariable(stmt.LetVariable.VarName)
	}
	// a[i] = e: materialize the address into THAT only after evaluating e,
	// so a read of a[...] inside e cannot clobber the pointer we're about
	// to write through.
	if err := gen.checkArrayVariable(stmt.LetVariable.VarName); err != nil {
		return err
	}
	if err := gen.pushVariable(stmt.LetVariable.VarName); err != nil {
		return err
	}
	if err := gen.generateExpression(stmt.LetVariable.ArrayIndex); err != nil {
		return err
	}
	gen.emit("add")
	if err := gen.generateExpression(stmt.Value); err != nil {
		return err
	}
	gen.emit("pop temp 0")
	gen.emit("pop pointer 1")
	gen.emit("push temp 0")
	gen.emit("pop that 0")
	return nil
}

func (gen *Generator) generateIf(stmt *IfStatementAst) error {
	id := gen.labelID
	gen.labelID++
	elseLabel, endLabel := fmt.Sprintf("IF_ELSE_%d", id), fmt.Sprintf("IF_END_%d", id)
	if err := gen.generateExpression(stmt.Condition); err != nil {
		return err
	}
	gen.emit("not")
	gen.emit("if-goto %s", elseLabel)
	for _, s := range stmt.IfTrueStatements {
		if err := gen.generateStatement(s); err != nil {
			return err
		}
	}
	gen.emit("goto %s", endLabel)
	gen.emit("label %s", elseLabel)
	for _, s := range stmt.ElseStatements {
		if err := gen.generateStatement(s); err != nil {
			return err
		}
	}
	gen.emit("label %s", endLabel)
	return nil
}

func (gen *Generator) generateWhile(stmt *WhileStatementAst) error {
	id := gen.labelID
	gen.labelID++
	topLabel, endLabel := fmt.Sprintf("WHILE_TOP_%d", id), fmt.Sprintf("WHILE_END_%d", id)
	gen.emit("label %s", topLabel)
	if err := gen.generateExpression(stmt.Condition); err != nil {
		return err
	}
	gen.emit("not")
	gen.emit("if-goto %s", endLabel)
	for _, s := range stmt.Statements {
		if err := gen.generateStatement(s); err != nil {
			return err
		}
	}
	gen.emit("goto %s", topLabel)
	gen.emit("label %s", endLabel)
	return nil
}

func (gen *Generator) generateReturn(statement interface{}) error {
	if statement == nil {
		gen.emit("push constant 0")
		gen.emit("return")
		return nil
	}
	ret := statement.(*ReturnStatementAst)
	if ret.Value == nil {
		gen.emit("push constant 0")
	} else if err := gen.generateExpression(ret.Value); err != nil {
		return err
	}
	gen.emit("return")
	return nil
}

func (gen *Generator) generateExpression(expr *ExpressionAst) error {
	if err := gen.generateTerm(expr.First); err != nil {
		return err
	}
	for _, ot := range expr.Rest {
		if err := gen.generateTerm(ot.Term); err != nil {
			return err
		}
		if err := gen.generateOp(ot.Op); err != nil {
			return err
		}
	}
	return nil
}

func (gen *Generator) generateOp(op OpCode) error {
	switch op {
	case AddOpTP:
		gen.emit("add")
	case MinusOpTP:
		gen.emit("sub")
	case MultiplyOpTP:
		gen.emit("call Math.multiply 2")
	case DivideOpTP:
		gen.emit("call Math.divide 2")
	case AndOpTP:
		gen.emit("and")
	case OrOpTP:
		gen.emit("or")
	case LessOpTP:
		gen.emit("lt")
	case GreaterOpTP:
		gen.emit("gt")
	case EqualOpTP:
		gen.emit("eq")
	default:
		return makeSemanticError(gen.className, "unknown operator")
	}
	return nil
}

func (gen *Generator) generateTerm(term *Term) error {
	switch term.Type {
	case IntegerConstantTermType:
		gen.emit("push constant %d", term.Value.(int))
	case StringConstantTermType:
		gen.generateStringConstant(term.Value.(string))
	case KeyWordConstantTrueTermType:
		gen.emit("push constant 1")
		gen.emit("neg")
	case KeyWordConstantFalseTermType, KeyWordConstantNullTermType:
		gen.emit("push constant 0")
	case KeyWordConstantThisTermType:
		gen.emit("push pointer 0")
	case VarNameTermType:
		if err := gen.pushVariable(term.Value.(string)); err != nil {
			return err
		}
	case ArrayIndexTermType:
		v := term.Value.(*VariableAst)
		if err := gen.checkArrayVariable(v.VarName); err != nil {
			return err
		}
		if err := gen.pushVariable(v.VarName); err != nil {
			return err
		}
		if err := gen.generateExpression(v.ArrayIndex); err != nil {
			return err
		}
		gen.emit("add")
		gen.emit("pop pointer 1")
		gen.emit("push that 0")
	case SubRoutineCallTermType:
		if err := gen.generateCall(term.Value.(*CallAst), true); err != nil {
			return err
		}
	case SubExpressionTermType:
		if err := gen.generateExpression(term.Value.(*ExpressionAst)); err != nil {
			return err
		}
	default:
		return makeSemanticError(gen.className, "unknown term kind")
	}
	switch term.UnaryOp {
	case NegationOp:
		gen.emit("neg")
	case BooleanNegationOp:
		gen.emit("not")
	}
	return nil
}

func (gen *Generator) generateStringConstant(s string) {
	gen.emit("push constant %d", len(s))
	gen.emit("call String.new 1")
	for _, c := range []byte(s) {
		gen.emit("push constant %d", c)
		gen.emit("call String.appendChar 2")
	}
}

// generateCall emits a do- or expression-context subroutine call.
// isExprContext is false for "do expr", which must pop the (always
// present) return value itself rather than leave it for an enclosing
// expression to consume.
func (gen *Generator) generateCall(call *CallAst, isExprContext bool) error {
	targetClass, funcName, extraArg := gen.className, call.FuncName, false
	if call.FuncProvider == "" {
		// Unqualified call: m(...) invokes a method on the current object.
		extraArg = true
		gen.emit("push pointer 0")
	} else if sym, ok := resolve(gen.subTable, gen.classTable, call.FuncProvider); ok {
		// Provider is a declared variable: call a method on it, pushing
		// the variable's value as the implicit receiver argument.
		if sym.Type.TP != ClassVariableType {
			return makeSemanticError(gen.className, "variable %q is not an object, cannot call %s on it", call.FuncProvider, call.FuncName)
		}
		targetClass, extraArg = sym.Type.Name, true
		if err := gen.pushVariable(call.FuncProvider); err != nil {
			return err
		}
	} else {
		// Provider is a class name: static function or constructor call.
		targetClass = call.FuncProvider
	}
	for _, param := range call.Params {
		if err := gen.generateExpression(param); err != nil {
			return err
		}
	}
	argCount := len(call.Params)
	if extraArg {
		argCount++
	}
	gen.emit("call %s.%s %d", targetClass, funcName, argCount)
	if !isExprContext {
		gen.emit("pop temp 0")
	}
	return nil
}

// checkArrayVariable enforces the one type rule the grammar demands:
// subscripting is only legal on a variable declared as an Array.
// Undeclared identifiers are left to pushVariable/popVariable to report,
// since those already carry the "undeclared identifier" message.
func (gen *Generator) checkArrayVariable(name string) error {
	sym, ok := resolve(gen.subTable, gen.classTable, name)
	if !ok {
		return nil
	}
	if sym.Type.TP != ClassVariableType || sym.Type.Name != "Array" {
		return &TypeMismatch{Class: gen.className, Var: name}
	}
	return nil
}

func (gen *Generator) pushVariable(name string) error {
	sym, ok := resolve(gen.subTable, gen.classTable, name)
	if !ok {
		return makeSemanticError(gen.className, "%s.%s: undeclared identifier %q", gen.className, gen.currentSub.FuncName, name)
	}
	gen.emit("push %s %d", segmentName(sym.Kind), sym.Index)
	return nil
}

func (gen *Generator) popVariable(name string) error {
	sym, ok := resolve(gen.subTable, gen.classTable, name)
	if !ok {
		return makeSemanticError(gen.className, "%s.%s: undeclared identifier %q", gen.className, gen.currentSub.FuncName, name)
	}
	gen.emit("pop %s %d", segmentName(sym.Kind), sym.Index)
	return nil
}

func segmentName(kind SymbolKind) string {
	switch kind {
	case StaticKind:
		return "static"
	case FieldKind:
		return "this"
	case ArgumentKind:
		return "argument"
	default:
		return "local"
	}
}
