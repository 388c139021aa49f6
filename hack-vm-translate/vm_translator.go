// Package vmtranslate lowers a directory of stack-VM programs to a
// single Hack assembly file, implementing the segment model and calling
// convention described by the Hack VM specification.
package vmtranslate

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"hacktools/hack"
)

// Arithmetic commands: add, sub, neg, eq, gt, lt, and, or, not.
// Memory access: push|pop segment index, segment one of argument, local,
// static, constant, this, that, pointer, temp.
// Program flow: label, goto, if-goto.
// Function calling: function f n, call f n, return.

type keyword int

const (
	kwPush keyword = iota
	kwPop
	kwArgument
	kwLocal
	kwStatic
	kwConstant
	kwThis
	kwThat
	kwPointer
	kwTemp
	kwAdd
	kwSub
	kwNeg
	kwEq
	kwGt
	kwLt
	kwAnd
	kwOr
	kwNot
	kwLabel
	kwIfGoto
	kwGoto
	kwFunction
	kwCall
	kwReturn
)

var keywords = map[string]keyword{
	"PUSH": kwPush, "POP": kwPop, "ARGUMENT": kwArgument, "LOCAL": kwLocal,
	"STATIC": kwStatic, "CONSTANT": kwConstant, "THIS": kwThis, "THAT": kwThat,
	"POINTER": kwPointer, "TEMP": kwTemp, "ADD": kwAdd, "SUB": kwSub, "NEG": kwNeg,
	"EQ": kwEq, "GT": kwGt, "LT": kwLt, "AND": kwAnd, "OR": kwOr, "NOT": kwNot,
	"LABEL": kwLabel, "IF-GOTO": kwIfGoto, "GOTO": kwGoto, "FUNCTION": kwFunction,
	"CALL": kwCall, "RETURN": kwReturn,
}

type VMTranslator struct {
	fileName        string
	lineCounter     int
	output          bytes.Buffer
	labelNameID     int
	funcCallID      int
	currentFunction string
}

func NewVMTranslator() *VMTranslator {
	return &VMTranslator{}
}

// TranslateError reports a syntax problem at a specific line of a specific
// source file.
type TranslateError struct {
	File string
	Line int
	Near string
}

func (e *TranslateError) Error() string {
	return fmt.Sprintf("%s:%d: syntax error near %q", e.File, e.Line, e.Near)
}

// TranslateDir lowers every *.vm file under path into a single assembly
// program, optionally preceded by the bootstrap prelude that sets SP=256
// and calls Sys.init.
func (translator *VMTranslator) TranslateDir(path string, bootstrap bool) error {
	if bootstrap {
		translator.WriteBootstrap()
	}
	files, err := orderedVMFiles(path)
	if err != nil {
		return err
	}
	for _, name := range files {
		if err := translator.TranslateFile(path, name); err != nil {
			return err
		}
	}
	return nil
}

// orderedVMFiles lists the *.vm files of a directory with Sys.vm moved to
// the front, if present, followed by the rest in lexicographic order —
// Sys.init must be the first code in ROM after the bootstrap call target
// is resolved, and a deterministic order keeps translation byte-identical
// across runs.
func orderedVMFiles(path string) ([]string, error) {
	entries, err := ioutil.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	hasSys := false
	for _, f := range entries {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".vm") {
			continue
		}
		if f.Name() == "Sys.vm" {
			hasSys = true
			continue
		}
		names = append(names, f.Name())
	}
	sortStrings(names)
	if hasSys {
		names = append([]string{"Sys.vm"}, names...)
	}
	return names, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func (translator *VMTranslator) TranslateFile(dir, filename string) error {
	translator.fileName = strings.TrimSuffix(filename, ".vm")
	translator.lineCounter = 0
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	defer f.Close()
	return translator.Parse(f)
}

func (translator *VMTranslator) Parse(rd io.Reader) error {
	s := bufio.NewScanner(rd)
	for s.Scan() {
		translator.lineCounter++
		if err := translator.parseLine([]byte(s.Text())); err != nil {
			return err
		}
	}
	return s.Err()
}

// WriteBootstrap emits SP=256 then an unconditional call to Sys.init 0,
// per the calling convention's bootstrap prelude.
func (translator *VMTranslator) WriteBootstrap() {
	translator.output.WriteString("// bootstrap\n@256\nD=A\n@SP\nM=D\n")
	translator.fileName, translator.currentFunction = "", "Bootstrap"
	translator.parseCall([]byte("Sys.init 0"))
}

func (translator *VMTranslator) getNextToken(line []byte) (string, []byte) {
	line = bytes.TrimSpace(line)
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ', '\t', '\r', '\f', '\v':
			return string(line[:i]), line[i:]
		}
	}
	return string(line), nil
}

func (translator *VMTranslator) parseLine(line []byte) (err error) {
	if idx := bytes.Index(line, []byte("//")); idx != -1 {
		line = line[:idx]
	}
	token, line := translator.getNextToken(line)
	if len(token) == 0 {
		return nil
	}
	kw, ok := keywords[strings.ToUpper(token)]
	if !ok {
		return translator.makeError(token)
	}
	switch kw {
	case kwPush:
		err = translator.parsePushPop(kwPush, line)
	case kwPop:
		err = translator.parsePushPop(kwPop, line)
	case kwAdd:
		translator.binaryOp("D+A", "add"); err = translator.parseRemainContent(line)
	case kwSub:
		translator.binaryOp("A-D", "sub"); err = translator.parseRemainContent(line)
	case kwAnd:
		translator.binaryOp("D&A", "and"); err = translator.parseRemainContent(line)
	case kwOr:
		translator.binaryOp("D|A", "or"); err = translator.parseRemainContent(line)
	case kwNeg:
		translator.unaryOp("-M", "neg"); err = translator.parseRemainContent(line)
	case kwNot:
		translator.unaryOp("!M", "not"); err = translator.parseRemainContent(line)
	case kwEq:
		err = translator.parseComparison("JEQ", line)
	case kwGt:
		err = translator.parseComparison("JGT", line)
	case kwLt:
		err = translator.parseComparison("JLT", line)
	case kwLabel:
		err = translator.parseLabel(line)
	case kwIfGoto:
		err = translator.parseIfGoto(line)
	case kwGoto:
		err = translator.parseGoto(line)
	case kwFunction:
		err = translator.parseFunction(line)
	case kwCall:
		err = translator.parseCall(line)
	case kwReturn:
		translator.parseReturn(); err = translator.parseRemainContent(line)
	default:
		err = translator.makeError(token)
	}
	return err
}

func (translator *VMTranslator) parsePushPop(op keyword, line []byte) error {
	token, rest := translator.getNextToken(line)
	if len(token) == 0 {
		return translator.makeError(token)
	}
	segKw, ok := keywords[strings.ToUpper(token)]
	if !ok {
		return translator.makeError(token)
	}
	value, rest, err := translator.getIntegerValue(rest)
	if err != nil {
		return err
	}
	switch segKw {
	case kwConstant:
		if op == kwPush {
			translator.pushConstant(value)
		} else {
			translator.popConstant()
		}
	case kwPointer:
		translator.pushOrPopFixed(op, hack.PointerBase, value, fmt.Sprintf("pointer %d", value))
	case kwTemp:
		translator.pushOrPopFixed(op, hack.TempBase, value, fmt.Sprintf("temp %d", value))
	case kwStatic:
		translator.pushOrPopStatic(op, value)
	case kwArgument:
		translator.pushOrPopSegment(op, "ARG", value)
	case kwLocal:
		translator.pushOrPopSegment(op, "LCL", value)
	case kwThis:
		translator.pushOrPopSegment(op, "THIS", value)
	case kwThat:
		translator.pushOrPopSegment(op, "THAT", value)
	default:
		return translator.makeError(token)
	}
	return translator.parseRemainContent(rest)
}

func (translator *VMTranslator) pushConstant(value int) {
	fmt.Fprintf(&translator.output, "// push constant %d\n@%d\nD=A\n", value, value)
	translator.pushD()
}

func (translator *VMTranslator) popConstant() {
	translator.output.WriteString("// pop constant\n@SP\nM=M-1\n")
}

// pushOrPopSegment handles local/argument/this/that, whose base address
// lives in a register (LCL/ARG/THIS/THAT).
func (translator *VMTranslator) pushOrPopSegment(op keyword, base string, index int) {
	if op == kwPush {
		fmt.Fprintf(&translator.output, "// push %s %d\n@%d\nD=A\n@%s\nA=D+M\nD=M\n", base, index, index, base)
		translator.pushD()
		return
	}
	fmt.Fprintf(&translator.output, "// pop %s %d\n@%d\nD=A\n@%s\nD=D+M\n@R13\nM=D\n", base, index, index, base)
	translator.popToD()
	translator.output.WriteString("@R13\nA=M\nM=D\n")
}

// pushOrPopFixed handles pointer/temp, whose base is a fixed numeric
// address rather than a register.
func (translator *VMTranslator) pushOrPopFixed(op keyword, base hack.Word, index int, label string) {
	if op == kwPush {
		fmt.Fprintf(&translator.output, "// push %s\n@%d\nD=A\n@%d\nA=D+A\nD=M\n", label, index, base)
		translator.pushD()
		return
	}
	fmt.Fprintf(&translator.output, "// pop %s\n@%d\nD=A\n@%d\nD=D+A\n@R13\nM=D\n", label, index, base)
	translator.popToD()
	translator.output.WriteString("@R13\nA=M\nM=D\n")
}

// pushOrPopStatic uses a per-file symbol $Filename.index, so two files
// translated together never collide on their static segments.
func (translator *VMTranslator) pushOrPopStatic(op keyword, index int) {
	sym := fmt.Sprintf("$%s.%d", translator.fileName, index)
	if op == kwPush {
		fmt.Fprintf(&translator.output, "// push static %d\n@%s\nD=M\n", index, sym)
		translator.pushD()
		return
	}
	translator.popToD()
	fmt.Fprintf(&translator.output, "// pop static %d\n@%s\nM=D\n", index, sym)
}

func (translator *VMTranslator) pushD() {
	translator.output.WriteString("@SP\nA=M\nM=D\n@SP\nM=M+1\n")
}

func (translator *VMTranslator) popToD() {
	translator.output.WriteString("@SP\nAM=M-1\nD=M\n")
}

func (translator *VMTranslator) binaryOp(comp, name string) {
	fmt.Fprintf(&translator.output, "// %s\n@SP\nAM=M-1\nD=M\nA=A-1\nA=M\nD=%s\n@SP\nA=M-1\nM=D\n", name, comp)
}

func (translator *VMTranslator) unaryOp(comp, name string) {
	fmt.Fprintf(&translator.output, "// %s\n@SP\nA=M-1\nM=%s\n", name, comp)
}

// parseComparison lowers eq/gt/lt, each of which needs a uniquely-labeled
// branch to materialize a boolean (-1 or 0) on the stack.
func (translator *VMTranslator) parseComparison(jump string, line []byte) error {
	id := translator.labelNameID
	translator.labelNameID++
	fmt.Fprintf(&translator.output, `// %s
@SP
AM=M-1
D=M
A=A-1
D=M-D
@TRUE_%d
D;%s
D=0
@DONE_%d
0;JMP
(TRUE_%d)
D=-1
(DONE_%d)
@SP
A=M-1
M=D
`, jump, id, jump, id, id, id)
	return translator.parseRemainContent(line)
}

func (translator *VMTranslator) parseLabelName(line []byte) ([]byte, string, error) {
	token, rest := translator.getNextToken(line)
	if len(token) == 0 {
		return nil, "", translator.makeError(token)
	}
	return rest, token, nil
}

func (translator *VMTranslator) getIntegerValue(line []byte) (int, []byte, error) {
	token, rest := translator.getNextToken(line)
	if len(token) == 0 {
		return 0, nil, translator.makeError(token)
	}
	value, err := strconv.Atoi(token)
	if err != nil {
		return 0, nil, translator.makeError(token)
	}
	return value, rest, nil
}

// parseLabel/parseIfGoto/parseGoto scope labels to the current function as
// <fn>$<label>, so the same label name can be reused across functions.
func (translator *VMTranslator) parseLabel(line []byte) error {
	rest, label, err := translator.parseLabelName(line)
	if err != nil {
		return err
	}
	fmt.Fprintf(&translator.output, "(%s)\n", translator.scopedLabel(label))
	return translator.parseRemainContent(rest)
}

func (translator *VMTranslator) parseIfGoto(line []byte) error {
	rest, label, err := translator.parseLabelName(line)
	if err != nil {
		return err
	}
	translator.popToD()
	fmt.Fprintf(&translator.output, "@%s\nD;JNE\n", translator.scopedLabel(label))
	return translator.parseRemainContent(rest)
}

func (translator *VMTranslator) parseGoto(line []byte) error {
	rest, label, err := translator.parseLabelName(line)
	if err != nil {
		return err
	}
	fmt.Fprintf(&translator.output, "@%s\n0;JMP\n", translator.scopedLabel(label))
	return translator.parseRemainContent(rest)
}

func (translator *VMTranslator) scopedLabel(label string) string {
	return translator.currentFunction + "$" + label
}

// parseFunction emits the function's entry label then pushes k zeroed
// locals.
func (translator *VMTranslator) parseFunction(line []byte) error {
	rest, funcName, err := translator.parseLabelName(line)
	if err != nil {
		return err
	}
	localCount, rest, err := translator.getIntegerValue(rest)
	if err != nil {
		return err
	}
	translator.currentFunction = funcName
	fmt.Fprintf(&translator.output, "// function %s %d\n(%s)\n", funcName, localCount, funcName)
	for i := 0; i < localCount; i++ {
		translator.pushConstant(0)
	}
	return translator.parseRemainContent(rest)
}

// parseCall implements the calling convention: push a unique return
// address then the caller's LCL/ARG/THIS/THAT, set ARG=SP-n-5 and
// LCL=SP, then jump.
func (translator *VMTranslator) parseCall(line []byte) error {
	rest, funcName, err := translator.parseLabelName(line)
	if err != nil {
		return err
	}
	argCount, rest, err := translator.getIntegerValue(rest)
	if err != nil {
		return err
	}
	id := translator.funcCallID
	translator.funcCallID++
	returnLabel := fmt.Sprintf("%s$ret.%d", funcName, id)
	fmt.Fprintf(&translator.output, `// call %s %d
@%s
D=A
`, funcName, argCount, returnLabel)
	translator.pushD()
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		fmt.Fprintf(&translator.output, "@%s\nD=M\n", reg)
		translator.pushD()
	}
	fmt.Fprintf(&translator.output, `@%d
D=A
@5
D=D+A
@SP
D=M-D
@ARG
M=D
@SP
D=M
@LCL
M=D
@%s
0;JMP
(%s)
`, argCount, funcName, returnLabel)
	return translator.parseRemainContent(rest)
}

// parseReturn implements the return sequence: stash the caller's frame
// pointer, move the return value to *ARG, reposition SP, restore the
// caller's segment pointers in reverse order, then jump to the return
// address.
func (translator *VMTranslator) parseReturn() {
	translator.output.WriteString(`// return
@5
D=A
@LCL
A=M-D
D=M
@R13
M=D
@SP
A=M-1
D=M
@ARG
A=M
M=D
@ARG
D=M+1
@SP
M=D
@LCL
A=M-1
D=M
@THAT
M=D
@2
D=A
@LCL
A=M-D
D=M
@THIS
M=D
@3
D=A
@LCL
A=M-D
D=M
@ARG
M=D
@4
D=A
@LCL
A=M-D
D=M
@LCL
M=D
@R13
A=M
0;JMP
`)
}

func (translator *VMTranslator) parseRemainContent(line []byte) error {
	remain := bytes.TrimSpace(line)
	if len(remain) == 0 {
		return nil
	}
	if len(remain) >= 2 && remain[0] == '/' && remain[1] == '/' {
		return nil
	}
	return translator.makeError(string(remain))
}

func (translator *VMTranslator) makeError(near string) error {
	return &TranslateError{File: translator.fileName, Line: translator.lineCounter, Near: near}
}

func (translator *VMTranslator) SaveTo(filepath string) error {
	return ioutil.WriteFile(filepath, translator.output.Bytes(), 0666)
}

// Output returns the generated assembly text accumulated so far.
func (translator *VMTranslator) Output() string {
	return translator.output.String()
}
