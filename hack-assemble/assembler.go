// Package hackassemble is a two-pass assembler for the Hack machine
// language. It resolves labels and variables in a first pass over the
// instruction stream, then emits one 16-character binary line per
// instruction in a second pass.
package hackassemble

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"regexp"
	"strconv"

	"hacktools/hack"
)

// The most ambiguous instruction is the A-instruction: @something can be
// * @10, a decimal constant loaded directly into A.
// * @label, the instruction address of a (label) that may appear later.
// * @R0..@R15 or another predefined symbol (SP, SCREEN, KBD, ...).
// * @variable, a user symbol allocated the next free RAM slot starting at 16.
//
// We can't tell label from variable on a single pass, since a label may be
// referenced before its declaration. So references are queued and resolved
// after the whole file has been walked once.

type Assembler struct {
	line                   int
	baseMemoryAddr         int
	currentInstructionAddr int
	currentMemoryAddr      int
	labelLocationMap       map[string]int
	symbolLocations        []symbolLocation
	commands               []Command
}

type symbolLocation struct {
	symbol string
	line   int // index into commands, not source line
}

func CreateAssembler() *Assembler {
	return &Assembler{
		line:             1,
		baseMemoryAddr:   16,
		labelLocationMap: map[string]int{},
	}
}

type CommandType int

const (
	ACommandConstant CommandType = iota
	ACommandSymbol
	CCommand
)

type Command struct {
	Tp              CommandType
	Code            string
	Line            int
	OriginalContent string
}

func (command Command) String() string {
	return fmt.Sprintf("Command: {Tp: %d, Code: %s, Line: %d, OriginalContent: %s}",
		command.Tp, command.Code, command.Line, command.OriginalContent)
}

// Parse reads a sequence of assembly lines and returns the resolved
// instruction stream, one Command per real instruction (labels bind but do
// not emit).
func (asm *Assembler) Parse(rd io.Reader) (ret []Command, err error) {
	bfReader := bufio.NewReader(rd)
	for {
		line, readErr := bfReader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		if len(line) == 0 && readErr == io.EOF {
			asm.resolveSymbols()
			return asm.commands, nil
		}
		trimmed, hasContent := asm.trimLine(line)
		if hasContent {
			if err := asm.transformLine(trimmed); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			asm.resolveSymbols()
			return asm.commands, nil
		}
		asm.line++
	}
}

// resolveSymbols runs after the whole file is walked once, so every
// (label) has already bound in labelLocationMap. Any reference that isn't
// a label gets the next free RAM slot, first-come-first-served.
func (asm *Assembler) resolveSymbols() {
	variableMemAddrMap := map[string]int{}
	for _, ref := range asm.symbolLocations {
		if addr, ok := asm.labelLocationMap[ref.symbol]; ok {
			asm.commands[ref.line].Code = asm.formatCode(addr)
			continue
		}
		addr, ok := variableMemAddrMap[ref.symbol]
		if !ok {
			addr = asm.currentMemoryAddr + asm.baseMemoryAddr
			variableMemAddrMap[ref.symbol] = addr
			asm.currentMemoryAddr++
		}
		asm.commands[ref.line].Code = asm.formatCode(addr)
	}
}

func (asm *Assembler) trimLine(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if idx := bytes.Index(line, []byte("//")); idx != -1 {
		line = bytes.TrimSpace(line[:idx])
	}
	return line, len(line) > 0
}

func (asm *Assembler) transformLine(line []byte) error {
	switch line[0] {
	case '@':
		return asm.transformAOrSymbolCommand(line)
	case '(':
		return asm.transformLabelCommand(line)
	default:
		return asm.transformCCommand(line)
	}
}

func (asm *Assembler) transformComment(line []byte) error {
	if len(line) < 2 || line[1] != '/' {
		return asm.makeSyntaxErr("comment format not correct")
	}
	return nil
}

var symbolFormat = regexp.MustCompile(`^[a-zA-Z_.$:][a-zA-Z0-9_.$:]*$`)

func (asm *Assembler) transformAOrSymbolCommand(line []byte) error {
	originalContent := string(line)
	body := line[1:]
	if len(body) == 0 {
		return asm.makeSyntaxErr("empty A-instruction")
	}
	if body[0] >= '0' && body[0] <= '9' {
		return asm.transformADecimalCommand(line)
	}
	name := string(body)
	if addr, ok := hack.PredefinedSymbols[name]; ok {
		asm.commands = append(asm.commands, Command{
			Tp: ACommandConstant, Code: asm.formatCode(addr), Line: asm.line, OriginalContent: originalContent,
		})
		return nil
	}
	if !symbolFormat.Match(body) {
		return asm.makeSyntaxErr("wrong variable or label format")
	}
	asm.commands = append(asm.commands, Command{
		Tp: ACommandSymbol, Line: asm.line, OriginalContent: originalContent,
	})
	asm.symbolLocations = append(asm.symbolLocations, symbolLocation{symbol: name, line: len(asm.commands) - 1})
	return nil
}

func (asm *Assembler) transformADecimalCommand(line []byte) error {
	originalContent := string(line)
	value, err := strconv.Atoi(string(line[1:]))
	if err != nil {
		return asm.makeSyntaxErr("wrong decimal value format")
	}
	asm.commands = append(asm.commands, Command{
		Tp: ACommandConstant, Code: asm.formatCode(value), Line: asm.line, OriginalContent: originalContent,
	})
	return nil
}

func (asm *Assembler) transformLabelCommand(line []byte) error {
	body := line[1:]
	end := bytes.IndexByte(body, ')')
	if end == -1 || !symbolFormat.Match(body[:end]) {
		return asm.makeSyntaxErr("wrong label format")
	}
	label := string(body[:end])
	if _, exists := asm.labelLocationMap[label]; exists {
		return asm.makeSyntaxErr("found duplicate label " + label)
	}
	// Labels bind to the address of the next real instruction, which is
	// simply the number of Commands emitted so far.
	asm.labelLocationMap[label] = len(asm.commands)
	return nil
}

// transformCCommand parses dest=comp;jump where dest and jump are both
// optional.
func (asm *Assembler) transformCCommand(line []byte) error {
	originalContent := string(line)
	destStr, rest, err := asm.parseDest(line)
	if err != nil {
		return err
	}
	jumpStr, compPart, err := asm.parseJump(rest)
	if err != nil {
		return err
	}
	compStr, err := asm.parseComp(compPart)
	if err != nil {
		return err
	}
	code := "111" + compStr + destStr + jumpStr
	asm.commands = append(asm.commands, Command{
		Tp: CCommand, Code: code, Line: asm.line, OriginalContent: originalContent,
	})
	return nil
}

func (asm *Assembler) parseDest(line []byte) (string, []byte, error) {
	eq := bytes.IndexByte(line, '=')
	if eq == -1 {
		return hack.DestCode[""], line, nil
	}
	code, ok := hack.DestCode[string(line[:eq])]
	if !ok {
		return "", nil, asm.makeSyntaxErr(fmt.Sprintf("wrong dest near %s", string(line)))
	}
	return code, line[eq+1:], nil
}

func (asm *Assembler) parseJump(line []byte) (string, []byte, error) {
	semi := bytes.IndexByte(line, ';')
	if semi == -1 {
		return hack.JumpCode[""], line, nil
	}
	code, ok := hack.JumpCode[string(line[semi+1:])]
	if !ok {
		return "", nil, asm.makeSyntaxErr(fmt.Sprintf("wrong jump near %s", string(line)))
	}
	return code, line[:semi], nil
}

func (asm *Assembler) parseComp(line []byte) (string, error) {
	code, ok := hack.CompCode[string(line)]
	if !ok {
		return "", asm.makeSyntaxErr(fmt.Sprintf("wrong comp near %s", string(line)))
	}
	return code, nil
}

// formatCode renders addr as a 16-character two's-complement binary line.
func (asm *Assembler) formatCode(addr int) string {
	code := [16]byte{}
	for j := 15; j >= 0; j-- {
		code[j] = byte(addr&1) + '0'
		addr >>= 1
	}
	return string(code[:])
}

func (asm *Assembler) makeSyntaxErr(msg string) error {
	return &AssembleError{Line: asm.line, Msg: msg}
}

// AssembleError reports a syntax problem at a specific source line.
type AssembleError struct {
	Line int
	Msg  string
}

func (e *AssembleError) Error() string {
	return fmt.Sprintf("syntax err at line %d: %s", e.Line, e.Msg)
}

func (asm *Assembler) ConvertCommandsToString() string {
	bf := bytes.Buffer{}
	for _, command := range asm.commands {
		bf.WriteString(command.Code)
		bf.WriteString("\n")
	}
	return bf.String()
}

func (asm *Assembler) SaveMachineCodeToFile(filePath string) error {
	return ioutil.WriteFile(filePath, []byte(asm.ConvertCommandsToString()), 0666)
}
