// Package emulate is a cycle-level emulator for the Hack machine:
// fetch-decode-execute over a fixed 32K RAM/ROM, deriving every ALU result
// straight from the instruction's six control bits rather than looking
// comp mnemonics back up in a table, the way the assembler does.
package emulate

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"hacktools/hack"
)

// CPU holds the full machine state: RAM (including the memory-mapped
// screen and keyboard register), the loaded ROM, and the A/D/PC
// registers. M is never stored directly - it's always RAM[A].
type CPU struct {
	RAM    [hack.RamSize]hack.Word
	ROM    [hack.RomSize]hack.Word
	RomLen int
	PC     hack.Word
	A      hack.Word
	D      hack.Word
}

func New() *CPU {
	return &CPU{}
}

// CPUState is a read-only snapshot of the registers, useful for tests and
// the CLI's final report.
type CPUState struct {
	A, D, M, PC hack.Word
}

func (c *CPU) State() CPUState {
	return CPUState{A: c.A, D: c.D, M: c.RAM[hack.Addr(c.A)], PC: c.PC}
}

// Memory returns a read-only view over RAM. Callers must not mutate it.
func (c *CPU) Memory() []hack.Word {
	return c.RAM[:]
}

// SetKeyboard writes the current scancode into the keyboard register.
func (c *CPU) SetKeyboard(code hack.Word) {
	c.RAM[hack.Addr(hack.KbdAddr)] = code
}

// RomError reports a malformed line while loading a .hack binary image.
type RomError struct {
	Line int
	Msg  string
}

func (e *RomError) Error() string {
	return fmt.Sprintf("rom error at line %d: %s", e.Line, e.Msg)
}

// LoadROM reads whitespace-trimmed lines of exactly 16 '0'/'1' characters,
// one per instruction, and resets the machine to power-on state: PC, A, D
// zeroed and RAM cleared, so a CPU can be reused across multiple ROMs.
func (c *CPU) LoadROM(r io.Reader) error {
	var rom [hack.RomSize]hack.Word
	n := 0
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		word, err := parseBinaryLine(text)
		if err != nil {
			return &RomError{Line: line, Msg: err.Error()}
		}
		if n >= hack.RomSize {
			return &RomError{Line: line, Msg: "program exceeds ROM size"}
		}
		rom[n] = word
		n++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	c.ROM = rom
	c.RomLen = n
	c.RAM = [hack.RamSize]hack.Word{}
	c.PC, c.A, c.D = 0, 0, 0
	return nil
}

func parseBinaryLine(s string) (hack.Word, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("expected 16 bits, got %d", len(s))
	}
	var v uint16
	for i := 0; i < 16; i++ {
		v <<= 1
		switch s[i] {
		case '0':
		case '1':
			v |= 1
		default:
			return 0, fmt.Errorf("non-binary character %q", s[i])
		}
	}
	return hack.Word(v), nil
}

// Step executes up to n instructions and returns how many actually ran.
// It stops early, without consuming the rest of the budget, the instant
// PC lands on an unconditional self-loop - an A-instruction loading PC's
// own address immediately followed by 0;JMP - since that's the idiom
// every Hack program halts with and running past it would just spin.
func (c *CPU) Step(n int) int {
	executed := 0
	for executed < n {
		if c.atSelfLoop() {
			return executed
		}
		c.step()
		executed++
	}
	return executed
}

// atSelfLoop detects "(LOOP) @LOOP 0;JMP": PC sits on an A-instruction
// whose operand is PC's own address, immediately followed by an
// unconditional jump. Once the A-instruction re-executes, it reloads the
// same address and the jump sends PC right back - an infinite loop no
// further stepping can escape.
func (c *CPU) atSelfLoop() bool {
	if c.PC < 0 || int(c.PC)+1 >= c.RomLen {
		return false
	}
	instr := c.ROM[c.PC]
	if instr < 0 {
		return false // C-instruction, not a loop entry
	}
	if hack.Addr(instr) != int(c.PC) {
		return false
	}
	return isUnconditionalJump(c.ROM[c.PC+1])
}

func isUnconditionalJump(instr hack.Word) bool {
	if instr >= 0 {
		return false
	}
	jBits := instr & 0x7
	compBits := (instr >> 6) & 0x7F
	// 0;JMP is comp=0 (0101010) with jump=111.
	return jBits == 0x7 && compBits == 0x2A
}

func (c *CPU) step() {
	instr := c.ROM[hack.Addr(c.PC)]
	if instr >= 0 {
		c.A = instr
		c.PC++
		return
	}
	a := (instr >> 12) & 1
	comp := (instr >> 6) & 0x3F
	dest := (instr >> 3) & 0x7
	jump := instr & 0x7

	x := c.D
	var y hack.Word
	if a == 1 {
		y = c.RAM[hack.Addr(c.A)]
	} else {
		y = c.A
	}
	result := alu(x, y, comp)
	// M is addressed by A as it was before this instruction's writes.
	addr := hack.Addr(c.A)

	if dest&0x4 != 0 { // A
		c.A = result
	}
	if dest&0x2 != 0 { // D
		c.D = result
	}
	if dest&0x1 != 0 { // M
		c.RAM[addr] = result
	}

	jumped := false
	switch {
	case jump == 0x7:
		jumped = true
	case jump == 0x1 && result > 0:
		jumped = true
	case jump == 0x2 && result == 0:
		jumped = true
	case jump == 0x3 && result >= 0:
		jumped = true
	case jump == 0x4 && result < 0:
		jumped = true
	case jump == 0x5 && result != 0:
		jumped = true
	case jump == 0x6 && result <= 0:
		jumped = true
	}
	if jumped {
		c.PC = c.A
	} else {
		c.PC++
	}
}

// alu computes the standard Hack ALU from its 6 control bits (zx nx zy ny
// f no, MSB first in comp), mirroring the hardware truth table rather than
// going through the assembler's mnemonic lookup - this is the one place
// the spec calls for bit-level evaluation.
func alu(x, y hack.Word, comp hack.Word) hack.Word {
	zx := comp&0x20 != 0
	nx := comp&0x10 != 0
	zy := comp&0x08 != 0
	ny := comp&0x04 != 0
	f := comp&0x02 != 0
	no := comp&0x01 != 0

	if zx {
		x = 0
	}
	if nx {
		x = ^x
	}
	if zy {
		y = 0
	}
	if ny {
		y = ^y
	}
	var out hack.Word
	if f {
		out = x + y
	} else {
		out = x & y
	}
	if no {
		out = ^out
	}
	return out
}

// ScreenImage renders the 512x256 screen memory into a BGRA pixel buffer,
// on pixels drawn green and off pixels black, per the Hack screen's
// word-major, bit-b-is-column-(w*16+b) layout.
func (c *CPU) ScreenImage() []byte {
	const width, height = 512, 256
	buf := make([]byte, width*height*4)
	for row := 0; row < height; row++ {
		rowBase := hack.Addr(hack.ScreenBase) + row*32
		for col := 0; col < 32; col++ {
			word := c.RAM[rowBase+col]
			for b := 0; b < 16; b++ {
				on := word&(1<<uint(b)) != 0
				x := col*16 + b
				idx := (row*width + x) * 4
				if on {
					buf[idx+1] = 0xFF // G
				}
				buf[idx+3] = 0xFF // A
			}
		}
	}
	return buf
}
