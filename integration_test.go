// Package hacktools_test exercises the whole pipeline end to end: a
// source file goes in one side, a running CPU comes out the other. Every
// other test in this module is package-scoped and stops at VM-text or
// ROM shape; these assert on actual post-execution machine state.
package hacktools_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	hackassemble "hacktools/hack-assemble"
	emulate "hacktools/hack-emulate"
	jackcompile "hacktools/jack-compile"
	vmtranslate "hacktools/hack-vm-translate"
)

// assembleAndRun feeds assembly text through hack-assemble then
// hack-emulate, running until the program self-halts or the step
// budget runs out, and returns the final CPU.
func assembleAndRun(t *testing.T, asm string, budget int) *emulate.CPU {
	t.Helper()
	assembler := hackassemble.CreateAssembler()
	_, err := assembler.Parse(strings.NewReader(asm))
	assert.NoError(t, err)

	cpu := emulate.New()
	err = cpu.LoadROM(strings.NewReader(assembler.ConvertCommandsToString()))
	assert.NoError(t, err)

	remaining := budget
	for remaining > 0 {
		executed := cpu.Step(remaining)
		remaining -= executed
		if executed == 0 {
			break // self-loop reached
		}
	}
	return cpu
}

// TestScenarioAddAsm covers spec scenario 1: a hand-written .asm program
// computing 2+3 and storing the result directly at RAM[0].
func TestScenarioAddAsm(t *testing.T) {
	asm := "@2\nD=A\n@3\nD=D+A\n@0\nM=D\n"
	cpu := assembleAndRun(t, asm, 100)
	assert.EqualValues(t, 5, cpu.Memory()[0])
}

// TestScenarioMaxJack covers spec scenario 2: a compiled Jack function
// computing max(7,3), reached through the full jack-compile ->
// hack-vm-translate -> hack-assemble -> hack-emulate pipeline.
// Sys.init is hand-written VM (the Jack OS itself is out of scope) and
// stores the call's result at RAM[0] via the this/that pointer segments
// before self-looping, the same pattern Jack's Sys.halt compiles to.
func TestScenarioMaxJack(t *testing.T) {
	dir := t.TempDir()
	mainSrc := `class Main {
		function int max(int a, int b) {
			if (a > b) {
				return a;
			}
			return b;
		}
	}`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "Main.jack"), []byte(mainSrc), 0o644))

	written, err := jackcompile.CompileDir(dir)
	assert.NoError(t, err)
	assert.Len(t, written, 1)

	sysVM := `function Sys.init 0
push constant 7
push constant 3
call Main.max 2
pop temp 0
push constant 0
pop pointer 1
push temp 0
pop that 0
label HALT
goto HALT
`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "Sys.vm"), []byte(sysVM), 0o644))

	translator := vmtranslate.NewVMTranslator()
	assert.NoError(t, translator.TranslateDir(dir, true))

	cpu := assembleAndRun(t, translator.Output(), 200_000)
	assert.EqualValues(t, 7, cpu.Memory()[0])
}

// TestScenarioSelfLoopHalt covers spec scenario 5: a ROM ending in an
// unconditional self-jump must stop well short of the step budget
// instead of burning the whole budget spinning.
func TestScenarioSelfLoopHalt(t *testing.T) {
	asm := "@1\nD=A\n@END\n(END)\n@END\n0;JMP\n"
	cpu := assembleAndRun(t, asm, 1_000_000)
	assert.EqualValues(t, 1, cpu.State().D)
}

// TestScenarioKeyboardEcho covers spec scenario 6: copying the keyboard
// register into RAM[0] reflects whatever SetKeyboard last wrote.
func TestScenarioKeyboardEcho(t *testing.T) {
	asm := "@24576\nD=M\n@0\nM=D\n@END\n(END)\n@END\n0;JMP\n"
	assembler := hackassemble.CreateAssembler()
	_, err := assembler.Parse(strings.NewReader(asm))
	assert.NoError(t, err)

	cpu := emulate.New()
	assert.NoError(t, cpu.LoadROM(strings.NewReader(assembler.ConvertCommandsToString())))
	cpu.SetKeyboard(65)

	remaining := 100
	for remaining > 0 {
		executed := cpu.Step(remaining)
		remaining -= executed
		if executed == 0 {
			break
		}
	}
	assert.EqualValues(t, 65, cpu.Memory()[0])
}
