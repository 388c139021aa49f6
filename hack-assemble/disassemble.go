package hackassemble

import (
	"fmt"

	"hacktools/hack"
)

// Disassemble reverses the ALU table to recover mnemonic text from binary
// lines produced by this assembler. It exists to exercise the round-trip
// testable property (assemble then disassemble a valid .asm yields the
// same semantic instructions) and is not part of the CLI surface.
func Disassemble(lines []string) ([]string, error) {
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if len(line) != 16 {
			return nil, fmt.Errorf("disassemble: line %d is not 16 bits: %q", i, line)
		}
		if line[0] == '0' {
			addr := 0
			for _, c := range line[1:] {
				addr = addr<<1 | int(c-'0')
			}
			out = append(out, fmt.Sprintf("@%d", addr))
			continue
		}
		compBits, destBits, jumpBits := line[3:10], line[10:13], line[13:16]
		comp, ok := hack.CompCodeReverse[compBits]
		if !ok {
			return nil, fmt.Errorf("disassemble: unknown comp bits %q at line %d", compBits, i)
		}
		dest := hack.DestCodeReverse[destBits]
		jump := hack.JumpCodeReverse[jumpBits]
		text := comp
		if dest != "" {
			text = dest + "=" + text
		}
		if jump != "" {
			text = text + ";" + jump
		}
		out = append(out, text)
	}
	return out, nil
}
