package vmtranslate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestPushConstant(t *testing.T) {
	tr := NewVMTranslator()
	tr.pushConstant(17)
	out := tr.output.String()
	assert.Contains(t, out, "@17")
	assert.Contains(t, out, "D=A")
	assert.Contains(t, out, "@SP")
}

func TestPushPopSegment(t *testing.T) {
	tr := NewVMTranslator()
	assert.Nil(t, tr.parseLine([]byte("push local 2")))
	assert.Nil(t, tr.parseLine([]byte("pop argument 1")))
	out := tr.output.String()
	assert.Contains(t, out, "@LCL")
	assert.Contains(t, out, "@ARG")
}

func TestPushPopFixed(t *testing.T) {
	tr := NewVMTranslator()
	assert.Nil(t, tr.parseLine([]byte("push temp 3")))
	assert.Nil(t, tr.parseLine([]byte("pop pointer 0")))
	out := tr.output.String()
	assert.Contains(t, out, "push temp")
	assert.Contains(t, out, "pop pointer")
}

func TestPushPopStaticIsPerFile(t *testing.T) {
	tr := NewVMTranslator()
	tr.fileName = "Foo"
	assert.Nil(t, tr.parseLine([]byte("push static 3")))
	assert.Contains(t, tr.output.String(), "@$Foo.3")
}

// TestArithmeticScenario checks that translating push 7, push 8, add emits
// the add block and both constants; it inspects the assembly text only and
// does not run it.
func TestArithmeticScenario(t *testing.T) {
	tr := NewVMTranslator()
	src := "push constant 7\npush constant 8\nadd\n"
	assert.Nil(t, tr.Parse(strings.NewReader(src)))
	out := tr.output.String()
	assert.Contains(t, out, "// add")
	assert.Contains(t, out, "@7")
	assert.Contains(t, out, "@8")
}

func TestComparisonEmitsUniqueLabels(t *testing.T) {
	tr := NewVMTranslator()
	src := "push constant 1\npush constant 2\neq\npush constant 1\npush constant 2\nlt\n"
	assert.Nil(t, tr.Parse(strings.NewReader(src)))
	out := tr.output.String()
	assert.Contains(t, out, "(TRUE_0)")
	assert.Contains(t, out, "(DONE_0)")
	assert.Contains(t, out, "(TRUE_1)")
	assert.Contains(t, out, "(DONE_1)")
}

func TestLabelsAreScopedToFunction(t *testing.T) {
	tr := NewVMTranslator()
	src := "function Foo.bar 0\nlabel LOOP\ngoto LOOP\n"
	assert.Nil(t, tr.Parse(strings.NewReader(src)))
	out := tr.output.String()
	assert.Contains(t, out, "(Foo.bar$LOOP)")
	assert.Contains(t, out, "@Foo.bar$LOOP")
}

// TestCallReturnScenario checks that a call emits its unique return label
// and sets ARG/LCL before jumping. The restore order of return is checked
// by TestReturnRestoresSegmentsInReverseOrder.
func TestCallReturnScenario(t *testing.T) {
	tr := NewVMTranslator()
	src := "function Foo.bar 2\ncall Foo.bar 3\n"
	assert.Nil(t, tr.Parse(strings.NewReader(src)))
	out := tr.output.String()
	assert.Contains(t, out, "(Foo.bar)")
	assert.Contains(t, out, "Foo.bar$ret.0")
	assert.Contains(t, out, "@ARG\nM=D")
	assert.Contains(t, out, "@LCL\nM=D")
}

func TestReturnRestoresSegmentsInReverseOrder(t *testing.T) {
	tr := NewVMTranslator()
	tr.parseReturn()
	out := tr.output.String()
	thatIdx := strings.Index(out, "@THAT")
	thisIdx := strings.Index(out, "@THIS")
	// The first @ARG writes the return value to *ARG; the last restores ARG.
	argIdx := strings.LastIndex(out, "@ARG")
	lclIdx := strings.LastIndex(out, "@LCL")
	assert.True(t, thatIdx < thisIdx)
	assert.True(t, thisIdx < argIdx)
	assert.True(t, argIdx < lclIdx)
}

func TestOrderedVMFilesPutsSysFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Zeta.vm", "Alpha.vm", "Sys.vm", "Main.vm"} {
		writeTempFile(t, dir, name)
	}
	files, err := orderedVMFiles(dir)
	assert.Nil(t, err)
	assert.Equal(t, []string{"Sys.vm", "Alpha.vm", "Main.vm", "Zeta.vm"}, files)
}

func TestOrderedVMFilesWithoutSys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Zeta.vm", "Alpha.vm"} {
		writeTempFile(t, dir, name)
	}
	files, err := orderedVMFiles(dir)
	assert.Nil(t, err)
	assert.Equal(t, []string{"Alpha.vm", "Zeta.vm"}, files)
}

// TestTranslationIsDeterministic runs the same source through two fresh
// translators and diffs the output with go-cmp - the translator carries
// no hidden state (label counters reset per instance) that could make two
// runs over identical input diverge.
func TestTranslationIsDeterministic(t *testing.T) {
	src := "function Foo.bar 1\npush constant 7\npush constant 8\neq\ncall Foo.bar 0\nreturn\n"
	tr1 := NewVMTranslator()
	assert.Nil(t, tr1.Parse(strings.NewReader(src)))
	tr2 := NewVMTranslator()
	assert.Nil(t, tr2.Parse(strings.NewReader(src)))
	if diff := cmp.Diff(tr1.output.String(), tr2.output.String()); diff != "" {
		t.Errorf("translation is not deterministic (-run1 +run2):\n%s", diff)
	}
}

func writeTempFile(t *testing.T, dir, name string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	assert.Nil(t, err)
	f.Close()
}
