package jackcompile

import (
	"os"
	"path/filepath"
	"strings"
)

// CompileFile tokenizes, parses, and generates code for a single .jack
// file, returning the VM text for its one class.
func CompileFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	tokenizer := &Tokenizer{}
	tokens, err := tokenizer.Tokenize(f)
	if err != nil {
		return "", err
	}
	class, err := newParser(path, tokens).ParseClass()
	if err != nil {
		return "", err
	}
	return GenerateClass(class)
}

// CompileDir compiles every .jack file in dir, writing a sibling .vm file
// for each one, and returns the list of .vm files written.
func CompileDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, entry := range entries {
		if entry.IsDir() || !isJackFile(entry.Name()) {
			continue
		}
		src := filepath.Join(dir, entry.Name())
		vm, err := CompileFile(src)
		if err != nil {
			return nil, err
		}
		dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".vm"
		if err := os.WriteFile(dst, []byte(vm), 0o644); err != nil {
			return nil, err
		}
		written = append(written, dst)
	}
	return written, nil
}

func isJackFile(name string) bool {
	return strings.HasSuffix(name, ".jack")
}
