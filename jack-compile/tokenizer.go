// Package jackcompile lowers Jack source classes to stack-VM commands.
package jackcompile

import (
	"bufio"
	"fmt"
	"io"

	"hacktools/util"
)

// Hack's source language has those token classes:
// * Keyword: class, constructor, function, method, field, static, var, int, char, boolean, void,
//   true, false, null, this, let, do, if, else, while, return.
// * Symbol: { } ( ) [ ] . , ; + - * / & | < > = ~
// * Constant: integer, string ("xxx")
// * Identifier: letters, digits, underscore, not starting with a digit.
// * Comment: /* */, //.

type TokenType int

const (
	ClassTP TokenType = iota
	ConstructorTP
	FunctionTP
	MethodTP
	FieldTP
	StaticTP
	VarTP
	IntTP
	CharTP
	BooleanTP
	VoidTP
	TrueTP
	FalseTP
	NullTP
	ThisTP
	LetTP
	DoTP
	IfTP
	ElseTP
	WhileTP
	ReturnTP
	LeftBraceTP
	RightBraceTP
	LeftParenTP
	RightParenTP
	LeftBracketTP
	RightBracketTP
	DotTP
	CommaTP
	SemiColonTP
	AddTP
	MinusTP
	MultiplyTP
	DivideTP
	AndTP
	OrTP
	GreaterTP
	LessTP
	EqualTP
	NotTP
	IntegerTP
	StringTP
	IdentifierTP
	EOFTP
)

var keyWordTokenTPMap = map[string]TokenType{
	"class": ClassTP, "constructor": ConstructorTP, "function": FunctionTP, "method": MethodTP,
	"field": FieldTP, "static": StaticTP, "var": VarTP, "int": IntTP, "char": CharTP,
	"boolean": BooleanTP, "void": VoidTP, "true": TrueTP, "false": FalseTP, "null": NullTP,
	"this": ThisTP, "let": LetTP, "do": DoTP, "if": IfTP, "else": ElseTP, "while": WhileTP,
	"return": ReturnTP,
}

var simpleSymbolTokenTPMap = map[byte]TokenType{
	'{': LeftBraceTP, '}': RightBraceTP, '(': LeftParenTP, ')': RightParenTP,
	'[': LeftBracketTP, ']': RightBracketTP, '.': DotTP, ',': CommaTP, ';': SemiColonTP,
	'+': AddTP, '-': MinusTP, '*': MultiplyTP, '&': AndTP, '|': OrTP,
	'>': GreaterTP, '<': LessTP, '=': EqualTP, '~': NotTP,
}

type Token struct {
	Content string
	Line    int
	TP      TokenType
}

// LexError reports a problem at a specific source line while tokenizing.
type LexError struct {
	Line int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at line %d: %s", e.Line, e.Msg)
}

type Tokenizer struct {
	currentPos  int
	currentLine int
	tokens      []*Token
}

// Tokenize reads a whole .jack file and returns its token stream, stripping
// line and block comments as it goes.
func (tokenizer *Tokenizer) Tokenize(rd io.Reader) ([]*Token, error) {
	bfReader := bufio.NewReader(rd)
	tokenizer.currentLine = 1
	for {
		line, readErr := bfReader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		if len(line) > 0 {
			tokenizer.currentPos = 0
			if err := tokenizer.parseLine(bfReader, line); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			return tokenizer.tokens, nil
		}
		tokenizer.currentLine++
	}
}

func (tokenizer *Tokenizer) parseLine(rd *bufio.Reader, line []byte) error {
	for {
		tokenizer.skipSpace(line)
		if tokenizer.currentPos >= len(line) {
			return nil
		}
		c := line[tokenizer.currentPos]
		switch {
		case c == '/':
			done, rest, err := tokenizer.consumeCommentOrDivide(rd, line)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			line = rest
		case c == '"':
			token, err := tokenizer.tokenString(line)
			if err != nil {
				return err
			}
			tokenizer.tokens = append(tokenizer.tokens, token)
		case isSymbolByte(c):
			tokenizer.tokens = append(tokenizer.tokens, tokenizer.tokenSimpleSymbol(line))
		case c >= '0' && c <= '9':
			tokenizer.tokens = append(tokenizer.tokens, tokenizer.tokenNumber(line))
		case util.IsLetterOrUnderscore(c):
			tokenizer.tokens = append(tokenizer.tokens, tokenizer.tokenKeywordOrIdentifier(line))
		default:
			return tokenizer.makeError(fmt.Sprintf("unexpected character %q", c))
		}
	}
}

func isSymbolByte(c byte) bool {
	_, ok := simpleSymbolTokenTPMap[c]
	return ok
}

func (tokenizer *Tokenizer) skipSpace(line []byte) {
	for tokenizer.currentPos < len(line) {
		switch line[tokenizer.currentPos] {
		case ' ', '\t', '\r', '\n':
			tokenizer.currentPos++
			continue
		}
		return
	}
}

func (tokenizer *Tokenizer) tokenSimpleSymbol(line []byte) *Token {
	c := line[tokenizer.currentPos]
	token := &Token{Content: string(c), Line: tokenizer.currentLine, TP: simpleSymbolTokenTPMap[c]}
	tokenizer.currentPos++
	return token
}

// consumeCommentOrDivide handles '/', which may start //, /*, or just be the
// divide operator. done reports whether the rest of the physical line has
// been swallowed by a comment.
func (tokenizer *Tokenizer) consumeCommentOrDivide(rd *bufio.Reader, line []byte) (done bool, rest []byte, err error) {
	next := tokenizer.currentPos + 1
	if next >= len(line) || (line[next] != '/' && line[next] != '*') {
		tokenizer.tokens = append(tokenizer.tokens, &Token{Content: "/", Line: tokenizer.currentLine, TP: DivideTP})
		tokenizer.currentPos++
		return false, line, nil
	}
	if line[next] == '/' {
		return true, nil, nil
	}
	rest, err = tokenizer.skipBlockComment(rd, line)
	return false, rest, err
}

// skipBlockComment consumes bytes (pulling further lines as needed) until
// the matching */, tracking nesting depth the way the reference compiler's
// lexer does.
func (tokenizer *Tokenizer) skipBlockComment(rd *bufio.Reader, line []byte) ([]byte, error) {
	startLine := tokenizer.currentLine
	depth := 1
	pos := tokenizer.currentPos + 2
	for {
		for pos < len(line) {
			if pos+1 < len(line) && line[pos] == '/' && line[pos+1] == '*' {
				depth++
				pos += 2
				continue
			}
			if pos+1 < len(line) && line[pos] == '*' && line[pos+1] == '/' {
				depth--
				pos += 2
				if depth == 0 {
					tokenizer.currentPos = pos
					return line, nil
				}
				continue
			}
			pos++
		}
		next, readErr := rd.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		if len(next) == 0 {
			tokenizer.currentLine = startLine
			return nil, tokenizer.makeError("unterminated block comment")
		}
		tokenizer.currentLine++
		line, pos = next, 0
	}
}

func (tokenizer *Tokenizer) tokenString(line []byte) (*Token, error) {
	start := tokenizer.currentPos + 1
	pos := start
	for pos < len(line) && line[pos] != '"' {
		pos++
	}
	if pos >= len(line) {
		return nil, tokenizer.makeError("unterminated string literal")
	}
	token := &Token{Content: string(line[start:pos]), Line: tokenizer.currentLine, TP: StringTP}
	tokenizer.currentPos = pos + 1
	return token, nil
}

func (tokenizer *Tokenizer) tokenNumber(line []byte) *Token {
	start := tokenizer.currentPos
	for tokenizer.currentPos < len(line) && util.IsNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	return &Token{Content: string(line[start:tokenizer.currentPos]), Line: tokenizer.currentLine, TP: IntegerTP}
}

func (tokenizer *Tokenizer) tokenKeywordOrIdentifier(line []byte) *Token {
	start := tokenizer.currentPos
	for tokenizer.currentPos < len(line) && util.IsLetterOrUnderscoreOrNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	content := string(line[start:tokenizer.currentPos])
	if tp, ok := keyWordTokenTPMap[content]; ok {
		return &Token{Content: content, Line: tokenizer.currentLine, TP: tp}
	}
	return &Token{Content: content, Line: tokenizer.currentLine, TP: IdentifierTP}
}

func (tokenizer *Tokenizer) makeError(msg string) error {
	return &LexError{Line: tokenizer.currentLine, Msg: msg}
}
