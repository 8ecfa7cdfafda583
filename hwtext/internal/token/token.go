package token

import "unicode"

type Type int

const (
	LParen Type = iota
	RParen
	Ident
	Value
	Symbol
	String
	Number
	Equals
	Invalid
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Ident:
		return "identifier"
	case Value:
		return "value"
	case Symbol:
		return "symbol"
	case String:
		return "string"
	case Number:
		return "number"
	case Equals:
		return "'='"
	case Invalid:
		return "invalid character"
	}
	return "unknown"
}

// Token is one lexeme. Value and Symbol tokens carry their name without
// the leading '%' or '$'; String tokens carry the raw text between quotes.
type Token struct {
	Value string
	Type  Type
	Line  int
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

func Tokenize(input string) []Token {
	var tokens []Token
	line := 1
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}

		// Line comment
		if r == ';' && i+1 < len(runes) && runes[i+1] == ';' {
			for i+1 < len(runes) && runes[i+1] != '\n' {
				i++
			}
			continue
		}

		switch r {
		case '(':
			tokens = append(tokens, Token{"(", LParen, line})
			continue
		case ')':
			tokens = append(tokens, Token{")", RParen, line})
			continue
		case '=':
			tokens = append(tokens, Token{"=", Equals, line})
			continue
		}

		if r == '"' {
			start := i + 1
			i++
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' {
					i++
				}
				i++
			}
			end := min(i, len(runes))
			tokens = append(tokens, Token{string(runes[start:end]), String, line})
			continue
		}

		// %value and $symbol names
		if (r == '%' || r == '$') && i+1 < len(runes) && isNameRune(runes[i+1]) {
			typ := Value
			if r == '$' {
				typ = Symbol
			}
			start := i + 1
			i++
			for i < len(runes) && isNameRune(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), typ, line})
			i--
			continue
		}

		if unicode.IsDigit(r) {
			start := i
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Number, line})
			i--
			continue
		}

		if unicode.IsLetter(r) || r == '_' {
			start := i
			for i < len(runes) && isNameRune(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Ident, line})
			i--
			continue
		}

		tokens = append(tokens, Token{string(r), Invalid, line})
	}

	return tokens
}
