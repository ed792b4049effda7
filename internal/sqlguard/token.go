package sqlguard

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenType int

const (
	tokenWord tokenType = iota
	tokenNumber
	tokenString
	tokenPlaceholder
	tokenOperator
	tokenComma
	tokenLParen
	tokenRParen
	tokenSemicolon
	tokenOther
)

type token struct {
	typ tokenType
	val string // lowercased for words
	num int    // placeholder index for tokenPlaceholder
}

// scanTokens reduces a SQL statement to the token stream the gate inspects.
// String literals, quoted identifiers, and comments are consumed as units so
// a semicolon or keyword inside them never looks like statement structure.
func scanTokens(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '-' && i+1 < len(input) && input[i+1] == '-':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < len(input) && input[i+1] == '*':
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated block comment")
			}
			i += end + 4
		case ch == '\'':
			literal, next, err := scanQuoted(input, i, '\'')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokenString, val: literal})
			i = next
		case ch == '"':
			literal, next, err := scanQuoted(input, i, '"')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokenWord, val: strings.ToLower(literal)})
			i = next
		case ch == '$':
			j := i + 1
			for j < len(input) && isDigit(input[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("bare $ without parameter number")
			}
			num, err := strconv.Atoi(input[i+1 : j])
			if err != nil || num <= 0 {
				return nil, fmt.Errorf("invalid parameter placeholder %q", input[i:j])
			}
			tokens = append(tokens, token{typ: tokenPlaceholder, num: num})
			i = j
		case isDigit(ch) || (ch == '.' && i+1 < len(input) && isDigit(input[i+1])):
			j := i
			for j < len(input) && (isDigit(input[j]) || input[j] == '.' || input[j] == 'e' || input[j] == 'E' ||
				((input[j] == '+' || input[j] == '-') && j > i && (input[j-1] == 'e' || input[j-1] == 'E'))) {
				j++
			}
			tokens = append(tokens, token{typ: tokenNumber, val: input[i:j]})
			i = j
		case isWordStart(ch):
			j := i
			for j < len(input) && isWordPart(input[j]) {
				j++
			}
			tokens = append(tokens, token{typ: tokenWord, val: strings.ToLower(input[i:j])})
			i = j
		case ch == ';':
			tokens = append(tokens, token{typ: tokenSemicolon, val: ";"})
			i++
		case ch == ',':
			tokens = append(tokens, token{typ: tokenComma, val: ","})
			i++
		case ch == '(':
			tokens = append(tokens, token{typ: tokenLParen, val: "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{typ: tokenRParen, val: ")"})
			i++
		case ch == '=' || ch == '<' || ch == '>' || ch == '!':
			j := i + 1
			for j < len(input) && (input[j] == '=' || input[j] == '<' || input[j] == '>') {
				j++
			}
			tokens = append(tokens, token{typ: tokenOperator, val: input[i:j]})
			i = j
		default:
			tokens = append(tokens, token{typ: tokenOther, val: string(ch)})
			i++
		}
	}
	return tokens, nil
}

// scanQuoted consumes a quoted region starting at input[start] and returns
// the unescaped content and the index after the closing quote. Doubled
// quotes are the escape form.
func scanQuoted(input string, start int, quote byte) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		if input[i] == quote {
			if i+1 < len(input) && input[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(input[i])
		i++
	}
	return "", 0, fmt.Errorf("unterminated quoted region")
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isWordStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isWordPart(ch byte) bool {
	return isWordStart(ch) || isDigit(ch)
}
