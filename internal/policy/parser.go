package policy

import (
	"strconv"
	"strings"
)

// MaxPolicyBytes is the hard size cap on a policy source string (spec §4.1).
const MaxPolicyBytes = 65536

// Parse tokenizes and parses an SPL S-expression string into a Value tree.
// It consumes exactly one expression: trailing tokens after that expression,
// or no tokens at all, are errors.
func Parse(src string) (Value, error) {
	if len(src) > MaxPolicyBytes {
		return Value{}, ErrSizeExceeded
	}
	tokens := tokenize(strings.TrimSpace(src))
	if len(tokens) == 0 {
		return Value{}, ErrUnexpectedEOF
	}
	pos := 0
	result, err := parseExpr(tokens, &pos)
	if err != nil {
		return Value{}, err
	}
	if pos != len(tokens) {
		return Value{}, ErrExtraTokens
	}
	return result, nil
}

func parseExpr(tokens []string, pos *int) (Value, error) {
	if *pos >= len(tokens) {
		return Value{}, ErrUnexpectedEOF
	}
	tok := tokens[*pos]
	*pos++

	switch tok {
	case "(":
		items := make([]Value, 0, 4)
		for {
			if *pos >= len(tokens) {
				return Value{}, ErrUnterminatedOpen
			}
			if tokens[*pos] == ")" {
				*pos++
				break
			}
			item, err := parseExpr(tokens, pos)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		// A List AST node with an empty body is constructed directly here
		// (not via the List() helper) so that "()" is distinguishable from
		// Nil at the AST level for as long as it takes the evaluator to fold
		// it: spec §3.1 says the empty list *evaluates* to Nil, not that it
		// parses as one.
		return Value{kind: KindList, list: items}, nil
	case ")":
		return Value{}, ErrUnexpectedClose
	default:
		return parseAtom(tok), nil
	}
}

func parseAtom(tok string) Value {
	switch tok {
	case "#t":
		return Bool(true)
	case "#f":
		return Bool(false)
	}
	if n, err := strconv.ParseFloat(tok, 64); err == nil {
		return Number(n)
	}
	if len(tok) >= 2 && strings.HasPrefix(tok, "\"") && strings.HasSuffix(tok, "\"") {
		inner := tok[1 : len(tok)-1]
		return Str(strings.ReplaceAll(inner, "\\\"", "\""))
	}
	return Symbol(tok)
}

// tokenize splits source into parser tokens per spec §4.1: whitespace
// separates and is dropped, '(' and ')' are always their own token, a '"'
// begins a string literal that runs through the next unescaped '"', and any
// other run of characters is one atom token.
func tokenize(src string) []string {
	tokens := make([]string, 0, len(src)/2+1)
	var buf strings.Builder
	inStr := false

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		tokens = append(tokens, buf.String())
		buf.Reset()
	}

	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if inStr {
			buf.WriteRune(ch)
			if ch == '"' && !escapedQuote(runes, i) {
				inStr = false
				flush()
			}
			continue
		}
		switch ch {
		case '"':
			flush()
			buf.WriteRune('"')
			inStr = true
		case '(', ')':
			flush()
			tokens = append(tokens, string(ch))
		case ' ', '\t', '\r', '\n':
			flush()
		default:
			buf.WriteRune(ch)
		}
	}
	flush()
	return tokens
}

// escapedQuote reports whether the '"' at runes[i] is the closing quote of a
// \" escape sequence rather than the terminator of the string literal — i.e.
// whether it is immediately preceded by an odd run of backslashes.
func escapedQuote(runes []rune, i int) bool {
	backslashes := 0
	for j := i - 1; j >= 0 && runes[j] == '\\'; j-- {
		backslashes++
	}
	return backslashes%2 == 1
}
