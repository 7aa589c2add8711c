package g

import "testing"

func Test_Tokenize_SkipsWhitespaceKeepsEndOfLine(t *testing.T) {
	toks := Tokenize("let x = 1\n")
	kinds := make([]TokenKind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []TokenKind{TokKeyword, TokIdentifier, TokOperator, TokNumber, TokEndOfLine, TokEndOfFile}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(kinds), kinds, len(want))
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Fatalf("token %d: got %v, want %v", i, kinds[i], k)
		}
	}
}

func Test_Tokenize_NumberLiteral(t *testing.T) {
	toks := Tokenize("3.14")
	if toks[0].Kind != TokNumber || toks[0].Lexeme != "3.14" {
		t.Fatalf("got %+v", toks[0])
	}
}

func Test_Tokenize_StringEscapes(t *testing.T) {
	toks := Tokenize(`"a\nb"`)
	if toks[0].Kind != TokString {
		t.Fatalf("got %+v", toks[0])
	}
	if toks[0].Lexeme != "a\nb" {
		t.Fatalf("expected \\n to be decoded, got %q", toks[0].Lexeme)
	}
}

func Test_Tokenize_UnknownByteBecomesUnknownToken(t *testing.T) {
	toks := Tokenize("$")
	if toks[0].Kind != TokUnknown {
		t.Fatalf("expected Unknown token for unrecognized byte, got %+v", toks[0])
	}
}

func Test_Tokenize_CommentsAreSkipped(t *testing.T) {
	toks := Tokenize("// hi\nlet")
	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	// leading EndOfLine from the comment's line, then the keyword, then EOF.
	found := false
	for _, tok := range toks {
		if tok.Kind == TokKeyword && tok.Lexeme == "let" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected to find 'let' keyword after comment, got %v", kinds)
	}
}

func Test_Tokenize_LineColTracksAcrossNewlines(t *testing.T) {
	toks := Tokenize("x\ny")
	var second Token
	count := 0
	for _, tok := range toks {
		if tok.Kind == TokIdentifier {
			count++
			if count == 2 {
				second = tok
			}
		}
	}
	if second.Line != 2 {
		t.Fatalf("expected second identifier on line 2, got line %d", second.Line)
	}
}
