// parser.go — recursive-descent parser producing the typed AST in ast.go.
//
// One token of lookahead plus the ability to save/restore the cursor (used
// to disambiguate `for IDENT in ...` from a classic C-style for). Errors are
// recorded rather than raised; the parser advances past the offending token
// and keeps going so a single pass can report every syntax problem in a
// source file, mirroring original_source/AST/ASTBuilder.cpp's recovery
// style (logError + advance) rather than aborting on the first mistake.
package g

import (
	"fmt"
	"strconv"
)

// Parser turns a token stream into a Program, accumulating ParseErrors.
type Parser struct {
	toks   []Token
	pos    int
	Errors []*ParseError
}

// NewParser wraps a token stream already produced by Tokenize.
func NewParser(toks []Token) *Parser {
	return &Parser{toks: toks}
}

// ParseProgram parses a full source file; the returned Program is non-nil
// even when errors were recorded, so callers can still inspect what parsed.
func ParseProgram(src string) (*Program, []*ParseError) {
	p := NewParser(Tokenize(src))
	return p.parseProgram(), p.Errors
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: TokEndOfFile}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(offset int) Token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return Token{Kind: TokEndOfFile}
	}
	return p.toks[i]
}

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) atEOF() bool { return p.cur().Kind == TokEndOfFile }

func (p *Parser) matchOp(op string) bool { return p.cur().IsOperator(op) }

func (p *Parser) matchKeyword(kw string) bool { return p.cur().IsKeyword(kw) }

func (p *Parser) errorf(format string, args ...interface{}) {
	t := p.cur()
	p.Errors = append(p.Errors, &ParseError{Line: t.Line, Col: t.Col, Msg: fmt.Sprintf(format, args...)})
}

func (p *Parser) expectOp(op, context string) bool {
	if p.matchOp(op) {
		p.advance()
		return true
	}
	p.errorf("expected %q %s, got %q", op, context, p.cur().Lexeme)
	return false
}

func (p *Parser) consumeEndOfLines() {
	for p.cur().Kind == TokEndOfLine {
		p.advance()
	}
}

// parseProgram is the entry point; see original_source/AST/ASTBuilder.cpp's
// parseProgram for the skip-EOL-then-dispatch-then-recover shape this keeps.
func (p *Parser) parseProgram() *Program {
	prog := &Program{}
	for !p.atEOF() {
		p.consumeEndOfLines()
		if p.atEOF() {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		} else {
			p.advance()
		}
	}
	return prog
}

func (p *Parser) parseStatement() Stmt {
	t := p.cur()
	if t.Kind == TokKeyword {
		switch t.Lexeme {
		case "import":
			return p.parseImport()
		case "module":
			return p.parseModule()
		case "func":
			return p.parseFunction()
		case "var", "val", "let", "const":
			return p.parseDeclaration()
		case "for":
			return p.parseFor()
		case "return":
			return p.parseReturn()
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile()
		case "break":
			p.advance()
			p.consumeEndOfLines()
			return &Break{}
		case "continue":
			p.advance()
			p.consumeEndOfLines()
			return &Continue{}
		case "true", "false":
			return p.parseExpressionStatement()
		}
	}
	if t.Kind == TokIdentifier || t.Kind == TokNumber || t.Kind == TokString ||
		t.Kind == TokFormatString || t.IsOperator("(") {
		return p.parseExpressionStatement()
	}
	if t.IsOperator("}") || t.IsOperator(")") {
		return nil
	}
	p.errorf("unexpected token %q", t.Lexeme)
	return nil
}

func (p *Parser) parseImport() Stmt {
	p.advance() // 'import'
	if p.cur().Kind != TokIdentifier {
		p.errorf("expected module name after 'import'")
		return nil
	}
	name := p.advance().Lexeme
	p.consumeEndOfLines()
	return &Import{ModuleName: name}
}

func (p *Parser) parseModule() Stmt {
	p.advance() // 'module'
	if p.cur().Kind != TokIdentifier {
		p.errorf("expected module name after 'module'")
		return nil
	}
	name := p.advance().Lexeme
	p.consumeEndOfLines()
	return &ModuleDecl{ModuleName: name}
}

func (p *Parser) parseFunction() Stmt {
	p.advance() // 'func'
	if p.cur().Kind != TokIdentifier {
		p.errorf("expected function name")
		return nil
	}
	name := p.advance().Lexeme

	if !p.expectOp("(", "after function name") {
		return nil
	}
	params := p.parseParameterList()
	p.expectOp(")", "after parameters")

	var retType Type
	if p.matchOp(":") {
		p.advance()
		retType = p.parseType()
	}

	p.expectOp("{", "at start of function body")
	p.consumeEndOfLines()
	body := p.parseBlock()
	p.expectOp("}", "at end of function body")
	p.consumeEndOfLines()

	return &Function{Name: name, Params: params, ReturnType: retType, Body: body}
}

func (p *Parser) parseParameterList() []Parameter {
	var params []Parameter
	if p.matchOp(")") {
		return params
	}
	for {
		if p.cur().Kind != TokIdentifier {
			p.errorf("expected parameter name")
			break
		}
		name := p.advance().Lexeme
		var typ Type
		if p.matchOp(":") {
			p.advance()
			typ = p.parseType()
		}
		params = append(params, Parameter{Name: name, Type: typ})
		if p.matchOp(",") {
			p.advance()
			continue
		}
		break
	}
	return params
}

// parseType parses `int`, `float`, `str`, `bool`, a user identifier, or the
// array form `elem[size]`.
func (p *Parser) parseType() Type {
	t := p.cur()
	if t.Kind != TokKeyword && t.Kind != TokIdentifier {
		p.errorf("expected type name, got %q", t.Lexeme)
		return nil
	}
	name := p.advance().Lexeme
	if p.matchOp("[") {
		p.advance()
		var size Expr
		if !p.matchOp("]") {
			size = p.parseExpression()
		}
		p.expectOp("]", "after array size")
		return &ArrayType{ElementName: name, Size: size}
	}
	return &NamedType{Name: name}
}

func (p *Parser) parseBlock() *Block {
	b := &Block{}
	for !p.matchOp("}") && !p.atEOF() {
		p.consumeEndOfLines()
		if p.matchOp("}") {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			b.Statements = append(b.Statements, stmt)
		} else if !p.matchOp("}") && !p.atEOF() {
			p.advance()
		}
		p.consumeEndOfLines()
	}
	return b
}

func (p *Parser) parseDeclaration() Stmt {
	kwTok := p.advance()
	kw, _ := ParseDeclKeyword(kwTok.Lexeme)

	if p.cur().Kind != TokIdentifier {
		p.errorf("expected identifier in declaration")
		return nil
	}
	name := p.advance().Lexeme

	var typ Type
	if p.matchOp(":") {
		p.advance()
		typ = p.parseType()
	}

	var init Expr
	if p.matchOp("=") {
		p.advance()
		init = p.parseExpression()
	}

	if typ == nil && init == nil {
		p.errorf("missing type and initializer")
	}

	p.consumeEndOfLines()
	return &Declaration{Keyword: kw, Name: name, Type: typ, Initializer: init}
}

func (p *Parser) parseExpressionStatement() Stmt {
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	p.consumeEndOfLines()
	return &ExpressionStatement{Expr: expr}
}

func (p *Parser) parseReturn() Stmt {
	p.advance() // 'return'
	var val Expr
	if p.cur().Kind != TokEndOfLine && !p.matchOp("}") && !p.atEOF() {
		val = p.parseExpression()
	}
	p.consumeEndOfLines()
	return &Return{Value: val}
}

func (p *Parser) parseIf() Stmt {
	p.advance() // 'if'
	cond := p.parseExpression()
	p.expectOp("{", "after if condition")
	p.consumeEndOfLines()
	thenBlock := p.parseBlock()
	p.expectOp("}", "at end of if body")

	var elseBranch Stmt
	save := p.pos
	p.consumeEndOfLines()
	if p.matchKeyword("else") {
		p.advance()
		if p.matchKeyword("if") {
			elseBranch = p.parseIf()
		} else {
			p.expectOp("{", "after else")
			p.consumeEndOfLines()
			elseBlock := p.parseBlock()
			p.expectOp("}", "at end of else body")
			p.consumeEndOfLines()
			elseBranch = elseBlock
		}
	} else {
		p.pos = save
	}
	return &If{Condition: cond, Then: thenBlock, Else: elseBranch}
}

func (p *Parser) parseWhile() Stmt {
	p.advance() // 'while'
	cond := p.parseExpression()
	p.expectOp("{", "after while condition")
	p.consumeEndOfLines()
	body := p.parseBlock()
	p.expectOp("}", "at end of while body")
	p.consumeEndOfLines()
	return &While{Condition: cond, Body: body}
}

// parseFor disambiguates `for IDENT in ...` from the classic C-style form
// by looking one identifier ahead for the 'in' keyword, exactly as
// original_source/AST/ASTBuilder.cpp::parseStatement does with its saved
// cursor position.
func (p *Parser) parseFor() Stmt {
	save := p.pos
	p.advance() // 'for'
	if p.cur().Kind == TokIdentifier && p.peekAt(1).IsKeyword("in") {
		p.pos = save
		return p.parseForIn()
	}
	p.pos = save
	return p.parseCStyleFor()
}

func (p *Parser) parseForIn() Stmt {
	p.advance() // 'for'
	if p.cur().Kind != TokIdentifier {
		p.errorf("expected identifier in for loop")
		return nil
	}
	loopVar := p.advance().Lexeme
	if !p.matchKeyword("in") {
		p.errorf("expected 'in' in for loop")
		return nil
	}
	p.advance()
	iterable := p.parseForInIterable()
	p.expectOp("{", "at start of loop body")
	p.consumeEndOfLines()
	body := p.parseBlock()
	p.expectOp("}", "at end of loop body")
	p.consumeEndOfLines()
	return &ForIn{LoopVar: loopVar, Iterable: iterable, Body: body}
}

// parseForInIterable parses a range(...) call, or else any expression
// (normally a bare identifier); analyzer.go's checkForIn rejects an
// iterable that is neither a range nor a variable.
func (p *Parser) parseForInIterable() Expr {
	if p.cur().Kind == TokIdentifier && p.cur().Lexeme == "range" {
		return p.parseRange()
	}
	return p.parseExpression()
}

func (p *Parser) parseRange() Expr {
	p.advance() // 'range'
	p.expectOp("(", "after 'range'")
	var args []Expr
	for !p.matchOp(")") && !p.atEOF() {
		arg := p.parseExpression()
		if arg != nil {
			args = append(args, arg)
		}
		if p.matchOp(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectOp(")", "after range arguments")
	return &Range{Args: args}
}

// parseCStyleFor handles `for (init; cond; step) { ... }`.
func (p *Parser) parseCStyleFor() Stmt {
	p.advance() // 'for'
	p.expectOp("(", "after 'for'")

	var init Stmt
	if !p.matchOp(";") {
		if p.cur().Kind == TokKeyword && (p.cur().Lexeme == "var" || p.cur().Lexeme == "val" ||
			p.cur().Lexeme == "let" || p.cur().Lexeme == "const") {
			init = p.parseCStyleDeclNoEOL()
		} else {
			expr := p.parseExpression()
			init = &ExpressionStatement{Expr: expr}
		}
	}
	p.expectOp(";", "after for-loop init")

	var cond Expr
	if !p.matchOp(";") {
		cond = p.parseExpression()
	}
	p.expectOp(";", "after for-loop condition")

	var step Stmt
	if !p.matchOp(")") {
		expr := p.parseExpression()
		step = &ExpressionStatement{Expr: expr}
	}
	p.expectOp(")", "after for-loop step")

	p.expectOp("{", "at start of loop body")
	p.consumeEndOfLines()
	body := p.parseBlock()
	p.expectOp("}", "at end of loop body")
	p.consumeEndOfLines()

	return &CStyleFor{Init: init, Cond: cond, Step: step, Body: body}
}

// parseCStyleDeclNoEOL is parseDeclaration without the trailing
// end-of-line consumption, since the C-style for header is `;`-delimited.
func (p *Parser) parseCStyleDeclNoEOL() Stmt {
	kwTok := p.advance()
	kw, _ := ParseDeclKeyword(kwTok.Lexeme)
	if p.cur().Kind != TokIdentifier {
		p.errorf("expected identifier in declaration")
		return nil
	}
	name := p.advance().Lexeme
	var typ Type
	if p.matchOp(":") {
		p.advance()
		typ = p.parseType()
	}
	var init Expr
	if p.matchOp("=") {
		p.advance()
		init = p.parseExpression()
	}
	return &Declaration{Keyword: kw, Name: name, Type: typ, Initializer: init}
}

// --- Expressions: precedence climbing, lowest to highest. ---

func (p *Parser) parseExpression() Expr {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() Expr {
	left := p.parseLogicalOr()
	if p.matchOp("=") {
		if !isLvalue(left) {
			p.errorf("left-hand side of assignment is not an lvalue")
		}
		p.advance()
		right := p.parseAssignment()
		return &Binary{Left: left, Op: "=", Right: right}
	}
	return left
}

func isLvalue(e Expr) bool {
	switch e.(type) {
	case *Identifier, *Index, *MemberAccess:
		return true
	default:
		return false
	}
}

func (p *Parser) parseLogicalOr() Expr {
	left := p.parseLogicalAnd()
	for p.matchOp("||") {
		op := p.advance().Lexeme
		right := p.parseLogicalAnd()
		left = &Binary{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalAnd() Expr {
	left := p.parseEquality()
	for p.matchOp("&&") {
		op := p.advance().Lexeme
		right := p.parseEquality()
		left = &Binary{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() Expr {
	left := p.parseComparison()
	for p.matchOp("==") || p.matchOp("!=") {
		op := p.advance().Lexeme
		right := p.parseComparison()
		left = &Binary{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()
	for p.matchOp("<") || p.matchOp("<=") || p.matchOp(">") || p.matchOp(">=") {
		op := p.advance().Lexeme
		right := p.parseAdditive()
		left = &Binary{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for p.matchOp("+") || p.matchOp("-") {
		op := p.advance().Lexeme
		right := p.parseMultiplicative()
		left = &Binary{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for p.matchOp("*") || p.matchOp("/") || p.matchOp("%") {
		op := p.advance().Lexeme
		right := p.parseUnary()
		left = &Binary{Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.matchOp("!") || p.matchOp("-") || p.matchOp("+") {
		op := p.advance().Lexeme
		operand := p.parseUnary()
		return &Unary{Op: op, Operand: operand}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for {
		switch {
		case p.matchOp("."):
			p.advance()
			if p.cur().Kind != TokIdentifier {
				p.errorf("expected identifier after '.'")
				return expr
			}
			member := p.advance().Lexeme
			expr = &MemberAccess{Object: expr, Member: member}
		case p.matchOp("("):
			expr = p.parseCallArgs(expr)
		case p.matchOp("["):
			p.advance()
			idx := p.parseExpression()
			p.expectOp("]", "after index expression")
			expr = &Index{Array: expr, Idx: idx}
		default:
			return expr
		}
	}
}

func (p *Parser) parseCallArgs(callee Expr) Expr {
	p.advance() // '('
	var args []Expr
	if !p.matchOp(")") {
		for {
			arg := p.parseExpression()
			if arg != nil {
				args = append(args, arg)
			}
			if p.matchOp(",") {
				p.advance()
				continue
			}
			break
		}
	}
	p.expectOp(")", "after call arguments")
	return &Call{Callee: callee, Args: args}
}

func (p *Parser) parsePrimary() Expr {
	t := p.cur()
	switch {
	case t.Kind == TokIdentifier && t.Lexeme == "range" && p.peekAt(1).IsOperator("("):
		return p.parseRange()
	case t.Kind == TokIdentifier:
		p.advance()
		return &Identifier{Name: t.Lexeme}
	case t.Kind == TokNumber:
		p.advance()
		v, err := strconv.ParseFloat(t.Lexeme, 64)
		if err != nil {
			p.errorf("invalid number literal %q", t.Lexeme)
			v = 0
		}
		return &NumberLiteral{Value: v}
	case t.Kind == TokString:
		p.advance()
		return &StringLiteral{Value: t.Lexeme}
	case t.Kind == TokFormatString:
		p.advance()
		return buildFormatString(t.Lexeme, p)
	case t.IsKeyword("true"):
		p.advance()
		return &BooleanLiteral{Value: true}
	case t.IsKeyword("false"):
		p.advance()
		return &BooleanLiteral{Value: false}
	case t.IsOperator("("):
		p.advance()
		inner := p.parseExpression()
		p.expectOp(")", "after parenthesized expression")
		return &Grouped{Inner: inner}
	}
	p.errorf("unexpected token in expression: %q", t.Lexeme)
	p.advance()
	return nil
}

// buildFormatString implements the FormatString construction rule in
// spec.md §4.2: extract `{...}` placeholders from the raw (undecoded)
// lexeme using the restricted placeholder grammar, then escape-decode the
// lexeme (adjusting placeholder offsets to match) to produce the final
// displayed Raw text.
func buildFormatString(rawLexeme string, p *Parser) Expr {
	origOffsets, exprSrcs, _ := extractPlaceholderSpans(rawLexeme)
	decoded, newOffsets := decodeEscapesWithOffsets(rawLexeme, origOffsets)

	fs := &FormatString{Raw: decoded}
	for i, src := range exprSrcs {
		expr := parseRestrictedExpr(src, p)
		fs.Placeholders = append(fs.Placeholders, Placeholder{Offset: newOffsets[i], Expr: expr})
	}
	return fs
}

// extractPlaceholderSpans finds each non-nested `{...}` span in raw (which
// still has its escape sequences undecoded) and returns the byte offset of
// each '{' plus the enclosed text. An unclosed '{' stops extraction there
// and is left to be copied verbatim, per spec.md §8 boundary behavior.
func extractPlaceholderSpans(raw string) (offsets []int, exprSrcs []string, sawUnclosed bool) {
	i := 0
	for i < len(raw) {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) {
			i += 2
			continue
		}
		if c == '{' {
			j := i + 1
			for j < len(raw) && raw[j] != '}' {
				j++
			}
			if j >= len(raw) {
				sawUnclosed = true
				break
			}
			offsets = append(offsets, i)
			exprSrcs = append(exprSrcs, raw[i+1:j])
			i = j + 1
			continue
		}
		i++
	}
	return offsets, exprSrcs, sawUnclosed
}

// decodeEscapesWithOffsets decodes \n \t \\ \" in s, remapping each byte
// offset in offsets (assumed to point at a literal '{', never inside an
// escape pair) to its position in the decoded output.
func decodeEscapesWithOffsets(s string, offsets []int) (string, []int) {
	newOffsets := make([]int, len(offsets))
	oi := 0
	var b []byte
	for i := 0; i < len(s); i++ {
		for oi < len(offsets) && offsets[oi] == i {
			newOffsets[oi] = len(b)
			oi++
		}
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b = append(b, '\n')
				i++
				continue
			case 't':
				b = append(b, '\t')
				i++
				continue
			case '\\':
				b = append(b, '\\')
				i++
				continue
			case '"':
				b = append(b, '"')
				i++
				continue
			}
		}
		b = append(b, s[i])
	}
	for oi < len(offsets) {
		newOffsets[oi] = len(b)
		oi++
	}
	return string(b), newOffsets
}

// parseRestrictedExpr parses the grammar spec.md §4.2 allows inside a
// FormatString placeholder: a literal, a bare identifier, a member-access
// chain, or an indexed chain — never a call. Errors are reported against
// the enclosing parser so they surface with the outer source's position.
func parseRestrictedExpr(src string, outer *Parser) Expr {
	sub := NewParser(Tokenize(src))
	expr := sub.parseRestrictedPrimaryChain()
	if !sub.atEOF() || len(sub.Errors) > 0 {
		outer.errorf("invalid expression in format placeholder: %q", src)
		return nil
	}
	return expr
}

func (p *Parser) parseRestrictedPrimaryChain() Expr {
	t := p.cur()
	var expr Expr
	switch {
	case t.Kind == TokIdentifier:
		p.advance()
		expr = &Identifier{Name: t.Lexeme}
	case t.Kind == TokNumber:
		p.advance()
		v, _ := strconv.ParseFloat(t.Lexeme, 64)
		expr = &NumberLiteral{Value: v}
	case t.Kind == TokString:
		p.advance()
		expr = &StringLiteral{Value: t.Lexeme}
	case t.IsKeyword("true"):
		p.advance()
		expr = &BooleanLiteral{Value: true}
	case t.IsKeyword("false"):
		p.advance()
		expr = &BooleanLiteral{Value: false}
	default:
		p.errorf("unexpected token in format placeholder: %q", t.Lexeme)
		return nil
	}
	for {
		switch {
		case p.matchOp("."):
			p.advance()
			if p.cur().Kind != TokIdentifier {
				p.errorf("expected identifier after '.' in format placeholder")
				return expr
			}
			member := p.advance().Lexeme
			expr = &MemberAccess{Object: expr, Member: member}
		case p.matchOp("["):
			p.advance()
			idx := p.parseRestrictedPrimaryChain()
			p.expectOp("]", "after index in format placeholder")
			expr = &Index{Array: expr, Idx: idx}
		default:
			return expr
		}
	}
}
