package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/go-ddp/internal/bytecode"
	"github.com/cwbudde/go-ddp/internal/token"
)

type prefixFn func(c *Compiler) bytecode.Type
type infixFn func(c *Compiler, left bytecode.Type) bytecode.Type

type parseRule struct {
	prefix     prefixFn
	infix      infixFn
	precedence Precedence
}

var rules map[token.Kind]parseRule

// The table is filled in init because its parse functions reach back to it
// through parsePrecedence, which a package-level initializer may not do.
func init() {
	rules = map[token.Kind]parseRule{
	token.INUMBER:   {prefix: number},
	token.DNUMBER:   {prefix: number},
	token.STRING:    {prefix: stringLit},
	token.CHARACTER: {prefix: charLit},
	token.IDENTIFIER: {prefix: variable},
	token.WAHR:      {prefix: boolTrue},
	token.FALSCH:    {prefix: boolFalse},
	token.PI:        {prefix: constantLit},
	token.E:         {prefix: constantLit},
	token.TAU:       {prefix: constantLit},
	token.PHI:       {prefix: constantLit},
	token.LEFT_PAREN:   {prefix: grouping},
	token.LEFT_BRACKET: {prefix: arrayLiteral},

	token.NEGATEMINUS:  {prefix: unaryNegate},
	token.NICHT:        {prefix: unaryNot},
	token.LOGISCHNICHT: {prefix: unaryBitwiseNot},
	token.BETRAG:       {prefix: betragUnary},
	token.LN:           {prefix: lnUnary},

	token.PLUS:   {infix: arithmeticBinary, precedence: PREC_TERM},
	token.MINUS:  {infix: arithmeticBinary, precedence: PREC_TERM},
	token.MAL:    {infix: arithmeticBinary, precedence: PREC_FACTOR},
	token.DURCH:  {infix: arithmeticBinary, precedence: PREC_FACTOR},
	token.MODULO: {infix: arithmeticBinary, precedence: PREC_FACTOR},
	token.HOCH:   {infix: exponentBinary, precedence: PREC_EXPONENT},
	token.WURZEL: {infix: wurzelBinary, precedence: PREC_EXPONENT},

	token.UM:      {infix: bitshiftBinary, precedence: PREC_BITSHIFT},
	token.LOGISCH: {infix: bitwiseBinary, precedence: PREC_BITWISE},

	token.UND:  {infix: and_, precedence: PREC_AND},
	token.ODER: {infix: or_, precedence: PREC_OR},

	token.KLEINER:      {infix: comparisonBinary, precedence: PREC_COMPARISON},
	token.GROESSER:     {infix: comparisonBinary, precedence: PREC_COMPARISON},
	token.KLEINERODER:  {infix: comparisonBinary, precedence: PREC_COMPARISON},
	token.GROESSERODER: {infix: comparisonBinary, precedence: PREC_COMPARISON},
	token.GLEICH:       {infix: equalityBinary, precedence: PREC_EQUALITY},
	token.UNGLEICH:     {infix: equalityBinary, precedence: PREC_EQUALITY},
	}
}

func (c *Compiler) getRule(k token.Kind) parseRule { return rules[k] }

// parsePrecedence is the heart of the Pratt parser: consume one prefix, then
// keep consuming infix operators whose own precedence is at least prec.
func (c *Compiler) parsePrecedence(prec Precedence) bytecode.Type {
	c.advance()
	rule := c.getRule(c.previous().Kind)
	if rule.prefix == nil {
		c.error("Es wurde ein Ausdruck erwartet!")
		return bytecode.None
	}

	prevCanAssign := c.canAssign
	c.canAssign = prec <= PREC_ASSIGNMENT

	typ := rule.prefix(c)

	for prec <= c.getRule(c.current().Kind).precedence {
		c.advance()
		infix := c.getRule(c.previous().Kind).infix
		typ = infix(c, typ)
	}

	if c.canAssign && c.match(token.IST) {
		c.error("Ungültiges Zuweisungsziel!")
	}
	c.canAssign = prevCanAssign
	return typ
}

func (c *Compiler) expression() bytecode.Type { return c.parsePrecedence(PREC_ASSIGNMENT) }

func isNumeric(t bytecode.Type) bool { return t == bytecode.Int || t == bytecode.Double }

func opName(k token.Kind) string {
	switch k {
	case token.PLUS:
		return "plus"
	case token.MINUS:
		return "minus"
	case token.MAL:
		return "mal"
	case token.DURCH:
		return "durch"
	case token.MODULO:
		return "modulo"
	}
	return k.String()
}

// arithResultType implements the promotion table: same-type integers stay
// Int, any Double combination widens to Double, and `plus` additionally
// admits the String/Char combinations the language treats as concatenation.
func arithResultType(op token.Kind, left, right bytecode.Type) (bytecode.Type, string) {
	switch op {
	case token.PLUS:
		switch {
		case left == bytecode.Int && right == bytecode.Int:
			return bytecode.Int, ""
		case isNumeric(left) && isNumeric(right):
			return bytecode.Double, ""
		case left == bytecode.String || right == bytecode.String:
			return bytecode.String, ""
		case left == bytecode.Char && right == bytecode.Char:
			return bytecode.String, ""
		case left == bytecode.Char && isNumeric(right):
			return bytecode.Int, ""
		case isNumeric(left) && right == bytecode.Char:
			return bytecode.Int, ""
		}
		return bytecode.None, "Die Operanden von 'plus' passen nicht zusammen!"
	case token.MINUS, token.MAL, token.DURCH:
		switch {
		case left == bytecode.Int && right == bytecode.Int:
			return bytecode.Int, ""
		case isNumeric(left) && isNumeric(right):
			return bytecode.Double, ""
		}
		return bytecode.None, fmt.Sprintf("Die Operanden von '%s' müssen Zahlen oder Kommazahlen sein!", opName(op))
	case token.MODULO:
		if left == bytecode.Int && right == bytecode.Int {
			return bytecode.Int, ""
		}
		return bytecode.None, "Die Operanden von 'modulo' müssen Zahlen sein!"
	}
	return bytecode.None, "Unbekannter Operator!"
}

func comparisonResultType(op token.Kind, left, right bytecode.Type) (bytecode.Type, string) {
	if op == token.GLEICH || op == token.UNGLEICH {
		switch {
		case isNumeric(left) && isNumeric(right):
			return bytecode.Bool, ""
		case left == right && (left == bytecode.Bool || left == bytecode.Char || left == bytecode.String):
			return bytecode.Bool, ""
		}
		return bytecode.None, "Die Operanden von 'gleich'/'ungleich' passen nicht zusammen!"
	}
	if isNumeric(left) && isNumeric(right) {
		return bytecode.Bool, ""
	}
	return bytecode.None, "Die Operanden eines Vergleichs müssen Zahlen oder Kommazahlen sein!"
}

// --- prefix handlers ----------------------------------------------------------

func number(c *Compiler) bytecode.Type {
	tok := c.previous()
	if tok.Kind == token.DNUMBER {
		s := strings.Replace(tok.Lexeme, ",", ".", 1)
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			c.error("Ungültige Kommazahl!")
		}
		c.emitConstant(bytecode.DoubleValue(d))
		return bytecode.Double
	}
	n, err := strconv.ParseInt(tok.Lexeme, 10, 32)
	if err != nil {
		c.error("Ungültige Zahl!")
	}
	c.emitConstant(bytecode.IntValue(int32(n)))
	return bytecode.Int
}

func stringLit(c *Compiler) bytecode.Type {
	c.emitConstant(bytecode.StringValue(c.previous().Lexeme))
	return bytecode.String
}

func charLit(c *Compiler) bytecode.Type {
	runes := []rune(c.previous().Lexeme)
	var r rune
	if len(runes) > 0 {
		r = runes[0]
	}
	c.emitConstant(bytecode.CharValue(r))
	return bytecode.Char
}

// boolTrue/boolFalse implement the `wahr [wenn <expr>]` / `falsch [wenn
// <expr>]` initializer sugar: bare, they emit the literal; with a trailing
// `wenn`, they emit the guarded expression (negated for `falsch wenn`).
func boolTrue(c *Compiler) bytecode.Type {
	if c.match(token.WENN) {
		typ := c.expression()
		if typ != bytecode.Bool {
			c.error("'wahr wenn' erwartet einen Boolean Ausdruck!")
		}
		return bytecode.Bool
	}
	c.emitConstant(bytecode.BoolValue(true))
	return bytecode.Bool
}

func boolFalse(c *Compiler) bytecode.Type {
	if c.match(token.WENN) {
		typ := c.expression()
		if typ != bytecode.Bool {
			c.error("'falsch wenn' erwartet einen Boolean Ausdruck!")
		}
		c.emitOp(bytecode.OP_NOT)
		return bytecode.Bool
	}
	c.emitConstant(bytecode.BoolValue(false))
	return bytecode.Bool
}

func constantLit(c *Compiler) bytecode.Type {
	var v float64
	switch c.previous().Kind {
	case token.PI:
		v = math.Pi
	case token.E:
		v = math.E
	case token.TAU:
		v = 2 * math.Pi
	case token.PHI:
		v = (1 + math.Sqrt(5)) / 2
	}
	c.emitConstant(bytecode.DoubleValue(v))
	return bytecode.Double
}

func grouping(c *Compiler) bytecode.Type {
	typ := c.expression()
	c.consume(token.RIGHT_PAREN, "Es wird ein ')' erwartet!")
	return typ
}

func unaryNegate(c *Compiler) bytecode.Type {
	typ := c.parsePrecedence(PREC_UNARY)
	if !isNumeric(typ) {
		c.error("Der Operand von '-' muss eine Zahl oder Kommazahl sein!")
	}
	c.emitOp(bytecode.OP_NEGATE)
	return typ
}

func unaryNot(c *Compiler) bytecode.Type {
	typ := c.parsePrecedence(PREC_UNARY)
	if typ != bytecode.Bool {
		c.error("Der Operand von 'nicht' muss ein Boolean sein!")
	}
	c.emitOp(bytecode.OP_NOT)
	return bytecode.Bool
}

func unaryBitwiseNot(c *Compiler) bytecode.Type {
	typ := c.parsePrecedence(PREC_UNARY)
	if typ != bytecode.Int {
		c.error("Der Operand von 'logisch nicht' muss eine Zahl sein!")
	}
	c.emitOp(bytecode.OP_BITWISE_NOT)
	return bytecode.Int
}

func betragUnary(c *Compiler) bytecode.Type {
	typ := c.parsePrecedence(PREC_UNARY)
	if !isNumeric(typ) {
		c.error("Der Betrag erwartet eine Zahl oder Kommazahl!")
	}
	c.emitOp(bytecode.OP_BETRAG)
	return typ
}

func lnUnary(c *Compiler) bytecode.Type {
	typ := c.parsePrecedence(PREC_UNARY)
	if !isNumeric(typ) {
		c.error("'ln' erwartet eine Zahl oder Kommazahl!")
	}
	c.emitOp(bytecode.OP_LN)
	return bytecode.Double
}

// arrayLiteral parses `[e1; e2; …; eN]`. Empty literals are rejected: there
// is no element type to infer a zero-length array from.
func arrayLiteral(c *Compiler) bytecode.Type {
	elemType := bytecode.None
	count := 0
	if !c.check(token.RIGHT_BRACKET) {
		for {
			t := c.expression()
			if count == 0 {
				elemType = t
			} else if t != elemType {
				c.error("Alle Elemente eines Array Literals müssen denselben Typ haben!")
			}
			count++
			if !c.match(token.SEMICOLON) {
				break
			}
		}
	}
	c.consume(token.RIGHT_BRACKET, "Es wird ein ']' erwartet!")
	if count == 0 {
		c.error("Leere Array Literale sind nicht erlaubt!")
		return bytecode.None
	}
	arrType, ok := elemType.ArrayOf()
	if !ok {
		c.error("Ungültiger Element Typ für ein Array Literal!")
		arrType = bytecode.None
	}
	lenIdx := c.makeConstant(bytecode.IntValue(int32(count)))
	c.emitOp(bytecode.OP_ARRAY)
	c.emitByte(lenIdx)
	c.emitByte(byte(elemType))
	return arrType
}

// variable resolves an identifier against locals then globals, and handles
// the trailing `ist`/`sind <expr>` assignment form and the `an <expr>
// Stelle` indexing form directly, matching the spec's "followed by" grammar.
func variable(c *Compiler) bytecode.Type {
	name := c.previous().Lexeme
	slot, typ, isLocal := c.resolveLocal(name)
	if !isLocal {
		t, ok := c.globals[name]
		if !ok {
			c.error(fmt.Sprintf("Die Variable '%s' wurde nicht deklariert!", name))
			t = bytecode.None
		}
		typ = t
	}

	if c.match(token.AN) {
		c.match(token.DER) // "an der <index> Stelle" is not fused by the scanner, so its DER is still here
		if !isLocal {
			c.emitOpByte(bytecode.OP_GET_GLOBAL, c.identifierConstant(name))
		}
		idxType := c.expression()
		if idxType != bytecode.Int {
			c.error("Der Index muss eine Zahl sein!")
		}
		c.consume(token.STELLE, "Es wird 'Stelle' erwartet!")

		// source positions count from 1; the array opcodes index from 0
		c.emitConstant(bytecode.IntValue(1))
		c.emitOp(bytecode.OP_SUBTRACT)

		elemType, ok := typ.ElemType()
		if !ok {
			c.error(fmt.Sprintf("'%s' ist kein Array!", name))
			elemType = bytecode.None
		}

		if c.canAssign && (c.check(token.IST) || c.check(token.SIND)) {
			c.advance()
			valType := c.expression()
			if valType != elemType {
				c.error(fmt.Sprintf("Der Wert muss vom Typ '%s' sein!", elemType))
			}
			if isLocal {
				c.emitOpByte(bytecode.OP_SET_ARRAY_ELEMENT_LOCAL, byte(slot))
			} else {
				c.emitOp(bytecode.OP_SET_ARRAY_ELEMENT)
				c.emitOpByte(bytecode.OP_SET_GLOBAL, c.identifierConstant(name))
			}
			return elemType
		}

		if isLocal {
			c.emitOpByte(bytecode.OP_GET_ARRAY_ELEMENT_LOCAL, byte(slot))
		} else {
			c.emitOp(bytecode.OP_GET_ARRAY_ELEMENT)
		}
		return elemType
	}

	if c.canAssign && (c.check(token.IST) || c.check(token.SIND)) {
		c.advance()
		valType := c.expression()
		if valType != typ {
			c.error(fmt.Sprintf("Der Wert muss vom Typ '%s' sein!", typ))
		}
		if isLocal {
			c.emitOpByte(bytecode.OP_SET_LOCAL, byte(slot))
		} else {
			c.emitOpByte(bytecode.OP_SET_GLOBAL, c.identifierConstant(name))
		}
		return typ
	}

	if isLocal {
		c.emitOpByte(bytecode.OP_GET_LOCAL, byte(slot))
	} else {
		c.emitOpByte(bytecode.OP_GET_GLOBAL, c.identifierConstant(name))
	}
	return typ
}

// --- infix handlers -------------------------------------------------------------

func arithmeticBinary(c *Compiler, left bytecode.Type) bytecode.Type {
	opTok := c.previous()
	rule := c.getRule(opTok.Kind)
	right := c.parsePrecedence(rule.precedence + 1)
	result, errMsg := arithResultType(opTok.Kind, left, right)
	if errMsg != "" {
		c.error(errMsg)
	}
	switch opTok.Kind {
	case token.PLUS:
		c.emitOp(bytecode.OP_ADD)
	case token.MINUS:
		c.emitOp(bytecode.OP_SUBTRACT)
	case token.MAL:
		c.emitOp(bytecode.OP_MULTIPLY)
	case token.DURCH:
		c.emitOp(bytecode.OP_DIVIDE)
	case token.MODULO:
		c.emitOp(bytecode.OP_MODULO)
	}
	return result
}

// exponentBinary is right-associative: it parses its own precedence level
// again on the right, not precedence+1, so `2 hoch 2 hoch 3` groups as
// `2 hoch (2 hoch 3)`.
func exponentBinary(c *Compiler, left bytecode.Type) bytecode.Type {
	right := c.parsePrecedence(PREC_EXPONENT)
	if !isNumeric(left) || !isNumeric(right) {
		c.error("Die Operanden von 'hoch' müssen Zahlen oder Kommazahlen sein!")
	}
	c.emitOp(bytecode.OP_EXPONENT)
	if left == bytecode.Int && right == bytecode.Int {
		return bytecode.Int
	}
	return bytecode.Double
}

// wurzelBinary handles the scanner's `INUMBER Wurzel <radicand>` fusion: the
// already-parsed left operand is the root's degree.
func wurzelBinary(c *Compiler, left bytecode.Type) bytecode.Type {
	if left != bytecode.Int {
		c.error("Der Grad einer Wurzel muss eine Zahl sein!")
	}
	right := c.parsePrecedence(PREC_EXPONENT)
	if right != bytecode.Int {
		c.error("Der Radikand einer Wurzel muss eine Zahl sein!")
	}
	c.emitOp(bytecode.OP_ROOT)
	return bytecode.Double
}

// bitshiftBinary parses `<expr> um <expr> bit nach {rechts,links} verschoben`.
func bitshiftBinary(c *Compiler, left bytecode.Type) bytecode.Type {
	if left != bytecode.Int {
		c.error("Der linke Operand einer Bitverschiebung muss eine Zahl sein!")
	}
	right := c.parsePrecedence(PREC_BITSHIFT + 1)
	if right != bytecode.Int {
		c.error("Die Anzahl der Bits muss eine Zahl sein!")
	}
	c.consume(token.BIT, "Es wird 'bit' erwartet!")
	c.consume(token.NACH, "Es wird 'nach' erwartet!")

	var op bytecode.OpCode
	switch {
	case c.match(token.RECHTS):
		op = bytecode.OP_RIGHT_BITSHIFT
	case c.match(token.LINKS):
		op = bytecode.OP_LEFT_BITSHIFT
	default:
		c.errorAtCurrent("Es wird 'rechts' oder 'links' erwartet!")
	}
	c.consume(token.VERSCHOBEN, "Es wird 'verschoben' erwartet!")
	c.emitOp(op)
	return bytecode.Int
}

// bitwiseBinary parses `<expr> logisch {und,oder,kontra} <expr>`.
func bitwiseBinary(c *Compiler, left bytecode.Type) bytecode.Type {
	if left != bytecode.Int {
		c.error("Die Operanden von 'logisch' müssen Zahlen sein!")
	}
	var op bytecode.OpCode
	switch {
	case c.match(token.UND):
		op = bytecode.OP_BITWISE_AND
	case c.match(token.ODER):
		op = bytecode.OP_BITWISE_OR
	case c.match(token.KONTRA):
		op = bytecode.OP_BITWISE_XOR
	default:
		c.errorAtCurrent("Es wird 'und', 'oder' oder 'kontra' erwartet!")
	}
	right := c.parsePrecedence(PREC_BITWISE + 1)
	if right != bytecode.Int {
		c.error("Die Operanden von 'logisch' müssen Zahlen sein!")
	}
	c.emitOp(op)
	return bytecode.Int
}

func comparisonBinary(c *Compiler, left bytecode.Type) bytecode.Type {
	opTok := c.previous()
	right := c.parsePrecedence(PREC_COMPARISON + 1)
	_, errMsg := comparisonResultType(opTok.Kind, left, right)
	if errMsg != "" {
		c.error(errMsg)
	}
	c.consume(token.IST, "Vergleiche erwarten ein abschließendes 'ist'!")
	switch opTok.Kind {
	case token.GROESSER:
		c.emitOp(bytecode.OP_GREATER)
	case token.GROESSERODER:
		c.emitOp(bytecode.OP_GREATER_EQUAL)
	case token.KLEINER:
		c.emitOp(bytecode.OP_LESS)
	case token.KLEINERODER:
		c.emitOp(bytecode.OP_LESS_EQUAL)
	}
	return bytecode.Bool
}

func equalityBinary(c *Compiler, left bytecode.Type) bytecode.Type {
	opTok := c.previous()
	right := c.parsePrecedence(PREC_EQUALITY + 1)
	_, errMsg := comparisonResultType(opTok.Kind, left, right)
	if errMsg != "" {
		c.error(errMsg)
	}
	c.consume(token.IST, "Vergleiche erwarten ein abschließendes 'ist'!")
	if opTok.Kind == token.GLEICH {
		c.emitOp(bytecode.OP_EQUAL)
	} else {
		c.emitOp(bytecode.OP_UNEQUAL)
	}
	return bytecode.Bool
}

// and_/or_ implement short-circuit evaluation: JUMP_IF_FALSE peeks rather
// than pops, so the short-circuited operand's own value is left as the
// expression's result, matching the VM's documented peek semantics.
func and_(c *Compiler, left bytecode.Type) bytecode.Type {
	if left != bytecode.Bool {
		c.error("Der linke Operand von 'und' muss ein Boolean sein!")
	}
	endJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	c.emitOp(bytecode.OP_POP)
	right := c.parsePrecedence(PREC_AND + 1)
	if right != bytecode.Bool {
		c.error("Der rechte Operand von 'und' muss ein Boolean sein!")
	}
	c.patchJump(endJump)
	return bytecode.Bool
}

func or_(c *Compiler, left bytecode.Type) bytecode.Type {
	if left != bytecode.Bool {
		c.error("Der linke Operand von 'oder' muss ein Boolean sein!")
	}
	elseJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	endJump := c.emitJump(bytecode.OP_JUMP)
	c.patchJump(elseJump)
	c.emitOp(bytecode.OP_POP)
	right := c.parsePrecedence(PREC_OR + 1)
	if right != bytecode.Bool {
		c.error("Der rechte Operand von 'oder' muss ein Boolean sein!")
	}
	c.patchJump(endJump)
	return bytecode.Bool
}
