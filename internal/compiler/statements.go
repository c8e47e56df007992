package compiler

import (
	"fmt"

	"github.com/cwbudde/go-ddp/internal/bytecode"
	"github.com/cwbudde/go-ddp/internal/token"
)

// declaration dispatches between variable declarations (triggered by a
// gendered article) and plain statements, mirroring the original source's
// declaration()/statement() split.
func (c *Compiler) declaration() {
	switch c.current().Kind {
	case token.DER, token.DIE, token.DAS:
		c.varDeclaration()
	case token.FUNKTION:
		c.advance()
		c.error("Funktionsdeklarationen werden nicht unterstützt!")
	default:
		c.statement()
	}
}

func (c *Compiler) statement() {
	switch c.current().Kind {
	case token.WENN:
		c.ifStatement()
	case token.SOLANGE:
		c.whileStatement()
	case token.FUER:
		c.forStatement()
	case token.GIB:
		c.returnStatement()
	case token.PRINT:
		c.printStatement()
	default:
		c.expressionStatement()
	}
}

// block consumes a `:`-introduced body: every declaration whose token depth
// is at least the depth of the block's first token belongs to it.
func (c *Compiler) block() {
	c.beginScope()
	if !c.check(token.END) {
		bodyDepth := c.current().Depth
		for c.current().Depth >= bodyDepth && !c.check(token.END) {
			c.declaration()
			if c.panicMode {
				c.synchronize()
			}
		}
	}
	c.endScope()
}

// varDeclaration handles `der`/`die`/`das <typ> <name> {ist|sind} <expr> .`,
// enforcing the gendered-article/type agreement the spec requires.
func (c *Compiler) varDeclaration() {
	article := c.advance()

	var expectedType bytecode.Type
	switch article.Kind {
	case token.DER:
		c.consume(token.BOOLEAN, "Nach 'der' wird 'Boolean' erwartet!")
		expectedType = bytecode.Bool
	case token.DAS:
		if !c.match(token.ZEICHEN) && !c.match(token.BUCHSTABE) {
			c.errorAtCurrent("Nach 'das' wird 'Zeichen' oder 'Buchstabe' erwartet!")
		}
		expectedType = bytecode.Char
	case token.DIE:
		expectedType = c.parseDieType()
	}

	c.consume(token.IDENTIFIER, "Es wird ein Bezeichner erwartet!")
	name := c.previous().Lexeme

	isLocal := !c.isGlobalScope()
	slot := 0
	if isLocal {
		slot = c.declareLocal(name, expectedType)
	}

	isArray := expectedType.IsArray()
	isEmptyArray := false
	emptyArrayElem := bytecode.None

	if isArray {
		c.consume(token.SIND, "Bei einer Array Deklaration wird 'sind' erwartet!")
		valType := c.expression()
		if c.match(token.STUECK) {
			if valType != bytecode.Int {
				c.error("Die Größe eines Arrays muss eine Zahl sein!")
			}
			elem, _ := expectedType.ElemType()
			emptyArrayElem = elem
			isEmptyArray = true
		} else if valType != expectedType {
			c.error(fmt.Sprintf("Der Wert muss vom Typ '%s' sein!", expectedType))
		}
	} else {
		c.consume(token.IST, "Es wird 'ist' erwartet!")
		valType := c.expression()
		if valType != expectedType {
			c.error(fmt.Sprintf("Der Wert muss vom Typ '%s' sein!", expectedType))
		}
	}
	c.consume(token.DOT, "Es wird ein '.' erwartet!")

	if isEmptyArray {
		if isLocal {
			c.emitOp(bytecode.OP_DEFINE_EMPTY_ARR_LOCAL)
			c.emitByte(byte(slot))
			c.emitByte(byte(emptyArrayElem))
		} else {
			c.emitOpByte(bytecode.OP_DEFINE_EMPTY_ARR, byte(emptyArrayElem))
		}
	}

	if isLocal {
		c.markInitialized()
		c.emitOpByte(bytecode.OP_DEFINE_LOCAL, byte(slot))
	} else {
		idx := c.identifierConstant(name)
		c.globals[name] = expectedType
		c.emitOpByte(bytecode.OP_DEFINE_GLOBAL, idx)
	}
}

// parseDieType resolves the feminine scalar/plural type nouns that follow
// `die`.
func (c *Compiler) parseDieType() bytecode.Type {
	switch {
	case c.match(token.ZAHL):
		return bytecode.Int
	case c.match(token.KOMMAZAHL):
		return bytecode.Double
	case c.match(token.ZEICHENKETTE), c.match(token.TEXT):
		return bytecode.String
	case c.match(token.ZAHLEN):
		return bytecode.IntArr
	case c.match(token.KOMMAZAHLEN):
		return bytecode.DoubleArr
	case c.match(token.BOOLEANS):
		return bytecode.BoolArr
	case c.match(token.ZEICHEN), c.match(token.BUCHSTABEN):
		return bytecode.CharArr
	case c.match(token.ZEICHENKETTEN), c.match(token.TEXTE):
		return bytecode.StringArr
	}
	c.errorAtCurrent("Nach 'die' wird ein gültiger Typname erwartet!")
	return bytecode.None
}

// ifStatement parses `wenn <bool-expr> dann : <block> [sonst : <block>]`.
func (c *Compiler) ifStatement() {
	c.advance() // wenn
	condType := c.expression()
	if condType != bytecode.Bool {
		c.error("Die Bedingung von 'wenn' muss ein Boolean sein!")
	}
	c.consume(token.DANN, "Nach der Bedingung wird 'dann' erwartet!")
	c.consume(token.COLON, "Es wird ein ':' erwartet!")

	thenJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	c.emitOp(bytecode.OP_POP)
	c.block()

	elseJump := c.emitJump(bytecode.OP_JUMP)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OP_POP)

	if c.match(token.SONST) {
		c.consume(token.COLON, "Nach 'sonst' wird ein ':' erwartet!")
		c.block()
	}
	c.patchJump(elseJump)
}

// whileStatement parses `solange <bool-expr> mache : <block>`.
func (c *Compiler) whileStatement() {
	c.advance() // solange
	loopStart := len(c.chunk.Code)
	condType := c.expression()
	if condType != bytecode.Bool {
		c.error("Die Bedingung von 'solange' muss ein Boolean sein!")
	}
	c.consume(token.MACHE, "Nach der Bedingung wird 'mache' erwartet!")
	c.consume(token.COLON, "Es wird ein ':' erwartet!")

	exitJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	c.emitOp(bytecode.OP_POP)
	c.block()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(bytecode.OP_POP)
}

// forStatement parses `für jede Zahl <ident> von <start> bis <end>
// [mit schrittgröße <step>] mache : <block>`. The loop counter, bound, and
// step live as ordinary locals scoped to the loop; FORPREP/FORTEST bracket
// the direction-aware comparison (§9's replacement for the original's
// self-modifying opcode), and the increment is just GET/ADD/SET on the
// counter slot.
func (c *Compiler) forStatement() {
	c.advance() // für
	c.consume(token.JEDE, "Nach 'für' wird 'jede' erwartet!")
	c.consume(token.ZAHL, "Nach 'jede' wird 'Zahl' erwartet!")
	c.consume(token.IDENTIFIER, "Es wird ein Bezeichner erwartet!")
	name := c.previous().Lexeme

	c.beginScope()

	slot := c.declareLocal(name, bytecode.Int)
	c.consume(token.VON, "Es wird 'von' erwartet!")
	startType := c.expression()
	if startType != bytecode.Int {
		c.error("Der Startwert einer Zählschleife muss eine Zahl sein!")
	}
	c.markInitialized()
	c.emitOpByte(bytecode.OP_DEFINE_LOCAL, byte(slot))

	endSlot := c.declareLocal("@ende", bytecode.Int)
	c.consume(token.BIS, "Es wird 'bis' erwartet!")
	endType := c.expression()
	if endType != bytecode.Int {
		c.error("Der Endwert einer Zählschleife muss eine Zahl sein!")
	}
	c.markInitialized()
	c.emitOpByte(bytecode.OP_DEFINE_LOCAL, byte(endSlot))

	stepSlot := c.declareLocal("@schritt", bytecode.Int)
	if c.match(token.MIT) {
		c.consume(token.SCHRITTGROESSE, "Nach 'mit' wird 'schrittgröße' erwartet!")
		stepType := c.expression()
		if stepType != bytecode.Int {
			c.error("Die Schrittgröße muss eine Zahl sein!")
		}
	} else {
		c.emitConstant(bytecode.IntValue(1))
	}
	c.markInitialized()
	c.emitOpByte(bytecode.OP_DEFINE_LOCAL, byte(stepSlot))

	c.consume(token.MACHE, "Es wird 'mache' erwartet!")
	c.consume(token.COLON, "Es wird ein ':' erwartet!")

	c.emitOp(bytecode.OP_FORPREP)
	loopStart := len(c.chunk.Code)
	testJump := c.emitJump(bytecode.OP_FORTEST)

	c.block()

	c.emitOpByte(bytecode.OP_GET_LOCAL, byte(slot))
	c.emitOpByte(bytecode.OP_GET_LOCAL, byte(stepSlot))
	c.emitOp(bytecode.OP_ADD)
	c.emitOpByte(bytecode.OP_SET_LOCAL, byte(slot))
	c.emitOp(bytecode.OP_POP)

	c.emitLoop(loopStart)
	c.patchJump(testJump)
	c.emitOp(bytecode.OP_FORDONE)

	c.endScope()
}

// returnStatement parses `gib <expr> zurück .`. With no user-defined
// function machinery compiled, this only has an observable effect at the
// top level, where it ends the program early.
func (c *Compiler) returnStatement() {
	c.advance() // gib
	c.expression()
	c.consume(token.ZURUECK, "Es wird 'zurück' erwartet!")
	c.consume(token.DOT, "Es wird ein '.' erwartet!")
	c.emitOp(bytecode.OP_RETURN)
}

// printStatement parses the debug-print sigil `$ <expr> .`.
func (c *Compiler) printStatement() {
	c.advance() // $
	c.expression()
	c.consume(token.DOT, "Es wird ein '.' erwartet!")
	c.emitOp(bytecode.OP_PRINT)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.DOT, "Es wird ein '.' erwartet!")
	c.emitOp(bytecode.OP_POP)
}
