// Package compiler implements the single-pass, token-to-bytecode Pratt
// compiler: no intermediate AST is built. Each expression handler both
// emits byte-code and returns the static type of the value it produced.
package compiler

import (
	"fmt"

	"github.com/cwbudde/go-ddp/internal/bytecode"
	"github.com/cwbudde/go-ddp/internal/ddperror"
	"github.com/cwbudde/go-ddp/internal/natives"
	"github.com/cwbudde/go-ddp/internal/token"
)

// local is a compile-time record of one lexical variable. Its slot is the
// absolute stack position the variable occupies at runtime — locals live
// directly on the VM's value stack, clox-style, so GET_LOCAL/SET_LOCAL need
// only an index, not a separate storage area.
type local struct {
	name  string
	typ   bytecode.Type
	depth int // -1 means "declared but not yet initialized"
	slot  int
}

// Compiler consumes a token stream and emits into a single Chunk. It never
// builds an AST: every parse rule both parses and emits in the same pass.
type Compiler struct {
	tokens []token.Token
	pos    int

	chunk *bytecode.Chunk

	globals        map[string]bytecode.Type
	globalConstIdx map[string]byte

	locals     []local
	scopeDepth int
	canAssign  bool

	hadError  bool
	panicMode bool
	errs      []*ddperror.CompileError

	natives map[string]natives.Signature
}

// New creates a Compiler over an already-scanned token sequence (which must
// end in an END token, as the scanner guarantees).
func New(tokens []token.Token) *Compiler {
	return &Compiler{
		tokens:         tokens,
		chunk:          bytecode.NewChunk(),
		globals:        make(map[string]bytecode.Type),
		globalConstIdx: make(map[string]byte),
		natives:        natives.Signatures(),
	}
}

// Compile runs the whole token stream through declaration() until END,
// terminates the code with OP_RETURN, and returns the finished Chunk. ok is
// false if any compile error occurred.
func (c *Compiler) Compile() (*bytecode.Chunk, bool) {
	for !c.check(token.END) {
		c.declaration()
		if c.panicMode {
			c.synchronize()
		}
	}
	c.chunk.WriteOp(bytecode.OP_RETURN, c.current().Line)
	return c.chunk, !c.hadError
}

// Errors returns every compile error accumulated so far.
func (c *Compiler) Errors() []*ddperror.CompileError { return c.errs }

// --- token stream helpers ----------------------------------------------------

func (c *Compiler) current() token.Token  { return c.tokens[c.pos] }
func (c *Compiler) previous() token.Token { return c.tokens[c.pos-1] }

func (c *Compiler) advance() token.Token {
	if !c.check(token.END) {
		c.pos++
	}
	return c.previous()
}

func (c *Compiler) check(kind token.Kind) bool { return c.current().Kind == kind }

func (c *Compiler) checkNext(kind token.Kind) bool {
	if c.pos+1 >= len(c.tokens) {
		return false
	}
	return c.tokens[c.pos+1].Kind == kind
}

func (c *Compiler) match(kind token.Kind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind token.Kind, msg string) {
	if c.check(kind) {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// --- error reporting ---------------------------------------------------------

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current(), msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous(), msg) }

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	c.errs = append(c.errs, &ddperror.CompileError{Line: tok.Line, Lexeme: tok.Lexeme, Message: msg})
}

// synchronize discards tokens until a likely statement boundary, so a single
// error does not cascade into a wall of spurious follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for !c.check(token.END) {
		if c.previous().Kind == token.DOT {
			return
		}
		if c.current().Kind.IsStatementStart() {
			return
		}
		c.advance()
	}
}

// --- byte-code emission ------------------------------------------------------

func (c *Compiler) emitByte(b byte) {
	c.chunk.WriteByte(b, c.previous().Line)
}

func (c *Compiler) emitOp(op bytecode.OpCode) {
	c.chunk.WriteOp(op, c.previous().Line)
}

func (c *Compiler) emitOpByte(op bytecode.OpCode, operand byte) {
	c.emitOp(op)
	c.emitByte(operand)
}

func (c *Compiler) emit16(v uint16) {
	c.chunk.Write16(v, c.previous().Line)
}

func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.emitOp(op)
	offset := len(c.chunk.Code)
	c.emit16(0xffff)
	return offset
}

func (c *Compiler) patchJump(offset int) {
	if err := c.chunk.PatchJump(offset); err != nil {
		c.error(err.Error())
	}
}

func (c *Compiler) emitLoop(loopStart int) {
	if err := c.chunk.EmitLoop(loopStart, c.previous().Line); err != nil {
		c.error(err.Error())
	}
}

func (c *Compiler) makeConstant(v bytecode.Value) byte {
	idx, err := c.chunk.AddConstant(v)
	if err != nil {
		c.error(err.Error())
		return 0
	}
	return idx
}

func (c *Compiler) emitConstant(v bytecode.Value) {
	c.emitOpByte(bytecode.OP_CONSTANT, c.makeConstant(v))
}

// --- scope management ---------------------------------------------------------

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitOp(bytecode.OP_POP)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Compiler) isGlobalScope() bool { return c.scopeDepth == 0 }

// resolveLocal looks up name in the active locals, innermost first, and
// returns its slot. ok is false if no such local exists.
func (c *Compiler) resolveLocal(name string) (slot int, typ bytecode.Type, ok bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.name == name {
			if l.depth == -1 {
				c.error(fmt.Sprintf("Die Variable '%s' kann nicht in ihrer eigenen Initialisierung gelesen werden!", name))
			}
			return l.slot, l.typ, true
		}
	}
	return 0, bytecode.None, false
}

// declareLocal reserves a new local slot at the current scope depth. The
// slot equals its position on the value stack: locals live there directly,
// mirroring the original VM's CallFrame "slots" iterator into the stack.
func (c *Compiler) declareLocal(name string, typ bytecode.Type) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name == name {
			c.error(fmt.Sprintf("Eine Variable mit dem Namen '%s' existiert bereits in diesem Gültigkeitsbereich!", name))
		}
	}
	slot := len(c.locals)
	c.locals = append(c.locals, local{name: name, typ: typ, depth: -1, slot: slot})
	return slot
}

func (c *Compiler) markInitialized() {
	if len(c.locals) == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

// identifierConstant interns name into the constant pool, reusing an
// existing slot for repeat references to the same global name.
func (c *Compiler) identifierConstant(name string) byte {
	if idx, ok := c.globalConstIdx[name]; ok {
		return idx
	}
	idx := c.makeConstant(bytecode.StringValue(name))
	c.globalConstIdx[name] = idx
	return idx
}
