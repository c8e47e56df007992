// Package vm executes a compiled Chunk on a stack-based virtual machine.
// Locals are never stored in a separate map: they live directly at fixed
// positions on the shared value stack, mirroring the original source's
// CallFrame whose "slots" field is an iterator straight into that stack.
package vm

import (
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/go-ddp/internal/bytecode"
	"github.com/cwbudde/go-ddp/internal/ddperror"
	"github.com/cwbudde/go-ddp/internal/natives"
)

// StackMax is the hard cap on concurrently live stack values (64 call
// frames' worth of headroom at 256 values each, even though this VM never
// compiles user-defined call frames).
const StackMax = 64 * 256

// Option configures a VM at construction time.
type Option func(*VM)

// WithOutput redirects the writer OP_PRINT and the `schreibe*` natives write
// to. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(v *VM) { v.out = w }
}

// WithInput redirects the reader the `lese*` natives read from. Defaults to
// an empty reader.
func WithInput(r io.Reader) Option {
	return func(v *VM) { v.in = r }
}

// WithTrace enables per-instruction disassembly tracing to the configured
// trace writer as each opcode executes.
func WithTrace(w io.Writer) Option {
	return func(v *VM) { v.trace = w }
}

// VM executes one Chunk at a time against a shared value stack and a
// process-level globals map.
type VM struct {
	chunk *bytecode.Chunk
	ip    int

	stack    [StackMax]bytecode.Value
	stackTop int

	globals map[string]bytecode.Value

	forDirection []bool // one entry per active FORPREP, ascending = true

	out   io.Writer
	in    io.Reader
	trace io.Writer

	nativeIO       *natives.IO
	nativeHandlers map[string]natives.Handler
}

// New creates a VM ready to Run a Chunk.
func New(opts ...Option) *VM {
	v := &VM{
		globals:        make(map[string]bytecode.Value),
		out:            io.Discard,
		nativeHandlers: natives.Handlers(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.in == nil {
		v.in = &emptyReader{}
	}
	v.nativeIO = natives.NewIO(v.out, v.in)
	return v
}

type emptyReader struct{}

func (*emptyReader) Read([]byte) (int, error) { return 0, io.EOF }

// Run executes chunk from byte 0 until OP_RETURN at the top level or a
// runtime error.
func (v *VM) Run(chunk *bytecode.Chunk) error {
	v.chunk = chunk
	v.ip = 0
	v.stackTop = 0
	v.forDirection = v.forDirection[:0]

	for {
		if v.trace != nil {
			bytecode.DisassembleInstruction(v.trace, v.chunk, v.ip)
		}
		op := bytecode.OpCode(v.readByte())
		switch op {
		case bytecode.OP_CONSTANT:
			if err := v.push(v.chunk.Constants[v.readByte()]); err != nil {
				return err
			}

		case bytecode.OP_ARRAY:
			if err := v.execArray(); err != nil {
				return err
			}

		case bytecode.OP_POP:
			v.pop()

		case bytecode.OP_ADD:
			if err := v.execAdd(); err != nil {
				return err
			}
		case bytecode.OP_SUBTRACT:
			if err := v.numericBinOp(func(a, b float64) float64 { return a - b }, func(a, b int32) int32 { return a - b }); err != nil {
				return err
			}
		case bytecode.OP_MULTIPLY:
			if err := v.numericBinOp(func(a, b float64) float64 { return a * b }, func(a, b int32) int32 { return a * b }); err != nil {
				return err
			}
		case bytecode.OP_DIVIDE:
			if err := v.execDivide(); err != nil {
				return err
			}
		case bytecode.OP_MODULO:
			if err := v.execModulo(); err != nil {
				return err
			}
		case bytecode.OP_EXPONENT:
			if err := v.execExponent(); err != nil {
				return err
			}
		case bytecode.OP_ROOT:
			if err := v.execRoot(); err != nil {
				return err
			}
		case bytecode.OP_NEGATE:
			if err := v.execNegate(); err != nil {
				return err
			}
		case bytecode.OP_LN:
			if err := v.execLn(); err != nil {
				return err
			}
		case bytecode.OP_BETRAG:
			if err := v.execBetrag(); err != nil {
				return err
			}

		case bytecode.OP_BITWISE_NOT:
			a := v.pop()
			if err := v.push(bytecode.IntValue(^a.Int())); err != nil {
				return err
			}
		case bytecode.OP_BITWISE_AND:
			b, a := v.pop(), v.pop()
			if err := v.push(bytecode.IntValue(a.Int() & b.Int())); err != nil {
				return err
			}
		case bytecode.OP_BITWISE_OR:
			b, a := v.pop(), v.pop()
			if err := v.push(bytecode.IntValue(a.Int() | b.Int())); err != nil {
				return err
			}
		case bytecode.OP_BITWISE_XOR:
			b, a := v.pop(), v.pop()
			if err := v.push(bytecode.IntValue(a.Int() ^ b.Int())); err != nil {
				return err
			}
		case bytecode.OP_LEFT_BITSHIFT:
			b, a := v.pop(), v.pop()
			if err := v.push(bytecode.IntValue(a.Int() << uint32(b.Int()))); err != nil {
				return err
			}
		case bytecode.OP_RIGHT_BITSHIFT:
			b, a := v.pop(), v.pop()
			if err := v.push(bytecode.IntValue(a.Int() >> uint32(b.Int()))); err != nil {
				return err
			}

		case bytecode.OP_NOT:
			a := v.pop()
			if err := v.push(bytecode.BoolValue(!a.Bool())); err != nil {
				return err
			}

		case bytecode.OP_EQUAL, bytecode.OP_UNEQUAL:
			b, a := v.pop(), v.pop()
			eq, _ := bytecode.Equal(a, b)
			if op == bytecode.OP_UNEQUAL {
				eq = !eq
			}
			if err := v.push(bytecode.BoolValue(eq)); err != nil {
				return err
			}

		case bytecode.OP_GREATER, bytecode.OP_GREATER_EQUAL, bytecode.OP_LESS, bytecode.OP_LESS_EQUAL:
			if err := v.execCompare(op); err != nil {
				return err
			}

		case bytecode.OP_DEFINE_GLOBAL:
			name := v.chunk.Constants[v.readByte()].Str()
			v.globals[name] = v.pop()

		case bytecode.OP_GET_GLOBAL:
			name := v.chunk.Constants[v.readByte()].Str()
			val, ok := v.globals[name]
			if !ok {
				return &ddperror.RuntimeError{Message: fmt.Sprintf("Die Variable '%s' ist nicht definiert!", name)}
			}
			if err := v.push(val); err != nil {
				return err
			}

		case bytecode.OP_SET_GLOBAL:
			name := v.chunk.Constants[v.readByte()].Str()
			val := v.pop()
			v.globals[name] = val
			if err := v.push(val); err != nil {
				return err
			}

		case bytecode.OP_DEFINE_LOCAL:
			v.readByte() // slot already holds its value; a pure marker, no runtime effect

		case bytecode.OP_GET_LOCAL:
			slot := v.readByte()
			if err := v.push(v.stack[slot]); err != nil {
				return err
			}

		case bytecode.OP_SET_LOCAL:
			slot := v.readByte()
			val := v.pop()
			v.stack[slot] = val
			if err := v.push(val); err != nil {
				return err
			}

		case bytecode.OP_DEFINE_EMPTY_ARR:
			elem := bytecode.Type(v.readByte())
			size := v.pop()
			if err := v.push(bytecode.ZeroArray(elem, int(size.Int()))); err != nil {
				return err
			}

		case bytecode.OP_DEFINE_EMPTY_ARR_LOCAL:
			v.readByte() // slot, unused: the value is already in place
			elem := bytecode.Type(v.readByte())
			size := v.pop()
			if err := v.push(bytecode.ZeroArray(elem, int(size.Int()))); err != nil {
				return err
			}

		case bytecode.OP_GET_ARRAY_ELEMENT:
			idx, arr := v.pop(), v.pop()
			elem, err := arrayGet(arr, int(idx.Int()))
			if err != nil {
				return err
			}
			if err := v.push(elem); err != nil {
				return err
			}

		case bytecode.OP_SET_ARRAY_ELEMENT:
			val, idx, arr := v.pop(), v.pop(), v.pop()
			mutated, err := arraySet(arr, int(idx.Int()), val)
			if err != nil {
				return err
			}
			if err := v.push(mutated); err != nil {
				return err
			}

		case bytecode.OP_GET_ARRAY_ELEMENT_LOCAL:
			slot := v.readByte()
			idx := v.pop()
			elem, err := arrayGet(v.stack[slot], int(idx.Int()))
			if err != nil {
				return err
			}
			if err := v.push(elem); err != nil {
				return err
			}

		case bytecode.OP_SET_ARRAY_ELEMENT_LOCAL:
			slot := v.readByte()
			val, idx := v.pop(), v.pop()
			mutated, err := arraySet(v.stack[slot], int(idx.Int()), val)
			if err != nil {
				return err
			}
			v.stack[slot] = mutated
			if err := v.push(val); err != nil {
				return err
			}

		case bytecode.OP_JUMP:
			v.ip += int(v.read16())
		case bytecode.OP_JUMP_IF_FALSE:
			off := v.read16()
			if !v.peek(0).Bool() {
				v.ip += int(off)
			}
		case bytecode.OP_LOOP:
			off := v.read16()
			v.ip -= int(off)

		case bytecode.OP_FORPREP:
			step := v.stack[v.stackTop-1]
			v.forDirection = append(v.forDirection, step.Int() >= 0)
		case bytecode.OP_FORTEST:
			off := v.read16()
			ascending := v.forDirection[len(v.forDirection)-1]
			counter, end := v.stack[v.stackTop-3], v.stack[v.stackTop-2]
			ok := counter.Int() <= end.Int()
			if !ascending {
				ok = counter.Int() >= end.Int()
			}
			if !ok {
				v.ip += int(off)
			}
		case bytecode.OP_FORDONE:
			v.forDirection = v.forDirection[:len(v.forDirection)-1]

		case bytecode.OP_CALL:
			name := v.chunk.Constants[v.readByte()].Str()
			if err := v.execCall(name); err != nil {
				return err
			}

		case bytecode.OP_RETURN:
			return nil

		case bytecode.OP_PRINT:
			val := v.pop()
			fmt.Fprint(v.out, val.String())

		default:
			return &ddperror.RuntimeError{Message: fmt.Sprintf("Unbekannter Opcode %d!", op)}
		}
	}
}

func (v *VM) readByte() byte {
	b := v.chunk.Code[v.ip]
	v.ip++
	return b
}

func (v *VM) read16() uint16 {
	hi, lo := v.readByte(), v.readByte()
	return uint16(hi)<<8 | uint16(lo)
}

func (v *VM) push(val bytecode.Value) error {
	if v.stackTop >= StackMax {
		return &ddperror.RuntimeError{Message: ddperror.StapelUeberfluss}
	}
	v.stack[v.stackTop] = val
	v.stackTop++
	return nil
}

func (v *VM) pop() bytecode.Value {
	v.stackTop--
	return v.stack[v.stackTop]
}

func (v *VM) peek(distance int) bytecode.Value {
	return v.stack[v.stackTop-1-distance]
}

func arrayGet(arr bytecode.Value, idx int) (bytecode.Value, error) {
	if idx < 0 || idx >= arr.Len() {
		return bytecode.Value{}, &ddperror.RuntimeError{Message: "Index außerhalb der Grenzen des Arrays!"}
	}
	switch arr.Type() {
	case bytecode.IntArr:
		return bytecode.IntValue(arr.IntArr()[idx]), nil
	case bytecode.DoubleArr:
		return bytecode.DoubleValue(arr.DoubleArr()[idx]), nil
	case bytecode.BoolArr:
		return bytecode.BoolValue(arr.BoolArr()[idx]), nil
	case bytecode.CharArr:
		return bytecode.CharValue(arr.CharArr()[idx]), nil
	case bytecode.StringArr:
		return bytecode.StringValue(arr.StringArr()[idx]), nil
	}
	return bytecode.Value{}, &ddperror.RuntimeError{Message: "Der Wert ist kein Array!"}
}

func arraySet(arr bytecode.Value, idx int, val bytecode.Value) (bytecode.Value, error) {
	if idx < 0 || idx >= arr.Len() {
		return bytecode.Value{}, &ddperror.RuntimeError{Message: "Index außerhalb der Grenzen des Arrays!"}
	}
	mutated := arr.Clone()
	switch mutated.Type() {
	case bytecode.IntArr:
		mutated.IntArr()[idx] = val.Int()
	case bytecode.DoubleArr:
		mutated.DoubleArr()[idx] = val.Double()
	case bytecode.BoolArr:
		mutated.BoolArr()[idx] = val.Bool()
	case bytecode.CharArr:
		mutated.CharArr()[idx] = val.Char()
	case bytecode.StringArr:
		mutated.StringArr()[idx] = val.Str()
	default:
		return bytecode.Value{}, &ddperror.RuntimeError{Message: "Der Wert ist kein Array!"}
	}
	return mutated, nil
}

func (v *VM) execArray() error {
	lenIdx := v.readByte()
	elemType := bytecode.Type(v.readByte())
	n := int(v.chunk.Constants[lenIdx].Int())
	elems := make([]bytecode.Value, n)
	for i := n - 1; i >= 0; i-- {
		elems[i] = v.pop()
	}
	arr, err := buildArray(elemType, elems)
	if err != nil {
		return err
	}
	return v.push(arr)
}

func buildArray(elemType bytecode.Type, elems []bytecode.Value) (bytecode.Value, error) {
	switch elemType {
	case bytecode.Int:
		out := make([]int32, len(elems))
		for i, e := range elems {
			out[i] = e.Int()
		}
		return bytecode.IntArrValue(out), nil
	case bytecode.Double:
		out := make([]float64, len(elems))
		for i, e := range elems {
			out[i] = e.Double()
		}
		return bytecode.DoubleArrValue(out), nil
	case bytecode.Bool:
		out := make([]bool, len(elems))
		for i, e := range elems {
			out[i] = e.Bool()
		}
		return bytecode.BoolArrValue(out), nil
	case bytecode.Char:
		out := make([]rune, len(elems))
		for i, e := range elems {
			out[i] = e.Char()
		}
		return bytecode.CharArrValue(out), nil
	case bytecode.String:
		out := make([]string, len(elems))
		for i, e := range elems {
			out[i] = e.Str()
		}
		return bytecode.StringArrValue(out), nil
	}
	return bytecode.Value{}, &ddperror.RuntimeError{Message: "Ungültiger Element Typ für ein Array Literal!"}
}

func (v *VM) execAdd() error {
	b, a := v.pop(), v.pop()
	switch {
	case a.Type() == bytecode.Int && b.Type() == bytecode.Int:
		return v.push(bytecode.IntValue(a.Int() + b.Int()))
	case isNumericValue(a) && isNumericValue(b):
		return v.push(bytecode.DoubleValue(asDouble(a) + asDouble(b)))
	case a.Type() == bytecode.Char && b.Type() == bytecode.Char:
		return v.push(bytecode.StringValue(string(a.Char()) + string(b.Char())))
	case a.Type() == bytecode.Char && isNumericValue(b):
		return v.push(bytecode.IntValue(int32(a.Char()) + int32(asDouble(b))))
	case isNumericValue(a) && b.Type() == bytecode.Char:
		return v.push(bytecode.IntValue(int32(asDouble(a)) + int32(b.Char())))
	case a.Type() == bytecode.String || b.Type() == bytecode.String:
		return v.push(bytecode.StringValue(a.String() + b.String()))
	}
	return &ddperror.RuntimeError{Message: "Die Operanden von 'plus' passen nicht zusammen!"}
}

func isNumericValue(v bytecode.Value) bool {
	return v.Type() == bytecode.Int || v.Type() == bytecode.Double
}

func asDouble(v bytecode.Value) float64 {
	if v.Type() == bytecode.Int {
		return float64(v.Int())
	}
	return v.Double()
}

func (v *VM) numericBinOp(fd func(a, b float64) float64, fi func(a, b int32) int32) error {
	b, a := v.pop(), v.pop()
	if a.Type() == bytecode.Int && b.Type() == bytecode.Int {
		return v.push(bytecode.IntValue(fi(a.Int(), b.Int())))
	}
	return v.push(bytecode.DoubleValue(fd(asDouble(a), asDouble(b))))
}

func (v *VM) execDivide() error {
	b, a := v.pop(), v.pop()
	if a.Type() == bytecode.Int && b.Type() == bytecode.Int {
		if b.Int() == 0 {
			return &ddperror.RuntimeError{Message: "Division durch 0!"}
		}
		return v.push(bytecode.IntValue(a.Int() / b.Int()))
	}
	bd := asDouble(b)
	if bd == 0 {
		return &ddperror.RuntimeError{Message: "Division durch 0!"}
	}
	return v.push(bytecode.DoubleValue(asDouble(a) / bd))
}

func (v *VM) execModulo() error {
	b, a := v.pop(), v.pop()
	if b.Int() == 0 {
		return &ddperror.RuntimeError{Message: "Division durch 0!"}
	}
	return v.push(bytecode.IntValue(a.Int() % b.Int()))
}

func (v *VM) execExponent() error {
	b, a := v.pop(), v.pop()
	if a.Type() == bytecode.Int && b.Type() == bytecode.Int && b.Int() >= 0 {
		return v.push(bytecode.IntValue(int32(math.Pow(float64(a.Int()), float64(b.Int())))))
	}
	return v.push(bytecode.DoubleValue(math.Pow(asDouble(a), asDouble(b))))
}

func (v *VM) execRoot() error {
	radicand, degree := v.pop(), v.pop()
	if degree.Int() == 0 {
		return &ddperror.RuntimeError{Message: "Der Grad einer Wurzel darf nicht 0 sein!"}
	}
	return v.push(bytecode.DoubleValue(math.Pow(asDouble(radicand), 1/float64(degree.Int()))))
}

func (v *VM) execNegate() error {
	a := v.pop()
	if a.Type() == bytecode.Int {
		return v.push(bytecode.IntValue(-a.Int()))
	}
	return v.push(bytecode.DoubleValue(-a.Double()))
}

func (v *VM) execLn() error {
	a := v.pop()
	return v.push(bytecode.DoubleValue(math.Log(asDouble(a))))
}

func (v *VM) execBetrag() error {
	a := v.pop()
	if a.Type() == bytecode.Int {
		n := a.Int()
		if n < 0 {
			n = -n
		}
		return v.push(bytecode.IntValue(n))
	}
	return v.push(bytecode.DoubleValue(math.Abs(a.Double())))
}

func (v *VM) execCompare(op bytecode.OpCode) error {
	b, a := v.pop(), v.pop()
	ad, bd := asDouble(a), asDouble(b)
	var result bool
	switch op {
	case bytecode.OP_GREATER:
		result = ad > bd
	case bytecode.OP_GREATER_EQUAL:
		result = ad >= bd
	case bytecode.OP_LESS:
		result = ad < bd
	case bytecode.OP_LESS_EQUAL:
		result = ad <= bd
	}
	return v.push(bytecode.BoolValue(result))
}

func (v *VM) execCall(name string) error {
	handler, ok := v.nativeHandlers[name]
	if !ok {
		return &ddperror.RuntimeError{Message: fmt.Sprintf("Unbekannte Funktion '%s'!", name)}
	}
	sig, ok := natives.Signatures()[name]
	if !ok {
		return &ddperror.RuntimeError{Message: fmt.Sprintf("Unbekannte Funktion '%s'!", name)}
	}
	args := make([]bytecode.Value, len(sig.Args))
	for i := len(sig.Args) - 1; i >= 0; i-- {
		args[i] = v.pop()
	}
	result, err := handler(args, v.nativeIO)
	if err != nil {
		return err
	}
	if sig.Return != bytecode.None {
		return v.push(result)
	}
	return nil
}
