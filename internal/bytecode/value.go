// Package bytecode defines the runtime Value model and the byte-stream
// Chunk container the compiler emits into and the VM executes.
package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the closed set of runtime value kinds. Array types sit at a fixed
// offset (+5) from their scalar base so the compiler can map one to the
// other by arithmetic instead of a second table.
type Type byte

const (
	None Type = iota
	Int
	Double
	Bool
	Char
	String
	IntArr
	DoubleArr
	BoolArr
	CharArr
	StringArr
)

// arrayOffset is the fixed distance between a scalar Type and its array Type.
const arrayOffset = 5

// ArrayOf returns the array Type for a scalar Type; ok is false if t is not
// scalar or is not array-able.
func (t Type) ArrayOf() (Type, bool) {
	switch t {
	case Int, Double, Bool, Char, String:
		return t + arrayOffset, true
	}
	return None, false
}

// ElemType returns the scalar element Type of an array Type; ok is false if
// t is not an array type.
func (t Type) ElemType() (Type, bool) {
	if t >= IntArr && t <= StringArr {
		return t - arrayOffset, true
	}
	return None, false
}

func (t Type) IsArray() bool { return t >= IntArr && t <= StringArr }

var typeNames = [...]string{
	None: "None", Int: "Zahl", Double: "Kommazahl", Bool: "Boolean", Char: "Buchstabe", String: "Text",
	IntArr: "Zahlen", DoubleArr: "Kommazahlen", BoolArr: "Booleans", CharArr: "Buchstaben", StringArr: "Texte",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// Value is a tagged union holding exactly one runtime datum. Scalars are
// stored inline; String and the five array kinds own heap-backed data that
// is deep-copied by Clone, matching the value semantics the spec requires.
type Value struct {
	typ     Type
	i       int32
	d       float64
	b       bool
	c       rune
	s       string
	intArr  []int32
	dblArr  []float64
	boolArr []bool
	chrArr  []rune
	strArr  []string
}

func (v Value) Type() Type { return v.typ }

func IntValue(i int32) Value       { return Value{typ: Int, i: i} }
func DoubleValue(d float64) Value  { return Value{typ: Double, d: d} }
func BoolValue(b bool) Value       { return Value{typ: Bool, b: b} }
func CharValue(c rune) Value       { return Value{typ: Char, c: c} }
func StringValue(s string) Value   { return Value{typ: String, s: s} }
func IntArrValue(v []int32) Value  { return Value{typ: IntArr, intArr: v} }
func DoubleArrValue(v []float64) Value { return Value{typ: DoubleArr, dblArr: v} }
func BoolArrValue(v []bool) Value  { return Value{typ: BoolArr, boolArr: v} }
func CharArrValue(v []rune) Value  { return Value{typ: CharArr, chrArr: v} }
func StringArrValue(v []string) Value { return Value{typ: StringArr, strArr: v} }

func (v Value) Int() int32       { return v.i }
func (v Value) Double() float64  { return v.d }
func (v Value) Bool() bool       { return v.b }
func (v Value) Char() rune       { return v.c }
func (v Value) Str() string      { return v.s }
func (v Value) IntArr() []int32     { return v.intArr }
func (v Value) DoubleArr() []float64 { return v.dblArr }
func (v Value) BoolArr() []bool     { return v.boolArr }
func (v Value) CharArr() []rune     { return v.chrArr }
func (v Value) StringArr() []string { return v.strArr }

// Len returns the element count of an array-typed Value.
func (v Value) Len() int {
	switch v.typ {
	case IntArr:
		return len(v.intArr)
	case DoubleArr:
		return len(v.dblArr)
	case BoolArr:
		return len(v.boolArr)
	case CharArr:
		return len(v.chrArr)
	case StringArr:
		return len(v.strArr)
	}
	return 0
}

// Clone deep-copies any owned heap data, implementing the spec's value
// (not reference) copy semantics for strings and arrays.
func (v Value) Clone() Value {
	switch v.typ {
	case IntArr:
		out := make([]int32, len(v.intArr))
		copy(out, v.intArr)
		return IntArrValue(out)
	case DoubleArr:
		out := make([]float64, len(v.dblArr))
		copy(out, v.dblArr)
		return DoubleArrValue(out)
	case BoolArr:
		out := make([]bool, len(v.boolArr))
		copy(out, v.boolArr)
		return BoolArrValue(out)
	case CharArr:
		out := make([]rune, len(v.chrArr))
		copy(out, v.chrArr)
		return CharArrValue(out)
	case StringArr:
		out := make([]string, len(v.strArr))
		copy(out, v.strArr)
		return StringArrValue(out)
	default:
		return v
	}
}

// ZeroArray returns a zero-initialized array Value of n elements of the
// given scalar element type, backing `<N> Stück` allocation.
func ZeroArray(elem Type, n int) Value {
	switch elem {
	case Int:
		return IntArrValue(make([]int32, n))
	case Double:
		return DoubleArrValue(make([]float64, n))
	case Bool:
		return BoolArrValue(make([]bool, n))
	case Char:
		return CharArrValue(make([]rune, n))
	case String:
		return StringArrValue(make([]string, n))
	}
	return Value{}
}

// FormatDouble renders a float64 using ',' as the decimal separator, per the
// language's German number formatting convention.
func FormatDouble(d float64) string {
	s := strconv.FormatFloat(d, 'f', -1, 64)
	return strings.Replace(s, ".", ",", 1)
}

// String renders v the way the `schreibe`/`$` debug-print natives do.
func (v Value) String() string {
	switch v.typ {
	case None:
		return ""
	case Int:
		return strconv.FormatInt(int64(v.i), 10)
	case Double:
		return FormatDouble(v.d)
	case Bool:
		if v.b {
			return "wahr"
		}
		return "falsch"
	case Char:
		return string(v.c)
	case String:
		return v.s
	case IntArr:
		parts := make([]string, len(v.intArr))
		for i, e := range v.intArr {
			parts[i] = strconv.FormatInt(int64(e), 10)
		}
		return "[" + strings.Join(parts, "; ") + "]"
	case DoubleArr:
		parts := make([]string, len(v.dblArr))
		for i, e := range v.dblArr {
			parts[i] = FormatDouble(e)
		}
		return "[" + strings.Join(parts, "; ") + "]"
	case BoolArr:
		parts := make([]string, len(v.boolArr))
		for i, e := range v.boolArr {
			if e {
				parts[i] = "wahr"
			} else {
				parts[i] = "falsch"
			}
		}
		return "[" + strings.Join(parts, "; ") + "]"
	case CharArr:
		parts := make([]string, len(v.chrArr))
		for i, e := range v.chrArr {
			parts[i] = "'" + string(e) + "'"
		}
		return "[" + strings.Join(parts, "; ") + "]"
	case StringArr:
		parts := make([]string, len(v.strArr))
		for i, e := range v.strArr {
			parts[i] = "\"" + e + "\""
		}
		return "[" + strings.Join(parts, "; ") + "]"
	}
	return "<ungültiger Wert>"
}

// Equal implements gleich/ungleich for the type combinations the spec admits:
// numeric, Bool, Char, and String.
func Equal(a, b Value) (bool, bool) {
	switch {
	case a.typ == Int && b.typ == Int:
		return a.i == b.i, true
	case a.typ == Double && b.typ == Double:
		return a.d == b.d, true
	case a.typ == Int && b.typ == Double:
		return float64(a.i) == b.d, true
	case a.typ == Double && b.typ == Int:
		return a.d == float64(b.i), true
	case a.typ == Bool && b.typ == Bool:
		return a.b == b.b, true
	case a.typ == Char && b.typ == Char:
		return a.c == b.c, true
	case a.typ == String && b.typ == String:
		return a.s == b.s, true
	}
	return false, false
}
