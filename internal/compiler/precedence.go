package compiler

// Precedence levels for the Pratt-style expression parser, in ascending
// binding strength. parsePrecedence(p) consumes a prefix then repeatedly
// consumes infix operators whose own precedence is >= p.
type Precedence int

const (
	PREC_NONE Precedence = iota
	PREC_ASSIGNMENT
	PREC_OR
	PREC_AND
	PREC_BITWISE
	PREC_EQUALITY
	PREC_COMPARISON
	PREC_BITSHIFT
	PREC_TERM
	PREC_FACTOR
	PREC_EXPONENT
	PREC_INDEXING
	PREC_UNARY
	PREC_CALL
	PREC_PRIMARY
)
