package compiler

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/go-ddp/internal/lexer"
	"github.com/cwbudde/go-ddp/internal/vm"
)

// fixtures mirrors the worked end-to-end scenarios: each program is scanned,
// compiled, and run, and its debug-print output is checked against a stored
// snapshot rather than an inline literal.
var fixtures = []struct {
	name string
	src  string
}{
	{
		name: "OperatorPrecedence",
		src:  `die Zahl x ist 3 plus 4 mal 2. $x.`,
	},
	{
		name: "ArrayIndexIsOneBasedOnTheSurface",
		src:  `die Zahlen a sind [1; 2; 3]. $a an der 2 Stelle.`,
	},
	{
		name: "ComparisonIntoBooleanSugar",
		src:  `der Boolean b ist wahr wenn 5 größer 3 ist. $b.`,
	},
	{
		name: "GlobalReassignment",
		src:  `die Zahl n ist 10. n ist n plus 1. $n.`,
	},
	{
		name: "StringConcatenation",
		src:  `die Text s ist "Hallo" plus ", Welt". $s.`,
	},
	{
		name: "ZeroInitializedArrayAllocation",
		src: `die Zahlen xs sind 5 Stück.
$xs an der 1 Stelle.
$xs an der 5 Stelle.
`,
	},
}

func TestDDPFixtures(t *testing.T) {
	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			tokens, ok := lexer.New(f.src).ScanTokens()
			require.True(t, ok, "scanning must succeed")

			c := New(tokens)
			chunk, ok := c.Compile()
			require.True(t, ok, "compiling must succeed: %v", c.Errors())

			var out bytes.Buffer
			machine := vm.New(vm.WithOutput(&out))
			require.NoError(t, machine.Run(chunk))

			snaps.MatchSnapshot(t, fmt.Sprintf("%s_output", f.name), out.String())
		})
	}
}
