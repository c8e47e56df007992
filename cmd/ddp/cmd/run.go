package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/cwbudde/go-ddp/internal/bytecode"
	"github.com/cwbudde/go-ddp/internal/compiler"
	"github.com/cwbudde/go-ddp/internal/lexer"
	"github.com/cwbudde/go-ddp/internal/vm"
)

var (
	asciiOutput  bool
	trace        bool
	dumpBytecode bool
)

var runCmd = &cobra.Command{
	Use:   "run <source-path>",
	Short: "Scan, compile, and execute a ddp source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFile,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&asciiOutput, "ascii", false, "transcode console output to ISO-8859-1 (Latin-1), replacing unsupported runes")
	runCmd.Flags().BoolVar(&trace, "trace", false, "trace opcode execution to stderr")
	runCmd.Flags().BoolVar(&dumpBytecode, "dump-bytecode", false, "print the compiled bytecode's disassembly before running")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// asciiWriter wraps stdout with a transform.Writer that encodes output as
// ISO-8859-1: ä, ö, ü, ß and the other Latin-1 runes become their single
// Latin-1 byte, and anything Latin-1 cannot represent is replaced.
func asciiWriter(w *os.File) *transform.Writer {
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	return transform.NewWriter(w, enc)
}

func runFile(_ *cobra.Command, args []string) error {
	path := args[0]
	logger := newLogger()

	var out io.Writer = os.Stdout
	if asciiOutput {
		w := asciiWriter(os.Stdout)
		defer w.Close()
		out = w
	}

	l, err := lexer.NewFromFile(path)
	if err != nil {
		return fmt.Errorf("konnte die Datei nicht lesen: %w", err)
	}
	tokens, ok := l.ScanTokens()
	if !ok {
		for _, e := range l.Errors() {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fmt.Errorf("Scannen fehlgeschlagen mit %d Fehler(n)", len(l.Errors()))
	}
	logger.Debug("scan complete", "tokens", len(tokens))

	c := compiler.New(tokens)
	chunk, ok := c.Compile()
	if !ok {
		for _, e := range c.Errors() {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fmt.Errorf("Kompilieren fehlgeschlagen mit %d Fehler(n)", len(c.Errors()))
	}
	logger.Debug("compile complete", "bytes", len(chunk.Code), "constants", len(chunk.Constants))

	if dumpBytecode {
		bytecode.Disassemble(os.Stderr, chunk, path)
	}

	var vmOpts []vm.Option
	vmOpts = append(vmOpts, vm.WithOutput(out), vm.WithInput(os.Stdin))
	if trace {
		vmOpts = append(vmOpts, vm.WithTrace(os.Stderr))
	}

	machine := vm.New(vmOpts...)
	if err := machine.Run(chunk); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return fmt.Errorf("Laufzeitfehler")
	}
	return nil
}
