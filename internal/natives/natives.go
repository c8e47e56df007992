// Package natives implements the built-in functions the VM's CALL
// instruction dispatches to: console and file I/O, time, type casts,
// string manipulation, and numeric helpers. The compiler loads the
// signature table but has no call expression, so compiled ddp source never
// emits CALL.
package natives

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/go-ddp/internal/bytecode"
	"github.com/cwbudde/go-ddp/internal/ddperror"
)

// Signature declares a native's argument types (in call order) and its
// return type. The VM uses it to pop the arguments of a CALL and to decide
// whether to push a result; the types themselves are not checked.
type Signature struct {
	Args   []bytecode.Type
	Return bytecode.Type
}

// Handler executes a native given its already type-checked arguments.
type Handler func(args []bytecode.Value, io *IO) (bytecode.Value, error)

// IO bundles the streams natives read from and write to, so console and
// tests can swap them independently of the OS's real stdio.
type IO struct {
	Out io.Writer
	In  *bufio.Reader
}

func NewIO(out io.Writer, in io.Reader) *IO {
	return &IO{Out: out, In: bufio.NewReader(in)}
}

var registry = map[string]Signature{
	"schreibe":      {Args: []bytecode.Type{bytecode.String}, Return: bytecode.None},
	"schreibeZeile": {Args: []bytecode.Type{bytecode.String}, Return: bytecode.None},
	"lese":          {Args: nil, Return: bytecode.Char},
	"leseZeile":     {Args: nil, Return: bytecode.String},

	"existiertDatei":  {Args: []bytecode.Type{bytecode.String}, Return: bytecode.Bool},
	"leseDatei":       {Args: []bytecode.Type{bytecode.String}, Return: bytecode.String},
	"schreibeDatei":   {Args: []bytecode.Type{bytecode.String, bytecode.String}, Return: bytecode.None},
	"bearbeiteDatei":  {Args: []bytecode.Type{bytecode.String, bytecode.String}, Return: bytecode.None},
	"leseBytes":       {Args: []bytecode.Type{bytecode.String}, Return: bytecode.IntArr},
	"schreibeBytes":   {Args: []bytecode.Type{bytecode.String, bytecode.IntArr}, Return: bytecode.None},
	"bearbeiteBytes":  {Args: []bytecode.Type{bytecode.String, bytecode.IntArr}, Return: bytecode.None},

	"clock": {Args: nil, Return: bytecode.Double},
	"warte": {Args: []bytecode.Type{bytecode.Double}, Return: bytecode.None},

	"zuZahl":       {Args: []bytecode.Type{bytecode.String}, Return: bytecode.Int},
	"zuKommazahl":  {Args: []bytecode.Type{bytecode.String}, Return: bytecode.Double},
	"zuBoolean":    {Args: []bytecode.Type{bytecode.String}, Return: bytecode.Bool},
	"zuZeichen":    {Args: []bytecode.Type{bytecode.String}, Return: bytecode.Char},
	"zuZeichenkette": {Args: []bytecode.Type{bytecode.String}, Return: bytecode.String},

	"Laenge": {Args: []bytecode.Type{bytecode.String}, Return: bytecode.Int},

	"Zuschneiden": {Args: []bytecode.Type{bytecode.String, bytecode.Int, bytecode.Int}, Return: bytecode.String},
	"Spalten":     {Args: []bytecode.Type{bytecode.String, bytecode.String}, Return: bytecode.StringArr},
	"Ersetzen":    {Args: []bytecode.Type{bytecode.String, bytecode.String, bytecode.String}, Return: bytecode.String},
	"Entfernen":   {Args: []bytecode.Type{bytecode.String, bytecode.Int, bytecode.Int}, Return: bytecode.String},
	"Einfügen":    {Args: []bytecode.Type{bytecode.String, bytecode.String, bytecode.Int}, Return: bytecode.String},
	"Enthält":     {Args: []bytecode.Type{bytecode.String, bytecode.String}, Return: bytecode.Bool},
	"Beschneiden": {Args: []bytecode.Type{bytecode.String}, Return: bytecode.String},

	"Max":       {Args: []bytecode.Type{bytecode.Double, bytecode.Double}, Return: bytecode.Double},
	"Min":       {Args: []bytecode.Type{bytecode.Double, bytecode.Double}, Return: bytecode.Double},
	"Clamp":     {Args: []bytecode.Type{bytecode.Double, bytecode.Double, bytecode.Double}, Return: bytecode.Double},
	"Trunkiert": {Args: []bytecode.Type{bytecode.Double}, Return: bytecode.Int},
	"Rund":      {Args: []bytecode.Type{bytecode.Double}, Return: bytecode.Int},
	"Decke":     {Args: []bytecode.Type{bytecode.Double}, Return: bytecode.Int},
	"Boden":     {Args: []bytecode.Type{bytecode.Double}, Return: bytecode.Int},
}

// Signatures returns a copy of the native catalog's type signatures, keyed
// by the name the `CALL` opcode resolves.
func Signatures() map[string]Signature {
	out := make(map[string]Signature, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

var handlers = map[string]Handler{
	"schreibe":      hSchreibe,
	"schreibeZeile": hSchreibeZeile,
	"lese":          hLese,
	"leseZeile":     hLeseZeile,

	"existiertDatei": hExistiertDatei,
	"leseDatei":      hLeseDatei,
	"schreibeDatei":  hSchreibeDatei,
	"bearbeiteDatei": hBearbeiteDatei,
	"leseBytes":      hLeseBytes,
	"schreibeBytes":  hSchreibeBytes,
	"bearbeiteBytes": hBearbeiteBytes,

	"clock": hClock,
	"warte": hWarte,

	"zuZahl":         hZuZahl,
	"zuKommazahl":    hZuKommazahl,
	"zuBoolean":      hZuBoolean,
	"zuZeichen":      hZuZeichen,
	"zuZeichenkette": hZuZeichenkette,

	"Laenge": hLaenge,

	"Zuschneiden": hZuschneiden,
	"Spalten":     hSpalten,
	"Ersetzen":    hErsetzen,
	"Entfernen":   hEntfernen,
	"Einfügen":    hEinfuegen,
	"Enthält":     hEnthaelt,
	"Beschneiden": hBeschneiden,

	"Max":       hMax,
	"Min":       hMin,
	"Clamp":     hClamp,
	"Trunkiert": hTrunkiert,
	"Rund":      hRund,
	"Decke":     hDecke,
	"Boden":     hBoden,
}

// Handlers returns a copy of the native dispatch table.
func Handlers() map[string]Handler {
	out := make(map[string]Handler, len(handlers))
	for k, v := range handlers {
		out[k] = v
	}
	return out
}

func runtimeErr(format string, args ...any) error {
	return &ddperror.RuntimeError{Message: fmt.Sprintf(format, args...)}
}

// --- console I/O --------------------------------------------------------------

func hSchreibe(args []bytecode.Value, io *IO) (bytecode.Value, error) {
	fmt.Fprint(io.Out, args[0].Str())
	return bytecode.Value{}, nil
}

func hSchreibeZeile(args []bytecode.Value, io *IO) (bytecode.Value, error) {
	fmt.Fprintln(io.Out, args[0].Str())
	return bytecode.Value{}, nil
}

func hLese(args []bytecode.Value, io *IO) (bytecode.Value, error) {
	r, _, err := io.In.ReadRune()
	if err != nil {
		return bytecode.Value{}, runtimeErr("Konnte kein Zeichen von der Konsole lesen!")
	}
	return bytecode.CharValue(r), nil
}

func hLeseZeile(args []bytecode.Value, io *IO) (bytecode.Value, error) {
	line, err := io.In.ReadString('\n')
	if err != nil && line == "" {
		return bytecode.Value{}, runtimeErr("Konnte keine Zeile von der Konsole lesen!")
	}
	return bytecode.StringValue(strings.TrimRight(line, "\r\n")), nil
}

// --- file I/O ------------------------------------------------------------------

func hExistiertDatei(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	_, err := os.Stat(args[0].Str())
	return bytecode.BoolValue(err == nil), nil
}

func hLeseDatei(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	data, err := os.ReadFile(args[0].Str())
	if err != nil {
		return bytecode.Value{}, runtimeErr("Konnte die Datei '%s' nicht lesen!", args[0].Str())
	}
	return bytecode.StringValue(string(data)), nil
}

func hSchreibeDatei(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	if err := writeFileHandle(args[0].Str(), []byte(args[1].Str())); err != nil {
		return bytecode.Value{}, err
	}
	return bytecode.Value{}, nil
}

func hBearbeiteDatei(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	f, err := os.OpenFile(args[0].Str(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return bytecode.Value{}, runtimeErr("Konnte die Datei '%s' nicht bearbeiten!", args[0].Str())
	}
	defer f.Close()
	if _, err := f.WriteString(args[1].Str()); err != nil {
		return bytecode.Value{}, runtimeErr("Konnte nicht in die Datei '%s' schreiben!", args[0].Str())
	}
	return bytecode.Value{}, nil
}

func hLeseBytes(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	data, err := os.ReadFile(args[0].Str())
	if err != nil {
		return bytecode.Value{}, runtimeErr("Konnte die Datei '%s' nicht lesen!", args[0].Str())
	}
	out := make([]int32, len(data))
	for i, b := range data {
		out[i] = int32(b)
	}
	return bytecode.IntArrValue(out), nil
}

func hSchreibeBytes(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	if err := writeFileHandle(args[0].Str(), toBytes(args[1].IntArr())); err != nil {
		return bytecode.Value{}, err
	}
	return bytecode.Value{}, nil
}

func hBearbeiteBytes(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	f, err := os.OpenFile(args[0].Str(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return bytecode.Value{}, runtimeErr("Konnte die Datei '%s' nicht bearbeiten!", args[0].Str())
	}
	defer f.Close()
	if _, err := f.Write(toBytes(args[1].IntArr())); err != nil {
		return bytecode.Value{}, runtimeErr("Konnte nicht in die Datei '%s' schreiben!", args[0].Str())
	}
	return bytecode.Value{}, nil
}

func writeFileHandle(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return runtimeErr("Konnte die Datei '%s' nicht erstellen!", path)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return runtimeErr("Konnte nicht in die Datei '%s' schreiben!", path)
	}
	return nil
}

func toBytes(ints []int32) []byte {
	out := make([]byte, len(ints))
	for i, v := range ints {
		out[i] = byte(v)
	}
	return out
}

// --- time ------------------------------------------------------------------

func hClock(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.DoubleValue(float64(time.Now().UnixNano()) / 1e9), nil
}

func hWarte(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	time.Sleep(time.Duration(args[0].Double() * float64(time.Second)))
	return bytecode.Value{}, nil
}

// --- casts -------------------------------------------------------------------

func hZuZahl(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(args[0].Str()), 10, 32)
	if err != nil {
		return bytecode.Value{}, runtimeErr("'%s' kann nicht in eine Zahl umgewandelt werden!", args[0].Str())
	}
	return bytecode.IntValue(int32(n)), nil
}

func hZuKommazahl(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	s := strings.Replace(strings.TrimSpace(args[0].Str()), ",", ".", 1)
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return bytecode.Value{}, runtimeErr("'%s' kann nicht in eine Kommazahl umgewandelt werden!", args[0].Str())
	}
	return bytecode.DoubleValue(d), nil
}

func hZuBoolean(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	switch strings.TrimSpace(args[0].Str()) {
	case "wahr":
		return bytecode.BoolValue(true), nil
	case "falsch":
		return bytecode.BoolValue(false), nil
	}
	return bytecode.Value{}, runtimeErr("'%s' kann nicht in einen Boolean umgewandelt werden!", args[0].Str())
}

func hZuZeichen(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	runes := []rune(args[0].Str())
	if len(runes) != 1 {
		return bytecode.Value{}, runtimeErr("'%s' besteht nicht aus genau einem Zeichen!", args[0].Str())
	}
	return bytecode.CharValue(runes[0]), nil
}

func hZuZeichenkette(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.StringValue(args[0].Str()), nil
}

// --- length / string manipulation --------------------------------------------

func hLaenge(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.IntValue(int32(len([]rune(args[0].Str())))), nil
}

func hZuschneiden(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	runes := []rune(args[0].Str())
	start, length := int(args[1].Int()), int(args[2].Int())
	if start < 0 || length < 0 || start+length > len(runes) {
		return bytecode.Value{}, runtimeErr("Der Bereich liegt außerhalb des Textes!")
	}
	return bytecode.StringValue(string(runes[start : start+length])), nil
}

func hSpalten(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	parts := strings.Split(args[0].Str(), args[1].Str())
	return bytecode.StringArrValue(parts), nil
}

func hErsetzen(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.StringValue(strings.ReplaceAll(args[0].Str(), args[1].Str(), args[2].Str())), nil
}

func hEntfernen(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	runes := []rune(args[0].Str())
	start, length := int(args[1].Int()), int(args[2].Int())
	if start < 0 || length < 0 || start+length > len(runes) {
		return bytecode.Value{}, runtimeErr("Der Bereich liegt außerhalb des Textes!")
	}
	return bytecode.StringValue(string(runes[:start]) + string(runes[start+length:])), nil
}

func hEinfuegen(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	runes := []rune(args[0].Str())
	pos := int(args[2].Int())
	if pos < 0 || pos > len(runes) {
		return bytecode.Value{}, runtimeErr("Die Position liegt außerhalb des Textes!")
	}
	return bytecode.StringValue(string(runes[:pos]) + args[1].Str() + string(runes[pos:])), nil
}

func hEnthaelt(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.BoolValue(strings.Contains(args[0].Str(), args[1].Str())), nil
}

func hBeschneiden(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.StringValue(strings.TrimSpace(args[0].Str())), nil
}

// --- numeric helpers -----------------------------------------------------------

func hMax(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.DoubleValue(math.Max(args[0].Double(), args[1].Double())), nil
}

func hMin(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.DoubleValue(math.Min(args[0].Double(), args[1].Double())), nil
}

func hClamp(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	v, lo, hi := args[0].Double(), args[1].Double(), args[2].Double()
	return bytecode.DoubleValue(math.Max(lo, math.Min(hi, v))), nil
}

func hTrunkiert(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.IntValue(int32(math.Trunc(args[0].Double()))), nil
}

func hRund(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.IntValue(int32(math.Round(args[0].Double()))), nil
}

func hDecke(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.IntValue(int32(math.Ceil(args[0].Double()))), nil
}

func hBoden(args []bytecode.Value, _ *IO) (bytecode.Value, error) {
	return bytecode.IntValue(int32(math.Floor(args[0].Double()))), nil
}
