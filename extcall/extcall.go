// Package extcall parses and looks up the external pointer table: a
// small text format mapping external (unmodeled) function names to the
// effects they have on Env/Store, so the TPA transfer function can
// model a call to e.g. malloc or memcpy without a body to analyze.
package extcall

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lotusaa/core/rtlog"
)

// RetArg is the Operand.ArgIndex sentinel meaning "the call's return
// value" rather than a numbered argument.
const RetArg = -1

// Kind classifies one effect operand.
type Kind int

const (
	KindValue Kind = iota
	KindMemory
	KindReachable
	KindUniversal
	KindNull
	KindStatic
)

// Operand is one <src>/<dst> reference in an effect line: value(argN),
// memory(ret), reachable(arg1), universal, null, or static. ArgIndex
// is meaningful only for KindValue/KindMemory/KindReachable, and is
// RetArg for "ret".
type Operand struct {
	Kind     Kind
	ArgIndex int
}

func (o Operand) String() string {
	ref := func() string {
		if o.ArgIndex == RetArg {
			return "ret"
		}
		return fmt.Sprintf("arg%d", o.ArgIndex)
	}
	switch o.Kind {
	case KindValue:
		return "value(" + ref() + ")"
	case KindMemory:
		return "memory(" + ref() + ")"
	case KindReachable:
		return "reachable(" + ref() + ")"
	case KindUniversal:
		return "universal"
	case KindNull:
		return "null"
	case KindStatic:
		return "static"
	default:
		return "?"
	}
}

// Effect is one modeled side effect of an external call.
type Effect interface{ effect() }

// AllocEffect models a call that returns a freshly allocated heap
// object. HasSize/SizeArg record an optional "size=argN" hint, unused
// by this repo's field-insensitive heap objects but preserved for a
// future sized-allocation refinement.
type AllocEffect struct {
	HasSize bool
	SizeArg int
}

func (AllocEffect) effect() {}

// CopyEffect models a value or memory copy from Src to Dst, including
// the memcpy-shaped reachable(argN) -> reachable(argN) case.
type CopyEffect struct {
	Src, Dst Operand
}

func (CopyEffect) effect() {}

// ExitEffect models a call that never returns (e.g. exit, abort).
type ExitEffect struct{}

func (ExitEffect) effect() {}

// Table is an immutable external-call effect table, keyed by function
// name exactly as produced by the IR (mangled or demangled).
type Table struct {
	entries map[string][]Effect
}

// Empty returns a Table with no entries: the recognized "no table"
// state, under which every external call is treated as a no-op with a
// Universal-valued return.
func Empty() *Table {
	return &Table{entries: make(map[string][]Effect)}
}

// Lookup returns the effects recorded for name, if any.
func (t *Table) Lookup(name string) ([]Effect, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Len reports how many function names have at least one entry.
func (t *Table) Len() int { return len(t.entries) }

// Parse reads the external pointer table text format from r.
func Parse(r io.Reader) (*Table, error) {
	t := Empty()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, rest, ok := cutField(line)
		if !ok {
			return nil, fmt.Errorf("extcall: line %d: expected \"<name> <effect>...\"", lineNo)
		}
		for _, part := range strings.Split(rest, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			eff, err := parseEffect(part)
			if err != nil {
				return nil, fmt.Errorf("extcall: line %d: %w", lineNo, err)
			}
			t.entries[name] = append(t.entries[name], eff)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile reads the external pointer table at path. A missing or
// unreadable table is a logged, recoverable condition, never a fatal
// error: LoadFile always returns a usable Table, empty if path could
// not be read or parsed.
func LoadFile(path string, log *zerolog.Logger) *Table {
	log = rtlog.Or(log)
	if path == "" {
		return Empty()
	}
	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("external call table: path not found, proceeding with empty table")
		return Empty()
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("external call table: parse error, proceeding with empty table")
		return Empty()
	}
	log.Info().Int("entries", t.Len()).Str("path", path).Msg("external call table loaded")
	return t
}

func cutField(line string) (field, rest string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	name := fields[0]
	idx := strings.Index(line, name)
	return name, strings.TrimSpace(line[idx+len(name):]), true
}

func parseEffect(s string) (Effect, error) {
	fields := strings.Fields(s)
	switch strings.ToUpper(fields[0]) {
	case "ALLOC":
		eff := AllocEffect{}
		for _, kv := range fields[1:] {
			k, v, ok := splitKV(kv)
			if !ok {
				continue
			}
			if k == "size" {
				idx, err := parseArgRef(v)
				if err != nil {
					return nil, err
				}
				eff.SizeArg, eff.HasSize = idx, true
			}
		}
		return eff, nil

	case "COPY":
		var src, dst Operand
		var gotSrc, gotDst bool
		for _, kv := range fields[1:] {
			k, v, ok := splitKV(kv)
			if !ok {
				continue
			}
			o, err := parseOperand(v)
			if err != nil {
				return nil, err
			}
			switch k {
			case "src":
				src, gotSrc = o, true
			case "dst":
				dst, gotDst = o, true
			}
		}
		if !gotSrc || !gotDst {
			return nil, fmt.Errorf("COPY requires src= and dst=: %q", s)
		}
		return CopyEffect{Src: src, Dst: dst}, nil

	case "EXIT":
		return ExitEffect{}, nil

	default:
		return nil, fmt.Errorf("unknown effect %q", fields[0])
	}
}

func splitKV(s string) (k, v string, ok bool) {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func parseOperand(v string) (Operand, error) {
	switch v {
	case "universal":
		return Operand{Kind: KindUniversal}, nil
	case "null":
		return Operand{Kind: KindNull}, nil
	case "static":
		return Operand{Kind: KindStatic}, nil
	}
	open := strings.IndexByte(v, '(')
	if open < 0 || !strings.HasSuffix(v, ")") {
		return Operand{}, fmt.Errorf("bad operand %q", v)
	}
	var kind Kind
	switch v[:open] {
	case "value":
		kind = KindValue
	case "memory":
		kind = KindMemory
	case "reachable":
		kind = KindReachable
	default:
		return Operand{}, fmt.Errorf("bad operand kind in %q", v)
	}
	idx, err := parseArgRef(v[open+1 : len(v)-1])
	if err != nil {
		return Operand{}, err
	}
	return Operand{Kind: kind, ArgIndex: idx}, nil
}

func parseArgRef(s string) (int, error) {
	if s == "ret" {
		return RetArg, nil
	}
	if !strings.HasPrefix(s, "arg") {
		return 0, fmt.Errorf("bad arg reference %q", s)
	}
	n, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("bad arg reference %q", s)
	}
	return n, nil
}
