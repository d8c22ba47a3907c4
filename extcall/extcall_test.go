package extcall

import (
	"strings"
	"testing"
)

func TestParseTable(t *testing.T) {
	text := `
# heap allocators
malloc   ALLOC
calloc   ALLOC size=arg1
memcpy   COPY src=reachable(arg1) dst=reachable(arg0); COPY src=value(arg0) dst=value(ret)
getenv   COPY src=static dst=value(ret)   # environment strings
exit     EXIT
`
	tbl, err := Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tbl.Len() != 5 {
		t.Fatalf("Len = %d, want 5", tbl.Len())
	}

	effs, ok := tbl.Lookup("malloc")
	if !ok || len(effs) != 1 {
		t.Fatalf("Lookup(malloc) = %v, %v", effs, ok)
	}
	if a, ok := effs[0].(AllocEffect); !ok || a.HasSize {
		t.Fatalf("malloc effect = %#v, want plain ALLOC", effs[0])
	}

	effs, _ = tbl.Lookup("calloc")
	if a, ok := effs[0].(AllocEffect); !ok || !a.HasSize || a.SizeArg != 1 {
		t.Fatalf("calloc effect = %#v, want ALLOC size=arg1", effs[0])
	}

	effs, _ = tbl.Lookup("memcpy")
	if len(effs) != 2 {
		t.Fatalf("memcpy has %d effects, want 2", len(effs))
	}
	cp := effs[0].(CopyEffect)
	if cp.Src != (Operand{Kind: KindReachable, ArgIndex: 1}) || cp.Dst != (Operand{Kind: KindReachable, ArgIndex: 0}) {
		t.Fatalf("memcpy first effect = %#v", cp)
	}
	cp = effs[1].(CopyEffect)
	if cp.Src != (Operand{Kind: KindValue, ArgIndex: 0}) || cp.Dst != (Operand{Kind: KindValue, ArgIndex: RetArg}) {
		t.Fatalf("memcpy second effect = %#v", cp)
	}

	effs, _ = tbl.Lookup("getenv")
	cp = effs[0].(CopyEffect)
	if cp.Src.Kind != KindStatic || cp.Dst != (Operand{Kind: KindValue, ArgIndex: RetArg}) {
		t.Fatalf("getenv effect = %#v", cp)
	}

	effs, _ = tbl.Lookup("exit")
	if _, ok := effs[0].(ExitEffect); !ok {
		t.Fatalf("exit effect = %#v, want EXIT", effs[0])
	}

	if _, ok := tbl.Lookup("free"); ok {
		t.Fatalf("Lookup(free) unexpectedly present")
	}
}

func TestParseRejectsMalformedLines(t *testing.T) {
	for _, text := range []string{
		"malloc\n",
		"f FROB\n",
		"f COPY src=value(arg0)\n",
		"f COPY src=value(argX) dst=value(ret)\n",
	} {
		if _, err := Parse(strings.NewReader(text)); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", text)
		}
	}
}

func TestLoadFileMissingPathIsEmpty(t *testing.T) {
	tbl := LoadFile("/nonexistent/extcall.table", nil)
	if tbl == nil || tbl.Len() != 0 {
		t.Fatalf("LoadFile on a missing path must return an empty table, got %v", tbl)
	}
}
