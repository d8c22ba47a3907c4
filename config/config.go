// Package config parses the short AAConfig directive strings the CLI
// surface accepts (e.g. "sparrow-aa-1cfa", "tpa-2cfa", "dyck",
// "combined", "underapprox") into the AAConfig struct the alias-query
// façade dispatches on.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Impl names one alias-analysis backend AliasWrapper can dispatch to.
type Impl int

const (
	ImplAndersen Impl = iota
	ImplTPA
	ImplDyck
	ImplCFLAndersen
	ImplCFLSteensgaard
	ImplUnderApprox
	ImplCombined
)

func (i Impl) String() string {
	switch i {
	case ImplAndersen:
		return "andersen"
	case ImplTPA:
		return "tpa"
	case ImplDyck:
		return "dyck"
	case ImplCFLAndersen:
		return "cfl-anders"
	case ImplCFLSteensgaard:
		return "cfl-steens"
	case ImplUnderApprox:
		return "underapprox"
	case ImplCombined:
		return "combined"
	default:
		return "?"
	}
}

// CtxSens names a context-sensitivity policy kind, independent of the
// ctxt.Policy value it ultimately produces (config has no dependency
// on ctxt so that it stays a leaf package the CLI can parse before any
// analysis collaborator is constructed).
type CtxSens int

const (
	CtxNone CtxSens = iota
	CtxKCallSite
	CtxAdaptive
)

// AAConfig is the parsed form of one CLI directive: which backend to
// run, with how much context sensitivity, and (for Combined) which
// backends to merge.
type AAConfig struct {
	Impl           Impl
	CtxSens        CtxSens
	KLimit         int // meaningful when CtxSens == CtxKCallSite
	FieldSensitive bool

	// Combined lists every backend ImplCombined should merge, in the
	// order the Combined-mode merge law should collect answers from. Only
	// populated when Impl == ImplCombined.
	Combined []Impl
}

// Parse parses a short, case-insensitive directive string into an
// AAConfig. Recognized shapes:
//
//	sparrow-aa-<k>cfa, tpa-<k>cfa   -> Impl={Andersen,TPA}, KCallSite(k)
//	andersen, tpa                    -> Impl={Andersen,TPA}, context-insensitive
//	dyck, cfl-anders, cfl-steens     -> the corresponding adapter shell
//	underapprox                      -> ImplUnderApprox
//	combined[:impl,impl,...]         -> ImplCombined over the named backends
//	                                    (default: andersen,tpa,underapprox)
//
// Unknown directives return an error; the caller (cmd/lotusaa) treats
// that as a fatal configuration error.
func Parse(s string) (AAConfig, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AAConfig{}, fmt.Errorf("config: empty AAConfig directive")
	}

	base, rest, hasColon := cutColon(s)

	switch {
	case base == "dyck":
		return AAConfig{Impl: ImplDyck}, nil
	case base == "cfl-anders" || base == "cflanders":
		return AAConfig{Impl: ImplCFLAndersen}, nil
	case base == "cfl-steens" || base == "cflsteens":
		return AAConfig{Impl: ImplCFLSteensgaard}, nil
	case base == "underapprox" || base == "under-approx":
		return AAConfig{Impl: ImplUnderApprox}, nil
	case base == "andersen":
		return AAConfig{Impl: ImplAndersen}, nil
	case base == "tpa":
		return AAConfig{Impl: ImplTPA}, nil
	case base == "combined":
		cfg := AAConfig{Impl: ImplCombined, Combined: []Impl{ImplAndersen, ImplTPA, ImplUnderApprox}}
		if hasColon {
			cfg.Combined = nil
			for _, name := range strings.Split(rest, ",") {
				sub, err := Parse(name)
				if err != nil {
					return AAConfig{}, fmt.Errorf("config: combined: %w", err)
				}
				cfg.Combined = append(cfg.Combined, sub.Impl)
			}
		}
		return cfg, nil
	}

	if cfg, ok, err := parseKCFA(base, "sparrow-aa-", ImplAndersen); ok {
		return cfg, err
	}
	if cfg, ok, err := parseKCFA(base, "tpa-", ImplTPA); ok {
		return cfg, err
	}
	return AAConfig{}, fmt.Errorf("config: unrecognized AAConfig directive %q", s)
}

func cutColon(s string) (head, tail string, ok bool) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// parseKCFA matches prefix+"<k>cfa" (e.g. "tpa-2cfa") or, with no
// digit, the context-insensitive form of impl's own bare name.
func parseKCFA(s, prefix string, impl Impl) (AAConfig, bool, error) {
	if !strings.HasPrefix(s, prefix) {
		return AAConfig{}, false, nil
	}
	suffix := strings.TrimPrefix(s, prefix)
	suffix = strings.TrimSuffix(suffix, "cfa")
	if suffix == "" {
		return AAConfig{Impl: impl}, true, nil
	}
	k, err := strconv.Atoi(suffix)
	if err != nil || k < 0 {
		return AAConfig{}, true, fmt.Errorf("config: bad k-CFA depth in %q", s)
	}
	return AAConfig{Impl: impl, CtxSens: CtxKCallSite, KLimit: k}, true, nil
}
