package config

import (
	"reflect"
	"testing"
)

func TestParseDirectives(t *testing.T) {
	tests := []struct {
		in   string
		want AAConfig
	}{
		{"andersen", AAConfig{Impl: ImplAndersen}},
		{"tpa", AAConfig{Impl: ImplTPA}},
		{"TPA", AAConfig{Impl: ImplTPA}},
		{"dyck", AAConfig{Impl: ImplDyck}},
		{"cfl-anders", AAConfig{Impl: ImplCFLAndersen}},
		{"cfl-steens", AAConfig{Impl: ImplCFLSteensgaard}},
		{"underapprox", AAConfig{Impl: ImplUnderApprox}},
		{"sparrow-aa-1cfa", AAConfig{Impl: ImplAndersen, CtxSens: CtxKCallSite, KLimit: 1}},
		{"tpa-2cfa", AAConfig{Impl: ImplTPA, CtxSens: CtxKCallSite, KLimit: 2}},
		{"Tpa-16Cfa", AAConfig{Impl: ImplTPA, CtxSens: CtxKCallSite, KLimit: 16}},
		{"  sparrow-aa-2cfa ", AAConfig{Impl: ImplAndersen, CtxSens: CtxKCallSite, KLimit: 2}},
	}
	for _, tc := range tests {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got.Impl != tc.want.Impl || got.CtxSens != tc.want.CtxSens || got.KLimit != tc.want.KLimit {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseCombined(t *testing.T) {
	got, err := Parse("combined")
	if err != nil {
		t.Fatalf("Parse(combined): %v", err)
	}
	if got.Impl != ImplCombined {
		t.Fatalf("Impl = %v, want combined", got.Impl)
	}
	if want := []Impl{ImplAndersen, ImplTPA, ImplUnderApprox}; !reflect.DeepEqual(got.Combined, want) {
		t.Fatalf("default Combined = %v, want %v", got.Combined, want)
	}

	got, err = Parse("combined:dyck,underapprox")
	if err != nil {
		t.Fatalf("Parse(combined:dyck,underapprox): %v", err)
	}
	if want := []Impl{ImplDyck, ImplUnderApprox}; !reflect.DeepEqual(got.Combined, want) {
		t.Fatalf("explicit Combined = %v, want %v", got.Combined, want)
	}
}

func TestParseRejectsUnknownDirectives(t *testing.T) {
	for _, in := range []string{"", "bogus", "tpa-xcfa", "sparrow-aa--1cfa", "combined:bogus"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", in)
		}
	}
}
