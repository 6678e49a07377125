package model

import "testing"

func TestBandForHarm(t *testing.T) {
	cases := []struct {
		score int
		want  HarmBand
	}{
		{0, HarmHarmless},
		{20, HarmHarmless},
		{21, HarmMinor},
		{40, HarmMinor},
		{41, HarmModerate},
		{60, HarmModerate},
		{61, HarmSignificant},
		{80, HarmSignificant},
		{81, HarmCrisis},
		{100, HarmCrisis},
	}
	for _, tc := range cases {
		if got := BandForHarm(tc.score); got != tc.want {
			t.Errorf("BandForHarm(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestParseVerdictLabel(t *testing.T) {
	if got := ParseVerdictLabel("False"); got != VerdictFalse {
		t.Errorf("expected False, got %s", got)
	}
	if got := ParseVerdictLabel("Partially True"); got != VerdictPartiallyTrue {
		t.Errorf("expected Partially True, got %s", got)
	}
	// Anything unrecognized falls back to Unverified.
	for _, s := range []string{"", "false", "TRUE", "probably"} {
		if got := ParseVerdictLabel(s); got != VerdictUnverified {
			t.Errorf("ParseVerdictLabel(%q) = %s, want Unverified", s, got)
		}
	}
}

func TestParseClaimType(t *testing.T) {
	if got := ParseClaimType("health"); got != ClaimTypeHealth {
		t.Errorf("expected health, got %s", got)
	}
	if got := ParseClaimType("astrology"); got != ClaimTypeGeneral {
		t.Errorf("unknown type should default to general, got %s", got)
	}
}

func TestClamps(t *testing.T) {
	if ClampHarm(-3) != 0 || ClampHarm(150) != 100 || ClampHarm(55) != 55 {
		t.Error("ClampHarm out of contract")
	}
	if ClampConfidence(-0.1) != 0 || ClampConfidence(1.4) != 1 || ClampConfidence(0.7) != 0.7 {
		t.Error("ClampConfidence out of contract")
	}
}
