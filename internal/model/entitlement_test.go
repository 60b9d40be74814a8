package model

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestParseGameMode_Supported(t *testing.T) {
	tests := []struct {
		in   string
		want GameMode
	}{
		{"opskyblock", GameModeOPSkyblock},
		{"OPPrison", GameModeOPPrison},
		{" opfactions ", GameModeOPFactions},
	}

	for _, tt := range tests {
		got, err := ParseGameMode(tt.in)
		if err != nil {
			t.Errorf("ParseGameMode(%q) がエラーを返した: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseGameMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseGameMode_Unsupported(t *testing.T) {
	_, err := ParseGameMode("bedwars")
	if err == nil {
		t.Fatal("サポート外のモードでエラーが返されるべき")
	}
	if !errors.Is(err, ErrUnsupportedGameMode) {
		t.Errorf("errors.Is(err, ErrUnsupportedGameMode) = false, err = %v", err)
	}
}

func TestEntitlementRecord_TierFor(t *testing.T) {
	rec := &EntitlementRecord{
		Username: "alt1",
		OPSBRank: strPtr("VIP"),
		OPPRank:  strPtr(""),
	}

	if tier, ok := rec.TierFor(GameModeOPSkyblock); !ok || tier != "VIP" {
		t.Errorf("TierFor(opskyblock) = (%q, %v), want (VIP, true)", tier, ok)
	}
	// 空文字のランクは未所持として扱う
	if _, ok := rec.TierFor(GameModeOPPrison); ok {
		t.Error("空文字のランクは未所持として扱われるべき")
	}
	if _, ok := rec.TierFor(GameModeOPFactions); ok {
		t.Error("nilのランクは未所持として扱われるべき")
	}
}

func TestEntitlementRecord_TierFor_NilRecord(t *testing.T) {
	var rec *EntitlementRecord
	if _, ok := rec.TierFor(GameModeOPSkyblock); ok {
		t.Error("nilレコードは未所持として扱われるべき")
	}
}
