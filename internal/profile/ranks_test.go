package profile

import (
	"testing"

	"github.com/hitoshi/kitcourier/internal/model"
)

func TestRecordFromRanks(t *testing.T) {
	rec := RecordFromRanks("Alt1", []model.Rank{
		{Server: "OPPrison", DisplayName: "MVP"},
		{Server: "OPSB", DisplayName: "VIP"},
		{Server: "OPFactions", DisplayName: "Legend"},
		{Server: "BedWars", DisplayName: "Champion"},
	})

	if rec.Username != "Alt1" {
		t.Errorf("Username = %q", rec.Username)
	}
	for _, tt := range []struct {
		mode model.GameMode
		want string
	}{
		{model.GameModeOPPrison, "MVP"},
		{model.GameModeOPSkyblock, "VIP"},
		{model.GameModeOPFactions, "Legend"},
	} {
		got, ok := rec.TierFor(tt.mode)
		if !ok || got != tt.want {
			t.Errorf("TierFor(%s) = (%q, %v), want %q", tt.mode, got, ok, tt.want)
		}
	}
}

func TestRecordFromRanks_NoRanks(t *testing.T) {
	rec := RecordFromRanks("Alt1", nil)
	if rec.OPSBRank != nil || rec.OPPRank != nil || rec.OPFRank != nil {
		t.Errorf("ランクなしの場合はすべてnilであるべき: %+v", rec)
	}
}
