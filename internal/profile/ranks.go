package profile

import (
	"strings"

	"github.com/hitoshi/kitcourier/internal/model"
)

// RecordFromRanks はランク一覧をゲームモード別のEntitlementRecordに変換する。
// サーバー名（小文字）に opprison を含めばOP Prison、opsb を含めばOP Skyblock、
// opf を含めばOP Factionsのランクとして扱う。同じモードが複数ある場合は後のものを採用する。
func RecordFromRanks(username string, ranks []model.Rank) *model.EntitlementRecord {
	rec := &model.EntitlementRecord{Username: username}

	for _, r := range ranks {
		name := r.DisplayName
		server := strings.ToLower(r.Server)
		switch {
		case strings.Contains(server, "opprison"):
			rec.OPPRank = &name
		case strings.Contains(server, "opsb"):
			rec.OPSBRank = &name
		case strings.Contains(server, "opf"):
			rec.OPFRank = &name
		}
	}

	return rec
}
