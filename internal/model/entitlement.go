package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// GameMode はランクを確認する対象のゲームモードを表す。
type GameMode string

const (
	// GameModeOPSkyblock はOP Skyblockモード。
	GameModeOPSkyblock GameMode = "opskyblock"
	// GameModeOPPrison はOP Prisonモード。
	GameModeOPPrison GameMode = "opprison"
	// GameModeOPFactions はOP Factionsモード。
	GameModeOPFactions GameMode = "opfactions"
)

// ErrUnsupportedGameMode はサポート外のゲームモードが設定された場合のエラー。
// プロセス全体を終了させる致命的な設定エラーとして扱う。
var ErrUnsupportedGameMode = errors.New("unsupported game mode")

// SupportedGameModes はサポートするゲームモードの一覧を返す。
func SupportedGameModes() []GameMode {
	return []GameMode{GameModeOPSkyblock, GameModeOPPrison, GameModeOPFactions}
}

// ParseGameMode は設定値をGameModeに変換する。大文字小文字は区別しない。
// サポート外の値の場合はErrUnsupportedGameModeをラップしたエラーを返す。
func ParseGameMode(s string) (GameMode, error) {
	mode := GameMode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range SupportedGameModes() {
		if mode == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q (supported: opskyblock, opprison, opfactions)", ErrUnsupportedGameMode, s)
}

// EntitlementRecord はアカウントごとのゲームモード別ランクを表す。
// 各ランクは未所持の場合nil。
type EntitlementRecord struct {
	Username  string
	OPSBRank  *string
	OPPRank   *string
	OPFRank   *string
	FetchedAt time.Time
}

// TierFor は指定ゲームモードのランクを返す。未所持または空文字の場合はfalseを返す。
func (r *EntitlementRecord) TierFor(mode GameMode) (string, bool) {
	if r == nil {
		return "", false
	}

	var tier *string
	switch mode {
	case GameModeOPSkyblock:
		tier = r.OPSBRank
	case GameModeOPPrison:
		tier = r.OPPRank
	case GameModeOPFactions:
		tier = r.OPFRank
	}

	if tier == nil || strings.TrimSpace(*tier) == "" {
		return "", false
	}
	return *tier, true
}

// Rank はプロフィールAPIが返すランク1件を表す。
type Rank struct {
	Server      string `json:"server"`
	DisplayName string `json:"displayName"`
}
