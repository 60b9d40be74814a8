// Package entitlement はアカウントのゲームモード別ランク（ティア）を解決する。
package entitlement

import (
	"context"
	"fmt"

	"github.com/hitoshi/kitcourier/internal/model"
	"github.com/hitoshi/kitcourier/internal/repository"
)

// Store はランクストアからアカウントのティアを解決するサービス。
type Store struct {
	repo repository.EntitlementRepository
}

// NewStore はStoreを生成する。
func NewStore(repo repository.EntitlementRepository) *Store {
	return &Store{repo: repo}
}

// Resolve は指定アカウントの指定ゲームモードにおけるティアを返す。
// レコードが存在しない、またはそのモードのランクが空の場合は ("", false, nil) を返す。
// modeがサポート外の場合はmodel.ErrUnsupportedGameModeをラップしたエラーを返す。
func (s *Store) Resolve(ctx context.Context, username string, mode model.GameMode) (string, bool, error) {
	parsed, err := model.ParseGameMode(string(mode))
	if err != nil {
		return "", false, err
	}

	rec, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve entitlement for %s: %w", username, err)
	}
	if rec == nil {
		return "", false, nil
	}

	tier, ok := rec.TierFor(parsed)
	return tier, ok, nil
}

// Record は指定アカウントのランク情報を返す。見つからない場合はnilを返す。
func (s *Store) Record(ctx context.Context, username string) (*model.EntitlementRecord, error) {
	return s.repo.FindByUsername(ctx, username)
}
