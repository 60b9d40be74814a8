// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError はステータスAPIの統一エラーフォーマットを表す。
// 原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: session, store, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	ErrCodeEntitlementAbsent = "ENTITLEMENT_ABSENT"
)

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたアカウントのセッションが見つかりません: %s", username),
		Category: "session",
		Action:   "アカウント一覧ファイルに含まれるユーザー名を指定してください。",
	}
}

// NewStoreUnavailableError はランクストアに接続できない場合のエラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "ランクストアに接続できません。",
		Category: "store",
		Action:   "データベースの設定と接続状態を確認してください。",
	}
}

// NewEntitlementAbsentError はランク情報が存在しない場合のエラーを生成する。
func NewEntitlementAbsentError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeEntitlementAbsent,
		Message:  fmt.Sprintf("ランク情報が登録されていません: %s", username),
		Category: "store",
		Action:   "fetch-ranks コマンドでランク情報を取得してください。",
	}
}
