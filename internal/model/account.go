// Package model はドメインモデルを定義する。
package model

// Account は自動化対象のゲームアカウントを表す。
// アカウント一覧ファイルの1行から生成され、再接続をまたいで不変。
type Account struct {
	Username string
	Password string
}
