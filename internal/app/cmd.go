package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandRun はアカウントごとのセッションを起動してキットの回収と送付を行う。
	CommandRun Command = "run"
	// CommandFetchRanks はプロフィールAPIから全アカウントのランクを取得してストアへ保存する。
	CommandFetchRanks Command = "fetch-ranks"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はステータスAPIのヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandRunを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandRun
	}

	switch args[0] {
	case "run":
		return CommandRun
	case "fetch-ranks":
		return CommandFetchRanks
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandRun
	}
}
