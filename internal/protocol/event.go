package protocol

// EventKind はセッションイベントの種類。
type EventKind int

const (
	EventLogin EventKind = iota + 1
	EventSpawn
	EventWindowOpen
	EventWindowClose
	EventEnd
	EventKicked
	EventError
)

// String はログ出力用の名前を返す。
func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventSpawn:
		return "spawn"
	case EventWindowOpen:
		return "windowOpen"
	case EventWindowClose:
		return "windowClose"
	case EventEnd:
		return "end"
	case EventKicked:
		return "kicked"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event は接続から届くイベント。
// WindowはwindowOpen/windowClose、Reasonはend/kicked、Errはerrorでのみ設定される。
type Event struct {
	Kind   EventKind
	Window *Window
	Reason string
	Err    error
}
