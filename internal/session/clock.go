package session

import "time"

// Timer は停止可能なタイマー。*time.Timer が満たす。
type Timer interface {
	Stop() bool
}

// Clock はタイマーと現在時刻の取得を抽象化する。テストでは偽の時計に差し替える。
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (realClock) Now() time.Time { return time.Now() }
