package session

import (
	"sync"
	"time"
)

// slot はセッションごとのタイマースロット。各スロットには同時に1つのタイマーしか存在しない。
type slot int

const (
	slotJoin slot = iota
	slotConfirm
	slotGift
	slotReconnect
	slotCount
)

func (s slot) String() string {
	switch s {
	case slotJoin:
		return "join"
	case slotConfirm:
		return "confirm"
	case slotGift:
		return "gift"
	case slotReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// fireBufferSize は発火通知チャネルのバッファサイズ。スロット数より大きくしておく。
const fireBufferSize = 16

// timerFire はタイマー発火の通知。genが現在の世代と一致する場合のみ有効。
type timerFire struct {
	slot slot
	gen  uint64
}

// supervisor はセッションのタイマースロットを管理する。
// タイマーのコールバックは発火通知をfiresへ送るだけで、処理はイベントループで行う。
// slotsとgensはイベントループのゴルーチンからのみ操作する。
type supervisor struct {
	clock    Clock
	fires    chan timerFire
	stopped  chan struct{}
	stopOnce sync.Once

	timers [slotCount]Timer
	gens   [slotCount]uint64
}

func newSupervisor(clock Clock) *supervisor {
	return &supervisor{
		clock:   clock,
		fires:   make(chan timerFire, fireBufferSize),
		stopped: make(chan struct{}),
	}
}

// arm はスロットにタイマーを設定する。既存のタイマーは停止し、世代を進める。
func (s *supervisor) arm(sl slot, d time.Duration) {
	s.cancel(sl)
	gen := s.gens[sl]
	s.timers[sl] = s.clock.AfterFunc(d, func() {
		select {
		case s.fires <- timerFire{slot: sl, gen: gen}:
		case <-s.stopped:
		}
	})
}

// cancel はスロットのタイマーを停止する。停止が間に合わず発火した通知も世代の不一致で無視される。
func (s *supervisor) cancel(sl slot) {
	if t := s.timers[sl]; t != nil {
		t.Stop()
		s.timers[sl] = nil
	}
	s.gens[sl]++
}

// clear はすべてのスロットを停止する。
func (s *supervisor) clear() {
	for sl := slot(0); sl < slotCount; sl++ {
		s.cancel(sl)
	}
}

// accept は発火通知が現在のタイマーのものかを判定し、有効ならスロットを空にする。
func (s *supervisor) accept(f timerFire) bool {
	if f.slot < 0 || f.slot >= slotCount {
		return false
	}
	if f.gen != s.gens[f.slot] || s.timers[f.slot] == nil {
		return false
	}
	s.timers[f.slot] = nil
	return true
}

func (s *supervisor) armed(sl slot) bool {
	return s.timers[sl] != nil
}

// stop はすべてのタイマーを停止し、送信待ちのコールバックを解放する。
func (s *supervisor) stop() {
	s.clear()
	s.stopOnce.Do(func() { close(s.stopped) })
}
