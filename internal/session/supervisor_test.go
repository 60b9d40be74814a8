package session

import (
	"testing"
	"time"
)

func TestSupervisor_ArmReplacesPreviousTimer(t *testing.T) {
	clock := newFakeClock()
	sup := newSupervisor(clock)
	defer sup.stop()

	sup.arm(slotJoin, 10*time.Second)
	sup.arm(slotJoin, 20*time.Second)

	clock.Advance(10 * time.Second)
	select {
	case f := <-sup.fires:
		t.Fatalf("置き換えられたタイマーが発火しました: %+v", f)
	default:
	}

	clock.Advance(10 * time.Second)
	f := <-sup.fires
	if !sup.accept(f) {
		t.Error("現在のタイマーの発火は受理すべき")
	}
	if sup.armed(slotJoin) {
		t.Error("受理後はスロットが空になるべき")
	}
}

func TestSupervisor_StaleFireIsIgnored(t *testing.T) {
	clock := newFakeClock()
	sup := newSupervisor(clock)
	defer sup.stop()

	sup.arm(slotConfirm, time.Second)
	clock.Advance(time.Second)
	stale := <-sup.fires

	// 発火通知の処理前に解除・再設定された場合
	sup.arm(slotConfirm, time.Second)
	if sup.accept(stale) {
		t.Error("古い世代の発火は無視すべき")
	}
	if !sup.armed(slotConfirm) {
		t.Error("古い発火の無視で現在のタイマーを消してはならない")
	}
}

func TestSupervisor_ClearCancelsAllSlots(t *testing.T) {
	clock := newFakeClock()
	sup := newSupervisor(clock)
	defer sup.stop()

	sup.arm(slotJoin, time.Second)
	sup.arm(slotConfirm, time.Second)
	sup.arm(slotGift, time.Second)
	sup.arm(slotReconnect, time.Second)
	sup.clear()

	for sl := slot(0); sl < slotCount; sl++ {
		if sup.armed(sl) {
			t.Errorf("slot %s is still armed", sl)
		}
	}

	clock.Advance(time.Minute)
	select {
	case f := <-sup.fires:
		t.Fatalf("解除したタイマーが発火しました: %+v", f)
	default:
	}
}

func TestSupervisor_StopReleasesPendingCallbacks(t *testing.T) {
	clock := newFakeClock()
	sup := newSupervisor(clock)

	for i := 0; i < fireBufferSize; i++ {
		sup.fires <- timerFire{}
	}
	sup.arm(slotGift, time.Second)
	sup.stop()

	clock.mu.Lock()
	timers := append([]*fakeTimer(nil), clock.timers...)
	clock.mu.Unlock()

	fired := make(chan struct{})
	go func() {
		// stop後はAfterFuncのコールバックがブロックしないこと
		for _, tm := range timers {
			tm.f()
		}
		close(fired)
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("停止後のコールバックがブロックしました")
	}
}
