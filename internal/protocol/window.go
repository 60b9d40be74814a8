package protocol

import "sync"

// Item はウィンドウのスロットに入っているアイテム。
// Labelはアイテムの表示名で、名前を持たないアイテムではnil。
type Item struct {
	Slot  int
	Label *string
}

// Window は開いているメニュー画面。
// スロットの内容はサーバーからの更新で変化するため、参照のたびに最新の状態を返す。
type Window struct {
	id            int
	title         *string
	containerSize int

	mu    sync.RWMutex
	slots []*Item
}

// MaxWindowSize はプレイヤーインベントリを含む1ウィンドウの最大スロット数。
const MaxWindowSize = 256

// NewWindow はWindowを生成する。sizeはプレイヤーインベントリを含む総スロット数。
// 負のサイズは0、MaxWindowSizeを超えるサイズはMaxWindowSizeに丸める。
func NewWindow(id int, title *string, containerSize, size int) *Window {
	containerSize = clampSize(containerSize)
	size = clampSize(size)
	if size < containerSize {
		size = containerSize
	}
	return &Window{
		id:            id,
		title:         title,
		containerSize: containerSize,
		slots:         make([]*Item, size),
	}
}

// ID はウィンドウIDを返す。
func (w *Window) ID() int { return w.id }

// Title はタイトルを返す。タイトルがない場合はnil。
func (w *Window) Title() *string { return w.title }

// ContainerSize はコンテナ部分のスロット数を返す。
func (w *Window) ContainerSize() int { return w.containerSize }

// SetSlot は指定スロットの内容を更新する。labelがnilでemptyがtrueの場合はスロットを空にする。
// 範囲外のスロットは無視する。
func (w *Window) SetSlot(slot int, label *string, empty bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if slot < 0 || slot >= len(w.slots) {
		return
	}
	if empty {
		w.slots[slot] = nil
		return
	}
	w.slots[slot] = &Item{Slot: slot, Label: label}
}

// SetItems はすべてのスロットを置き換える。
func (w *Window) SetItems(items []Item) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.slots {
		w.slots[i] = nil
	}
	for _, it := range items {
		if it.Slot < 0 || it.Slot >= len(w.slots) {
			continue
		}
		item := it
		w.slots[it.Slot] = &item
	}
}

// Items はインベントリを含むすべての非空スロットをスロット順に返す。
func (w *Window) Items() []Item {
	return w.collect(len(w.slots))
}

// ContainerItems はコンテナ部分の非空スロットをスロット順に返す。
func (w *Window) ContainerItems() []Item {
	return w.collect(w.containerSize)
}

func (w *Window) collect(limit int) []Item {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if limit > len(w.slots) {
		limit = len(w.slots)
	}
	items := make([]Item, 0, limit)
	for i := 0; i < limit; i++ {
		if it := w.slots[i]; it != nil {
			items = append(items, *it)
		}
	}
	return items
}

func clampSize(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxWindowSize:
		return MaxWindowSize
	}
	return n
}
