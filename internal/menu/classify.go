// Package menu はメニュー画面の種類判定とクリック対象の選択を行う。
// ラベルの照合はすべてNormalize後の文字列に対する部分一致で行う。
package menu

import (
	"regexp"
	"strings"

	"github.com/hitoshi/kitcourier/internal/protocol"
)

// Kind はメニュー画面の種類。
type Kind int

const (
	KindUnknown Kind = iota
	KindKit
	KindTierReward
	KindDonator
	KindGiftSelect
	KindGiftConfirm
)

// String はログ出力用の名前を返す。
func (k Kind) String() string {
	switch k {
	case KindKit:
		return "kit"
	case KindTierReward:
		return "tier_reward"
	case KindDonator:
		return "donator"
	case KindGiftSelect:
		return "gift_select"
	case KindGiftConfirm:
		return "gift_confirm"
	default:
		return "unknown"
	}
}

// 照合に使うラベル。
const (
	LabelKit          = "KIT"
	LabelDonator      = "DONATOR"
	LabelOnce         = "ONCE"
	LabelSelectToSend = "SELECT ITEMS TO SEND"
	LabelAreYouSure   = "ARE YOU SURE?"
	LabelConfirm      = "CONFIRM"
	LabelKitVoucher   = "KIT VOUCHER"
	LabelCrateKey     = "CRATE KEY"
)

var formatCodes = regexp.MustCompile(`(?i)§[0-9A-FK-OR]`)

// StripFormatting は書式コード（§ + 0-9, A-F, K-O, R）を取り除く。
func StripFormatting(label string) string {
	return formatCodes.ReplaceAllString(label, "")
}

// Normalize は書式コードを取り除いて大文字にする。
func Normalize(label string) string {
	return strings.ToUpper(StripFormatting(label))
}

// contains はラベルが存在し、正規化後にsubstrを含むかを判定する。
// substrは大文字で渡すこと。
func contains(label *string, substr string) bool {
	if label == nil {
		return false
	}
	return strings.Contains(Normalize(*label), substr)
}

// Classify はウィンドウタイトルから画面の種類を判定する。
// 判定は Kit → TierReward → Donator → GiftSelect → GiftConfirm の優先順で行う。
func Classify(title *string, tier string) Kind {
	t := strings.ToUpper(tier)
	switch {
	case contains(title, LabelKit):
		return KindKit
	case t != "" && contains(title, t):
		return KindTierReward
	case contains(title, LabelDonator):
		return KindDonator
	case contains(title, LabelSelectToSend):
		return KindGiftSelect
	case contains(title, LabelAreYouSure):
		return KindGiftConfirm
	default:
		return KindUnknown
	}
}

// firstMatch はmatchを満たす最初のアイテムを返す。
func firstMatch(items []protocol.Item, match func(label *string) bool) (protocol.Item, bool) {
	for _, it := range items {
		if match(it.Label) {
			return it, true
		}
	}
	return protocol.Item{}, false
}

// SelectKit はキット画面でクリックするアイテムを返す。
// DONATORを含むアイテムを優先し、なければティア名を含むアイテムを選ぶ。
func SelectKit(container []protocol.Item, tier string) (protocol.Item, bool) {
	if it, ok := firstMatch(container, func(l *string) bool { return contains(l, LabelDonator) }); ok {
		return it, true
	}
	t := strings.ToUpper(tier)
	if t == "" {
		return protocol.Item{}, false
	}
	return firstMatch(container, func(l *string) bool { return contains(l, t) })
}

// SelectTierReward はティア報酬画面でクリックするアイテムを返す。
// requireOnceの場合はONCEを含むもの、そうでなければONCEを含まないものを選ぶ。
func SelectTierReward(container []protocol.Item, tier string, requireOnce bool) (protocol.Item, bool) {
	t := strings.ToUpper(tier)
	if t == "" {
		return protocol.Item{}, false
	}
	return firstMatch(container, func(l *string) bool {
		if !contains(l, t) {
			return false
		}
		return contains(l, LabelOnce) == requireOnce
	})
}

// SelectDonator はDonator画面でクリックするアイテムを返す。
// requireOnceの場合は「ティア名+ONCE」を含むもの、そうでなければティア名を含むものを選ぶ。
func SelectDonator(container []protocol.Item, tier string, requireOnce bool) (protocol.Item, bool) {
	t := strings.ToUpper(tier)
	if t == "" {
		return protocol.Item{}, false
	}
	if requireOnce {
		t += LabelOnce
	}
	return firstMatch(container, func(l *string) bool { return contains(l, t) })
}

// GiftSlots はギフト選択画面でキットバウチャーまたはクレートキーを含むスロットを、
// 出現順に返す。インベントリ部分を含むすべてのアイテムが対象。
func GiftSlots(items []protocol.Item) []int {
	var slots []int
	for _, it := range items {
		if contains(it.Label, LabelKitVoucher) || contains(it.Label, LabelCrateKey) {
			slots = append(slots, it.Slot)
		}
	}
	return slots
}

// SelectConfirm は確認画面のCONFIRMボタンを返す。
func SelectConfirm(container []protocol.Item) (protocol.Item, bool) {
	return firstMatch(container, func(l *string) bool { return contains(l, LabelConfirm) })
}
