// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupDetector はフォームから受け取った自由入力にHTMLマークアップが含まれるかを判定する。
// 入力はそのままの文字列で保存し、出力時のエスケープはテンプレート側で行う。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupDetector はマークアップ判定のインターフェース。
type MarkupDetector interface {
	// ContainsMarkup はrawにタグ・コメントなどのマークアップが含まれる場合にtrueを返す。
	// "&lt;" のような文字参照や単独の "<" はテキストとして扱う。
	ContainsMarkup(raw string) bool
}

// markupDetector はbluemondayのStrictPolicyによるMarkupDetectorの実装。
// bluemondayのPolicyはスレッドセーフなので共有してよい。
type markupDetector struct {
	policy *bluemonday.Policy
}

// NewMarkupDetector はMarkupDetectorを生成する。
func NewMarkupDetector() MarkupDetector {
	return &markupDetector{policy: bluemonday.StrictPolicy()}
}

// ContainsMarkup はStrictPolicyで全要素を除去した結果のテキストが入力のテキストと異なるかを判定する。
// StrictPolicyはテキスト部分をエスケープして出力するため、両辺とも文字参照を解決して比較する。
func (d *markupDetector) ContainsMarkup(raw string) bool {
	return html.UnescapeString(d.policy.Sanitize(raw)) != html.UnescapeString(raw)
}
