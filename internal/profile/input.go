package profile

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/profilekeeper/internal/model"
	"github.com/hitoshi/profilekeeper/internal/security"
)

// フォームのフィールド名
const (
	FieldNickname = "nickname"
	FieldAddress  = "address"
)

// UpdateInput は検証済みのプロフィール更新入力。
// ParseUpdateInput以外で生成しないこと。
type UpdateInput struct {
	Nickname string
	Address  string
}

// ParseUpdateInput はフォーム値からUpdateInputを組み立てる。
// 両フィールドの存在を必須とし、前後の空白を取り除いた上でマークアップの有無と文字数上限を検証する。
// 値はそれ以外に加工しないため、表示された値をそのまま再送信すると同じ値が保存される。
func ParseUpdateInput(form url.Values, markup security.MarkupDetector) (UpdateInput, *model.APIError) {
	nickname, apiErr := parseField(form, FieldNickname, model.MaxNicknameLength, markup)
	if apiErr != nil {
		return UpdateInput{}, apiErr
	}

	address, apiErr := parseField(form, FieldAddress, model.MaxAddressLength, markup)
	if apiErr != nil {
		return UpdateInput{}, apiErr
	}

	return UpdateInput{Nickname: nickname, Address: address}, nil
}

func parseField(form url.Values, field string, maxLen int, markup security.MarkupDetector) (string, *model.APIError) {
	values, ok := form[field]
	if !ok || len(values) == 0 {
		return "", model.NewInvalidInputError(field, "必須項目です")
	}
	if len(values) > 1 {
		return "", model.NewInvalidInputError(field, "複数の値が送信されました")
	}

	raw := values[0]
	if !utf8.ValidString(raw) {
		return "", model.NewInvalidInputError(field, "文字コードが不正です")
	}

	value := strings.TrimSpace(raw)
	if markup.ContainsMarkup(value) {
		return "", model.NewInvalidInputError(field, "HTMLタグは使用できません")
	}
	if n := utf8.RuneCountInString(value); n > maxLen {
		return "", model.NewInvalidInputError(field, fmt.Sprintf("%d文字以内で入力してください（%d文字）", maxLen, n))
	}

	return value, nil
}
