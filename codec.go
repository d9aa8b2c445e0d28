package main

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// RawValue 原始遙測值
// 依來源不同可能是數值或字串，統一收斂為一個小型和類型，
// 位元檢視一律經過 Int() 這一個轉換入口
type RawValue struct {
	num   int64
	text  string
	isNum bool
	empty bool
}

// RawInt 以數值建立原始值
func RawInt(n int64) RawValue {
	return RawValue{num: n, isNum: true}
}

// RawText 以字串建立原始值，空字串視為缺值
func RawText(s string) RawValue {
	if s == "" {
		return RawValue{empty: true}
	}
	return RawValue{text: s}
}

// RawEmpty 缺失的原始值
func RawEmpty() RawValue {
	return RawValue{empty: true}
}

// IsEmpty 原始值是否缺失
func (v RawValue) IsEmpty() bool {
	return v.empty
}

// String 原始值的字串形式，不做任何數值重排
func (v RawValue) String() string {
	if v.empty {
		return ""
	}
	if v.isNum {
		return strconv.FormatInt(v.num, 10)
	}
	return v.text
}

var (
	hexPrefixPattern = regexp.MustCompile(`^0[xX][0-9A-Fa-f]+$`)
	decimalPattern   = regexp.MustCompile(`^[0-9]+$`)
	hexDigitsPattern = regexp.MustCompile(`^[0-9A-Fa-f]+$`)
)

// Int 將原始值解析為整數供位元檢視
// 字串輸入沿用字元集嗅探：0x 前綴或含 A-F 的純十六進位字元視為 16 進位，
// 純數字視為 10 進位。全數字的值 (如 "12") 在兩種基數下都合法，
// 此處固定走 10 進位
func (v RawValue) Int() (int64, error) {
	if v.empty {
		return 0, fmt.Errorf("原始值缺失")
	}

	if v.isNum {
		if v.num < 0 || v.num > int64(^uint32(0)) {
			return 0, fmt.Errorf("原始值超出 32 位元範圍: %d", v.num)
		}
		return v.num, nil
	}

	var (
		n   uint64
		err error
	)
	switch {
	case hexPrefixPattern.MatchString(v.text):
		n, err = strconv.ParseUint(v.text[2:], 16, 64)
	case decimalPattern.MatchString(v.text):
		n, err = strconv.ParseUint(v.text, 10, 64)
	case hexDigitsPattern.MatchString(v.text):
		n, err = strconv.ParseUint(v.text, 16, 64)
	default:
		return 0, fmt.Errorf("無法解析的原始值: %q", v.text)
	}
	if err != nil {
		return 0, fmt.Errorf("解析原始值失敗: %q: %w", v.text, err)
	}
	if n > uint64(^uint32(0)) {
		return 0, fmt.Errorf("原始值超出 32 位元範圍: %q", v.text)
	}
	return int64(n), nil
}

// Bit 取出整數 n 的第 idx 個位元 (0 或 1)
func Bit(n int64, idx int) int64 {
	return (n >> uint(idx)) & 1
}

// UnmarshalJSON 接受 JSON 數值、字串或 null
func (v *RawValue) UnmarshalJSON(data []byte) error {
	var any interface{}
	if err := json.Unmarshal(data, &any); err != nil {
		return err
	}
	switch t := any.(type) {
	case nil:
		*v = RawEmpty()
	case string:
		*v = RawText(t)
	case float64:
		// JSON 數值一律以整數處理；非整數值保留字串形式走 VALUE 比對
		if t == float64(int64(t)) {
			*v = RawInt(int64(t))
		} else {
			*v = RawText(strconv.FormatFloat(t, 'f', -1, 64))
		}
	default:
		return fmt.Errorf("不支援的原始值類型: %T", any)
	}
	return nil
}

// MarshalJSON 以字串形式輸出，缺值輸出 null
func (v RawValue) MarshalJSON() ([]byte, error) {
	if v.empty {
		return []byte("null"), nil
	}
	if v.isNum {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.text)
}
