package main

import (
	"fmt"
	"strconv"
)

// MapType 字典映射模式
type MapType string

const (
	MapTypeValue MapType = "VALUE"
	MapTypeBit   MapType = "BIT"
)

// Valid 檢查映射模式是否有效
func (m MapType) Valid() bool {
	return m == MapTypeValue || m == MapTypeBit
}

// DependencyOperator 依賴條件組合方式
type DependencyOperator string

const (
	DependencyAnd DependencyOperator = "AND"
	DependencyOr  DependencyOperator = "OR"
)

// DependencyCondition 對同一原始值另一位元的依賴條件
type DependencyCondition struct {
	BitIndex int    `json:"bitIndex" mapstructure:"bitIndex"`
	BitValue string `json:"bitValue" mapstructure:"bitValue"`
}

// DependsOn 位元項目的依賴條件組
type DependsOn struct {
	Operator   DependencyOperator    `json:"operator" mapstructure:"operator"`
	Conditions []DependencyCondition `json:"conditions" mapstructure:"conditions"`
}

// met 依賴條件是否成立
// AND 在條件列表為空時視為成立，OR 在條件列表為空時視為不成立。
// 此不對稱行為是跨呼叫端既定約定，已有回歸測試釘住，不可修正
func (d *DependsOn) met(n int64) bool {
	if d == nil {
		return true
	}
	if d.Operator == DependencyOr {
		for _, c := range d.Conditions {
			if Bit(n, c.BitIndex) == condBit(c.BitValue) {
				return true
			}
		}
		return false
	}
	for _, c := range d.Conditions {
		if Bit(n, c.BitIndex) != condBit(c.BitValue) {
			return false
		}
	}
	return true
}

// condBit 條件位元值 "0"/"1" 轉整數，預設觸發值為 1
func condBit(s string) int64 {
	if s == "0" {
		return 0
	}
	return 1
}

// DictItem 字典項目
// VALUE 模式下 Key 是完整原始值；BIT 模式下 Key 是位元索引 (0-31)，
// Value 是觸發該標籤的位元狀態
type DictItem struct {
	Key       string     `json:"key" mapstructure:"key"`
	Label     string     `json:"label" mapstructure:"label"`
	Value     string     `json:"value,omitempty" mapstructure:"value"`
	DependsOn *DependsOn `json:"dependsOn,omitempty" mapstructure:"dependsOn"`
}

// DictConfig 字典配置，項目順序即宣告順序
type DictConfig struct {
	MapType MapType    `json:"mapType" mapstructure:"mapType"`
	Items   []DictItem `json:"items" mapstructure:"items"`
}

// Sanitize 移除缺少 key 或 label 的項目
// 這是儲存時對殘缺編輯列的容忍性清理，屬既定 UX 行為：
// 半填的尾列直接丟棄而非報錯，其餘無效項目仍由 Validate 擋下
func (d *DictConfig) Sanitize() {
	if d == nil {
		return
	}
	kept := d.Items[:0]
	for _, item := range d.Items {
		if item.Key == "" || item.Label == "" {
			continue
		}
		kept = append(kept, item)
	}
	d.Items = kept
}

// Validate 在配置載入邊界驗證一次，解碼路徑不再防禦性過濾
func (d *DictConfig) Validate() error {
	if d == nil {
		return nil
	}
	if !d.MapType.Valid() {
		return fmt.Errorf("無效的映射模式: %q", d.MapType)
	}

	// 重複項目是作者錯誤，在儲存時擋下並指名重複的項目。
	// BIT 模式以 (位元索引, 觸發值) 判重：同一位元的開/關兩種
	// 狀態各配一個標籤是兩條不同的映射，不算重複
	seen := make(map[string]int, len(d.Items))

	for i, item := range d.Items {
		if item.Key == "" {
			return fmt.Errorf("字典項目 %d 缺少 key", i)
		}
		if item.Label == "" {
			return fmt.Errorf("字典項目 %d (%s) 缺少 label", i, item.Key)
		}

		dupKey := item.Key
		if d.MapType == MapTypeBit {
			dupKey = item.Key + "/" + strconv.FormatInt(condBit(item.Value), 10)
		}
		if prev, ok := seen[dupKey]; ok {
			return fmt.Errorf("字典項目 %d (%s) 與項目 %d 重複", i, item.Key, prev)
		}
		seen[dupKey] = i

		switch d.MapType {
		case MapTypeValue:
			if item.DependsOn != nil {
				return fmt.Errorf("字典項目 %d (%s): VALUE 模式不允許依賴條件", i, item.Key)
			}
		case MapTypeBit:
			idx, err := strconv.Atoi(item.Key)
			if err != nil || idx < 0 || idx > MaxBitIndex {
				return fmt.Errorf("字典項目 %d: 位元索引必須在 0-%d 之間: %q", i, MaxBitIndex, item.Key)
			}
			if item.Value != "" && item.Value != "0" && item.Value != "1" {
				return fmt.Errorf("字典項目 %d (%s): 觸發值必須是 \"0\" 或 \"1\": %q", i, item.Key, item.Value)
			}
			if item.DependsOn != nil {
				if op := item.DependsOn.Operator; op != DependencyAnd && op != DependencyOr {
					return fmt.Errorf("字典項目 %d (%s): 無效的依賴運算子: %q", i, item.Key, op)
				}
				for j, c := range item.DependsOn.Conditions {
					if c.BitIndex < 0 || c.BitIndex > MaxBitIndex {
						return fmt.Errorf("字典項目 %d (%s) 條件 %d: 位元索引必須在 0-%d 之間: %d",
							i, item.Key, j, MaxBitIndex, c.BitIndex)
					}
					if c.BitValue != "0" && c.BitValue != "1" {
						return fmt.Errorf("字典項目 %d (%s) 條件 %d: 位元值必須是 \"0\" 或 \"1\": %q",
							i, item.Key, j, c.BitValue)
					}
				}
			}
		}
	}
	return nil
}

// DisplayKind 顯示結果種類
type DisplayKind int

const (
	DisplayText DisplayKind = iota
	DisplayBits
)

// Display 解碼後的顯示表示
// Text: 單一文字標籤或原始值回退；Bits: 依宣告順序觸發的位元標籤
type Display struct {
	Kind DisplayKind `json:"kind"`
	Text string      `json:"text,omitempty"`
	Bits []string    `json:"bits,omitempty"`
}

// TextDisplay 建立文字顯示
func TextDisplay(s string) Display {
	return Display{Kind: DisplayText, Text: s}
}

// BitsDisplay 建立位元標籤顯示
func BitsDisplay(labels []string) Display {
	return Display{Kind: DisplayBits, Bits: labels}
}

// Decode 將原始值透過字典解碼為顯示表示
// 純函數：相同 (raw, dict) 輸入永遠得到相同輸出，對任何輸入都不會 panic。
// 解析失敗或查無對應都不是錯誤，一律回退為原始值文字
func Decode(raw RawValue, unit string, dict *DictConfig) Display {
	display, _ := decodeDisplay(raw, unit, dict)
	return display
}

// decodeDisplay 解碼並回報是否回退
// 回退指字典存在但查無對應 (或原始值無法解析)，輸出退回原始值文字；
// 以明確旗標回報，不由呼叫端比對輸出字串推斷
func decodeDisplay(raw RawValue, unit string, dict *DictConfig) (Display, bool) {
	if raw.IsEmpty() {
		return TextDisplay(DisplayPlaceholder), false
	}
	if dict == nil || len(dict.Items) == 0 {
		return TextDisplay(withUnit(raw.String(), unit)), false
	}

	switch dict.MapType {
	case MapTypeValue:
		return decodeValue(raw, unit, dict)
	case MapTypeBit:
		return decodeBits(raw, unit, dict)
	default:
		return TextDisplay(withUnit(raw.String(), unit)), true
	}
}

// decodeValue VALUE 模式：以原始值字串精確比對，第一個相符者勝出
func decodeValue(raw RawValue, unit string, dict *DictConfig) (Display, bool) {
	s := raw.String()
	for _, item := range dict.Items {
		if item.Key == s {
			return TextDisplay(item.Label), false
		}
	}
	// 查無對應不是錯誤，未映射的值保持可見
	return TextDisplay(withUnit(s, unit)), true
}

// decodeBits BIT 模式：依宣告順序收集觸發的位元標籤
func decodeBits(raw RawValue, unit string, dict *DictConfig) (Display, bool) {
	n, err := raw.Int()
	if err != nil {
		return TextDisplay(withUnit(raw.String(), unit)), true
	}

	var labels []string
	for _, item := range dict.Items {
		if !item.DependsOn.met(n) {
			continue
		}
		idx, err := strconv.Atoi(item.Key)
		if err != nil {
			continue
		}
		if Bit(n, idx) == condBit(item.Value) {
			labels = append(labels, item.Label)
		}
	}

	if len(labels) == 0 {
		// 無任何位元觸發與未映射的值同樣回退為原始值文字
		return TextDisplay(withUnit(raw.String(), unit)), true
	}
	return BitsDisplay(labels), false
}

// withUnit 原始值加上物理單位
func withUnit(s, unit string) string {
	if unit == "" {
		return s
	}
	return s + unit
}
