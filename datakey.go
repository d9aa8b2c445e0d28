package main

import "strconv"

// 資料鍵：把配置元素與遙測值接起來的正規字串識別碼。
// 後端解析服務對解碼出的遙測點掛的就是同一條鍵，必須逐位元組一致，
// 因此鍵的組裝只存在這一處，所有呼叫端 (告警條件編輯、歷史檢視、
// 即時渲染) 一律經過這裡，不得各自拼接。

// SL651DataKey SL651 元素的資料鍵: "{funcCode}_{guideHex}"
// 沿用配置中儲存的大小寫與格式，不做任何正規化
func SL651DataKey(funcCode, guideHex string) string {
	return funcCode + "_" + guideHex
}

// ModbusDataKey Modbus 暫存器的資料鍵: "{registerType}_{address}"
// 位址以十進位原樣輸出，不補零
func ModbusDataKey(rt RegisterType, address uint32) string {
	return string(rt) + "_" + strconv.FormatUint(uint64(address), 10)
}

// ElementKey 一個可繫結的元素鍵，供告警條件編輯器與渲染端查找
type ElementKey struct {
	Key  string      `json:"key"`
	Name string      `json:"name"`
	Unit string      `json:"unit,omitempty"`
	Dict *DictConfig `json:"dict,omitempty"`
}

// ElementKeys 列出配置中全部元素的資料鍵，維持儲存順序
// (funcCode, guideHex) 與 (registerType, address) 本身就是各協議的
// 判別子，單一配置內不會出現鍵碰撞
func (c *DeviceTypeConfig) ElementKeys() []ElementKey {
	var keys []ElementKey

	switch c.Protocol {
	case ProtocolModbus:
		for i := range c.Registers {
			r := &c.Registers[i]
			keys = append(keys, ElementKey{
				Key:  ModbusDataKey(r.RegisterType, r.Address),
				Name: r.Name,
				Unit: r.Unit,
				Dict: r.Dict,
			})
		}
	case ProtocolSL651:
		for i := range c.Funcs {
			f := &c.Funcs[i]
			for j := range f.Elements {
				e := &f.Elements[j]
				keys = append(keys, ElementKey{
					Key:  SL651DataKey(f.Code, e.GuideHex),
					Name: e.Name,
					Unit: e.Unit,
					Dict: e.Dict,
				})
			}
		}
	}
	return keys
}

// FindElement 依資料鍵查找元素
func (c *DeviceTypeConfig) FindElement(key string) (ElementKey, bool) {
	for _, ek := range c.ElementKeys() {
		if ek.Key == key {
			return ek, true
		}
	}
	return ElementKey{}, false
}
