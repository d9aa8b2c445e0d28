package main

// ConflictResult 位址衝突檢查結果
type ConflictResult struct {
	Conflict bool            `json:"conflict"`
	With     *ModbusRegister `json:"with,omitempty"`
}

// CheckOverflow 候選暫存器區間是否超出 16-bit 位址空間
// 溢位的候選應在衝突搜尋之前就被擋下，其上界沒有意義
func CheckOverflow(address, quantity uint32) bool {
	return uint64(address)+uint64(quantity)-1 > MaxRegisterAddress
}

// CheckConflict 檢查候選暫存器與既有暫存器的位址區間衝突
// 僅比對同一 registerType (不同類型佔用邏輯上獨立的位址庫)，
// excludeID 用於原地編輯：暫存器不與自己的舊版本衝突。
// 回傳儲存順序中第一個重疊的暫存器，不彙整全部衝突。
// 純函數，不修改輸入，由儲存流程決定是否擋下寫入
func CheckConflict(existing []ModbusRegister, candidate ModbusRegister, excludeID string) ConflictResult {
	newStart := uint64(candidate.Address)
	newEnd := uint64(candidate.Address) + uint64(candidate.Quantity) - 1

	for i := range existing {
		r := &existing[i]
		if r.RegisterType != candidate.RegisterType {
			continue
		}
		if excludeID != "" && r.ID == excludeID {
			continue
		}

		existStart := uint64(r.Address)
		existEnd := uint64(r.Address) + uint64(r.Quantity) - 1

		// 閉區間相交判定
		if !(newEnd < existStart || newStart > existEnd) {
			return ConflictResult{Conflict: true, With: r}
		}
	}
	return ConflictResult{}
}
