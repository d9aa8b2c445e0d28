package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOverflow(t *testing.T) {
	tests := []struct {
		name     string
		address  uint32
		quantity uint32
		want     bool
	}{
		{"single register at zero", 0, 1, false},
		{"last valid address", 65535, 1, false},
		{"span ends at upper bound", 65534, 2, false},
		{"span past upper bound", 65535, 2, true},
		{"four-word span past bound", 65533, 4, true},
		{"four-word span at bound", 65532, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckOverflow(tt.address, tt.quantity))
		})
	}
}

func TestCheckConflict(t *testing.T) {
	existing := []ModbusRegister{
		{ID: "r1", Name: "電壓", RegisterType: RegisterTypeHoldingRegister, Address: 100, DataType: DataTypeUint16, Quantity: 1},
		{ID: "r2", Name: "電流", RegisterType: RegisterTypeHoldingRegister, Address: 110, DataType: DataTypeUint32, Quantity: 2},
		{ID: "r3", Name: "狀態", RegisterType: RegisterTypeCoil, Address: 100, DataType: DataTypeBool, Quantity: 1},
	}

	tests := []struct {
		name      string
		candidate ModbusRegister
		excludeID string
		conflict  bool
		withID    string
	}{
		{
			name:      "disjoint below",
			candidate: ModbusRegister{RegisterType: RegisterTypeHoldingRegister, Address: 99, Quantity: 1},
		},
		{
			name:      "disjoint between",
			candidate: ModbusRegister{RegisterType: RegisterTypeHoldingRegister, Address: 101, Quantity: 9},
		},
		{
			name:      "exact overlap",
			candidate: ModbusRegister{RegisterType: RegisterTypeHoldingRegister, Address: 100, Quantity: 1},
			conflict:  true,
			withID:    "r1",
		},
		{
			name:      "span crosses existing tail",
			candidate: ModbusRegister{RegisterType: RegisterTypeHoldingRegister, Address: 111, Quantity: 2},
			conflict:  true,
			withID:    "r2",
		},
		{
			name:      "span swallows existing",
			candidate: ModbusRegister{RegisterType: RegisterTypeHoldingRegister, Address: 90, Quantity: 40},
			conflict:  true,
			withID:    "r1",
		},
		{
			// 不同暫存器類型佔用獨立位址庫，可自由重疊
			name:      "different register type may overlap",
			candidate: ModbusRegister{RegisterType: RegisterTypeInputRegister, Address: 100, Quantity: 2},
		},
		{
			// 原地編輯：不與自己的舊版本衝突
			name:      "edit in place excludes self",
			candidate: ModbusRegister{ID: "r1", RegisterType: RegisterTypeHoldingRegister, Address: 100, Quantity: 1},
			excludeID: "r1",
		},
		{
			name:      "edit in place still conflicts with others",
			candidate: ModbusRegister{ID: "r1", RegisterType: RegisterTypeHoldingRegister, Address: 110, Quantity: 1},
			excludeID: "r1",
			conflict:  true,
			withID:    "r2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckConflict(existing, tt.candidate, tt.excludeID)
			assert.Equal(t, tt.conflict, result.Conflict)
			if tt.conflict {
				require.NotNil(t, result.With)
				assert.Equal(t, tt.withID, result.With.ID)
			} else {
				assert.Nil(t, result.With)
			}
		})
	}
}

// 回傳儲存順序中第一個重疊者，不彙整全部衝突
func TestCheckConflict_FirstInStorageOrder(t *testing.T) {
	existing := []ModbusRegister{
		{ID: "a", RegisterType: RegisterTypeHoldingRegister, Address: 10, Quantity: 2},
		{ID: "b", RegisterType: RegisterTypeHoldingRegister, Address: 12, Quantity: 2},
	}
	candidate := ModbusRegister{RegisterType: RegisterTypeHoldingRegister, Address: 11, Quantity: 3}

	result := CheckConflict(existing, candidate, "")
	require.True(t, result.Conflict)
	assert.Equal(t, "a", result.With.ID)
}

func TestCheckConflict_DoesNotMutateInput(t *testing.T) {
	existing := []ModbusRegister{
		{ID: "r1", RegisterType: RegisterTypeHoldingRegister, Address: 100, Quantity: 1},
	}
	snapshot := existing[0]

	CheckConflict(existing, ModbusRegister{RegisterType: RegisterTypeHoldingRegister, Address: 100, Quantity: 1}, "")
	assert.Equal(t, snapshot, existing[0])
}

func BenchmarkCheckConflict(b *testing.B) {
	existing := make([]ModbusRegister, 200)
	for i := range existing {
		existing[i] = ModbusRegister{
			ID:           NewElementID(),
			RegisterType: RegisterTypeHoldingRegister,
			Address:      uint32(i * 10),
			Quantity:     2,
		}
	}
	candidate := ModbusRegister{RegisterType: RegisterTypeHoldingRegister, Address: 1995, Quantity: 2}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		CheckConflict(existing, candidate, "")
	}
}
