package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validModbusConfig() *DeviceTypeConfig {
	return &DeviceTypeConfig{
		Name:     "電表",
		Protocol: ProtocolModbus,
		Registers: []ModbusRegister{
			{ID: "r1", Name: "電壓", Unit: "V", RegisterType: RegisterTypeHoldingRegister, Address: 100, DataType: DataTypeUint16, Quantity: 1},
			{ID: "r2", Name: "電量", Unit: "kWh", RegisterType: RegisterTypeHoldingRegister, Address: 110, DataType: DataTypeUint32, Quantity: 2},
			{ID: "r3", Name: "運行狀態", RegisterType: RegisterTypeHoldingRegister, Address: 120, DataType: DataTypeUint16, Quantity: 1,
				Dict: &DictConfig{MapType: MapTypeBit, Items: []DictItem{
					{Key: "0", Label: "運行"},
					{Key: "1", Label: "故障"},
				}}},
		},
	}
}

func validSL651Config() *DeviceTypeConfig {
	return &DeviceTypeConfig{
		Name:     "雨量站",
		Protocol: ProtocolSL651,
		Funcs: []SL651Func{
			{Code: "2F", Elements: []SL651Element{
				{ID: "e1", Name: "雨量", Unit: "mm", GuideHex: "01", Encode: "BCD", Length: 3, Digits: 1},
			}},
		},
	}
}

func TestDeviceTypeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*DeviceTypeConfig)
		wantErr string
	}{
		{
			name:   "valid modbus config",
			modify: func(c *DeviceTypeConfig) {},
		},
		{
			name: "missing name",
			modify: func(c *DeviceTypeConfig) {
				c.Name = ""
			},
			wantErr: "名稱",
		},
		{
			name: "invalid protocol",
			modify: func(c *DeviceTypeConfig) {
				c.Protocol = "DLT645"
			},
			wantErr: "協議",
		},
		{
			name: "register missing name",
			modify: func(c *DeviceTypeConfig) {
				c.Registers[0].Name = ""
			},
			wantErr: "缺少名稱",
		},
		{
			name: "invalid register type",
			modify: func(c *DeviceTypeConfig) {
				c.Registers[0].RegisterType = "FLASH"
			},
			wantErr: "暫存器類型",
		},
		{
			// 未知資料類型是呼叫端錯誤，在儲存時擋下而非默默補預設值
			name: "invalid data type",
			modify: func(c *DeviceTypeConfig) {
				c.Registers[0].DataType = "STRING"
			},
			wantErr: "資料類型",
		},
		{
			name: "quantity mismatch",
			modify: func(c *DeviceTypeConfig) {
				c.Registers[1].Quantity = 1 // UINT32 應佔 2
			},
			wantErr: "不符",
		},
		{
			name: "address overflow",
			modify: func(c *DeviceTypeConfig) {
				c.Registers[1].Address = 65535 // UINT32 佔 2，區間越界
			},
			wantErr: "位址空間",
		},
		{
			name: "address conflict",
			modify: func(c *DeviceTypeConfig) {
				c.Registers[2].Address = 111 // 撞進 r2 的 [110, 111]
			},
			wantErr: "重疊",
		},
		{
			name: "invalid dict item",
			modify: func(c *DeviceTypeConfig) {
				c.Registers[2].Dict.Items[1].Key = "40"
			},
			wantErr: "位元索引",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validModbusConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeviceTypeConfig_Validate_SL651(t *testing.T) {
	cfg := validSL651Config()
	require.NoError(t, cfg.Validate())

	cfg.Funcs[0].Elements[0].GuideHex = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "引導符")
}

// 數量缺省時由 Sanitize 從資料類型補齊
func TestDeviceTypeConfig_Sanitize_FillsQuantity(t *testing.T) {
	cfg := validModbusConfig()
	cfg.Registers[1].Quantity = 0

	cfg.Sanitize()

	assert.Equal(t, uint32(2), cfg.Registers[1].Quantity)
	assert.NoError(t, cfg.Validate())
}

// Validate 是唯讀檢查：不補數量、不改動文件
func TestDeviceTypeConfig_Validate_ReadOnly(t *testing.T) {
	cfg := validModbusConfig()
	cfg.Registers[1].Quantity = 0
	snapshot := validModbusConfig()
	snapshot.Registers[1].Quantity = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不符")
	assert.Equal(t, snapshot, cfg)
}

func TestDeviceTypeConfig_Sanitize(t *testing.T) {
	cfg := validModbusConfig()
	cfg.Registers[0].ID = ""
	cfg.Registers[2].Dict.Items = append(cfg.Registers[2].Dict.Items,
		DictItem{Key: "5"},     // 缺 label
		DictItem{Label: "殘缺列"}, // 缺 key
	)

	cfg.Sanitize()

	// 殘缺的編輯列被容忍性丟棄，完整項目保留
	require.Len(t, cfg.Registers[2].Dict.Items, 2)
	assert.NoError(t, cfg.Validate())

	// 新建元素在儲存時取得識別碼
	assert.NotEmpty(t, cfg.Registers[0].ID)
}

func TestNewElementID(t *testing.T) {
	a := NewElementID()
	b := NewElementID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestDeviceTypeConfig_SaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "device-type.json")

	cfg := validModbusConfig()
	require.NoError(t, cfg.SaveConfig(configPath))

	_, err := os.Stat(configPath)
	require.NoError(t, err)

	loaded, err := LoadDeviceTypeConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, cfg.Name, loaded.Name)
	assert.Equal(t, cfg.Protocol, loaded.Protocol)
	require.Len(t, loaded.Registers, 3)
	assert.Equal(t, cfg.Registers[2].Dict.Items, loaded.Registers[2].Dict.Items)
}

func TestLoadDeviceTypeConfig_InvalidDocumentBlocked(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "device-type.json")

	data := `{"name":"電表","protocol":"MODBUS","registers":[
		{"id":"r1","name":"甲","registerType":"HOLDING_REGISTER","address":110,"dataType":"UINT16","quantity":1},
		{"id":"r2","name":"乙","registerType":"HOLDING_REGISTER","address":110,"dataType":"UINT32","quantity":2}
	]}`
	require.NoError(t, os.WriteFile(configPath, []byte(data), 0644))

	_, err := LoadDeviceTypeConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "重疊")
}
