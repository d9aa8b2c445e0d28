package main

// 協議常數
const (
	// Modbus 位址空間上限 (16-bit)
	MaxRegisterAddress = 65535

	// 位元索引上限 (原始值只檢視 bit 0-31)
	MaxBitIndex = 31

	// 原始值缺失時的顯示佔位符
	DisplayPlaceholder = "--"
)

// ProtocolType 通訊協議類型
type ProtocolType string

const (
	ProtocolSL651  ProtocolType = "SL651"
	ProtocolModbus ProtocolType = "MODBUS"
)

// Valid 檢查協議類型是否有效
func (p ProtocolType) Valid() bool {
	return p == ProtocolSL651 || p == ProtocolModbus
}

// RegisterType 暫存器類型
// 字串值即為資料鍵的前綴，必須與後端解析服務逐位元組一致，不可改動
type RegisterType string

const (
	RegisterTypeCoil            RegisterType = "COIL"
	RegisterTypeDiscreteInput   RegisterType = "DISCRETE_INPUT"
	RegisterTypeInputRegister   RegisterType = "INPUT_REGISTER"
	RegisterTypeHoldingRegister RegisterType = "HOLDING_REGISTER"
)

// Valid 檢查暫存器類型是否有效
func (rt RegisterType) Valid() bool {
	switch rt {
	case RegisterTypeCoil, RegisterTypeDiscreteInput, RegisterTypeInputRegister, RegisterTypeHoldingRegister:
		return true
	default:
		return false
	}
}

// DataType 資料類型 (決定暫存器佔用數量)
type DataType string

const (
	DataTypeBool    DataType = "BOOL"
	DataTypeInt16   DataType = "INT16"
	DataTypeUint16  DataType = "UINT16"
	DataTypeInt32   DataType = "INT32"
	DataTypeUint32  DataType = "UINT32"
	DataTypeFloat32 DataType = "FLOAT32"
	DataTypeInt64   DataType = "INT64"
	DataTypeUint64  DataType = "UINT64"
	DataTypeDouble  DataType = "DOUBLE"
)

// RegisterCount 返回該資料類型佔用的暫存器數量
// 未知類型回傳 0，由配置驗證階段擋下，不在解碼路徑默默補預設值
func (dt DataType) RegisterCount() int {
	switch dt {
	case DataTypeBool, DataTypeInt16, DataTypeUint16:
		return 1
	case DataTypeInt32, DataTypeUint32, DataTypeFloat32:
		return 2
	case DataTypeInt64, DataTypeUint64, DataTypeDouble:
		return 4
	default:
		return 0
	}
}

// Valid 檢查資料類型是否有效
func (dt DataType) Valid() bool {
	return dt.RegisterCount() != 0
}
