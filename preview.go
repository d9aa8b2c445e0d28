package main

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"
)

// Previewer 即時預覽
// 在配置編輯階段直接輪詢一台真實設備的暫存器，把讀回的字組
// 餵進解碼管線，讓操作員在儲存前就看到字典解碼結果。
// 線路層訊框由 modbus 函式庫處理，本引擎不自行組幀
type Previewer struct {
	addr    string
	unitID  byte
	timeout time.Duration
	logger  *zap.Logger
}

// PreviewOption Previewer 選項
type PreviewOption func(*Previewer)

// WithUnitID 設定下位機號
func WithUnitID(id byte) PreviewOption {
	return func(p *Previewer) {
		p.unitID = id
	}
}

// WithTimeout 設定連線逾時
func WithTimeout(d time.Duration) PreviewOption {
	return func(p *Previewer) {
		p.timeout = d
	}
}

// WithLogger 設定日誌
func WithLogger(logger *zap.Logger) PreviewOption {
	return func(p *Previewer) {
		p.logger = logger
	}
}

// NewPreviewer 建立即時預覽器
func NewPreviewer(addr string, opts ...PreviewOption) *Previewer {
	p := &Previewer{
		addr:    addr,
		unitID:  1,
		timeout: 5 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ReadRegister 讀取一個已配置暫存器的原始值
func (p *Previewer) ReadRegister(reg *ModbusRegister) (RawValue, error) {
	handler := modbus.NewTCPClientHandler(p.addr)
	handler.Timeout = p.timeout
	handler.SlaveId = p.unitID

	if err := handler.Connect(); err != nil {
		return RawValue{}, fmt.Errorf("連線 %s 失敗: %w", p.addr, err)
	}
	defer handler.Close()

	client := modbus.NewClient(handler)
	quantity := uint16(reg.DataType.RegisterCount())
	address := uint16(reg.Address)

	var (
		data []byte
		err  error
	)
	switch reg.RegisterType {
	case RegisterTypeHoldingRegister:
		data, err = client.ReadHoldingRegisters(address, quantity)
	case RegisterTypeInputRegister:
		data, err = client.ReadInputRegisters(address, quantity)
	case RegisterTypeCoil:
		data, err = client.ReadCoils(address, 1)
	case RegisterTypeDiscreteInput:
		data, err = client.ReadDiscreteInputs(address, 1)
	default:
		return RawValue{}, fmt.Errorf("無效的暫存器類型: %q", reg.RegisterType)
	}
	if err != nil {
		return RawValue{}, fmt.Errorf("讀取 %s 失敗: %w", ModbusDataKey(reg.RegisterType, reg.Address), err)
	}

	p.logger.Debug("讀取暫存器",
		zap.String("key", ModbusDataKey(reg.RegisterType, reg.Address)),
		zap.Int("bytes", len(data)),
	)

	switch reg.RegisterType {
	case RegisterTypeCoil, RegisterTypeDiscreteInput:
		if len(data) == 0 {
			return RawValue{}, fmt.Errorf("空的回應資料")
		}
		return RawInt(int64(data[0] & 1)), nil
	default:
		return AssembleRawValue(BytesToWords(data))
	}
}

// Preview 讀取並解碼一個已配置暫存器
func (p *Previewer) Preview(reg *ModbusRegister) (Display, error) {
	raw, err := p.ReadRegister(reg)
	if err != nil {
		return Display{}, err
	}
	return Decode(raw, reg.Unit, reg.Dict), nil
}

// BytesToWords 將位元組陣列轉換為暫存器字組 (Big Endian)
func BytesToWords(data []byte) []uint16 {
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return words
}

// AssembleRawValue 將暫存器字組組合為原始整數值 (高字組在前)
// 只支援 1/2 字組：4 字組的值超出位元檢視的 32 位元範圍
func AssembleRawValue(words []uint16) (RawValue, error) {
	switch len(words) {
	case 1:
		return RawInt(int64(words[0])), nil
	case 2:
		return RawInt(int64(uint32(words[0])<<16 | uint32(words[1]))), nil
	default:
		return RawValue{}, fmt.Errorf("不支援的字組數量: %d", len(words))
	}
}
