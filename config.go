package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// DeviceTypeConfig 設備類型配置文件
// 描述一類設備的協議版面：Modbus 為暫存器列表，SL651 為功能碼/要素樹。
// 文件由配置儲存流程獨佔寫入，解碼與驗證路徑只讀取已取得的快照
type DeviceTypeConfig struct {
	Name     string       `json:"name" mapstructure:"name"`
	Protocol ProtocolType `json:"protocol" mapstructure:"protocol"`

	// Modbus
	Registers []ModbusRegister `json:"registers,omitempty" mapstructure:"registers"`

	// SL651
	Funcs []SL651Func `json:"funcs,omitempty" mapstructure:"funcs"`
}

// ModbusRegister Modbus 暫存器定義
type ModbusRegister struct {
	ID           string       `json:"id" mapstructure:"id"`
	Name         string       `json:"name" mapstructure:"name"`
	Unit         string       `json:"unit,omitempty" mapstructure:"unit"`
	RegisterType RegisterType `json:"registerType" mapstructure:"registerType"`
	Address      uint32       `json:"address" mapstructure:"address"`
	DataType     DataType     `json:"dataType" mapstructure:"dataType"`
	Quantity     uint32       `json:"quantity" mapstructure:"quantity"`
	Dict         *DictConfig  `json:"dict,omitempty" mapstructure:"dict"`
}

// SL651Func SL651 功能碼定義
type SL651Func struct {
	Code     string         `json:"code" mapstructure:"code"`
	Name     string         `json:"name,omitempty" mapstructure:"name"`
	Elements []SL651Element `json:"elements" mapstructure:"elements"`
}

// SL651Element SL651 要素定義
type SL651Element struct {
	ID       string      `json:"id" mapstructure:"id"`
	Name     string      `json:"name" mapstructure:"name"`
	Unit     string      `json:"unit,omitempty" mapstructure:"unit"`
	GuideHex string      `json:"guideHex" mapstructure:"guideHex"`
	Encode   string      `json:"encode,omitempty" mapstructure:"encode"`
	Length   int         `json:"length,omitempty" mapstructure:"length"`
	Digits   int         `json:"digits,omitempty" mapstructure:"digits"`
	Dict     *DictConfig `json:"dict,omitempty" mapstructure:"dict"`
}

// NewElementID 產生元素/暫存器識別碼
// 建立時指派，之後不可變
func NewElementID() string {
	return uuid.NewString()
}

// LoadDeviceTypeConfig 載入設備類型配置文件
func LoadDeviceTypeConfig(configPath string) (*DeviceTypeConfig, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("device-type")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/iotproto/")
		v.AddConfigPath("$HOME/.iotproto/")
	}

	// 環境變數覆蓋
	v.SetEnvPrefix("IOTPROTO")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
	}

	cfg := &DeviceTypeConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失敗: %w", err)
	}

	// 與儲存流程同序：先正規化再驗證
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置驗證失敗: %w", err)
	}

	return cfg, nil
}

// Sanitize 儲存前清理
// 丟棄缺少 key 或 label 的字典項目 (殘缺編輯列的容忍性清理)，
// 為新建元素指派識別碼，並從資料類型補齊缺省的數量；
// 其餘錯誤一律由 Validate 擋下儲存並指名出錯的項目。
// 文件的寫入側修改只發生在這裡，Validate 保持唯讀
func (c *DeviceTypeConfig) Sanitize() {
	for i := range c.Registers {
		r := &c.Registers[i]
		if r.ID == "" {
			r.ID = NewElementID()
		}
		if r.Quantity == 0 {
			r.Quantity = uint32(r.DataType.RegisterCount())
		}
		r.Dict.Sanitize()
	}
	for i := range c.Funcs {
		for j := range c.Funcs[i].Elements {
			if c.Funcs[i].Elements[j].ID == "" {
				c.Funcs[i].Elements[j].ID = NewElementID()
			}
			c.Funcs[i].Elements[j].Dict.Sanitize()
		}
	}
}

// Validate 驗證配置文件
func (c *DeviceTypeConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("配置名稱不可為空")
	}
	if !c.Protocol.Valid() {
		return fmt.Errorf("無效的協議類型: %q", c.Protocol)
	}

	switch c.Protocol {
	case ProtocolModbus:
		return c.validateRegisters()
	case ProtocolSL651:
		return c.validateFuncs()
	}
	return nil
}

// validateRegisters 驗證 Modbus 暫存器列表
func (c *DeviceTypeConfig) validateRegisters() error {
	for i := range c.Registers {
		r := &c.Registers[i]
		if r.Name == "" {
			return fmt.Errorf("暫存器 %d 缺少名稱", i)
		}
		if !r.RegisterType.Valid() {
			return fmt.Errorf("暫存器 %q: 無效的暫存器類型: %q", r.Name, r.RegisterType)
		}
		if !r.DataType.Valid() {
			return fmt.Errorf("暫存器 %q: 無效的資料類型: %q", r.Name, r.DataType)
		}
		if r.Quantity != uint32(r.DataType.RegisterCount()) {
			return fmt.Errorf("暫存器 %q: 數量 %d 與資料類型 %s 不符 (應為 %d)",
				r.Name, r.Quantity, r.DataType, r.DataType.RegisterCount())
		}
		if r.Address > MaxRegisterAddress {
			return fmt.Errorf("暫存器 %q: 位址超出範圍: %d", r.Name, r.Address)
		}
		// 溢位檢查先於衝突檢查：溢位的區間上界沒有意義
		if CheckOverflow(r.Address, r.Quantity) {
			return fmt.Errorf("暫存器 %q: 區間 [%d, %d] 超出 16-bit 位址空間",
				r.Name, r.Address, uint64(r.Address)+uint64(r.Quantity)-1)
		}
		if result := CheckConflict(c.Registers[:i], *r, r.ID); result.Conflict {
			return fmt.Errorf("暫存器 %q: 位址區間與 %q [%d, %d] 重疊",
				r.Name, result.With.Name, result.With.Address,
				uint64(result.With.Address)+uint64(result.With.Quantity)-1)
		}
		if err := r.Dict.Validate(); err != nil {
			return fmt.Errorf("暫存器 %q: %w", r.Name, err)
		}
	}
	return nil
}

// validateFuncs 驗證 SL651 功能碼/要素樹
func (c *DeviceTypeConfig) validateFuncs() error {
	for i := range c.Funcs {
		f := &c.Funcs[i]
		if f.Code == "" {
			return fmt.Errorf("功能碼 %d 缺少代碼", i)
		}
		for j := range f.Elements {
			e := &f.Elements[j]
			if e.Name == "" {
				return fmt.Errorf("功能碼 %s 要素 %d 缺少名稱", f.Code, j)
			}
			if e.GuideHex == "" {
				return fmt.Errorf("功能碼 %s 要素 %q 缺少引導符", f.Code, e.Name)
			}
			if err := e.Dict.Validate(); err != nil {
				return fmt.Errorf("功能碼 %s 要素 %q: %w", f.Code, e.Name, err)
			}
		}
	}
	return nil
}

// SaveConfig 儲存配置到檔案
// 呼叫端應先 Sanitize 再 Validate 通過後才寫入
func (c *DeviceTypeConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失敗: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("寫入配置檔失敗: %w", err)
	}

	return nil
}
