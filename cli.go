package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	logger  *zap.Logger
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "iotproto",
	Short: "協議元素配置與解碼引擎",
	Long: `iot-manager 管理後台的協議元素配置與解碼引擎。
驗證設備類型配置 (SL651 / Modbus)、解析資料鍵、
並透過宣告式字典將原始遙測值解碼為顯示標籤。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 初始化日誌
		var err error
		logger, err = initLogger()
		if err != nil {
			return fmt.Errorf("初始化日誌失敗: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// validateCmd 驗證命令
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "驗證設備類型配置",
	Long:  "驗證指定的設備類型配置文件，指出出錯的項目或暫存器。",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadDeviceTypeConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("配置驗證失敗: %w", err)
		}

		fmt.Println("配置驗證通過")
		fmt.Printf("  名稱: %s\n", cfg.Name)
		fmt.Printf("  協議: %s\n", cfg.Protocol)
		switch cfg.Protocol {
		case ProtocolModbus:
			fmt.Printf("  暫存器: %d\n", len(cfg.Registers))
		case ProtocolSL651:
			fmt.Printf("  功能碼: %d\n", len(cfg.Funcs))
		}
		return nil
	},
}

// keysCmd 鍵列舉命令
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "列出元素資料鍵",
	Long:  "列出配置中全部元素的資料鍵，即告警條件可繫結的目標。",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadDeviceTypeConfig(cfgFile)
		if err != nil {
			return err
		}

		keys := cfg.ElementKeys()
		if len(keys) == 0 {
			fmt.Println("配置中沒有元素")
			return nil
		}

		fmt.Printf("元素資料鍵 (%d 個):\n", len(keys))
		for _, k := range keys {
			line := fmt.Sprintf("  %-30s %s", k.Key, k.Name)
			if k.Unit != "" {
				line += fmt.Sprintf(" (%s)", k.Unit)
			}
			if k.Dict != nil {
				line += fmt.Sprintf(" [字典: %s x%d]", k.Dict.MapType, len(k.Dict.Items))
			}
			fmt.Println(line)
		}
		return nil
	},
}

// decodeCmd 解碼命令
var decodeCmd = &cobra.Command{
	Use:   "decode [key] [rawValue]",
	Short: "解碼一筆原始值",
	Long:  "以配置中指定元素的字典解碼一筆原始遙測值。",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadDeviceTypeConfig(cfgFile)
		if err != nil {
			return err
		}

		key := args[0]
		elem, ok := cfg.FindElement(key)
		if !ok {
			return fmt.Errorf("配置中找不到元素: %q", key)
		}

		display := Decode(RawText(args[1]), elem.Unit, elem.Dict)
		switch display.Kind {
		case DisplayBits:
			fmt.Println(strings.Join(display.Bits, ", "))
		default:
			fmt.Println(display.Text)
		}
		return nil
	},
}

// previewCmd 即時預覽命令
var previewCmd = &cobra.Command{
	Use:   "preview [key]",
	Short: "即時預覽解碼結果",
	Long:  "輪詢真實設備的暫存器並即時解碼，供儲存前確認字典配置。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadDeviceTypeConfig(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Protocol != ProtocolModbus {
			return fmt.Errorf("即時預覽僅支援 Modbus 配置")
		}

		key := args[0]
		var reg *ModbusRegister
		for i := range cfg.Registers {
			r := &cfg.Registers[i]
			if ModbusDataKey(r.RegisterType, r.Address) == key {
				reg = r
				break
			}
		}
		if reg == nil {
			return fmt.Errorf("配置中找不到暫存器: %q", key)
		}

		addr, _ := cmd.Flags().GetString("addr")
		unitID, _ := cmd.Flags().GetUint8("unit")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		previewer := NewPreviewer(addr,
			WithUnitID(unitID),
			WithTimeout(timeout),
			WithLogger(logger),
		)

		display, err := previewer.Preview(reg)
		if err != nil {
			return fmt.Errorf("預覽失敗: %w", err)
		}

		switch display.Kind {
		case DisplayBits:
			fmt.Printf("%s: %s\n", key, strings.Join(display.Bits, ", "))
		default:
			fmt.Printf("%s: %s\n", key, display.Text)
		}
		return nil
	},
}

// serveCmd 服務命令
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "啟動解碼服務",
	Long:  "載入設備類型配置並啟動解碼服務 HTTP API。",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		engine := NewEngine(logger)

		if cfgFile != "" {
			cfg, err := LoadDeviceTypeConfig(cfgFile)
			if err != nil {
				return err
			}
			if err := engine.LoadConfig(cfg); err != nil {
				return err
			}
		}

		server := NewServer(engine, logger)
		if err := server.Start(port); err != nil {
			return fmt.Errorf("啟動服務失敗: %w", err)
		}

		logger.Info("解碼服務已啟動",
			zap.Int("port", port),
			zap.Strings("configs", engine.ListConfigs()),
		)

		// 等待關閉信號
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("收到關閉信號", zap.String("signal", sig.String()))

		// 優雅關閉
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("關閉服務失敗", zap.Error(err))
			return err
		}

		logger.Info("服務已停止")
		return nil
	},
}

// versionCmd 版本命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "顯示版本資訊",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("iotproto version %s\n", Version)
		fmt.Printf("  Build: %s\n", BuildTime)
		fmt.Printf("  Commit: %s\n", GitCommit)
	},
}

func init() {
	// 全域 flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "設備類型配置文件路徑")

	// preview 命令 flags
	previewCmd.Flags().StringP("addr", "a", "127.0.0.1:502", "設備位址 (host:port)")
	previewCmd.Flags().Uint8P("unit", "u", 1, "下位機號")
	previewCmd.Flags().DurationP("timeout", "t", 5*time.Second, "連線逾時")

	// serve 命令 flags
	serveCmd.Flags().IntP("port", "p", 8086, "監聽埠號")

	rootCmd.AddCommand(
		validateCmd,
		keysCmd,
		decodeCmd,
		previewCmd,
		serveCmd,
		versionCmd,
	)
}

func initLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// Execute 執行 CLI
func Execute() error {
	return rootCmd.Execute()
}
