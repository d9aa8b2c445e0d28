package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Engine 解碼引擎
// 持有已載入的設備類型配置快照，對外提供解碼、鍵列舉與位址驗證。
// 配置僅透過 LoadConfig 整份替換，解碼路徑永遠看到一致的快照
type Engine struct {
	mu sync.RWMutex

	// 配置快照 (依名稱索引)
	configs map[string]*DeviceTypeConfig

	// 統計
	startTime      time.Time
	decodeTotal    atomic.Uint64
	decodeFallback atomic.Uint64
	conflictChecks atomic.Uint64
	conflictsFound atomic.Uint64

	logger *zap.Logger
}

// NewEngine 建立解碼引擎
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		configs:   make(map[string]*DeviceTypeConfig),
		startTime: time.Now(),
		logger:    logger,
	}
}

// LoadConfig 載入 (整份替換) 一份設備類型配置
func (e *Engine) LoadConfig(cfg *DeviceTypeConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置 %q 驗證失敗: %w", cfg.Name, err)
	}

	e.mu.Lock()
	e.configs[cfg.Name] = cfg
	e.mu.Unlock()

	e.logger.Info("已載入設備類型配置",
		zap.String("name", cfg.Name),
		zap.String("protocol", string(cfg.Protocol)),
	)
	return nil
}

// GetConfig 取得指定名稱的配置
func (e *Engine) GetConfig(name string) (*DeviceTypeConfig, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg, ok := e.configs[name]
	return cfg, ok
}

// ListConfigs 列出已載入的配置名稱
func (e *Engine) ListConfigs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.configs))
	for name := range e.configs {
		names = append(names, name)
	}
	return names
}

// Decode 依資料鍵解碼一筆遙測原始值
func (e *Engine) Decode(configName, key string, raw RawValue) (Display, error) {
	cfg, ok := e.GetConfig(configName)
	if !ok {
		return Display{}, fmt.Errorf("找不到配置: %q", configName)
	}

	elem, ok := cfg.FindElement(key)
	if !ok {
		return Display{}, fmt.Errorf("配置 %q 中找不到元素: %q", configName, key)
	}

	display, fellBack := decodeDisplay(raw, elem.Unit, elem.Dict)

	e.decodeTotal.Add(1)
	if fellBack {
		e.decodeFallback.Add(1)
	}
	return display, nil
}

// CheckRegister 對候選暫存器執行溢位與衝突檢查
func (e *Engine) CheckRegister(configName string, candidate ModbusRegister, excludeID string) (ConflictResult, error) {
	cfg, ok := e.GetConfig(configName)
	if !ok {
		return ConflictResult{}, fmt.Errorf("找不到配置: %q", configName)
	}
	if cfg.Protocol != ProtocolModbus {
		return ConflictResult{}, fmt.Errorf("配置 %q 不是 Modbus 協議", configName)
	}
	if !candidate.DataType.Valid() {
		return ConflictResult{}, fmt.Errorf("無效的資料類型: %q", candidate.DataType)
	}
	if candidate.Quantity == 0 {
		candidate.Quantity = uint32(candidate.DataType.RegisterCount())
	}
	if CheckOverflow(candidate.Address, candidate.Quantity) {
		return ConflictResult{}, fmt.Errorf("區間 [%d, %d] 超出 16-bit 位址空間",
			candidate.Address, uint64(candidate.Address)+uint64(candidate.Quantity)-1)
	}

	e.conflictChecks.Add(1)
	result := CheckConflict(cfg.Registers, candidate, excludeID)
	if result.Conflict {
		e.conflictsFound.Add(1)
	}
	return result, nil
}

// Server 解碼服務 HTTP 伺服器
// 提供給管理後台呼叫的薄 API 層，核心解碼邏輯保持純函數
type Server struct {
	engine *Engine
	logger *zap.Logger
	http   *http.Server
}

// NewServer 建立解碼服務
func NewServer(engine *Engine, logger *zap.Logger) *Server {
	return &Server{engine: engine, logger: logger}
}

// routes 組裝路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/decode", s.handleDecode)
	mux.HandleFunc("/api/registers/check", s.handleCheckRegister)
	mux.HandleFunc("/api/keys", s.handleKeys)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return mux
}

// Start 啟動 HTTP 伺服器
func (s *Server) Start(port int) error {
	mux := s.routes()

	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("啟動解碼服務", zap.String("addr", addr))

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("解碼服務錯誤", zap.Error(err))
		}
	}()

	return nil
}

// Stop 優雅關閉 HTTP 伺服器
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// decodeRequest POST /api/decode 請求
type decodeRequest struct {
	Config string   `json:"config"`
	Key    string   `json:"key"`
	Raw    RawValue `json:"raw"`
}

// handleDecode 處理解碼請求
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("解析請求失敗: %w", err))
		return
	}

	display, err := s.engine.Decode(req.Config, req.Key, req.Raw)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	writeJSON(w, display)
}

// checkRegisterRequest POST /api/registers/check 請求
type checkRegisterRequest struct {
	Config    string         `json:"config"`
	Candidate ModbusRegister `json:"candidate"`
	ExcludeID string         `json:"excludeId,omitempty"`
}

// handleCheckRegister 處理暫存器位址檢查請求
func (s *Server) handleCheckRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("解析請求失敗: %w", err))
		return
	}

	result, err := s.engine.CheckRegister(req.Config, req.Candidate, req.ExcludeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, result)
}

// handleKeys 處理元素鍵列舉請求 (告警條件編輯器的可繫結目標)
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("config")
	cfg, ok := s.engine.GetConfig(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("找不到配置: %q", name))
		return
	}

	writeJSON(w, cfg.ElementKeys())
}

// handleHealth 處理 /health 請求
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

// handleReady 處理 /ready 請求
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if len(s.engine.ListConfigs()) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

// handleMetrics 處理 /metrics 請求 (Prometheus 文字格式)
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	fmt.Fprintf(w, "# HELP iotproto_uptime_seconds Uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE iotproto_uptime_seconds gauge\n")
	fmt.Fprintf(w, "iotproto_uptime_seconds %f\n\n", time.Since(s.engine.startTime).Seconds())

	fmt.Fprintf(w, "# HELP iotproto_configs_loaded Loaded device type configurations\n")
	fmt.Fprintf(w, "# TYPE iotproto_configs_loaded gauge\n")
	fmt.Fprintf(w, "iotproto_configs_loaded %d\n\n", len(s.engine.ListConfigs()))

	fmt.Fprintf(w, "# HELP iotproto_decode_total Total decode calls\n")
	fmt.Fprintf(w, "# TYPE iotproto_decode_total counter\n")
	fmt.Fprintf(w, "iotproto_decode_total %d\n\n", s.engine.decodeTotal.Load())

	fmt.Fprintf(w, "# HELP iotproto_decode_fallback_total Decodes that fell back to raw text\n")
	fmt.Fprintf(w, "# TYPE iotproto_decode_fallback_total counter\n")
	fmt.Fprintf(w, "iotproto_decode_fallback_total %d\n\n", s.engine.decodeFallback.Load())

	fmt.Fprintf(w, "# HELP iotproto_conflict_checks_total Register conflict checks\n")
	fmt.Fprintf(w, "# TYPE iotproto_conflict_checks_total counter\n")
	fmt.Fprintf(w, "iotproto_conflict_checks_total %d\n\n", s.engine.conflictChecks.Load())

	fmt.Fprintf(w, "# HELP iotproto_conflicts_found_total Register conflicts found\n")
	fmt.Fprintf(w, "# TYPE iotproto_conflicts_found_total counter\n")
	fmt.Fprintf(w, "iotproto_conflicts_found_total %d\n", s.engine.conflictsFound.Load())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
