package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"doggos/pkg/core"
	"doggos/pkg/physics"
	"doggos/pkg/tick"
)

var ErrInvalid = errors.New("配置无效")

// Config 网络同步的全部可调参数，服务器与客户端应使用同一份
type Config struct {
	Tick     TickConfig          `json:"tick"`
	Movement core.MovementParams `json:"movement"`
	Body     physics.BodyConfig  `json:"body"`
	Netcode  NetcodeConfig       `json:"netcode"`
}

// TickConfig 时钟参数（毫秒）
type TickConfig struct {
	NominalMs float64 `json:"nominalMs"`
	MinMs     float64 `json:"minMs"`
	MaxMs     float64 `json:"maxMs"`
	StepMs    float64 `json:"stepMs"`
	RecoverMs float64 `json:"recoverMs"`
}

// NetcodeConfig 预测与对账参数
type NetcodeConfig struct {
	InputWindow     int     `json:"inputWindow"`     // 每个 tick 重发最近的输入个数
	ReplayCapacity  int     `json:"replayCapacity"`  // 拥有者重放缓冲上限
	QueueCapacity   int     `json:"queueCapacity"`   // 权威端待处理输入队列上限
	PredictionRatio float64 `json:"predictionRatio"` // 旁观预测插值比例，0 关闭
	SpectatorRateHz float64 `json:"spectatorRateHz"` // 旁观广播频率上限
	MaxPlayers      int     `json:"maxPlayers"`
}

// Default 默认配置
func Default() Config {
	return Config{
		Tick: TickConfig{
			NominalMs: 20,
			MinMs:     13,
			MaxMs:     27,
			StepMs:    0.2,
			RecoverMs: 2.5,
		},
		Movement: core.DefaultMovementParams(),
		Body:     physics.DefaultBodyConfig(),
		Netcode: NetcodeConfig{
			InputWindow:     5,
			ReplayCapacity:  128,
			QueueCapacity:   16,
			PredictionRatio: 0.9,
			SpectatorRateHz: 50,
			MaxPlayers:      8,
		},
	}
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Clock 转换为时钟配置
func (t TickConfig) Clock() tick.Config {
	return tick.Config{
		Nominal:     millis(t.NominalMs),
		MinInterval: millis(t.MinMs),
		MaxInterval: millis(t.MaxMs),
		StepSize:    millis(t.StepMs),
		RecoverRate: millis(t.RecoverMs),
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	switch {
	case c.Tick.NominalMs <= 0:
		return fmt.Errorf("%w: tick.nominalMs 必须大于 0", ErrInvalid)
	case c.Tick.MinMs <= 0 || c.Tick.MinMs > c.Tick.MaxMs:
		return fmt.Errorf("%w: tick 范围 [%v, %v] 不合法", ErrInvalid, c.Tick.MinMs, c.Tick.MaxMs)
	case c.Tick.NominalMs < c.Tick.MinMs || c.Tick.NominalMs > c.Tick.MaxMs:
		return fmt.Errorf("%w: tick.nominalMs 不在 [minMs, maxMs] 内", ErrInvalid)
	case c.Tick.StepMs < 0 || c.Tick.RecoverMs < 0:
		return fmt.Errorf("%w: tick.stepMs/recoverMs 不能为负", ErrInvalid)
	case c.Netcode.InputWindow <= 0:
		return fmt.Errorf("%w: netcode.inputWindow 必须大于 0", ErrInvalid)
	case c.Netcode.ReplayCapacity < c.Netcode.InputWindow:
		return fmt.Errorf("%w: netcode.replayCapacity 不能小于 inputWindow", ErrInvalid)
	case c.Netcode.QueueCapacity <= 0:
		return fmt.Errorf("%w: netcode.queueCapacity 必须大于 0", ErrInvalid)
	case c.Netcode.PredictionRatio < 0 || c.Netcode.PredictionRatio > 1:
		return fmt.Errorf("%w: netcode.predictionRatio 必须在 [0, 1] 内", ErrInvalid)
	case c.Netcode.SpectatorRateHz <= 0:
		return fmt.Errorf("%w: netcode.spectatorRateHz 必须大于 0", ErrInvalid)
	case c.Netcode.MaxPlayers <= 0:
		return fmt.Errorf("%w: netcode.maxPlayers 必须大于 0", ErrInvalid)
	}
	return nil
}

// Load 从 fs.FS 读取 JSON 配置，未出现的字段保留默认值
func Load(fsys fs.FS, name string) (Config, error) {
	cfg := Default()

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return cfg, fmt.Errorf("读取 %s 失败: %w", name, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析 %s 失败: %w", name, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile 读取磁盘上的配置文件，path 为空时返回默认配置
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}
