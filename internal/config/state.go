package config

import (
	"sync/atomic"
	"time"
)

// 原子存储当前生效的配置，供各业务读取
var current atomic.Value // *Config

func SetCurrent(c *Config) {
	current.Store(c)
}

func GetCurrent() *Config {
	v := current.Load()
	if v == nil {
		return nil
	}
	return v.(*Config)
}

// GetFeatureFlag 返回功能开关（默认 false）
func GetFeatureFlag(name string) bool {
	cfg := GetCurrent()
	if cfg == nil || cfg.FeatureFlags == nil {
		return false
	}
	return cfg.FeatureFlags[name]
}

// GetThreshold 返回业务阈值（支持默认值）
func GetThreshold(name string, def int64) int64 {
	cfg := GetCurrent()
	if cfg == nil || cfg.Thresholds == nil {
		return def
	}
	if v, ok := cfg.Thresholds[name]; ok {
		return v
	}
	return def
}

// 游戏参数默认值
const (
	DefaultRoundDurationSec     = 180
	DefaultSchedulerIntervalSec = 10
	DefaultOdds                 = 9.8
)

// RoundDuration 回合投注窗口时长
func RoundDuration() time.Duration {
	cfg := GetCurrent()
	if cfg == nil || cfg.Game.RoundDurationSec <= 0 {
		return DefaultRoundDurationSec * time.Second
	}
	return time.Duration(cfg.Game.RoundDurationSec) * time.Second
}

// SchedulerInterval 调度器轮询间隔
func SchedulerInterval() time.Duration {
	cfg := GetCurrent()
	if cfg == nil || cfg.Game.SchedulerIntervalSec <= 0 {
		return DefaultSchedulerIntervalSec * time.Second
	}
	return time.Duration(cfg.Game.SchedulerIntervalSec) * time.Second
}

// Odds 当前赔率（固定 9.8，保留配置入口）
func Odds() float64 {
	cfg := GetCurrent()
	if cfg == nil || cfg.Game.Odds <= 0 {
		return DefaultOdds
	}
	return cfg.Game.Odds
}

// MinBetAmount 单张注单最小投注额（字符串形式，decimal 解析）
func MinBetAmount() string {
	cfg := GetCurrent()
	if cfg == nil || cfg.Game.MinBetAmount == "" {
		return "0.01"
	}
	return cfg.Game.MinBetAmount
}

// MaxBetAmount 单张注单最大投注额
func MaxBetAmount() string {
	cfg := GetCurrent()
	if cfg == nil || cfg.Game.MaxBetAmount == "" {
		return "1000000"
	}
	return cfg.Game.MaxBetAmount
}
