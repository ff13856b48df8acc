package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// SyncConfig holds order synchronization configuration
type SyncConfig struct {
	// ============ BASIC SETTINGS ============
	Enabled bool `json:"enabled"`

	// ============ RECOVERY ============
	MaxRetries int `json:"max_retries"` // recovery attempts per order
	RetryDelay int `json:"retry_delay"` // seconds between recovery attempts

	// ============ CONFLICTS ============
	TotalThreshold float64 `json:"total_threshold"` // currency units before a total difference goes to manual review

	// ============ BATCH JOBS ============
	BatchSize    int `json:"batch_size"`
	BatchDelay   int `json:"batch_delay"`   // seconds between batch ticks
	JobRetention int `json:"job_retention"` // completed jobs kept

	// ============ HISTORY ============
	HistoryRetentionDays int `json:"history_retention_days"`

	// ============ RECOVERY SWEEP ============
	AutoRecoveryEnabled  bool `json:"auto_recovery_enabled"`
	AutoRecoveryInterval int  `json:"auto_recovery_interval"` // seconds
}

// LoadSyncConfig loads sync configuration from environment or file
func LoadSyncConfig() *SyncConfig {
	// Try to load from file first
	if configPath := os.Getenv("SYNC_CONFIG_PATH"); configPath != "" {
		if cfg, err := loadSyncConfigFromFile(configPath); err == nil {
			return cfg
		}
	}

	// Otherwise use defaults
	return getDefaultSyncConfig()
}

// loadSyncConfigFromFile loads sync config from JSON file
func loadSyncConfigFromFile(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg SyncConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// getDefaultSyncConfig returns default sync configuration
func getDefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Enabled: getBoolEnv("SYNC_ENABLED", true),

		MaxRetries: getIntEnv("SYNC_MAX_RETRIES", 3),
		RetryDelay: getIntEnv("SYNC_RETRY_DELAY", 300),

		TotalThreshold: getFloatEnv("SYNC_TOTAL_THRESHOLD", 1.00),

		BatchSize:    getIntEnv("SYNC_BATCH_SIZE", 50),
		BatchDelay:   getIntEnv("SYNC_BATCH_DELAY", 30),
		JobRetention: getIntEnv("SYNC_JOB_RETENTION", 10),

		HistoryRetentionDays: getIntEnv("SYNC_HISTORY_RETENTION_DAYS", 90),

		AutoRecoveryEnabled:  getBoolEnv("SYNC_AUTO_RECOVERY", true),
		AutoRecoveryInterval: getIntEnv("SYNC_AUTO_RECOVERY_INTERVAL", 600),
	}
}

// Helper functions for environment variables

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
