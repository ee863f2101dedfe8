package config

import (
	"os"
	"sync"
	"time"
)

var (
	storeOnce   sync.Once
	storeConfig *StoreConfig
)

// StoreConfig 远端内容存储的连接配置
type StoreConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	Scope       string
}

func GetStoreConfig() *StoreConfig {
	storeOnce.Do(func() {
		loadEnv()

		storeConfig = &StoreConfig{
			BaseURL:     getEnv("BOX_API_BASE_URL", "https://api.box.com"),
			AccessToken: os.Getenv("BOX_ACCESS_TOKEN"),
			Timeout:     getEnvDuration("BOX_API_TIMEOUT", 60*time.Second),
			Scope:       getEnv("METADATA_SCOPE", "enterprise"),
		}
	})
	return storeConfig
}
