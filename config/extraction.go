package config

import (
	"sync"
	"time"
)

var (
	extractionOnce   sync.Once
	extractionConfig *ExtractionConfig
)

// ExtractionConfig AI 提取服务的配置
type ExtractionConfig struct {
	LongTextModel  string
	BasicTextModel string
	TemplateFile   string
	MaxConcurrent  int
	FileTimeout    time.Duration
}

func GetExtractionConfig() *ExtractionConfig {
	extractionOnce.Do(func() {
		loadEnv()

		extractionConfig = &ExtractionConfig{
			LongTextModel:  getEnv("AI_LONG_TEXT_MODEL", "google__gemini_2_0_flash_001"),
			BasicTextModel: getEnv("AI_BASIC_TEXT_MODEL", "google__gemini_2_0_flash_lite_preview"),
			TemplateFile:   getEnv("TEMPLATE_FILE", ""),
			MaxConcurrent:  getEnvInt("MAX_CONCURRENT_FILES", 10),
			FileTimeout:    getEnvDuration("FILE_TIMEOUT", 5*time.Minute),
		}
	})
	return extractionConfig
}
