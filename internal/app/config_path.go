package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/mastication/pkg/config"
)

// DefaultConfigPath — путь конфигурации по умолчанию (относительно рабочей директории).
const DefaultConfigPath = "config/config.yaml"

// FindConfigPath находит путь к конфигурации.
//
// Порядок поиска:
//  1. Флаг -config (если указан)
//  2. ./config/config.yaml
//  3. ./config.yaml
//  4. config/config.yaml и config.yaml рядом с бинарником
//
// Если ничего не найдено, возвращается DefaultConfigPath: config.Load
// сообщит об отсутствии файла.
func FindConfigPath(flagValue string) string {
	if flagValue != "" {
		return resolveAbsPath(flagValue)
	}

	candidates := []string{DefaultConfigPath, "config.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return resolveAbsPath(p)
		}
	}

	if execPath, err := os.Executable(); err == nil {
		binDir := filepath.Dir(execPath)
		for _, p := range candidates {
			full := filepath.Join(binDir, p)
			if _, err := os.Stat(full); err == nil {
				return full
			}
		}
	}

	return DefaultConfigPath
}

func resolveAbsPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// LoadConfig находит и загружает конфигурацию. Возвращает использованный путь.
func LoadConfig(flagValue string) (*config.AppConfig, string, error) {
	cfgPath := FindConfigPath(flagValue)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
