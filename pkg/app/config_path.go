package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/wxagent/pkg/config"
)

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder ищет config.yaml.
//
// Порядок поиска:
// 1. Флаг --config (если указан)
// 2. Текущая директория
// 3. Директория бинарника
// 4. Родительские директории (для запуска из cmd/<util>/)
//
// Пустая строка - файл не найден, конфигурация собирается из окружения.
type DefaultConfigPathFinder struct {
	// ConfigFlag - значение флага --config, если указан
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	// 1. Флаг имеет приоритет, даже если файла нет
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}

	candidates := []string{"config.yaml"}

	// 2. Директория бинарника
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "config.yaml"))
	}

	// 3. Родительские директории
	candidates = append(candidates,
		filepath.Join("..", "config.yaml"),
		filepath.Join("..", "..", "config.yaml"))

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return resolveAbsPath(p)
		}
	}
	return ""
}

// InitializeConfig загружает конфигурацию.
//
// Явно указанный, но отсутствующий файл - ошибка. Без флага и без
// найденного файла конфигурация собирается из переменных окружения.
// Возвращает путь к использованному файлу (пусто для окружения).
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()

	if f, ok := finder.(*DefaultConfigPathFinder); ok && f.ConfigFlag != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
		}
		return cfg, cfgPath, nil
	}

	cfg, err := config.LoadOrEnv(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfgPath != "" {
		if _, statErr := os.Stat(cfgPath); statErr != nil {
			cfgPath = ""
		}
	}
	return cfg, cfgPath, nil
}

func resolveAbsPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
