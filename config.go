package main

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"hipster-exchange/hipster"
)

// Константы и глобальные переменные сервиса
const (
	Version = "1.0.0"
)

var (
	// Глобальный логгер
	logger = logrus.New()

	// Глобальная конфигурация
	appConfig = defaultConfig()

	// Источник hipster-текста (удалённый или фейковый)
	textSource hipster.Source

	// HTTP-клиент для обращений к внешним API
	upstreamClient = &http.Client{Timeout: 10 * time.Second}
)

type Config struct {
	Port             string   `yaml:"port"`
	LogLevel         string   `yaml:"log_level"`
	StaticDir        string   `yaml:"static_dir"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	TelegramBotToken string   `yaml:"telegram_bot_token"`
	// Таймаут одного запроса к внешнему API
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	Hipster       HipsterConfig       `yaml:"hipster"`
	StackExchange StackExchangeConfig `yaml:"stackexchange"`
}

type HipsterConfig struct {
	BaseURL string `yaml:"base_url"`
	// Отдавать фиксированный текст без сетевых запросов
	Fake bool `yaml:"fake"`
}

type StackExchangeConfig struct {
	BaseURL     string `yaml:"base_url"`
	Version     string `yaml:"version"`
	Key         string `yaml:"key"`
	DefaultSite string `yaml:"default_site"`
}

func defaultConfig() *Config {
	return &Config{
		Port:      "8888",
		LogLevel:  "debug",
		StaticDir: "static",
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost",
		},
		UpstreamTimeout: 5 * time.Second,
		Hipster: HipsterConfig{
			BaseURL: "http://hipsterjesus.com",
		},
		StackExchange: StackExchangeConfig{
			BaseURL:     "https://api.stackexchange.com",
			Version:     "2.3",
			DefaultSite: "stackoverflow",
		},
	}
}

// LoadConfig читает YAML поверх значений по умолчанию.
// Отсутствующий файл не считается ошибкой.
func LoadConfig(filename string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// setup применяет конфигурацию к глобальному состоянию сервиса.
func setup(config *Config) error {
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if config.UpstreamTimeout <= 0 {
		config.UpstreamTimeout = defaultConfig().UpstreamTimeout
	}
	appConfig = config
	upstreamClient = &http.Client{Timeout: 2 * config.UpstreamTimeout}

	if config.Hipster.Fake {
		logger.Warn("hipster: используется фейковый источник, сетевые запросы отключены")
		textSource = hipster.FakeSource{}
	} else {
		textSource = hipster.NewRemoteSource(
			hipster.WithBaseURL(config.Hipster.BaseURL),
			hipster.WithHTTPClient(upstreamClient),
			hipster.WithLogger(logger),
		)
	}
	return nil
}
