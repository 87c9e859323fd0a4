package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config настройки бота и конвейера анализа
type Config struct {
	TelegramToken string `yaml:"-"`

	Model struct {
		Path      string `yaml:"path"`
		InputOp   string `yaml:"inputOp"`
		OutputOp  string `yaml:"outputOp"`
		FeatureOp string `yaml:"featureOp"`
	} `yaml:"model"`

	Pipeline struct {
		InputSize             int     `yaml:"inputSize"`
		VisualizationDir      string  `yaml:"visualizationDir"`
		GenerateVisualization bool    `yaml:"generateVisualization"`
		MinQualityScore       float64 `yaml:"minQualityScore"` // 0 отключает проверку
	} `yaml:"pipeline"`

	Cache struct {
		RedisURL string        `yaml:"redisURL"` // пусто: кэш в памяти
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text или json
	} `yaml:"log"`
}

// DefaultConfig настройки по умолчанию
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Model.Path = "models/mammo_classifier.pb"
	cfg.Model.InputOp = "input_1"
	cfg.Model.OutputOp = "dense_1/Sigmoid"
	cfg.Model.FeatureOp = "efficientnetv2-s/top_activation/mul"

	cfg.Pipeline.InputSize = 224
	cfg.Pipeline.VisualizationDir = "outputs/visualizations"
	cfg.Pipeline.GenerateVisualization = true

	cfg.Cache.TTL = time.Hour

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	return cfg
}

// Load читает .env, затем YAML из PIPELINE_CONFIG (если задан), затем
// переменные окружения. Каждый следующий источник перекрывает предыдущий.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := os.Getenv("PIPELINE_CONFIG"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile читает YAML поверх значений по умолчанию. Отсутствующий файл
// не ошибка.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.TelegramToken, "TELEGRAM_TOKEN")
	setString(&c.Model.Path, "MODEL_PATH")
	setString(&c.Model.InputOp, "MODEL_INPUT_OP")
	setString(&c.Model.OutputOp, "MODEL_OUTPUT_OP")
	setString(&c.Model.FeatureOp, "MODEL_FEATURE_OP")
	setString(&c.Pipeline.VisualizationDir, "VISUALIZATION_DIR")
	setString(&c.Cache.RedisURL, "REDIS_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v, ok := lookup("INPUT_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INPUT_SIZE: %w", err)
		}
		c.Pipeline.InputSize = n
	}
	if v, ok := lookup("GENERATE_VISUALIZATION"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GENERATE_VISUALIZATION: %w", err)
		}
		c.Pipeline.GenerateVisualization = b
	}
	if v, ok := lookup("MIN_QUALITY_SCORE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MIN_QUALITY_SCORE: %w", err)
		}
		c.Pipeline.MinQualityScore = f
	}
	if v, ok := lookup("CACHE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.Cache.TTL = d
	}
	return nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	if c.Pipeline.InputSize < 32 {
		return fmt.Errorf("input size %d is too small", c.Pipeline.InputSize)
	}
	if c.Pipeline.MinQualityScore < 0 || c.Pipeline.MinQualityScore > 100 {
		return fmt.Errorf("min quality score %.1f is outside [0,100]", c.Pipeline.MinQualityScore)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// SetupLogging настраивает logrus по конфигурации
func (c *Config) SetupLogging() {
	if level, err := log.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(level)
	}
	if strings.EqualFold(c.Log.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
