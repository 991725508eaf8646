package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the agent configuration, read from YAML with environment
// variable overrides
type Config struct {
	Env string `yaml:"env" env:"APP_ENV" env-default:"local"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
	} `yaml:"log"`

	App struct {
		Version     string `yaml:"version" env:"APP_VERSION" env-default:"0.0.0"`
		BuildNumber string `yaml:"build_number" env:"APP_BUILD_NUMBER" env-default:"0"`
		Platform    string `yaml:"platform" env:"APP_PLATFORM" env-default:"ios"`
	} `yaml:"app"`

	Device struct {
		ID string `yaml:"id" env:"DEVICE_ID"`
	} `yaml:"device"`

	Storage struct {
		JournalPath string `yaml:"journal_path" env:"JOURNAL_PATH" env-default:"data/telemetry.db"`
		SpoolDir    string `yaml:"spool_dir" env:"SPOOL_DIR" env-default:"data/spool"`
	} `yaml:"storage"`

	Backend struct {
		BaseURL string `yaml:"base_url" env:"BACKEND_BASE_URL" env-default:"http://localhost:3000"`
		APIKey  string `yaml:"api_key" env:"BACKEND_API_KEY"`
		Timeout int    `yaml:"timeout" env:"BACKEND_TIMEOUT" env-default:"30"` // seconds
	} `yaml:"backend"`

	Telemetry struct {
		AnalyticsCapacity int `yaml:"analytics_capacity" env:"ANALYTICS_CAPACITY" env-default:"1000"`
		ReportCapacity    int `yaml:"report_capacity" env:"REPORT_CAPACITY" env-default:"1000"`
		BatchSize         int `yaml:"batch_size" env:"BATCH_SIZE" env-default:"50"`
		FlushInterval     int `yaml:"flush_interval" env:"FLUSH_INTERVAL" env-default:"300"` // seconds
		SessionGap        int `yaml:"session_gap" env:"SESSION_GAP" env-default:"1800"`      // seconds
		FeedbackRetained  int `yaml:"feedback_retained" env:"FEEDBACK_RETAINED" env-default:"25"`
		CrashRetained     int `yaml:"crash_retained" env:"CRASH_RETAINED" env-default:"10"`
		ActionTrailSize   int `yaml:"action_trail_size" env:"ACTION_TRAIL_SIZE" env-default:"20"`
	} `yaml:"telemetry"`

	Server struct {
		Enabled bool `yaml:"enabled" env:"SERVER_ENABLED" env-default:"true"`
		Port    int  `yaml:"port" env:"SERVER_PORT" env-default:"8484"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the given path
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return &cfg, nil
}
