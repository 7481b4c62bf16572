package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	API           APIConfig      `toml:"api"`
	AI            AIConfig       `toml:"ai"`
	Schedule      ScheduleConfig `toml:"schedule"`
	Notifications NotifyConfig   `toml:"notifications"`
	Calendar      CalendarConfig `toml:"calendar"`
}

type APIConfig struct {
	BaseURL string `toml:"base_url"`
}

// AIConfig selects the suggestion engine. The choice is read once at
// startup; a running session never switches engines mid-flight.
type AIConfig struct {
	Engine      string `toml:"engine"` // "mock", "backend" or "openai"
	OpenAIKey   string `toml:"openai_api_key"`
	OpenAIModel string `toml:"openai_model"`
	MockSeed    int64  `toml:"mock_seed"`
}

type ScheduleConfig struct {
	WorkStart           string `toml:"work_start"`
	WorkEnd             string `toml:"work_end"`
	WorkDays            []int  `toml:"work_days"`
	ReminderIntervalMin int    `toml:"reminder_interval_minutes"`
	ReminderLeadMin     int    `toml:"reminder_lead_minutes"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type CalendarConfig struct {
	Enabled bool   `toml:"enabled"`
	Source  string `toml:"source"` // ICS URL or file path
}

func DefaultConfig() Config {
	return Config{
		AI: AIConfig{
			Engine:      "backend",
			OpenAIModel: "gpt-4o-mini",
			MockSeed:    1,
		},
		Schedule: ScheduleConfig{
			WorkStart:           "09:00",
			WorkEnd:             "17:00",
			WorkDays:            []int{1, 2, 3, 4, 5},
			ReminderIntervalMin: 15,
			ReminderLeadMin:     10,
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
		Calendar: CalendarConfig{
			Enabled: false,
			Source:  "",
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "taskie"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TASKIE_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("TASKIE_AI_ENGINE"); v != "" {
		cfg.AI.Engine = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIKey = v
	}
	if v := os.Getenv("TASKIE_CALENDAR_SOURCE"); v != "" {
		cfg.Calendar.Source = v
		cfg.Calendar.Enabled = true
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// Validate rejects engine names the CLI does not know, so the mock/real
// decision is made exactly once when the process starts.
func (c *Config) Validate() error {
	switch c.AI.Engine {
	case "mock", "backend", "openai":
	default:
		return fmt.Errorf("unknown AI engine %q (expected mock, backend or openai)", c.AI.Engine)
	}
	if c.AI.Engine == "openai" && c.AI.OpenAIKey == "" {
		return fmt.Errorf("openai engine selected but no API key configured; set openai_api_key or OPENAI_API_KEY")
	}
	return nil
}
