package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Directory sources.
const (
	SourceSheets   = "sheets"
	SourcePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Mail      MailConfig      `mapstructure:"mail"`
	Twilio    TwilioConfig    `mapstructure:"twilio"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Log       LogConfig       `mapstructure:"log"`
	OutputDir string          `mapstructure:"output_dir"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type MailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TwilioConfig struct {
	AccountSID        string `mapstructure:"account_sid"`
	AuthToken         string `mapstructure:"auth_token"`
	ValidateSignature bool   `mapstructure:"validate_signature"`
	WebhookURL        string `mapstructure:"webhook_url"`
}

type SheetsConfig struct {
	CredentialsPath string        `mapstructure:"credentials_path"`
	Name            string        `mapstructure:"name"`
	SpreadsheetID   string        `mapstructure:"spreadsheet_id"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type DirectoryConfig struct {
	Source string `mapstructure:"source"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	Timezone   string `mapstructure:"timezone"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	AlertChatID int64  `mapstructure:"alert_chat_id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// legacyEnv maps config keys to the environment names the service has always read.
var legacyEnv = map[string]string{
	"llm.api_key":             "PERPLEXITY_API_KEY",
	"twilio.account_sid":      "TWILIO_ACCOUNT_SID",
	"twilio.auth_token":       "TWILIO_AUTH_TOKEN",
	"mail.username":           "EMAIL_USER",
	"mail.password":           "EMAIL_PASSWORD",
	"sheets.credentials_path": "GOOGLE_CREDS_PATH",
	"sheets.name":             "SHEET_NAME",
	"server.port":             "PORT",
	"telegram.token":          "TELEGRAM_TOKEN",
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("llm.base_url", "https://api.perplexity.ai")
	v.SetDefault("llm.model", "sonar")
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.timeout", 30*time.Second)
	v.SetDefault("mail.from", "")
	v.SetDefault("twilio.validate_signature", false)
	v.SetDefault("twilio.webhook_url", "")
	v.SetDefault("sheets.credentials_path", "./credentials.json")
	v.SetDefault("sheets.name", "Daily Brief Users")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.timeout", 30*time.Second)
	v.SetDefault("directory.source", SourceSheets)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("schedule.cron", "0 14 * * *")
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.run_on_start", false)
	v.SetDefault("telegram.alert_chat_id", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("output_dir", ".")
}

// LoadConfig reads defaults, then the optional YAML file at path, then the
// environment (including a .env file if present). Later sources win.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if config.Mail.From == "" {
		config.Mail.From = config.Mail.Username
	}

	return &config, nil
}

// Validate reports every missing required setting.
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key (PERPLEXITY_API_KEY) is required"))
	}
	if c.Mail.Username == "" || c.Mail.Password == "" {
		errs = append(errs, errors.New("mail.username and mail.password (EMAIL_USER, EMAIL_PASSWORD) are required"))
	}

	switch c.Directory.Source {
	case SourceSheets:
		if c.Sheets.Name == "" && c.Sheets.SpreadsheetID == "" {
			errs = append(errs, errors.New("sheets.name or sheets.spreadsheet_id is required"))
		}
	case SourcePostgres:
		if c.Database.DBName == "" {
			errs = append(errs, errors.New("database.dbname or DATABASE_URL is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown directory.source %q", c.Directory.Source))
	}

	if c.Twilio.ValidateSignature && (c.Twilio.AuthToken == "" || c.Twilio.WebhookURL == "") {
		errs = append(errs, errors.New("twilio.auth_token and twilio.webhook_url are required for signature validation"))
	}
	if c.Telegram.Token != "" && c.Telegram.AlertChatID == 0 {
		errs = append(errs, errors.New("telegram.alert_chat_id is required when telegram.token is set"))
	}

	return errors.Join(errs...)
}
