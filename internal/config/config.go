package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	Telegram struct {
		ApiKey  string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
		AdminId int64  `yaml:"admin_id" env:"TELEGRAM_ADMIN_ID" env-default:"0"`
		BotName string `yaml:"bot_name" env-default:"FacilityBot"`
		Enabled bool   `yaml:"enabled" env-default:"false"`
	} `yaml:"telegram"`
	OpenAI struct {
		ApiKey string `yaml:"api_key" env:"OPENAI_API_KEY" env-default:""`
		Model  string `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o"`
	} `yaml:"openai"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
		User     string `yaml:"user" env:"MONGO_USER" env-default:""`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
		Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"facility"`
	} `yaml:"mongo"`
	SQLite struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		Path    string `yaml:"path" env:"SQLITE_PATH" env-default:"facilitybot.db"`
	} `yaml:"sqlite"`
	Priority struct {
		Enabled        bool          `yaml:"enabled" env-default:"false"`
		BaseURL        string        `yaml:"base_url" env:"PRIORITY_URL" env-default:""`
		User           string        `yaml:"user" env:"PRIORITY_USERNAME" env-default:""`
		Password       string        `yaml:"password" env:"PRIORITY_PASSWORD" env-default:""`
		Timeout        time.Duration `yaml:"timeout" env-default:"30s"`
		PushOnComplete bool          `yaml:"push_on_complete" env:"PRIORITY_PUSH_ON_COMPLETE" env-default:"false"`
		Technician     string        `yaml:"technician" env-default:""`
	} `yaml:"priority"`
	WhatsApp struct {
		Enabled       bool   `yaml:"enabled" env-default:"false"`
		AccessToken   string `yaml:"access_token" env:"WHATSAPP_ACCESS_TOKEN" env-default:""`
		VerifyToken   string `yaml:"verify_token" env:"WHATSAPP_VERIFY_TOKEN" env-default:""`
		AppSecret     string `yaml:"app_secret" env:"WHATSAPP_APP_SECRET" env-default:""`
		PhoneNumberID string `yaml:"phone_number_id" env:"WHATSAPP_PHONE_NUMBER_ID" env-default:""`
	} `yaml:"whatsapp"`
	Bot struct {
		ScriptID       string        `yaml:"script_id" env-default:"maintenance-troubleshoot"`
		SessionTTL     time.Duration `yaml:"session_ttl" env-default:"30m"`
		ScriptCacheTTL time.Duration `yaml:"script_cache_ttl" env-default:"5m"`
		MaxAutoSteps   int           `yaml:"max_auto_steps" env-default:"10"`
		SeedPath       string        `yaml:"seed_path" env-default:""`
	} `yaml:"bot"`
	Sheets struct {
		Enabled         bool   `yaml:"enabled" env-default:"false"`
		CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS" env-default:""`
		SpreadsheetID   string `yaml:"spreadsheet_id" env-default:""`
		SheetName       string `yaml:"sheet_name" env-default:"calls"`
	} `yaml:"sheets"`
	Tracing struct {
		Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`
		ServiceName string `yaml:"service_name" env-default:"facilitybot"`
	} `yaml:"tracing"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9100"`
		ApiKey string `yaml:"key" env:"API_KEY" env-default:""`
	} `yaml:"listen"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance, err = Load(path)
		if err != nil {
			log.Fatal(err)
		}
	})
	return instance
}

// Load reads the yaml file at path; environment variables override it.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("%s; %s", err, desc)
	}
	return conf, nil
}
