package config

import (
	"os"
	"path"

	"gopkg.in/yaml.v2"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	JwtSecret string `yaml:"secret" json:"secret"`
}

type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WhatsappConfig drives the tenant session manager and the reminder job.
type WhatsappConfig struct {
	// InitTimeoutSec bounds the pairing/readiness wait in GetOrCreate.
	InitTimeoutSec int `yaml:"init_timeout_sec" json:"init_timeout_sec"`
	// ReminderCron is the daily trigger of the reminder dispatcher.
	ReminderCron string `yaml:"reminder_cron" json:"reminder_cron"`
	// ReminderWorkers caps concurrent per-record sends during a batch run.
	ReminderWorkers int `yaml:"reminder_workers" json:"reminder_workers"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig      `yaml:"system" json:"system"`
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DBConfig       `yaml:"database" json:"database"`
	Whatsapp WhatsappConfig `yaml:"whatsapp" json:"whatsapp"`
	Logger   LogConfig      `yaml:"logger" json:"logger"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "motomind",
		Location: "Asia/Karachi",
		Workdir:  "/var/motomind",
		Debug:    true,
	},
	Web: WebConfig{
		Host:      "0.0.0.0",
		Port:      1820,
		JwtSecret: "9b6de5cc-motomind-0000-f96c0c536a75",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "motomind",
		User:     "postgres",
		Passwd:   "",
		MaxConn:  100,
		IdleConn: 10,
	},
	Whatsapp: WhatsappConfig{
		InitTimeoutSec:  10,
		ReminderCron:    "0 9 * * *",
		ReminderWorkers: 8,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/motomind/motomind.log",
	},
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

// GetSessionDir is the root of per-workshop local session directories.
func (c *AppConfig) GetSessionDir() string {
	return path.Join(c.System.Workdir, "sessions")
}

// GetArchiveFile is the location of the bbolt archive store.
func (c *AppConfig) GetArchiveFile() string {
	return path.Join(c.System.Workdir, "data", "session_archives.db")
}

func setEnvValue(name string, f func(v string)) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		f(evalue)
	}
}

// LoadConfig reads the yaml configuration file, falling back to defaults,
// and applies MOTOMIND_* environment overrides.
func LoadConfig(cfile string) *AppConfig {
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	setEnvValue("MOTOMIND_SYSTEM_WORKDIR", func(v string) { cfg.System.Workdir = v })
	setEnvValue("MOTOMIND_WEB_SECRET", func(v string) { cfg.Web.JwtSecret = v })
	setEnvValue("MOTOMIND_DB_HOST", func(v string) { cfg.Database.Host = v })
	setEnvValue("MOTOMIND_DB_NAME", func(v string) { cfg.Database.Name = v })
	setEnvValue("MOTOMIND_DB_USER", func(v string) { cfg.Database.User = v })
	setEnvValue("MOTOMIND_DB_PWD", func(v string) { cfg.Database.Passwd = v })

	if cfg.Whatsapp.InitTimeoutSec <= 0 {
		cfg.Whatsapp.InitTimeoutSec = DefaultAppConfig.Whatsapp.InitTimeoutSec
	}
	if cfg.Whatsapp.ReminderCron == "" {
		cfg.Whatsapp.ReminderCron = DefaultAppConfig.Whatsapp.ReminderCron
	}
	if cfg.Whatsapp.ReminderWorkers <= 0 {
		cfg.Whatsapp.ReminderWorkers = DefaultAppConfig.Whatsapp.ReminderWorkers
	}
	return cfg
}
