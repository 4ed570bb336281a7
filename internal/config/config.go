package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"tgaccess"`
}

type TelegramConfig struct {
	BotToken          string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN" env-default:""`
	RequestTimeoutSec int    `yaml:"request_timeout_sec" env-default:"10"`
	AdminChatId       int64  `yaml:"admin_chat_id" env-default:"0"`
	Alerts            bool   `yaml:"alerts" env-default:"false"`
}

type AuthConfig struct {
	JwtSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:""`
}

type GateConfig struct {
	MaxActiveCodes int `yaml:"max_active_codes" env-default:"2"`
	CodeTtlMin     int `yaml:"code_ttl_min" env-default:"30"`
}

type Config struct {
	Listen   Listen         `yaml:"listen"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Telegram TelegramConfig `yaml:"telegram"`
	Auth     AuthConfig     `yaml:"auth"`
	Gate     GateConfig     `yaml:"gate"`
	Env      string         `yaml:"env" env-default:"local"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
