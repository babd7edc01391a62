package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Api     Api     `mapstructure:"api"`
		Mon     Mon     `mapstructure:"mon"`
		DB      DB      `mapstructure:"db"`
		Relay   Relay   `mapstructure:"relay"`
		Alert   Alert   `mapstructure:"alert"`
		Twilio  Twilio  `mapstructure:"twilio"`
		Discord Discord `mapstructure:"discord"`
		Nats    Nats    `mapstructure:"nats"`
		Log     Log     `mapstructure:"log"`
		Contact Contact `mapstructure:"contact"`
		WS      WS      `mapstructure:"ws"`
		Port    string  `mapstructure:"port"`
	}

	Api struct {
		ListenAddr    string `mapstructure:"listen_addr"`
		ProxyProtocol bool   `mapstructure:"proxy_protocol"`
		StaticDir     string `mapstructure:"static_dir"`
	}

	Mon struct {
		ListenAddr string `mapstructure:"listen_addr"`
	}

	DB struct {
		Url string `mapstructure:"url"`
	}

	Relay struct {
		PersistAttempts int           `mapstructure:"persist_attempts"`
		RetryDelay      time.Duration `mapstructure:"retry_delay"`
	}

	Alert struct {
		PublicUrl          string        `mapstructure:"public_url"`
		DefaultCountryCode string        `mapstructure:"default_country_code"`
		Workers            int           `mapstructure:"workers"`
		QueueDepth         int           `mapstructure:"queue_depth"`
		SendTimeout        time.Duration `mapstructure:"send_timeout"`
	}

	Twilio struct {
		AccountSid  string `mapstructure:"account_sid"`
		AuthToken   string `mapstructure:"auth_token"`
		PhoneNumber string `mapstructure:"phone_number"`
	}

	Discord struct {
		WebhookUrl string `mapstructure:"webhook_url"`
	}

	Nats struct {
		Url string `mapstructure:"url"`
	}

	Log struct {
		Level   string `mapstructure:"level"`
		Console bool   `mapstructure:"console"`
		File    string `mapstructure:"file"`
	}

	Contact struct {
		IdSalt string `mapstructure:"id_salt"`
	}

	WS struct {
		MaxBuffer int `mapstructure:"max_buffer"`
	}
)

// legacy unprefixed variables, checked when the prefixed one is unset
var fallback_env = map[string]string{
	"twilio.account_sid":  "TWILIO_ACCOUNT_SID",
	"twilio.auth_token":   "TWILIO_AUTH_TOKEN",
	"twilio.phone_number": "TWILIO_PHONE_NUMBER",
	"alert.public_url":    "PUBLIC_URL",
	"port":                "PORT",
	"db.url":              "DATABASE_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("api.listen_addr", "")
	v.SetDefault("api.proxy_protocol", false)
	v.SetDefault("api.static_dir", "public")
	v.SetDefault("mon.listen_addr", "")
	v.SetDefault("db.url", "")
	v.SetDefault("relay.persist_attempts", 3)
	v.SetDefault("relay.retry_delay", 200*time.Millisecond)
	v.SetDefault("alert.public_url", "http://localhost:3000")
	v.SetDefault("alert.default_country_code", "+91")
	v.SetDefault("alert.workers", 2)
	v.SetDefault("alert.queue_depth", 64)
	v.SetDefault("alert.send_timeout", 15*time.Second)
	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.phone_number", "")
	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", "")
	v.SetDefault("contact.id_salt", "locshare")
	v.SetDefault("ws.max_buffer", 64)
}

// Load reads .env, then the optional yaml file at path, then LOCSHARE_* variables.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LOCSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	for key, env := range fallback_env {
		if os.Getenv("LOCSHARE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))) != "" {
			continue
		}
		if val, ok := os.LookupEnv(env); ok && val != "" {
			v.Set(key, val)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	if c.Api.ListenAddr == "" {
		c.Api.ListenAddr = ":" + c.Port
	}
	return c, nil
}
