package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string `yaml:"env" env-default:"local"`
	Telegram struct {
		ApiKey  string `yaml:"api_key" env-default:""`
		AdminId int64  `yaml:"admin_id" env-default:"0"`
		BotName string `yaml:"bot_name" env-default:"TradeGateBot"`
		Enabled bool   `yaml:"enabled" env-default:"false"`
	} `yaml:"telegram"`
	OpenAI struct {
		ApiKey    string `yaml:"api_key" env-default:""`
		Model     string `yaml:"model" env-default:"gpt-4o"`
		MaxTurns  int    `yaml:"max_turns" env-default:"10"`
		AskSec    int    `yaml:"ask_timeout_sec" env-default:"60"`
		ToolSec   int    `yaml:"tool_timeout_sec" env-default:"15"`
		SystemMsg string `yaml:"system_msg" env-default:""`
	} `yaml:"openai"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env-default:"pass"`
		Database string `yaml:"database" env-default:""`
	} `yaml:"mongo"`
	WhatsApp struct {
		Enabled       bool   `yaml:"enabled" env-default:"false"`
		AccessToken   string `yaml:"access_token" env-default:""`
		VerifyToken   string `yaml:"verify_token" env-default:""`
		AppSecret     string `yaml:"app_secret" env-default:""`
		PhoneNumberID string `yaml:"phone_number_id" env-default:""`
	} `yaml:"whatsapp"`
	SMS struct {
		Enabled    bool   `yaml:"enabled" env-default:"false"`
		AccountSID string `yaml:"account_sid" env-default:""`
		AuthToken  string `yaml:"auth_token" env-default:""`
		FromNumber string `yaml:"from_number" env-default:""`
	} `yaml:"sms"`
	Email struct {
		Enabled         bool   `yaml:"enabled" env-default:"false"`
		Address         string `yaml:"address" env-default:""`
		CredentialsFile string `yaml:"credentials_file" env-default:""`
		TokenFile       string `yaml:"token_file" env-default:""`
		PollSec         int    `yaml:"poll_sec" env-default:"60"`
	} `yaml:"email"`
	Payments struct {
		WebhookSecret string `yaml:"webhook_secret" env-default:""`
	} `yaml:"payments"`
	Records struct {
		BaseURL string `yaml:"base_url" env-default:""`
		ApiKey  string `yaml:"api_key" env-default:""`
	} `yaml:"records"`
	Gateway struct {
		IdleCloseHours  int   `yaml:"idle_close_hours" env-default:"24"`
		OutboundPollSec int   `yaml:"outbound_poll_sec" env-default:"5"`
		MaxSendAttempts int   `yaml:"max_send_attempts" env-default:"5"`
		RetryBackoffSec int   `yaml:"retry_backoff_sec" env-default:"30"`
		ChaseOffsets    []int `yaml:"chase_offsets" env-default:"3,7,14,30"`
		ChaseHourUTC    int   `yaml:"chase_hour_utc" env-default:"9"`
		CertHorizonDays int   `yaml:"cert_horizon_days" env-default:"90"`
	} `yaml:"gateway"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9200"`
		ApiKey string `yaml:"key" env-default:""`
	} `yaml:"listen"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("%s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
