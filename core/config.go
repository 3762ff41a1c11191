package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr          string // empty disables login rate limiting
		Password      string
		DB            int
		LoginAttempts int
		LoginWindow   time.Duration
	}

	BrokerConfig struct {
		URL   string // empty publishes domain events to the logs only
		Queue string
	}

	Config struct {
		Env      string // DEV (local; default), TEST, QA, PROD
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		SendgridApiKey            string
		RollbarToken              string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Broker   BrokerConfig
	}
)

func (dbConf DatabaseConfig) Address() string {
	return net.JoinHostPort(dbConf.Host, dbConf.Port)
}

// NewConfig reads the configuration from the environment (optionally from `config/.env.<env>`).
// Env vars are prefixed with the current env: DEV_SECRET_KEY, PROD_DATABASE_HOST...
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("test_mode", env == "TEST")
	v.SetDefault("app_name", "Practicas")
	v.SetDefault("secret_key", "x7!k2m#p9q$w4e%r6t^y8u&i0o*p-a+s=d_f~g|h")
	v.SetDefault("frontend_base_url", "http://localhost:5173")
	v.SetDefault("default_from_email", "noreply@practicas.local")
	v.SetDefault("default_from_name", "Prácticas")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("jwt_expiration_delta", 8*time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 7*24*time.Hour)
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)

	v.SetDefault("server_host", "0.0.0.0:8000")
	v.SetDefault("server_debug_host", "0.0.0.0:4000")
	v.SetDefault("server_read_timeout", 5*time.Second)
	v.SetDefault("server_write_timeout", 5*time.Second)
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("server_disable_req_logs", false)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "practicas")
	v.SetDefault("database_user", "practicas")
	v.SetDefault("database_password", "practicas")
	v.SetDefault("database_admin_user", "postgres")
	v.SetDefault("database_admin_password", "postgres")
	v.SetDefault("database_disable_tls", true)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_login_attempts", 10)
	v.SetDefault("redis_login_window", 15*time.Minute)

	v.SetDefault("broker_url", "")
	v.SetDefault("broker_queue", "practicas.events")

	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:      env,
		Build:    v.GetString("build"),
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("test_mode"),
		WorkDir:  wd,

		AppName:         v.GetString("app_name"),
		SecretKey:       v.GetString("secret_key"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("default_from_name"),
			Address: v.GetString("default_from_email"),
		},
		SendgridApiKey:            v.GetString("sendgrid_api_key"),
		RollbarToken:              v.GetString("rollbar_token"),
		JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
		JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),

		Server: ServerConfig{
			Host:            v.GetString("server_host"),
			DebugHost:       v.GetString("server_debug_host"),
			ReadTimeout:     v.GetDuration("server_read_timeout"),
			WriteTimeout:    v.GetDuration("server_write_timeout"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
			DisableReqLogs:  v.GetBool("server_disable_req_logs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_admin_user"),
			AdminPassword: v.GetString("database_admin_password"),
			DisableTLS:    v.GetBool("database_disable_tls"),
		},
		Redis: RedisConfig{
			Addr:          v.GetString("redis_addr"),
			Password:      v.GetString("redis_password"),
			DB:            v.GetInt("redis_db"),
			LoginAttempts: v.GetInt("redis_login_attempts"),
			LoginWindow:   v.GetDuration("redis_login_window"),
		},
		Broker: BrokerConfig{
			URL:   v.GetString("broker_url"),
			Queue: v.GetString("broker_queue"),
		},
	}
}

// NewTestConfig returns a deterministic Config for tests; it does not read the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		Debug:                     false,
		TestMode:                  true,
		AppName:                   "Practicas",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:5173",
		DefaultFromEmail:          mail.Address{Name: "Prácticas", Address: "noreply@practicas.test"},
		JWTExpirationDelta:        time.Hour,
		JWTRefreshExpirationDelta: 24 * time.Hour,
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			Host:            ":0",
			ShutdownTimeout: time.Second,
			DisableReqLogs:  true,
		},
		Database: DatabaseConfig{
			Engine:     "postgres",
			Host:       "localhost",
			Port:       "5432",
			Name:       "practicas_test",
			User:       "practicas",
			Password:   "practicas",
			DisableTLS: true,
		},
		Redis:  RedisConfig{LoginAttempts: 10, LoginWindow: 15 * time.Minute},
		Broker: BrokerConfig{Queue: "practicas.events"},
	}
}
