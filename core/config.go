package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string // DEV (default), TEST, QA, PROD
		Debug    bool
		TestMode bool
		Build    string

		AppName          string
		SecretKey        []byte
		FrontendBaseURL  string
		WorkDir          string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Enabled      bool
		Addr         string
		Password     string
		DB           int
		AnalyticsTTL time.Duration
	}
)

func (c ServerConfig) Address() string   { return fmt.Sprintf("%s:%d", c.Host, c.Port) }
func (c DatabaseConfig) Address() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// NewConfig loads configuration from the environment (and an optional .env file),
// falling back to sane DEV defaults.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("env", "DEV")
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "StudyWala")
	v.SetDefault("secretKey", "x7gm-qot)rvb$+82=kp&wnsh5(j!z)#*f5(#hj7k^$dfhn5fpz")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("serverHost", "0.0.0.0")
	v.SetDefault("serverPort", 8000)
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "studywala")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", 5432)
	v.SetDefault("databaseUser", "studywala")
	v.SetDefault("databasePassword", "")
	v.SetDefault("databaseAdminUser", "")
	v.SetDefault("databaseAdminPassword", "")
	v.SetDefault("databaseDisableTLS", true)

	v.SetDefault("redisEnabled", false)
	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("redisAnalyticsTTL", 5*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd, _ := os.Getwd()
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
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         env == "TEST",
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        []byte(v.GetString("secretKey")),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		WorkDir:          wd,
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridAPIKey:   v.GetString("sendgridAPIKey"),
		RollbarToken:     v.GetString("rollbarToken"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Port:                      v.GetInt("serverPort"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetInt("databasePort"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Redis: RedisConfig{
			Enabled:      v.GetBool("redisEnabled"),
			Addr:         v.GetString("redisAddr"),
			Password:     v.GetString("redisPassword"),
			DB:           v.GetInt("redisDB"),
			AnalyticsTTL: v.GetDuration("redisAnalyticsTTL"),
		},
	}
}
