package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Database engines
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite3"
)

// Ticket sequence backends
const (
	SequenceBackendDB    = "db"
	SequenceBackendRedis = "redis"
)

type (
	ServerConfig struct {
		Address                   string
		DebugAddress              string
		Host                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		AllowedOrigins            []string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
		Path          string // sqlite3 only
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	LibraryConfig struct {
		FinePerDay decimal.Decimal
		LoanDays   int
	}

	FeesConfig struct {
		LateFinePerDay decimal.Decimal
	}

	Config struct {
		AppName                   string
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		WorkDir                   string
		FrontendBaseURL           string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration
		SequenceBackend           string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Library  LibraryConfig
		Fees     FeesConfig

		defaultFromEmail string
	}
)

// DefaultFromEmail returns the sender used by outgoing emails.
func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

// Address returns the "host:port" of the database server.
func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("appName", "UniSync")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "n3w-c4mpus)k9$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "UniSync <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("sequenceBackend", SequenceBackendDB)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("database.engine", EnginePostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "unisync")
	v.SetDefault("database.password", "unisync")
	v.SetDefault("database.name", "unisync")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "unisync.db")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("library.finePerDay", "2")
	v.SetDefault("library.loanDays", 14)
	v.SetDefault("fees.lateFinePerDay", "10")
}

// NewConfig loads the configuration from defaults, the `config/.env.<env>` file (if any) and the environment.
// Environment variables are prefixed by the upper-cased env name, eg. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", EngineSQLite)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		WorkDir:                   workDir,
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		SequenceBackend:           v.GetString("sequenceBackend"),
		Server: ServerConfig{
			Address:                   v.GetString("server.address"),
			DebugAddress:              v.GetString("server.debugAddress"),
			Host:                      v.GetString("server.host"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			AllowedOrigins:            v.GetStringSlice("server.allowedOrigins"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Name:          v.GetString("database.name"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Library: LibraryConfig{
			FinePerDay: mustDecimal(v, "library.finePerDay"),
			LoanDays:   v.GetInt("library.loanDays"),
		},
		Fees: FeesConfig{
			LateFinePerDay: mustDecimal(v, "fees.lateFinePerDay"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
	return conf
}

func mustDecimal(v *viper.Viper, key string) decimal.Decimal {
	d, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		log.Fatal(fmt.Sprintf("config.%s: %v", key, err))
	}
	return d
}
