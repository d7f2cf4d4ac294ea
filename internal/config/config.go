package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env  string
	Addr string

	DBDriver        string
	DBUser          string
	DBPass          string
	DBHost          string
	DBPort          string
	DBName          string
	DBPath          string
	DBLogLevel      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SeedDev         bool

	LogLevel string

	TaxRate        decimal.Decimal
	ImportProfiles string

	ArchiveBlobURL   string
	ArchiveContainer string

	CORSOrigins []string
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Load reads .env files (missing files are ignored) and then the environment.
func Load(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	return New()
}

func New() Config {
	taxRate, err := decimal.NewFromString(getenv("TAX_RATE", "0"))
	if err != nil || taxRate.IsNegative() {
		taxRate = decimal.Zero
	}
	lifetime, err := time.ParseDuration(getenv("DB_CONN_MAX_LIFETIME", "30m"))
	if err != nil {
		lifetime = 30 * time.Minute
	}
	return Config{
		Env:              getenv("APP_ENV", "development"),
		Addr:             getenv("ADDR", ":8080"),
		DBDriver:         strings.ToLower(getenv("DB_DRIVER", "mysql")),
		DBUser:           getenv("DB_USER", "root"),
		DBPass:           getenv("DB_PASS", ""),
		DBHost:           getenv("DB_HOST", "127.0.0.1"),
		DBPort:           getenv("DB_PORT", "3306"),
		DBName:           getenv("DB_NAME", "bookkeeping"),
		DBPath:           getenv("DB_PATH", "bookkeeping.db"),
		DBLogLevel:       getenv("DB_LOG_LEVEL", "warn"),
		MaxOpenConns:     getenvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getenvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  lifetime,
		SeedDev:          os.Getenv("SEED_DEV") == "1",
		LogLevel:         getenv("LOG_LEVEL", "info"),
		TaxRate:          taxRate,
		ImportProfiles:   os.Getenv("IMPORT_PROFILES"),
		ArchiveBlobURL:   os.Getenv("ARCHIVE_BLOB_URL"),
		ArchiveContainer: getenv("ARCHIVE_CONTAINER", "statements"),
		CORSOrigins:      strings.Split(getenv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"), ","),
	}
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) MySQLDSN() string {
	if dsn := os.Getenv("READ_DSN"); dsn != "" {
		return dsn
	}
	mc := mysql.NewConfig()
	mc.User = c.DBUser
	mc.Passwd = c.DBPass
	mc.Net = "tcp"
	mc.Addr = c.DBHost + ":" + c.DBPort
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func (c Config) PostgresDSN() string {
	if dsn := os.Getenv("READ_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

func (c Config) SQLiteDSN() string {
	return c.DBPath + "?_foreign_keys=on&_journal_mode=WAL"
}
