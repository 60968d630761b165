package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	HTTPAddr          string
	LogMode           string
	MaxInFlight       int
	MaxRequestBytes   int64
	ShutdownTimeoutMs int
	CORSOrigins       []string
	Currency          string

	ModelType      string
	ModelPath      string
	ModelURL       string
	ModelTimeoutMs int
	ColumnsPath    string
	MappingPath    string

	ListingsSource  string
	ListingsCSVPath string
	ListingsSeed    bool

	ScrapeURL             string
	PagesToScrape         int
	ListingsPerPage       int
	RateLimitMs           int
	ScrapeTimeoutMs       int
	ScrapeCardSelector    string
	ScrapeLabelSelector   string
	ScrapePriceSelector   string
	ScrapeDetailsSelector string
	ScrapeNextSelector    string
	ChromeBin             string

	DBDriver         string
	DBDSN            string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	MaxRetries       int

	EstimateLogCSV string
	EstimateLogDB  bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		LogMode:           getEnv("LOG_MODE", "development"),
		MaxInFlight:       getEnvInt("MAX_IN_FLIGHT", 1),
		MaxRequestBytes:   int64(getEnvInt("MAX_REQUEST_BYTES", 1<<20)),
		ShutdownTimeoutMs: getEnvInt("SHUTDOWN_TIMEOUT_MS", 15000),
		CORSOrigins:       getEnvList("CORS_ORIGINS", "http://localhost:3000"),
		Currency:          getEnv("CURRENCY", "TND"),

		ModelType:      strings.ToLower(getEnv("MODEL_TYPE", "xgboost")),
		ModelPath:      getEnv("MODEL_PATH", "./artifacts/best_model_xgb.json"),
		ModelURL:       getEnv("MODEL_URL", ""),
		ModelTimeoutMs: getEnvInt("MODEL_TIMEOUT_MS", 5000),
		ColumnsPath:    getEnv("COLUMNS_PATH", "./artifacts/model_columns.json"),
		MappingPath:    getEnv("MAPPING_PATH", ""),

		ListingsSource:  strings.ToLower(getEnv("LISTINGS_SOURCE", "static")),
		ListingsCSVPath: getEnv("LISTINGS_CSV_PATH", "./data/listings.csv"),
		ListingsSeed:    getEnvBool("LISTINGS_SEED", false),

		ScrapeURL:             getEnv("SCRAPE_URL", ""),
		PagesToScrape:         getEnvInt("PAGES_TO_SCRAPE", 2),
		ListingsPerPage:       getEnvInt("LISTINGS_PER_PAGE", 20),
		RateLimitMs:           getEnvInt("RATE_LIMIT_MS", 2000),
		ScrapeTimeoutMs:       getEnvInt("SCRAPE_TIMEOUT_MS", 90000),
		ScrapeCardSelector:    getEnv("SCRAPE_CARD_SELECTOR", "article"),
		ScrapeLabelSelector:   getEnv("SCRAPE_LABEL_SELECTOR", "h2, h3"),
		ScrapePriceSelector:   getEnv("SCRAPE_PRICE_SELECTOR", ".price"),
		ScrapeDetailsSelector: getEnv("SCRAPE_DETAILS_SELECTOR", ".details"),
		ScrapeNextSelector:    getEnv("SCRAPE_NEXT_SELECTOR", "a[rel=next]"),
		ChromeBin:             getEnv("CHROME_BIN", ""),

		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBDSN:            getEnv("DB_DSN", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "carprice"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "carprice"),
		PostgresDB:       getEnv("POSTGRES_DB", "carprice_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		MaxRetries:       getEnvInt("MAX_RETRIES", 5),

		EstimateLogCSV: getEnv("ESTIMATE_LOG_CSV", ""),
		EstimateLogDB:  getEnvBool("ESTIMATE_LOG_DB", false),
	}
}

// DSN returns the database connection string. DB_DSN wins; for postgres the
// string is otherwise assembled from the POSTGRES_* parts.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	if c.DBDriver == "sqlite" {
		return "file:carprice.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// NeedsDB reports whether any component reads from or writes to the database.
func (c *Config) NeedsDB() bool {
	return c.ListingsSource == "db" || c.EstimateLogDB
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "":
		return fallback
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
