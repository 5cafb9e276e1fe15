package utils

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	port      string
	publicURL string
	logLevel  slog.Level

	dbDriver string
	dbDSN    string

	storageDir     string
	imageMaxWidth  int
	imageMaxHeight int
	webpQuality    int
	imageReadExif  bool

	sessionSecret string
	sessionExpire time.Duration

	location *time.Location

	adminEmail          string
	mailFrom            string
	discordWebhookID    string
	discordWebhookToken string

	housekeepingCron         string
	metricCollectionInterval time.Duration
	seedFile                 string
	recurrenceSerializable   bool
}

func NewConfig() *Config {
	return &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),
		publicURL: func() string {
			publicURL := strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/")
			if publicURL == "" {
				publicURL = "http://localhost:8080"
			}
			slog.Debug("env", "PUBLIC_URL", publicURL)
			return publicURL
		}(),
		logLevel: func() slog.Level {
			var level slog.Level
			logLevel := os.Getenv("LOG_LEVEL")
			if logLevel == "" {
				return slog.LevelDebug
			}
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				slog.Error("invalid LOG_LEVEL", "error", err)
				os.Exit(1)
			}
			return level
		}(),

		dbDriver: func() string {
			dbDriver := strings.ToLower(os.Getenv("DB_DRIVER"))
			switch dbDriver {
			case "":
				dbDriver = DB_DRIVER_SQLITE
			case DB_DRIVER_SQLITE, DB_DRIVER_POSTGRES:
			default:
				slog.Error("invalid DB_DRIVER, expected sqlite or postgres", "DB_DRIVER", dbDriver)
				os.Exit(1)
			}
			slog.Debug("env", "DB_DRIVER", dbDriver)
			return dbDriver
		}(),
		dbDSN: func() string {
			dbDSN := os.Getenv("DB_DSN")
			if dbDSN == "" {
				dbDSN = "./sqlite.db?mode=rwc"
			}
			return dbDSN
		}(),

		storageDir: func() string {
			storageDir := os.Getenv("STORAGE_DIR")
			if storageDir == "" {
				storageDir = "documents"
			}
			slog.Debug("env", "STORAGE_DIR", storageDir)
			return filepath.Clean(storageDir)
		}(),
		imageMaxWidth:  envInt("IMAGE_MAX_WIDTH", 1920, 1, 1<<15),
		imageMaxHeight: envInt("IMAGE_MAX_HEIGHT", 1920, 1, 1<<15),
		webpQuality:    envInt("WEBP_QUALITY", 80, 0, 100),
		imageReadExif:  envBool("IMAGE_READ_EXIF", true),

		sessionSecret: func() string {
			secret := os.Getenv("SESSION_SECRET")
			if secret == "" {
				slog.Warn("SESSION_SECRET is not set")
				secret = "secret"
			}
			return secret
		}(),
		sessionExpire: envDuration("SESSION_EXPIRE", 168*time.Hour), // 1 week

		location: func() *time.Location {
			timezoneStr := os.Getenv("TIMEZONE")
			var loc *time.Location
			var err error
			switch timezoneStr {
			case "":
				slog.Warn("TIMEZONE is not set, using local timezone", "timezone", time.Local)
				loc = time.Local
			case "UTC":
				loc = time.UTC
			default:
				loc, err = time.LoadLocation(timezoneStr)
				if err != nil {
					slog.Error("invalid timezone", "timezone", timezoneStr, "error", err)
					os.Exit(1)
				}
			}
			slog.Debug("env", "TIMEZONE", timezoneStr)
			return loc
		}(),

		adminEmail: func() string {
			adminEmail := os.Getenv("ADMIN_EMAIL")
			if adminEmail == "" {
				slog.Warn("ADMIN_EMAIL is not set, ticket notifications go nowhere")
			}
			return adminEmail
		}(),
		mailFrom: func() string {
			mailFrom := os.Getenv("MAIL_FROM")
			if mailFrom == "" {
				mailFrom = "noreply@localhost"
			}
			return mailFrom
		}(),
		discordWebhookID:    os.Getenv("DISCORD_WEBHOOK_ID"),
		discordWebhookToken: os.Getenv("DISCORD_WEBHOOK_TOKEN"),

		housekeepingCron: func() string {
			schedule := os.Getenv("HOUSEKEEPING_CRON")
			if schedule == "" {
				schedule = "@hourly"
			}
			slog.Debug("env", "HOUSEKEEPING_CRON", schedule)
			return schedule
		}(),
		metricCollectionInterval: envDuration("METRIC_COLLECTION_INTERVAL", 15*time.Second),
		seedFile:                 os.Getenv("SEED_FILE"),
		recurrenceSerializable:   envBool("RECURRENCE_SERIALIZABLE", false),
	}
}

func envInt(key string, fallback, min, max int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		slog.Error("invalid "+key, "error", err)
		os.Exit(1)
	}
	value = max2(min, min2(max, value))
	slog.Debug("env", key, value)
	return value
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		slog.Error("invalid "+key, "error", err)
		os.Exit(1)
	}
	slog.Debug("env", key, value)
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	duration, err := time.ParseDuration(raw)
	if err != nil || duration <= 0 {
		slog.Error("invalid "+key, "value", raw, "error", err)
		os.Exit(1)
	}
	slog.Debug("env", key, raw, "duration", duration)
	return duration
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Get PORT env, default to 8080
func (c *Config) GetPort() string {
	return c.port
}

// Get PUBLIC_URL env, used to build links in notifications
func (c *Config) GetPublicURL() string {
	return c.publicURL
}

// Get LOG_LEVEL env, default to debug
func (c *Config) GetLogLevel() slog.Level {
	return c.logLevel
}

// Get DB_DRIVER env
func (c *Config) GetDBDriver() string {
	return c.dbDriver
}

// Get DB_DSN env
func (c *Config) GetDBDSN() string {
	return c.dbDSN
}

// Get STORAGE_DIR env
func (c *Config) GetStorageDir() string {
	return c.storageDir
}

// Get IMAGE_MAX_WIDTH env
func (c *Config) GetImageMaxWidth() int {
	return c.imageMaxWidth
}

// Get IMAGE_MAX_HEIGHT env
func (c *Config) GetImageMaxHeight() int {
	return c.imageMaxHeight
}

// Get WEBP_QUALITY env, clamped to 0..100
func (c *Config) GetWebpQuality() int {
	return c.webpQuality
}

// Get IMAGE_READ_EXIF env
func (c *Config) GetImageReadExif() bool {
	return c.imageReadExif
}

// Get SESSION_SECRET env
func (c *Config) GetSessionSecret() string {
	return c.sessionSecret
}

// Get SESSION_EXPIRE env
func (c *Config) GetSessionExpire() time.Duration {
	return c.sessionExpire
}

// Get TIMEZONE env
func (c *Config) GetLocation() *time.Location {
	return c.location
}

// Get ADMIN_EMAIL env
func (c *Config) GetAdminEmail() string {
	return c.adminEmail
}

// Get MAIL_FROM env
func (c *Config) GetMailFrom() string {
	return c.mailFrom
}

// Get DISCORD_WEBHOOK_ID env
func (c *Config) GetDiscordWebhookID() string {
	return c.discordWebhookID
}

// Get DISCORD_WEBHOOK_TOKEN env
func (c *Config) GetDiscordWebhookToken() string {
	return c.discordWebhookToken
}

// Get HOUSEKEEPING_CRON env
func (c *Config) GetHousekeepingCron() string {
	return c.housekeepingCron
}

// Get METRIC_COLLECTION_INTERVAL env
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}

// Get SEED_FILE env
func (c *Config) GetSeedFile() string {
	return c.seedFile
}

// Get RECURRENCE_SERIALIZABLE env
func (c *Config) GetRecurrenceSerializable() bool {
	return c.recurrenceSerializable
}
