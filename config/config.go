package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBDriver  string
	MongoURI  string
	MongoDB   string
	JWTSecret string
	JWTTTL    time.Duration
	Location  *time.Location

	CORSOrigins      []string
	MetricsAllowedIP string

	RabbitMQURL string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	WhatsAppNotify   []string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	ManagerEmail string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Secure    bool
	CDNDomain   string

	AutoPostSales bool
	UnionRepairAt string

	AdminPhone    string
	AdminPassword string
}

// Load reads .env when present and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, reading configuration from the environment")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	tz := getEnv("TZ_LOCATION", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ_LOCATION %q: %w", tz, err)
	}
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "465"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	autoPost, err := strconv.ParseBool(getEnv("AUTO_POST_SALES", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_POST_SALES: %w", err)
	}
	s3Secure, err := strconv.ParseBool(getEnv("S3_SECURE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_SECURE: %w", err)
	}

	cfg := &Config{
		Port:      getEnv("PORT", "1414"),
		DBDriver:  getEnv("DB_DRIVER", "mongo"),
		MongoURI:  getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   getEnv("MONGO_DB", "restaurante"),
		JWTSecret: getEnv("JWT_SECRET", "changeme"),
		JWTTTL:    12 * time.Hour,
		Location:  loc,

		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		MetricsAllowedIP: os.Getenv("METRICS_ALLOWED_IP"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		WhatsAppNotify:   splitList(os.Getenv("WHATSAPP_NOTIFY_TO")),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     smtpPort,
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		ManagerEmail: os.Getenv("MANAGER_EMAIL"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Secure:    s3Secure,
		CDNDomain:   os.Getenv("CDN_DOMAIN"),

		AutoPostSales: autoPost,
		UnionRepairAt: getEnv("UNION_REPAIR_AT", "04:00"),

		AdminPhone:    os.Getenv("ADMIN_PHONE"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
	if cfg.DBDriver != "mongo" && cfg.DBDriver != "memory" {
		return nil, fmt.Errorf("invalid DB_DRIVER %q, want mongo or memory", cfg.DBDriver)
	}
	return cfg, nil
}

func (c *Config) WhatsAppEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != "" && len(c.WhatsAppNotify) > 0
}

func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.ManagerEmail != ""
}

func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
