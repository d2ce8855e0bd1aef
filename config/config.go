package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	MongoURI    string
	MongoDB     string
	PostgresURI string
	RedisURL    string

	LLMProvider    string
	GeminiAPIKey   string
	GeminiModel    string
	VertexProject  string
	VertexLocation string
	VertexModel    string
	GroqAPIKey     string
	GroqModel      string
	GroqBaseURL    string

	WorkflowID string

	CoversBucket string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	ReapSchedule string
	MaxIdle      time.Duration

	AudioWorkers  int
	AudioEncoding string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: os.Getenv("LOG_LEVEL"),

		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDB:     getenv("MONGO_DB", "intervyu"),
		PostgresURI: os.Getenv("POSTGRES_URI"),
		RedisURL:    firstenv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),

		LLMProvider:    getenv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:   firstenv("GEMINI_API_KEY", "GOOGLE_GENERATIVE_AI_API_KEY"),
		GeminiModel:    os.Getenv("GEMINI_MODEL"),
		VertexProject:  os.Getenv("VERTEX_PROJECT"),
		VertexLocation: getenv("VERTEX_LOCATION", "us-central1"),
		VertexModel:    os.Getenv("VERTEX_MODEL"),
		GroqAPIKey:     os.Getenv("GROQ_API_KEY"),
		GroqModel:      os.Getenv("GROQ_MODEL"),
		GroqBaseURL:    os.Getenv("GROQ_BASE_URL"),

		WorkflowID: os.Getenv("VAPI_WORKFLOW_ID"),

		CoversBucket: os.Getenv("COVERS_BUCKET"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "intervyu.events"),

		ReapSchedule:  getenv("SESSION_REAP_SCHEDULE", "@every 1m"),
		AudioEncoding: getenv("AUDIO_ENCODING", "webm_opus"),

		JWTSecret:   os.Getenv("SUPABASE_JWT_SECRET"),
		JWTIssuer:   os.Getenv("SUPABASE_JWT_ISSUER"),
		JWTAudience: os.Getenv("SUPABASE_JWT_AUDIENCE"),
	}

	var err error
	if c.KafkaEnabled, err = getbool("KAFKA_ENABLED", len(c.KafkaBrokers) > 0); err != nil {
		return nil, err
	}
	if c.MaxIdle, err = getduration("SESSION_MAX_IDLE", 30*time.Minute); err != nil {
		return nil, err
	}
	if c.AudioWorkers, err = getint("AUDIO_WORKERS", 0); err != nil {
		return nil, err
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is not set"))
	}
	if c.PostgresURI == "" {
		errs = append(errs, errors.New("POSTGRES_URI is not set"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET is not set"))
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_ENABLED requires KAFKA_BROKERS"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstenv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getint(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}

func getbool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(key + " must be true or false")
	}
	return b, nil
}

func getduration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New(key + " must be a duration like 30m")
	}
	return d, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
