package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port     string
	LogLevel slog.Level

	// Auth
	APIKey string

	// Corpus resources
	MetadataDir  string
	PatternsFile string
	ReviewDBPath string

	// Optional publishing sink
	PathstoreURL    string
	PathstoreAPIKey string

	// Refinement defaults
	IDSeed            string
	NoisyPrefixes     []string
	RemoveStaleIntros bool
	SkipCertificates  bool

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64
	MaxBatchFiles  int

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

var defaultNoisyPrefixes = []string{
	"https://betalab.kb.se/",
	"https://swerik-project.github.io/",
}

// Load reads the environment and then overlays the TOML file named by
// PROTOREFINE_CONFIG, if any.
func Load() (Config, error) {
	cfg := Config{
		Port:     envOr("PORT", "8090"),
		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),

		APIKey: os.Getenv("PROTOREFINE_API_KEY"),

		MetadataDir:  envOr("METADATA_DIR", "corpus/metadata"),
		PatternsFile: os.Getenv("INTRO_PATTERNS_FILE"),
		ReviewDBPath: envOr("REVIEW_DB_PATH", "protorefine.db"),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		IDSeed:            os.Getenv("ID_SEED"),
		NoisyPrefixes:     envList("NOISY_PREFIXES", defaultNoisyPrefixes),
		RemoveStaleIntros: envBool("REMOVE_STALE_INTROS", false),
		SkipCertificates:  envBool("SKIP_CERTIFICATES", false),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		MaxBatchFiles:  envInt("MAX_BATCH_FILES", 50),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if path := os.Getenv("PROTOREFINE_CONFIG"); path != "" {
		var err error
		if cfg, err = overlayFile(cfg, path); err != nil {
			return Config{}, err
		}
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxBatchFiles <= 0 {
		cfg.MaxBatchFiles = 50
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg, nil
}

// fileConfig maps config.toml keys onto Config.
type fileConfig struct {
	Port                 string   `toml:"port"`
	LogLevel             string   `toml:"log_level"`
	MetadataDir          string   `toml:"metadata_dir"`
	PatternsFile         string   `toml:"patterns_file"`
	ReviewDBPath         string   `toml:"review_db_path"`
	PathstoreURL         string   `toml:"pathstore_url"`
	IDSeed               string   `toml:"id_seed"`
	NoisyPrefixes        []string `toml:"noisy_prefixes"`
	RemoveStaleIntros    bool     `toml:"remove_stale_intros"`
	SkipCertificates     bool     `toml:"skip_certificates"`
	WorkerCount          int      `toml:"worker_count"`
	MaxQueueSize         int      `toml:"max_queue_size"`
	MaxUploadBytes       int64    `toml:"max_upload_bytes"`
	MaxBatchFiles        int      `toml:"max_batch_files"`
	JobTTL               string   `toml:"job_ttl"`
	PDFFallbackPdftotext bool     `toml:"pdf_fallback_pdftotext"`
}

// overlayFile applies the keys defined in a TOML file on top of cfg.
// Secrets stay in the environment.
func overlayFile(cfg Config, path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("log_level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw.LogLevel)); err != nil {
			return Config{}, fmt.Errorf("load config %s: log_level: %w", path, err)
		}
	}
	if meta.IsDefined("metadata_dir") {
		cfg.MetadataDir = strings.TrimSpace(raw.MetadataDir)
	}
	if meta.IsDefined("patterns_file") {
		cfg.PatternsFile = strings.TrimSpace(raw.PatternsFile)
	}
	if meta.IsDefined("review_db_path") {
		cfg.ReviewDBPath = strings.TrimSpace(raw.ReviewDBPath)
	}
	if meta.IsDefined("pathstore_url") {
		cfg.PathstoreURL = strings.TrimSpace(raw.PathstoreURL)
	}
	if meta.IsDefined("id_seed") {
		cfg.IDSeed = raw.IDSeed
	}
	if meta.IsDefined("noisy_prefixes") {
		cfg.NoisyPrefixes = raw.NoisyPrefixes
	}
	if meta.IsDefined("remove_stale_intros") {
		cfg.RemoveStaleIntros = raw.RemoveStaleIntros
	}
	if meta.IsDefined("skip_certificates") {
		cfg.SkipCertificates = raw.SkipCertificates
	}
	if meta.IsDefined("worker_count") {
		cfg.WorkerCount = raw.WorkerCount
	}
	if meta.IsDefined("max_queue_size") {
		cfg.MaxQueueSize = raw.MaxQueueSize
	}
	if meta.IsDefined("max_upload_bytes") {
		cfg.MaxUploadBytes = raw.MaxUploadBytes
	}
	if meta.IsDefined("max_batch_files") {
		cfg.MaxBatchFiles = raw.MaxBatchFiles
	}
	if meta.IsDefined("job_ttl") {
		d, err := time.ParseDuration(raw.JobTTL)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: job_ttl: %w", path, err)
		}
		cfg.JobTTL = d
	}
	if meta.IsDefined("pdf_fallback_pdftotext") {
		cfg.PDFFallbackPdftotext = raw.PDFFallbackPdftotext
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("PROTOREFINE_API_KEY is required")
	}
	if c.MetadataDir == "" {
		return fmt.Errorf("METADATA_DIR is required")
	}
	if c.ReviewDBPath == "" {
		return fmt.Errorf("REVIEW_DB_PATH is required")
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}

// envList reads a comma-separated list. An explicitly empty value is not
// distinguishable from an unset one and yields the fallback.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
