package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	DeviceID string
	StateDir string
	Camera   CameraConfig
	Vision   VisionConfig
	Database DatabaseConfig
	Storage  StorageConfig
	GPIO     GPIOConfig
	Match    MatchConfig
	Log      LogConfig
	Web      WebConfig
	Timings  TimingsConfig
}

type CameraConfig struct {
	URL string // snapshot endpoint of the camera (e.g., http://cam.local/capture)
}

type VisionConfig struct {
	URL string // detector/extractor sidecar, defaults to http://localhost:8000
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL of the cloud record store (optional, offline if empty)
	MaxOpenConns int    // Maximum open connections (default 5)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type StorageConfig struct {
	Endpoint  string // S3-compatible endpoint host:port (optional, uploads disabled if empty)
	AccessKey string
	SecretKey string
	Bucket    string // defaults to access-faces
	UseSSL    bool
}

type GPIOConfig struct {
	RelayPin  int // sysfs GPIO numbers
	DoorPin   int
	ButtonPin int
}

type MatchConfig struct {
	Threshold     float64
	StoreCapacity int
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

type WebConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
	APIToken       string   // bearer token for control endpoints, empty disables the check
}

// TimingsConfig mirrors defaults.yaml.
type TimingsConfig struct {
	Recognition RecognitionTimings `yaml:"recognition"`
	Enrollment  EnrollmentTimings  `yaml:"enrollment"`
	Lock        LockTimings        `yaml:"lock"`
	Control     ControlTimings     `yaml:"control"`
	Stream      StreamTimings      `yaml:"stream"`
}

type RecognitionTimings struct {
	Period           time.Duration `yaml:"period"`
	EnrollingBackoff time.Duration `yaml:"enrolling_backoff"`
	DisabledBackoff  time.Duration `yaml:"disabled_backoff"`
	CorruptBackoff   time.Duration `yaml:"corrupt_backoff"`
	CameraTimeout    time.Duration `yaml:"camera_timeout"`
	MatchHold        time.Duration `yaml:"match_hold"`
	LogCooldown      time.Duration `yaml:"log_cooldown"`
	MinFrameBytes    int           `yaml:"min_frame_bytes"`
	MaxWidth         int           `yaml:"max_width"`
	MaxHeight        int           `yaml:"max_height"`
}

type EnrollmentTimings struct {
	Settle        time.Duration `yaml:"settle"`
	CameraTimeout time.Duration `yaml:"camera_timeout"`
	LocalWait     time.Duration `yaml:"local_wait"`
}

type LockTimings struct {
	Hold     time.Duration `yaml:"hold"`
	Poll     time.Duration `yaml:"poll"`
	Debounce time.Duration `yaml:"debounce"`
}

type ControlTimings struct {
	ButtonPoll   time.Duration `yaml:"button_poll"`
	CommandEvery int           `yaml:"command_every"`
}

type StreamTimings struct {
	CameraTimeout   time.Duration `yaml:"camera_timeout"`
	Backoff         time.Duration `yaml:"backoff"`
	SnapshotTimeout time.Duration `yaml:"snapshot_timeout"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadTimings parses the embedded defaults.
func LoadTimings() TimingsConfig {
	var t TimingsConfig
	if err := yaml.Unmarshal(defaultsYAML, &t); err != nil {
		// Embedded file, a parse error is a build defect.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return t
}

func Load() *Config {
	return &Config{
		DeviceID: envString("DEVICE_ID", "S3_LOCK_01"),
		StateDir: envString("STATE_DIR", "./state"),
		Camera: CameraConfig{
			URL: os.Getenv("CAMERA_URL"),
		},
		Vision: VisionConfig{
			URL: os.Getenv("VISION_URL"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 5),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    envString("STORAGE_BUCKET", "access-faces"),
			UseSSL:    envBool("STORAGE_USE_SSL"),
		},
		GPIO: GPIOConfig{
			RelayPin:  envInt("GPIO_RELAY_PIN", 14),
			DoorPin:   envInt("GPIO_DOOR_PIN", 38),
			ButtonPin: envInt("GPIO_BUTTON_PIN", 21),
		},
		Match: MatchConfig{
			Threshold:     envFloat("MATCH_THRESHOLD", 0.35),
			StoreCapacity: envInt("STORE_CAPACITY", 10),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		Web: WebConfig{
			Port:           envInt("WEB_PORT", 8080),
			Host:           envString("WEB_HOST", "0.0.0.0"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
		},
		Timings: LoadTimings(),
	}
}

// CloudEnabled reports whether a cloud record store is configured.
func (c *Config) CloudEnabled() bool {
	return c.Database.URL != ""
}

// UploadsEnabled reports whether capture uploads are configured.
func (c *StorageConfig) UploadsEnabled() bool {
	return c.Endpoint != ""
}
