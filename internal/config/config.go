package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Device      DeviceConfig
	Camera      CameraConfig
	Vision      VisionConfig
	Recognition RecognitionConfig
	Liveness    LivenessConfig
	Timing      TimingConfig
	Gallery     GalleryConfig
	Database    DatabaseConfig
	Web         WebConfig
}

type DeviceConfig struct {
	ID int // stamped on every attendance row
}

type CameraConfig struct {
	URL          string  // snapshot endpoint returning a single JPEG/PNG per GET
	Dir          string  // replay images from a directory instead of a live camera
	FPS          int     // frame loop rate (default 30)
	Mirror       bool    // flip horizontally so the kiosk behaves like a mirror
	ProcessScale float64 // scale applied to the frame sent to the region locator (1.0 = full size)
}

type VisionConfig struct {
	URL     string        // vision sidecar base URL (defaults to http://localhost:8000)
	Timeout time.Duration // per-request timeout
}

type RecognitionConfig struct {
	Threshold           float64         // global acceptance threshold
	Overrides           map[int]float64 // per-identity acceptance thresholds
	ConfidenceGap       float64
	MinFaceArea         float64 // fraction of the frame a face must cover
	MinDetectionConf    float64
	StabilizationFrames int
	RequiredStreak      int
	MaxMissedFrames     int
}

type LivenessConfig struct {
	Enabled   bool
	ExemptIDs []int
	YawLeft   float64
	YawRight  float64
}

type TimingConfig struct {
	RescanTimeout   time.Duration // how long a candidate may linger in VERIFYING/READY
	ResetAfterPunch time.Duration // how long the MARKED screen stays up
	ButtonTimeout   time.Duration // how long the punch button stays up without a punch
}

type GalleryConfig struct {
	RefreshInterval time.Duration
	EmbeddingDim    int
	ANNMinEntries   int // build an HNSW shortlist above this many entries (0 disables)
}

type DatabaseConfig struct {
	Driver       string // "mysql" or "postgres"
	URL          string // DSN for the selected driver
	MaxOpenConns int
	MaxIdleConns int
	Timeout      time.Duration // deadline of a single attendance lookup or write
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
}

// Policy is the YAML document holding the recognition policy.
type Policy struct {
	Thresholds struct {
		Default   float64         `yaml:"default"`
		Overrides map[int]float64 `yaml:"overrides"`
	} `yaml:"thresholds"`
	ConfidenceGap float64 `yaml:"confidence_gap"`
	Liveness      struct {
		Enabled   *bool   `yaml:"enabled"`
		ExemptIDs []int   `yaml:"exempt_ids"`
		YawLeft   float64 `yaml:"yaw_left"`
		YawRight  float64 `yaml:"yaw_right"`
	} `yaml:"liveness"`
}

// RescanFrames converts the rescan timeout into a frame budget at the camera rate.
func (c *Config) RescanFrames() int {
	return int(float64(c.Camera.FPS) * c.Timing.RescanTimeout.Seconds())
}

// IsExempt reports whether the identity may skip the head-turn check.
func (c *LivenessConfig) IsExempt(id int) bool {
	for _, e := range c.ExemptIDs {
		if e == id {
			return true
		}
	}
	return false
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

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envDuration accepts Go durations ("10s") or plain seconds ("2.5").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return time.Duration(f * float64(time.Second))
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
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

// ParsePolicy decodes a policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}
	return &p, nil
}

func Load() *Config {
	policy, err := ParsePolicy(policyYAML)
	if err != nil {
		// Embedded at build time, so this only fires on a broken build.
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	cfg := &Config{
		Device: DeviceConfig{
			ID: envInt("DEVICE_ID", 71),
		},
		Camera: CameraConfig{
			URL:          os.Getenv("CAMERA_URL"),
			Dir:          os.Getenv("CAMERA_DIR"),
			FPS:          envInt("CAMERA_FPS", 30),
			Mirror:       envBool("CAMERA_MIRROR", true),
			ProcessScale: envFloat("PROCESS_SCALE", 1.0),
		},
		Vision: VisionConfig{
			URL:     os.Getenv("VISION_URL"),
			Timeout: envDuration("VISION_TIMEOUT", 2*time.Second),
		},
		Recognition: RecognitionConfig{
			MinFaceArea:         envFloat("MIN_FACE_AREA", 0.03),
			MinDetectionConf:    envFloat("MIN_DETECTION_CONF", 0.95),
			StabilizationFrames: envInt("STABILIZATION_FRAMES", 5),
			RequiredStreak:      envInt("REQUIRED_STREAK", 3),
			MaxMissedFrames:     envInt("MAX_MISSED_FRAMES", 2),
		},
		Timing: TimingConfig{
			RescanTimeout:   envDuration("RESCAN_TIMEOUT", 10*time.Second),
			ResetAfterPunch: envDuration("RESET_TIME_AFTER_PUNCH", 2*time.Second),
			ButtonTimeout:   envDuration("BUTTON_TIMEOUT", 5*time.Second),
		},
		Gallery: GalleryConfig{
			RefreshInterval: envDuration("GALLERY_REFRESH_INTERVAL", 5*time.Minute),
			EmbeddingDim:    envInt("EMBEDDING_DIM", 128),
			ANNMinEntries:   envInt("GALLERY_ANN_MIN_ENTRIES", 0),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(envString("DATABASE_DRIVER", "mysql")),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 5),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
			Timeout:      envDuration("DATABASE_TIMEOUT", 5*time.Second),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 5000),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
	cfg.ApplyPolicy(policy)
	cfg.applyPolicyEnv()
	return cfg
}

// ApplyPolicy copies the policy document into the config. Zero values in the
// document leave the current setting untouched.
func (c *Config) ApplyPolicy(p *Policy) {
	if p.Thresholds.Default > 0 {
		c.Recognition.Threshold = p.Thresholds.Default
	}
	if p.Thresholds.Overrides != nil {
		c.Recognition.Overrides = make(map[int]float64, len(p.Thresholds.Overrides))
		for id, t := range p.Thresholds.Overrides {
			c.Recognition.Overrides[id] = t
		}
	}
	if p.ConfidenceGap > 0 {
		c.Recognition.ConfidenceGap = p.ConfidenceGap
	}
	if p.Liveness.Enabled != nil {
		c.Liveness.Enabled = *p.Liveness.Enabled
	}
	if p.Liveness.ExemptIDs != nil {
		c.Liveness.ExemptIDs = append([]int(nil), p.Liveness.ExemptIDs...)
	}
	if p.Liveness.YawLeft > 0 {
		c.Liveness.YawLeft = p.Liveness.YawLeft
	}
	if p.Liveness.YawRight > 0 {
		c.Liveness.YawRight = p.Liveness.YawRight
	}
}

// ApplyPolicyFile loads a policy override file (KIOSK_POLICY_FILE) on top of the embedded policy.
func (c *Config) ApplyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy file: %w", err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return err
	}
	c.ApplyPolicy(p)
	c.applyPolicyEnv()
	return nil
}

// applyPolicyEnv lets scalar environment variables win over the policy document.
func (c *Config) applyPolicyEnv() {
	c.Recognition.Threshold = envFloat("FACE_MATCH_THRESHOLD", c.Recognition.Threshold)
	c.Recognition.ConfidenceGap = envFloat("CONFIDENCE_GAP", c.Recognition.ConfidenceGap)
	c.Liveness.Enabled = envBool("ENABLE_LIVENESS", c.Liveness.Enabled)
	c.Liveness.YawLeft = envFloat("YAW_THRESH_LEFT", c.Liveness.YawLeft)
	c.Liveness.YawRight = envFloat("YAW_THRESH_RIGHT", c.Liveness.YawRight)
}

// Validate checks the settings the recognition pipeline cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Camera.FPS <= 0 {
		errs = append(errs, errors.New("CAMERA_FPS must be positive"))
	}
	if c.Camera.ProcessScale <= 0 || c.Camera.ProcessScale > 1 {
		errs = append(errs, fmt.Errorf("PROCESS_SCALE must be in (0, 1], got %v", c.Camera.ProcessScale))
	}
	if c.Recognition.RequiredStreak <= 0 {
		errs = append(errs, errors.New("REQUIRED_STREAK must be positive"))
	}
	if c.Recognition.StabilizationFrames < 0 {
		errs = append(errs, errors.New("STABILIZATION_FRAMES must not be negative"))
	}
	if c.Recognition.MaxMissedFrames <= 0 {
		errs = append(errs, errors.New("MAX_MISSED_FRAMES must be positive"))
	}
	if c.Recognition.ConfidenceGap < 0 {
		errs = append(errs, fmt.Errorf("confidence gap must not be negative, got %v", c.Recognition.ConfidenceGap))
	}
	if c.Recognition.Threshold <= 0 || c.Recognition.Threshold > 2 {
		errs = append(errs, fmt.Errorf("default threshold must be in (0, 2], got %v", c.Recognition.Threshold))
	}
	for id, t := range c.Recognition.Overrides {
		if t <= 0 || t > 2 {
			errs = append(errs, fmt.Errorf("threshold override for %d must be in (0, 2], got %v", id, t))
		}
	}
	if c.Liveness.YawLeft >= c.Liveness.YawRight {
		errs = append(errs, fmt.Errorf("yaw_left (%v) must be below yaw_right (%v)", c.Liveness.YawLeft, c.Liveness.YawRight))
	}
	if c.RescanFrames() <= 0 {
		errs = append(errs, errors.New("RESCAN_TIMEOUT must cover at least one frame"))
	}
	return errors.Join(errs...)
}
