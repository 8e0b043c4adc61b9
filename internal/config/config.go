package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	LogDirectory string

	// Pipeline parameters, fixed per deployment.
	TargetLabel       int // Class id treated as the object to hide (15 = person)
	StageSize         int // Frames buffered per median cascade stage
	ClosingRadius     int
	OpeningRadius     int
	HeightFieldRadius int
	ShadingScale      int
	FrameSize         int // Working square frame edge in pixels

	// Segmentation network
	ModelPath  string
	ConfigPath string

	// Local frame source; empty disables capture and leaves only the camera socket
	SourceDevice string
	SourceFPS    int
	SourceRotate bool

	PresentInterval int // Milliseconds between presenter polls

	SnapshotDirectory     string
	SnapshotBufferLimit   int
	SnapshotFlushInterval int // Seconds
	SnapshotEvery         int // Keep every N-th composite
	DatabasePath          string
}

// Load reads configuration from the environment, after applying an optional .env file.
func Load() *Config {
	// Missing .env is fine, the real environment still applies.
	_ = godotenv.Load()

	return &Config{
		Port:                  getEnvAsInt("PORT", 8080),
		LogDirectory:          getEnv("LOG_DIR", filepath.Join(".", "logs")),
		TargetLabel:           getEnvAsInt("TARGET_LABEL", 15),
		StageSize:             getEnvAsInt("STAGE_SIZE", 5),
		ClosingRadius:         getEnvAsInt("CLOSING_RADIUS", 5),
		OpeningRadius:         getEnvAsInt("OPENING_RADIUS", 10),
		HeightFieldRadius:     getEnvAsInt("HEIGHT_FIELD_RADIUS", 100),
		ShadingScale:          getEnvAsInt("SHADING_SCALE", 200),
		FrameSize:             getEnvAsInt("FRAME_SIZE", 513),
		ModelPath:             getEnv("MODEL_PATH", filepath.Join(".", "models", "deeplabv3.pb")),
		ConfigPath:            getEnv("CONFIG_PATH", ""),
		SourceDevice:          getEnv("SOURCE_DEVICE", ""),
		SourceFPS:             getEnvAsInt("SOURCE_FPS", 15),
		SourceRotate:          getEnvAsBool("SOURCE_ROTATE", true),
		PresentInterval:       getEnvAsInt("PRESENT_INTERVAL_MS", 200),
		SnapshotDirectory:     getEnv("SNAPSHOT_DIR", filepath.Join(".", "snapshots")),
		SnapshotBufferLimit:   getEnvAsInt("SNAPSHOT_BUFFER_LIMIT", 7),
		SnapshotFlushInterval: getEnvAsInt("SNAPSHOT_FLUSH_INTERVAL", 30),
		SnapshotEvery:         getEnvAsInt("SNAPSHOT_EVERY", 25),
		DatabasePath:          getEnv("DB_PATH", filepath.Join(".", "data", "snapshots.db")),
	}
}

// Validate rejects parameter combinations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.StageSize < 3 || c.StageSize%2 == 0 {
		return fmt.Errorf("stage size must be odd and at least 3, got %d", c.StageSize)
	}
	if c.ClosingRadius <= 0 || c.OpeningRadius <= 0 {
		return fmt.Errorf("morphology radii must be positive, got closing=%d opening=%d", c.ClosingRadius, c.OpeningRadius)
	}
	if c.HeightFieldRadius <= 0 {
		return fmt.Errorf("height field radius must be positive, got %d", c.HeightFieldRadius)
	}
	if c.ShadingScale <= 0 {
		return fmt.Errorf("shading scale must be positive, got %d", c.ShadingScale)
	}
	if c.FrameSize < 1 {
		return fmt.Errorf("frame size must be positive, got %d", c.FrameSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
