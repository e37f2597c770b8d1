package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"namdrunner/internal/logger"
	"namdrunner/internal/transfer"

	"github.com/joho/godotenv"
)

// loadEnvFiles must run before any GetEnv read so that .env values are
// visible during configuration construction; an init func would run too
// late, after the package-level vars are already initialized.
func loadEnvFiles() {
	envFiles := []string{
		".env",
	}

	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("Error loading %s: %v", envFile, err)
			}
		}
	}
}

func GetEnv(key string, defaultValue string) string {
	value := os.Getenv(key)

	if value == "" {
		return defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		logger.Warn("Invalid value for %s: %v", key, err)
		return defaultValue
	}
	return parsed
}

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("Could not determine home directory: %v", err)
		return ""
	}
	return homeDir
}

func getDefaultDatabasePath(fallback string, profile string) string {
	homeDir := getHomeDir()
	if homeDir == "" {
		return fallback
	}
	return filepath.Join(homeDir, ".namdrunner", profile, "namdrunner.db")
}

type Configuration struct {
	Profile      string
	DatabasePath string

	ClusterHost string
	ClusterPort uint

	// remote job namespace, per user: fmt.Sprintf(RemoteBaseDirPattern, username)
	RemoteBaseDirPattern string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	ChunkTimeout   time.Duration
	ChunkSize      int

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryJitterBound time.Duration

	DefaultPartition string
	DefaultNodes     int
	DefaultCPUs      int
	DefaultMemory    string
	DefaultWallTime  string
}

// RemoteBaseDir resolves the per-user job namespace on the cluster.
func (c *Configuration) RemoteBaseDir(username string) string {
	return fmt.Sprintf(c.RemoteBaseDirPattern, username)
}

// newConfiguration loads the .env files and then reads the environment.
// Reading in any other order would silently ignore .env values.
func newConfiguration() *Configuration {
	loadEnvFiles()

	profile := GetEnv("NAMDRUNNER_PROFILE", "default")

	return &Configuration{
		Profile:      profile,
		DatabasePath: GetEnv("DATABASE_PATH", getDefaultDatabasePath("/tmp/namdrunner/namdrunner.db", profile)),

		ClusterHost: GetEnv("NAMDRUNNER_CLUSTER_HOST", "login.rc.colorado.edu"),
		ClusterPort: uint(getEnvInt("NAMDRUNNER_CLUSTER_PORT", 22)),

		RemoteBaseDirPattern: GetEnv("NAMDRUNNER_REMOTE_BASE_DIR", "/scratch/alpine/%s/namdrunner_jobs"),

		ConnectTimeout: 15 * time.Second,
		CommandTimeout: 60 * time.Second,
		ChunkTimeout:   30 * time.Second,
		ChunkSize:      getEnvInt("NAMDRUNNER_CHUNK_SIZE", transfer.DefaultChunkSize),

		RetryMaxAttempts: getEnvInt("NAMDRUNNER_RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   500 * time.Millisecond,
		RetryJitterBound: 250 * time.Millisecond,

		DefaultPartition: GetEnv("NAMDRUNNER_DEFAULT_PARTITION", "amilan"),
		DefaultNodes:     1,
		DefaultCPUs:      getEnvInt("NAMDRUNNER_DEFAULT_CPUS", 24),
		DefaultMemory:    GetEnv("NAMDRUNNER_DEFAULT_MEMORY", "16G"),
		DefaultWallTime:  GetEnv("NAMDRUNNER_DEFAULT_WALLTIME", "04:00:00"),
	}
}

var Config = newConfiguration()

var Profile = Config.Profile
var DatabasePath = Config.DatabasePath
