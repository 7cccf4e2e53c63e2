// Package config resolves run settings. Precedence: environment variable,
// then the .env file, then built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Setting keys, as they appear in the environment and the .env file.
const (
	KeyDebugMode        = "DEBUG_MODE"
	KeyConsoleConcise   = "CONSOLE_CONCISE_MODE"
	KeyWxPusherAppToken = "WXPUSHER_APP_TOKEN"
	KeyWxPusherUIDs     = "WXPUSHER_UIDS"
	KeyPushoverAppToken = "PUSHOVER_APP_TOKEN"
	KeyPushoverUserKey  = "PUSHOVER_USER_KEY"
	KeyTasksFile        = "TASKS_FILE"
	KeyStatusFile       = "STATUS_FILE"
	KeyRewardsFile      = "REWARDS_FILE"
	KeyLogFile          = "LOG_FILE"
	KeyHistoryDB        = "HISTORY_DB"
	KeyRequestTimeout   = "REQUEST_TIMEOUT"
	KeyMaxWorkers       = "MAX_WORKERS"
	KeyRateLimitRPS     = "RATE_LIMIT_RPS"
)

const (
	DefaultEnvFile        = ".env"
	DefaultTasksFile      = "tasks.json"
	DefaultStatusFile     = "status.json"
	DefaultRewardsFile    = "rewards.yaml"
	DefaultLogFile        = "task.log"
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxWorkers     = 10
)

// Settings is the resolved configuration for one run.
type Settings struct {
	Debug          bool
	ConsoleConcise bool

	WxPusherAppToken string
	WxPusherUIDs     string
	PushoverAppToken string
	PushoverUserKey  string

	TasksFile   string
	StatusFile  string
	RewardsFile string
	LogFile     string // "" disables the log file
	HistoryDB   string // "" disables the run history

	RequestTimeout time.Duration
	MaxWorkers     int
	RateLimitRPS   float64 // 0 means unlimited
}

// Load resolves Settings. Relative paths are taken relative to baseDir. When
// envFile is empty, baseDir/.env is used if present; an explicitly named
// envFile must exist.
func Load(v *viper.Viper, baseDir, envFile string) (Settings, error) {
	if v == nil {
		v = viper.New()
	}
	if baseDir == "" {
		baseDir = "."
	}

	setDefaults(v)

	explicit := envFile != ""
	if !explicit {
		envFile = filepath.Join(baseDir, DefaultEnvFile)
	}
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("env file %s: %w", envFile, err)
	}

	v.AutomaticEnv()

	s := Settings{
		Debug:            v.GetBool(KeyDebugMode),
		ConsoleConcise:   v.GetBool(KeyConsoleConcise),
		WxPusherAppToken: v.GetString(KeyWxPusherAppToken),
		WxPusherUIDs:     v.GetString(KeyWxPusherUIDs),
		PushoverAppToken: v.GetString(KeyPushoverAppToken),
		PushoverUserKey:  v.GetString(KeyPushoverUserKey),
		TasksFile:        resolve(baseDir, v.GetString(KeyTasksFile)),
		StatusFile:       resolve(baseDir, v.GetString(KeyStatusFile)),
		RewardsFile:      resolve(baseDir, v.GetString(KeyRewardsFile)),
		LogFile:          resolve(baseDir, v.GetString(KeyLogFile)),
		HistoryDB:        resolve(baseDir, v.GetString(KeyHistoryDB)),
		MaxWorkers:       v.GetInt(KeyMaxWorkers),
		RateLimitRPS:     v.GetFloat64(KeyRateLimitRPS),
	}

	s.RequestTimeout = time.Duration(v.GetFloat64(KeyRequestTimeout) * float64(time.Second))
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.MaxWorkers <= 0 || s.MaxWorkers > DefaultMaxWorkers {
		s.MaxWorkers = DefaultMaxWorkers
	}
	if s.RateLimitRPS < 0 {
		s.RateLimitRPS = 0
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDebugMode, false)
	v.SetDefault(KeyConsoleConcise, true)
	v.SetDefault(KeyTasksFile, DefaultTasksFile)
	v.SetDefault(KeyStatusFile, DefaultStatusFile)
	v.SetDefault(KeyRewardsFile, DefaultRewardsFile)
	v.SetDefault(KeyLogFile, DefaultLogFile)
	v.SetDefault(KeyHistoryDB, "")
	v.SetDefault(KeyRequestTimeout, DefaultRequestTimeout.Seconds())
	v.SetDefault(KeyMaxWorkers, DefaultMaxWorkers)
	v.SetDefault(KeyRateLimitRPS, 0)
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
