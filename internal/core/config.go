package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// wordclash server components.
type Config struct {
	// Hostname or IP address on which the servers will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"logging"`

	GameServer struct {
		// Port on which the GAME server will listen for framed TCP connections.
		Port int `mapstructure:"port"`
	} `mapstructure:"game_server"`

	RegistrationServer struct {
		// Port on which the account registration HTTP endpoint will listen.
		Port int `mapstructure:"port"`
	} `mapstructure:"registration_server"`

	Database struct {
		// Database engine; either sqlite or postgres.
		Engine string `mapstructure:"engine"`
		// Path to the sqlite database file (sqlite engine only).
		File string `mapstructure:"file"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres for wordclash.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Dictionary struct {
		// Path to the newline-delimited word list loaded at startup.
		Path string `mapstructure:"path"`
	} `mapstructure:"dictionary"`

	Translation struct {
		// Base URL of the translation service.
		Endpoint string `mapstructure:"endpoint"`
		// Language pair passed to the translation service (e.g. it|en).
		LangPair string `mapstructure:"lang_pair"`
		// Number of concurrent translation lookup workers.
		Workers int `mapstructure:"workers"`
		// Timeout in seconds for a single lookup request.
		RequestTimeout int `mapstructure:"request_timeout"`
		// Seconds a cached lookup result remains valid.
		CacheTTL int `mapstructure:"cache_ttl"`
	} `mapstructure:"translation"`

	Challenge struct {
		// Number of words drawn for each match.
		WordCount int `mapstructure:"word_count"`
		// Seconds an unanswered challenge request remains pending.
		RequestTimeout int `mapstructure:"request_timeout"`
		// Seconds both players have to finish a match.
		Duration int `mapstructure:"duration"`
		// Points awarded for a correct translation.
		Reward int `mapstructure:"reward"`
		// Points deducted for a wrong translation (negative value).
		Penalty int `mapstructure:"penalty"`
		// Extra points awarded to the match winner.
		WinnerBonus int `mapstructure:"winner_bonus"`
	} `mapstructure:"challenge"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		Enabled bool `mapstructure:"enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log decoded frames to stdout.
		FrameLoggingEnabled bool `mapstructure:"frame_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "WORDCLASH"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("error reading config file: %v\n", err)
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s\n", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v\n", err)
		os.Exit(1)
	}
	return config
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a postgres connection string generated from the
// provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// GameAddress returns the host:port on which the game server listens.
func (c *Config) GameAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.GameServer.Port)
}

// RegistrationAddress returns the host:port of the registration endpoint.
func (c *Config) RegistrationAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.RegistrationServer.Port)
}

// ChallengeRequestTimeout returns the pending challenge request expiry as a duration.
func (c *Config) ChallengeRequestTimeout() time.Duration {
	return time.Duration(c.Challenge.RequestTimeout) * time.Second
}

// ChallengeDuration returns the match time limit as a duration.
func (c *Config) ChallengeDuration() time.Duration {
	return time.Duration(c.Challenge.Duration) * time.Second
}
