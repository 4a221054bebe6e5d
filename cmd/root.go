package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	dbPath    string
	redisURL  string
	apiURL    string
	apiToken  string
	workspace string
	pageSize  int
	logLevel  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "triage-console",
	Short: "Terminal-first alert and case triage console",
	Long: `Triage Console is a terminal-first tool for browsing and triaging
security alerts and cases, either against a remote triage API or a
local SQLite database.

Features:
- Cursor-paginated alert and case browsing
- Search and status/priority/severity/tag filtering
- Terminal user interface with keyboard-driven navigation
- Redis Streams change notifications for multi-console refresh
- Offline mode backed by SQLite with folder-based alert ingestion`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.triage-console.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/triage-console.db", "SQLite database path for offline mode")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "redis://localhost:6379", "Redis connection URL for change notifications")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Base URL of the triage API (empty for offline mode)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "api-token", "", "Bearer token for the triage API")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace ID for API requests")
	rootCmd.PersistentFlags().IntVar(&pageSize, "page-size", 20, "Rows per page in listings")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("api.token", rootCmd.PersistentFlags().Lookup("api-token"))
	viper.BindPFlag("api.workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	viper.BindPFlag("page.size", rootCmd.PersistentFlags().Lookup("page-size"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".triage-console" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".triage-console")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Set defaults
	viper.SetDefault("database.path", "./data/triage-console.db")
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("api.url", "")
	viper.SetDefault("api.token", "")
	viper.SetDefault("api.workspace", "")
	viper.SetDefault("api.timeout", "15s")
	viper.SetDefault("page.size", 20)
	viper.SetDefault("log.level", "info")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		API: APIConfig{
			URL:       viper.GetString("api.url"),
			Token:     viper.GetString("api.token"),
			Workspace: viper.GetString("api.workspace"),
			Timeout:   viper.GetDuration("api.timeout"),
		},
		Page: PageConfig{
			Size: viper.GetInt("page.size"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	API      APIConfig      `mapstructure:"api"`
	Page     PageConfig     `mapstructure:"page"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type APIConfig struct {
	URL       string        `mapstructure:"url"`
	Token     string        `mapstructure:"token"`
	Workspace string        `mapstructure:"workspace"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type PageConfig struct {
	Size int `mapstructure:"size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}
