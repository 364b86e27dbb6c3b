package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-match-pro"
)

type Config struct {
	Subject  *SubjectConfig  `mapstructure:"subject"`
	Cache    *CacheConfig    `mapstructure:"cache"`
	Compute  *ComputeConfig  `mapstructure:"compute"`
	Batch    *BatchConfig    `mapstructure:"batch"`
	Progress *ProgressConfig `mapstructure:"progress"`
	Listing  *ListingConfig  `mapstructure:"listing"`
	Server   *ServerConfig   `mapstructure:"server"`
}

type SubjectConfig struct {
	ID   string `mapstructure:"id"`
	File string `mapstructure:"file"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	Dir     string        `mapstructure:"dir"`
	Redis   *RedisConfig  `mapstructure:"redis"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type ComputeConfig struct {
	Provider string          `mapstructure:"provider"`
	Timeout  time.Duration   `mapstructure:"timeout"`
	Workflow *WorkflowConfig `mapstructure:"workflow"`
	Gemini   *GeminiConfig   `mapstructure:"gemini"`
}

type WorkflowConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type BatchConfig struct {
	Phase        string        `mapstructure:"phase"`
	Concurrency  int           `mapstructure:"concurrency"`
	MaxRetries   int           `mapstructure:"max-retries"`
	RetryBackoff time.Duration `mapstructure:"retry-backoff"`
}

type ProgressConfig struct {
	Dir string `mapstructure:"dir"`
}

type ListingConfig struct {
	Source      string `mapstructure:"source"`
	File        string `mapstructure:"file"`
	PostgresURL string `mapstructure:"postgres-url"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-match-pro evaluates a resume against job postings through a cached scoring workflow",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("compute.workflow.api-key-file", "WORKFLOW_API_KEY_FILE"); err != nil {
		log.Fatalf("binding WORKFLOW_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("compute.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is "+app+".yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
