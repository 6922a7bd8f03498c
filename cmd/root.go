package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cloutcash-matcher/internal/matching"
	"github.com/spigell/cloutcash-matcher/internal/scoring"
	"github.com/spigell/cloutcash-matcher/internal/server"
)

const (
	app = "cloutcash"

	defaultProfilesFile = "profiles.yaml"
	defaultDataDir      = ".cloutcash"
)

type Config struct {
	ProfilesFile string           `mapstructure:"profiles-file"`
	DataDir      string           `mapstructure:"data-dir"`
	Matching     matching.Config  `mapstructure:"matching"`
	Scoring      scoring.Config   `mapstructure:"scoring"`
	Server       server.Config    `mapstructure:"server"`
	Exclusion    *ExclusionConfig `mapstructure:"exclusion"`
	AI           *AIConfig        `mapstructure:"ai"`
}

type ExclusionConfig struct {
	// ResetSchedule is a cron spec. Empty disables scheduled resets.
	ResetSchedule string `mapstructure:"reset-schedule"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cloutcash matches brands with creators and pages through ranked candidates",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("data-dir", "CLOUTCASH_DATA_DIR"); err != nil {
		log.Fatalf("binding CLOUTCASH_DATA_DIR environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cloutcash.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("profiles-file", "", "profiles file with creators and campaigns (default is "+defaultProfilesFile+")")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for the exclusion store and the interaction log (default is "+defaultDataDir+")")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("profiles-file", rootCmd.PersistentFlags().Lookup("profiles-file"))
	viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so a missing implicit config is fine.
	// An explicit one must parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	config := &Config{
		ProfilesFile: defaultProfilesFile,
		DataDir:      defaultDataDir,
		Matching:     matching.DefaultConfig(),
		Scoring:      scoring.DefaultConfig(),
		Exclusion:    &ExclusionConfig{},
		AI:           &AIConfig{},
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if config.ProfilesFile == "" {
		config.ProfilesFile = defaultProfilesFile
	}
	if config.DataDir == "" {
		config.DataDir = defaultDataDir
	}
	if config.Exclusion == nil {
		config.Exclusion = &ExclusionConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}

	if err := config.Scoring.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
