package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"bepro/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	appCfg  config.Config
)

// rootCmd is the base command called without any subcommands.
var rootCmd = &cobra.Command{
	Use:          "bepro",
	Short:        "BePro feed service",
	Long:         "Personalized developer feed: ranking, suggestions, missions and digests.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override app.log_level (debug|info|warn|error)")
	_ = viper.BindPFlag("app.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// .env only fills variables the process environment does not set
	envLoaded := false
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "error reading .env: %v\n", err)
			os.Exit(1)
		}
		envLoaded = true
	}

	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/bepro")
		v.AddConfigPath("configs")
	}
	if err := config.BindEnv(v); err != nil {
		fmt.Fprintf(os.Stderr, "error binding env: %v\n", err)
		os.Exit(1)
	}

	configErr := v.ReadInConfig()
	if configErr != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(configErr, &nf) {
			fmt.Fprintf(os.Stderr, "error reading config: %v\n", configErr)
			os.Exit(1)
		}
	}

	if err := v.Unmarshal(&appCfg); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing config: %v\n", err)
		os.Exit(1)
	}
	appCfg.FillDefaults()
	setupLogging(appCfg.App.LogLevel)

	if configErr == nil {
		slog.Debug("config: loaded", "file", v.ConfigFileUsed())
	}
	if envLoaded {
		slog.Debug("config: loaded .env")
	}
}

func setupLogging(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// GetConfig exposes the loaded configuration to subcommands.
func GetConfig() config.Config {
	return appCfg
}
