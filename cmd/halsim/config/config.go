package config

import (
	"log/slog"

	"github.com/spf13/viper"
)

func setViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("samplerate", 48000)
	viper.SetDefault("capacityframes", 96000)
	viper.SetDefault("quantumframes", 512)
	viper.SetDefault("source", "sine") // sine | mic
	viper.SetDefault("frequency", 440.0)
	viper.SetDefault("duration", "0s") // 0 runs until interrupted
}

// LoadConfig reads the halsim configuration. A missing config file is fine
// (defaults apply); a malformed one is fatal.
func LoadConfig(configFilePath string) {
	setViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			panic(err)
		}
	}
}
