package config

import (
	"log/slog"

	"github.com/spf13/viper"
)

func setViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("output", "capture.wav")
	viper.SetDefault("pollinterval", "50ms")
	viper.SetDefault("targetrate", 0) // 0 keeps the region's native rate
	viper.SetDefault("waittimeout", "30s")
	viper.SetDefault("livenesstimeout", "2s")
}

// LoadConfig reads the tapcapture configuration. A missing config file is
// fine (defaults apply); a malformed one is fatal.
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
