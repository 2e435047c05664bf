package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/trucklink-io/trucklink/pkg/log"
)

const configFlagName = "config"

var cfgFile string

func init() {
	pflag.StringVarP(&cfgFile, configFlagName, "c", cfgFile,
		"Read configuration from specified `FILE`, support JSON, TOML, YAML, HCL, or Java properties formats.")
}

// addConfigFlag adds flags for a specific application to the specified
// FlagSet object, and wires viper up to the config file and environment.
func addConfigFlag(basename string, fs *pflag.FlagSet) {
	fs.AddFlag(pflag.Lookup(configFlagName))

	viper.AutomaticEnv()
	viper.SetEnvPrefix(strings.ReplaceAll(strings.ToUpper(basename), "-", "_"))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath(".")

			if names := strings.Split(basename, "-"); len(names) > 1 {
				viper.AddConfigPath(filepath.Join(homeDir(), "."+names[0]))
				viper.AddConfigPath(filepath.Join("/etc", names[0]))
			}

			viper.SetConfigName(basename)
		}

		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return
			}

			log.Error(err, "Reading configuration file", "file", viper.ConfigFileUsed())
			os.Exit(1)
		}

		// Reconfiguration on change is up to the application; here we
		// only make the new values visible through viper.
		viper.WatchConfig()
		viper.OnConfigChange(func(in fsnotify.Event) {
			log.Info("Configuration file changed", "file", in.Name)
		})
	})
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return home
}
