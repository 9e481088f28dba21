package cmd

import (
	"strings"

	"github.com/Iron-Ham/statebridge/internal/config"
	"github.com/Iron-Ham/statebridge/internal/statesync"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "statebridge",
	Short: "Read, write and stream shared state documents",
	Long: `Statebridge connects to the shared state store (Cloud Firestore, with an
optional Firebase Realtime Database) and lets you write enriched state
documents, read them back, and stream live changes.

Credentials are resolved in order: an explicit service account file,
GOOGLE_APPLICATION_CREDENTIALS, FIREBASE_SERVICE_ACCOUNT, and finally the
platform default credentials.`,
	SilenceUsage: true,
}

// Manager factory, replaced in tests.
var newManager = statesync.Default

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/statebridge/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "store backend: firestore, memory or bolt")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("STATEBRIDGE")
	// e.g., STATEBRIDGE_STATE_COLLECTION for state.collection
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
