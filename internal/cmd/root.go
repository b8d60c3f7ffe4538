package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/ndvimap/internal/analysis"
	"github.com/MeKo-Tech/ndvimap/internal/geocode"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ndvimap",
	Short: "Interactive NDVI and climate map",
	Long: `ndvimap serves a web map where a region or point is drawn, date periods
are listed and NDVI composites or climate statistics are requested from a
remote analysis service.

The same analysis, geocoding and overlay export are available headless.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("api-url", analysis.DefaultBaseURL, "Base URL of the analysis service")
	rootCmd.PersistentFlags().Duration("api-timeout", 0, "Timeout for analysis requests (0 waits indefinitely)")
	rootCmd.PersistentFlags().String("geocoder-url", geocode.DefaultEndpoint, "Nominatim search endpoint")
	rootCmd.PersistentFlags().String("user-agent", geocode.DefaultUserAgent, "User-Agent sent to Nominatim and tile servers")
	rootCmd.PersistentFlags().Int("geocoder-limit", geocode.DefaultLimit, "Maximum number of geocoding results")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	bindFlags(rootCmd, true, map[string]string{
		"api.base_url":        "api-url",
		"api.timeout":         "api-timeout",
		"geocoder.url":        "geocoder-url",
		"geocoder.user_agent": "user-agent",
		"geocoder.limit":      "geocoder-limit",
		"verbose":             "verbose",
	})
}

// bindFlags binds viper keys to the named flags of cmd.
func bindFlags(cmd *cobra.Command, persistent bool, keys map[string]string) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// NDVIMAP_API_BASE_URL overrides api.base_url
	viper.SetEnvPrefix("NDVIMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func newAnalysisClient() *analysis.Client {
	return analysis.NewClient(analysis.ClientConfig{
		BaseURL: viper.GetString("api.base_url"),
		Timeout: viper.GetDuration("api.timeout"),
		Logger:  logger,
	})
}

func newGeocoder() *geocode.Client {
	return geocode.New(geocode.Config{
		Endpoint:  viper.GetString("geocoder.url"),
		UserAgent: viper.GetString("geocoder.user_agent"),
		Limit:     viper.GetInt("geocoder.limit"),
		Logger:    logger,
	})
}
