package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"permgen/lib/configutil"
	"permgen/lib/refpage"
	"permgen/lib/telemetry"
	"permgen/lib/util/serviceutil"
	"permgen/services/permsync"

	"github.com/spf13/cobra"
)

type Config struct {
	ReferenceUrl      string `json:"reference_url"`
	DangerousUrl      string `json:"dangerous_url"`
	Target            string `json:"target"`
	IncludeDeprecated bool   `json:"include_deprecated"`
	TimeoutSeconds    int    `json:"timeout_seconds"`
	UserAgent         string `json:"user_agent"`
	CloudflareBypass  bool   `json:"cloudflare_bypass"`
	TranscriptDir     string `json:"transcript_dir"`
	CacheDir          string `json:"cache_dir"`
	CacheTtlMinutes   int    `json:"cache_ttl_minutes"`
}

func defaultConfig() Config {
	return Config{
		ReferenceUrl:   refpage.ReferenceURL,
		Target:         permsync.DefaultTarget,
		TimeoutSeconds: int(refpage.DefaultTimeout / time.Second),
		UserAgent:      refpage.DefaultUserAgent,
	}
}

func (c Config) clientOptions() refpage.ClientOptions {
	return refpage.ClientOptions{
		Timeout:          time.Duration(c.TimeoutSeconds) * time.Second,
		UserAgent:        c.UserAgent,
		CloudflareBypass: c.CloudflareBypass,
		TranscriptDir:    c.TranscriptDir,
		CacheDir:         c.CacheDir,
		CacheTTL:         time.Duration(c.CacheTtlMinutes) * time.Minute,
	}
}

var (
	configPath string
	verbose    bool

	config Config
	tel    telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "permgen",
	Short: "permgen regenerates the Android permission tables of Permissions.java from the Android reference.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		tel, err = telemetry.SetupFromEnv(cmd.Context(), "permgen")
		if err != nil {
			slog.Warn("failed to setup telemetry", "err", err)
		}

		config, err = configutil.Load(configPath, defaultConfig())
		if err != nil {
			return fmt.Errorf("read config %s: %w", configPath, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownTelemetry()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "permgen.json5", "The config file, searched for up from the working directory when given as a bare name.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging, and request transcripts when transcript_dir is configured.")
}

// includeDeprecated prefers --include-deprecated over the config file when
// the flag was given.
func includeDeprecated(cmd *cobra.Command, flag bool) bool {
	if cmd.Flags().Changed("include-deprecated") {
		return flag
	}
	return config.IncludeDeprecated
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	err := tel.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		shutdownTelemetry()
		serviceutil.Fatal("permgen failed", err)
	}
}
