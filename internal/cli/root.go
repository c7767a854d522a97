// Package cli implements the emojicam command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/emojicam/internal/config"
	"github.com/ayusman/emojicam/internal/log"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "emojicam",
	Short: "Show your facial emotion as an emoji",
	Long: `emojicam reads the webcam, recognizes the dominant facial emotion of
the first face in view and shows it as an emoji next to the mirrored,
annotated video feed.

Readings can be journaled to SQLite and watched from a browser through the
optional preview server.`,
	SilenceUsage: true,
	RunE:         runCamera,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to the YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("journal-path", "", "SQLite journal location")

	rootCmd.Flags().Int("camera", 0, "Camera device index")
	rootCmd.Flags().String("ui", config.UIWindow, "UI mode: window, tray or none")
	rootCmd.Flags().String("detector", config.BackendOpenCV, "Detector backend: opencv or service")
	rootCmd.Flags().String("face-model", "", "Face model (Haar cascade .xml or YuNet .onnx)")
	rootCmd.Flags().String("emotion-model", "", "Emotion classifier (.onnx)")
	rootCmd.Flags().StringSlice("detector-command", nil, "Command starting the detection service")
	rootCmd.Flags().Bool("journal", false, "Record readings to the journal")
	rootCmd.Flags().String("preview", "", "Preview server address, e.g. :8080")
}

// loadConfig reads the config file and environment, then applies the
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = mustGetString(cmd, "log-level")
	}
	if flags.Changed("journal-path") {
		cfg.Journal.Path = mustGetString(cmd, "journal-path")
	}
	if flags.Lookup("camera") != nil {
		if flags.Changed("camera") {
			cfg.Camera.Device = mustGetInt(cmd, "camera")
		}
		if flags.Changed("ui") {
			cfg.UI.Mode = mustGetString(cmd, "ui")
		}
		if flags.Changed("detector") {
			cfg.Detector.Backend = mustGetString(cmd, "detector")
		}
		if flags.Changed("face-model") {
			cfg.Detector.FaceModel = mustGetString(cmd, "face-model")
		}
		if flags.Changed("emotion-model") {
			cfg.Detector.EmotionModel = mustGetString(cmd, "emotion-model")
		}
		if flags.Changed("detector-command") {
			cfg.Detector.Command = mustGetStringSlice(cmd, "detector-command")
		}
		if flags.Changed("journal") {
			cfg.Journal.Enabled = mustGetBool(cmd, "journal")
		}
		if flags.Changed("preview") {
			cfg.Preview.Addr = mustGetString(cmd, "preview")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(cfg.LogLevel)
	return cfg, nil
}
