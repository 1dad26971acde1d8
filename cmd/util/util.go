package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/udict/udict/lib/lever"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupManagerFlags adds the common dictionary-manager flags to a command
func SetupManagerFlags(cmd *cobra.Command) {
	key := "user-data-dir"
	cmd.PersistentFlags().String(key, defaultDataDir(), WrapString("Directory holding the local dictionary stores"))

	key = "sync-dir"
	cmd.PersistentFlags().String(key, defaultSyncDir(), WrapString("Shared synchronization directory, one subdirectory per peer"))

	key = "user-id"
	cmd.PersistentFlags().String(key, defaultUserID(), WrapString("Identity of this installation, used to publish snapshots"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("udict")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetManagerConfig reads the manager configuration from viper
func GetManagerConfig(version string) lever.Config {
	return lever.Config{
		UserDataDir: viper.GetString("user-data-dir"),
		SyncDir:     viper.GetString("sync-dir"),
		UserID:      viper.GetString("user-id"),
		Version:     version,
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".udict")
	}
	return ".udict"
}

func defaultSyncDir() string {
	return filepath.Join(defaultDataDir(), "sync")
}

func defaultUserID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}
