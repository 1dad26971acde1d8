package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/udict/udict/cmd/util"
	"github.com/udict/udict/lib/common"
	"github.com/udict/udict/lib/lever"
)

const (
	Version = "1.1.0"
)

var (
	mgr *lever.Manager

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "udict",
		Short: "user dictionary synchronization",
		Long: fmt.Sprintf(`uDict (v%s)

A per-user dictionary store with conflict-free snapshot
synchronization through a shared folder, written in Go.`, Version),
		PersistentPreRunE: setupManager,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of uDict",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("uDict v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common manager flags
	util.SetupManagerFlags(RootCmd)

	// Add Commands
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(backupCmd)
	RootCmd.AddCommand(restoreCmd)
	RootCmd.AddCommand(exportCmd)
	RootCmd.AddCommand(importCmd)
	RootCmd.AddCommand(upgradeCmd)
	RootCmd.AddCommand(syncCmd)
	RootCmd.AddCommand(syncAllCmd)
}

// setupManager initializes the dictionary lifecycle manager
func setupManager(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	common.SetLogLevel(viper.GetString("log-level"))
	mgr = lever.NewManager(util.GetManagerConfig(Version))
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
