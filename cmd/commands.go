package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all local dictionaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range mgr.List() {
				fmt.Println(name)
			}
			return nil
		},
	}
	backupCmd = &cobra.Command{
		Use:   "backup [dict]",
		Short: "Exports a snapshot of a dictionary to the sync directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.Backup(args[0]); err != nil {
				return err
			}
			fmt.Println("backup successful")
			return nil
		},
	}
	restoreCmd = &cobra.Command{
		Use:   "restore [snapshot-file]",
		Short: "Merges a snapshot file into the dictionary it was exported from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.Restore(args[0]); err != nil {
				return err
			}
			fmt.Println("restore successful")
			return nil
		},
	}
	exportCmd = &cobra.Command{
		Use:   "export [dict] [file]",
		Short: "Exports a dictionary to a tab-separated text file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := mgr.Export(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%d entries exported\n", n)
			return nil
		},
	}
	importCmd = &cobra.Command{
		Use:   "import [dict] [file]",
		Short: "Imports entries from a tab-separated text file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := mgr.Import(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%d entries imported\n", n)
			return nil
		},
	}
	upgradeCmd = &cobra.Command{
		Use:   "upgrade [dict]",
		Short: "Upgrades a dictionary written by a legacy version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.Upgrade(args[0]); err != nil {
				return err
			}
			fmt.Println("upgrade successful")
			return nil
		},
	}
	syncCmd = &cobra.Command{
		Use:   "sync [dict]",
		Short: "Synchronizes a dictionary with all peers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.Synchronize(args[0]); err != nil {
				return err
			}
			fmt.Println("synchronize successful")
			return nil
		},
	}
	syncAllCmd = &cobra.Command{
		Use:   "sync-all",
		Short: "Synchronizes all local dictionaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.SynchronizeAll(); err != nil {
				return err
			}
			fmt.Println("synchronize successful")
			return nil
		},
	}
)
