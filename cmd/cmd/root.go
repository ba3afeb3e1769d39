package cmd

import (
	"github.com/spf13/cobra"
)

const AppName = "fatio"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - embedded FAT12/16/32 I/O manager",
	}

	rootCmd.AddCommand(DefineVolumeInfoCommand())
	rootCmd.AddCommand(DefineDumpSectorCommand())

	return rootCmd.Execute()
}
