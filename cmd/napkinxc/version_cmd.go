package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	// VersionMajor is the major number in napkinxc's version.
	VersionMajor = 0
	// VersionMinor is the minor number in napkinxc's version.
	VersionMinor = 1
	// VersionPatch is the patch number in napkinxc's version.
	VersionPatch = 0
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of napkinxc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("napkinxc v%d.%d.%d\n", VersionMajor, VersionMinor, VersionPatch)
		},
	}
}
