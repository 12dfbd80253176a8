package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootCmdConfig struct {
	verbose bool
	log     *appLogger
}

func main() {
	if err := cliParser().Execute(); err != nil {
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "napkinxc",
		Short: "napkinxc trains and serves extreme multi-label classifiers",
		Long:  `A tool to train label-tree and label-graph classifiers over very large label spaces, test them, and use them to rank labels for new examples.`,
	}
	config := &rootCmdConfig{}
	rootCmd.PersistentFlags().BoolVarP(&(config.verbose), "verbose", "v", false, "log progress to stderr")
	rootCmd.AddCommand(versionCmd(), trainCmd(config), testCmd(config), predictCmd(config), treeCmd(config))
	return rootCmd
}

func (c *rootCmdConfig) Log() *appLogger {
	if c.log == nil {
		c.log = newAppLogger(c.verbose)
	}
	return c.log
}
