package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	nodebook "github.com/gnowledge/nodeBook-sub003"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of nodebook",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nodebook version %s\n", strings.TrimSpace(nodebook.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
