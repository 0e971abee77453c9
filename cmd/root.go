package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dTS/cmd/router"
	"github.com/ValentinKolb/dTS/cmd/serve"
	"github.com/ValentinKolb/dTS/cmd/tuple"
	"github.com/ValentinKolb/dTS/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dts",
		Short: "replicated tuple space",
		Long: fmt.Sprintf(`dTS (v%s)

A replicated, associative tuple space written in Go. A switch fans every
request out to N replicas, each holding a hash-bucketed tuple store.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dTS",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dTS v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(router.SwitchCmd)
	RootCmd.AddCommand(tuple.TupleCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, json)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
