package tuple

import (
	"context"

	"github.com/ValentinKolb/dTS/cmd/util"
	"github.com/ValentinKolb/dTS/rpc/client"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcTupleSpace client.ITupleSpace
	dimension     int

	// TupleCommands represents the tuple space command group
	TupleCommands = &cobra.Command{
		Use:   "tuple",
		Short: "Perform tuple space operations",
		Long: `Perform tuple space operations against a switch (or a single replica).

Tuples and templates are written as quoted elements, * is the null element
(a wildcard in templates):

  dts tuple out '"a" "b" "c"'
  dts tuple copy-all '"a" * *'`,
		PersistentPreRunE:  setupTupleClient,
		PersistentPostRunE: closeTupleClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the tuple command
	util.SetupRPCClientFlags(TupleCommands)

	// Add subcommands
	TupleCommands.AddCommand(outCmd)
	TupleCommands.AddCommand(inCmd)
	TupleCommands.AddCommand(inAllCmd)
	TupleCommands.AddCommand(copyCmd)
	TupleCommands.AddCommand(copyAllCmd)
	TupleCommands.AddCommand(sizeCmd)
	TupleCommands.AddCommand(perfTestCmd)
}

// setupTupleClient initializes the tuple space client
func setupTupleClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	dimension = config.Dimension

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	// Create the tuple space client
	rpcTupleSpace, err = client.NewRPCTupleSpace(
		context.Background(),
		*config,
		t,
		s,
	)

	return err
}

// closeTupleClient ends the session with QUIT
func closeTupleClient(_ *cobra.Command, _ []string) error {
	if rpcTupleSpace == nil {
		return nil
	}
	return rpcTupleSpace.Close()
}
