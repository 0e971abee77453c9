package serve

import (
	cmdUtil "github.com/ValentinKolb/dTS/cmd/util"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a tuple space replica",
		Long:    `Start a replica holding one tuple store. The switch forwards client requests to its replicas. The configuration can be set via command line flags or environment variables. The format of the environment variables is DTS_<flag> (e.g. DTS_SLOTS=64)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupTransportFlags(ServeCmd)

	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:9100", cmdUtil.WrapString("The address on which the replica will listen (e.g. localhost:9100, /tmp/dts-replica.sock, ...)"))

	key = "slots"
	ServeCmd.PersistentFlags().Int(key, 1024, cmdUtil.WrapString("Number of hash slots of the tuple store"))

	key = "dimension"
	ServeCmd.PersistentFlags().Int(key, 3, cmdUtil.WrapString("Number of elements of every tuple (0 accepts any dimension)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the HTTP endpoint serving /metrics (empty disables it)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport = cmdUtil.GetTransportConfig()
	serveCmdConfig.Slots = viper.GetInt("slots")
	serveCmdConfig.Dimension = viper.GetInt("dimension")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the replica
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv, err := server.NewRPCServer(*serveCmdConfig, t, s)
	if err != nil {
		return err
	}

	if _, err := serv.Listen(); err != nil {
		return err
	}

	ctx, cancel := cmdUtil.SignalContext()
	defer cancel()
	return serv.Serve(ctx)
}
