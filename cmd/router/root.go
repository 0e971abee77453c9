package router

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dTS/cmd/util"
	"github.com/ValentinKolb/dTS/rpc/common"
	rpcRouter "github.com/ValentinKolb/dTS/rpc/router"
	"github.com/ValentinKolb/dTS/rpc/transport/base"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	switchCmdConfig = &common.SwitchConfig{}
	SwitchCmd       = &cobra.Command{
		Use:     "switch",
		Short:   "Start the switch in front of the replicas",
		Long:    `Start the switch. It accepts client connections and forwards every request to the replicas: writes (out, in, in-all) go to all replicas, reads (size, copy, copy-all) to the replica selected by --read-affinity or to all of them. The configuration can be set via command line flags or environment variables (DTS_<flag>, e.g. DTS_REPLICAS=a:9100,b:9100). A replica that used up its retry budget is disabled; send SIGHUP to the switch to enable it again`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupTransportFlags(SwitchCmd)

	key := "endpoint"
	SwitchCmd.PersistentFlags().String(key, "0.0.0.0:9000", cmdUtil.WrapString("The address on which the switch accepts clients (e.g. localhost:9000, /tmp/dts.sock, ...)"))

	key = "replicas"
	SwitchCmd.PersistentFlags().String(key, "localhost:9100", cmdUtil.WrapString("Comma-separated list of replica endpoints. The position in the list is the replica id"))

	key = "read-affinity"
	SwitchCmd.PersistentFlags().Int(key, common.NoReadAffinity, cmdUtil.WrapString("Id of the replica serving reads. -1 sends reads to all replicas and answers with the first reply"))

	key = "retry-budget"
	SwitchCmd.PersistentFlags().Int(key, 3, cmdUtil.WrapString("Reconnect attempts per replica before it is disabled"))

	key = "retry-interval"
	SwitchCmd.PersistentFlags().Duration(key, base.DefaultRetryInterval, cmdUtil.WrapString("Pause between two reconnect attempts"))

	key = "request-timeout"
	SwitchCmd.PersistentFlags().Duration(key, 0, cmdUtil.WrapString("How long to wait for the replicas before a request fails (0 waits forever)"))

	key = "inbox-size"
	SwitchCmd.PersistentFlags().Int(key, common.DefaultInboxSize, cmdUtil.WrapString("Requests queued per replica. A full inbox holds new requests back until there is room or the request timed out"))

	key = "metrics-endpoint"
	SwitchCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the HTTP endpoint serving /metrics (empty disables it)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the switch configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// parse replicas
	switchCmdConfig.Replicas = nil
	for _, endpoint := range strings.Split(viper.GetString("replicas"), ",") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			switchCmdConfig.Replicas = append(switchCmdConfig.Replicas, endpoint)
		}
	}

	switchCmdConfig.Endpoint = viper.GetString("endpoint")
	switchCmdConfig.Transport = cmdUtil.GetTransportConfig()
	switchCmdConfig.ReadAffinity = viper.GetInt("read-affinity")
	switchCmdConfig.RetryBudget = viper.GetInt("retry-budget")
	switchCmdConfig.RetryInterval = viper.GetDuration("retry-interval")
	switchCmdConfig.RequestTimeout = viper.GetDuration("request-timeout")
	switchCmdConfig.InboxSize = viper.GetInt("inbox-size")
	switchCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	switchCmdConfig.LogLevel = viper.GetString("log-level")

	if err := switchCmdConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return common.InitLoggers(switchCmdConfig.LogLevel)
}

// run starts the switch
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	serverTransport, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	clientTransport, err := cmdUtil.GetClientTransport()
	if err != nil {
		return err
	}

	sw, err := rpcRouter.NewSwitch(*switchCmdConfig, serverTransport, clientTransport, s)
	if err != nil {
		return err
	}

	rpcRouter.Logger.Infof("Created switch")
	rpcRouter.Logger.Infof(switchCmdConfig.String())

	if _, err := sw.Listen(); err != nil {
		return err
	}

	ctx, cancel := cmdUtil.SignalContext()
	defer cancel()
	go enableOnHangup(ctx, sw)
	return sw.Serve(ctx)
}

// enableOnHangup re-enables disabled replicas on every SIGHUP until ctx is done
func enableOnHangup(ctx context.Context, sw *rpcRouter.Switch) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if ids := sw.EnableDisabledReplicas(); len(ids) == 0 {
				rpcRouter.Logger.Infof("SIGHUP: no replica is disabled")
			}
		}
	}
}
