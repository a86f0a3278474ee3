package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/showcontroller/oscws/bridge"
)

var bridgeConfig = bridge.DefaultConfig()

// bridgeCmd represents the bridge command
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Relay OSC between UDP and WebSocket clients",
	Long: `Relay OSC between UDP and WebSocket clients. Datagrams arriving on
--udp-listen are sent to every WebSocket client, WebSocket payloads are sent
to --udp-target.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := bridge.New(bridgeConfig, nil)
		if err != nil {
			return errors.Wrap(err, "creating bridge")
		}
		return errors.Wrap(b.ListenAndServe(cmd.Context()), "running bridge")
	},
}

func init() {
	flags := bridgeCmd.Flags()
	flags.StringVar(&bridgeConfig.UDPListen, "udp-listen", bridgeConfig.UDPListen, "UDP listen address")
	flags.StringVar(&bridgeConfig.UDPTarget, "udp-target", bridgeConfig.UDPTarget, "UDP address receiving websocket payloads")
	flags.StringVar(&bridgeConfig.WSAddr, "ws-addr", bridgeConfig.WSAddr, "websocket listen address")
	flags.BoolVar(&bridgeConfig.Exclusive, "exclusive", bridgeConfig.Exclusive, "bind the UDP address exclusively")
	RootCmd.AddCommand(bridgeCmd)
}
