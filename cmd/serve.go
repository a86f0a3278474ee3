package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/showcontroller/oscws/server"
)

var serveConfig = server.DefaultConfig()

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OSC WebSocket test server",
	Long: `Start the OSC WebSocket test server. Every client receives a random OSC
message (or a nested bundle with --bundle) at the given interval and gets its
own payloads echoed back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(serveConfig)
		if err != nil {
			return errors.Wrap(err, "creating server")
		}
		return errors.Wrap(srv.ListenAndServe(cmd.Context()), "running server")
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&serveConfig.Addr, "addr", serveConfig.Addr, "websocket listen address")
	flags.DurationVar(&serveConfig.Interval, "interval", serveConfig.Interval, "time between generated packets (0 disables them)")
	flags.BoolVar(&serveConfig.Bundle, "bundle", serveConfig.Bundle, "send nested bundles instead of single messages")
	flags.StringVar(&serveConfig.Address, "address", serveConfig.Address, "OSC address of generated messages")
	flags.StringVar(&serveConfig.StreamAddr, "stream-addr", serveConfig.StreamAddr, "SLIP over TCP listen address (empty disables it)")
	flags.BoolVar(&serveConfig.Echo, "echo", serveConfig.Echo, "echo client payloads")
	RootCmd.AddCommand(serveCmd)
}
