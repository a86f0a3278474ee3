package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/eiannone/keyboard"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/showcontroller/oscws/generator"
	"github.com/showcontroller/oscws/osc"
)

var clientURL = "ws://127.0.0.1:8000/"

// clientCmd represents the client command
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Interactive WebSocket client printing received OSC packets",
	Long: `Connect to an oscws server and print every OSC packet it sends.
Press m to send a random message, b to send a random bundle, Esc or q to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), clientURL, nil)
		if err != nil {
			return errors.Wrapf(err, "connecting to %s", clientURL)
		}
		defer conn.Close()

		if err := keyboard.Open(); err != nil {
			return errors.Wrap(err, "opening keyboard")
		}
		defer keyboard.Close()

		// The terminal is in raw mode while the keyboard is open.
		out := crlfWriter{os.Stdout}
		c := newClient(conn, out)
		fmt.Fprintf(out, "connected to %s, press m, b or Esc\n", clientURL)

		readErr := make(chan error, 1)
		go func() { readErr <- c.printFrames() }()

		keys := make(chan keyEvent)
		go readKeys(keys)

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case err := <-readErr:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					fmt.Fprintf(out, "server closed the connection: %v\n", err)
					return nil
				}
				return errors.Wrap(err, "reading from server")
			case ev := <-keys:
				if ev.err != nil {
					return errors.Wrap(ev.err, "reading keyboard")
				}
				quit, err := c.handleKey(ev.char, ev.key)
				if err != nil || quit {
					c.close()
					return err
				}
			}
		}
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientURL, "url", clientURL, "websocket URL of the server")
	RootCmd.AddCommand(clientCmd)
}

type keyEvent struct {
	char rune
	key  keyboard.Key
	err  error
}

func readKeys(keys chan<- keyEvent) {
	for {
		char, key, err := keyboard.GetKey()
		keys <- keyEvent{char, key, err}
		if err != nil {
			return
		}
	}
}

// client sends generated packets to a server and prints what it receives.
type client struct {
	conn *websocket.Conn
	gen  *generator.Generator
	out  io.Writer
}

func newClient(conn *websocket.Conn, out io.Writer) *client {
	return &client{conn: conn, gen: generator.New(), out: out}
}

// handleKey reacts to one key press and reports whether to quit.
func (c *client) handleKey(char rune, key keyboard.Key) (bool, error) {
	var p osc.Packet
	switch {
	case key == keyboard.KeyEsc, key == keyboard.KeyCtrlC, char == 'q':
		return true, nil
	case char == 'm':
		p = c.gen.Message()
	case char == 'b':
		p = c.gen.Bundle()
	default:
		return false, nil
	}

	b, err := p.MarshalBinary()
	if err != nil {
		return false, errors.Wrap(err, "encoding packet")
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return false, errors.Wrap(err, "sending packet")
	}
	fmt.Fprintf(c.out, "sent %d bytes\n", len(b))
	return false, nil
}

// printFrames prints every frame read from the connection until it fails.
func (c *client) printFrames() error {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt == websocket.TextMessage {
			fmt.Fprintf(c.out, "-- text: %q\n", data)
			continue
		}
		p, err := osc.ParsePacket(data)
		if err != nil {
			fmt.Fprintf(c.out, "-- %d bytes, not OSC: %v\n", len(data), err)
			continue
		}
		osc.FprintPacket(c.out, p)
	}
}

func (c *client) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteMessage(websocket.CloseMessage, msg)
}

// crlfWriter turns "\n" into "\r\n".
type crlfWriter struct {
	w io.Writer
}

func (cw crlfWriter) Write(p []byte) (int, error) {
	if _, err := cw.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
