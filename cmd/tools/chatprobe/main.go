package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/scatty/backend/internal/model/protocol"
)

type options struct {
	url       string
	sessionID string
	text      string
	framePath string
	keep      bool
	timeout   time.Duration
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "chatprobe",
	Short: "Send one turn to a running Scatty backend and print the server events",
	Long: `chatprobe opens the realtime websocket, performs the session:start handshake,
sends a single transcript (or a vision event when --frame is given and the text asks
to look at something) and prints every server event until the session is idle again.

Environment Variables:
  PORT   - used for the default --url when set`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
		defer cancel()
		return probe(ctx, opts, cmd.OutOrStdout())
	},
}

func init() {
	_ = godotenv.Load()

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3001"
	}

	rootCmd.Flags().StringVar(&opts.url, "url", "ws://localhost:"+port+"/ws", "websocket endpoint")
	rootCmd.Flags().StringVarP(&opts.sessionID, "session", "s", "", "session id (default: random)")
	rootCmd.Flags().StringVarP(&opts.text, "text", "t", "Hello Scatty!", "what to say")
	rootCmd.Flags().StringVarP(&opts.framePath, "frame", "f", "", "image file to attach as a camera frame")
	rootCmd.Flags().BoolVar(&opts.keep, "keep", false, "keep the session instead of sending session:end")
	rootCmd.Flags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "overall timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildTurn picks the event to send. A frame is only attached when the text asks to look
// or is empty.
func buildTurn(sessionID, text, framePath string) (protocol.ClientEvent, error) {
	if framePath == "" || (strings.TrimSpace(text) != "" && !protocol.DetectVisionIntent(text)) {
		return protocol.Transcript{Text: text, IsFinal: true, SessionID: sessionID}, nil
	}

	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	frame := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(data), base64.StdEncoding.EncodeToString(data))
	return protocol.Vision{Text: text, Frame: frame, SessionID: sessionID}, nil
}

func probe(ctx context.Context, o options, out io.Writer) error {
	sessionID := o.sessionID
	if sessionID == "" {
		sessionID = "probe-" + uuid.NewString()
	}

	turn, err := buildTurn(sessionID, o.text, o.framePath)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, o.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", o.url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	if err := write(conn, protocol.SessionStart{SessionID: sessionID}); err != nil {
		return err
	}
	if err := readUntilIdle(conn, out, false); err != nil {
		return err
	}

	fmt.Fprintf(out, "-> %s\n", turn.Name())
	if err := write(conn, turn); err != nil {
		return err
	}
	turnErr := readUntilIdle(conn, out, true)

	if !o.keep {
		if err := write(conn, protocol.SessionEnd{SessionID: sessionID}); err != nil && turnErr == nil {
			return err
		}
	}
	return turnErr
}

var errTurnFailed = errors.New("turn failed")

// readUntilIdle prints events until state:update{idle}. When a turn is expected, an error
// that arrives before any busy state also ends the turn.
func readUntilIdle(conn *websocket.Conn, out io.Writer, turn bool) error {
	busy, failed := false, false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		ev, err := protocol.DecodeServer(raw)
		if err != nil {
			fmt.Fprintf(out, "<- (undecodable) %s\n", raw)
			continue
		}

		switch e := ev.(type) {
		case protocol.StateUpdate:
			fmt.Fprintf(out, "<- %s %s\n", e.Name(), e.State)
			if e.State.Busy() {
				busy = true
			}
			if e.State == protocol.StateIdle && (busy || !turn) {
				if failed {
					return errTurnFailed
				}
				return nil
			}
		case protocol.ResponseComplete:
			fmt.Fprintf(out, "<- %s [%s %.2f] %s\n", e.Name(), e.Emotion.Emotion, e.Emotion.Intensity, e.FullText)
		case protocol.Error:
			fmt.Fprintf(out, "<- %s (%s) %s\n", e.Name(), e.Code, e.Message)
			failed = true
			if turn && !busy {
				return errTurnFailed
			}
		default:
			fmt.Fprintf(out, "<- %s\n", ev.Name())
		}
	}
}

func write(conn *websocket.Conn, ev protocol.ClientEvent) error {
	frame, err := protocol.EncodeClient(ev, time.Now())
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", ev.Name(), err)
	}
	return nil
}
