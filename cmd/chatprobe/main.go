// Command chatprobe logs in as a user, listens on that user's private channel
// and prints every pushed event. With -conversation and -send it posts one
// message first, which makes it handy for checking fan-out end to end.
//
//	CHATPROBE_EMAIL=bob@example.com CHATPROBE_PASSWORD=secret123 go run ./cmd/chatprobe -base http://localhost:5000
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Bazaar/pkg/logger"
)

type options struct {
	base           string
	email          string
	password       string
	conversationID string
	send           string
	timeout        time.Duration
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.base, "base", envOr("CHATPROBE_BASE_URL", "http://127.0.0.1:5000"), "server base URL")
	flag.StringVar(&o.email, "email", os.Getenv("CHATPROBE_EMAIL"), "login email")
	flag.StringVar(&o.password, "password", os.Getenv("CHATPROBE_PASSWORD"), "login password")
	flag.StringVar(&o.conversationID, "conversation", "", "conversation to send into")
	flag.StringVar(&o.send, "send", "", "message to send after connecting")
	flag.DurationVar(&o.timeout, "timeout", 0, "stop listening after this long (0 = until interrupted)")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	log, err := logger.New("development", envOr("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(o, log); err != nil {
		log.Fatal("chatprobe failed", zap.Error(err))
	}
}

func run(o options, log *zap.Logger) error {
	if o.email == "" || o.password == "" {
		return errors.New("email and password are required (flags or CHATPROBE_EMAIL / CHATPROBE_PASSWORD)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	client := &http.Client{Timeout: 10 * time.Second}
	tok, userID, err := login(ctx, client, o)
	if err != nil {
		return err
	}
	log.Info("logged in", zap.String("user_id", userID))

	conn, err := dial(ctx, o.base, tok)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"event": "join", "data": userID}); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	if o.conversationID != "" && o.send != "" {
		if err := sendMessage(ctx, client, o, tok); err != nil {
			return err
		}
		log.Info("message sent", zap.String("conversation_id", o.conversationID))
	}

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		log.Info("event", zap.String("event", frame.Event), zap.ByteString("data", frame.Data))
	}
}

func postJSON(ctx context.Context, client *http.Client, endpoint, tok string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(res.Body).Decode(&e)
		return fmt.Errorf("POST %s: %d %s", endpoint, res.StatusCode, e.Message)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func login(ctx context.Context, client *http.Client, o options) (tok, userID string, err error) {
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	body := map[string]string{"email": o.email, "password": o.password}
	if err := postJSON(ctx, client, strings.TrimRight(o.base, "/")+"/api/auth/login", "", body, &out); err != nil {
		return "", "", fmt.Errorf("login: %w", err)
	}
	return out.Token, out.User.ID, nil
}

func dial(ctx context.Context, base, tok string) (*websocket.Conn, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return conn, nil
}

func sendMessage(ctx context.Context, client *http.Client, o options, tok string) error {
	var out map[string]any
	body := map[string]string{"conversationId": o.conversationID, "content": o.send}
	if err := postJSON(ctx, client, strings.TrimRight(o.base, "/")+"/api/chat/messages", tok, body, &out); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
