package main

import (
	"bufio"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CHAT_SERVER_URL,default=ws://localhost:3000/ws"`
	RoomID    string `env:"CHAT_ROOM_ID,default=1"`
	UserID    string `env:"CHAT_USER_ID,required=true"`
	Token     string `env:"CHAT_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run joins the configured room, prints every event and posts each stdin line.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := url.Parse(config.ServerURL)
	if err != nil {
		return exitConfig, fmt.Errorf("invalid CHAT_SERVER_URL: %w", err)
	}
	header := http.Header{}
	if config.Token != "" {
		header.Set("Authorization", "Bearer "+config.Token)
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), header)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", target, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = ws.Close()
	}()

	if err = writeJSON(ws, event.Inbound{Type: event.TypeJoin, RoomID: chat.RoomID(config.RoomID)}); err != nil {
		return exitRuntime, err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- receive(ws) }()
	go send(ws, config, errCh)

	select {
	case <-ctx.Done():
		return exitOK, nil
	case err = <-errCh:
		if err == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return exitOK, nil
		}
		return exitRuntime, err
	}
}

func receive(ws *websocket.Conn) error {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(render(raw))
	}
}

// send posts stdin lines until EOF. Gorilla allows one concurrent writer, which is this goroutine.
func send(ws *websocket.Conn, config Config, errCh chan<- error) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		err := writeJSON(ws, event.Inbound{
			Type:    event.TypeMessage,
			RoomID:  chat.RoomID(config.RoomID),
			UserID:  chat.UserID(config.UserID),
			Content: line,
		})
		if err != nil {
			errCh <- err
			return
		}
	}
	errCh <- scanner.Err()
}

func writeJSON(ws *websocket.Conn, in event.Inbound) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, raw)
}

// render formats one server frame for the terminal.
func render(raw []byte) string {
	var f struct {
		Type    event.Type `json:"type"`
		Message string     `json:"message"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return color.Red.Sprintf("unreadable frame: %s", raw)
	}

	switch f.Type {
	case event.TypeJoined:
		var joined event.Joined
		_ = json.Unmarshal(raw, &joined)
		return color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf(">>> joined room %s", joined.RoomID))
	case event.TypeMessage:
		m, err := event.DecodeMessage(raw)
		if err != nil {
			return color.Red.Sprintf("invalid message: %v", err)
		}
		return fmt.Sprintf("%s %s: %s",
			color.Gray.Sprint(m.CreatedAt.Local().Format(time.TimeOnly)),
			color.Cyan.Sprintf("#%d %s", m.ID, m.UserID),
			m.Content)
	case event.TypeError:
		return color.Red.Sprintf("error: %s", f.Message)
	default:
		return string(raw)
	}
}
