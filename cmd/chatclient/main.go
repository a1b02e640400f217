// Command chatclient is a terminal participant driven by internal/client's
// causal delivery engine: it dials the hub over WebSocket,
// advances its own vector clock on every send, and buffers-then-drains
// inbound chat frames until they are causally ready, printing delivered
// messages strictly in causal order rather than arrival order.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/causalchat/server/internal/client"
	"github.com/causalchat/server/internal/config"
	"github.com/causalchat/server/internal/proto"
)

func main() {
	var addr, room, username string
	var bufferCap int

	root := &cobra.Command{
		Use:   "chatclient",
		Short: "A causal-delivery terminal client for the group chat hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr, room, username, bufferCap)
		},
	}
	root.Flags().StringVar(&addr, "addr", "ws://localhost:8080/ws", "hub WebSocket URL")
	root.Flags().StringVar(&room, "room", "", "room to join (empty joins the default room)")
	root.Flags().StringVar(&username, "username", "guest", "display name to join with")
	root.Flags().IntVar(&bufferCap, "buffer-cap", config.Default().CausalBufferCapacity, "cap on the causal engine's pending-message buffer (0 is unbounded)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(addr, room, username string, bufferCap int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	c := client.New(username, bufferCap)

	var initFrame proto.InitFrame
	if err := wsjson.Read(ctx, conn, &initFrame); err != nil {
		return fmt.Errorf("read init: %w", err)
	}
	c.HandleInit(initFrame.ClientID)
	fmt.Printf("connected as %s (id=%s)\n", username, initFrame.ClientID)

	joinData, _ := json.Marshal(proto.JoinData{Username: username, RoomID: room})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.TypeJoin, Data: joinData}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	lines := make(chan string)
	go readStdin(lines)

	errCh := make(chan error, 1)
	go func() { errCh <- readLoop(ctx, conn, c) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := sendChat(ctx, conn, c, line); err != nil {
				return err
			}
		}
	}
}

func readStdin(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func sendChat(ctx context.Context, conn *websocket.Conn, c *client.Client, text string) error {
	provisionalID, tick := c.PrepareSend()
	fmt.Printf("[you, provisional %s, clock %v] %s\n", provisionalID[:8], tick, text)

	data, _ := json.Marshal(proto.ChatData{Text: text})
	return wsjson.Write(ctx, conn, proto.Inbound{Type: proto.TypeChat, Data: data})
}

func readLoop(ctx context.Context, conn *websocket.Conn, c *client.Client) error {
	for {
		var envelope struct {
			Type string `json:"type"`
		}
		raw, err := readRaw(ctx, conn)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}

		switch envelope.Type {
		case proto.TypeJoinSuccess:
			var f proto.JoinSuccessFrame
			json.Unmarshal(raw, &f)
			fmt.Printf("joined %q with %d members, %d history messages\n", f.Room, len(f.Users), f.MessageCount)

		case proto.TypeUserList:
			var f proto.UserListFrame
			json.Unmarshal(raw, &f)
			fmt.Printf("room now has %d member(s)\n", len(f.Users))

		case proto.TypeSystem:
			var f proto.SystemFrame
			json.Unmarshal(raw, &f)
			fmt.Printf("* %s\n", f.Message)

		case proto.TypeOutboundChat:
			var f proto.ChatFrame
			json.Unmarshal(raw, &f)
			printDelivered(c.Offer(chatFrameToMessage(f)))

		case proto.TypeHistory:
			var f proto.HistoryFrame
			json.Unmarshal(raw, &f)
			msgs := make([]client.Message, 0, len(f.Messages))
			for _, m := range f.Messages {
				msgs = append(msgs, chatFrameToMessage(m))
			}
			printDelivered(c.OfferHistory(msgs))

		case proto.TypeUserTyping:
			var f proto.UserTypingFrame
			json.Unmarshal(raw, &f)
			if f.IsTyping {
				fmt.Printf("%s is typing...\n", f.Username)
			}

		case proto.TypeMessageDelivered:
			var f proto.MessageDeliveredFrame
			json.Unmarshal(raw, &f)
			provisionalID, ok := c.ReconcileDelivered()
			if ok {
				fmt.Printf("[delivered] provisional %s -> final %s\n", provisionalID[:8], f.MessageID)
			}

		case proto.TypePong:
			// liveness only, nothing to print
		}
	}
}

func readRaw(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	_, data, err := conn.Read(ctx)
	return data, err
}

func chatFrameToMessage(f proto.ChatFrame) client.Message {
	return client.Message{
		ID:         f.ID,
		SenderID:   f.UserID,
		SenderName: f.Username,
		Text:       f.Text,
		Clock:      proto.DecodeClock(f.VectorClock),
		Timestamp:  time.UnixMilli(f.Timestamp),
	}
}

func printDelivered(delivered []client.Message) {
	for _, m := range delivered {
		fmt.Printf("[%v] %s: %s\n", m.Clock, m.SenderName, m.Text)
	}
}
