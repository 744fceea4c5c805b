package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexuschat/nexus-relay/internal/auth"
	"github.com/nexuschat/nexus-relay/internal/client"
	"github.com/nexuschat/nexus-relay/internal/config"
	"github.com/nexuschat/nexus-relay/internal/core"
	"github.com/nexuschat/nexus-relay/internal/log"
	"github.com/nexuschat/nexus-relay/internal/proto"
)

func newChatCmd() *cobra.Command {
	var (
		url      string
		token    string
		identity string
		groupID  string
		chatID   string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Connect to a relay room from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				// Dev convenience: mint a token from the local config
				// secret when none is supplied.
				if identity == "" {
					return fmt.Errorf("--token or --identity is required")
				}
				bootstrap := log.New("warn", "console")
				cfg, _, err := config.Load(bootstrap, configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				token, err = auth.GenerateToken(&auth.Config{
					Secret:   []byte(cfg.JWTSecret),
					Issuer:   cfg.JWTIssuer,
					Audience: cfg.JWTAudience,
					TTL:      24 * time.Hour,
				}, identity)
				if err != nil {
					return fmt.Errorf("generate token: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runChat(ctx, chatOptions{
				url:      url,
				token:    token,
				identity: identity,
				room:     core.RoomKey{GroupID: groupID, ChatID: chatID},
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "relay WebSocket endpoint")
	cmd.Flags().StringVar(&token, "token", "", "credential token (minted locally when omitted)")
	cmd.Flags().StringVar(&identity, "identity", "", "identity to mint a dev token for")
	cmd.Flags().StringVar(&groupID, "group", "default", "group id of the room")
	cmd.Flags().StringVar(&chatID, "chat", "general", "chat id of the room")
	return cmd
}

type chatOptions struct {
	url      string
	token    string
	identity string
	room     core.RoomKey
}

func runChat(ctx context.Context, opts chatOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	transcript := client.NewTranscript(opts.identity)

	session := client.NewSession(client.Options{
		URL:   opts.url,
		Token: opts.token,
		OnEvent: func(out proto.Outbound) {
			printEvent(transcript, out)
		},
		OnStatus: func(status client.Status) {
			fmt.Printf("* %s\n", status)
		},
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- session.Run(ctx)
	}()

	// Give the dial a moment before the first join; the session re-issues
	// the join itself on every reconnect after that.
	go func() {
		for i := 0; i < 50; i++ {
			if session.Status() >= client.StatusAuthenticated {
				if err := session.JoinRoom(opts.room); err != nil {
					fmt.Printf("* join failed: %v\n", err)
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
	}()

	fmt.Printf("Connecting to %s, room %s. Type messages and press Enter.\n", opts.url, opts.room)
	fmt.Println("Commands: /edit <id> <text>, /delete <id>, /quit")

	go func() {
		defer cancel()
		inputLoop(ctx, session, transcript, opts.room)
	}()

	err := <-runErr
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func inputLoop(ctx context.Context, session *client.Session, transcript *client.Transcript, room core.RoomKey) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := handleCommand(session, room, line); quit {
				return
			}
			continue
		}

		local := transcript.AppendLocal(line, nil)
		if err := session.SendMessage(room, line, local.Ref, nil, false); err != nil {
			transcript.MarkFailed(local.Ref)
			fmt.Printf("* send failed: %v\n", err)
		}
	}
}

func handleCommand(session *client.Session, room core.RoomKey, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/edit":
		if len(fields) < 3 {
			fmt.Println("* usage: /edit <id> <text>")
			return false
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("* bad message id")
			return false
		}
		content := strings.Join(fields[2:], " ")
		if err := session.EditMessage(room, id, content); err != nil {
			fmt.Printf("* edit failed: %v\n", err)
		}
	case "/delete":
		if len(fields) != 2 {
			fmt.Println("* usage: /delete <id>")
			return false
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("* bad message id")
			return false
		}
		if err := session.DeleteMessage(room, id); err != nil {
			fmt.Printf("* delete failed: %v\n", err)
		}
	default:
		fmt.Printf("* unknown command %s\n", fields[0])
	}
	return false
}

func printEvent(transcript *client.Transcript, out proto.Outbound) {
	if out.Type == proto.OutboundTypeError && out.Error != nil {
		fmt.Printf("* error [%s] %s\n", out.Error.Code, out.Error.Msg)
		return
	}

	switch out.Event {
	case proto.EventNewMessage:
		var p proto.MessagePayload
		if !decodeEventData(out.Data, &p) {
			return
		}
		msg, appended := transcript.ApplyMessage(p)
		if appended {
			printMessage(msg.Sender, msg.Role, msg.Content, msg.ID)
		} else {
			fmt.Printf("  (delivered, id %d)\n", msg.ID)
		}
	case proto.EventMessageEdited:
		var p proto.MessagePayload
		if !decodeEventData(out.Data, &p) {
			return
		}
		transcript.ApplyEdit(p.ID, p.Content)
		fmt.Printf("* message %d edited: %s\n", p.ID, p.Content)
	case proto.EventMessageDeleted:
		var p proto.DeletedPayload
		if !decodeEventData(out.Data, &p) {
			return
		}
		transcript.ApplyDelete(p.ID)
		fmt.Printf("* message %d deleted\n", p.ID)
	case proto.EventUserJoined:
		var p proto.PresencePayload
		if !decodeEventData(out.Data, &p) {
			return
		}
		fmt.Printf("* %s joined\n", p.User)
	case proto.EventUserLeft:
		var p proto.PresencePayload
		if !decodeEventData(out.Data, &p) {
			return
		}
		fmt.Printf("* %s left\n", p.User)
	case proto.EventUserTyping:
		var p proto.TypingPayload
		if !decodeEventData(out.Data, &p) {
			return
		}
		transcript.SetTyping(p.User, p.IsTyping)
		if p.IsTyping {
			fmt.Printf("* %s is typing...\n", p.User)
		}
	case proto.EventRoomJoined:
		var p proto.RoomJoinedPayload
		if !decodeEventData(out.Data, &p) {
			return
		}
		fmt.Printf("* joined %s:%s (%d member(s))\n", p.GroupID, p.ChatID, p.Members)
	case proto.EventHistory:
		var p proto.HistoryPayload
		if !decodeEventData(out.Data, &p) {
			return
		}
		transcript.LoadHistory(p.Messages)
		for _, m := range p.Messages {
			printMessage(m.Sender, m.Role, m.Content, m.ID)
		}
	}
}

func printMessage(sender, role, content string, id int64) {
	name := sender
	if role == proto.RoleAssistant {
		name = sender + " (ai)"
	}
	fmt.Printf("[%d] %s: %s\n", id, name, content)
}

// decodeEventData converts the loosely typed event payload back into its
// concrete wire struct.
func decodeEventData(data any, dst any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
