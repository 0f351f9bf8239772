package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"SiteBeacon/internal/analytics"
	"SiteBeacon/internal/chat"
	"SiteBeacon/internal/chatstore"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat with the site assistant",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runChat(a)
	},
}

var chatsShowAll bool

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List stored chats",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		printChats(a.chats.GetChats(), chatsShowAll)
		return nil
	},
}

func init() {
	chatsCmd.Flags().BoolVar(&chatsShowAll, "all", false, "Include chats tagged deleted")
}

func runChat(a *app) error {
	ctx := context.Background()

	// Chat usage is itself a tracked page view.
	a.tracker.Init(ctx, analytics.PageInfo{Path: "/chat", Title: "Chat"})
	defer a.tracker.Unload()

	fmt.Println("=== SiteBeacon Chat ===")
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := handleCommand(a, input)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				a.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		reply := a.service.SendMessage(ctx, input)
		fmt.Printf("Assistant: %s\n\n", reply.Content)
	}

	fmt.Println("Goodbye!")
	return nil
}

// handleCommand handles special commands
func handleCommand(a *app, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		c := a.service.ResetChat()
		fmt.Println("Started new chat:", c.ID)
		return false, nil

	case "/chats":
		printChats(a.chats.GetChats(), false)
		return false, nil

	case "/switch":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /switch <chat-id>")
		}
		if !a.service.SelectChat(parts[1]) {
			return false, fmt.Errorf("no such chat: %s", parts[1])
		}
		for _, m := range a.service.Messages() {
			fmt.Printf("%s: %s\n", m.Role, m.Content)
		}
		fmt.Println()
		return false, nil

	case "/star", "/archive", "/trash":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: %s <chat-id>", parts[0])
		}
		status := map[string]chatstore.Status{
			"/star":    chatstore.StatusStarred,
			"/archive": chatstore.StatusArchived,
			"/trash":   chatstore.StatusDeleted,
		}[parts[0]]
		if a.chats.UpdateChatStatus(parts[1], status) == nil {
			return false, fmt.Errorf("no such chat: %s", parts[1])
		}
		fmt.Printf("Chat %s marked %s\n", parts[1], status)
		return false, nil

	case "/delete":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /delete <chat-id>")
		}
		a.chats.DeleteChat(parts[1])
		if active := a.service.ActiveChat(); active != nil && active.ID == parts[1] {
			a.service.ResetChat()
		}
		fmt.Println("Deleted chat:", parts[1])
		return false, nil

	case "/filter":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /filter <user|assistant>")
		}
		msgs := a.service.FilterMessages(chat.Filter{Role: parts[1]})
		for _, m := range msgs {
			fmt.Printf("[%s] %s\n", m.Timestamp.Format("2006-01-02 15:04"), m.Content)
		}
		fmt.Println()
		return false, nil

	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /quit, /exit        - Exit the assistant")
		fmt.Println("  /new                - Start a new chat")
		fmt.Println("  /chats              - List stored chats")
		fmt.Println("  /switch <id>        - Resume a stored chat")
		fmt.Println("  /star <id>          - Star a chat")
		fmt.Println("  /archive <id>       - Archive a chat")
		fmt.Println("  /trash <id>         - Tag a chat deleted (kept in store)")
		fmt.Println("  /delete <id>        - Remove a chat and its messages")
		fmt.Println("  /filter <role>      - Show transcript messages by role")
		fmt.Println("  /help               - Show this help message")
		return false, nil

	default:
		return false, nil
	}
}

func printChats(chats []chatstore.Chat, includeDeleted bool) {
	if len(chats) == 0 {
		fmt.Println("No chats stored.")
		return
	}
	for _, c := range chats {
		if c.Status == chatstore.StatusDeleted && !includeDeleted {
			continue
		}
		status := ""
		if c.Status != chatstore.StatusNone {
			status = fmt.Sprintf(" [%s]", c.Status)
		}
		fmt.Printf("%s  %s%s\n", c.ID, c.Title, status)
		if c.Preview != "" {
			fmt.Printf("    %s\n", c.Preview)
		}
	}
	fmt.Println()
}
