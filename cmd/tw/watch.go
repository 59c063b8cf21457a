package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/termwiresh/termwire/protocol"
)

// ---------------------------------------------------------------------------
// watchCmd
// ---------------------------------------------------------------------------

var allTopics = []protocol.NotificationTopic{
	protocol.TopicVariableChanged,
	protocol.TopicLayoutChanged,
	protocol.TopicSessionCreated,
	protocol.TopicSessionTerminated,
}

func watchCmd() *cobra.Command {
	var (
		topicFlags []string
		sessionID  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live notifications until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			conn, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			topics := allTopics
			if len(topicFlags) > 0 {
				topics = make([]protocol.NotificationTopic, len(topicFlags))
				for i, t := range topicFlags {
					topics[i] = protocol.NotificationTopic(t)
				}
			}

			sub, err := conn.Subscribe(ctx, topics, sessionID)
			if err != nil {
				return fmt.Errorf("subscribing: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			for {
				select {
				case n, ok := <-sub.Notifications():
					if !ok {
						return fmt.Errorf("connection closed")
					}
					if jsonOutput {
						enc.Encode(n)
					} else {
						printNotification(n)
					}
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().StringSliceVarP(&topicFlags, "topic", "t", nil,
		"Topics to watch (variable_changed, layout_changed, session_created, session_terminated); default all")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Only events for this session")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit one JSON object per event")
	return cmd
}

func printNotification(n *protocol.Notification) {
	switch {
	case n.VariableChanged != nil:
		scope := "global"
		if n.VariableChanged.SessionID != nil {
			scope = *n.VariableChanged.SessionID
		}
		value := "(unset)"
		if n.VariableChanged.Value != nil {
			value = *n.VariableChanged.Value
		}
		fmt.Printf("variable  %s  %s=%s\n", scope, n.VariableChanged.Name, value)
	case n.SessionCreated != nil:
		fmt.Printf("created   %s  %s\n", n.SessionCreated.SessionID, n.SessionCreated.Title)
	case n.SessionTerminated != nil:
		fmt.Printf("ended     %s\n", n.SessionTerminated.SessionID)
	case n.LayoutChanged != nil:
		fmt.Printf("layout    %d windows\n", len(n.LayoutChanged.Windows))
	default:
		fmt.Printf("event     %s\n", n.Topic)
	}
}
