package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lngraph/internal/events"
	"github.com/alfredjeanlab/lngraph/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Print snapshot and decode events as they are published",
	GroupID: "remote",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: set --nats-url or LNGRAPH_NATS_URL")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(events.TopicAll)
		if err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}
		defer cancel()

		return watchEvents(ctx, ch, os.Stdout, time.Now)
	},
}

// watchEvents prints one line per message until ctx is done or ch closes.
func watchEvents(ctx context.Context, ch <-chan events.Message, w io.Writer, now func() time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if jsonOutput {
				fmt.Fprintf(w, "{\"topic\":%q,\"event\":%s}\n", msg.Topic, msg.Data)
				continue
			}
			topic := ui.RenderAccent(msg.Topic)
			if msg.Topic == events.TopicDecodeFailed {
				topic = ui.RenderFail(msg.Topic)
			}
			fmt.Fprintf(w, "%s %s %s\n",
				ui.RenderMuted(now().Format(timeFormat)), topic, events.Describe(msg.Topic, msg.Data))
		}
	}
}

func init() {
	watchCmd.Flags().String("nats-url", os.Getenv("LNGRAPH_NATS_URL"), "NATS server URL")
}
