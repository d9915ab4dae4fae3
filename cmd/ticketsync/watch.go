package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/stream"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		serverURL string
		memberID  string
		every     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a member's progress on a running server",
		Long: `Connect to a running server's event stream and follow one member's progress.

The connection is re-established with exponential backoff (1s doubling up to
30s) whenever it drops. Level-ups are printed as they arrive; with --every the
current progress is also printed on that interval.`,
		Example: `  ticketsync watch --member m-1
  ticketsync watch --server https://sync.example.com --member m-1 --every 1m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd.Context())
			if err != nil {
				return err
			}
			if serverURL == "" {
				serverURL = cfg.Stream.ServerURL
			}
			if memberID == "" {
				memberID = cfg.Stream.MemberID
			}
			if memberID == "" {
				return errors.New("no member to watch: pass --member or set STREAM.MEMBER_ID")
			}

			dialer, err := stream.NewWebSocketDialer(serverURL)
			if err != nil {
				return err
			}

			out := &syncWriter{w: cmd.OutOrStdout()}
			view := stream.NewProgressView(memberID,
				stream.NewHTTPProgressFetcher(serverURL, nil),
				func(n stream.Notice) { out.printf("%s\n", n.Message) },
			)
			consumer := stream.NewConsumer(dialer, stream.WithStateHook(func(s stream.State) {
				out.printf("[%s]\n", s)
			}))
			view.Register(consumer)

			zap.L().Info("watching member progress", zap.String("server", serverURL), zap.String("member_id", memberID))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return consumer.Run(ctx)
			})
			if every > 0 {
				g.Go(func() error {
					ticker := time.NewTicker(every)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return ctx.Err()
						case <-ticker.C:
							p := view.Progress()
							out.printf("%s: level %d (%s), %d points, %d items\n",
								p.MemberID, p.Level, p.Title, p.Points, p.ItemsCompleted)
							if msg := view.LastError(); msg != "" {
								out.printf("last sync failed: %s\n", msg)
							}
						}
					}
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "server base URL (default STREAM.SERVER_URL)")
	cmd.Flags().StringVar(&memberID, "member", "", "member id to follow (default STREAM.MEMBER_ID)")
	cmd.Flags().DurationVar(&every, "every", 0, "also print progress on this interval")
	return cmd
}

// syncWriter serialises output from the consumer and the ticker.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}
