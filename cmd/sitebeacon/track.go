package main

import (
	"context"
	"fmt"
	"time"

	"SiteBeacon/internal/analytics"

	"github.com/spf13/cobra"
)

var trackDwell time.Duration

var trackCmd = &cobra.Command{
	Use:   "track <path> [path...]",
	Short: "Replay a sequence of page views against the beacon endpoint",
	Long: `track drives the session and page-view pipeline against a live
beacon endpoint: it opens a session, walks the given paths as
navigations, and closes the last page view the way a tab unload would.
Useful for smoke-testing a deployment.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runTrack(a, args)
	},
}

func init() {
	trackCmd.Flags().DurationVar(&trackDwell, "dwell", time.Second, "Time to dwell on each page")
}

func runTrack(a *app, paths []string) error {
	ctx := context.Background()

	a.tracker.Init(ctx, analytics.PageInfo{Path: paths[0]})
	fmt.Printf("session %s (returning: %v)\n", a.tracker.Session().ID, a.tracker.Session().IsReturning)
	fmt.Println("view", paths[0])

	for _, path := range paths[1:] {
		time.Sleep(trackDwell)
		a.tracker.PageEnter(ctx, analytics.PageInfo{Path: path})
		fmt.Println("view", path)
	}

	time.Sleep(trackDwell)
	a.tracker.Unload()
	a.beacon.Flush()
	fmt.Println("done")
	return nil
}
