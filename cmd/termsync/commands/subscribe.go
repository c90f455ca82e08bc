package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/termhub/termsync/store"
)

// SubscribeCmd represents the subscribe command
var SubscribeCmd = &cobra.Command{
	Use:   "subscribe [url]",
	Short: "Configure the terminology feed subscription",
	Long: `subscribe — Configure the terminology feed subscription

Sets the feed URL the importer pulls from, with an optional access token.
Snapshot subscriptions fetch incrementally by "updated since"; release
subscriptions stay pinned to the imported release version.

Examples:
  termsync subscribe https://feed.example.com/sources/ciel
  termsync subscribe https://feed.example.com/sources/ciel --token s3cret --snapshot
  termsync subscribe show
  termsync subscribe clear`,
	Args: cobra.ExactArgs(1),
	RunE: runSubscribe,
}

var (
	subscribeTokenFlag    string
	subscribeSnapshotFlag bool
)

var subscribeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current subscription",
	RunE:  runSubscribeShow,
}

var subscribeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the subscription",
	RunE:  runSubscribeClear,
}

func init() {
	SubscribeCmd.Flags().StringVar(&subscribeTokenFlag, "token", "", "Feed access token")
	SubscribeCmd.Flags().BoolVar(&subscribeSnapshotFlag, "snapshot", false, "Fetch incrementally by \"updated since\"")
	SubscribeCmd.AddCommand(subscribeShowCmd)
	SubscribeCmd.AddCommand(subscribeClearCmd)
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sub := &store.Subscription{
		URL:      args[0],
		Token:    subscribeTokenFlag,
		Snapshot: subscribeSnapshotFlag,
	}
	if err := a.subs.Set(cmd.Context(), sub); err != nil {
		return err
	}
	fmt.Printf("Subscribed to %s\n", sub.URL)
	return nil
}

func runSubscribeShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sub, err := a.subs.Get(cmd.Context())
	if err != nil {
		return err
	}
	if sub == nil {
		fmt.Println("No subscription configured")
		return nil
	}

	fmt.Printf("URL:      %s\n", sub.URL)
	if sub.Token != "" {
		fmt.Println("Token:    (set)")
	}
	fmt.Printf("Snapshot: %t\n", sub.Snapshot)
	return nil
}

func runSubscribeClear(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.subs.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Subscription cleared")
	return nil
}
