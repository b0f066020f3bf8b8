package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"symbio/pkg/mq"
	"symbio/pkg/outbox"
)

var (
	replayID     int64
	replayFailed bool
	replayLimit  int
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Outbox event maintenance",
}

var outboxReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-publish one outbox event or every failed one",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (replayID > 0) == replayFailed {
			return errors.New("exactly one of --id or --failed is required")
		}

		rt, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		publisher, err := mq.NewPublisher(rt.cfg.MQ.URL)
		if err != nil {
			return fmt.Errorf("mq publisher: %w", err)
		}
		defer publisher.Close()

		replay := outbox.NewReplayService(rt.store.Outbox(), publisher, rt.log)
		if replayID > 0 {
			if err := replay.ReplayEvent(cmd.Context(), replayID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "event %d replayed\n", replayID)
			return nil
		}

		n, err := replay.ReplayFailedEvents(cmd.Context(), replayLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "replayed %d failed events\n", n)
		return nil
	},
}

func init() {
	outboxReplayCmd.Flags().Int64Var(&replayID, "id", 0, "outbox event id")
	outboxReplayCmd.Flags().BoolVar(&replayFailed, "failed", false, "replay every failed event")
	outboxReplayCmd.Flags().IntVar(&replayLimit, "limit", 100, "max failed events to replay")
	outboxCmd.AddCommand(outboxReplayCmd)
}
