package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"symbio/internal/service/scoring"
	redisclient "symbio/pkg/redis"
	"symbio/pkg/runlock"
)

var localLock bool

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Credibility scoring tasks",
}

var scoreRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Recompute every freelancer's credibility score once",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		// 默认与 worker 共用 Redis 锁，避免两边同时重算
		var locker runlock.Locker = runlock.NewLocalLocker()
		if !localLock {
			rdb, err := redisclient.NewRedisClient(rt.cfg.Redis)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer rdb.Close()
			locker = runlock.NewRedisLocker(rdb)
		}

		n, err := scoring.NewJob(rt.store, locker, rt.cfg.Scoring.LockTTL, rt.log).Run(cmd.Context())
		if errors.Is(err, scoring.ErrSkipped) {
			fmt.Fprintln(cmd.OutOrStdout(), "another scoring run is in progress, skipped")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated %d freelancer scores\n", n)
		return nil
	},
}

func init() {
	scoreRunCmd.Flags().BoolVar(&localLock, "local", false, "use an in-process lock instead of Redis")
	scoreCmd.AddCommand(scoreRunCmd)
}
