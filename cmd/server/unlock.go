package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mathieu-neron/segvote/internal/config"
	"github.com/mathieu-neron/segvote/internal/lock"
	"github.com/mathieu-neron/segvote/internal/middleware"
	"github.com/mathieu-neron/segvote/internal/model"
	"github.com/mathieu-neron/segvote/internal/service"
)

func unlockCommand() *cobra.Command {
	var segmentID, userID string
	cmd := &cobra.Command{
		Use:   "unlock [key]",
		Short: "Force-release a stuck lock",
		Long: "Drop a lock key regardless of its holder. Pass the raw key, or --segment and --user " +
			"to release the vote lock of one user on one segment.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := unlockKey(args, segmentID, userID)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			middleware.InitLogger(cfg.Log.Level, "segvote")

			rdb := service.OpenRedis(cmd.Context(), cfg.Redis.Enabled, cfg.Redis.URL, middleware.Logger)
			if rdb == nil {
				return errors.New("redis is disabled or unreachable, nothing to unlock")
			}
			defer rdb.Close()

			if err := lock.NewRedisLocker(rdb, middleware.Logger, nil).ForceUnlock(cmd.Context(), key); err != nil {
				return fmt.Errorf("unlock %s: %w", key, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "released", key)
			return nil
		},
	}
	cmd.Flags().StringVar(&segmentID, "segment", "", "Segment UUID of a vote lock")
	cmd.Flags().StringVar(&userID, "user", "", "Raw user ID of a vote lock")
	return cmd
}

func unlockKey(args []string, segmentID, userID string) (string, error) {
	switch {
	case len(args) == 1 && segmentID == "" && userID == "":
		return args[0], nil
	case len(args) == 0 && segmentID != "" && userID != "":
		return lock.VoteKey(model.SegmentID(segmentID), model.RawUserID(userID)), nil
	}
	return "", errors.New("pass either a key or both --segment and --user")
}
