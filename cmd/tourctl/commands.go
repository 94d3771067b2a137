package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bobarin/tourgen/internal/app"
	"github.com/bobarin/tourgen/internal/assembly"
	"github.com/bobarin/tourgen/internal/db"
	"github.com/bobarin/tourgen/internal/models"
	"github.com/bobarin/tourgen/internal/progress"
	"github.com/bobarin/tourgen/internal/queue"
	"github.com/bobarin/tourgen/internal/reconcile"
	"github.com/bobarin/tourgen/internal/video"
	"github.com/bobarin/tourgen/internal/worker"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := app.OpenDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer database.Close()
		fmt.Printf("Schema up to date (%s)\n", database.Dialect())
		return nil
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <projectID>",
	Short: "Start generation for a project as the given user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid project id: %w", err)
		}
		userID, _ := cmd.Flags().GetString("user")

		return withQueue(cmd.Context(), func(database *db.DB, q *queue.Queue) error {
			result, err := assembly.NewTrigger(database, q, logger).Trigger(cmd.Context(), assembly.Caller{UserID: userID}, projectID)
			if err != nil {
				return err
			}
			fmt.Printf("Enqueued %d clip job(s) and %d transition job(s)\n", len(result.ClipJobIDs), len(result.TransitionIDs))
			for _, id := range result.JobIDs() {
				fmt.Println(id)
			}
			return nil
		})
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <projectID>",
	Short: "Recompute a project's status and counts from its clips",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid project id: %w", err)
		}

		database, err := app.OpenDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		agg, err := reconcile.NewSynchronizer(database, logger).Reconcile(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		fmt.Printf("Status:    %s\n", agg.Status)
		fmt.Printf("Clips:     %d/%d completed\n", agg.CompletedClipCount, agg.ClipCount)
		return nil
	},
}

var sequenceCmd = &cobra.Command{
	Use:   "sequence <projectID>",
	Short: "Show the walk-through order for a project's clips",
	Long:  "Show the walk-through order for a project's clips. With --apply the order is saved; only draft projects can be re-sequenced.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid project id: %w", err)
		}
		apply, _ := cmd.Flags().GetBool("apply")

		database, err := app.OpenDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		project, err := database.GetVideoProject(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		clips, err := database.ListProjectClips(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		ordered := video.Reindex(video.AutoSequence(clips))
		printSequence(ordered)

		if !apply {
			return nil
		}
		if project.Status != models.ProjectStatusDraft {
			return fmt.Errorf("project is %s, only draft projects can be re-sequenced", project.Status)
		}
		if err := database.UpdateClipSequence(cmd.Context(), ordered); err != nil {
			return err
		}
		fmt.Println("Sequence saved")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-enqueue clips stuck in processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		staleAfter, _ := cmd.Flags().GetDuration("stale-after")
		if staleAfter <= 0 {
			staleAfter = cfg.SweepStaleAfter
		}

		return withQueue(cmd.Context(), func(database *db.DB, q *queue.Queue) error {
			n, err := worker.NewSweeper(database, q, staleAfter, logger).Sweep(cmd.Context())
			fmt.Printf("Re-enqueued %d clip(s)\n", n)
			return err
		})
	},
}

var runClipCmd = &cobra.Command{
	Use:   "run-clip <clipID>",
	Short: "Generate one clip in the foreground, bypassing the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clipID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid clip id: %w", err)
		}
		tail, _ := cmd.Flags().GetString("tail")
		target, _ := cmd.Flags().GetString("target")

		return withQueue(cmd.Context(), func(database *db.DB, q *queue.Queue) error {
			prog := progress.NewMemory()
			jobs, err := app.NewJobs(cfg, database, q, prog, logger)
			if err != nil {
				return err
			}

			at := worker.Attempt{JobID: uuid.NewString(), Final: true}
			runErr := jobs.Clips.Run(cmd.Context(), at, queue.ClipPayload{
				ClipID:          clipID,
				TailImageURL:    tail,
				TargetRoomLabel: target,
			})
			for _, s := range prog.History(at.JobID) {
				fmt.Printf("%3d%%  %-10s %s\n", s.Progress, s.Step, s.Label)
			}
			return runErr
		})
	},
}

func init() {
	triggerCmd.Flags().String("user", "", "user id the trigger runs as (required)")
	_ = triggerCmd.MarkFlagRequired("user")

	sequenceCmd.Flags().Bool("apply", false, "save the computed order")

	sweepCmd.Flags().Duration("stale-after", 0, "processing age that counts as stuck (defaults to SWEEP_STALE_AFTER)")

	runClipCmd.Flags().String("tail", "", "end frame image URL")
	runClipCmd.Flags().String("target", "", "room label the camera should move toward")
}

func withQueue(ctx context.Context, fn func(*db.DB, *queue.Queue) error) error {
	database, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	q, err := queue.New(cfg.RedisURL, app.QueuePolicy(cfg))
	if err != nil {
		return err
	}
	defer q.Close()

	return fn(database, q)
}

func printSequence(clips []models.VideoClip) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tROOM\tLABEL\tSTATUS\tCLIP")
	for _, c := range clips {
		label := video.RoomLabel(c.RoomType)
		if c.RoomLabel != nil && *c.RoomLabel != "" {
			label = *c.RoomLabel
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.SequenceOrder, c.RoomType, label, c.Status, c.ID)
	}
	w.Flush()
}
