package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postflow/configs"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	listStatuses  []string
	resetStatuses []string
	idFlag        string
	yesFlag       bool
	userFlag      int64
	urlFlag       string
	atFlag        string
	kindFlag      string
	titleFlag     string
	authorFlag    string
	durationFlag  int
	storyFlag     bool
	ttlFlag       time.Duration
	fileFlag      string
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "postflowctl",
	Short: "Operator tool for the automation queue",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Println("Warning: Failed to load environment variables", err)
		}
		cfg = config.LoadConfig()
	},
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue items by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSchedule(func(s service.ScheduleService) error {
			items, err := s.List(cmd.Context(), listStatuses, idFlag)
			if err != nil {
				return err
			}
			printItems(items)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move FAILED or PROCESSING items back to PENDING",
	Long: `Reset returns items to PENDING so the next trigger picks them up again.
Only FAILED and PROCESSING items can be reset. A PROCESSING item should only be
reset once you are sure no trigger is still working on it.

Without --yes the command only shows what would be reset.

Examples:
  postflowctl reset --status FAILED
  postflowctl reset --status PROCESSING --id V1StGXR8_Z5jdHi6B-myT --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.CheckResetStatuses(resetStatuses); err != nil {
			return err
		}
		return withSchedule(func(s service.ScheduleService) error {
			items, err := s.List(cmd.Context(), resetStatuses, idFlag)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("Nothing to reset.")
				return nil
			}
			printItems(items)

			if !yesFlag {
				fmt.Printf("\n%d item(s) would be reset. Re-run with --yes to apply.\n", len(items))
				return nil
			}

			ids, err := s.Reset(cmd.Context(), resetStatuses, idFlag)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Printf("reset %s -> PENDING\n", id)
			}
			return nil
		})
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Schedule one media URL for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := time.Parse(time.RFC3339, atFlag)
		if err != nil {
			return fmt.Errorf("--at must be RFC3339: %w", err)
		}
		req := transfer.ScheduleRequest{
			SourceURL:   urlFlag,
			ScheduledAt: at,
			MediaKind:   kindFlag,
			Metadata: transfer.QueueMetadata{
				Title:    titleFlag,
				Author:   authorFlag,
				Duration: durationFlag,
			},
		}
		if storyFlag {
			req.Metadata.Form = models.MediaFormStory
		}

		return withSchedule(func(s service.ScheduleService) error {
			item, err := s.Schedule(cmd.Context(), userFlag, req)
			if err != nil {
				return err
			}
			printItems([]*models.QueueItem{item})
			return nil
		})
	},
}

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Schedule a batch of media URLs from a JSON file",
	Long: `Bulk reads a JSON document of the same shape the /api/queue/bulk endpoint
accepts and schedules item i at start_at + i*interval_minutes.

Example file:
  {"start_at": "2026-11-01T09:00:00Z", "interval_minutes": 60,
   "items": [{"source_url": "https://example.com/a.jpg", "metadata": {"title": "A"}}]}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(fileFlag)
		if err != nil {
			return err
		}
		var req transfer.BulkScheduleRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("invalid bulk file: %w", err)
		}

		return withSchedule(func(s service.ScheduleService) error {
			items, err := s.BulkSchedule(cmd.Context(), userFlag, req)
			if err != nil {
				return err
			}
			printItems(items)
			return nil
		})
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Run one claim-and-process cycle through the trigger endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := job.NewTriggerJob(cfg.TriggerURL, cfg.CronSecret, 10*time.Minute).Fire(cmd.Context())
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Show the published record of a completed queue item",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		post, err := repository.NewPostRepository(db).GetByQueueItemID(cmd.Context(), idFlag)
		if err != nil {
			return err
		}
		if post == nil {
			return fmt.Errorf("no published post for queue item %s", idFlag)
		}
		out, _ := json.MarshalIndent(post, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var sealCmd = &cobra.Command{
	Use:   "seal TOKEN",
	Short: "Encrypt an Instagram access token for storage in social_accounts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sealed, err := utils.Encrypt([]byte(args[0]), []byte(cfg.SecretKey))
		if err != nil {
			return err
		}
		fmt.Println(sealed)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := utils.GenerateToken(cfg.SecretKey, strconv.FormatInt(userFlag, 10), ttlFlag)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	listCmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Statuses to match (repeatable, default all)")
	resetCmd.Flags().StringSliceVar(&resetStatuses, "status", []string{models.QueueStatusFailed}, "FAILED and/or PROCESSING (repeatable)")
	for _, c := range []*cobra.Command{listCmd, resetCmd} {
		c.Flags().StringVar(&idFlag, "id", "", "Only match this item id")
	}
	resetCmd.Flags().BoolVar(&yesFlag, "yes", false, "Apply the reset")

	enqueueCmd.Flags().Int64Var(&userFlag, "user", 0, "Owner user id")
	enqueueCmd.Flags().StringVar(&urlFlag, "url", "", "Source media URL")
	enqueueCmd.Flags().StringVar(&atFlag, "at", "", "Scheduled time (RFC3339)")
	enqueueCmd.Flags().StringVar(&kindFlag, "kind", "", "IMAGE or VIDEO (inferred from the URL when empty)")
	enqueueCmd.Flags().StringVar(&titleFlag, "title", "", "Caption title")
	enqueueCmd.Flags().StringVar(&authorFlag, "author", "", "Credited author handle")
	enqueueCmd.Flags().IntVar(&durationFlag, "duration", 0, "Video duration in seconds")
	enqueueCmd.Flags().BoolVar(&storyFlag, "story", false, "Publish as a story")
	for _, name := range []string{"user", "url", "at"} {
		_ = enqueueCmd.MarkFlagRequired(name)
	}

	bulkCmd.Flags().Int64Var(&userFlag, "user", 0, "Owner user id")
	bulkCmd.Flags().StringVar(&fileFlag, "file", "", "Path to the JSON batch")
	_ = bulkCmd.MarkFlagRequired("user")
	_ = bulkCmd.MarkFlagRequired("file")

	postCmd.Flags().StringVar(&idFlag, "id", "", "Queue item id")
	_ = postCmd.MarkFlagRequired("id")

	tokenCmd.Flags().Int64Var(&userFlag, "user", 0, "User id")
	tokenCmd.Flags().DurationVar(&ttlFlag, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(listCmd, resetCmd, enqueueCmd, bulkCmd, triggerCmd, postCmd, sealCmd, tokenCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// withSchedule opens the database and hands fn a schedule service. Nudges are
// sent when Redis is configured.
func withSchedule(fn func(s service.ScheduleService) error) error {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	var nudger service.Nudger
	if cfg.RedisURI != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisURI})
		defer client.Close()
		nudger = queue.NewNudger(client)
	}

	postRepo := repository.NewPostRepository(db)
	queueRepo := repository.NewQueueRepository(db, postRepo)
	socialAccountRepo := repository.NewSocialAccountRepository(db)

	return fn(service.NewScheduleService(*cfg, queueRepo, socialAccountRepo, nudger))
}

func printItems(items []*models.QueueItem) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tKIND\tSTATUS\tSCHEDULED\tLOG")
	for _, it := range items {
		logLine := strings.ReplaceAll(it.Logs, "\n", " | ")
		if len(logLine) > 60 {
			logLine = logLine[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", it.ID, it.UserID, it.MediaKind, it.Status,
			it.ScheduledAt.Format(time.RFC3339), logLine)
	}
	w.Flush()
}
