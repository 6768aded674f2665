package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/service/coach"
	"github.com/aimd54/task-coach/internal/service/scheduler"
	"github.com/aimd54/task-coach/internal/service/shop"
)

func runCmd() *cobra.Command {
	jobs := []string{
		scheduler.JobDailyReview, scheduler.JobFollowup, scheduler.JobPausedDigest, scheduler.JobWeeklyReport,
		scheduler.JobMonthlyReport, scheduler.JobResetDaily, scheduler.JobResetWeekly, scheduler.JobResetMonthly,
	}
	return &cobra.Command{
		Use:       "run [job]",
		Short:     "Run one scheduled job immediately",
		Long:      "Run one scheduled job immediately.\n\nJobs: " + strings.Join(jobs, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.scheduler.RunJob(cmd.Context(), args[0])
		},
	}
}

func replyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reply [text]",
		Short: "Process a progress reply, e.g. \"Q1-1 80%, started the gym plan\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.coach.ProcessReply(cmd.Context(), a.cfg.Coach.Owner, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(result.Message)
			return nil
		},
	}
}

func seedShopCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-shop",
		Short: "Load the shop catalog from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			path := file
			if path == "" {
				path = a.cfg.Shop.CatalogPath
			}
			if path == "" {
				return fmt.Errorf("no catalog file: pass --file or set shop.catalog_path")
			}

			items, err := shop.LoadCatalog(path)
			if err != nil {
				return err
			}
			if err := a.shop.Seed(cmd.Context(), items); err != nil {
				return err
			}
			fmt.Printf("Seeded %d shop items from %s\n", len(items), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog file (default shop.catalog_path)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current level, coins and streaks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.ledger.Profile(cmd.Context(), a.cfg.Coach.Owner)
			if err != nil {
				return err
			}
			fmt.Println(coach.StatusBlock(p))
			return nil
		},
	}
}

func buyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy [item]",
		Short: "Buy a shop item by code or name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			receipt, err := a.shop.Purchase(cmd.Context(), a.cfg.Coach.Owner, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("🛒 Bought %s for %d coins, %d left (owned: %d)\n",
				receipt.Item.ItemName, receipt.Item.Price, receipt.CoinsRemaining, receipt.Quantity)
			return nil
		},
	}
}

func personalityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personality [friendly|professional|strict|toxic]",
		Short: "Switch the coach personality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.unlock.SwitchPersonality(cmd.Context(), a.cfg.Coach.Owner, models.Personality(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "🎭 Personality is now %s\n", p.AIPersonality)
			return nil
		},
	}
}
