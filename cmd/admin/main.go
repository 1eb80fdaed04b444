package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"unichat/backend/internal/config"
	"unichat/backend/internal/models"
	"unichat/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	storageSvc := storage.NewStorageService(db, rdb)
	ctx := context.Background()

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "grant-coins":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin grant-coins <user_id> <amount>")
			os.Exit(1)
		}
		userID := os.Args[2]
		amount, err := strconv.Atoi(os.Args[3])
		if err != nil || amount <= 0 {
			fmt.Println("Invalid amount. Please provide a positive integer.")
			os.Exit(1)
		}
		user, err := storageSvc.AdjustCoins(userID, amount, models.LedgerReasonAdminGrant)
		if err != nil {
			log.Fatalf("Error granting coins: %v", err)
		}
		fmt.Printf("Granted %d coins to %s (balance now %d).\n", amount, userID, user.Coins)

	case "balance":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin balance <user_id>")
			os.Exit(1)
		}
		user, err := storageSvc.GetUserByID(os.Args[2])
		if err != nil {
			log.Fatalf("Error loading user: %v", err)
		}
		fmt.Printf("User %s has %d coins.\n", user.ID, user.Coins)

	case "queue":
		entries, err := storageSvc.QueueSnapshot(ctx)
		if err != nil {
			log.Fatalf("Error reading queue: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println("Queue is empty.")
			return
		}
		for _, e := range entries {
			waited := time.Since(e.QueuedTime()).Round(time.Second)
			fmt.Printf("%s gender=%s seeking=%s filter=%v interests=%v waited=%v budget=%ds\n",
				e.UserID, e.Gender, e.Seeking, e.UsesGenderFilter, e.Interests, waited, e.WaitSeconds)
		}

	case "release":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin release <user_id>")
			os.Exit(1)
		}
		if err := storageSvc.ClearSessionPointer(ctx, os.Args[2]); err != nil {
			log.Fatalf("Error clearing session pointer: %v", err)
		}
		fmt.Printf("Session pointer for %s cleared.\n", os.Args[2])

	case "sweep-proposals":
		swept, err := storageSvc.ExpireProposals(time.Now())
		if err != nil {
			log.Fatalf("Error sweeping proposals: %v", err)
		}
		fmt.Printf("Expired %d stale proposals.\n", swept)

	case "reconcile":
		if err := storageSvc.ReconcilePending(ctx); err != nil {
			log.Fatalf("Error reconciling pending commits: %v", err)
		}
		fmt.Println("Reconciliation sweep complete.")

	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}
