package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/databases"
)

// Seeds the configured MongoDB with the demo fleet, or prints a bcrypt hash.
// Usage: go run scripts/seed.go -password <password>
//        go run scripts/seed.go -hash <password>
func main() {
	password := flag.String("password", "", "password for every seeded account")
	hash := flag.String("hash", "", "print the bcrypt hash of this password and exit")
	flag.Parse()

	if *hash != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(*hash), bcrypt.DefaultCost)
		if err != nil {
			fmt.Printf("Error generating hash: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(h))
		return
	}
	if *password == "" {
		flag.Usage()
		os.Exit(1)
	}

	conf := config.New()
	client, err := databases.NewClient(conf)
	if err != nil {
		zap.S().Fatalw("failed to create client", "error", err)
	}
	if err := client.Connect(); err != nil {
		zap.S().Fatalw("failed to connect to database", "error", err)
	}
	store := databases.NewMongoStore(client, databases.NewDatabase(conf, client), conf.LockWaitTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer store.Close(ctx)

	seeded, err := databases.Seed(ctx, store, *password, bcrypt.DefaultCost)
	if err != nil {
		zap.S().Fatalw("seed failed", "error", err)
	}
	zap.S().Infow("seeded demo fleet",
		"dispatcher", seeded.Dispatcher.Details.Email,
		"ambulances", len(seeded.Ambulances),
		"hospitals", len(seeded.Hospitals),
		"emergency", seeded.Emergency.Details.CallCode,
	)
}
