// Command profile manages login profiles in the configured storage.
//
//	profile add <name> <password>
//	profile list
package main

import (
	"context"
	"fmt"
	"os"

	"repaytrack/internal/auth"
	"repaytrack/internal/config"
	"repaytrack/internal/logger"
	"repaytrack/internal/storage"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		logger.Get().Fatalf("profile: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: profile <add NAME PASSWORD|list>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	switch args[0] {
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("usage: profile add NAME PASSWORD")
		}
		hash, err := auth.HashPassword(args[2])
		if err != nil {
			return err
		}
		profile, err := store.CreateProfile(ctx, args[1], hash)
		if err != nil {
			return err
		}
		logger.Get().Infof("Created profile %q with id %d", profile.Name, profile.ID)

	case "list":
		profiles, err := store.ListProfiles(ctx)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			fmt.Printf("%d\t%s\n", p.ID, p.Name)
		}

	default:
		return fmt.Errorf("unknown command: %s (use add or list)", args[0])
	}

	return nil
}
