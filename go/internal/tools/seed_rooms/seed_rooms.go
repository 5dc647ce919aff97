package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/todoroom/go/internal/auth"
	"github.com/mcdev12/todoroom/go/internal/config"
	"github.com/mcdev12/todoroom/go/internal/dbconfig"
	"github.com/mcdev12/todoroom/go/internal/room"
	"github.com/mcdev12/todoroom/go/internal/room/draw"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

func main() {
	presetsPath := flag.String("presets", "go/internal/assets/rooms.yaml", "room presets file")
	owner := flag.String("owner", "", "user id that owns the seeded rooms")
	flag.Parse()

	// 1) Load the presets
	presets, err := config.LoadPresets(*presetsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load presets: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if *owner != "" {
		ownerID, err := uuid.Parse(*owner)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse owner: %v\n", err)
			os.Exit(1)
		}
		ctx = auth.WithUserID(ctx, ownerID)
	}

	// 2) Connect using shared dbconfig
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "db config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := repository.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	// 3) Create through the app so validation and outbox events apply
	clock := clockwork.NewRealClock()
	app := room.NewApp(repo, draw.NewGuard(repo, clock), clock, presets.Defaults)

	var created, errs int
	for _, seed := range presets.Rooms {
		r, err := app.CreateRoom(ctx, seed.Request())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating room %q: %v\n", seed.Name, err)
			errs++
			continue
		}
		fmt.Printf("created %s %q\n", r.ID, r.Name)
		created++
	}

	// 4) Print summary
	fmt.Printf("Rooms seed complete: %d total, %d created, %d errors\n", len(presets.Rooms), created, errs)
}
