package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/todoroom/go/internal/auth"
	"github.com/mcdev12/todoroom/go/internal/config"
)

// issue_token prints a bearer token for local testing.
func main() {
	user := flag.String("user", "", "user id (random when empty)")
	ttl := flag.Duration("ttl", 0, "token lifetime (TOKEN_TTL when zero)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	userID := uuid.New()
	if *user != "" {
		if userID, err = uuid.Parse(*user); err != nil {
			fmt.Fprintf(os.Stderr, "parse user: %v\n", err)
			os.Exit(1)
		}
	}

	lifetime := cfg.TokenTTL
	if *ttl > time.Duration(0) {
		lifetime = *ttl
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, lifetime, clockwork.NewRealClock())
	if err != nil {
		fmt.Fprintf(os.Stderr, "issuer: %v\n", err)
		os.Exit(1)
	}
	token, err := issuer.Issue(userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "user %s\n", userID)
	fmt.Println(token)
}
