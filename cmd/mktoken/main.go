package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/auth"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/config"
)

// mktoken mints a development bearer token for exercising the chat API and
// websocket endpoint against a local server.
func main() {
	userID := flag.String("user", "", "User id (generated if empty)")
	userName := flag.String("name", "", "Display name")
	ttl := flag.Duration("ttl", 0, "Token lifetime (defaults to TOKEN_TTL)")
	flag.Parse()

	if *userName == "" {
		fmt.Fprintln(os.Stderr, "Usage: mktoken -name <display-name> [-user <id>] [-ttl <duration>]")
		os.Exit(1)
	}

	cfg := config.Load()

	id := *userID
	if id == "" {
		id = uuid.NewString()
	}

	lifetime := *ttl
	if lifetime == 0 {
		lifetime = cfg.TokenTTL
	}

	token, err := auth.NewVerifier(cfg.JWTSecret).Issue(id, *userName, lifetime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user_id: %s\n", id)
	fmt.Printf("expires: %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Printf("token:   %s\n", token)
}
