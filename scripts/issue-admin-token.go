package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sporesmarket/settlement/internal/auth"
)

// Mints a bearer token for the /api/v1/admin endpoints from the shared
// ADMIN_JWT_SECRET. Meant for operators, not for services.
func main() {
	_ = godotenv.Load()

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		log.Fatal("ADMIN_JWT_SECRET environment variable is required")
	}

	subject := os.Getenv("ADMIN_TOKEN_SUBJECT")
	if subject == "" {
		subject = "ops"
	}

	ttl := 24 * time.Hour
	if raw := os.Getenv("ADMIN_TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Invalid ADMIN_TOKEN_TTL %q: %v", raw, err)
		}
		ttl = parsed
	}

	token, err := auth.IssueAdminToken(secret, subject, ttl)
	if err != nil {
		log.Fatalf("Failed to issue admin token: %v", err)
	}

	fmt.Printf("Subject:  %s\n", subject)
	fmt.Printf("Expires:  %s\n", time.Now().Add(ttl).Format(time.RFC3339))
	fmt.Printf("Token:    %s\n", token)
}
