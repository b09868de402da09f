// Command token mints a bearer token for local development.
//
//	go run ./cmd/token -user admin-1 -role admin
//	curl -H "Authorization: Bearer $(go run ./cmd/token -user emp-1)" localhost:8080/api/requests
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/timeoff"
)

func main() {
	_ = godotenv.Load()

	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HMAC secret (default $JWT_SECRET)")
	user := flag.String("user", "", "user ID the token identifies")
	role := flag.String("role", "employee", "employee, manager or admin")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "token: -user is required")
		os.Exit(2)
	}
	if *secret == "" {
		*secret = "development-only-secret"
	}
	r, err := timeoff.ParseRole(*role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(2)
	}

	token, err := api.IssueToken(*secret, timeoff.Actor{UserID: *user, Role: r}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
