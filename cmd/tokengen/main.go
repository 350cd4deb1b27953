// Command tokengen mints a bearer token for a principal using the API's JWT
// settings. It is meant for operators and local testing; the reserve uses it
// to obtain its admin token.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"coin-bank/config"
	"coin-bank/internal/service"
)

func main() {
	principal := flag.String("principal", "", "principal the token is issued to")
	configPath := flag.String("config", "", "path to config file")
	expiry := flag.Duration("expiry", 0, "token lifetime (defaults to jwt.expiry)")
	flag.Parse()

	if *principal == "" {
		fmt.Fprintln(os.Stderr, "usage: tokengen -principal <name> [-config path] [-expiry 24h]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "jwt.secret is not set (BANK_JWT_SECRET)")
		os.Exit(1)
	}

	lifetime := cfg.JWT.Expiry
	if *expiry > 0 {
		lifetime = *expiry
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, lifetime, cfg.JWT.Issuer).Generate(*principal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
}
