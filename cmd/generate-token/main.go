// Command generate-token signs a bearer token for local testing against an
// auth-enabled server. It reads JWT_SECRET and JWT_EXPIRY like the server does.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"tourbus/internal/auth"
	"tourbus/internal/config"
	"tourbus/internal/domain"
)

func main() {
	userID := flag.String("user", "", "user ID to embed in the token")
	role := flag.String("role", string(domain.RoleCustomer), "role: customer or owner")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: generate-token -user <id> [-role customer|owner]")
		os.Exit(2)
	}

	r := domain.Role(*role)
	if r != domain.RoleCustomer && r != domain.RoleOwner {
		logrus.WithField("role", *role).Fatal("role must be customer or owner")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if len(cfg.Auth.Secret) < 32 {
		logrus.Fatal("JWT_SECRET must be at least 32 bytes")
	}

	token, err := auth.NewService(cfg.Auth.Secret, cfg.Auth.TokenExpiry).GenerateToken(*userID, r)
	if err != nil {
		logrus.WithError(err).Fatal("failed to sign token")
	}
	fmt.Println(token)
}
