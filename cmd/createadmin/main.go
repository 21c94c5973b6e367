package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Staysteady/bpipe/internal/auth"
	"github.com/Staysteady/bpipe/internal/config"
	"github.com/Staysteady/bpipe/internal/db"
	"github.com/Staysteady/bpipe/internal/models"
	"github.com/Staysteady/bpipe/internal/repository"
)

// createadmin bootstraps the first admin account so the dashboard can
// be logged into before any self-service registration happens.
func main() {
	fmt.Println("=== Create Admin User ===")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Open failed: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	userRepo := repository.NewUserRepo(database)
	sessionRepo := repository.NewSessionRepo(database)
	mgr := auth.NewManager(userRepo, sessionRepo,
		time.Duration(cfg.SessionDurationHours)*time.Hour)

	reader := bufio.NewReader(os.Stdin)

	username := prompt(reader, "Username: ")
	if username == "" {
		fail("username cannot be empty")
	}
	email := prompt(reader, "Email: ")
	if !strings.Contains(email, "@") {
		fail("invalid email address")
	}
	password := prompt(reader, "Password: ")
	if len(password) < 6 {
		fail("password must be at least 6 characters")
	}
	confirm := prompt(reader, "Confirm password: ")
	if confirm != password {
		fail("passwords do not match")
	}

	user, err := mgr.Register(context.Background(), username, email, password, models.RoleAdmin)
	if err != nil {
		fail(err.Error())
	}

	fmt.Printf("\nAdmin user %q created (id %s)\n", user.Username, user.ID)
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil {
		fail(err.Error())
	}
	return strings.TrimSpace(line)
}

func fail(msg string) {
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	os.Exit(1)
}
