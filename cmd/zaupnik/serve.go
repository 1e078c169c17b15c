package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zaupnik/internal/access"
	"github.com/erazemk/zaupnik/internal/api"
	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/notify"
	"github.com/erazemk/zaupnik/internal/store"
)

func (c *cli) serve(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("serve", "")
	if err != nil {
		return err
	}
	cfg.AddServerFlags(fs)
	if err := c.parse(fs, args, 0); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	closeLog := setupLogger(cfg.LogPath, c.stdout)
	defer closeLog()

	database, err := openDatabase(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}
	defer database.Close()

	// First run: create the admin account.
	password, err := initDatabase(ctx, database, cfg.AdminUser)
	switch {
	case err == nil:
		printInitResult(c.stdout, cfg.DSN, cfg.AdminUser, password)
		fmt.Fprintln(c.stdout)
	case errors.Is(err, errInitialized):
	default:
		return fmt.Errorf("initializing database: %w", err)
	}

	slog.Info("database ready", "driver", cfg.Driver)

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	broker := notify.NewBroker()
	svc := access.New(database, cfg.Access(), access.WithPublisher(broker))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(api.NewRouter(database, svc, broker, jwtSecret)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "transfer_window", cfg.TransferWindow)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

func (c *cli) initialize(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("init", "")
	if err != nil {
		return err
	}
	cfg.AddServerFlags(fs)
	if err := c.parse(fs, args, 0); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	closeLog := setupLogger(cfg.LogPath, c.stderr)
	defer closeLog()

	database, err := openDatabase(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}
	defer database.Close()

	password, err := initDatabase(ctx, database, cfg.AdminUser)
	if err != nil {
		return err
	}
	printInitResult(c.stdout, cfg.DSN, cfg.AdminUser, password)
	return nil
}

// openDatabase opens the database and brings its schema up to date.
func openDatabase(ctx context.Context, driver, dsn string) (*db.DB, error) {
	database, err := db.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return database, nil
}

var errInitialized = errors.New("database is already initialized")

// initDatabase creates the admin user with a generated password. It refuses
// to touch a database that already has users.
func initDatabase(ctx context.Context, database *db.DB, adminUsername string) (string, error) {
	users, err := store.ListUsers(ctx, database)
	if err != nil {
		return "", err
	}
	if len(users) > 0 {
		return "", fmt.Errorf("%w: %d users exist", errInitialized, len(users))
	}

	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(ctx, database, adminUsername, adminUsername, "", string(hash), model.RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// printInitResult prints the database initialization result.
func printInitResult(w io.Writer, dsn, username, password string) {
	fmt.Fprintf(w, "Database initialized: %s\n", dsn)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin account created:")
	fmt.Fprintf(w, "  Username: %s\n", username)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
	fmt.Fprintln(w, "The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
