package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"media-ingest/internal/database"
	"media-ingest/internal/startup"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, startup.DatabaseFile)

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	interactive := term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
	cli := &cli{db: db, out: os.Stdout, in: bufio.NewReader(os.Stdin), interactive: interactive}

	if err := cli.run(ctx, command, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

type cli struct {
	db          *database.Database
	out         io.Writer
	in          *bufio.Reader
	interactive bool
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	switch command {
	case "create":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("%w: create <user-id> [label]", errUsage)
		}
		userID, err := parseID(args[0])
		if err != nil {
			return err
		}
		label := ""
		if len(args) == 2 {
			label = args[1]
		}
		return c.create(ctx, userID, label)
	case "list":
		if len(args) != 1 {
			return fmt.Errorf("%w: list <user-id>", errUsage)
		}
		userID, err := parseID(args[0])
		if err != nil {
			return err
		}
		return c.list(ctx, userID)
	case "revoke":
		if len(args) != 1 {
			return fmt.Errorf("%w: revoke <token-id>", errUsage)
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return c.revoke(ctx, id)
	default:
		return fmt.Errorf("%w: unknown command %s", errUsage, sanitizeCommand(command))
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive id", errUsage, sanitizeCommand(raw))
	}
	return id, nil
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Media Ingest API Token Management")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: issuetoken <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  create <user-id> [label]  - Issue a token for an owner")
	fmt.Fprintln(w, "  list <user-id>            - List active tokens of an owner")
	fmt.Fprintln(w, "  revoke <token-id>         - Disable a token")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func (c *cli) create(ctx context.Context, userID int64, label string) error {
	bearer, tok, err := c.db.CreateToken(ctx, userID, label)
	if err != nil {
		return err
	}

	if !c.interactive {
		fmt.Fprintln(c.out, bearer)
		return nil
	}

	fmt.Fprintf(c.out, "Token %d issued for user %d.\n", tok.ID, tok.UserID)
	fmt.Fprintln(c.out, "")
	fmt.Fprintf(c.out, "  %s\n", bearer)
	fmt.Fprintln(c.out, "")
	fmt.Fprintln(c.out, "Send it as \"Authorization: Bearer <token>\". It will not be shown again.")
	return nil
}

func (c *cli) list(ctx context.Context, userID int64) error {
	tokens, err := c.db.ListTokens(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		fmt.Fprintf(c.out, "No active tokens for user %d\n", userID)
		return nil
	}

	fmt.Fprintf(c.out, "%-6s %-20s %-20s %s\n", "ID", "CREATED", "LAST USED", "LABEL")
	for _, t := range tokens {
		lastUsed := "never"
		if t.LastUsedAt != nil {
			lastUsed = t.LastUsedAt.Format(time.DateTime)
		}
		fmt.Fprintf(c.out, "%-6d %-20s %-20s %s\n", t.ID, t.CreatedAt.Format(time.DateTime), lastUsed, t.Label)
	}
	return nil
}

func (c *cli) revoke(ctx context.Context, id int64) error {
	if c.interactive {
		fmt.Fprintf(c.out, "Revoke token %d? Clients using it will be rejected. [y/N]: ", id)
		answer, err := c.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(c.out, "Aborted.")
			return nil
		}
	}

	if err := c.db.RevokeToken(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("token %d does not exist", id)
		}
		return err
	}
	fmt.Fprintf(c.out, "Token %d revoked.\n", id)
	return nil
}
