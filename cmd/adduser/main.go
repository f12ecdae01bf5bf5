package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/db"
	"github.com/vaughan-dsouza/ledger/internal/models"
	"github.com/vaughan-dsouza/ledger/internal/validate"
)

func main() {
	_ = godotenv.Load()

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email address")
	name := fs.String("name", "", "Display name")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	roleFlag := fs.String("role", string(models.RoleUser), "Role: USER or ADMIN")
	driver := fs.String("db-driver", envOr("DB_DRIVER", db.DriverPostgres), "Database driver: postgres or sqlite")
	dsn := fs.String("database-url", os.Getenv("DATABASE_URL"), "Database URL or SQLite path")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" || *name == "" {
		fmt.Fprintln(stdout, "Usage: adduser -email <email> -name <name> [-password <password>] [-role USER|ADMIN] [-db-driver <driver>] [-database-url <url>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email, name")
	}
	if *dsn == "" {
		return fmt.Errorf("missing database: set -database-url or DATABASE_URL")
	}

	role, err := models.ParseRole(*roleFlag)
	if err != nil {
		return err
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	in, err := validate.SignUp(validate.SignUpInput{Name: *name, Email: *email, Password: password})
	if err != nil {
		return describe(err)
	}

	ctx := context.Background()
	drv := strings.ToLower(*driver)
	conn, err := db.Connect(ctx, db.Options{Driver: drv, DSN: *dsn})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	if err := db.Migrate(conn, drv, *dsn); err != nil {
		return err
	}

	store := db.NewStore(conn)

	taken, err := store.EmailTaken(ctx, in.Email, "")
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("user %s already exists", in.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u := models.User{Name: in.Name, Email: in.Email, Password: string(hash), Role: role}
	if err := store.CreateUser(ctx, &u); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s (role %s)\n", u.Email, u.ID, u.Role)
	return nil
}

// describe flattens validation details into one line for the terminal.
func describe(err error) error {
	e, ok := apperr.As(err)
	if !ok || len(e.Details) == 0 {
		return err
	}
	msgs := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		msgs = append(msgs, d.Message)
	}
	return errors.New(strings.Join(msgs, "; "))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
