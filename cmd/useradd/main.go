// Command useradd prints the SQL that adds an account to the backend's
// accounts table, and optionally a dev access token for it.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gradtrust/portal/internal/auth"
	"github.com/gradtrust/portal/internal/config"
	"github.com/gradtrust/portal/internal/domain/account"
	"github.com/gradtrust/portal/internal/security"
)

type options struct {
	password string
	username string
	address  string
	role     account.Role
	token    bool
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Something went wrong: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs accepts the password before or after the flags.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: useradd <password> [-u username] [-a address] [-r role] [-token]")
		fs.PrintDefaults()
	}

	username := fs.String("u", "", "username (email)")
	address := fs.String("a", "", "wallet address")
	role := fs.String("r", string(account.RoleAdmin), "role: A, I, V or H")
	token := fs.Bool("token", false, "also print a signed dev access token")

	var password string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		password, args = args[0], args[1:]
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if password == "" {
		password = fs.Arg(0)
	}
	if password == "" {
		fs.Usage()
		return options{}, fmt.Errorf("password is required")
	}

	r, err := account.ParseRole(*role)
	if err != nil {
		return options{}, fmt.Errorf("role %q: %w", *role, err)
	}

	return options{
		password: password,
		username: *username,
		address:  *address,
		role:     r,
		token:    *token,
	}, nil
}

func run(opts options, out io.Writer) error {
	secret, err := security.NewAccountSecret(opts.password)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, insertStatement(opts.address, opts.username, secret, opts.role))

	if opts.token {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}
		tok, err := auth.NewManager(cfg.JWTSecret, 24*time.Hour).GenerateAccessToken(opts.username, opts.address, opts.role)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, tok)
	}
	return nil
}

func insertStatement(address, username string, secret security.AccountSecret, role account.Role) string {
	return fmt.Sprintf("INSERT INTO accounts VALUES ('%s', '%s', '%s', '%s', '%s');",
		quote(address), quote(username), secret.SaltHex, secret.PasshashHex, role)
}

func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
