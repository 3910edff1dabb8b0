package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/ofirc298/GUIDESSITE2025/config"
	"github.com/ofirc298/GUIDESSITE2025/internal/adapters/jwtcodec"
	"github.com/ofirc298/GUIDESSITE2025/internal/adapters/passwords"
	"github.com/ofirc298/GUIDESSITE2025/internal/bootstrap"
	"github.com/ofirc298/GUIDESSITE2025/internal/data"
	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/ids"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
	"github.com/ofirc298/GUIDESSITE2025/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	In     io.Reader
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
)

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	bootstrap.SetLogLevel(cfg.Observability.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	if runErr != nil {
		logger.ErrorContext(ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"create-user": {
			name:        "create-user",
			description: "Create a user with the given role in the users table",
			run:         runCreateUser,
		},
		"hash-password": {
			name:        "hash-password",
			description: "Print a bcrypt hash for a password read from stdin or --password",
			run:         runHashPassword,
		},
		"issue-token": {
			name:        "issue-token",
			description: "Print a signed session token for an existing user (development)",
			run:         runIssueToken,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: guidessite-admin <command> [flags]\n\nAvailable commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-16s %s\n", name, commands()[name].description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return migrateErr
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

type createUserOptions struct {
	Email         string
	Name          string
	Role          domainauth.Role
	Password      string
	PasswordStdin bool
}

func runCreateUser(cmdCtx *commandContext, args []string) error {
	opts, err := parseCreateUserFlags(args)
	if err != nil {
		return err
	}
	if opts.PasswordStdin {
		if opts.Password, err = readPassword(cmdCtx.In); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	rec, err := createUser(ctx, data.NewUserRepo(db), passwords.NewBcryptHasher(cmdCtx.Config.Auth.BcryptCost), opts)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "created user %s (%s, %s)\n", rec.ID, rec.Email, rec.Role)
}

func parseCreateUserFlags(args []string) (createUserOptions, error) {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		opts createUserOptions
		role string
	)
	fs.StringVar(&opts.Email, "email", "", "Email address (required)")
	fs.StringVar(&opts.Name, "name", "", "Display name")
	fs.StringVar(&role, "role", string(domainauth.RoleStudent), "One of STUDENT, CONTENT_MANAGER, ADMIN")
	fs.StringVar(&opts.Password, "password", "", "Password (prefer --password-stdin)")
	fs.BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from stdin")

	if err := fs.Parse(args); err != nil {
		return createUserOptions{}, err
	}

	opts.Email = domainauth.NormalizeEmail(opts.Email)
	if opts.Email == "" {
		return createUserOptions{}, errors.New("--email is required")
	}
	parsed, err := domainauth.ParseRole(role)
	if err != nil {
		return createUserOptions{}, fmt.Errorf("--role: %w", err)
	}
	if parsed == domainauth.RoleGuest {
		return createUserOptions{}, errors.New("--role GUEST cannot be assigned to an account")
	}
	opts.Role = parsed
	if opts.Password == "" && !opts.PasswordStdin {
		return createUserOptions{}, errors.New("--password or --password-stdin is required")
	}
	return opts, nil
}

func createUser(ctx context.Context, store ports.CredentialStore, hasher ports.PasswordHasher, opts createUserOptions) (domainauth.UserRecord, error) {
	if len([]rune(opts.Password)) < service.MinPasswordLength {
		return domainauth.UserRecord{}, fmt.Errorf("password must be at least %d characters", service.MinPasswordLength)
	}
	hash, err := hasher.Hash(opts.Password)
	if err != nil {
		return domainauth.UserRecord{}, fmt.Errorf("hash password: %w", err)
	}
	rec, err := store.Create(ctx, ports.NewUser{
		ID:           ids.New(),
		Email:        opts.Email,
		Name:         opts.Name,
		Role:         opts.Role,
		PasswordHash: hash,
	})
	if err != nil {
		return domainauth.UserRecord{}, fmt.Errorf("create user: %w", err)
	}
	return rec, nil
}

func runHashPassword(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	password := fs.String("password", "", "Password to hash; read from stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	plain := *password
	if plain == "" {
		var err error
		if plain, err = readPassword(cmdCtx.In); err != nil {
			return err
		}
	}

	hash, err := passwords.NewBcryptHasher(cmdCtx.Config.Auth.BcryptCost).Hash(plain)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return writef(cmdCtx.Out, "%s\n", hash)
}

type issueTokenOptions struct {
	Email string
	TTL   time.Duration
}

func runIssueToken(cmdCtx *commandContext, args []string) error {
	opts, err := parseIssueTokenFlags(args, cmdCtx.Config.Auth.SessionTTL)
	if err != nil {
		return err
	}
	if err := cmdCtx.Config.Auth.Validate(); err != nil {
		return err
	}
	codec, err := jwtcodec.New(jwtcodec.Options{
		Secret: []byte(cmdCtx.Config.Auth.SessionSecret),
		Issuer: cmdCtx.Config.Auth.TokenIssuer,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	token, err := issueToken(ctx, data.NewUserRepo(db), codec, opts, time.Now())
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "%s\n", token)
}

func parseIssueTokenFlags(args []string, defaultTTL time.Duration) (issueTokenOptions, error) {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts issueTokenOptions
	fs.StringVar(&opts.Email, "email", "", "Email of an existing user (required)")
	fs.DurationVar(&opts.TTL, "ttl", defaultTTL, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return issueTokenOptions{}, err
	}
	if opts.Email = domainauth.NormalizeEmail(opts.Email); opts.Email == "" {
		return issueTokenOptions{}, errors.New("--email is required")
	}
	if opts.TTL <= 0 {
		return issueTokenOptions{}, errors.New("--ttl must be greater than zero")
	}
	return opts, nil
}

func issueToken(
	ctx context.Context,
	store ports.CredentialStore,
	codec ports.TokenCodec,
	opts issueTokenOptions,
	now time.Time,
) (string, error) {
	rec, err := store.FindByEmail(ctx, opts.Email)
	if err != nil {
		return "", fmt.Errorf("find user %s: %w", opts.Email, err)
	}
	return codec.Encode(domainauth.NewSessionClaims(domainauth.UserFromRecord(rec), now, opts.TTL))
}

// readPassword reads the first line of r, without its line ending.
func readPassword(r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("no password input")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
