// Command sessionctl drives a goSession client from the shell. The session
// persists in the configured token store between runs; unless a config file,
// GOSESSION_STORE_BACKEND or -store says otherwise that is a SQLite database
// under the user config directory.
//
// Usage:
//
//	sessionctl [flags] login <username> <password>
//	sessionctl [flags] logout
//	sessionctl [flags] whoami
//	sessionctl [flags] status
//	sessionctl [flags] register <name> <email> <password> [image]
//	sessionctl [flags] users
//	sessionctl [flags] image <id> <out-file>
//	sessionctl [flags] open <route>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/identity"
)

const usage = `usage: sessionctl [flags] <command> [args]

commands:
  login <username> <password>
  logout
  whoami
  status
  register <name> <email> <password> [image]
  users
  image <id> <out-file>
  open <route>

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sessionctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "TOML config file; GOSESSION_* env vars override it")
		baseURL    = fs.String("api", "", "identity service base URL (overrides config)")
		backend    = fs.String("store", "", "token store: memory, file, sqlite, redis or miniredis (overrides config; default sqlite)")
		verbose    = fs.Bool("v", false, "log at debug level to stderr")
	)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	// Sessions outlive a single invocation.
	base := goSession.DefaultConfig()
	base.Store.Backend = goSession.StoreSQLite
	cfg, err := goSession.LoadConfigFrom(base, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if *baseURL != "" {
		cfg.API.BaseURL = *baseURL
	}
	if *verbose {
		cfg.Log.Level = goSession.LevelDebug
		cfg.Log.Mode = goSession.ModeDevelopment
		cfg.Log.Encoding = goSession.EncodingConsole
	}

	logger := zap.NewNop()
	if *verbose {
		logger = goSession.NewLogger(cfg.Log)
	}
	defer func() { _ = logger.Sync() }()

	b := goSession.New().
		WithLogger(logger).
		WithNotifier(goSession.NewLogNotifier(logger))

	switch *backend {
	case "":
	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(stderr, "failed to start miniredis: %v\n", err)
			return 1
		}
		defer mr.Close()
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		defer rdb.Close()
		cfg.Store.Backend = goSession.StoreRedis
		cfg.Store.RedisAddr = mr.Addr()
		b.WithRedis(rdb)
		fmt.Fprintf(stderr, "using miniredis at %s (session ends with this process)\n", mr.Addr())
	default:
		cfg.Store.Backend = goSession.StoreBackend(*backend)
	}

	client, err := b.WithConfig(cfg).Build(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "build client: %v\n", err)
		return 1
	}
	defer client.Close()

	if err := dispatch(ctx, client, fs.Args(), stdout); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(stderr, err)
			fs.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "%s: %v\n", fs.Arg(0), err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func dispatch(ctx context.Context, c *goSession.Client, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	need := func(n int) error {
		if len(rest) < n {
			return usageError(fmt.Sprintf("%s needs %d argument(s)", cmd, n))
		}
		return nil
	}

	switch cmd {
	case "login":
		if err := need(2); err != nil {
			return err
		}
		if err := c.Login(ctx, rest[0], rest[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "logged in as %s\n", c.DisplayName(ctx, ""))
		return nil

	case "logout":
		if err := c.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "logged out")
		return nil

	case "whoami":
		name := c.DisplayName(ctx, "")
		if name == "" {
			return goSession.ErrAuthRejected
		}
		fmt.Fprintln(out, name)
		return nil

	case "status":
		return status(ctx, c, out)

	case "register":
		if err := need(3); err != nil {
			return err
		}
		return register(ctx, c, rest, out)

	case "users":
		users, err := c.Users(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tIMAGE")
		for _, u := range users {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d bytes\n", u.ID, u.Name, u.Email, len(u.ProfileImg))
		}
		return tw.Flush()

	case "image":
		if err := need(2); err != nil {
			return err
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return usageError(fmt.Sprintf("invalid user id %q", rest[0]))
		}
		img, err := c.UserImage(ctx, id)
		if err != nil {
			return err
		}
		if err := os.WriteFile(rest[1], img.Data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %d bytes (%s) to %s\n", len(img.Data), img.ContentType, rest[1])
		return nil

	case "open":
		if err := need(1); err != nil {
			return err
		}
		route, d, err := c.Navigate(ctx, rest[0])
		if err != nil {
			return err
		}
		if !d.Allowed {
			fmt.Fprintf(out, "denied, redirected to %s\n", route)
			return d.Err
		}
		fmt.Fprintf(out, "opened %s\n", route)
		return nil
	}
	return usageError(fmt.Sprintf("unknown command %q", cmd))
}

func status(ctx context.Context, c *goSession.Client, out io.Writer) error {
	active, err := c.Session().IsActive(ctx)
	if err != nil {
		return err
	}
	cfg := c.Config()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "api\t%s\n", cfg.API.BaseURL)
	fmt.Fprintf(tw, "store\t%s (%s)\n", cfg.Store.Backend, cfg.Store.Namespace)
	fmt.Fprintf(tw, "active\t%t\n", active)
	if active {
		claims, err := c.Session().Decode(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(tw, "claims\tundecodable: %v\n", err)
		default:
			if sub, ok := claims.Subject(); ok {
				fmt.Fprintf(tw, "subject\t%s\n", sub)
			}
			if exp, ok := claims.ExpiresAt(); ok {
				fmt.Fprintf(tw, "expires\t%s\n", exp.Local().Format("2006-01-02 15:04:05"))
			}
		}
	}
	return tw.Flush()
}

func register(ctx context.Context, c *goSession.Client, args []string, out io.Writer) error {
	user := identity.User{Name: args[0], Email: args[1], Password: args[2]}

	var (
		image    io.Reader
		filename string
	)
	if len(args) > 3 {
		f, err := os.Open(args[3])
		if err != nil {
			return err
		}
		defer f.Close()
		image, filename = f, filepath.Base(args[3])
	}

	if err := c.Register(ctx, user, image, filename); err != nil {
		return err
	}
	fmt.Fprintf(out, "registered %s\n", user.Email)
	return nil
}
