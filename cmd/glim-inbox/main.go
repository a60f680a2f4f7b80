// glim-inbox signs in to a Glim server and follows the account's
// notifications live: the unread count and the newest entries are reprinted
// on every change. It exits when the session ends.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/glimsocial/glim/client/api"
	"github.com/glimsocial/glim/client/inbox"
	"github.com/glimsocial/glim/client/realtime"
	"github.com/glimsocial/glim/client/session"
)

const homePath = "/notifications"

type options struct {
	server   string
	username string
	password string
	stateDir string
	limit    int
	show     int
	poll     time.Duration
	check    time.Duration
	authFail int
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	var opts options
	flagSet := pflag.NewFlagSet("glim-inbox", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.server, "server", "s", envOr("GLIM_SERVER", "http://localhost:9090"), "Glim server base URL")
	flagSet.StringVarP(&opts.username, "username", "u", os.Getenv("GLIM_USERNAME"), "account to sign in as")
	flagSet.StringVar(&opts.password, "password", "", "account password (default $GLIM_PASSWORD)")
	flagSet.StringVar(&opts.stateDir, "state-dir", defaultStateDir(), "directory for client state")
	flagSet.IntVar(&opts.limit, "limit", inbox.DefaultLimit, "notifications kept in view")
	flagSet.IntVar(&opts.show, "show", 5, "notifications printed on each change")
	flagSet.DurationVar(&opts.poll, "poll-interval", inbox.DefaultPollInterval, "unread count poll interval")
	flagSet.DurationVar(&opts.check, "check-interval", session.DefaultCheckInterval, "session expiry check interval")
	flagSet.IntVar(&opts.authFail, "auth-failures", realtime.DefaultAuthFailureThreshold, "consecutive realtime auth failures that end the session")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if opts.password == "" {
		opts.password = os.Getenv("GLIM_PASSWORD")
	}
	if opts.username == "" || opts.password == "" {
		return errors.New("--username and --password (or GLIM_USERNAME/GLIM_PASSWORD) are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return follow(ctx, opts)
}

func follow(parent context.Context, opts options) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	baseURL, err := url.Parse(opts.server)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if err := os.MkdirAll(opts.stateDir, 0o700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	store := session.NewStore()
	client, err := api.NewClient(opts.server, store)
	if err != nil {
		return err
	}

	flags := session.NewFileFlagStore(filepath.Join(opts.stateDir, "session-expired"))
	if expired, err := flags.Consume(); err != nil {
		log.Printf("[inbox] failed to read session flag: %v", err)
	} else if expired {
		fmt.Println("Your session expired. Please sign in again.")
	}

	nav := session.NewPathNavigator(homePath)
	nav.OnNavigate = func(path string) {
		if path == session.SignInPath {
			cancel()
		}
	}
	term := session.NewTerminator(store, session.TerminatorOptions{
		Cookies:   session.NewJarCookieStore(client.Jar(), baseURL),
		Flags:     flags,
		Navigator: nav,
	})

	dialer, err := realtime.NewWebSocketDialer(opts.server)
	if err != nil {
		return err
	}
	manager := realtime.NewManager(realtime.Options{
		Dialer:               dialer,
		AuthFailureThreshold: opts.authFail,
		OnSessionExpired: func(reason string) {
			log.Printf("[realtime] session ended by server: %s", reason)
			term.Terminate(terminationReason(reason))
		},
		OnStateChange: func(s realtime.State) {
			log.Printf("[realtime] %s", s)
		},
	})
	term.SetConnection(manager)

	agg := inbox.New(client, store, inbox.Options{Limit: opts.limit, PollInterval: opts.poll})
	unsubscribe := store.Subscribe(func(st session.State) {
		if !st.Active {
			agg.Reset()
		}
	})
	defer unsubscribe()
	detach := agg.Attach(manager)
	defer detach()
	agg.OnChange(func(s inbox.Snapshot) { render(s, opts.show) })

	res, err := client.SignIn(ctx, opts.username, opts.password)
	if err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	store.SignIn(res.AccessToken, &res.User)
	log.Printf("[inbox] signed in as %s", res.User.Username)

	watchdog := session.NewWatchdog(store, term, session.WatchdogOptions{Interval: opts.check, Remote: client})
	if !watchdog.CheckNow(ctx) {
		return nil
	}

	manager.Authenticate(res.AccessToken)
	if err := agg.Fetch(ctx); err != nil {
		log.Printf("[inbox] initial fetch failed, waiting for updates: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		watchdog.Run(gctx)
		return nil
	})
	g.Go(func() error {
		agg.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		manager.Disconnect()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if !store.Active() {
		fmt.Println("Signed out.")
	}
	return nil
}

// terminationReason maps a realtime escalation to the terminator's reason.
func terminationReason(reason string) session.Reason {
	switch reason {
	case realtime.OpTokenExpired:
		return session.ReasonServerExpired
	case realtime.OpForceLogout:
		return session.ReasonForceLogout
	default:
		return session.ReasonRealtimeAuth
	}
}

func render(s inbox.Snapshot, show int) {
	fmt.Printf("\n%d unread\n", s.Unread)
	for i, e := range s.Entries {
		if i == show {
			fmt.Printf("  … %d more\n", len(s.Entries)-show)
			break
		}
		mark := " "
		if !e.Notification.IsRead {
			mark = "•"
		}
		kind := inbox.Kind(e.Notification.Type)
		fmt.Printf("  %s [%s] %s  %s\n", mark, kind.Label, e.Notification.Title, inbox.Route(e.Notification))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "glim")
	}
	return ".glim"
}
