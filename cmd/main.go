package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dtroode/weibofetch/internal/config"
	"github.com/dtroode/weibofetch/internal/diag"
	"github.com/dtroode/weibofetch/internal/logger"
	"github.com/dtroode/weibofetch/internal/model"
	"github.com/dtroode/weibofetch/internal/repository/file"
	"github.com/dtroode/weibofetch/internal/service"
	storage "github.com/dtroode/weibofetch/internal/storage/minio"
	"github.com/dtroode/weibofetch/internal/transport"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const usage = `usage: weibofetch <command> [flags]

commands:
  add        provision an account from exported cookies
  profile    fetch profile info and detail for a uid
  friends    fetch one page of followed users
  fans       fetch one page of followers
  statuses   fetch one page of the timeline
  resolve    print the uid of a managed account
  keepalive  probe all accounts and renew expired sessions
  version    print build information
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if os.Args[1] == "version" {
		fmt.Printf("Build version: %s\nBuild date: %s\nBuild commit: %s\n", buildVersion, buildDate, buildCommit)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	repo := file.NewSnapshotRepository(cfg.Store.DataDir)
	client := transport.NewClient(cfg.Transport.Timeout(), cfg.Transport.Retries)
	sessions := service.NewSessions(repo, client, cfg.Transport.UserAgent, logger)

	var archive model.Archive
	if cfg.Archive.Enabled {
		minioClient, err := minio.New(cfg.Archive.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Archive.AccessKey, cfg.Archive.SecretKey, ""),
			Secure: cfg.Archive.UseSSL,
		})
		if err != nil {
			logger.Fatal("failed to create minio client", "error", err)
		}
		archive, err = storage.NewArchive(ctx, minioClient, cfg.Archive.Bucket)
		if err != nil {
			logger.Fatal("failed to initialize diagnostics archive", "error", err)
		}
	}
	sink := diag.NewFileSink(cfg.Diag.LogFile, archive, logger)

	if err := run(ctx, os.Args[1], os.Args[2:], sessions, sink, logger); err != nil {
		logger.Fatal("command failed", "command", os.Args[1], "error", err)
	}
}

func run(ctx context.Context, command string, args []string, sessions *service.Sessions, sink model.DiagnosticSink, logger *logger.Logger) error {
	switch command {
	case "add":
		return runAdd(ctx, args, sessions, logger)
	case "profile":
		return runProfile(ctx, args, sessions, sink, logger)
	case "friends":
		return runRelations(ctx, "friends", args, sessions, sink, logger)
	case "fans":
		return runRelations(ctx, "fans", args, sessions, sink, logger)
	case "statuses":
		return runStatuses(ctx, args, sessions, sink, logger)
	case "resolve":
		return runResolve(ctx, args, sessions, sink, logger)
	case "keepalive":
		return runKeepAlive(ctx, args, sessions, sink, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runAdd(ctx context.Context, args []string, sessions *service.Sessions, logger *logger.Logger) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	account := fs.String("account", "", "account name")
	cookieFile := fs.String("cookies", "", "path to a JSON file with exported cookies")
	fs.Parse(args)

	data, err := os.ReadFile(*cookieFile)
	if err != nil {
		return fmt.Errorf("failed to read cookie file: %w", err)
	}
	var seed []model.Cookie
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse cookie file: %w", err)
	}

	version, err := sessions.AddAccount(ctx, *account, seed)
	if err != nil {
		return err
	}
	logger.Info("account provisioned", "account", *account, "version", version)
	return nil
}

func runProfile(ctx context.Context, args []string, sessions *service.Sessions, sink model.DiagnosticSink, logger *logger.Logger) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	account := fs.String("account", "", "account name")
	uid := fs.String("uid", "", "target user id")
	fs.Parse(args)

	f := service.NewFetcher(sessions, sink, logger, *account)
	profile, err := f.Profile(ctx, *uid)
	if err != nil {
		return err
	}
	return printJSON(profile)
}

func runRelations(ctx context.Context, kind string, args []string, sessions *service.Sessions, sink model.DiagnosticSink, logger *logger.Logger) error {
	fs := flag.NewFlagSet(kind, flag.ExitOnError)
	account := fs.String("account", "", "account name")
	uid := fs.String("uid", "", "target user id")
	page := fs.Int("page", 1, "page number")
	fs.Parse(args)

	f := service.NewFetcher(sessions, sink, logger, *account)

	var (
		result *service.RelationPage
		err    error
	)
	if kind == "friends" {
		result, err = f.Friends(ctx, *uid, *page)
	} else {
		result, err = f.Fans(ctx, *uid, *page)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runStatuses(ctx context.Context, args []string, sessions *service.Sessions, sink model.DiagnosticSink, logger *logger.Logger) error {
	fs := flag.NewFlagSet("statuses", flag.ExitOnError)
	account := fs.String("account", "", "account name")
	uid := fs.String("uid", "", "target user id")
	sinceID := fs.String("since-id", "", "cursor from the previous page, empty for the first")
	fs.Parse(args)

	f := service.NewFetcher(sessions, sink, logger, *account)
	page, err := f.Statuses(ctx, *uid, *sinceID)
	if err != nil {
		return err
	}
	return printJSON(page)
}

func runResolve(ctx context.Context, args []string, sessions *service.Sessions, sink model.DiagnosticSink, logger *logger.Logger) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	account := fs.String("account", "", "account name")
	fs.Parse(args)

	f := service.NewFetcher(sessions, sink, logger, *account)
	uid, err := f.ResolveUID(ctx, *account)
	if err != nil {
		return err
	}
	fmt.Println(uid)
	return nil
}

func runKeepAlive(ctx context.Context, args []string, sessions *service.Sessions, sink model.DiagnosticSink, logger *logger.Logger) error {
	fs := flag.NewFlagSet("keepalive", flag.ExitOnError)
	fs.Parse(args)

	f := service.NewFetcher(sessions, sink, logger, "")
	renewed, err := f.KeepAlive(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string][]string{"renewed": renewed})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
