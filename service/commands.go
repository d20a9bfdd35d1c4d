package service

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"memories/app/config"
	"memories/app/logging"
	"memories/app/repositories"
	"memories/app/seed"
	"memories/app/services"
)

var (
	loadConfig    = config.Load
	runAppServer  = RunAppServer
	errBadgerOnly = errors.New("this command needs STORE_DRIVER=badger")
)

// HandleCommand runs one subcommand and returns an exit code.
func HandleCommand(args []string) int {
	if len(args) < 1 {
		printHelp()
		return 1
	}

	cmd := strings.ToLower(args[0])
	switch cmd {
	case "help", "-h", "--help":
		printHelp()
		return 0
	case "version":
		fmt.Fprintf(stdout, "memories version %s\n", Version)
		return 0
	case "serve", "seed", "backup", "restore", "clean":
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n\n", cmd)
		printHelp()
		return 1
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stdout, "Configuration error: %v\n", err)
		return 1
	}
	logger := logging.Setup(cfg.Env, cfg.LogLevel)

	switch cmd {
	case "serve":
		if err := runAppServer(cfg, logger); err != nil {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	case "seed":
		return seedCommand(cfg, args[1:])
	case "backup":
		return backup(cfg, args[1:])
	case "restore":
		return restore(cfg, args[1:])
	default:
		return clean(cfg, args[1:])
	}
}

func printHelp() {
	helpText := `Usage: memories <command> [options]

Commands:
  serve                           Run the HTTP API
  seed [-n count] [-seed value]   Fill the store with fake posts
  backup [-o file]                Write a backup of the badger store
  restore [-y] <file>             Restore the badger store from a backup
  clean [-y]                      Remove the badger store
  version                         Show version information
  help                            Display this help message

Configuration is read from config.yml, .env and the environment.`
	fmt.Fprintln(stdout, helpText)
}

func seedCommand(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stdout)
	count := fs.Int("n", 24, "number of posts")
	seedValue := fs.Int64("seed", 0, "random seed, 0 picks one")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stdout, "Failed to open store: %v\n", err)
		return 1
	}
	defer store.Close()

	posts := services.NewPostService(store, nil, nil)
	comments := services.NewCommentService(store, nil, nil)
	n, err := seed.Run(ctx, seed.NewFactory(*seedValue), posts, comments, seed.Options{
		Posts:       *count,
		MaxLikes:    5,
		MaxComments: 3,
	}, nil)
	if err != nil {
		fmt.Fprintf(stdout, "Seeding failed after %d posts: %v\n", n, err)
		return 1
	}
	fmt.Fprintf(stdout, "Seeded %d posts\n", n)
	return 0
}

func openBadgerStore(cfg *config.Config) (*repositories.BadgerPostRepository, error) {
	if cfg.StoreDriver != config.DriverBadger || cfg.BadgerPath == "" {
		return nil, errBadgerOnly
	}
	db, err := repositories.OpenBadger(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}
	return repositories.NewBadgerPostRepository(db, cfg.ConflictRetries), nil
}

// backup creates a backup of the database.
func backup(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	fs.SetOutput(stdout)
	out := fs.String("o", "", "backup file (default data/backups/backup_<unix>.db)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if _, err := os.Stat(cfg.BadgerPath); os.IsNotExist(err) {
		fmt.Fprintln(stdout, "No database exists to backup")
		return 1
	}
	store, err := openBadgerStore(cfg)
	if err != nil {
		fmt.Fprintf(stdout, "Failed to open database: %v\n", err)
		return 1
	}
	defer store.Close()

	backupFile := *out
	if backupFile == "" {
		backupFile = filepath.Join("data", "backups", fmt.Sprintf("backup_%d.db", time.Now().Unix()))
	}
	if err := os.MkdirAll(filepath.Dir(backupFile), 0o755); err != nil {
		fmt.Fprintf(stdout, "Failed to create backup directory: %v\n", err)
		return 1
	}
	f, err := os.Create(backupFile)
	if err != nil {
		fmt.Fprintf(stdout, "Failed to create backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	if _, err := store.Backup(f); err != nil {
		fmt.Fprintf(stdout, "Failed to backup database: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Database backed up successfully to %s\n", backupFile)
	return 0
}

// restore restores the database from a backup.
func restore(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(stdout)
	yes := fs.Bool("y", false, "replace an existing database without asking")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stdout, "Error: backup file path required for restore")
		return 1
	}
	backupFile := fs.Arg(0)

	fi, err := os.Stat(backupFile)
	if err != nil {
		fmt.Fprintf(stdout, "Backup file does not exist: %s\n", backupFile)
		return 1
	}
	if fi.Size() == 0 {
		fmt.Fprintf(stdout, "Backup file is empty: %s\n", backupFile)
		return 1
	}

	if _, err := os.Stat(cfg.BadgerPath); err == nil {
		if !*yes && !confirm("Existing database found. Do you want to replace it?") {
			fmt.Fprintln(stdout, "Operation cancelled")
			return 1
		}
		if err := os.RemoveAll(cfg.BadgerPath); err != nil {
			fmt.Fprintf(stdout, "Failed to remove existing database: %v\n", err)
			return 1
		}
	}
	if err := os.MkdirAll(cfg.BadgerPath, 0o755); err != nil {
		fmt.Fprintf(stdout, "Failed to create database directory: %v\n", err)
		return 1
	}

	store, err := openBadgerStore(cfg)
	if err != nil {
		fmt.Fprintf(stdout, "Failed to open database: %v\n", err)
		return 1
	}
	defer store.Close()

	f, err := os.Open(backupFile)
	if err != nil {
		fmt.Fprintf(stdout, "Failed to open backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	err = func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic occurred during restore: %v", r)
			}
		}()
		return store.Load(f)
	}()
	if err != nil {
		fmt.Fprintf(stdout, "Failed to restore database: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Database restored successfully")
	return 0
}

// clean removes the database.
func clean(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	fs.SetOutput(stdout)
	yes := fs.Bool("y", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if cfg.StoreDriver != config.DriverBadger || cfg.BadgerPath == "" {
		fmt.Fprintln(stdout, errBadgerOnly)
		return 1
	}

	if _, err := os.Stat(cfg.BadgerPath); os.IsNotExist(err) {
		fmt.Fprintln(stdout, "Database is already clean (does not exist)")
		return 0
	}
	if !*yes && !confirm("Are you sure you want to clean the database? This cannot be undone.") {
		fmt.Fprintln(stdout, "Operation cancelled")
		return 0
	}
	if err := os.RemoveAll(cfg.BadgerPath); err != nil {
		fmt.Fprintf(stdout, "Failed to clean database: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Database cleaned successfully")
	return 0
}
