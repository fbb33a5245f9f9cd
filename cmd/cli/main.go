package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"

	"github.com/himanishpuri/landmark/internal/storage"
	"github.com/himanishpuri/landmark/pkg/landmark"
	"github.com/himanishpuri/landmark/pkg/logger"
)

// Exit codes.
const (
	exitOK      = 0
	exitNoMatch = 1
	exitFatal   = 2
	exitUsage   = 64
)

// errUsage marks a bad invocation; the message has already been printed.
var errUsage = errors.New("usage")

type cli struct {
	out io.Writer
	log *logger.Logger

	dbPath  string
	backend string
	workers int
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	c := &cli{out: out, log: logger.GetLogger()}
	env := storage.OptionsFromEnv()

	global := flag.NewFlagSet("landmark", flag.ContinueOnError)
	global.SetOutput(out)
	global.StringVar(&c.dbPath, "db", env.Path, "Path to the database file or directory (env: LANDMARK_DB_PATH)")
	global.StringVar(&c.backend, "backend", env.Backend, "Storage backend: sqlite, badger or memory (env: LANDMARK_BACKEND)")
	global.IntVar(&c.workers, "workers", envInt("LANDMARK_WORKERS", 4), "Files fingerprinted in parallel by add (env: LANDMARK_WORKERS)")
	verbose := global.Bool("v", false, "Debug logging")
	global.Usage = func() { printUsage(out) }

	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if *verbose {
		c.log.SetLevel(logger.DEBUG)
	}
	if c.backend == "" {
		c.backend = storage.BackendSQLite
	}
	if c.dbPath == "" {
		c.dbPath = storage.DefaultDBFile
		if c.backend == storage.BackendBadger {
			c.dbPath = storage.DefaultBadgerDir
		}
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(out)
		return exitUsage
	}

	command, cmdArgs := rest[0], rest[1:]
	c.log.Debugf("Executing command: %s", command)

	var err error
	switch command {
	case "add":
		err = c.add(cmdArgs)
	case "match":
		err = c.match(cmdArgs)
	case "list":
		err = c.list(cmdArgs)
	case "delete":
		err = c.delete(cmdArgs)
	case "stats":
		err = c.stats(cmdArgs)
	case "render":
		err = c.render(cmdArgs)
	case "help", "-h", "--help":
		printUsage(out)
		return exitOK
	default:
		fmt.Fprintf(out, "Unknown command: %s\n", command)
		printUsage(out)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, landmark.ErrNoMatch):
		color.New(color.FgYellow).Fprintln(c.out, "No match found")
		return exitNoMatch
	default:
		c.fatal(command, err)
		return exitFatal
	}
}

// fatal reports err with a stack trace attached at the CLI boundary. The
// trace is only printed at DEBUG.
func (c *cli) fatal(command string, err error) {
	err = xerrors.New(err)
	color.New(color.FgRed, color.Bold).Fprintf(c.out, "%s failed: %v\n", command, err)
	c.log.Errorf("%s failed: %v", command, err)
	if c.log.Level() <= logger.DEBUG {
		c.log.Debugf("%s", xerrors.Sprint(err))
	}
}

func (c *cli) newService(opts ...landmark.Option) (landmark.Service, error) {
	opts = append([]landmark.Option{
		landmark.WithDBPath(c.dbPath),
		landmark.WithBackend(c.backend),
		landmark.WithLogger(c.log),
		landmark.WithWorkers(c.workers),
	}, opts...)
	return landmark.NewService(opts...)
}

// parseArgs lets flags follow positional arguments, e.g. "add song.wav -name X".
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, errUsage
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (c *cli) usageError(format string, args ...any) error {
	fmt.Fprintf(c.out, format+"\n", args...)
	return errUsage
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "landmark - audio fingerprinting CLI")
	fmt.Fprintln(w, "\nGlobal Options:")
	fmt.Fprintf(w, "  -db <path>         Database path (env: LANDMARK_DB_PATH, default: %s or %s)\n", storage.DefaultDBFile, storage.DefaultBadgerDir)
	fmt.Fprintln(w, "  -backend <name>    sqlite, badger or memory (env: LANDMARK_BACKEND, default: sqlite)")
	fmt.Fprintln(w, "  -workers <n>       Parallel files for add (env: LANDMARK_WORKERS, default: 4)")
	fmt.Fprintln(w, "  -v                 Debug logging (or LOG_LEVEL=DEBUG)")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  landmark [global-options] add <file.wav|dir> [-name <name>]")
	fmt.Fprintln(w, "  landmark [global-options] match <file.wav> [-top <n>]")
	fmt.Fprintln(w, "  landmark [global-options] list")
	fmt.Fprintln(w, "  landmark [global-options] delete <track_id>")
	fmt.Fprintln(w, "  landmark [global-options] stats")
	fmt.Fprintln(w, "  landmark render <file.wav> -out <image.png> [-peaks]")
	fmt.Fprintln(w, "\nExit codes: 0 ok, 1 no match, 2 error, 64 usage")
}
