package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/version"
	_ "go.uber.org/automaxprocs"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/san11tools/memscope/pkg/cfg"
	"github.com/san11tools/memscope/pkg/util"
	memcontext "github.com/san11tools/memscope/pkg/util/context"
)

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	ctx := memcontext.WithLogger(context.Background(), logger)
	ctx = withOutput(ctx, os.Stdout)

	app := kingpin.New(filepath.Base(os.Args[0]), "Resolves addresses and names against declared memory layouts.").UsageWriter(os.Stdout)
	app.Version(version.Print("memscope"))
	app.HelpFlag.Short('h')

	flags := addConfigFlags(app, cfg.FlagSet())

	resolveCmd := app.Command("resolve", "Resolve addresses to the path of nested fields containing them.")
	resolveParams := addResolveParams(resolveCmd)

	searchCmd := app.Command("search", "Find every node whose name contains a text.")
	searchParams := addSearchParams(searchCmd)

	treeCmd := app.Command("tree", "Print a struct type and its nested fields.")
	treeParams := addTreeParams(treeCmd)

	checkCmd := app.Command("check", "Build every version and print its diagnostics. Fails on fatal ones.")

	convertCmd := app.Command("convert", "Rewrite the workbook of a version in another format.")
	convertParams := addConvertParams(convertCmd)

	serveCmd := app.Command("serve", "Serve the HTTP API and lookup page.")

	replCmd := app.Command("repl", "Resolve addresses read interactively until exit.")
	replParams := addReplParams(replCmd)

	configCmd := app.Command("config", "Print the effective configuration.")

	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	c, err := flags.load()
	if err != nil {
		os.Exit(checkError(err))
	}
	ctx = withConfig(ctx, c)
	logger = util.NewLogger(consoleOutput, c.Log.Format, c.Log.Level)
	ctx = memcontext.WithLogger(ctx, logger)

	switch parsedCmd {
	case resolveCmd.FullCommand():
		os.Exit(checkError(resolve(ctx, resolveParams)))
	case searchCmd.FullCommand():
		os.Exit(checkError(search(ctx, searchParams)))
	case treeCmd.FullCommand():
		os.Exit(checkError(tree(ctx, treeParams)))
	case checkCmd.FullCommand():
		os.Exit(checkError(check(ctx)))
	case convertCmd.FullCommand():
		os.Exit(checkError(convert(ctx, convertParams)))
	case serveCmd.FullCommand():
		os.Exit(checkError(serve(ctx)))
	case replCmd.FullCommand():
		os.Exit(checkError(repl(ctx, replParams)))
	case configCmd.FullCommand():
		os.Exit(checkError(printConfig(ctx)))
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
}

// errFailed reports a failure whose details were already printed.
var errFailed = errors.New("failed")

func checkError(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailed):
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
	contextKeyConfig
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}

func withConfig(ctx context.Context, c *cfg.Config) context.Context {
	return context.WithValue(ctx, contextKeyConfig, c)
}

func config(ctx context.Context) *cfg.Config {
	if c, ok := ctx.Value(contextKeyConfig).(*cfg.Config); ok {
		return c
	}
	return &cfg.Config{}
}
