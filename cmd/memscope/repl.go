package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/layout"
)

type replParams struct {
	*queryParams
	HistoryFile string
}

func addReplParams(cmd *kingpin.CmdClause) *replParams {
	params := &replParams{queryParams: addQueryParams(cmd, outputText, outputTable, outputJSON)}
	cmd.Flag("history-file", "File keeping the entered addresses across sessions.").StringVar(&params.HistoryFile)
	return params
}

type lineReader interface {
	Readline() (string, error)
}

func repl(ctx context.Context, params *replParams) error {
	cat, err := loadCatalog(ctx, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return replLoop(ctx, cat, params, newScanReader(os.Stdin))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          params.Version + "> ",
		HistoryFile:     params.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	return replLoop(ctx, cat, params, rl)
}

// scanReader reads piped input line by line, without prompts.
type scanReader struct {
	scanner *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	return &scanReader{scanner: bufio.NewScanner(r)}
}

func (r *scanReader) Readline() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// replLoop resolves one address per line until "exit", end of input or an
// interrupt. Bad input is reported and the loop goes on.
func replLoop(ctx context.Context, cat *catalog.Catalog, params *replParams, lines lineReader) error {
	v, err := cat.Version(params.Version)
	if err != nil {
		return err
	}
	out := output(ctx)
	for {
		line, err := lines.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		addr, err := layout.ParseAddress(line)
		if err != nil {
			fmt.Fprintf(out, "invalid address %q\n", line)
			continue
		}
		p, _, err := cat.ResolveAddress(v.Name, addr)
		if err != nil {
			return err
		}
		if err := writePath(ctx, params.Output, v.Resolver.Render(ctx, p), params.renderOptions()); err != nil {
			return err
		}
	}
}
