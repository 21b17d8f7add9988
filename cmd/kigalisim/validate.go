package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/kigalisim/internal/engine/lang"
)

func validateCmd(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Println("usage: kigalisim validate <script>")
		return exitUsage
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		logger.Error("read script failed", "error", err)
		return exitIOError
	}

	result := lang.Parse(string(src))
	if !result.OK() {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		return exitParseError
	}

	fmt.Printf("ok: %d application(s) in default stanza, %d polic(y/ies), %d simulation(s)\n",
		len(result.Program.Default.Applications), len(result.Program.Policies), len(result.Program.Simulations))
	return exitOK
}
