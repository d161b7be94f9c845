// Command coco_analyzer post-processes COCO benchmark output and dispatches
// experiment batches.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/user/coco_analyzer_go/internal/ctxlog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)

	err := NewRootCmd().Run(ctx, os.Args)
	stop()
	if err != nil {
		ctxlog.Logger(ctx).Error("command failed", "error", err)
		code := 1
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		os.Exit(code)
	}
}
