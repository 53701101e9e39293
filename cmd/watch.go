package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/internal/poller"
	"github.com/MimeLyc/lecture-pipeline/internal/service"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"github.com/dustin/go-humanize"
)

// watch polls a running server until a lecture settles, printing each change.
func watch(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	server := fs.String("server", defaultServerURL(cfg.HTTP.Addr), "base URL of the lecture API")
	interval := fs.Duration("interval", poller.DefaultInterval, "poll interval")
	timeout := fs.Duration("timeout", poller.DefaultTimeout, "give up after")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: lecture-pipeline watch [flags] <lecture-id>")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lastStatus := ""
	view, err := poller.Poll(ctx, poller.NewHTTPFetcher(*server, nil), fs.Arg(0), poller.Options{
		Interval: *interval,
		Timeout:  *timeout,
		OnUpdate: func(v *service.StatusView) {
			if v.Status != lastStatus {
				log.Info("%s: %s (updated %s)", v.LectureID, v.Status, humanize.Time(v.UpdatedAt))
				lastStatus = v.Status
			}
		},
	})
	if err != nil {
		log.Error("watch %s: %v", fs.Arg(0), err)
		return 1
	}
	if view.Failure != nil {
		log.Error("%s failed [%s]: %s", view.LectureID, view.Failure.Kind, view.Failure.Message)
		log.Info("advice: %s", service.Advice(service.ParseErrorKind(view.Failure.Kind)))
		return 1
	}
	fmt.Println(view.SummaryPreview)
	return 0
}

func defaultServerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
