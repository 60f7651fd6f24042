// Command viewsession opens a protected viewing session against a source
// reference and reports what a hosting UI would observe: status
// transitions, rendered pages and the viewer watermark.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wudi/viewkit/monitor"
	"github.com/wudi/viewkit/raster"
	"github.com/wudi/viewkit/session"
)

type options struct {
	sourceRef string
	viewer    string
	title     string
	scale     float64
	rotate    int
	timeout   time.Duration
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewsession: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "viewsession: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/viewsession [flags] <source-ref>\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.viewer, "viewer", "anonymous", "Viewer identity embedded in the watermark")
	flag.StringVar(&opts.title, "title", "", "Display title (no semantic effect)")
	flag.Float64Var(&opts.scale, "scale", 1.0, "Rasterization scale factor")
	flag.IntVar(&opts.rotate, "rotate", 0, "Rotation in degrees (quarter turns)")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Overall deadline")
	flag.Parse()
	if flag.NArg() != 1 {
		return opts, fmt.Errorf("exactly one source reference required")
	}
	opts.sourceRef = flag.Arg(0)
	return opts, nil
}

func run(opts options) error {
	rot, err := raster.ParseRotation(opts.rotate)
	if err != nil {
		return err
	}
	s, err := session.NewBuilder().
		WithSourceRef(opts.sourceRef).
		WithViewer(opts.viewer).
		WithTitle(opts.title).
		WithScale(opts.scale).
		WithRotation(rot).
		WithNotify(func(n monitor.Notice) {
			fmt.Printf("notice: %s (until %s)\n", n.Message, n.Until.Format(time.RFC3339))
		}).
		Build()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	if err := s.Open(ctx); err != nil {
		return err
	}
	s.Wait()

	snap := s.Snapshot()
	fmt.Printf("session:   %s\n", snap.ID)
	fmt.Printf("status:    %s\n", snap.Status)
	fmt.Printf("watermark: %s\n", snap.Watermark.Text())
	if snap.Status == session.StatusFallback {
		fmt.Printf("fallback:  embedded view of %s (reduced protection)\n", snap.FallbackRef)
		return nil
	}
	fmt.Printf("pages:     %v (scale %v, rotation %s)\n", snap.PageIndexes, snap.Scale, snap.Rotation)
	return nil
}
