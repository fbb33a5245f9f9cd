package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/himanishpuri/landmark/internal/audio"
	"github.com/himanishpuri/landmark/internal/fingerprint"
	"github.com/himanishpuri/landmark/internal/render"
	"github.com/himanishpuri/landmark/internal/storage"
	"github.com/himanishpuri/landmark/pkg/landmark"
	"github.com/himanishpuri/landmark/pkg/utils"
)

var (
	green  = color.New(color.FgGreen)
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

func (c *cli) add(args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(c.out)
	name := fs.String("name", "", "Track name (single file only; defaults to tags or file name)")
	paths, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(paths) != 1 {
		return c.usageError("Usage: landmark add <file.wav|dir> [-name <name>]")
	}
	path := paths[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !utils.IsDir(path) {
		svc, err := c.newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		tr, err := svc.AddFile(ctx, path, *name)
		if err != nil {
			return err
		}
		green.Fprintln(c.out, "Added track")
		printTrack(c, tr)
		return nil
	}

	if *name != "" {
		return c.usageError("-name only applies to a single file")
	}

	svc, err := c.newService(landmark.WithProgress(os.Stderr))
	if err != nil {
		return err
	}
	defer svc.Close()

	start := time.Now()
	report, err := svc.AddDirectory(ctx, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\nIndexed %s in %s (run %s)\n", path, time.Since(start).Round(time.Millisecond), utils.ShortID(report.RunID))
	green.Fprintf(c.out, "  added:    %d\n", len(report.Added))
	fmt.Fprintf(c.out, "  existing: %d\n", len(report.Existing))
	if len(report.Skipped) > 0 {
		yellow.Fprintf(c.out, "  skipped:  %d\n", len(report.Skipped))
	}
	if len(report.Failed) > 0 {
		red.Fprintf(c.out, "  failed:   %d\n", len(report.Failed))
		for _, f := range report.Failed {
			faint.Fprintf(c.out, "    %v\n", f)
		}
	}

	if report.Total() > 0 && len(report.Added)+len(report.Existing) == 0 && len(report.Failed) > 0 {
		return fmt.Errorf("no file under %s could be indexed", path)
	}
	return ctx.Err()
}

func (c *cli) match(args []string) error {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	fs.SetOutput(c.out)
	top := fs.Int("top", 5, "Number of candidates to show")
	paths, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(paths) != 1 {
		return c.usageError("Usage: landmark match <file.wav> [-top <n>]")
	}

	svc, err := c.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	m, err := svc.MatchFile(ctx, paths[0])
	if err != nil {
		return err
	}

	green.Fprintf(c.out, "Match: %q (ID %d)\n", m.Track.Name, m.Track.ID)
	fmt.Fprintf(c.out, "  offset:     %s\n", time.Duration(m.Best.OffsetMs)*time.Millisecond)
	fmt.Fprintf(c.out, "  support:    %d of %d query fingerprints (%.1f%%)\n",
		m.Best.Support, m.QueryFingerprints, 100*m.Best.Ratio)
	fmt.Fprintf(c.out, "  confidence: %.1f%%\n", m.Confidence)
	faint.Fprintf(c.out, "  took %s\n", time.Since(start).Round(time.Millisecond))

	if len(m.Candidates) > 1 && *top > 1 {
		fmt.Fprintln(c.out, "\nOther candidates:")
		for i, cand := range m.Candidates[1:] {
			if i+1 >= *top {
				break
			}
			fmt.Fprintf(c.out, "  %d. %q (ID %d) support %d, offset %dms, confidence %.1f%%\n",
				i+2, cand.Track.Name, cand.TrackID, cand.Support, cand.OffsetMs, cand.Confidence)
		}
	}
	return nil
}

func (c *cli) list(args []string) error {
	if len(args) != 0 {
		return c.usageError("Usage: landmark list")
	}
	svc, err := c.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	tracks, err := svc.ListTracks(context.Background())
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Fprintln(c.out, "No tracks indexed")
		return nil
	}

	bold.Fprintf(c.out, "%d track(s):\n\n", len(tracks))
	for _, tr := range tracks {
		printTrack(c, tr)
		fmt.Fprintln(c.out)
	}
	return nil
}

func (c *cli) delete(args []string) error {
	if len(args) != 1 {
		return c.usageError("Usage: landmark delete <track_id>")
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return c.usageError("Invalid track id %q", args[0])
	}

	svc, err := c.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	tr, err := svc.GetTrack(ctx, uint32(id))
	if err != nil {
		return err
	}
	if err := svc.DeleteTrack(ctx, tr.ID); err != nil {
		return err
	}
	green.Fprintln(c.out, "Deleted track")
	printTrack(c, tr)
	return nil
}

func (c *cli) stats(args []string) error {
	if len(args) != 0 {
		return c.usageError("Usage: landmark stats")
	}
	svc, err := c.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	st, err := svc.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Backend:      %s\n", c.backend)
	fmt.Fprintf(c.out, "Tracks:       %s\n", humanize.Comma(int64(st.Tracks)))
	fmt.Fprintf(c.out, "Fingerprints: %s\n", humanize.Comma(st.Occurrences))
	if c.backend != storage.BackendMemory {
		if fi, err := os.Stat(c.dbPath); err == nil && !fi.IsDir() {
			fmt.Fprintf(c.out, "On disk:      %s\n", humanize.Bytes(uint64(fi.Size())))
		}
	}
	return nil
}

// render works on audio alone and never opens the database.
func (c *cli) render(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(c.out)
	out := fs.String("out", "", "Output PNG path")
	peaks := fs.Bool("peaks", false, "Draw the peak constellation instead of the raw spectrogram")
	width := fs.Int("width", render.DefaultWidth, "Image width (spectrogram only)")
	height := fs.Int("height", render.DefaultHeight, "Image height (spectrogram only)")
	paths, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(paths) != 1 || *out == "" {
		return c.usageError("Usage: landmark render <file.wav> -out <image.png> [-peaks]")
	}

	buf, err := audio.ReadFile(paths[0], audio.DefaultOptions())
	if err != nil {
		return err
	}

	if !*peaks {
		if err := render.Spectrogram(buf.Samples, buf.SampleRate, *out, *width, *height); err != nil {
			return err
		}
		green.Fprintf(c.out, "Wrote spectrogram to %s\n", *out)
		return nil
	}

	cfg := fingerprint.DefaultConfig()
	spec, err := fingerprint.BuildSpectrogram(buf.Samples, buf.SampleRate, cfg)
	if err != nil {
		return err
	}
	found := fingerprint.ExtractPeaks(spec, cfg)
	if err := render.Constellation(spec, found, *out); err != nil {
		return err
	}
	green.Fprintf(c.out, "Wrote %d peaks over %d frames to %s\n", len(found), spec.Frames(), *out)
	return nil
}

func printTrack(c *cli, tr landmark.Track) {
	bold.Fprintf(c.out, "  %q", tr.Name)
	fmt.Fprintf(c.out, " (ID %d)\n", tr.ID)
	d := time.Duration(tr.DurationMs) * time.Millisecond
	fmt.Fprintf(c.out, "    duration: %d:%02d, %d Hz\n", int(d.Minutes()), int(d.Seconds())%60, tr.SampleRate)
	if !tr.CreatedAt.IsZero() {
		faint.Fprintf(c.out, "    added %s\n", humanize.Time(tr.CreatedAt))
	}
}
