package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/photolite/photolite"
	"github.com/photolite/photolite/utils"
)

const HelpBanner = `
┌─┐┬ ┬┌─┐┌┬┐┌─┐┬  ┬┌┬┐┌─┐
├─┘├─┤│ │ │ │ ││  │ │ ├┤
┴  ┴ ┴└─┘ ┴ └─┘┴─┘┴ ┴ └─┘

Layered raster image editor.
    Version: %s
`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var errTerminal = errors.New("refusing to write binary image data to a terminal")

type options struct {
	config  string
	metrics string
	output  string
	format  string
	verbose bool
	quiet   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, utils.DecorateText(err.Error(), utils.ErrorMessage))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "photolite",
		Short:         "Layered raster image editor",
		Long:          fmt.Sprintf(HelpBanner, Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			utils.NoColor = os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stderr.Fd()))
		},
	}
	root.PersistentFlags().StringVarP(&opts.output, "out", "o", pipeName, "Destination image, - for stdout")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "png", "Image format used when writing to stdout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every editing operation")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress indicator")

	root.AddCommand(newRunCmd(opts), newFilterCmd(opts))
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Replay an editing script and export the flattened canvas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd.Context(), opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVar(&opts.metrics, "metrics", "", "Write the session metrics in the Prometheus text format to this file")
	return cmd
}

func newFilterCmd(opts *options) *cobra.Command {
	var (
		input   string
		radius  int
		workers int
	)
	cmd := &cobra.Command{
		Use:       "filter <invert|grayscale|blur>",
		Short:     "Apply a single filter to an image",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(photolite.Invert), string(photolite.Grayscale), string(photolite.Blur)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd.Context(), opts, args[0], input, radius, workers)
		},
	}
	cmd.Flags().StringVarP(&input, "in", "i", pipeName, "Source image: file, URL or - for stdin")
	cmd.Flags().IntVarP(&radius, "radius", "r", photolite.DefaultBlurRadius, "Blur radius")
	cmd.Flags().IntVar(&workers, "conc", runtime.NumCPU(), "Number of files to process concurrently when the source is a directory")
	return cmd
}

func runScript(ctx context.Context, opts *options, path string) error {
	cfg := photolite.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = photolite.LoadConfig(opts.config); err != nil {
			return err
		}
	}
	script, err := photolite.LoadScript(path)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	session, err := photolite.NewSession(cfg,
		photolite.WithLogger(slog.Default()),
		photolite.WithMetrics(reg),
	)
	if err != nil {
		return err
	}
	if opts.metrics != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(opts.metrics, reg); err != nil {
				slog.Warn("could not write the metrics", "path", opts.metrics, "error", err)
			}
		}()
	}

	spinner := newSpinner(opts, "is replaying the script...")
	spinner.Start()
	defer spinner.Stop()

	runner := photolite.NewRunner(session, slog.Default())
	runner.BaseDir = filepath.Dir(path)
	runner.OnStep = func(i int, st photolite.Step) {
		spinner.SetMessage(spinnerText(fmt.Sprintf("step %d/%d: %s", i+1, len(script.Steps), st.Action)))
	}

	now := time.Now()
	if err := runner.Run(ctx, script); err != nil {
		spinner.StopMsg = ""
		return err
	}
	session.Wait()

	return writeOutput(opts, func(w io.Writer, format photolite.Format) error {
		spinner.StopMsg = doneText(len(script.Steps), time.Since(now))
		return session.Export(w, format)
	})
}

func runFilter(ctx context.Context, opts *options, name, input string, radius, workers int) error {
	kind, err := photolite.ParseFilter(name)
	if err != nil {
		return err
	}
	filter, err := photolite.NewFilter(kind, radius)
	if err != nil {
		return err
	}

	if fi, err := os.Stat(input); err == nil && fi.IsDir() {
		return filterDir(ctx, opts, filter, input, workers)
	}

	src, cleanup, err := openInput(ctx, input)
	if err != nil {
		return err
	}
	defer cleanup()

	img, err := photolite.DecodeImage(src)
	if err != nil {
		return err
	}

	spinner := newSpinner(opts, fmt.Sprintf("is applying the %s filter...", kind))
	spinner.Start()
	defer spinner.Stop()

	now := time.Now()
	out := filter.Apply(img)

	return writeOutput(opts, func(w io.Writer, format photolite.Format) error {
		spinner.StopMsg = doneText(1, time.Since(now))
		return photolite.EncodeImage(w, out, format)
	})
}

// filterDir filters every image of a directory tree into the output directory.
func filterDir(ctx context.Context, opts *options, filter photolite.Filter, dir string, workers int) error {
	if opts.output == pipeName {
		return errors.New("the destination should be a directory when the source is a directory")
	}
	if err := os.MkdirAll(opts.output, 0o755); err != nil {
		return fmt.Errorf("unable to create the destination directory: %w", err)
	}

	spinner := newSpinner(opts, "is filtering the images...")
	spinner.Start()

	now := time.Now()
	results, errc := photolite.FilterDir(ctx, filter, dir, opts.output, workers)

	var done, failed int
	for res := range results {
		if res.Err != nil {
			failed++
			slog.Error("filter failed", "file", res.Src, "error", res.Err)
			continue
		}
		done++
		spinner.SetMessage(spinnerText(fmt.Sprintf("saved %s", filepath.Base(res.Dst))))
	}
	spinner.StopMsg = doneText(done, time.Since(now))
	spinner.Stop()

	if err := <-errc; err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d image(s) could not be filtered", failed)
	}
	return nil
}

// openInput opens a local file, downloads a URL or reads stdin.
func openInput(ctx context.Context, in string) (io.Reader, func(), error) {
	switch {
	case in == pipeName:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return os.Stdin, func() {}, nil
	case utils.IsValidUrl(in):
		f, err := utils.DownloadImage(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return f, func() {
			f.Close()
			os.Remove(f.Name())
		}, nil
	}
	f, err := os.Open(in)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load the source image: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// writeOutput opens the destination and lets encode write the image in the
// format matching its extension.
func writeOutput(opts *options, encode func(io.Writer, photolite.Format) error) error {
	if opts.output == pipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errTerminal
		}
		format, err := photolite.FormatFromPath("." + strings.TrimPrefix(opts.format, "."))
		if err != nil {
			return err
		}
		return encode(os.Stdout, format)
	}

	format, err := photolite.FormatFromPath(opts.output)
	if err != nil {
		return err
	}
	f, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("unable to create the output file: %w", err)
	}
	if err := encode(f, format); err != nil {
		f.Close()
		os.Remove(opts.output)
		return err
	}
	return f.Close()
}

func newSpinner(opts *options, msg string) *utils.Spinner {
	w := io.Writer(os.Stderr)
	if opts.quiet {
		w = io.Discard
	}
	return utils.NewSpinner(w, spinnerText(msg), time.Millisecond*100, true)
}

func spinnerText(msg string) string {
	return fmt.Sprintf("%s %s",
		utils.DecorateText("🎨 PHOTOLITE", utils.StatusMessage),
		utils.DecorateText(msg, utils.DefaultMessage))
}

func doneText(steps int, d time.Duration) string {
	return fmt.Sprintf("%s %s\n",
		utils.DecorateText(fmt.Sprintf("✔ %d step(s) done in", steps), utils.SuccessMessage),
		utils.DecorateText(utils.FormatTime(d), utils.DefaultMessage))
}
