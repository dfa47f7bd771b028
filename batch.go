package photolite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/photolite/photolite/utils"
)

// MaxWorkers sets the maximum number of concurrently running workers.
const MaxWorkers = 20

// supported image extensions for batch processing
var validExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff"}

// BatchResult holds the outcome of filtering a single file.
type BatchResult struct {
	Src, Dst string
	Err      error
}

// FilterFile applies f to the image at in and saves it as out, encoded in
// the format matching the extension of out.
func FilterFile(f Filter, in, out string) (err error) {
	format, err := FormatFromPath(out)
	if err != nil {
		return err
	}
	src, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("unable to open the source file: %w", err)
	}
	defer src.Close()

	img, err := DecodeImage(src)
	if err != nil {
		return err
	}

	dst, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("unable to create the destination file: %w", err)
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			// remove the partially written image
			os.Remove(out)
		}
	}()

	return EncodeImage(dst, f.Apply(img), format)
}

// FilterDir applies f to every supported image found under src, walking it
// recursively, and writes the results under dst with the same relative
// paths. Results are delivered as soon as each file is done; the error
// channel yields the outcome of the directory walk once all results have
// been sent. Cancelling ctx stops the walk.
func FilterDir(ctx context.Context, f Filter, src, dst string, workers int) (<-chan BatchResult, <-chan error) {
	// Limit the concurrently running workers to MaxWorkers.
	if workers <= 0 || workers > MaxWorkers {
		workers = runtime.NumCPU()
	}

	results := make(chan BatchResult)
	errc := make(chan error, 1)

	paths, walkErr := walkDir(ctx, src, dst, validExtensions)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			consumer(ctx, f, src, dst, paths, results)
		}()
	}

	// Close the channels after the values are consumed.
	go func() {
		wg.Wait()
		close(results)
		errc <- <-walkErr
		close(errc)
	}()

	return results, errc
}

// consumer reads the path names from the paths channel and filters them.
func consumer(ctx context.Context, f Filter, root, dest string, paths <-chan string, res chan<- BatchResult) {
	for src := range paths {
		rel, err := filepath.Rel(root, src)
		if err != nil {
			rel = filepath.Base(src)
		}
		dst := filepath.Join(dest, rel)
		if err == nil {
			err = os.MkdirAll(filepath.Dir(dst), 0o755)
		}
		if err == nil {
			err = FilterFile(f, src, dst)
		}

		select {
		case <-ctx.Done():
			return
		case res <- BatchResult{Src: src, Dst: dst, Err: err}:
		}
	}
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each supported file to a new
// channel. The skip directory is not descended into. It finishes early
// when ctx is cancelled.
func walkDir(ctx context.Context, src, skip string, exts []string) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if f.IsDir() && path != src && filepath.Clean(path) == filepath.Clean(skip) {
				return filepath.SkipDir
			}
			if !f.Mode().IsRegular() {
				return nil
			}
			if !utils.Contains(exts, strings.ToLower(filepath.Ext(f.Name()))) {
				return nil
			}

			if err := ctx.Err(); err != nil {
				return fmt.Errorf("directory walk cancelled: %w", err)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("directory walk cancelled: %w", ctx.Err())
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}
