package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gymtrack/pkg/card"
	"gymtrack/pkg/progress"
)

// global flags (parsed in main)
var (
	verbose bool
	dryRun  bool
)

// Main: scans a directory of trainer-card screenshots, runs the extraction
// pipeline on each and merges the results into the progress store. The file
// name serves as the idempotency message id and the file mtime as the event
// time, so re-running over the same directory is safe. Optional watch mode
// picks up files dropped in later.
func main() {
	dirFlag := flag.String("dir", "cards", "directory to scan for trainer-card screenshots")
	userFlag := flag.String("user", "", "user id to record progress under (required)")
	dataFlag := flag.String("data", "trainer_data.json", "progress data file (used when PROGRESS_STORE=file)")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	timeoutFlag := flag.Duration("timeout", card.DefaultRecognitionTimeout, "per-image recognition timeout")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.BoolVar(&dryRun, "dry-run", false, "Parse and report without writing the data file")
	flag.Parse()

	if *userFlag == "" {
		log.Fatal("--user must be set")
	}

	var store progress.Store
	if !dryRun {
		var err error
		store, err = openStore(*dataFlag)
		if err != nil {
			log.Fatalf("open progress store: %v", err)
		}
	}
	parser := card.NewParser(card.TesseractRecognizer{}, *timeoutFlag)
	p := &processor{dir: *dirFlag, userID: *userFlag, parser: parser, store: store}

	files := listImageFiles(*dirFlag)
	log.Printf("Scanning %d files (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(p, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(p, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

// openStore selects the same backend the server uses, so a backfill run and
// the live submission path share one idempotency ledger: PROGRESS_STORE=file
// writes the flat JSON file at dataPath, anything else connects to Postgres
// via DB_DSN.
func openStore(dataPath string) (progress.Store, error) {
	if strings.EqualFold(os.Getenv("PROGRESS_STORE"), "file") {
		return progress.NewFileStore(dataPath)
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return nil, errors.New("DB_DSN not set; set PROGRESS_STORE=file to use the flat-file store")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return progress.NewGormStore(db), nil
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

type processor struct {
	dir    string
	userID string
	parser *card.Parser
	store  progress.Store
}

// processSingleFile parses one screenshot and merges the result. Failures are
// logged and never abort the batch.
func (p *processor) processSingleFile(name string) {
	path := filepath.Join(p.dir, name)
	fi, err := os.Stat(path)
	if err != nil {
		log.Printf("ERROR stat %s: %v", name, err)
		return
	}
	eventTime := fi.ModTime().UTC()

	rec, err := p.parser.ParseFile(context.Background(), path)
	if err != nil {
		var vErr *card.ValidationError
		switch {
		case errors.Is(err, card.ErrUnrecognizedLayout):
			log.Printf("SKIP %s: no trainer card layout found", name)
		case errors.Is(err, card.ErrRecognitionTimeout):
			log.Printf("SKIP %s: recognition timed out", name)
		case errors.As(err, &vErr):
			log.Printf("SKIP %s: %s", name, vErr.Reason)
		default:
			log.Printf("ERROR parse %s: %v", name, err)
		}
		return
	}
	logV("parsed %s: name=%s badges=%d time=%s dex=%d", name, rec.Name, rec.Badges, rec.Time, rec.Pokedex)

	if dryRun {
		log.Printf("DRY-RUN %s badges=%d time=%s dex=%d", name, rec.Badges, rec.Time, rec.Pokedex)
		return
	}
	outcome, err := p.store.Merge(p.userID, rec, eventTime, name)
	if err != nil {
		log.Printf("ERROR merge %s: %v", name, err)
		return
	}
	log.Printf("MERGE %s outcome=%s badges=%d", name, outcome, rec.Badges)
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isSupportedExt(name string) bool {
	// only formats the image decoder actually handles; webp is not among them
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp":
		return true
	}
	return false
}

// worker pool orchestrator
func runWorkerPool(p *processor, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				p.processSingleFile(name)
			}
		}()
	}
	// feed initial
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		// also relay from extra channels if provided
		for _, ch := range extraCh {
			go func(c <-chan string) {
				for n := range c {
					fileCh <- n
				}
			}(ch)
		}
		// if no extraCh (scan only) close when done
		if len(extraCh) == 0 {
			close(fileCh)
		}
	}()
	if len(extraCh) == 0 {
		wg.Wait()
	}
}

func watchDirectory(p *processor, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(p.dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", p.dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending files
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	go runWorkerPool(p, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}
