package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livefir/livehydrate/cmd/lvh/internal/preview"
)

// Serve starts the websocket live preview of a session.
func Serve(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	var sf sessionFlags
	sf.register(fs)
	addr := fs.String("addr", ":8080", "Listen address")
	delay := fs.Duration("delay", 50*time.Millisecond, "Pause between replayed steps")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sf.load()
	if err != nil {
		return err
	}
	steps, err := loadSteps(fs)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", preview.New(cfg, steps, *delay))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(stdout, "Serving %s (%d steps) on http://localhost%s\n", fs.Arg(0), len(steps), *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
