package cli

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ayusman/emojicam/internal/app"
	"github.com/ayusman/emojicam/internal/capture"
	"github.com/ayusman/emojicam/internal/config"
	"github.com/ayusman/emojicam/internal/detector"
	"github.com/ayusman/emojicam/internal/log"
	"github.com/ayusman/emojicam/internal/server"
	"github.com/ayusman/emojicam/internal/store"
	"github.com/ayusman/emojicam/internal/ui/tray"
	"github.com/ayusman/emojicam/internal/ui/window"
)

// shutdownTimeout bounds how long exit waits for the loop and server.
const shutdownTimeout = 3 * time.Second

// runner is a UI that owns the main goroutine until the loop quits it.
type runner interface {
	Run()
}

// waitRunner blocks until the capture loop terminates; it backs headless mode.
type waitRunner struct {
	done <-chan struct{}
}

func (w waitRunner) Run() { <-w.done }

func runCamera(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	events := app.NewEventLoop()

	// Optional journal
	var st *store.Store
	if cfg.Journal.Enabled {
		st, err = openStore(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	renderers := app.MultiRenderer{}

	// Optional preview server
	var srv *server.Server
	if cfg.Preview.Addr != "" {
		preview := server.NewPreview()
		renderers = append(renderers, preview)
		srv = server.New(server.Config{
			StaticDir: cfg.Preview.StaticDir,
			Store:     st,
			Preview:   preview,
		})
		go func() {
			if err := srv.ListenAndServe(cfg.Preview.Addr); err != nil {
				log.Error("Preview server failed", "error", err)
			}
		}()
	}

	// The UI's close request is delivered once the loop exists
	var requestClose func()
	closeHandler := func() {
		if requestClose != nil {
			events.Post(requestClose)
		}
	}

	var ui runner
	switch cfg.UI.Mode {
	case config.UIWindow:
		w := window.New(cfg.UI.Title, cfg.Camera.Width, cfg.Camera.Height)
		w.OnClose(closeHandler)
		renderers = append(renderers, w)
		ui = w
	case config.UITray:
		t := tray.New(cfg.UI.Title)
		t.OnQuit(closeHandler)
		if cfg.Preview.Addr != "" {
			url := previewURL(cfg.Preview.Addr)
			t.OnPreview(func() { openBrowser(url) })
		}
		renderers = append(renderers, &app.LogRenderer{}, t)
		ui = t
	default:
		renderers = append(renderers, &app.LogRenderer{})
	}

	loop := app.New(app.Config{
		Width:            cfg.Camera.Width,
		Height:           cfg.Camera.Height,
		TickInterval:     cfg.Loop.TickInterval,
		FailedCloseDelay: cfg.Loop.FailedCloseDelay,
	}, capture.NewCamera(cfg.Camera.Device), detectorFactory(cfg), renderers, events)
	requestClose = loop.RequestClose

	if ui == nil {
		ui = waitRunner{done: loop.Done()}
	}

	if st != nil {
		journal, err := app.NewJournal(st, cfg.Camera.Device)
		if err != nil {
			return err
		}
		loop.AddObserver(journal)
		defer func() {
			if err := journal.Close(); err != nil {
				log.Warn("Failed to end journal session", "error", err)
			}
		}()
	}

	go events.Run(context.Background())
	defer events.Stop()

	// Start errors are already on screen; the loop closes itself.
	events.Post(func() { _ = loop.Start() })

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			log.Info("Received signal, closing", "signal", sig.String())
			events.Post(loop.RequestClose)
		case <-loop.Done():
		}
	}()

	ui.Run()

	// The UI may exit on its own (e.g. the window manager killed it)
	events.Post(loop.RequestClose)
	select {
	case <-loop.Done():
	case <-time.After(shutdownTimeout):
		log.Warn("Capture loop did not terminate in time")
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("Preview server shutdown failed", "error", err)
		}
	}
	return nil
}

// detectorFactory defers model loading until the camera is open.
func detectorFactory(cfg *config.Config) app.DetectorFactory {
	return func() (detector.Detector, error) {
		dc := detector.DefaultConfig()
		dc.Backend = cfg.Detector.Backend
		dc.FaceModel = cfg.Detector.FaceModel
		dc.EmotionModel = cfg.Detector.EmotionModel
		dc.Command = cfg.Detector.Command
		return detector.New(dc)
	}
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create journal directory")
	}
	st, err := store.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}
	return st, nil
}

// previewURL turns a listen address into a browsable URL.
func previewURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/stream"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("Failed to open browser", "url", url, "error", err)
		return
	}
	go cmd.Wait()
}
