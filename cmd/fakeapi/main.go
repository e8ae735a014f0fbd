package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-reader-client/content"
	"github.com/jrsteele09/go-reader-client/internal/config"
	"github.com/jrsteele09/go-reader-client/internal/fakeapi"
	"github.com/jrsteele09/go-reader-client/internal/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Optional demo account, created at startup when both variables are set.
const (
	demoUserVar     = "DEMO_USERNAME"
	demoPasswordVar = "DEMO_PASSWORD"
	demoEmailVar    = "DEMO_EMAIL"
	demoNovelsVar   = "DEMO_NOVELS"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName() + " API")

	api, err := fakeapi.New(c, fakeapi.WithEnv(c.GetEnv()))
	if err != nil {
		return err
	}
	if err := seedDemo(api); err != nil {
		return err
	}

	server := &http.Server{Addr: c.GetPort(), Handler: api}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(server) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func seedDemo(api *fakeapi.Server) error {
	username, password := os.Getenv(demoUserVar), os.Getenv(demoPasswordVar)
	if username == "" || password == "" {
		return nil
	}
	email := config.GetEnv(demoEmailVar, username+"@example.com")
	if err := api.AddUser(username, email, password); err != nil {
		return errors.Wrap(err, "seed demo user")
	}

	novels := config.GetEnvAsInt(demoNovelsVar, 2)
	for i := 1; i <= novels; i++ {
		novelType := content.TypeNovel
		if i%2 == 0 {
			novelType = content.TypeManhwa
		}
		_, err := api.AddNovel(content.NewNovel{
			Title:     "Demo " + string(novelType) + " " + strconv.Itoa(i),
			SourceURL: fmt.Sprintf("https://novelbin.example/demo-%d", i),
			Type:      novelType,
		}, 12)
		if err != nil {
			return errors.Wrap(err, "seed demo novel")
		}
	}
	log.Info().Str("username", username).Int("novels", novels).Msg("Seeded demo account")
	return nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
