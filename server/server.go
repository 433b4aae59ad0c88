package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/indieinfra/inkwell/config"
	"github.com/indieinfra/inkwell/micropub"
	"github.com/indieinfra/inkwell/store/content"
	"github.com/indieinfra/inkwell/store/media"
)

// stdLogger adapts the standard library logger to the adapter's interface.
type stdLogger struct{}

func (stdLogger) Printf(format string, v ...any) { log.Printf(format, v...) }

// NewHandler builds the http handler tree for the configured stores.
func NewHandler(cfg *config.Config) (http.Handler, error) {
	contentStore, err := content.New(&cfg.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content store: %w", err)
	}

	mediaStore, err := media.New(&cfg.Media)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	adapter := micropub.New(
		newStoreCallbacks(cfg, contentStore, mediaStore),
		micropub.WithLogger(stdLogger{}),
		micropub.WithLimits(limitsFromConfig(cfg.Server.Limits)),
	)

	mux := http.NewServeMux()
	mux.Handle("GET /", adapter.Handler())
	mux.Handle("POST /", adapter.Handler())
	mux.Handle("POST /media", adapter.MediaHandler())

	return mux, nil
}

func limitsFromConfig(l config.ServerLimits) micropub.Limits {
	limits := micropub.DefaultLimits()
	if l.MaxPayloadSize > 0 {
		limits.MaxPayloadSize = int64(l.MaxPayloadSize)
	}
	if l.MaxMultipartMem > 0 {
		limits.MaxMultipartMem = int64(l.MaxMultipartMem)
	}
	if l.MaxFileSize > 0 {
		limits.MaxFileSize = int64(l.MaxFileSize)
	}

	return limits
}

// StartServer builds the handler and serves it until the process exits.
func StartServer(cfg *config.Config) {
	handler, err := NewHandler(cfg)
	if err != nil {
		log.Fatal(err)
	}

	bindAddress := fmt.Sprintf("%v:%v", cfg.Server.Address, cfg.Server.Port)
	log.Printf("serving http requests on %q", bindAddress)
	log.Fatal(http.ListenAndServe(bindAddress, handler))
}
