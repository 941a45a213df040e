package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/loykin/schedctl"
)

// Mounts the schedctl API inside an existing echo server.
//
//	SCHEDCTL_CONFIG=schedctl.toml go run ./example/embedded_http_echo
func main() {
	cfg, err := schedctl.LoadConfig(os.Getenv("SCHEDCTL_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	svc, err := schedctl.New(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = svc.Close() }()

	e := echo.New()
	h := svc.Handler()
	base := cfg.Server.BasePath

	e.Any(base, echo.WrapHandler(h))
	e.Any(base+"/*", echo.WrapHandler(h))
	e.GET("/healthz", echo.WrapHandler(h))

	addr := os.Getenv("ECHO_LISTEN")
	if addr == "" {
		addr = ":8080"
	}
	log.Println("starting echo server on", addr, "with base", base)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
