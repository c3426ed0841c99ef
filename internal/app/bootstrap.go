package app

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"

	"leadharvest/internal/config"
	"leadharvest/internal/delivery/http/handler"
	"leadharvest/internal/delivery/http/middleware"
	"leadharvest/internal/delivery/http/routes"
	"leadharvest/internal/ws"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

// Bootstrap builds the container and the HTTP app. The returned cleanup
// tears everything down in reverse order.
func Bootstrap(cfg config.Config) (*App, func() error, error) {
	container, err := NewContainer(cfg)
	if err != nil {
		return nil, nil, err
	}

	f := fiber.New(fiber.Config{
		AppName: cfg.App.AppName,
	})
	f.Use(middleware.AccessLog(container.Logger))

	registry := routes.NewRegistry(
		handler.NewHealthHandler(container.DB),
		handler.NewJobHandler(container.JobService),
		handler.NewDuplicateHandler(container.Duplicates),
		ws.NewHandler(container.Hub, container.Logger),
		container.PromRegistry,
	)
	registry.Register(f)

	go container.Hub.Run()

	if err := container.Scheduler.Start(); err != nil {
		_ = container.Close()
		return nil, nil, err
	}

	app := &App{Fiber: f, Container: container}
	cleanup := func() error {
		return container.Close()
	}
	return app, cleanup, nil
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
