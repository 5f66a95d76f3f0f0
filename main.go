package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/app"
	"github.com/km-arc/go-ioc/framework/container"
)

// Greeter is a sample service wired from services.yaml.
type Greeter struct {
	Greeting string
	Name     string
}

func NewGreeter(greeting, name string) *Greeter {
	return &Greeter{Greeting: greeting, Name: name}
}

func (g *Greeter) Greet() string {
	return g.Greeting + ", " + g.Name + "!"
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	application, err := app.New() // loads .env automatically
	if err != nil {
		return err
	}
	defer application.Close()

	application.Types.Provide("main:NewGreeter", NewGreeter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if file := application.Config().Services.File; file != "" {
		if err := application.Configure(ctx, file); err != nil {
			return err
		}
	}

	if application.Has("greeter") {
		g, err := container.Resolve[*Greeter](application.Container, "greeter")
		if err != nil {
			return err
		}
		application.Logger().Info(g.Greet(), zap.String("service", "greeter"))
	}

	return application.Run(ctx)
}
