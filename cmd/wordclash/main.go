// The wordclash command runs the full server backend: the framed game
// server, the registration endpoint, and the notification channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"wordclash/internal"
	"wordclash/internal/core"
)

func main() {
	app := &cli.App{
		Name:  "wordclash",
		Usage: "multiplayer vocabulary quiz server",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "run the game and registration servers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Value:   "./",
						Usage:   "path to the directory containing the server config file",
					},
				},
				Action: runServer,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(c *cli.Context) error {
	configPath := c.String("config")
	config := core.LoadConfig(configPath)
	fmt.Println("using configuration file in:", configPath)

	// Change to the same directory as the config file so that any relative
	// paths in the config file will resolve.
	if err := os.Chdir(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("error changing to config directory: %w", err)
	}

	// Bind the Controller to one top-level server context so that we can
	// shut down cleanly on Ctrl-C or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	controller := &internal.Controller{Config: config}
	if err := controller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Println("shut down")
	return nil
}
