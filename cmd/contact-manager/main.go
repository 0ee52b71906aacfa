package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to YAML configuration file (defaults to $CONFIG_PATH or ./config.yaml)",
	}

	app := &cli.Command{
		Name:   "contact-manager",
		Usage:  "Contact management web app with live weather",
		Flags:  []cli.Flag{configFlag},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations",
				Action: migrate,
			},
			{
				Name:   "seed-statuses",
				Usage:  "Create the default contact statuses if missing",
				Action: seedStatuses,
			},
			{
				Name:      "import",
				Usage:     "Import contacts from a CSV file",
				ArgsUsage: "<file.csv>",
				Action:    importFile,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("contact-manager: %v", err)
	}
}
