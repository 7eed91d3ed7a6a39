// Command openapi prints the OpenAPI description of the API served by cmd/server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/janisto/canvas-api/internal/app"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

type cli struct {
	Format string `enum:"json,yaml" default:"json" help:"Output format (json or yaml)."`
	Output string `short:"o" type:"path" help:"Write to this file instead of stdout."`
}

func main() {
	var c cli
	kong.Parse(&c,
		kong.Name("openapi"),
		kong.Description("Print the OpenAPI description of the canvas API."),
		kong.UsageOnError(),
	)
	if err := c.Run(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "openapi:", err)
		os.Exit(1)
	}
}

// Run renders the description and writes it to Output, or to stdout when Output is empty.
func (c *cli) Run(stdout io.Writer) error {
	doc, err := render(c.Format, Version)
	if err != nil {
		return err
	}
	if c.Output == "" {
		_, err = stdout.Write(doc)
		return err
	}
	if err := os.WriteFile(c.Output, doc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.Output, err)
	}
	return nil
}

func render(format, version string) ([]byte, error) {
	oapi := app.New(app.Options{Version: version}).API.OpenAPI()
	switch format {
	case "yaml":
		doc, err := oapi.YAML()
		if err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return doc, nil
	default:
		doc, err := json.MarshalIndent(oapi, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(doc, '\n'), nil
	}
}
