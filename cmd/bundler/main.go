package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/countries-bundler/cmd/bundler/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool   `help:"Enable debug mode."`
		Mode    string `help:"Mode signal, \"dev\" selects development and anything else production." env:"NODE_ENV"`
		Strict  bool   `help:"Reject unrecognized mode signals instead of building for production." env:"BUNDLER_STRICT_MODE"`
		Tracing bool   `help:"Export traces and metrics over OTLP." env:"BUNDLER_TRACING"`
		Root    string `help:"Project root containing the entry module and html template." default:"." env:"BUNDLER_ROOT" type:"existingdir"`
		Version kong.VersionFlag

		Config    commands.ConfigCmd    `cmd:"" help:"Print the resolved build configuration"`
		Build     commands.BuildCmd     `cmd:"" help:"Bundle the application into the output directory"`
		Serve     commands.ServeCmd     `cmd:"" help:"Build and serve the application with the dev server"`
		ChunkName commands.ChunkNameCmd `cmd:"" help:"Print the vendor chunk name of module paths"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Description("Bundles the countries single page application."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Version: version,
		Mode:    cli.Mode,
		Strict:  cli.Strict,
		Tracing: cli.Tracing,
		Root:    cli.Root,
		Stdout:  os.Stdout,
	})
	cmd.FatalIfErrorf(err)
}
