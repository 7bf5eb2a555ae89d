package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build.
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" default:"1" help:"Run the tournament server"`
	Token   TokenCmd         `cmd:"" help:"Mint a connect token for a player"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("thirteend"),
		kong.Description("Server-authoritative Thirteen (Tien Len) tournament server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
