package main

import (
	"io"
	"os"
	"strings"

	"github.com/Alia5/ps2bridge/internal/config"
	"github.com/Alia5/ps2bridge/internal/configpaths"
	"github.com/Alia5/ps2bridge/internal/log"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

func main() {
	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli config.CLI
	ctx := kong.Parse(&cli,
		kong.Name("ps2bridge"),
		kong.Description("PS/2 keyboard host driver and simulator"),
		kong.UsageOnError(),
		// Load configuration from JSON/YAML/TOML in priority order; flags/env override config values.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(cli.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}

	rawLogger, rawFile := openRawLogger(cli.Log)
	if rawFile != nil {
		closeFiles = append(closeFiles, rawFile)
	} else if cli.Log.RawFile != "" {
		logger.Error("failed to open raw log file", "file", cli.Log.RawFile)
	}

	ctx.Bind(logger)
	ctx.BindTo(rawLogger, (*log.RawLogger)(nil))

	err = ctx.Run()
	for _, c := range closeFiles {
		_ = c.Close()
	}
	ctx.FatalIfErrorf(err)
}

// openRawLogger honours --log.raw-file, falling back to stderr at trace
// level. stdout carries the decoded characters.
func openRawLogger(cfg log.Config) (log.RawLogger, io.Closer) {
	if cfg.RawFile != "" {
		f, err := os.OpenFile(cfg.RawFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return log.NewRaw(nil), nil
		}
		return log.NewRaw(f), f
	}
	if cfg.Level == "trace" {
		return log.NewRaw(os.Stderr), nil
	}
	return log.NewRaw(nil), nil
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if v := os.Getenv("PS2BRIDGE_CONFIG"); v != "" {
		return v
	}
	return ""
}
