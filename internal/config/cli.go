// Package config holds the root command line of the ps2bridge binary.
package config

import (
	"github.com/Alia5/ps2bridge/internal/cmd"
	"github.com/Alia5/ps2bridge/internal/log"
)

// CLI is the kong root. Config files fill the same fields as flags.
type CLI struct {
	Config string     `help:"Config file path (JSON, YAML or TOML)" env:"PS2BRIDGE_CONFIG" placeholder:"FILE"`
	Log    log.Config `embed:"" prefix:"log."`

	Sim       cmd.Sim           `cmd:"" help:"Run the driver against a simulated keyboard"`
	Decode    cmd.Decode        `cmd:"" help:"Translate captured scan codes offline"`
	Monitor   cmd.Monitor       `cmd:"" help:"Print the character stream of a running bridge"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
}
