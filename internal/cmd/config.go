package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Alia5/ps2bridge/internal/configpaths"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit scaffolds a configuration file for a specific command.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"sim,decode,monitor"`
	Format  string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Output  string `help:"Destination file path (defaults to current directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run writes a template holding every config key of the command with its
// default value.
func (c *ConfigInit) Run() error {
	t, ok := templateCommands[c.Command]
	if !ok {
		return errors.New("unknown command; expected 'sim', 'decode' or 'monitor'")
	}
	format := configpaths.Ext(strings.ToLower(c.Format))

	dest := c.Output
	if dest == "" {
		dest = c.Command + "." + format
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	data, err := marshalConfig(templateFor(t), format)
	if err != nil {
		return fmt.Errorf("encode %s template: %w", format, err)
	}
	return os.WriteFile(dest, data, 0o644)
}

// templateCommands are the commands a config template can be generated for.
var templateCommands = map[string]reflect.Type{
	"sim":     reflect.TypeOf(Sim{}),
	"decode":  reflect.TypeOf(Decode{}),
	"monitor": reflect.TypeOf(Monitor{}),
}

func marshalConfig(root map[string]any, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(root)
	case "toml":
		return toml.Marshal(root)
	default:
		return json.MarshalIndent(root, "", "  ")
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// templateFor maps the flags of a command struct to their defaults. Embedded
// sections become nested maps keyed by their prefix; positional args are
// not config and are left out.
func templateFor(t reflect.Type) map[string]any {
	out := map[string]any{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("kong") == "-" {
			continue
		}
		if _, ok := f.Tag.Lookup("arg"); ok {
			continue
		}
		if _, ok := f.Tag.Lookup("embed"); ok {
			out[strings.TrimSuffix(f.Tag.Get("prefix"), ".")] = templateFor(f.Type)
			continue
		}
		if v, ok := defaultValue(f.Type, f.Tag.Get("default")); ok {
			r := []rune(f.Name)
			r[0] = unicode.ToLower(r[0])
			out[string(r)] = v
		}
	}
	return out
}

func defaultValue(t reflect.Type, def string) (any, bool) {
	if t == durationType {
		if def == "" {
			def = "0s"
		}
		return def, true
	}
	switch t.Kind() {
	case reflect.String:
		return def, true
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b, true
	case reflect.Int, reflect.Int64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n, true
	}
	return nil, false
}
