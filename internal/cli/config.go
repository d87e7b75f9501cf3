// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration display.
//
// Examples:
//   streamchat config              Show the effective configuration
//   streamchat config path         Print the config file location
//   streamchat config init         Write the defaults if no file exists

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/streamchat/internal/config"
)

// HandleConfig dispatches the config subcommands. path is the config file
// in use.
func HandleConfig(env *Env, args Args, path string) error {
	p := NewArgParser(args.Raw)
	out := env.out()

	switch p.Subcommand() {
	case "", "show":
		masked := *env.Config
		masked.HTTP.APIKey = maskSecret(masked.HTTP.APIKey)
		masked.Cloud.APIKey = maskSecret(masked.Cloud.APIKey)
		if args.JSON {
			return NewJSONResponse("config show", masked).Write(out)
		}
		fmt.Fprintln(out, DimStyle.Render("# "+path))
		return toml.NewEncoder(out).Encode(masked)

	case "path":
		fmt.Fprintln(out, path)
		return nil

	case "init":
		if _, err := os.Stat(path); err == nil {
			return &UsageError{Reason: path + " already exists"}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s wrote %s\n", SuccessStyle.Render("[OK]"), path)
		return nil

	default:
		return &UsageError{Reason: "unknown config subcommand " + p.Subcommand(), Usage: "streamchat config [show|path|init]"}
	}
}

// maskSecret keeps the last four characters of a secret.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}
