package main

import (
	"github.com/urfave/cli/v3"
)

const (
	categorySystem = "system"
	categoryStock  = "stock"
)

// getCommands returns every subcommand, grouped by category in --help.
func getCommands(version string) []*cli.Command {
	var cmds []*cli.Command
	for _, group := range []struct {
		category string
		commands []*cli.Command
	}{
		{categorySystem, getSystemCommands(version)},
		{categoryStock, getStockCommands()},
	} {
		for _, c := range group.commands {
			c.Category = group.category
			cmds = append(cmds, c)
		}
	}
	return cmds
}
