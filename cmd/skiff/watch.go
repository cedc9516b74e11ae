package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/calitho/skiff/internal/contexts"
	"github.com/calitho/skiff/internal/progress"
	"github.com/calitho/skiff/pkg/watch"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch the given roots and keep contexts up to date",
		ArgsUsage: "[paths...]",
		Action: func(c *cli.Context) error {
			opts, err := loadOptions(c)
			if err != nil {
				return err
			}

			listener := &cliListener{
				events: func(ev watch.Event) {
					var tag string
					switch ev.Op {
					case watch.OpCreate:
						tag = color.GreenString("+")
					case watch.OpModify:
						tag = color.YellowString("~")
					case watch.OpRemove:
						tag = color.RedString("-")
					}
					fmt.Printf("%s %s\n", tag, ev.Path)
				},
			}
			mgr := contexts.NewManager(opts, listener)
			mgr.Start(c.Context)

			spinner := progress.NewSpinner("Scanning roots")
			err = mgr.SetRoots(getPaths(c), opts.Roots.Exclude)
			spinner.Finish()
			if err != nil {
				return err
			}

			for _, ctx := range mgr.Contexts() {
				fmt.Printf("%s %s (%d files)\n",
					color.CyanString("watching"), ctx.Root(), len(ctx.Driver().KnownFiles()))
			}

			<-c.Context.Done()
			return nil
		},
	}
}
