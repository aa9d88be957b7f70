package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"
	"github.com/yaoguais/gantt"
)

func main() {
	err := getApp().Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func getApp() *cli.App {
	app := &cli.App{
		Name:  "gantt",
		Usage: "a constraint-based scheduler for tasks, resources and indicators",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level, one of debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Write a `MODE` profile (cpu, mem) while running",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "solve",
				Usage:     "Solve a problem definition and print the schedule",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "backend",
						Aliases: []string{"b"},
						Usage:   "Registered solver backend",
					},
					&cli.DurationFlag{
						Name:    "timeout",
						Aliases: []string{"t"},
						Usage:   "Stop optimizing after this long",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Objective search, linear or binary",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format, one of table, json, yaml, msgpack",
					},
				},
				Action: solveAction,
			},
			{
				Name:      "validate",
				Usage:     "Load a problem definition and lower it without solving",
				ArgsUsage: "FILE",
				Action:    validateAction,
			},
			{
				Name:   "backends",
				Usage:  "List the registered solver backends",
				Action: backendsAction,
			},
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	return app
}

func solveAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer startProfile(conf)()

	p, err := loadProblem(c)
	if err != nil {
		return err
	}

	strategy, err := gantt.ParseStrategy(conf.Strategy)
	if err != nil {
		return err
	}
	g, err := gantt.NewGantt(
		gantt.WithBackend(conf.Backend),
		gantt.WithTimeout(conf.Timeout),
		gantt.WithStrategy(strategy),
	)
	if err != nil {
		return err
	}

	s, err := g.Solve(context.Background(), p)
	if err != nil {
		return err
	}

	if conf.Format == "table" {
		renderSolution(c.App.Writer, s)
		return nil
	}
	format, err := gantt.ParseFormat(conf.Format)
	if err != nil {
		return err
	}
	data, err := gantt.MarshalSolution(s, format)
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func validateAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer startProfile(conf)()

	p, err := loadProblem(c)
	if err != nil {
		return err
	}
	l, err := gantt.Build(p)
	if err != nil {
		return err
	}

	horizon := fmt.Sprint(l.Horizon)
	if !l.HorizonFixed {
		horizon += " (derived)"
	}
	fmt.Fprintf(c.App.Writer, "problem %s: %d tasks, %d resources, horizon %s, %d variables, %d constraints\n",
		p.Name(), len(p.Tasks()), len(p.Resources()), horizon,
		len(l.Model.Variables), len(l.Model.Constraints))
	return nil
}

func backendsAction(c *cli.Context) error {
	renderBackends(c.App.Writer, gantt.BackendNames())
	return nil
}

func loadProblem(c *cli.Context) (*gantt.SchedulingProblem, error) {
	if c.Args().Len() != 1 {
		return nil, errors.New("Expected exactly one problem definition FILE")
	}
	return gantt.LoadDefinitionFile(c.Args().First())
}

func startProfile(conf config) func() {
	var mode func(*profile.Profile)
	switch conf.Profile {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	default:
		return func() {}
	}
	return profile.Start(mode, profile.ProfilePath(conf.ProfilePath), profile.Quiet).Stop
}
