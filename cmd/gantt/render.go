package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/yaoguais/gantt"
)

func renderSolution(w io.Writer, s gantt.Solution) {
	fmt.Fprintf(w, "problem %s: %s", s.Problem(), s.Status())
	if !s.Feasible() {
		fmt.Fprintln(w)
		return
	}
	horizon, _ := s.Horizon()
	makespan, _ := s.Makespan()
	fmt.Fprintf(w, ", optimal %v, horizon %d, makespan %d", s.Optimal(), horizon, makespan)
	if v, ok, _ := s.Objective(); ok {
		fmt.Fprintf(w, ", objective %d", v)
	}
	fmt.Fprintln(w)

	tasks, _ := s.Tasks()
	tw := newTable(w, "Tasks")
	tw.AppendHeader(table.Row{"Task", "Scheduled", "Start", "End", "Duration", "Resources"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.Name, t.Scheduled, t.Start, t.End, t.Duration, strings.Join(t.Resources, ", ")})
	}
	tw.Render()

	resources, _ := s.Resources()
	tw = newTable(w, "Resources")
	tw.AppendHeader(table.Row{"Resource", "Busy", "Intervals"})
	for _, r := range resources {
		intervals := []string{}
		for _, v := range r.Intervals {
			intervals = append(intervals, fmt.Sprintf("%s[%d,%d)", v.Task, v.Start, v.End))
		}
		tw.AppendRow(table.Row{r.Name, r.Busy, strings.Join(intervals, " ")})
	}
	tw.Render()

	indicators, _ := s.Indicators()
	if len(indicators) == 0 {
		return
	}
	tw = newTable(w, "Indicators")
	tw.AppendHeader(table.Row{"Indicator", "Kind", "Value"})
	for _, i := range indicators {
		tw.AppendRow(table.Row{i.Name, i.Kind, i.Value})
	}
	tw.Render()
}

func renderBackends(w io.Writer, names []string) {
	tw := newTable(w, "")
	tw.AppendHeader(table.Row{"Backend", "Default"})
	for _, name := range names {
		tw.AppendRow(table.Row{name, name == gantt.DefaultBackendName})
	}
	tw.Render()
}

func newTable(w io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	if title != "" {
		tw.SetTitle(title)
	}
	return tw
}
