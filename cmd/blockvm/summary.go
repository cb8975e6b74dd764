package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"

	"blockvm/internal/campaign"
	"blockvm/internal/project"
)

type targetCoverage struct {
	name    string
	covered int
	total   int
}

// coverageByTarget counts the non-shadow blocks of each target that appear in
// the merged coverage.
func coverageByTarget(p *project.Project, coverage map[string]int) []targetCoverage {
	out := make([]targetCoverage, 0, len(p.Targets))
	for _, t := range p.Targets {
		tc := targetCoverage{name: t.Name}
		for id, b := range t.Blocks {
			if b.Shadow {
				continue
			}
			tc.total++
			if coverage[id+"-"+t.Name] > 0 {
				tc.covered++
			}
		}
		out = append(out, tc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func printSummary(out io.Writer, p *project.Project, res *campaign.Result) {
	bold := color.New(color.Bold)
	good := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)

	targets := coverageByTarget(p, res.Report.Coverage)
	covered, total := 0, 0
	for _, tc := range targets {
		covered += tc.covered
		total += tc.total
	}

	var elapsed time.Duration
	inputs := 0
	for _, r := range res.Runs {
		elapsed += r.Elapsed
		inputs += r.Inputs
	}

	bold.Fprintf(out, "%d runs", res.Report.Runs)
	fmt.Fprintf(out, ", %d inputs, %.1f ms run time, fingerprint %s\n", inputs, toMillis(elapsed), res.Report.Project)
	for _, tc := range targets {
		if tc.total == 0 {
			continue
		}
		c := good
		if tc.covered < tc.total {
			c = warn
		}
		fmt.Fprintf(out, "  %-20s ", tc.name)
		c.Fprintf(out, "%d/%d", tc.covered, tc.total)
		fmt.Fprintln(out, " blocks")
	}
	fmt.Fprintf(out, "covered %d/%d blocks, %d branch traces\n", covered, total, len(res.Report.Traces))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
