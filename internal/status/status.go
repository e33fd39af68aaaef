// Package status renders fleet overviews and dry-run plans as tables,
// adapted from the teacher's go-pretty table formatting.
package status

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"disnix/internal/manifest"
	"disnix/internal/registry"
	"disnix/internal/transition"
)

// FleetOverview renders one row per target: its resolved address,
// client interface, and how many services are mapped onto it.
func FleetOverview(out io.Writer, reg *registry.Registry, m *manifest.Manifest) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"TARGET", "ADDRESS", "CLIENT INTERFACE", "SERVICES"})

	counts := make(map[string]int)
	for _, mp := range m.Mappings {
		counts[mp.Target]++
	}

	for _, target := range reg.All() {
		t.AppendRow(table.Row{target.Key, target.Address, target.ClientInterface, counts[target.Key]})
	}

	t.Render()
}

// Plan renders a dry-run transition plan: the mappings to deactivate,
// activate, and the services being moved, each as their own table.
func Plan(out io.Writer, plan transition.Plan) {
	if len(plan.ToDeactivate) > 0 {
		fmt.Fprintln(out, "To deactivate:")
		renderMappings(out, plan.ToDeactivate)
	}
	if len(plan.Moved) > 0 {
		fmt.Fprintln(out, "Moved (state migration required):")
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"SERVICE", "FROM TARGET", "TO TARGET"})
		moves := append([]transition.Move(nil), plan.Moved...)
		sort.Slice(moves, func(i, j int) bool { return moves[i].Service < moves[j].Service })
		for _, mv := range moves {
			t.AppendRow(table.Row{mv.Service, mv.From.Target, mv.To.Target})
		}
		t.Render()
	}
	if len(plan.ToActivate) > 0 {
		fmt.Fprintln(out, "To activate:")
		renderMappings(out, plan.ToActivate)
	}
	if len(plan.ToDeactivate) == 0 && len(plan.ToActivate) == 0 && len(plan.Moved) == 0 {
		fmt.Fprintln(out, "No changes.")
	}
}

func renderMappings(out io.Writer, mappings []manifest.Mapping) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"SERVICE", "TARGET", "CONTAINER"})

	sorted := append([]manifest.Mapping(nil), mappings...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Target != sorted[j].Target {
			return sorted[i].Target < sorted[j].Target
		}
		return sorted[i].Service < sorted[j].Service
	})
	for _, mp := range sorted {
		t.AppendRow(table.Row{mp.Service, mp.Target, mp.Container})
	}
	t.Render()
}
