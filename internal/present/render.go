package present

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Render writes a plain-text dashboard for terminal use.
func Render(w io.Writer, v DashboardView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if v.Welcome != "" {
		fmt.Fprintf(tw, "%s\n\n", v.Welcome)
	}

	fmt.Fprintln(tw, "Tontines actives\tCotisations\tTours en attente\tMembres")
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n\n",
		v.Stats.ActiveGroups, v.Stats.TotalContributions, v.Stats.PendingRounds, v.Stats.TotalMembers)

	fmt.Fprintln(tw, "Tontines récentes")
	if v.RecentGroups.Placeholder != "" {
		fmt.Fprintf(tw, "  %s\n", v.RecentGroups.Placeholder)
	}
	for _, g := range v.RecentGroups.Lines {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", g.Name, g.Detail, g.Status)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Prochaines échéances")
	if v.UpcomingRounds.Placeholder != "" {
		fmt.Fprintf(tw, "  %s\n", v.UpcomingRounds.Placeholder)
	}
	for _, r := range v.UpcomingRounds.Lines {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", r.Title, r.Group, r.Detail, r.Status)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Activité récente")
	if v.RecentActivity.Placeholder != "" {
		fmt.Fprintf(tw, "  %s\n", v.RecentActivity.Placeholder)
	}
	for _, a := range v.RecentActivity.Lines {
		fmt.Fprintf(tw, "  %s\t%s\n", a.Message, a.When)
	}

	if v.GeneratedAt != "" && v.GeneratedAt != MissingDate {
		fmt.Fprintf(tw, "\nMis à jour le %s\n", v.GeneratedAt)
	}
	return tw.Flush()
}
