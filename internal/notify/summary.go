package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
)

// Summary renders a result as Telegram HTML.
func Summary(r schemas.SessionResult) string {
	var b strings.Builder

	icon := "✅"
	switch r.Status {
	case schemas.StatusFailed:
		icon = "❌"
	case schemas.StatusSkipped:
		icon = "⏭"
	}
	fmt.Fprintf(&b, "%s <b>%s</b> %s", icon, html.EscapeString(r.Target.Label), html.EscapeString(string(r.Status)))
	if r.FailureReason != "" {
		fmt.Fprintf(&b, " (%s)", html.EscapeString(r.FailureReason))
	}
	b.WriteString("\n")

	if r.Target.IsSearch() {
		fmt.Fprintf(&b, "Query: %s\n", html.EscapeString(r.Target.Query))
	}
	fmt.Fprintf(&b, "Destination: %s\n", html.EscapeString(r.Target.Destination))
	if r.Profile != "" {
		fmt.Fprintf(&b, "Profile: %s\n", html.EscapeString(r.Profile))
	}
	if r.FinalURL != "" {
		fmt.Fprintf(&b, "Final URL: %s\n", html.EscapeString(r.FinalURL))
	}
	fmt.Fprintf(&b, "Duration: %s\n", r.Duration().Round(100*time.Millisecond))
	if r.Artifact != nil {
		fmt.Fprintf(&b, "Capture: <code>%s</code>\n", html.EscapeString(r.Artifact.FileName))
	}
	fmt.Fprintf(&b, "<i>%s</i>", r.FinishedAt.UTC().Format(time.RFC3339))
	return b.String()
}
