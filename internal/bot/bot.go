// Package bot answers chat commands with data from the evledger HTTP API.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Vodeneev/evledger/internal/pipeline"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

const (
	defaultLimit = 5
	maxLimit     = 50
	// Telegram rejects messages over 4096 characters.
	maxMessageLen = 4000
)

// Commands answers chat commands. It is transport agnostic: the caller sends
// the returned messages.
type Commands struct {
	apiURL string
	client *http.Client
}

func NewCommands(apiURL string, timeout time.Duration) *Commands {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Commands{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Reply returns the Markdown messages answering text. Both "/top 10" and
// "top 10" are accepted.
func (c *Commands) Reply(ctx context.Context, text string) []string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(parts) == 0 {
		return nil
	}
	command := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	switch command {
	case "start", "help":
		return []string{helpText}
	case "top":
		return c.topLines(ctx, "", parseLimit(args))
	case "league":
		if len(args) == 0 {
			return []string{"Usage: /league <league> [limit], e.g. /league nba 10"}
		}
		return c.topLines(ctx, strings.ToUpper(args[0]), parseLimit(args[1:]))
	case "run":
		return c.lastRun(ctx)
	}
	return []string{"Unknown command. Use /help to see available commands."}
}

const helpText = `🤖 *EV Ledger Bot*

*Available Commands:*

/top [limit] - Best +EV lines of the latest batch
  Example: /top 10

/league <league> [limit] - Best +EV lines of one league
  Example: /league nba 5

/run - Stats of the last pipeline run

/help - Show this help message

*Note:* Limit must be between 1 and 50. Default is 5.`

func parseLimit(args []string) int {
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 && n <= maxLimit {
			return n
		}
	}
	return defaultLimit
}

func (c *Commands) topLines(ctx context.Context, league string, limit int) []string {
	q := url.Values{"previous_batch_only": {"true"}}
	if league != "" {
		q.Set("league", league)
	}
	var resp struct {
		Lines []models.StoredBettingLine `json:"lines"`
	}
	if err := c.get(ctx, "/api/v1/lines?"+q.Encode(), &resp); err != nil {
		return []string{fmt.Sprintf("❌ Error: %v", err)}
	}

	lines := TopByEV(resp.Lines, limit)
	if len(lines) == 0 {
		return []string{"📊 No +EV lines in the latest batch."}
	}

	header := fmt.Sprintf("📊 *Top %d +EV lines*", len(lines))
	if league != "" {
		header += " (" + escapeMarkdown(league) + ")"
	}
	header += "\n\n"

	entries := make([]string, len(lines))
	for i, l := range lines {
		entries[i] = formatEntry(i+1, l)
	}
	return splitMessages(header, entries)
}

// TopByEV returns up to limit lines with positive EV, best first.
func TopByEV(lines []models.StoredBettingLine, limit int) []models.StoredBettingLine {
	var out []models.StoredBettingLine
	for _, l := range lines {
		if l.Metrics != nil && l.Metrics.EV != nil && *l.Metrics.EV > 0 {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Metrics.EV > *out[j].Metrics.EV
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func formatEntry(n int, l models.StoredBettingLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d. %s* %s", n, escapeMarkdown(l.Subject), escapeMarkdown(l.Label))
	if l.Line != nil {
		fmt.Fprintf(&b, " %g", *l.Line)
	}
	fmt.Fprintf(&b, " %s\n", escapeMarkdown(l.Market))
	fmt.Fprintf(&b, "🏠 %s | %s\n", escapeMarkdown(l.Bookmaker), escapeMarkdown(l.League))
	fmt.Fprintf(&b, "💰 Odds %.2f | EV *%+.1f%%*", l.Odds, *l.Metrics.EV*100)
	if l.Metrics.TwPrb != nil {
		fmt.Fprintf(&b, " | true prob %.1f%%", *l.Metrics.TwPrb*100)
	}
	b.WriteString("\n\n")
	return b.String()
}

// splitMessages packs entries into messages under maxMessageLen, repeating
// the header on each.
func splitMessages(header string, entries []string) []string {
	var out []string
	var b strings.Builder
	b.WriteString(header)
	for _, e := range entries {
		if b.Len()+len(e) > maxMessageLen && b.Len() > len(header) {
			out = append(out, b.String())
			b.Reset()
			b.WriteString(header)
		}
		b.WriteString(e)
	}
	if b.Len() > len(header) {
		out = append(out, b.String())
	}
	return out
}

func (c *Commands) lastRun(ctx context.Context) []string {
	var resp struct {
		Run pipeline.RunStats `json:"run"`
	}
	if err := c.get(ctx, "/api/v1/runs/last", &resp); err != nil {
		return []string{fmt.Sprintf("❌ Error: %v", err)}
	}
	r := resp.Run
	status := "✅ ok"
	if r.Error != "" {
		status = "❌ " + escapeMarkdown(r.Error)
	}
	return []string{fmt.Sprintf("🕐 *Last run* %s\n\nStatus: %s\nDuration: %s\nRequests: %d (%d failed)\nLines: %d collected, %d rejected, %d stored\nDevigged: %d, ambiguous: %d\nNew entities: %d\nAlerts: %d",
		r.StartedAt.UTC().Format("2006-01-02 15:04:05"), status, r.Duration.Round(time.Millisecond),
		r.Requests, r.FailedRequests, r.Collected, r.Rejected, r.Stored,
		r.Devig.Devigged, r.Devig.Ambiguous, r.Resolution.Created, r.Alerts)}
}

func (c *Commands) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach evledger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Message != "" {
			return fmt.Errorf("%s", errResp.Message)
		}
		return fmt.Errorf("evledger returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func escapeMarkdown(text string) string {
	r := strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`")
	return r.Replace(text)
}
