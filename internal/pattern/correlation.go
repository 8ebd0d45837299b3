package pattern

import (
	"fmt"
	"strings"
	"time"

	"mexcSniperBot/internal/domain"
)

// launchProximityWindow groups targets whose launches fall close together.
const launchProximityWindow = 30 * time.Minute

// Correlate groups ready-or-near-ready targets by shared launch-window
// proximity and naming similarity, reporting a strength in [0,1] plus
// free-text insights. The output is advisory only and never blocks
// promotion.
func Correlate(targets []domain.MonitoredTarget, now time.Time) []domain.CorrelationReport {
	// Only targets actively heading toward launch participate.
	var live []domain.MonitoredTarget
	for _, t := range targets {
		if t.Stage == domain.StageMonitoring || t.Stage == domain.StageReady {
			live = append(live, t)
		}
	}
	if len(live) < 2 {
		return nil
	}

	var reports []domain.CorrelationReport
	used := make(map[string]bool)
	for i := range live {
		if used[live[i].Candidate.ID] {
			continue
		}
		group := []domain.MonitoredTarget{live[i]}
		for j := i + 1; j < len(live); j++ {
			if used[live[j].Candidate.ID] {
				continue
			}
			if withinLaunchWindow(live[i], live[j]) {
				group = append(group, live[j])
				used[live[j].Candidate.ID] = true
			}
		}
		if len(group) < 2 {
			continue
		}
		used[live[i].Candidate.ID] = true
		reports = append(reports, buildReport(group, now))
	}
	return reports
}

func withinLaunchWindow(a, b domain.MonitoredTarget) bool {
	d := a.LaunchTime().Sub(b.LaunchTime())
	if d < 0 {
		d = -d
	}
	return d <= launchProximityWindow
}

func buildReport(group []domain.MonitoredTarget, now time.Time) domain.CorrelationReport {
	ids := make([]string, len(group))
	for i, t := range group {
		ids[i] = t.Candidate.ID
	}

	// Strength grows with group size and with naming overlap.
	strength := float64(len(group)-1) / float64(len(group))
	insights := []string{
		fmt.Sprintf("%d targets launch within %s of each other", len(group), launchProximityWindow),
	}
	if shared := sharedNameToken(group); shared != "" {
		strength = clamp(strength+0.15, 0, 1)
		insights = append(insights, fmt.Sprintf("shared naming token %q suggests a common sector or campaign", shared))
	}

	return domain.CorrelationReport{
		TargetIDs: ids,
		Strength:  clamp(strength, 0, 1),
		Insights:  insights,
		CreatedAt: now,
	}
}

// sharedNameToken returns a token (length >= 3) common to every project
// name in the group, or "".
func sharedNameToken(group []domain.MonitoredTarget) string {
	if len(group) == 0 {
		return ""
	}
	first := strings.Fields(strings.ToLower(group[0].Candidate.ProjectName))
	for _, token := range first {
		if len(token) < 3 {
			continue
		}
		shared := true
		for _, t := range group[1:] {
			if !strings.Contains(strings.ToLower(t.Candidate.ProjectName), token) {
				shared = false
				break
			}
		}
		if shared {
			return token
		}
	}
	return ""
}
