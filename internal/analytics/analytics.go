// internal/analytics/analytics.go

// Package analytics computes derived statistics from already-fetched GitHub
// facet payloads. All functions are pure: they never touch the network or
// the database.
package analytics

import (
	"sort"

	"github.com/google/go-github/v62/github"
)

// CommitFrequencyStats buckets commits by ISO week. Week keys are the date
// of the preceding (or same) Sunday in UTC, formatted YYYY-MM-DD.
type CommitFrequencyStats struct {
	CommitsByWeek         map[string]int `json:"commitsByWeek"`
	TotalCommits          int            `json:"totalCommits"`
	AverageCommitsPerWeek float64        `json:"averageCommitsPerWeek"`
}

// ComplexityStats is a placeholder: file-level data is not fetched by the
// ingestion pipeline, so every field is zeroed.
type ComplexityStats struct {
	TotalFiles       int      `json:"totalFiles"`
	AverageFileSize  float64  `json:"averageFileSize"`
	LargestFiles     []string `json:"largestFiles"`
	MostComplexFiles []string `json:"mostComplexFiles"`
}

// ContributorRank is one entry of the contributor leaderboard.
type ContributorRank struct {
	Username      string `json:"username"`
	AvatarURL     string `json:"avatarUrl"`
	Contributions int    `json:"contributions"`
}

// ContributorStats ranks contributors by contribution count.
type ContributorStats struct {
	TopContributors      []ContributorRank `json:"topContributors"`
	TotalContributors    int               `json:"totalContributors"`
	AverageContributions float64           `json:"averageContributions"`
}

// LanguageShare is one language's slice of the repository's bytes.
type LanguageShare struct {
	Name       string  `json:"name"`
	Bytes      int     `json:"bytes"`
	Percentage float64 `json:"percentage"`
}

// LanguageStats is the percentage breakdown of the language byte map.
type LanguageStats struct {
	Languages       []LanguageShare `json:"languages"`
	TotalBytes      int             `json:"totalBytes"`
	PrimaryLanguage string          `json:"primaryLanguage"`
}

// IssueCounts is the open/closed funnel for issues.
type IssueCounts struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// PullRequestCounts is the open/closed/merged funnel for pull requests.
type PullRequestCounts struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
	Merged int `json:"merged"`
}

// IssuePRStats combines both funnels.
type IssuePRStats struct {
	Issues       IssueCounts       `json:"issues"`
	PullRequests PullRequestCounts `json:"pullRequests"`
}

const topContributorLimit = 10

// CommitFrequency buckets every commit by the Sunday starting its week.
// With no commits the average is reported as 0; the payload is persisted as
// JSON, which cannot carry NaN.
func CommitFrequency(commits []*github.RepositoryCommit) CommitFrequencyStats {
	byWeek := make(map[string]int)
	for _, c := range commits {
		d := c.GetCommit().GetAuthor().GetDate().Time.UTC()
		week := d.AddDate(0, 0, -int(d.Weekday())).Format("2006-01-02")
		byWeek[week]++
	}

	avg := 0.0
	if len(byWeek) > 0 {
		avg = float64(len(commits)) / float64(len(byWeek))
	}

	return CommitFrequencyStats{
		CommitsByWeek:         byWeek,
		TotalCommits:          len(commits),
		AverageCommitsPerWeek: avg,
	}
}

// Complexity returns the zeroed placeholder record.
func Complexity() ComplexityStats {
	return ComplexityStats{
		LargestFiles:     []string{},
		MostComplexFiles: []string{},
	}
}

// Contributors ranks contributors by contribution count descending and keeps
// the top ten.
func Contributors(contributors []*github.Contributor) ContributorStats {
	ranked := make([]ContributorRank, 0, len(contributors))
	total := 0
	for _, c := range contributors {
		ranked = append(ranked, ContributorRank{
			Username:      c.GetLogin(),
			AvatarURL:     c.GetAvatarURL(),
			Contributions: c.GetContributions(),
		})
		total += c.GetContributions()
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Contributions > ranked[j].Contributions
	})

	top := ranked
	if len(top) > topContributorLimit {
		top = top[:topContributorLimit]
	}

	avg := 0.0
	if len(contributors) > 0 {
		avg = float64(total) / float64(len(contributors))
	}

	return ContributorStats{
		TopContributors:      top,
		TotalContributors:    len(contributors),
		AverageContributions: avg,
	}
}

// Languages computes each language's percentage of the repository's total
// bytes, descending by byte count. The primary language is the top entry, or
// "Unknown" when the map is empty.
func Languages(languages map[string]int) LanguageStats {
	totalBytes := 0
	for _, b := range languages {
		totalBytes += b
	}

	shares := make([]LanguageShare, 0, len(languages))
	for name, b := range languages {
		shares = append(shares, LanguageShare{
			Name:       name,
			Bytes:      b,
			Percentage: float64(b) / float64(totalBytes) * 100,
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Bytes != shares[j].Bytes {
			return shares[i].Bytes > shares[j].Bytes
		}
		return shares[i].Name < shares[j].Name
	})

	primary := "Unknown"
	if len(shares) > 0 {
		primary = shares[0].Name
	}

	return LanguageStats{
		Languages:       shares,
		TotalBytes:      totalBytes,
		PrimaryLanguage: primary,
	}
}

// IssuesPRs counts issues by state and pull requests by state and merged
// flag. The merged count is independent of state.
func IssuesPRs(issues []*github.Issue, prs []*github.PullRequest) IssuePRStats {
	stats := IssuePRStats{}

	stats.Issues.Total = len(issues)
	for _, i := range issues {
		switch i.GetState() {
		case "open":
			stats.Issues.Open++
		case "closed":
			stats.Issues.Closed++
		}
	}

	stats.PullRequests.Total = len(prs)
	for _, pr := range prs {
		switch pr.GetState() {
		case "open":
			stats.PullRequests.Open++
		case "closed":
			stats.PullRequests.Closed++
		}
		// List responses omit the merged field; merged_at stands in for it.
		if pr.GetMerged() || pr.MergedAt != nil {
			stats.PullRequests.Merged++
		}
	}

	return stats
}
