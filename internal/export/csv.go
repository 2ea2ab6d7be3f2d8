// internal/export/csv.go

// Package export renders a persisted repository and its child collections
// into the sectioned CSV report.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github-analyzer/internal/model"
)

// WriteReport writes the CSV report: repository summary rows, then Commits,
// Contributors, and Languages sections. The only escaping applied is
// replacing commas in commit messages with semicolons; the format is kept
// byte-compatible with what consumers already parse, quirks included.
func WriteReport(w io.Writer, repo model.Repository, commits []model.Commit, contributors []model.Contributor, languages []model.Language) error {
	var b strings.Builder

	b.WriteString("Type,Data\n")
	fmt.Fprintf(&b, "Repository,%s\n", repo.FullName)
	fmt.Fprintf(&b, "Description,%s\n", orNA(repo.Description))
	fmt.Fprintf(&b, "Primary Language,%s\n", orNA(repo.Language))
	fmt.Fprintf(&b, "Stars,%d\n", repo.Stars)
	fmt.Fprintf(&b, "Forks,%d\n", repo.Forks)
	fmt.Fprintf(&b, "Watchers,%d\n\n", repo.Watchers)

	b.WriteString("Commits\n")
	b.WriteString("SHA,Author,Email,Date,Message\n")
	for _, c := range commits {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s\n",
			c.SHA, c.Author, c.AuthorEmail,
			c.Date.UTC().Format(time.RFC3339),
			strings.ReplaceAll(c.Message, ",", ";"))
	}

	b.WriteString("\nContributors\n")
	b.WriteString("Username,Commits\n")
	for _, c := range contributors {
		fmt.Fprintf(&b, "%s,%d\n", c.Username, c.Commits)
	}

	b.WriteString("\nLanguages\n")
	b.WriteString("Name,Bytes,Percentage\n")
	var totalBytes int64
	for _, l := range languages {
		totalBytes += l.Bytes
	}
	for _, l := range languages {
		fmt.Fprintf(&b, "%s,%d,%.2f%%\n", l.Name, l.Bytes,
			float64(l.Bytes)/float64(totalBytes)*100)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}
