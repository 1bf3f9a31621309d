package fs

import "strings"

// Commit types used for the history of the graph directory.
const (
	CommitTypeFeat  = "feat"
	CommitTypeDocs  = "docs"
	CommitTypeChore = "chore"
)

// CommitFooter marks commits written by the repository.
const CommitFooter = "Committed-by: nodebook"

// FormatCommitMessage builds a Conventional Commit message:
//
//	<type>(<scope>): <subject>
//
//	<body>
//
//	Committed-by: nodebook
func FormatCommitMessage(ctype, scope, subject, body string) string {
	var sb strings.Builder

	if ctype == "" {
		ctype = CommitTypeChore
	}
	sb.WriteString(ctype)

	if scope != "" {
		sb.WriteString("(")
		sb.WriteString(scope)
		sb.WriteString(")")
	}

	sb.WriteString(": ")
	sb.WriteString(subject)

	if body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(body))
	}

	sb.WriteString("\n\n")
	sb.WriteString(CommitFooter)
	return sb.String()
}
