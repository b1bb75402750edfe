package repository

import "embed"

// Positions are renumbered in two statements: the affected rows are first
// moved to negative positions (shifted and negated), then flipped back. Each
// statement keeps UNIQUE(user_id, position) satisfied row by row.

//go:embed schema/*.sql
var schemaFS embed.FS

func schema(name string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
