package db

import (
	"strings"

	"github.com/randevu/randevu/pkg/pagination"
)

// OrderBy renders an ORDER BY body for s. Only SQL from cols reaches the
// query text; a key missing from cols falls back to def. tieBreak is appended
// so paging is stable.
func OrderBy(cols map[string]string, s, def pagination.Sort, tieBreak string) string {
	col, ok := cols[s.Key]
	if !ok {
		s = def
		col = cols[def.Key]
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return col + " " + dir + ", " + tieBreak
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern wraps q for a substring (I)LIKE match, escaping wildcards in q.
func LikePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}
