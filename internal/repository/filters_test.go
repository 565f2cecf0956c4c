package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhereBuilderPlaceholders(t *testing.T) {
	b := &whereBuilder{args: []any{int64(7)}}
	b.conds = append(b.conds, "project_id = $1")

	b.add("title ILIKE %s", "%login%")
	b.add("status = %s", 2)

	assert.Equal(t, " WHERE project_id = $1 AND title ILIKE $2 AND status = $3", b.clause())
	assert.Equal(t, []any{int64(7), "%login%", 2}, b.args)
}

func TestWhereBuilderEmpty(t *testing.T) {
	b := &whereBuilder{}
	assert.Equal(t, "", b.clause())
}

func TestWhereBuilderLimitOffset(t *testing.T) {
	b := &whereBuilder{args: []any{int64(7)}}
	clause := b.limitOffset(ListParams{Limit: 20, Offset: 40})

	assert.Equal(t, " LIMIT $2 OFFSET $3", clause)
	assert.Equal(t, []any{int64(7), 20, 40}, b.args)
}

func TestOrderClause(t *testing.T) {
	allowed := map[string]string{
		"created_at": "i.created_at",
		"priority":   "i.priority",
	}

	tests := []struct {
		name    string
		orderBy []string
		want    string
	}{
		{"empty falls back", nil, " ORDER BY i.created_at DESC"},
		{"ascending", []string{"priority"}, " ORDER BY i.priority ASC"},
		{"descending", []string{"-priority"}, " ORDER BY i.priority DESC"},
		{"multiple", []string{"-priority", "created_at"}, " ORDER BY i.priority DESC, i.created_at ASC"},
		{"unknown fields skipped", []string{"evil; DROP TABLE", "-created_at"}, " ORDER BY i.created_at DESC"},
		{"all unknown falls back", []string{"nope"}, " ORDER BY i.created_at DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderClause(tt.orderBy, allowed, "i.created_at DESC"))
		})
	}
}
