package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeStringRe(t *testing.T) {
	valid := []string{"pos-receipt-001", "order_42", "a.b.c", "ABC123"}
	for _, s := range valid {
		assert.True(t, safeStringRe.MatchString(s), s)
	}

	invalid := []string{"", "has space", "semi;colon", "<script>", "slash/us", "key:colon"}
	for _, s := range invalid {
		assert.False(t, safeStringRe.MatchString(s), s)
	}
}

func TestSanitizeStruct(t *testing.T) {
	note := "  <b>shift 3</b>  "
	req := struct {
		Name string
		Note *string
	}{
		Name: "  seller one  ",
		Note: &note,
	}

	SanitizeStruct(&req)

	assert.Equal(t, "seller one", req.Name)
	assert.Equal(t, "&lt;b&gt;shift 3&lt;/b&gt;", *req.Note)
}

func TestSanitizeStruct_NilPointerField(t *testing.T) {
	req := struct {
		Note *string
	}{}

	SanitizeStruct(&req)

	assert.Nil(t, req.Note)
}

func TestSanitizeStruct_NonStructInput(t *testing.T) {
	s := "plain"
	SanitizeStruct(&s)
	SanitizeStruct(42)
	assert.Equal(t, "plain", s)
}
