package validation

import (
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
)

type sample struct {
	ID    uuid.UUID `json:"id" validate:"required"`
	Name  string    `json:"name" validate:"required,min=2,max=5"`
	Email string    `json:"email,omitempty" validate:"required,email"`
}

func TestStructMessages(t *testing.T) {
	ok := sample{ID: uuid.New(), Name: "bob", Email: "bob@example.com"}
	assert.Equal(t, Struct(ok), nil)

	cases := map[string]sample{
		"id is required":                     {Name: "bob", Email: "bob@example.com"},
		"name must be at least 2 characters": {ID: ok.ID, Name: "b", Email: ok.Email},
		"name must be at most 5 characters":  {ID: ok.ID, Name: "bobbie", Email: ok.Email},
		"email is not a valid email":         {ID: ok.ID, Name: "bob", Email: "bob"},
	}
	for want, s := range cases {
		err := Struct(s)
		assert.NotEqual(t, err, nil)
		assert.Equal(t, err.Error(), want)
	}
}

func TestLengthCountsRunes(t *testing.T) {
	// five runes, ten bytes
	s := sample{ID: uuid.New(), Name: "ééééé", Email: "e@example.com"}
	assert.Equal(t, Struct(s), nil)
}
