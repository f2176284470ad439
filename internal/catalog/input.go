package catalog

import (
	"github.com/5w1tchy/local-library/internal/models"
	"github.com/5w1tchy/local-library/internal/validate"
)

const (
	maxNameLen  = 100
	minGenreLen = 3
)

// AuthorInput is the raw create/update payload for an Author.
type AuthorInput struct {
	FirstName   string  `json:"first_name"`
	FamilyName  string  `json:"family_name"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
	DateOfDeath *string `json:"date_of_death,omitempty"`
}

func (in AuthorInput) normalize(c *validate.Checker) models.Author {
	a := models.Author{
		FirstName: c.Field(models.FieldFirstName, in.FirstName).Trim().
			Required("First name must be specified.").
			Length(1, maxNameLen).
			Alnum("First name has non-alphanumeric characters.").
			Escape().Value(),
		FamilyName: c.Field(models.FieldFamilyName, in.FamilyName).Trim().
			Required("Family name must be specified.").
			Length(1, maxNameLen).
			Alnum("Family name has non-alphanumeric characters.").
			Escape().Value(),
		DateOfBirth: c.Optional(models.FieldDateOfBirth, in.DateOfBirth).Trim().Date(),
		DateOfDeath: c.Optional(models.FieldDateOfDeath, in.DateOfDeath).Trim().Date(),
	}
	if a.DateOfBirth != nil && a.DateOfDeath != nil {
		c.Check(!a.DateOfDeath.Before(*a.DateOfBirth), models.FieldDateOfDeath, "invalid",
			"Date of death must not be before date of birth.")
	}
	return a
}

// GenreInput is the raw create/update payload for a Genre.
type GenreInput struct {
	Name string `json:"name"`
}

func (in GenreInput) normalize(c *validate.Checker) models.Genre {
	return models.Genre{
		Name: c.Field(models.FieldName, in.Name).Trim().
			Length(minGenreLen, maxNameLen).
			Escape().Value(),
	}
}

// BookInput is the raw create/update payload for a Book. Author and Genre
// hold identifiers.
type BookInput struct {
	Title   string   `json:"title"`
	Author  string   `json:"author"`
	Summary string   `json:"summary"`
	ISBN    string   `json:"isbn"`
	Genre   []string `json:"genre,omitempty"`
}

func (in BookInput) normalize(c *validate.Checker) models.Book {
	b := models.Book{
		Title:   c.Field(models.FieldTitle, in.Title).Trim().Required("Title must not be empty.").Escape().Value(),
		Author:  c.Field(models.FieldAuthor, in.Author).Trim().Required("Author must not be empty.").Escape().Value(),
		Summary: c.Field(models.FieldSummary, in.Summary).Trim().Required("Summary must not be empty.").Escape().Value(),
		ISBN:    c.Field(models.FieldISBN, in.ISBN).Trim().Required("ISBN must not be empty.").Escape().Value(),
	}
	seen := map[string]bool{}
	for _, raw := range in.Genre {
		g := c.Field(models.FieldGenre, raw).Trim().Escape().Value()
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		b.Genre = append(b.Genre, g)
	}
	return b
}

// BookInstanceInput is the raw create/update payload for a BookInstance.
// An absent Status defaults to Maintenance.
type BookInstanceInput struct {
	Book    string  `json:"book"`
	Imprint string  `json:"imprint"`
	Status  *string `json:"status,omitempty"`
	DueBack *string `json:"due_back,omitempty"`
}

func (in BookInstanceInput) normalize(c *validate.Checker) models.BookInstance {
	bi := models.BookInstance{
		Book:    c.Field(models.FieldBook, in.Book).Trim().Required("Book must be specified.").Escape().Value(),
		Imprint: c.Field(models.FieldImprint, in.Imprint).Trim().Required("Imprint must be specified.").Escape().Value(),
		DueBack: c.Optional(models.FieldDueBack, in.DueBack).Trim().Date(),
		Status:  models.DefaultStatus,
	}
	if raw := c.Optional(models.FieldStatus, in.Status).Trim().Value(); raw != "" {
		st, err := models.ParseStatus(raw)
		c.Check(err == nil, models.FieldStatus, "invalid", "Status must be one of Available, Maintenance, Loaned, Reserved.")
		if err == nil {
			bi.Status = st
		}
	}
	return bi
}
