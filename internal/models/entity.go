package models

import "time"

// Kind names one of the four catalog collections.
type Kind string

const (
	KindAuthor       Kind = "author"
	KindGenre        Kind = "genre"
	KindBook         Kind = "book"
	KindBookInstance Kind = "bookinstance"
)

// Kinds lists every collection in a stable order.
var Kinds = []Kind{KindAuthor, KindGenre, KindBook, KindBookInstance}

func (k Kind) String() string { return string(k) }

// Collection is the table / document collection name for the kind.
func (k Kind) Collection() string {
	switch k {
	case KindAuthor:
		return "authors"
	case KindGenre:
		return "genres"
	case KindBook:
		return "books"
	case KindBookInstance:
		return "bookinstances"
	}
	return ""
}

// Field names shared by every store (SQL columns, Firestore fields, JSON keys).
const (
	FieldID          = "id"
	FieldFirstName   = "first_name"
	FieldFamilyName  = "family_name"
	FieldDateOfBirth = "date_of_birth"
	FieldDateOfDeath = "date_of_death"
	FieldName        = "name"
	FieldTitle       = "title"
	FieldAuthor      = "author"
	FieldSummary     = "summary"
	FieldISBN        = "isbn"
	FieldGenre       = "genre"
	FieldBook        = "book"
	FieldImprint     = "imprint"
	FieldStatus      = "status"
	FieldDueBack     = "due_back"
)

// Entity is implemented by every persisted catalog type.
type Entity interface {
	Key() string
	// Label is the human title used when an entity is listed as a blocker.
	Label() string
	// Lookup returns the string values of a field; list fields return every element.
	Lookup(field string) []string
}

// Document is an Entity that stores can copy and stamp with an identifier.
type Document[T any] interface {
	Entity
	WithID(id string) T
	Clone() T
}

func catalogURL(k Kind, id string) string { return "/catalog/" + string(k) + "/" + id }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func one(s string) []string { return []string{s} }
