package models

import "time"

type Author struct {
	ID          string     `json:"id" db:"id" firestore:"-"`
	FirstName   string     `json:"first_name" db:"first_name" firestore:"first_name"`
	FamilyName  string     `json:"family_name" db:"family_name" firestore:"family_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth" firestore:"date_of_birth,omitempty"`
	DateOfDeath *time.Time `json:"date_of_death,omitempty" db:"date_of_death" firestore:"date_of_death,omitempty"`
}

// Name renders "family, first"; empty when either part is missing.
func (a Author) Name() string {
	if a.FirstName == "" || a.FamilyName == "" {
		return ""
	}
	return a.FamilyName + ", " + a.FirstName
}

// Lifespan renders the birth and death years, e.g. "1920 - 1986".
func (a Author) Lifespan() string {
	var out string
	if a.DateOfBirth != nil {
		out = a.DateOfBirth.Format("2006")
	}
	if a.DateOfDeath != nil {
		out += " - " + a.DateOfDeath.Format("2006")
	}
	return out
}

func (a Author) URL() string   { return catalogURL(KindAuthor, a.ID) }
func (a Author) Key() string   { return a.ID }
func (a Author) Label() string { return a.Name() }

func (a Author) Lookup(field string) []string {
	switch field {
	case FieldID:
		return one(a.ID)
	case FieldFirstName:
		return one(a.FirstName)
	case FieldFamilyName:
		return one(a.FamilyName)
	}
	return nil
}

func (a Author) WithID(id string) Author {
	a.ID = id
	return a
}

func (a Author) Clone() Author {
	a.DateOfBirth = cloneTime(a.DateOfBirth)
	a.DateOfDeath = cloneTime(a.DateOfDeath)
	return a
}
