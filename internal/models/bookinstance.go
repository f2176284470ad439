package models

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusAvailable   Status = "Available"
	StatusMaintenance Status = "Maintenance"
	StatusLoaned      Status = "Loaned"
	StatusReserved    Status = "Reserved"
)

// DefaultStatus applies when a copy is registered without an explicit status.
const DefaultStatus = StatusMaintenance

var validStatuses = map[Status]bool{
	StatusAvailable:   true,
	StatusMaintenance: true,
	StatusLoaned:      true,
	StatusReserved:    true,
}

// Statuses lists the accepted values in display order.
var Statuses = []Status{StatusAvailable, StatusMaintenance, StatusLoaned, StatusReserved}

func (s Status) Valid() bool { return validStatuses[s] }

// ParseStatus accepts exactly one of the four status spellings.
func ParseStatus(s string) (Status, error) {
	if st := Status(s); st.Valid() {
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Category is presentation metadata; Loaned and Reserved share "pending".
type Category string

const (
	CategoryAvailable   Category = "available"
	CategoryMaintenance Category = "maintenance"
	CategoryPending     Category = "pending"
)

func (s Status) Category() Category {
	switch s {
	case StatusAvailable:
		return CategoryAvailable
	case StatusMaintenance:
		return CategoryMaintenance
	default:
		return CategoryPending
	}
}

type BookInstance struct {
	ID      string     `json:"id" db:"id" firestore:"-"`
	Book    string     `json:"book" db:"book" firestore:"book"`
	Imprint string     `json:"imprint" db:"imprint" firestore:"imprint"`
	Status  Status     `json:"status" db:"status" firestore:"status"`
	DueBack *time.Time `json:"due_back,omitempty" db:"due_back" firestore:"due_back,omitempty"`
}

func (bi BookInstance) URL() string { return catalogURL(KindBookInstance, bi.ID) }
func (bi BookInstance) Key() string { return bi.ID }

// Label is the imprint; a copy has no title of its own.
func (bi BookInstance) Label() string { return bi.Imprint }

// DueBackFormatted renders due_back as "Jan 2, 2006", empty when unset.
func (bi BookInstance) DueBackFormatted() string {
	if bi.DueBack == nil {
		return ""
	}
	return bi.DueBack.Format("Jan 2, 2006")
}

func (bi BookInstance) Lookup(field string) []string {
	switch field {
	case FieldID:
		return one(bi.ID)
	case FieldBook:
		return one(bi.Book)
	case FieldImprint:
		return one(bi.Imprint)
	case FieldStatus:
		return one(string(bi.Status))
	}
	return nil
}

func (bi BookInstance) WithID(id string) BookInstance {
	bi.ID = id
	return bi
}

func (bi BookInstance) Clone() BookInstance {
	bi.DueBack = cloneTime(bi.DueBack)
	return bi
}
