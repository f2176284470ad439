package models

type Book struct {
	ID      string   `json:"id" db:"id" firestore:"-"`
	Title   string   `json:"title" db:"title" firestore:"title"`
	Author  string   `json:"author" db:"author" firestore:"author"`
	Summary string   `json:"summary" db:"summary" firestore:"summary"`
	ISBN    string   `json:"isbn" db:"isbn" firestore:"isbn"`
	Genre   []string `json:"genre" db:"genre" firestore:"genre"`
}

func (b Book) URL() string   { return catalogURL(KindBook, b.ID) }
func (b Book) Key() string   { return b.ID }
func (b Book) Label() string { return b.Title }

func (b Book) Lookup(field string) []string {
	switch field {
	case FieldID:
		return one(b.ID)
	case FieldTitle:
		return one(b.Title)
	case FieldAuthor:
		return one(b.Author)
	case FieldSummary:
		return one(b.Summary)
	case FieldISBN:
		return one(b.ISBN)
	case FieldGenre:
		return b.Genre
	}
	return nil
}

func (b Book) WithID(id string) Book {
	b.ID = id
	return b
}

func (b Book) Clone() Book {
	if b.Genre != nil {
		b.Genre = append([]string(nil), b.Genre...)
	}
	return b
}
