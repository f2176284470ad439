package models

type Genre struct {
	ID   string `json:"id" db:"id" firestore:"-"`
	Name string `json:"name" db:"name" firestore:"name"`
}

func (g Genre) URL() string   { return catalogURL(KindGenre, g.ID) }
func (g Genre) Key() string   { return g.ID }
func (g Genre) Label() string { return g.Name }

func (g Genre) Lookup(field string) []string {
	switch field {
	case FieldID:
		return one(g.ID)
	case FieldName:
		return one(g.Name)
	}
	return nil
}

func (g Genre) WithID(id string) Genre {
	g.ID = id
	return g
}

func (g Genre) Clone() Genre { return g }
