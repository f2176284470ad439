package catalog

import "github.com/5w1tchy/local-library/internal/models"

// BookSummary is the (title, summary) projection of a Book used on author
// and genre pages.
type BookSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	URL     string `json:"url"`
}

func summarize(b models.Book) BookSummary {
	return BookSummary{ID: b.ID, Title: b.Title, Summary: b.Summary, URL: b.URL()}
}

// BookView is a Book with its Author and Genres resolved. Author is nil when
// the reference no longer resolves.
type BookView struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Summary string         `json:"summary,omitempty"`
	ISBN    string         `json:"isbn,omitempty"`
	URL     string         `json:"url"`
	Author  *models.Author `json:"author"`
	Genres  []models.Genre `json:"genre,omitempty"`
}

func viewOf(b models.Book, author *models.Author, genres []models.Genre) BookView {
	return BookView{
		ID:      b.ID,
		Title:   b.Title,
		Summary: b.Summary,
		ISBN:    b.ISBN,
		URL:     b.URL(),
		Author:  author,
		Genres:  genres,
	}
}

type AuthorDetail struct {
	Author models.Author  `json:"author"`
	Books  []BookSummary `json:"author_books"`
}

type BookDetail struct {
	Book      BookView              `json:"book"`
	Instances []models.BookInstance `json:"book_instances"`
}

type GenreDetail struct {
	Genre models.Genre  `json:"genre"`
	Books []BookSummary `json:"genre_books"`
}

// InstanceView is a BookInstance with its Book joined and a derived
// presentation category.
type InstanceView struct {
	models.BookInstance
	Title    string          `json:"title"`
	BookURL  string          `json:"book_url,omitempty"`
	Category models.Category `json:"category"`
	DueBackF string          `json:"due_back_formatted,omitempty"`
}

func instanceView(bi models.BookInstance, book *models.Book) InstanceView {
	v := InstanceView{
		BookInstance: bi,
		Category:     bi.Status.Category(),
		DueBackF:     bi.DueBackFormatted(),
	}
	if book != nil {
		v.Title = book.Title
		v.BookURL = book.URL()
	}
	return v
}

type Summary struct {
	BookCount              int `json:"book_count"`
	BookInstanceCount      int `json:"book_instance_count"`
	AvailableInstanceCount int `json:"book_instance_available_count"`
	AuthorCount            int `json:"author_count"`
	GenreCount             int `json:"genre_count"`
}

// BookForm carries the choices needed to fill in a Book.
type BookForm struct {
	Authors []models.Author `json:"authors"`
	Genres  []models.Genre  `json:"genres"`
}

// InstanceForm carries the choices needed to fill in a BookInstance.
type InstanceForm struct {
	Books    []models.Book   `json:"books"`
	Statuses []models.Status `json:"statuses"`
}
