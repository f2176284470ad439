package catalog_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/5w1tchy/local-library/internal/catalog"
	"github.com/5w1tchy/local-library/internal/models"
	"github.com/5w1tchy/local-library/internal/store/memstore"
)

func strp(s string) *string { return &s }

func newService(t *testing.T) (*catalog.Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return catalog.NewService(st), st
}

func mustAuthor(t *testing.T, svc *catalog.Service, first, family string) models.Author {
	t.Helper()
	a, err := svc.CreateAuthor(t.Context(), catalog.AuthorInput{FirstName: first, FamilyName: family})
	require.NoError(t, err)
	return a
}

func mustGenre(t *testing.T, svc *catalog.Service, name string) models.Genre {
	t.Helper()
	g, created, err := svc.CreateGenre(t.Context(), catalog.GenreInput{Name: name})
	require.NoError(t, err)
	require.True(t, created)
	return g
}

func mustBook(t *testing.T, svc *catalog.Service, title, author string, genres ...string) models.Book {
	t.Helper()
	b, err := svc.CreateBook(t.Context(), catalog.BookInput{
		Title: title, Author: author, Summary: "summary of " + title, ISBN: "978-" + title, Genre: genres,
	})
	require.NoError(t, err)
	return b
}

func mustInstance(t *testing.T, svc *catalog.Service, book string, status models.Status) models.BookInstance {
	t.Helper()
	bi, err := svc.CreateBookInstance(t.Context(), catalog.BookInstanceInput{
		Book: book, Imprint: "Ace, 1990", Status: strp(string(status)),
	})
	require.NoError(t, err)
	return bi
}

func TestAuthorWhitespaceFamilyNameFailsValidation(t *testing.T) {
	svc, st := newService(t)
	in := catalog.AuthorInput{FirstName: "Frank", FamilyName: "  ", DateOfBirth: strp("1920-10-08")}

	_, err := svc.CreateAuthor(t.Context(), in)

	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, models.FieldFamilyName, verr.Fields[0].Field)
	assert.Equal(t, in, verr.Input, "original input is echoed back")

	n, err := st.Authors().Count(t.Context(), catalog.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAuthorValidationCollectsAllErrors(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateAuthor(t.Context(), catalog.AuthorInput{
		FirstName:   "J.R.R.",
		FamilyName:  "",
		DateOfBirth: strp("not-a-date"),
	})
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)

	fields := map[string]string{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, map[string]string{
		models.FieldFirstName:   "charset",
		models.FieldFamilyName:  "required",
		models.FieldDateOfBirth: "invalid_date",
	}, fields)
}

func TestAuthorDatesAreParsedAndOrdered(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.CreateAuthor(t.Context(), catalog.AuthorInput{
		FirstName: "Frank", FamilyName: "Herbert",
		DateOfBirth: strp("1920-10-08"), DateOfDeath: strp("1986-02-11"),
	})
	require.NoError(t, err)
	require.NotNil(t, a.DateOfBirth)
	assert.Equal(t, "1920 - 1986", a.Lifespan())
	assert.Equal(t, "Herbert, Frank", a.Name())

	_, err = svc.CreateAuthor(t.Context(), catalog.AuthorInput{
		FirstName: "Frank", FamilyName: "Herbert",
		DateOfBirth: strp("1986-02-11"), DateOfDeath: strp("1920-10-08"),
	})
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, models.FieldDateOfDeath, verr.Fields[0].Field)
}

func TestListAuthorsMatchesEitherNameSortedByFamilyName(t *testing.T) {
	svc, _ := newService(t)
	mustAuthor(t, svc, "Zadie", "Smith")
	mustAuthor(t, svc, "Smithson", "Abbott")
	mustAuthor(t, svc, "Isaac", "Asimov")
	mustAuthor(t, svc, "Adam", "BLACKSMITH")

	got, err := svc.ListAuthors(t.Context(), "smith")
	require.NoError(t, err)

	var fam []string
	for _, a := range got {
		fam = append(fam, a.FamilyName)
	}
	assert.Equal(t, []string{"Abbott", "BLACKSMITH", "Smith"}, fam)

	all, err := svc.ListAuthors(t.Context(), "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestListBooksByAuthorQuery(t *testing.T) {
	svc, _ := newService(t)
	herbert := mustAuthor(t, svc, "Frank", "Herbert")
	austen := mustAuthor(t, svc, "Jane", "Austen")
	mustBook(t, svc, "Dune", herbert.ID)
	mustBook(t, svc, "Children of Dune", herbert.ID)
	mustBook(t, svc, "Emma", austen.ID)

	got, err := svc.ListBooks(t.Context(), "herb")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Children of Dune", got[0].Title)
	assert.Equal(t, "Dune", got[1].Title)
	require.NotNil(t, got[0].Author)
	assert.Equal(t, herbert.ID, got[0].Author.ID)

	none, err := svc.ListBooks(t.Context(), "tolkien")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)

	all, err := svc.ListBooks(t.Context(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "Emma", all[2].Title)
	assert.Equal(t, "Austen", all[2].Author.FamilyName)
}

func TestBookDetailJoinsEverything(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	sf := mustGenre(t, svc, "Science Fiction")
	adv := mustGenre(t, svc, "Adventure")
	b := mustBook(t, svc, "Dune", a.ID, sf.ID, adv.ID)
	bi := mustInstance(t, svc, b.ID, models.StatusAvailable)

	d, err := svc.BookDetail(t.Context(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", d.Book.Title)
	require.NotNil(t, d.Book.Author)
	assert.Equal(t, "Herbert", d.Book.Author.FamilyName)
	assert.Equal(t, []models.Genre{sf, adv}, d.Book.Genres)
	require.Len(t, d.Instances, 1)
	assert.Equal(t, bi.ID, d.Instances[0].ID)

	_, err = svc.BookDetail(t.Context(), "missing")
	assert.True(t, catalog.IsNotFound(err))
}

func TestCreateBookRejectsUnknownReferences(t *testing.T) {
	svc, st := newService(t)
	_, err := svc.CreateBook(t.Context(), catalog.BookInput{
		Title: "Dune", Author: "nobody", Summary: "s", ISBN: "1", Genre: []string{"nogenre"},
	})
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]string{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, "not_found", fields[models.FieldAuthor])
	assert.Equal(t, "not_found", fields[models.FieldGenre])

	n, err := st.Books().Count(t.Context(), catalog.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBookFieldsAreTrimmedAndEscaped(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	b, err := svc.CreateBook(t.Context(), catalog.BookInput{
		Title: "  <i>Dune</i> ", Author: a.ID, Summary: "Spice & sand", ISBN: " 9780441013593 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "&lt;i&gt;Dune&lt;/i&gt;", b.Title)
	assert.Equal(t, "Spice &amp; sand", b.Summary)
	assert.Equal(t, "9780441013593", b.ISBN)
}

func TestGenreDuplicateResolvesToExisting(t *testing.T) {
	svc, st := newService(t)
	first := mustGenre(t, svc, "Fantasy")

	for _, name := range []string{"fantasy", "FANTASY", "  Fantasy ", "Fantásy"} {
		g, created, err := svc.CreateGenre(t.Context(), catalog.GenreInput{Name: name})
		require.NoError(t, err, name)
		assert.False(t, created, name)
		assert.Equal(t, first.ID, g.ID, name)
	}
	n, err := st.Genres().Count(t.Context(), catalog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGenreAccentVariantsShareID(t *testing.T) {
	svc, _ := newService(t)
	cafe := mustGenre(t, svc, "Café")

	for _, name := range []string{"  CAFE ", "cafe", "CAFÉ"} {
		g, created, err := svc.CreateGenre(t.Context(), catalog.GenreInput{Name: name})
		require.NoError(t, err, name)
		assert.False(t, created, name)
		assert.Equal(t, cafe.ID, g.ID, name)
	}
}

func TestGenreKey(t *testing.T) {
	col := collate.New(language.Und, collate.Loose)
	assert.Equal(t, catalog.GenreKey(col, "Café"), catalog.GenreKey(col, "CAFE"))
	assert.Equal(t, catalog.GenreKey(col, "Fantasy"), catalog.GenreKey(col, "fantásy"))
	assert.NotEqual(t, catalog.GenreKey(col, "Fantasy"), catalog.GenreKey(col, "Fantasia"))
}

func TestGenreNameTooShort(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.CreateGenre(t.Context(), catalog.GenreInput{Name: " ab "})
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "too_short", verr.Fields[0].Code)
}

func TestUpdateGenreRejectsNameOfAnotherGenre(t *testing.T) {
	svc, _ := newService(t)
	mustGenre(t, svc, "Fantasy")
	poetry := mustGenre(t, svc, "Poetry")

	_, err := svc.UpdateGenre(t.Context(), poetry.ID, catalog.GenreInput{Name: "FANTASY"})
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "duplicate", verr.Fields[0].Code)

	renamed, err := svc.UpdateGenre(t.Context(), poetry.ID, catalog.GenreInput{Name: "poetry"})
	require.NoError(t, err)
	assert.Equal(t, "poetry", renamed.Name)

	_, err = svc.UpdateGenre(t.Context(), "missing", catalog.GenreInput{Name: "Drama"})
	assert.True(t, catalog.IsNotFound(err))
}

func TestDeleteAuthorWithBooksIsRefused(t *testing.T) {
	svc, st := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	b := mustBook(t, svc, "Dune", a.ID)

	err := svc.Delete(t.Context(), models.KindAuthor, a.ID)

	var dep *catalog.DependentsError
	require.ErrorAs(t, err, &dep)
	assert.Equal(t, models.KindAuthor, dep.Kind)
	assert.Equal(t, models.KindBook, dep.Dependent)
	assert.Equal(t, []catalog.Ref{{Title: "Dune", ID: b.ID}}, dep.Blocking)

	_, err = st.Authors().Get(t.Context(), a.ID)
	require.NoError(t, err)
	_, err = st.Books().Get(t.Context(), b.ID)
	require.NoError(t, err)
}

func TestDeleteBookWithInstancesIsRefused(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	b := mustBook(t, svc, "Dune", a.ID)
	bi := mustInstance(t, svc, b.ID, models.StatusLoaned)

	err := svc.Delete(t.Context(), models.KindBook, b.ID)
	var dep *catalog.DependentsError
	require.ErrorAs(t, err, &dep)
	assert.Equal(t, []catalog.Ref{{Title: "Ace, 1990", ID: bi.ID}}, dep.Blocking)

	require.NoError(t, svc.Delete(t.Context(), models.KindBookInstance, bi.ID))
	require.NoError(t, svc.Delete(t.Context(), models.KindBook, b.ID))
	_, err = svc.BookDetail(t.Context(), b.ID)
	assert.True(t, catalog.IsNotFound(err))
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	svc, _ := newService(t)
	for _, k := range models.Kinds {
		err := svc.Delete(t.Context(), k, "nope")
		assert.True(t, catalog.IsNotFound(err), k)
	}
}

func TestFictionDuneScenario(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	fiction := mustGenre(t, svc, "Fiction")
	dune := mustBook(t, svc, "Dune", a.ID, fiction.ID)

	err := svc.Delete(t.Context(), models.KindGenre, fiction.ID)
	var dep *catalog.DependentsError
	require.ErrorAs(t, err, &dep)
	assert.Equal(t, []catalog.Ref{{Title: "Dune", ID: dune.ID}}, dep.Blocking)

	require.NoError(t, svc.Delete(t.Context(), models.KindBook, dune.ID))
	require.NoError(t, svc.Delete(t.Context(), models.KindGenre, fiction.ID))

	genres, err := svc.ListGenres(t.Context())
	require.NoError(t, err)
	for _, g := range genres {
		assert.NotEqual(t, fiction.ID, g.ID)
	}
	_, err = svc.GenreDetail(t.Context(), fiction.ID)
	assert.True(t, catalog.IsNotFound(err))
}

func TestGenreDetailListsBooks(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	sf := mustGenre(t, svc, "Science Fiction")
	mustBook(t, svc, "Dune", a.ID, sf.ID)
	mustBook(t, svc, "Dune Messiah", a.ID, sf.ID)
	mustBook(t, svc, "Whipping Star", a.ID)

	d, err := svc.GenreDetail(t.Context(), sf.ID)
	require.NoError(t, err)
	require.Len(t, d.Books, 2)
	assert.Equal(t, "Dune", d.Books[0].Title)
	assert.Equal(t, "summary of Dune", d.Books[0].Summary)
}

func TestAuthorDetailListsBooks(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	mustBook(t, svc, "Dune", a.ID)

	d, err := svc.AuthorDetail(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, d.Author.ID)
	require.Len(t, d.Books, 1)
	assert.Equal(t, "Dune", d.Books[0].Title)

	_, err = svc.AuthorDetail(t.Context(), "missing")
	assert.True(t, catalog.IsNotFound(err))
}

func TestListBookInstancesCategories(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	b := mustBook(t, svc, "Dune", a.ID)
	mustInstance(t, svc, b.ID, models.StatusAvailable)
	mustInstance(t, svc, b.ID, models.StatusMaintenance)
	mustInstance(t, svc, b.ID, models.StatusLoaned)
	mustInstance(t, svc, b.ID, models.StatusReserved)

	got, err := svc.ListBookInstances(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := []models.Category{
		models.CategoryAvailable, models.CategoryMaintenance, models.CategoryPending, models.CategoryPending,
	}
	for i, v := range got {
		assert.Equal(t, want[i], v.Category)
		assert.Equal(t, "Dune", v.Title)
	}
}

func TestBookInstanceDefaultsAndValidation(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	b := mustBook(t, svc, "Dune", a.ID)

	bi, err := svc.CreateBookInstance(t.Context(), catalog.BookInstanceInput{Book: b.ID, Imprint: "Ace"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusMaintenance, bi.Status)
	assert.Nil(t, bi.DueBack)

	_, err = svc.CreateBookInstance(t.Context(), catalog.BookInstanceInput{
		Book: b.ID, Imprint: " ", Status: strp("Lost"), DueBack: strp("tomorrow"),
	})
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)

	detail, err := svc.BookInstanceDetail(t.Context(), bi.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", detail.Title)
	assert.Equal(t, models.CategoryMaintenance, detail.Category)
}

func TestSummaryMatchesCounts(t *testing.T) {
	svc, st := newService(t)

	empty, err := svc.Summary(t.Context())
	require.NoError(t, err)
	assert.Equal(t, catalog.Summary{}, empty)

	a := mustAuthor(t, svc, "Frank", "Herbert")
	g := mustGenre(t, svc, "Science Fiction")
	b := mustBook(t, svc, "Dune", a.ID, g.ID)
	mustInstance(t, svc, b.ID, models.StatusAvailable)
	mustInstance(t, svc, b.ID, models.StatusLoaned)

	got, err := svc.Summary(t.Context())
	require.NoError(t, err)
	assert.Equal(t, catalog.Summary{
		BookCount: 1, BookInstanceCount: 2, AvailableInstanceCount: 1, AuthorCount: 1, GenreCount: 1,
	}, got)

	n, err := st.BookInstances().Count(t.Context(), catalog.Where(models.FieldStatus, "Available"))
	require.NoError(t, err)
	assert.Equal(t, got.AvailableInstanceCount, n)
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.UpdateAuthor(t.Context(), "missing", catalog.AuthorInput{FirstName: "A", FamilyName: "B"})
	assert.True(t, catalog.IsNotFound(err))

	var nf *catalog.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, models.KindAuthor, nf.Kind)
}

func TestUpdateMissingWinsOverFieldErrors(t *testing.T) {
	svc, _ := newService(t)
	mustGenre(t, svc, "Fiction")
	ctx := t.Context()

	_, err := svc.UpdateGenre(ctx, "nope", catalog.GenreInput{Name: "fiction"})
	assert.True(t, catalog.IsNotFound(err), "colliding genre name: %v", err)

	_, err = svc.UpdateGenre(ctx, "nope", catalog.GenreInput{Name: "x"})
	assert.True(t, catalog.IsNotFound(err), "short genre name: %v", err)

	_, err = svc.UpdateAuthor(ctx, "nope", catalog.AuthorInput{FirstName: " ", FamilyName: "J.R.R."})
	assert.True(t, catalog.IsNotFound(err), "invalid author: %v", err)

	_, err = svc.UpdateBook(ctx, "nope", catalog.BookInput{Author: "ghost", Genre: []string{"ghost"}})
	var nf *catalog.NotFoundError
	require.ErrorAs(t, err, &nf, "invalid book: %v", err)
	assert.Equal(t, models.KindBook, nf.Kind)

	_, err = svc.UpdateBookInstance(ctx, "nope", catalog.BookInstanceInput{Book: "ghost", Status: strp("Lost")})
	require.ErrorAs(t, err, &nf, "invalid instance: %v", err)
	assert.Equal(t, models.KindBookInstance, nf.Kind)
}

func TestFormOptions(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	mustGenre(t, svc, "Science Fiction")
	mustBook(t, svc, "Dune", a.ID)

	bf, err := svc.BookFormOptions(t.Context())
	require.NoError(t, err)
	assert.Len(t, bf.Authors, 1)
	assert.Len(t, bf.Genres, 1)

	inf, err := svc.InstanceFormOptions(t.Context())
	require.NoError(t, err)
	assert.Len(t, inf.Books, 1)
	assert.Equal(t, models.Statuses, inf.Statuses)
}

func errorsAs(err error, target any) bool { return errors.As(err, target) }

func TestBookInstanceStatusIsCaseSensitive(t *testing.T) {
	svc, _ := newService(t)
	a := mustAuthor(t, svc, "Frank", "Herbert")
	b := mustBook(t, svc, "Dune", a.ID)

	_, err := svc.CreateBookInstance(t.Context(), catalog.BookInstanceInput{Book: b.ID, Imprint: "Ace", Status: strp("loaned")})
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, models.FieldStatus, verr.Fields[0].Field)

	bi, err := svc.CreateBookInstance(t.Context(), catalog.BookInstanceInput{Book: b.ID, Imprint: "Ace", Status: strp(" Loaned ")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusLoaned, bi.Status)
}
