package catalog_test

import (
	"context"
	"slices"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/5w1tchy/local-library/internal/catalog"
	"github.com/5w1tchy/local-library/internal/models"
	"github.com/5w1tchy/local-library/internal/store/memstore"
)

var nameGen = rapid.StringMatching(`[A-Za-z]{3,12}`)

func randomCase(t *rapid.T, s string) string {
	mask := rapid.SliceOfN(rapid.Bool(), len(s), len(s)).Draw(t, "upper")
	var b strings.Builder
	for i, r := range s {
		if mask[i] {
			b.WriteString(strings.ToUpper(string(r)))
		} else {
			b.WriteString(strings.ToLower(string(r)))
		}
	}
	return b.String()
}

func TestPropertyGenreCaseVariantsShareID(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		svc := catalog.NewService(memstore.New())
		name := nameGen.Draw(t, "name")

		first, created, err := svc.CreateGenre(ctx, catalog.GenreInput{Name: name})
		if err != nil || !created {
			t.Fatalf("create %q: created=%v err=%v", name, created, err)
		}
		variant := randomCase(t, name)
		again, created, err := svc.CreateGenre(ctx, catalog.GenreInput{Name: variant})
		if err != nil {
			t.Fatalf("create %q: %v", variant, err)
		}
		if created || again.ID != first.ID {
			t.Fatalf("%q and %q resolved to %s and %s", name, variant, first.ID, again.ID)
		}
	})
}

func TestPropertyReferencedAuthorIsNeverDeleted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		st := memstore.New()
		svc := catalog.NewService(st)
		a, err := svc.CreateAuthor(ctx, catalog.AuthorInput{FirstName: nameGen.Draw(t, "first"), FamilyName: nameGen.Draw(t, "family")})
		if err != nil {
			t.Fatal(err)
		}
		n := rapid.IntRange(1, 5).Draw(t, "books")
		for i := range n {
			if _, err := svc.CreateBook(ctx, catalog.BookInput{
				Title: nameGen.Draw(t, "title"), Author: a.ID, Summary: "s", ISBN: string(rune('0' + i)),
			}); err != nil {
				t.Fatal(err)
			}
		}

		err = svc.Delete(ctx, models.KindAuthor, a.ID)
		var dep *catalog.DependentsError
		if !errorsAs(err, &dep) || len(dep.Blocking) != n {
			t.Fatalf("want %d blockers, got %v", n, err)
		}
		if _, err := st.Authors().Get(ctx, a.ID); err != nil {
			t.Fatalf("author removed: %v", err)
		}
		if c, _ := st.Books().Count(ctx, catalog.Filter{}); c != n {
			t.Fatalf("books removed: %d left of %d", c, n)
		}
	})
}

func TestPropertyUnreferencedDeleteThenNotFound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		svc := catalog.NewService(memstore.New())
		a, err := svc.CreateAuthor(ctx, catalog.AuthorInput{FirstName: nameGen.Draw(t, "first"), FamilyName: nameGen.Draw(t, "family")})
		if err != nil {
			t.Fatal(err)
		}
		g, _, err := svc.CreateGenre(ctx, catalog.GenreInput{Name: nameGen.Draw(t, "genre")})
		if err != nil {
			t.Fatal(err)
		}
		b, err := svc.CreateBook(ctx, catalog.BookInput{Title: "T", Author: a.ID, Summary: "S", ISBN: "I"})
		if err != nil {
			t.Fatal(err)
		}

		kind := rapid.SampledFrom([]models.Kind{models.KindGenre, models.KindBook}).Draw(t, "kind")
		id := g.ID
		detail := func() error { _, err := svc.GenreDetail(ctx, id); return err }
		if kind == models.KindBook {
			id = b.ID
			detail = func() error { _, err := svc.BookDetail(ctx, id); return err }
		}
		if err := svc.Delete(ctx, kind, id); err != nil {
			t.Fatalf("delete %s: %v", kind, err)
		}
		if err := detail(); !catalog.IsNotFound(err) {
			t.Fatalf("detail after delete: %v", err)
		}
	})
}

func TestPropertyListAuthorsIsExactAndSorted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		svc := catalog.NewService(memstore.New())
		n := rapid.IntRange(0, 12).Draw(t, "authors")
		var all []models.Author
		for range n {
			a, err := svc.CreateAuthor(ctx, catalog.AuthorInput{
				FirstName:  rapid.SampledFrom([]string{"Smith", "Jane", "Bob", "ASmithy"}).Draw(t, "first"),
				FamilyName: rapid.SampledFrom([]string{"Blacksmith", "Austen", "SMITH", "Zed", "Orwell"}).Draw(t, "family"),
			})
			if err != nil {
				t.Fatal(err)
			}
			all = append(all, a)
		}

		got, err := svc.ListAuthors(ctx, "smith")
		if err != nil {
			t.Fatal(err)
		}
		want := 0
		for _, a := range all {
			if strings.Contains(strings.ToLower(a.FirstName), "smith") || strings.Contains(strings.ToLower(a.FamilyName), "smith") {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("want %d matches, got %d", want, len(got))
		}
		if !slices.IsSortedFunc(got, func(x, y models.Author) int { return strings.Compare(x.FamilyName, y.FamilyName) }) {
			t.Fatalf("not sorted by family name: %+v", got)
		}
	})
}

func TestPropertySummaryEqualsCounts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		st := memstore.New()
		svc := catalog.NewService(st)
		
		for range rapid.IntRange(0, 3).Draw(t, "authors") {
			if _, err := st.Authors().Create(ctx, models.Author{FirstName: "a", FamilyName: "b"}); err != nil {
				t.Fatal(err)
			}
		}
		for range rapid.IntRange(0, 3).Draw(t, "genres") {
			if _, err := st.Genres().Create(ctx, models.Genre{Name: "g"}); err != nil {
				t.Fatal(err)
			}
		}
		for range rapid.IntRange(0, 3).Draw(t, "books") {
			if _, err := st.Books().Create(ctx, models.Book{Title: "t"}); err != nil {
				t.Fatal(err)
			}
		}
		for range rapid.IntRange(0, 6).Draw(t, "instances") {
			status := rapid.SampledFrom(models.Statuses).Draw(t, "status")
			if _, err := st.BookInstances().Create(ctx, models.BookInstance{Status: status}); err != nil {
				t.Fatal(err)
			}
		}

		got, err := svc.Summary(ctx)
		if err != nil {
			t.Fatal(err)
		}
		count := func(n int, err error) int {
			if err != nil {
				t.Fatal(err)
			}
			return n
		}
		want := catalog.Summary{
			BookCount:              count(st.Books().Count(ctx, catalog.Filter{})),
			BookInstanceCount:      count(st.BookInstances().Count(ctx, catalog.Filter{})),
			AvailableInstanceCount: count(st.BookInstances().Count(ctx, catalog.Where(models.FieldStatus, string(models.StatusAvailable)))),
			AuthorCount:            count(st.Authors().Count(ctx, catalog.Filter{})),
			GenreCount:             count(st.Genres().Count(ctx, catalog.Filter{})),
		}
		if got != want {
			t.Fatalf("summary %+v != counts %+v", got, want)
		}
	})
}
