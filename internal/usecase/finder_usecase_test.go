package usecase

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/moicben/calendar-agent/internal/adapter/flatfile"
	"github.com/moicben/calendar-agent/internal/adapter/memory"
	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
)

const (
	historicPath = "calendars/historic"
	newPath      = "calendars/new"
)

type finderFixture struct {
	fs     afero.Fs
	search *fakeSearch
	lock   *memory.LockRepoImpl
	finder *Finder
}

func newFinderFixture(t *testing.T, page func(req entity.SearchRequest) (*entity.SearchPage, error)) *finderFixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	search := &fakeSearch{page: page}
	lock := memory.NewLockRepo()
	harvester := NewHarvester(search, entity.EndpointSearch, nil, nil)
	finder := NewFinder(
		harvester,
		NewDedupStore(flatfile.NewURLListRepo(fs, historicPath)),
		flatfile.NewURLListRepo(fs, newPath),
		lock,
		FinderOptions{PageSize: 10, Paths: SummaryPaths{New: newPath, Historic: historicPath}},
		nil,
		nil,
	)
	return &finderFixture{fs: fs, search: search, lock: lock, finder: finder}
}

func readLines(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	lines, err := flatfile.ReadLines(fs, path)
	if err != nil {
		t.Fatalf("ReadLines(%s) error = %v", path, err)
	}
	return lines
}

func TestFinderAgenceDesign(t *testing.T) {
	f := newFinderFixture(t, func(req entity.SearchRequest) (*entity.SearchPage, error) {
		if !strings.Contains(req.Query, `"calendly.com/"`) || req.Page > 1 {
			return snippetPage("Agence design, contactez-nous"), nil
		}
		return snippetPage(
			"Prenez rendez-vous https://calendly.com/studio-a/30min",
			"Agence design Lyon, www.calendly.com/studio-b.",
		), nil
	})
	if err := afero.WriteFile(f.fs, historicPath, []byte("calendly.com/studio-a/30min\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, err := f.finder.Run(context.Background(), "agence design", entity.EndpointSearch, 5)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Query != "agence design" || summary.Endpoint != "search" {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Found != 2 || summary.New != 1 {
		t.Fatalf("found = %d new = %d, want 2 and 1", summary.Found, summary.New)
	}
	if summary.Paths.New != newPath || summary.Paths.Historic != historicPath {
		t.Fatalf("paths = %+v", summary.Paths)
	}

	if got := readLines(t, f.fs, newPath); !reflect.DeepEqual(got, []string{"calendly.com/studio-b"}) {
		t.Fatalf("new file = %v", got)
	}
	wantHistoric := []string{"calendly.com/studio-a/30min", "calendly.com/studio-b"}
	if got := readLines(t, f.fs, historicPath); !reflect.DeepEqual(got, wantHistoric) {
		t.Fatalf("historic file = %v, want %v", got, wantHistoric)
	}

	var calendlyPages int
	for _, r := range f.search.requests() {
		if strings.Contains(r.Query, `"calendly.com/"`) {
			calendlyPages++
		}
	}
	if calendlyPages != 2 {
		t.Fatalf("calendly query fetched %d pages, want 2", calendlyPages)
	}
}

func TestFinderSecondRunFindsNothingNew(t *testing.T) {
	f := newFinderFixture(t, func(req entity.SearchRequest) (*entity.SearchPage, error) {
		if req.Page > 1 {
			return snippetPage(), nil
		}
		return snippetPage("cal.com/acme/intro"), nil
	})
	ctx := context.Background()

	first, err := f.finder.Run(ctx, "studio", entity.EndpointSearch, 1)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.New != 1 {
		t.Fatalf("first run new = %d, want 1", first.New)
	}

	second, err := f.finder.Run(ctx, "studio", entity.EndpointSearch, 1)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.New != 0 {
		t.Fatalf("second run new = %d, want 0", second.New)
	}
	if got := readLines(t, f.fs, newPath); len(got) != 0 {
		t.Fatalf("new file = %v, want empty", got)
	}
	if got := readLines(t, f.fs, historicPath); len(got) != 1 {
		t.Fatalf("historic file = %v, want one entry", got)
	}
}

func TestFinderCountsRepeatedHistoricLinkOnce(t *testing.T) {
	f := newFinderFixture(t, func(req entity.SearchRequest) (*entity.SearchPage, error) {
		if !strings.Contains(req.Query, `"calendly.com/"`) || req.Page > 1 {
			return snippetPage(), nil
		}
		return snippetPage("https://calendly.com/studio-a", "www.calendly.com/studio-a/"), nil
	})
	if err := afero.WriteFile(f.fs, historicPath, []byte("calendly.com/studio-a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, err := f.finder.Run(context.Background(), "studio", entity.EndpointSearch, 1)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Found != 1 || summary.New != 0 {
		t.Fatalf("found = %d new = %d, want 1 and 0", summary.Found, summary.New)
	}
	if got := readLines(t, f.fs, historicPath); !reflect.DeepEqual(got, []string{"calendly.com/studio-a"}) {
		t.Fatalf("historic file = %v", got)
	}
}

func TestFinderRefusesConcurrentHarvest(t *testing.T) {
	f := newFinderFixture(t, func(entity.SearchRequest) (*entity.SearchPage, error) {
		return snippetPage(), nil
	})
	release, err := f.lock.Acquire(context.Background(), harvestLockName, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release(context.Background())

	_, err = f.finder.Run(context.Background(), "q", entity.EndpointSearch, 1)
	if !IsLockHeld(err) {
		t.Fatalf("error = %v, want %v", err, repository.ErrLockHeld)
	}
	if n := len(f.search.requests()); n != 0 {
		t.Fatalf("search called %d times while locked", n)
	}
}

func TestFinderRejectsUnknownEndpoint(t *testing.T) {
	f := newFinderFixture(t, func(entity.SearchRequest) (*entity.SearchPage, error) {
		return snippetPage(), nil
	})
	if _, err := f.finder.Run(context.Background(), "q", entity.SearchEndpoint("images"), 1); err == nil {
		t.Fatalf("Run() with endpoint images succeeded")
	}
}
