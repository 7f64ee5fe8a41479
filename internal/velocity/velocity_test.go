package velocity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prudenterpo/fraudshield/internal/domain"
)

type fakeRepo struct {
	domain.Repository
	count    int64
	err      error
	gotSince time.Time
	gotCust  string
}

func (f *fakeRepo) CountCustomerTransactionsSince(_ context.Context, customerID string, since time.Time) (int64, error) {
	f.gotCust = customerID
	f.gotSince = since
	return f.count, f.err
}

type fakeCache struct {
	domain.Cache
	incremented []string
	err         error
}

func (f *fakeCache) IncrementCounter(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.incremented = append(f.incremented, key)
	return int64(len(f.incremented)), f.err
}

func TestCountUsesRepositoryWindow(t *testing.T) {
	repo := &fakeRepo{count: 7}
	svc := NewService(repo, nil)

	before := time.Now().Add(-300 * time.Second)
	got, err := svc.Count(context.Background(), "cust-1", 300)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if got != 7 {
		t.Errorf("count = %d, want 7", got)
	}
	if repo.gotCust != "cust-1" {
		t.Errorf("customerID = %s, want cust-1", repo.gotCust)
	}
	// since must fall inside the requested window.
	if repo.gotSince.Before(before) || repo.gotSince.After(time.Now()) {
		t.Errorf("since = %v outside expected window", repo.gotSince)
	}
}

func TestCountValidation(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)
	if _, err := svc.Count(context.Background(), "", 60); err == nil {
		t.Error("expected error for empty customerID")
	}

	svc = NewService(nil, nil)
	if _, err := svc.Count(context.Background(), "cust-1", 60); err == nil {
		t.Error("expected error with no repository")
	}
}

func TestCountPropagatesRepositoryError(t *testing.T) {
	repoErr := errors.New("db down")
	svc := NewService(&fakeRepo{err: repoErr}, nil)

	if _, err := svc.Count(context.Background(), "cust-1", 60); !errors.Is(err, repoErr) {
		t.Errorf("err = %v, want wrapped %v", err, repoErr)
	}
}

func TestObserveIncrementsEachWindow(t *testing.T) {
	cache := &fakeCache{}
	svc := NewService(&fakeRepo{}, cache)

	err := svc.Observe(context.Background(), "cust-1", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	want := []string{"velocity:cust-1:60", "velocity:cust-1:3600"}
	if len(cache.incremented) != len(want) {
		t.Fatalf("incremented %v, want %v", cache.incremented, want)
	}
	for i, key := range want {
		if cache.incremented[i] != key {
			t.Errorf("key[%d] = %s, want %s", i, cache.incremented[i], key)
		}
	}
}

func TestObserveWithoutCacheIsNoop(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)
	if err := svc.Observe(context.Background(), "cust-1", time.Minute); err != nil {
		t.Fatalf("Observe without cache: %v", err)
	}
}
