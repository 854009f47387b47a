package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tidelang/tide"
	"github.com/tidelang/tide/cache"
	"github.com/tidelang/tide/cache/memory"
	"github.com/tidelang/tide/compiler"
)

func testArtifact() *compiler.Artifact {
	return &compiler.Artifact{
		Functions: []*compiler.FuncCode{{
			NumParams: 1,
			Code:      []compiler.Instr{{Op: compiler.OpUndef}, {Op: compiler.OpReturn}},
		}},
	}
}

func TestStore_PutGet(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	key := cache.KeyFor("(a) => a", 64)

	if _, err := s.Get(ctx, key); !errors.Is(err, tide.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}

	art := testArtifact()
	if err := s.Put(ctx, key, art); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != art {
		t.Error("expected the stored artifact pointer back")
	}
}

func TestStore_Delete(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	key := cache.KeyFor("(a) => a", 64)

	if err := s.Put(ctx, key, testArtifact()); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, tide.ErrArtifactNotFound) {
		t.Errorf("expected ErrArtifactNotFound after delete, got %v", err)
	}

	// Deleting a missing key is fine.
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}

func TestStore_KeyDependsOnBudget(t *testing.T) {
	a := cache.KeyFor("(a) => a", 64)
	b := cache.KeyFor("(a) => a", 128)
	if a == b {
		t.Error("keys for different stack budgets must differ")
	}
	if a != cache.KeyFor("(a) => a", 64) {
		t.Error("key derivation must be deterministic")
	}
}

func TestStore_Closed(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	key := cache.KeyFor("(a) => a", 64)

	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, tide.ErrCacheClosed) {
		t.Errorf("get after close: expected ErrCacheClosed, got %v", err)
	}
	if err := s.Put(ctx, key, testArtifact()); !errors.Is(err, tide.ErrCacheClosed) {
		t.Errorf("put after close: expected ErrCacheClosed, got %v", err)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	art := testArtifact()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := cache.KeyFor("(a) => a", n)
			_ = s.Put(ctx, key, art)
			_, _ = s.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	if s.Len() != 20 {
		t.Errorf("expected 20 entries, got %d", s.Len())
	}
}
