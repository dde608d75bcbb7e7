/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package chatsvc

import (
	"fmt"
	"sync"
	"testing"

	"querychat/internal/database"
)

func TestStoreGetOrCreate(t *testing.T) {
	store := NewStore()

	sess := store.GetOrCreate("alpha")
	if sess.ID != "alpha" {
		t.Errorf("ID = %q, want alpha", sess.ID)
	}

	again := store.GetOrCreate("alpha")
	if sess != again {
		t.Error("GetOrCreate should return the same session for the same ID")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := NewStore()

	if _, ok := store.Get("nope"); ok {
		t.Error("Get should report missing sessions")
	}
}

func TestStoreClear(t *testing.T) {
	store := NewStore()
	store.GetOrCreate("alpha")

	if !store.Clear("alpha") {
		t.Error("Clear should report an existing session")
	}
	if store.Clear("alpha") {
		t.Error("Clear should report a missing session")
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}

func TestSessionLast(t *testing.T) {
	sess := NewStore().GetOrCreate("alpha")

	if sql, result := sess.Last(); sql != "" || result != nil {
		t.Errorf("fresh session Last() = %q, %v, want empty", sql, result)
	}

	sess.mu.Lock()
	sess.LastSQL = "SELECT 1"
	sess.LastResult = &database.Result{TotalRows: 1}
	sess.mu.Unlock()

	sql, result := sess.Last()
	if sql != "SELECT 1" {
		t.Errorf("Last() sql = %q", sql)
	}
	if result == nil || result.TotalRows != 1 {
		t.Errorf("Last() result = %+v", result)
	}
}

func TestStoreConcurrentGetOrCreate(t *testing.T) {
	store := NewStore()

	const goroutines = 32
	sessions := make([]*Session, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = store.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if sessions[i] != sessions[0] {
			t.Fatal("concurrent GetOrCreate returned distinct sessions")
		}
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestStoreIndependentSessions(t *testing.T) {
	store := NewStore()
	for i := 0; i < 5; i++ {
		store.GetOrCreate(fmt.Sprintf("sess-%d", i))
	}
	if store.Len() != 5 {
		t.Errorf("Len = %d, want 5", store.Len())
	}
}
