package testsupport

import (
	"context"
	"testing"

	"batchflow/internal/batch"
	"batchflow/internal/config"
	"batchflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewRun inserts a pending run seeded from input.
func NewRun(t testing.TB, st *store.Store, id string, input batch.RunInput) *store.Run {
	t.Helper()

	run := &store.Run{ID: id, State: batch.NewState(input)}
	if err := st.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}

// Input builds a run input with n items per collection, all flags set to
// pass.
func Input(id string, n int) batch.RunInput {
	in := batch.RunInput{ID: id, PassFinal: true}
	for range n {
		in.FirstSteps = append(in.FirstSteps, batch.FirstStepInput{PassPre: true, PassFirst: true})
		in.SecondSteps = append(in.SecondSteps, batch.SecondStepInput{PassPre: true, PassSecond: true})
	}
	return in
}
