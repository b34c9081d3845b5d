package domain

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestProfileCreate(t *testing.T) {
	t.Parallel()

	store := newFakeProfileStore()
	service := NewProfileService(store, fixedClock, sequentialIDs("prof"))

	profile, err := service.Create(context.Background(), CreateProfileInput{
		Name:     "Riley Chen",
		Username: "Riley_C",
		Dept:     "Design",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if profile.ID != "prof-1" {
		t.Errorf("id = %q, want prof-1", profile.ID)
	}
	if profile.Username != "riley_c" {
		t.Errorf("username = %q, want lowercased riley_c", profile.Username)
	}
	if !profile.CreatedAt.Equal(fixedClock()) {
		t.Errorf("created at = %v, want %v", profile.CreatedAt, fixedClock())
	}
}

func TestProfileCreateKeepsProvidedID(t *testing.T) {
	t.Parallel()

	service := NewProfileService(newFakeProfileStore(), fixedClock, sequentialIDs("prof"))
	profile, err := service.Create(context.Background(), CreateProfileInput{
		ID:       "auth-uid-42",
		Name:     "Riley Chen",
		Username: "riley",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if profile.ID != "auth-uid-42" {
		t.Errorf("id = %q, want auth-uid-42", profile.ID)
	}
}

func TestProfileCreateValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input CreateProfileInput
	}{
		{name: "missing name", input: CreateProfileInput{Username: "riley"}},
		{name: "short username", input: CreateProfileInput{Name: "Riley", Username: "ab"}},
		{name: "invalid characters", input: CreateProfileInput{Name: "Riley", Username: "riley chen"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			service := NewProfileService(newFakeProfileStore(), fixedClock, sequentialIDs("prof"))
			_, err := service.Create(context.Background(), tc.input)
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("Create() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestProfileUsernameAvailable(t *testing.T) {
	t.Parallel()

	store := newFakeProfileStore(Profile{ID: "prof-1", Name: "Riley", Username: "riley"})
	service := NewProfileService(store, fixedClock, sequentialIDs("prof"))

	available, err := service.UsernameAvailable(context.Background(), "Riley")
	if err != nil {
		t.Fatalf("UsernameAvailable() error = %v", err)
	}
	if available {
		t.Error("taken username reported available")
	}

	available, err = service.UsernameAvailable(context.Background(), "someone_else")
	if err != nil {
		t.Fatalf("UsernameAvailable() error = %v", err)
	}
	if !available {
		t.Error("free username reported taken")
	}
}

func TestProfileUpdate(t *testing.T) {
	t.Parallel()

	store := newFakeProfileStore(Profile{ID: "prof-1", Name: "Riley", Username: "riley", Dept: "Design"})
	service := NewProfileService(store, fixedClock, sequentialIDs("prof"))

	dept := "Engineering"
	profile, err := service.Update(context.Background(), "prof-1", UpdateProfileInput{Dept: &dept})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if profile.Dept != "Engineering" {
		t.Errorf("dept = %q, want Engineering", profile.Dept)
	}
	if profile.Username != "riley" {
		t.Errorf("untouched username changed: %q", profile.Username)
	}
}

func TestProfileAddConnection(t *testing.T) {
	t.Parallel()

	store := newFakeProfileStore(
		Profile{ID: "prof-1", Name: "Riley", Username: "riley"},
		Profile{ID: "prof-2", Name: "Sam", Username: "sam"},
	)
	service := NewProfileService(store, fixedClock, sequentialIDs("prof"))

	if err := service.AddConnection(context.Background(), "prof-1", "prof-2"); err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}
	if !slices.Contains(store.met["prof-1"], "prof-2") || !slices.Contains(store.met["prof-2"], "prof-1") {
		t.Errorf("connection not recorded on both sides: %v", store.met)
	}

	// Re-adding is a no-op.
	if err := service.AddConnection(context.Background(), "prof-1", "prof-2"); err != nil {
		t.Fatalf("repeat AddConnection() error = %v", err)
	}
	if len(store.met["prof-1"]) != 1 {
		t.Errorf("duplicate connection recorded: %v", store.met["prof-1"])
	}

	if err := service.AddConnection(context.Background(), "prof-1", "prof-1"); err == nil {
		t.Error("self connection accepted")
	}
}
