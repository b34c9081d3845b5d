package domain

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/plansocial/plans/internal/platform/id"
)

// Profile is one community member.
type Profile struct {
	ID               string
	Name             string
	Username         string
	Dept             string
	PictureURL       string
	AttendedEventIDs []string
	MetProfileIDs    []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProfileStore is the persistence boundary for profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (Profile, error)
	PutProfile(ctx context.Context, profile Profile) error
	ListProfiles(ctx context.Context, limit int) ([]Profile, error)
	AddAttendedEvent(ctx context.Context, profileID, eventID string) error
	AddMetProfile(ctx context.Context, profileID, otherID string) error
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)

// CreateProfileInput describes one profile creation request.
type CreateProfileInput struct {
	ID         string
	Name       string
	Username   string
	Dept       string
	PictureURL string
}

// UpdateProfileInput carries edits to an existing profile. Nil fields are
// left unchanged.
type UpdateProfileInput struct {
	Name       *string
	Username   *string
	Dept       *string
	PictureURL *string
}

// ProfileService owns profile CRUD and the you-met connection list.
type ProfileService struct {
	store ProfileStore
	clock func() time.Time
	newID func() (string, error)
}

// NewProfileService constructs profile use-cases.
func NewProfileService(store ProfileStore, clock func() time.Time, newID func() (string, error)) *ProfileService {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &ProfileService{store: store, clock: clock, newID: newID}
}

// Create validates and persists one profile. The caller may supply the ID
// when the identity provider assigns it; otherwise one is generated.
func (s *ProfileService) Create(ctx context.Context, input CreateProfileInput) (Profile, error) {
	if s == nil || s.store == nil {
		return Profile{}, ErrStoreNotConfigured
	}
	profile := Profile{
		ID:         strings.TrimSpace(input.ID),
		Name:       strings.TrimSpace(input.Name),
		Username:   strings.ToLower(strings.TrimSpace(input.Username)),
		Dept:       strings.TrimSpace(input.Dept),
		PictureURL: strings.TrimSpace(input.PictureURL),
	}
	if err := validateProfile(profile); err != nil {
		return Profile{}, err
	}
	if profile.ID == "" {
		if s.newID == nil {
			return Profile{}, ErrIDGeneratorNotConfigured
		}
		profileID, err := s.newID()
		if err != nil {
			return Profile{}, err
		}
		profile.ID = profileID
	}
	now := s.clock().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if err := s.store.PutProfile(ctx, profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Get loads one profile.
func (s *ProfileService) Get(ctx context.Context, profileID string) (Profile, error) {
	if s == nil || s.store == nil {
		return Profile{}, ErrStoreNotConfigured
	}
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return Profile{}, &ValidationError{Field: "profile", Reason: "profile id is required"}
	}
	return s.store.GetProfile(ctx, profileID)
}

// List returns up to limit profiles.
func (s *ProfileService) List(ctx context.Context, limit int) ([]Profile, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return s.store.ListProfiles(ctx, limit)
}

// Update applies edits to one profile.
func (s *ProfileService) Update(ctx context.Context, profileID string, input UpdateProfileInput) (Profile, error) {
	if s == nil || s.store == nil {
		return Profile{}, ErrStoreNotConfigured
	}
	profile, err := s.Get(ctx, profileID)
	if err != nil {
		return Profile{}, err
	}
	if input.Name != nil {
		profile.Name = strings.TrimSpace(*input.Name)
	}
	if input.Username != nil {
		profile.Username = strings.ToLower(strings.TrimSpace(*input.Username))
	}
	if input.Dept != nil {
		profile.Dept = strings.TrimSpace(*input.Dept)
	}
	if input.PictureURL != nil {
		profile.PictureURL = strings.TrimSpace(*input.PictureURL)
	}
	if err := validateProfile(profile); err != nil {
		return Profile{}, err
	}
	profile.UpdatedAt = s.clock().UTC()
	if err := s.store.PutProfile(ctx, profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// UsernameAvailable reports whether username is free to claim.
func (s *ProfileService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	if s == nil || s.store == nil {
		return false, ErrStoreNotConfigured
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return false, &ValidationError{Field: "username", Reason: "must be 3-24 lowercase letters, digits, or underscores"}
	}
	_, err := s.store.GetProfileByUsername(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case isNotFound(err):
		return true, nil
	default:
		return false, err
	}
}

// AddConnection records that two profiles met at an event. The connection
// is recorded on both sides; adding an existing connection is a no-op.
func (s *ProfileService) AddConnection(ctx context.Context, profileID, otherID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	profileID = strings.TrimSpace(profileID)
	otherID = strings.TrimSpace(otherID)
	if profileID == "" || otherID == "" {
		return &ValidationError{Field: "profile", Reason: "both profile ids are required"}
	}
	if profileID == otherID {
		return &ValidationError{Field: "profile", Reason: "cannot connect a profile to itself"}
	}
	if err := s.store.AddMetProfile(ctx, profileID, otherID); err != nil {
		return err
	}
	return s.store.AddMetProfile(ctx, otherID, profileID)
}

func validateProfile(profile Profile) error {
	if profile.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if !usernamePattern.MatchString(profile.Username) {
		return &ValidationError{Field: "username", Reason: "must be 3-24 lowercase letters, digits, or underscores"}
	}
	return nil
}
