package tontine

import (
	"context"
	"sync/atomic"
	"testing"
)

type countingHasher struct {
	plainHasher
	hashes   atomic.Int64
	compares atomic.Int64
}

func (hasher *countingHasher) Hash(password string) (string, error) {
	hasher.hashes.Add(1)
	return hasher.plainHasher.Hash(password)
}

func (hasher *countingHasher) Compare(hash string, password string) error {
	hasher.compares.Add(1)
	return hasher.plainHasher.Compare(hash, password)
}

func TestRegisterRejectsDuplicateEmail(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	mustRegister(test, service, organizerEmail, RoleOrganizer)

	registration, err := NewRegistration("Diop", "Awa", "  Organizer@Example.com ", "secret-pass", "", "participant")
	if err != nil {
		test.Fatalf("registration: %v", err)
	}
	_, err = service.Register(context.Background(), registration)
	expectError(test, err, ErrEmailTaken)
}

func TestRegisterChecksEmailBeforeHashing(test *testing.T) {
	test.Parallel()
	hasher := &countingHasher{}
	service := mustNewService(test, newStubStore(), WithPasswordHasher(hasher))
	mustRegister(test, service, organizerEmail, RoleOrganizer)

	registration, err := NewRegistration("Diop", "Awa", organizerEmail, "secret-pass", "", "participant")
	if err != nil {
		test.Fatalf("registration: %v", err)
	}
	_, err = service.Register(context.Background(), registration)
	expectError(test, err, ErrEmailTaken)
	if hashes := hasher.hashes.Load(); hashes != 1 {
		test.Fatalf("expected 1 hash, got %d", hashes)
	}
}

func TestAuthenticateUnknownEmailStillCompares(test *testing.T) {
	test.Parallel()
	hasher := &countingHasher{}
	service := mustNewService(test, newStubStore(), WithPasswordHasher(hasher))
	mustRegister(test, service, organizerEmail, RoleOrganizer)
	ctx := context.Background()

	for attempt := 0; attempt < 2; attempt++ {
		_, err := service.Authenticate(ctx, "ghost@example.com", "secret-pass")
		expectError(test, err, ErrInvalidCredentials)
	}
	if compares := hasher.compares.Load(); compares != 2 {
		test.Fatalf("expected 2 compares, got %d", compares)
	}
	// One hash for the registration, one for the shared placeholder.
	if hashes := hasher.hashes.Load(); hashes != 2 {
		test.Fatalf("expected 2 hashes, got %d", hashes)
	}

	_, err := service.Authenticate(ctx, organizerEmail, "secret-pass")
	if err != nil {
		test.Fatalf("authenticate: %v", err)
	}
}

func TestAuthenticate(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	registered := mustRegister(test, service, organizerEmail, RoleOrganizer)
	ctx := context.Background()

	testCases := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: "ORGANIZER@example.com", password: "secret-pass"},
		{name: "wrong password", email: organizerEmail, password: "nope-nope", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", password: "secret-pass", wantErr: ErrInvalidCredentials},
		{name: "malformed email", email: "not-an-email", password: "secret-pass", wantErr: ErrInvalidCredentials},
	}
	for _, testCase := range testCases {
		user, err := service.Authenticate(ctx, testCase.email, testCase.password)
		if testCase.wantErr != nil {
			if err != testCase.wantErr {
				test.Fatalf("%s: expected %v, got %v", testCase.name, testCase.wantErr, err)
			}
			continue
		}
		if err != nil {
			test.Fatalf("%s: unexpected error %v", testCase.name, err)
		}
		if user.ID != registered.ID {
			test.Fatalf("%s: expected user %d, got %d", testCase.name, registered.ID, user.ID)
		}
	}
}

func TestNewRegistrationValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		last     string
		first    string
		email    string
		password string
		role     string
		wantErr  error
	}{
		{name: "missing last name", last: " ", first: "Awa", email: firstMemberEmail, password: "secret-pass", role: "participant", wantErr: ErrInvalidName},
		{name: "bad email", last: "Diop", first: "Awa", email: "awa", password: "secret-pass", role: "participant", wantErr: ErrInvalidEmail},
		{name: "short password", last: "Diop", first: "Awa", email: firstMemberEmail, password: "123", role: "participant", wantErr: ErrInvalidPassword},
		{name: "unknown role", last: "Diop", first: "Awa", email: firstMemberEmail, password: "secret-pass", role: "admin", wantErr: ErrInvalidRole},
	}
	for _, testCase := range testCases {
		_, err := NewRegistration(testCase.last, testCase.first, testCase.email, testCase.password, "", testCase.role)
		expectError(test, err, testCase.wantErr)
	}

	registration, err := NewRegistration(" Diop ", "Awa", firstMemberEmail, "secret-pass", " 771234567 ", "organisateur")
	if err != nil {
		test.Fatalf("legacy role: %v", err)
	}
	if registration.Role != RoleOrganizer || registration.LastName != "Diop" || registration.Phone != "771234567" {
		test.Fatalf("unexpected registration: %+v", registration)
	}
}

func TestBcryptHasherRoundTrip(test *testing.T) {
	test.Parallel()
	hasher := NewBcryptHasher(4)
	hash, err := hasher.Hash("secret-pass")
	if err != nil {
		test.Fatalf("hash: %v", err)
	}
	if err := hasher.Compare(hash, "secret-pass"); err != nil {
		test.Fatalf("compare: %v", err)
	}
	expectError(test, hasher.Compare(hash, "other-pass"), ErrInvalidCredentials)
}
