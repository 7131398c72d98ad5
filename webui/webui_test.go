package webui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"photoshelf/authn"
	"photoshelf/dbtypes"
)

type fakeVerifier struct {
	identities map[string]*authn.Identity
}

func (v *fakeVerifier) Verify(ctx context.Context, token string) (*authn.Identity, error) {
	identity, ok := v.identities[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return identity, nil
}

type fakeStore struct {
	owned  []*dbtypes.Gallery
	shared []*dbtypes.Gallery
}

func (s *fakeStore) ListOwnedGalleries(ctx context.Context, userID string) ([]*dbtypes.Gallery, error) {
	return s.owned, nil
}

func (s *fakeStore) ListSharedGalleries(ctx context.Context, userID string) ([]*dbtypes.Gallery, error) {
	return s.shared, nil
}

func TestHomeLoggedOut(t *testing.T) {
	ui := New(&fakeStore{}, &fakeVerifier{})
	m := http.NewServeMux()
	ui.Register(m)

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Bad status from home; got %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "Sign in") {
		t.Errorf("Expected logged-out home page to prompt for sign in")
	}
}

func TestHomeListsGalleries(t *testing.T) {
	store := &fakeStore{
		owned:  []*dbtypes.Gallery{{ID: "gallery-1", UserID: "user-alice", Name: "Street Shots"}},
		shared: []*dbtypes.Gallery{{ID: "gallery-2", UserID: "user-bob", Name: "Bob's Birds"}},
	}
	verifier := &fakeVerifier{identities: map[string]*authn.Identity{
		"token-alice": {UserID: "user-alice", Email: "alice@example.com"},
	}}

	ui := New(store, verifier)
	m := http.NewServeMux()
	ui.Register(m)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: "token-alice"})

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, r)

	if rr.Code != http.StatusOK {
		t.Fatalf("Bad status from home; got %d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "Street Shots") {
		t.Errorf("Expected owned gallery name in home page")
	}
	if !strings.Contains(body, "Bob&#39;s Birds") && !strings.Contains(body, "Bob's Birds") {
		t.Errorf("Expected shared gallery name in home page")
	}
	if !strings.Contains(body, "/galleries/gallery-1/images/") {
		t.Errorf("Expected images link for owned gallery in home page")
	}
}
