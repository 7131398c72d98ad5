// Package webui renders the HTML pages of the application.
package webui

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"

	"photoshelf/authn"
	"photoshelf/dbtypes"
	"photoshelf/webui/uitemplates"

	"github.com/golang/glog"
)

// Store is the slice of dblayer.DB the UI needs.
type Store interface {
	ListOwnedGalleries(ctx context.Context, userID string) ([]*dbtypes.Gallery, error)
	ListSharedGalleries(ctx context.Context, userID string) ([]*dbtypes.Gallery, error)
}

type WebUI struct {
	store    Store
	verifier authn.Verifier
}

func New(store Store, verifier authn.Verifier) *WebUI {
	return &WebUI{
		store:    store,
		verifier: verifier,
	}
}

func (u *WebUI) Register(m *http.ServeMux) {
	m.HandleFunc("GET /{$}", u.homeHandler)
}

// loggedInIdentity loads the identity asserted by the token cookie in the
// request, if there is one.  Unlike the API, the UI treats a missing or
// stale token as "not logged in" rather than an error.
func (u *WebUI) loggedInIdentity(ctx context.Context, r *http.Request) *authn.Identity {
	var tokenCookie *http.Cookie
	for _, cookie := range r.Cookies() {
		if cookie.Name == "token" {
			tokenCookie = cookie
		}
	}
	if tokenCookie == nil {
		glog.Infof("No logged-in user because there was no token cookie.")
		return nil
	}

	identity, err := u.verifier.Verify(ctx, tokenCookie.Value)
	if err != nil {
		glog.Infof("No logged-in user because the token cookie didn't verify: %v", err)
		return nil
	}

	return identity
}

func galleryImagesLink(galleryID string) string {
	link := &url.URL{
		Path: "/galleries/" + url.PathEscape(galleryID) + "/images/",
	}
	return link.String()
}

// homeHandler renders the home page.
func (u *WebUI) homeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := &uitemplates.HomeParams{}

	identity := u.loggedInIdentity(ctx, r)
	if identity != nil {
		params.LoggedIn = true

		owned, err := u.store.ListOwnedGalleries(ctx, identity.UserID)
		if err != nil {
			glog.Errorf("Error while listing galleries owned by user %s: %v", identity.UserID, err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}
		for _, gallery := range owned {
			params.OwnedGalleries = append(params.OwnedGalleries, uitemplates.HomeGallery{
				Name:       gallery.Name,
				ImagesLink: galleryImagesLink(gallery.ID),
			})
		}

		shared, err := u.store.ListSharedGalleries(ctx, identity.UserID)
		if err != nil {
			glog.Errorf("Error while listing galleries shared with user %s: %v", identity.UserID, err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}
		for _, gallery := range shared {
			params.SharedGalleries = append(params.SharedGalleries, uitemplates.HomeGallery{
				Name:       gallery.Name,
				ImagesLink: galleryImagesLink(gallery.ID),
			})
		}
	}

	content := bytes.Buffer{}
	if err := uitemplates.HomeTemplate.Execute(&content, params); err != nil {
		glog.Errorf("Error while executing template: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if _, err := io.Copy(w, &content); err != nil {
		// It's too late to write an error to the HTTP response.
		glog.Errorf("Error while writing output: %v", err)
		return
	}
}
