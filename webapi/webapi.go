// Package webapi serves the photo-gallery HTTP API.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"photoshelf/authn"
	"photoshelf/blobstore"
	"photoshelf/dblayer"
	"photoshelf/dbtypes"
	"photoshelf/imagehash"
	"photoshelf/mailer"

	"github.com/golang/glog"
)

// Store is the slice of dblayer.DB the API needs.  Handlers receive it as an
// explicit dependency so tests can run against a fake.
type Store interface {
	CreateGallery(ctx context.Context, ownerID, name string) (string, error)
	GetGallery(ctx context.Context, galleryID string) (*dbtypes.Gallery, error)
	ListOwnedGalleries(ctx context.Context, userID string) ([]*dbtypes.Gallery, error)
	ListSharedGalleries(ctx context.Context, userID string) ([]*dbtypes.Gallery, error)
	UserByEmail(ctx context.Context, email string) (*dbtypes.User, error)
	ShareGallery(ctx context.Context, galleryID, recipientID string) error
	ListGalleryImages(ctx context.Context, galleryID string) ([]*dbtypes.Image, error)
	ImageHashExists(ctx context.Context, hash string) (bool, error)
	GalleryImageHashExists(ctx context.Context, galleryID, hash string) (bool, error)
	InsertImage(ctx context.Context, galleryID, hash, storagePath string) (*dbtypes.Image, error)
}

// maxUploadBytes bounds how much of a multipart upload is held in memory
// before spilling to disk.
const maxUploadBytes = 32 << 20

type WebAPI struct {
	store    Store
	verifier authn.Verifier
	blobs    blobstore.BlobStore
	mailer   mailer.Mailer
}

func New(store Store, verifier authn.Verifier, blobs blobstore.BlobStore, mailer mailer.Mailer) *WebAPI {
	return &WebAPI{
		store:    store,
		verifier: verifier,
		blobs:    blobs,
		mailer:   mailer,
	}
}

func (a *WebAPI) Register(m *http.ServeMux) {
	m.HandleFunc("POST /create_gallery/{$}", a.createGalleryHandler)
	m.HandleFunc("GET /galleries/{$}", a.listGalleriesHandler)
	m.HandleFunc("GET /galleries/{gallery_id}/images/{$}", a.listGalleryImagesHandler)
	m.HandleFunc("POST /galleries/{gallery_id}/share/{$}", a.shareGalleryHandler)
	m.HandleFunc("POST /upload_image/{$}", a.uploadImageHandler)
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// It's too late to write an error to the HTTP response.
		glog.Errorf("Error while writing output: %v", err)
	}
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, detailResponse{Detail: detail})
}

// verifiedIdentity runs the auth guard: it extracts the "token" cookie and
// verifies it, answering 401 itself when either step fails.  Every route
// goes through this guard, including uploads.  On failure no store call has
// been made yet.
func (a *WebAPI) verifiedIdentity(w http.ResponseWriter, r *http.Request) *authn.Identity {
	var tokenCookie *http.Cookie
	for _, cookie := range r.Cookies() {
		if cookie.Name == "token" {
			tokenCookie = cookie
		}
	}
	if tokenCookie == nil {
		writeDetail(w, http.StatusUnauthorized, "Missing token")
		return nil
	}

	identity, err := a.verifier.Verify(r.Context(), tokenCookie.Value)
	if err != nil {
		glog.Infof("Rejecting request with unverifiable token: %v", err)
		writeDetail(w, http.StatusUnauthorized, err.Error())
		return nil
	}

	return identity
}

type createGalleryResponse struct {
	ID string `json:"id"`
}

func (a *WebAPI) createGalleryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := a.verifiedIdentity(w, r)
	if identity == nil {
		return
	}

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		writeDetail(w, http.StatusBadRequest, "Malformed form data")
		return
	}

	// An empty name is accepted; only the field's presence in the form is
	// required elsewhere in the original UI.
	name := r.PostForm.Get("name")

	galleryID, err := a.store.CreateGallery(ctx, identity.UserID, name)
	if err != nil {
		glog.Errorf("Error while creating gallery: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	writeJSON(w, http.StatusOK, createGalleryResponse{ID: galleryID})
}

type listGalleriesResponse struct {
	OwnedGalleries  []*dbtypes.Gallery `json:"owned_galleries"`
	SharedGalleries []*dbtypes.Gallery `json:"shared_galleries"`
}

func (a *WebAPI) listGalleriesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := a.verifiedIdentity(w, r)
	if identity == nil {
		return
	}

	owned, err := a.store.ListOwnedGalleries(ctx, identity.UserID)
	if err != nil {
		glog.Errorf("Error while listing galleries owned by user %s: %v", identity.UserID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	shared, err := a.store.ListSharedGalleries(ctx, identity.UserID)
	if err != nil {
		glog.Errorf("Error while listing galleries shared with user %s: %v", identity.UserID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	resp := listGalleriesResponse{
		OwnedGalleries:  owned,
		SharedGalleries: shared,
	}
	if resp.OwnedGalleries == nil {
		resp.OwnedGalleries = []*dbtypes.Gallery{}
	}
	if resp.SharedGalleries == nil {
		resp.SharedGalleries = []*dbtypes.Gallery{}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *WebAPI) listGalleryImagesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := a.verifiedIdentity(w, r)
	if identity == nil {
		return
	}

	galleryID := r.PathValue("gallery_id")

	if _, err := a.store.GetGallery(ctx, galleryID); err != nil {
		if errors.Is(err, dblayer.ErrGalleryNotFound) {
			writeDetail(w, http.StatusNotFound, "Gallery not found")
			return
		}
		glog.Errorf("Error while retrieving gallery %s: %v", galleryID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	images, err := a.store.ListGalleryImages(ctx, galleryID)
	if err != nil {
		glog.Errorf("Error while listing images of gallery %s: %v", galleryID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}
	if images == nil {
		images = []*dbtypes.Image{}
	}

	writeJSON(w, http.StatusOK, images)
}

func (a *WebAPI) shareGalleryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := a.verifiedIdentity(w, r)
	if identity == nil {
		return
	}

	galleryID := r.PathValue("gallery_id")

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		writeDetail(w, http.StatusBadRequest, "Malformed form data")
		return
	}

	email := r.PostForm.Get("email")
	if email == "" {
		writeDetail(w, http.StatusBadRequest, "Missing email")
		return
	}

	gallery, err := a.store.GetGallery(ctx, galleryID)
	if err != nil {
		if errors.Is(err, dblayer.ErrGalleryNotFound) {
			writeDetail(w, http.StatusNotFound, "Gallery not found")
			return
		}
		glog.Errorf("Error while retrieving gallery %s: %v", galleryID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	// Permissions check --- only the owner may share a gallery.
	if gallery.UserID != identity.UserID {
		glog.Errorf("User %s is not allowed to share gallery %s", identity.UserID, galleryID)
		writeDetail(w, http.StatusNotFound, "Gallery not found")
		return
	}

	recipient, err := a.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, dblayer.ErrUserNotFound) {
			writeDetail(w, http.StatusNotFound, "User with the provided email does not exist")
			return
		}
		glog.Errorf("Error while looking up user with email %q: %v", email, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	if err := a.store.ShareGallery(ctx, galleryID, recipient.ID); err != nil {
		glog.Errorf("Error while sharing gallery %s with user %s: %v", galleryID, recipient.ID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	// A failed notification doesn't fail the share.
	if err := a.mailer.SendShareNotification(ctx, recipient.Email, gallery.Name); err != nil {
		glog.Errorf("Error while sending share notification to %q: %v", recipient.Email, err)
	}

	writeDetail(w, http.StatusOK, "Gallery shared successfully")
}

func (a *WebAPI) uploadImageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := a.verifiedIdentity(w, r)
	if identity == nil {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		glog.Errorf("Error while parsing multipart form: %v", err)
		writeDetail(w, http.StatusBadRequest, "Malformed form data")
		return
	}

	galleryID := r.FormValue("gallery_id")
	if galleryID == "" {
		writeDetail(w, http.StatusBadRequest, "Missing gallery_id")
		return
	}

	if _, err := a.store.GetGallery(ctx, galleryID); err != nil {
		if errors.Is(err, dblayer.ErrGalleryNotFound) {
			writeDetail(w, http.StatusNotFound, "Gallery not found")
			return
		}
		glog.Errorf("Error while retrieving gallery %s: %v", galleryID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()

	hash, err := imagehash.ContentHash(file)
	if err != nil {
		glog.Errorf("Error while hashing uploaded file: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	// Friendly pre-checks at both scopes.  The transactional insert below is
	// what actually guarantees uniqueness; these only let the common case
	// fail before bytes are written to the blob store.
	exists, err := a.store.ImageHashExists(ctx, hash)
	if err != nil {
		glog.Errorf("Error while probing image hash %s: %v", hash, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}
	if exists {
		writeDetail(w, http.StatusBadRequest, "Image already exists")
		return
	}

	exists, err = a.store.GalleryImageHashExists(ctx, galleryID, hash)
	if err != nil {
		glog.Errorf("Error while probing image hash %s in gallery %s: %v", hash, galleryID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}
	if exists {
		writeDetail(w, http.StatusBadRequest, "Image already exists in this gallery")
		return
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		glog.Errorf("Error while rewinding uploaded file: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	// Blob writes are keyed by hash, so a concurrent duplicate upload that
	// loses the transaction below has only overwritten the object with
	// identical bytes.
	storagePath, err := a.blobs.Put(ctx, hash, file)
	if err != nil {
		glog.Errorf("Error while storing uploaded file: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	if _, err := a.store.InsertImage(ctx, galleryID, hash, storagePath); err != nil {
		if errors.Is(err, dblayer.ErrDuplicateImage) {
			writeDetail(w, http.StatusBadRequest, "Image already exists")
			return
		}
		glog.Errorf("Error while recording image in gallery %s: %v", galleryID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	writeDetail(w, http.StatusOK, "Image uploaded successfully")
}
