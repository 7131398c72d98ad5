// Package dblayer packages up most actual firestore accesses.
package dblayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"photoshelf/dbtypes"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type DB struct {
	firestoreClient *firestore.Client
}

func New(firestoreClient *firestore.Client) *DB {
	return &DB{
		firestoreClient: firestoreClient,
	}
}

var (
	ErrGalleryNotFound = errors.New("gallery not found")
	ErrUserNotFound    = errors.New("user with the provided email does not exist")
	ErrDuplicateImage  = errors.New("image already exists")
)

// CreateGallery inserts a new gallery document owned by ownerID and returns
// its store-assigned ID.  An empty name is accepted.
func (db *DB) CreateGallery(ctx context.Context, ownerID, name string) (string, error) {
	newGalleryRef := db.firestoreClient.Collection("galleries").NewDoc()
	gallery := &dbtypes.Gallery{
		ID:     newGalleryRef.ID,
		UserID: ownerID,
		Name:   name,
	}
	if _, err := newGalleryRef.Create(ctx, gallery); err != nil {
		return "", fmt.Errorf("while creating gallery: %w", err)
	}
	return newGalleryRef.ID, nil
}

func (db *DB) GetGallery(ctx context.Context, galleryID string) (*dbtypes.Gallery, error) {
	galleryDocSnap, err := db.firestoreClient.Collection("galleries").Doc(galleryID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrGalleryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("while retrieving gallery %s: %w", galleryID, err)
	}

	gallery := &dbtypes.Gallery{}
	if err := galleryDocSnap.DataTo(gallery); err != nil {
		return nil, fmt.Errorf("while unmarshaling gallery %s: %w", galleryID, err)
	}
	gallery.ID = galleryDocSnap.Ref.ID

	return gallery, nil
}

// ListOwnedGalleries returns all galleries whose user_id equals userID, in
// store order (no explicit sort, no pagination).
func (db *DB) ListOwnedGalleries(ctx context.Context, userID string) ([]*dbtypes.Gallery, error) {
	var galleries []*dbtypes.Gallery

	galleryIter := db.firestoreClient.Collection("galleries").Where("user_id", "==", userID).Documents(ctx)
	defer galleryIter.Stop()
	for {
		gallerySnapshot, err := galleryIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating galleries owned by user %s: %w", userID, err)
		}

		gallery := &dbtypes.Gallery{}
		if err := gallerySnapshot.DataTo(gallery); err != nil {
			return nil, fmt.Errorf("while unmarshaling gallery %s: %w", gallerySnapshot.Ref.ID, err)
		}
		gallery.ID = gallerySnapshot.Ref.ID
		galleries = append(galleries, gallery)
	}

	return galleries, nil
}

// ListSharedGalleries returns the denormalized gallery copies under
// users/{userID}/shared_galleries.
func (db *DB) ListSharedGalleries(ctx context.Context, userID string) ([]*dbtypes.Gallery, error) {
	var galleries []*dbtypes.Gallery

	sharedIter := db.firestoreClient.Collection("users").Doc(userID).Collection("shared_galleries").Documents(ctx)
	defer sharedIter.Stop()
	for {
		sharedSnapshot, err := sharedIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating galleries shared with user %s: %w", userID, err)
		}

		gallery := &dbtypes.Gallery{}
		if err := sharedSnapshot.DataTo(gallery); err != nil {
			return nil, fmt.Errorf("while unmarshaling shared gallery %s: %w", sharedSnapshot.Ref.ID, err)
		}
		gallery.ID = sharedSnapshot.Ref.ID
		galleries = append(galleries, gallery)
	}

	return galleries, nil
}

// UserByEmail looks up a user document by equality match on email.  Only the
// first match is considered.
func (db *DB) UserByEmail(ctx context.Context, email string) (*dbtypes.User, error) {
	var userSnapshot *firestore.DocumentSnapshot
	userIter := db.firestoreClient.Collection("users").Where("email", "==", email).Documents(ctx)
	defer userIter.Stop()
	for {
		var err error
		userSnapshot, err = userIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while looking up user with email %q: %w", email, err)
		}

		// We only consider a single user.
		break
	}

	if userSnapshot == nil {
		return nil, ErrUserNotFound
	}

	user := &dbtypes.User{}
	if err := userSnapshot.DataTo(user); err != nil {
		return nil, fmt.Errorf("while unmarshaling user %q: %w", email, err)
	}
	user.ID = userSnapshot.Ref.ID

	return user, nil
}

// ShareGallery copies the gallery document verbatim into the recipient's
// shared_galleries sub-collection, keyed by the gallery ID.  Re-sharing the
// same gallery to the same recipient overwrites the previous copy, so the
// operation is idempotent.  The copy is a snapshot: later edits to the
// original gallery do not propagate to it.
func (db *DB) ShareGallery(ctx context.Context, galleryID, recipientID string) error {
	galleryDocSnap, err := db.firestoreClient.Collection("galleries").Doc(galleryID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return ErrGalleryNotFound
	}
	if err != nil {
		return fmt.Errorf("while retrieving gallery %s: %w", galleryID, err)
	}

	sharedRef := db.firestoreClient.Collection("users").Doc(recipientID).Collection("shared_galleries").Doc(galleryID)
	if _, err := sharedRef.Set(ctx, galleryDocSnap.Data()); err != nil {
		return fmt.Errorf("while copying gallery %s to user %s: %w", galleryID, recipientID, err)
	}

	slog.InfoContext(ctx, "Shared gallery",
		slog.String("gallery", galleryID),
		slog.String("recipient", recipientID))

	return nil
}

// ListGalleryImages returns all image records under the gallery's images
// sub-collection, in store order.
func (db *DB) ListGalleryImages(ctx context.Context, galleryID string) ([]*dbtypes.Image, error) {
	var images []*dbtypes.Image

	imageIter := db.firestoreClient.Collection("galleries").Doc(galleryID).Collection("images").Documents(ctx)
	defer imageIter.Stop()
	for {
		imageSnapshot, err := imageIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating images of gallery %s: %w", galleryID, err)
		}

		image := &dbtypes.Image{}
		if err := imageSnapshot.DataTo(image); err != nil {
			return nil, fmt.Errorf("while unmarshaling image %s: %w", imageSnapshot.Ref.ID, err)
		}
		image.ID = imageSnapshot.Ref.ID
		images = append(images, image)
	}

	return images, nil
}

// ImageHashExists reports whether any gallery already holds an image with
// this content hash.  The flat "images" collection is keyed by hash, so this
// is a point read rather than a scan.
func (db *DB) ImageHashExists(ctx context.Context, hash string) (bool, error) {
	_, err := db.firestoreClient.Collection("images").Doc(hash).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("while probing image hash %s: %w", hash, err)
	}
	return true, nil
}

// GalleryImageHashExists reports whether the given gallery's own images
// sub-collection holds an image with this content hash.
func (db *DB) GalleryImageHashExists(ctx context.Context, galleryID, hash string) (bool, error) {
	imageIter := db.firestoreClient.Collection("galleries").Doc(galleryID).Collection("images").
		Where("hash", "==", hash).Limit(1).Documents(ctx)
	defer imageIter.Stop()

	_, err := imageIter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("while probing image hash %s in gallery %s: %w", hash, galleryID, err)
	}
	return true, nil
}

// InsertImage records an uploaded image under its gallery.  A single
// transaction creates the cross-gallery index document images/{hash} (the
// document key is the content hash, so the create fails if any gallery
// already holds these bytes) and the per-gallery sub-collection entry.  Both
// writes commit or neither does, which keeps the duplicate index in sync
// with the galleries and closes the check-then-insert race between
// concurrent uploads of identical bytes.
func (db *DB) InsertImage(ctx context.Context, galleryID, hash, storagePath string) (*dbtypes.Image, error) {
	image := &dbtypes.Image{
		Hash:        hash,
		GalleryID:   galleryID,
		StoragePath: storagePath,
	}

	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		// The transaction function can run multiple times, so the image is
		// re-initialized from scratch on each attempt.
		image.ID = ""
		image.UploadedAt = time.Now().UTC()

		indexRef := db.firestoreClient.Collection("images").Doc(hash)
		_, err := txn.Get(indexRef)
		if err == nil {
			return ErrDuplicateImage
		}
		if status.Code(err) != codes.NotFound {
			return fmt.Errorf("while probing image hash %s: %w", hash, err)
		}

		imageRef := db.firestoreClient.Collection("galleries").Doc(galleryID).Collection("images").NewDoc()
		image.ID = imageRef.ID

		if err := txn.Create(indexRef, image); err != nil {
			return fmt.Errorf("while writing image index entry: %w", err)
		}
		if err := txn.Create(imageRef, image); err != nil {
			return fmt.Errorf("while writing image to gallery %s: %w", galleryID, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateImage) {
			return nil, ErrDuplicateImage
		}
		return nil, fmt.Errorf("while executing upload transaction: %w", err)
	}

	return image, nil
}
