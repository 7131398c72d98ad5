// Package dbtypes holds the document types stored in Firestore.
package dbtypes

import "time"

// User represents a person registered and interacting with the application.
//
// Users are provisioned by the identity provider; this application never
// creates them, it only looks them up (currently only by email, when a
// gallery is shared).
type User struct {
	ID    string `firestore:"id"`
	Email string `firestore:"email"`
}

// Gallery is a named container of images belonging to a single user.
type Gallery struct {
	ID           string `firestore:"id" json:"id"`
	UserID       string `firestore:"user_id" json:"user_id"`
	Name         string `firestore:"name" json:"name"`
	ThumbnailURL string `firestore:"thumbnail_url" json:"thumbnail_url"`
}

// Image records one uploaded image.
//
// The same document is written to two places: the flat "images" collection,
// keyed by content hash (the cross-gallery duplicate index), and the owning
// gallery's "images" sub-collection, keyed by an auto-assigned ID.
type Image struct {
	ID          string    `firestore:"id" json:"id"`
	Hash        string    `firestore:"hash" json:"hash"`
	GalleryID   string    `firestore:"gallery_id" json:"gallery_id"`
	StoragePath string    `firestore:"storage_path" json:"storage_path"`
	UploadedAt  time.Time `firestore:"uploaded_at" json:"uploaded_at"`
}
