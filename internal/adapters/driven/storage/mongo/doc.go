// Package mongo implements the document, blob and progress stores on
// MongoDB and GridFS. One Store owns the client; the per-interface
// stores are thin views over its collections.
package mongo
