package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPermissionDenied matches every *PermissionError.
var ErrPermissionDenied = errors.New("permission denied")

// Op names a write operation.
type Op string

const (
	OpCreate Op = "create"
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Request describes a write about to be committed.
type Request struct {
	Op         Op
	Collection string
	ID         string
	Auth       string // caller uid; empty for the server itself
	Before     Doc    // nil when the document does not exist yet
	Payload    Doc    // fields for Update, the document for Create/Set
}

// Rules decides whether a write may proceed. A non-nil error denies it.
type Rules func(ctx context.Context, req Request) error

// Chain runs every rule set in order; the first denial wins.
func Chain(rules ...Rules) Rules {
	return func(ctx context.Context, req Request) error {
		for _, r := range rules {
			if err := r(ctx, req); err != nil {
				return err
			}
		}
		return nil
	}
}

// PermissionError reports a denied write with enough detail to debug the rule.
type PermissionError struct {
	Op      Op
	Path    string
	Auth    string
	Payload map[string]any
	Reason  string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s %s: %s", e.Op, e.Path, e.Reason)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

type authKey struct{}

// WithAuth marks ctx as acting on behalf of uid.
func WithAuth(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, authKey{}, uid)
}

// AuthFrom returns the uid set by WithAuth, or "".
func AuthFrom(ctx context.Context) string {
	uid, _ := ctx.Value(authKey{}).(string)
	return uid
}

// Record is the persisted form of a document.
type Record struct {
	Collection string
	ID         string
	Body       []byte
	UpdatedAt  time.Time
}

// Persister makes writes durable. Save and Delete run before the in-memory
// commit; an error aborts the write.
type Persister interface {
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, coll, id string) error
	Load(ctx context.Context) ([]Record, error)
}
