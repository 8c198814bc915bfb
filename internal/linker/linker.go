// Package linker implements the artifact linker: it parents uploaded
// artifacts to the session that owns them, surviving the owner's identity
// change from provisional local id to server canonical id.
//
// Artifact references follow the naming convention
// <ownerID>_<unix-ms>.<ext>, where ownerID is either a 13-digit
// provisional id or a canonical UUID.
package linker

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/internal/reconcile"
	"github.com/woodshedapp/woodshed/models"
)

// ErrBadRef is returned for an artifact reference that does not follow the
// <ownerID>_<unix-ms>.<ext> convention.
var ErrBadRef = errors.New("malformed artifact reference")

var refPattern = regexp.MustCompile(`^([^_/]+)_(\d+)\.([A-Za-z0-9]+)$`)

// Linker indexes artifacts by owning session id. Artifacts attached under a
// provisional owner are parked and re-parented exactly once, when the
// reconciler reports the owner's canonical id.
type Linker struct {
	reconciler *reconcile.Reconciler
	logger     *logger.Logger

	mu      sync.Mutex
	byOwner map[string][]models.Artifact
}

// New returns a Linker bound to the given reconciler.
func New(reconciler *reconcile.Reconciler, log *logger.Logger) *Linker {
	return &Linker{
		reconciler: reconciler,
		logger:     log,
		byOwner:    make(map[string][]models.Artifact),
	}
}

// Attach records an artifact under the owner id embedded in its reference.
// If the owner already resolves to a canonical id the artifact is indexed
// under it immediately; otherwise it is parked under the provisional id and
// re-parented when the owner resolves.
func (l *Linker) Attach(ref string) (models.Artifact, error) {
	owner, err := OwnerFromRef(ref)
	if err != nil {
		return models.Artifact{}, err
	}

	artifact := models.Artifact{
		Ref:       ref,
		OwnerID:   owner,
		CreatedAt: time.Now(),
	}

	if mapping, ok := l.reconciler.Lookup(owner); ok && mapping.Resolved() {
		artifact.OwnerID = mapping.CanonicalID
		artifact.Resolved = true
	} else if isCanonical(owner) {
		artifact.Resolved = true
	}

	l.mu.Lock()
	l.byOwner[artifact.OwnerID] = append(l.byOwner[artifact.OwnerID], artifact)
	l.mu.Unlock()

	if !artifact.Resolved {
		l.reconciler.OnResolve(owner, l.reparent)
	}

	l.logger.Debug().
		Str("func", "Linker.Attach").
		Str("ref", ref).
		Str("owner_id", artifact.OwnerID).
		Bool("resolved", artifact.Resolved).
		Msg("artifact attached")
	return artifact, nil
}

// ByOwner returns artifacts indexed under ownerID. After the owner
// resolves, only the canonical id finds them.
func (l *Linker) ByOwner(ownerID string) []models.Artifact {
	l.mu.Lock()
	defer l.mu.Unlock()

	artifacts := l.byOwner[ownerID]
	out := make([]models.Artifact, len(artifacts))
	copy(out, artifacts)
	return out
}

// reparent moves every artifact parked under the mapping's provisional id
// to its canonical id. Already resolved artifacts are never touched.
func (l *Linker) reparent(mapping models.IdentityMapping) {
	l.mu.Lock()

	pending := l.byOwner[mapping.LocalID]
	if len(pending) == 0 {
		l.mu.Unlock()
		return
	}
	delete(l.byOwner, mapping.LocalID)

	moved := 0
	for _, artifact := range pending {
		if artifact.Resolved {
			l.byOwner[artifact.OwnerID] = append(l.byOwner[artifact.OwnerID], artifact)
			continue
		}
		artifact.OwnerID = mapping.CanonicalID
		artifact.Resolved = true
		l.byOwner[mapping.CanonicalID] = append(l.byOwner[mapping.CanonicalID], artifact)
		moved++
	}
	l.mu.Unlock()

	l.logger.Info().
		Str("func", "Linker.reparent").
		Str("local_id", mapping.LocalID).
		Str("canonical_id", mapping.CanonicalID).
		Int("artifacts", moved).
		Msg("artifacts re-parented to canonical owner")
}

// OwnerFromRef extracts the owner id from an artifact reference. The owner
// token must be a 13-digit provisional id or a canonical UUID.
func OwnerFromRef(ref string) (string, error) {
	match := refPattern.FindStringSubmatch(ref)
	if match == nil {
		return "", fmt.Errorf("%w: %q", ErrBadRef, ref)
	}

	owner := match[1]
	if !isProvisional(owner) && !isCanonical(owner) {
		return "", fmt.Errorf("%w: owner token %q", ErrBadRef, owner)
	}
	return owner, nil
}

func isProvisional(id string) bool {
	if len(id) != 13 {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isCanonical(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
