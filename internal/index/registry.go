package index

import (
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/reconcile"
	"github.com/Aman-CERP/clausecheck/internal/search"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// Reference holds the read-only handles of one contract type's reference
// library.
type Reference struct {
	ContractType string

	// Units serves reference units and their stored embeddings. It may be
	// shared between contract types.
	Units  store.UnitStore
	Dense  search.DenseLookup
	Sparse search.SparseLookup

	// Parents are the reference sections with their units, ordered by
	// article number.
	Parents []reconcile.Parent

	closers []io.Closer
}

// Embeddings returns the stored body embeddings of reference units.
func (r *Reference) Embeddings() reconcile.EmbeddingSource {
	return reconcile.StoreEmbeddings{Store: r.Units, Field: store.FieldBody}
}

// Registry maps contract types to their reference indices. It is filled
// once at startup, then frozen; after Freeze it is read-only and safe for
// concurrent Get without locking.
type Registry struct {
	mu      sync.RWMutex
	refs    map[string]*Reference
	frozen  atomic.Bool
	closers []io.Closer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{refs: make(map[string]*Reference)}
}

// Register adds the reference for a contract type, replacing any earlier
// one. It fails once the registry is frozen.
func (r *Registry) Register(ref *Reference) error {
	if ref == nil {
		return cerrors.ValidationError("reference is nil", nil)
	}
	if err := ValidateContractType(ref.ContractType); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return cerrors.New(cerrors.ErrCodeRegistryFrozen,
			"cannot register "+ref.ContractType+": registry is frozen", nil)
	}
	r.refs[ref.ContractType] = ref
	return nil
}

// Own hands c to the registry to be closed by Close. Used for resources
// shared between references.
func (r *Registry) Own(c io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, c)
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Get returns the reference for contractType.
func (r *Registry) Get(contractType string) (*Reference, error) {
	var (
		ref *Reference
		ok  bool
	)
	if r.frozen.Load() {
		ref, ok = r.refs[contractType]
	} else {
		r.mu.RLock()
		ref, ok = r.refs[contractType]
		r.mu.RUnlock()
	}

	if !ok {
		return nil, cerrors.New(cerrors.ErrCodeUnknownContractType,
			"unknown contract type: "+contractType, nil).
			WithSuggestion("index a reference document of this type with 'clausecheck index'")
	}
	return ref, nil
}

// ContractTypes returns the registered contract types, sorted.
func (r *Registry) ContractTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.refs))
	for ct := range r.refs {
		types = append(types, ct)
	}
	sort.Strings(types)
	return types
}

// Close closes every reference's resources, then the shared ones.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, ref := range r.refs {
		for _, c := range ref.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		ref.closers = nil
	}
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
