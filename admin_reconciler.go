package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AdminStore is the slice of the user repository the reconciler needs.
// Insert must fail with ErrDuplicateIdentity when the identity exists and
// must never overwrite an existing row.
type AdminStore interface {
	FindByIdentity(ctx context.Context, identity string) (*User, error)
	Insert(ctx context.Context, user *User) (*User, error)
	UpdateSecretHash(ctx context.Context, identity, hash string) error
	UpdateRole(ctx context.Context, identity string, role Role) error
}

// AdminSpec is the configured target state for the admin account
type AdminSpec struct {
	Identity string
	Secret   string
}

// Enabled reports whether both identity and secret are configured
func (s AdminSpec) Enabled() bool {
	return strings.TrimSpace(s.Identity) != "" && s.Secret != ""
}

// AdminSpecFromConfig reads the admin identity and password from cfg
func AdminSpecFromConfig(cfg Config) AdminSpec {
	return AdminSpec{
		Identity: cfg.GetAdminIdentity(),
		Secret:   cfg.GetAdminPassword(),
	}
}

// ReconcileOutcome is the terminal state of a reconciliation run
type ReconcileOutcome string

const (
	ReconcileSkipped   ReconcileOutcome = "skipped"
	ReconcileCreated   ReconcileOutcome = "created"
	ReconcileConfirmed ReconcileOutcome = "confirmed"
	ReconcileRepaired  ReconcileOutcome = "repaired"
	ReconcileFailed    ReconcileOutcome = "failed"
)

// AdminReconciler drives the user store towards AdminSpec: exactly one
// account at the admin identity, with the admin role, whose hash verifies
// against the configured secret.
type AdminReconciler struct {
	store  AdminStore
	hasher PasswordHasher
	spec   AdminSpec
	logger Logger
	sink   ActivitySink
}

// ReconcilerOption configures an AdminReconciler
type ReconcilerOption func(*AdminReconciler)

// WithReconcilerLogger sets the logger
func WithReconcilerLogger(logger Logger) ReconcilerOption {
	return func(r *AdminReconciler) {
		r.logger = normalizeLogger(logger)
	}
}

// WithReconcilerActivitySink sets the activity sink
func WithReconcilerActivitySink(sink ActivitySink) ReconcilerOption {
	return func(r *AdminReconciler) {
		r.sink = normalizeActivitySink(sink)
	}
}

// NewAdminReconciler returns a reconciler for spec
func NewAdminReconciler(store AdminStore, hasher PasswordHasher, spec AdminSpec, opts ...ReconcilerOption) *AdminReconciler {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	r := &AdminReconciler{
		store:  store,
		hasher: hasher,
		spec:   spec,
		logger: defLogger{},
		sink:   noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Reconcile runs the lookup, create or verify and repair state machine.
//
// Lookup failures are wrapped in ErrRepositoryUnavailable and should stop
// startup. Password repair failures are wrapped in ErrAdminRepairFailed, the
// stored admin still holds the admin role and the caller may keep going. A
// failed role promotion leaves no admin at all and is fatal.
func (r *AdminReconciler) Reconcile(ctx context.Context) (ReconcileOutcome, error) {
	outcome, err := r.reconcile(ctx)

	adminReconciliations.WithLabelValues(string(outcome)).Inc()

	meta := map[string]any{"outcome": string(outcome)}
	if err != nil {
		meta["error"] = err.Error()
	}
	emitActivity(ctx, r.sink, r.logger, ActivityEvent{
		EventType: ActivityEventAdminReconciled,
		Actor:     ActorRef{Type: "system", ID: "admin-reconciler"},
		Identity:  NormalizeIdentity(r.spec.Identity),
		Metadata:  meta,
	})

	return outcome, err
}

func (r *AdminReconciler) reconcile(ctx context.Context) (ReconcileOutcome, error) {
	if !r.spec.Enabled() {
		r.logger.Warn("Admin identity or password not configured, skipping reconciliation")
		return ReconcileSkipped, nil
	}

	identity := NormalizeIdentity(r.spec.Identity)

	existing, err := r.lookup(ctx, identity)
	if err != nil {
		return ReconcileFailed, err
	}

	if existing == nil {
		outcome, err := r.create(ctx, identity)
		if !errors.Is(err, ErrDuplicateIdentity) {
			return outcome, err
		}

		r.logger.Info("Admin account created concurrently, verifying instead", "identity", identity)

		if existing, err = r.lookup(ctx, identity); err != nil {
			return ReconcileFailed, err
		}
		if existing == nil {
			r.logger.Error("Admin account vanished after duplicate insert", "identity", identity, "stage", "create")
			return ReconcileFailed, fmt.Errorf("admin %s: %w", identity, ErrIdentityNotFound)
		}
	}

	return r.verify(ctx, identity, existing)
}

func (r *AdminReconciler) lookup(ctx context.Context, identity string) (*User, error) {
	user, err := r.store.FindByIdentity(ctx, identity)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, ErrIdentityNotFound) {
		return nil, nil
	}

	r.logger.Error("Admin lookup failed", "identity", identity, "stage", "lookup", "error", err)
	if errors.Is(err, ErrRepositoryUnavailable) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
}

func (r *AdminReconciler) create(ctx context.Context, identity string) (ReconcileOutcome, error) {
	hash, err := r.hasher.Hash(r.spec.Secret)
	if err != nil {
		r.logger.Error("Admin password hashing failed", "identity", identity, "stage", "create", "error", err)
		return ReconcileFailed, err
	}

	_, err = r.store.Insert(ctx, &User{
		Email:        identity,
		PasswordHash: hash,
		Role:         RoleAdmin,
		FirstName:    "Admin",
		LastName:     "User",
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return ReconcileFailed, err
		}
		r.logger.Error("Admin account creation failed", "identity", identity, "stage", "create", "error", err)
		return ReconcileFailed, fmt.Errorf("create admin %s: %w", identity, err)
	}

	r.logger.Info("Admin account created", "identity", identity)
	return ReconcileCreated, nil
}

func (r *AdminReconciler) verify(ctx context.Context, identity string, existing *User) (ReconcileOutcome, error) {
	secretOK := r.hasher.Verify(r.spec.Secret, existing.PasswordHash)
	roleOK := existing.Role.IsAdmin()

	if secretOK && roleOK {
		r.logger.Info("Admin account confirmed", "identity", identity)
		return ReconcileConfirmed, nil
	}

	if !secretOK {
		hash, err := r.hasher.Hash(r.spec.Secret)
		if err != nil {
			r.logger.Error("Admin password hashing failed", "identity", identity, "stage", "repair", "error", err)
			return ReconcileFailed, fmt.Errorf("%w: %w", ErrAdminRepairFailed, err)
		}

		if err := r.store.UpdateSecretHash(ctx, identity, hash); err != nil {
			r.logger.Error("Admin password repair failed", "identity", identity, "stage", "repair", "error", err)
			return ReconcileFailed, fmt.Errorf("%w: %w", ErrAdminRepairFailed, err)
		}
	}

	if !roleOK {
		if err := r.store.UpdateRole(ctx, identity, RoleAdmin); err != nil {
			r.logger.Error("Admin role repair failed", "identity", identity, "stage", "repair", "error", err)
			return ReconcileFailed, fmt.Errorf("promote admin %s: %w", identity, err)
		}
	}

	r.logger.Info("Admin account repaired", "identity", identity, "password", !secretOK, "role", !roleOK)
	return ReconcileRepaired, nil
}

// StartupFatal reports whether a Reconcile error must stop the process.
// Only password repair failures are tolerated.
func StartupFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrAdminRepairFailed)
}
