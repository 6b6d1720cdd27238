package accounts_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-accounts"
)

const (
	adminEmail  = "admin@example.com"
	adminSecret = "correct-horse-battery"
)

func newReconciler(store accounts.AdminStore, spec accounts.AdminSpec, opts ...accounts.ReconcilerOption) *accounts.AdminReconciler {
	opts = append([]accounts.ReconcilerOption{accounts.WithReconcilerLogger(&captureLogger{})}, opts...)
	return accounts.NewAdminReconciler(store, fastHasher(), spec, opts...)
}

func TestAdminReconciler_Skipped(t *testing.T) {
	tests := []struct {
		name string
		spec accounts.AdminSpec
	}{
		{name: "empty", spec: accounts.AdminSpec{}},
		{name: "no secret", spec: accounts.AdminSpec{Identity: adminEmail}},
		{name: "no identity", spec: accounts.AdminSpec{Secret: adminSecret}},
		{name: "blank identity", spec: accounts.AdminSpec{Identity: "   ", Secret: adminSecret}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockAdminStore{}

			outcome, err := newReconciler(store, tt.spec).Reconcile(context.Background())
			require.NoError(t, err)
			assert.Equal(t, accounts.ReconcileSkipped, outcome)

			store.AssertNotCalled(t, "FindByIdentity", mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		})
	}
}

func TestAdminReconciler_CreatesThenConfirms(t *testing.T) {
	db := newTestDB(t)
	users := accounts.NewUsersRepository(db)
	sink := &captureSink{}

	r := newReconciler(users,
		accounts.AdminSpec{Identity: "  Admin@Example.com ", Secret: adminSecret},
		accounts.WithReconcilerActivitySink(sink),
	)

	outcome, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accounts.ReconcileCreated, outcome)

	stored, err := users.FindByIdentity(context.Background(), adminEmail)
	require.NoError(t, err)
	assert.Equal(t, adminEmail, stored.Email)
	assert.Equal(t, accounts.RoleAdmin, stored.Role)
	assert.True(t, fastHasher().Verify(adminSecret, stored.PasswordHash))
	firstHash := stored.PasswordHash

	for range 2 {
		outcome, err = r.Reconcile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, accounts.ReconcileConfirmed, outcome)
	}

	stored, err = users.FindByIdentity(context.Background(), adminEmail)
	require.NoError(t, err)
	assert.Equal(t, firstHash, stored.PasswordHash, "confirmed runs must not rewrite the hash")
	assert.Equal(t, 1, countUsers(t, db, adminEmail))

	assert.Equal(t, []accounts.ActivityEventType{
		accounts.ActivityEventAdminReconciled,
		accounts.ActivityEventAdminReconciled,
		accounts.ActivityEventAdminReconciled,
	}, sink.Types())
}

func TestAdminReconciler_RepairsPassword(t *testing.T) {
	db := newTestDB(t)
	users := accounts.NewUsersRepository(db)
	seedUser(t, users, adminEmail, "stale-password", accounts.RoleAdmin)

	outcome, err := newReconciler(users, accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret}).
		Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accounts.ReconcileRepaired, outcome)

	stored, err := users.FindByIdentity(context.Background(), adminEmail)
	require.NoError(t, err)
	assert.True(t, fastHasher().Verify(adminSecret, stored.PasswordHash))
	assert.False(t, fastHasher().Verify("stale-password", stored.PasswordHash))
	assert.Equal(t, accounts.RoleAdmin, stored.Role)
	assert.Equal(t, 1, countUsers(t, db, adminEmail))
}

func TestAdminReconciler_PromotesRole(t *testing.T) {
	db := newTestDB(t)
	users := accounts.NewUsersRepository(db)
	seeded := seedUser(t, users, adminEmail, adminSecret, accounts.RoleUser)

	outcome, err := newReconciler(users, accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret}).
		Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accounts.ReconcileRepaired, outcome)

	stored, err := users.FindByIdentity(context.Background(), adminEmail)
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleAdmin, stored.Role)
	assert.Equal(t, seeded.ID, stored.ID)
	assert.Equal(t, seeded.PasswordHash, stored.PasswordHash)
}

func TestAdminReconciler_LookupUnavailable(t *testing.T) {
	store := &MockAdminStore{}
	store.On("FindByIdentity", mock.Anything, adminEmail).Return(nil, errors.New("connection refused"))

	outcome, err := newReconciler(store, accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret}).
		Reconcile(context.Background())

	assert.Equal(t, accounts.ReconcileFailed, outcome)
	assert.ErrorIs(t, err, accounts.ErrRepositoryUnavailable)
	assert.True(t, accounts.StartupFatal(err))
	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestAdminReconciler_InsertFails(t *testing.T) {
	store := &MockAdminStore{}
	store.On("FindByIdentity", mock.Anything, adminEmail).Return(nil, accounts.ErrIdentityNotFound)
	store.On("Insert", mock.Anything, mock.Anything).Return(nil, accounts.ErrRepositoryUnavailable)

	outcome, err := newReconciler(store, accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret}).
		Reconcile(context.Background())

	assert.Equal(t, accounts.ReconcileFailed, outcome)
	assert.ErrorIs(t, err, accounts.ErrRepositoryUnavailable)
	assert.True(t, accounts.StartupFatal(err))
}

func TestAdminReconciler_InsertHashingFails(t *testing.T) {
	store := &MockAdminStore{}
	store.On("FindByIdentity", mock.Anything, adminEmail).Return(nil, accounts.ErrIdentityNotFound)

	r := accounts.NewAdminReconciler(store,
		failingHasher{PasswordHasher: fastHasher(), failHash: true},
		accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret},
		accounts.WithReconcilerLogger(&captureLogger{}),
	)

	outcome, err := r.Reconcile(context.Background())
	assert.Equal(t, accounts.ReconcileFailed, outcome)
	assert.ErrorIs(t, err, accounts.ErrHashing)
	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestAdminReconciler_RepairFailureIsNotFatal(t *testing.T) {
	staleHash, err := fastHasher().Hash("stale-password")
	require.NoError(t, err)

	store := &MockAdminStore{}
	store.On("FindByIdentity", mock.Anything, adminEmail).Return(&accounts.User{
		Email:        adminEmail,
		PasswordHash: staleHash,
		Role:         accounts.RoleAdmin,
	}, nil)
	store.On("UpdateSecretHash", mock.Anything, adminEmail, mock.AnythingOfType("string")).
		Return(errors.New("read only transaction"))

	logger := &captureLogger{}
	outcome, err := newReconciler(store,
		accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret},
		accounts.WithReconcilerLogger(logger),
	).Reconcile(context.Background())

	assert.Equal(t, accounts.ReconcileFailed, outcome)
	assert.ErrorIs(t, err, accounts.ErrAdminRepairFailed)
	assert.False(t, accounts.StartupFatal(err))

	for _, line := range logger.Lines() {
		assert.NotContains(t, line, adminSecret)
	}
}

func TestAdminReconciler_RoleRepairFailure(t *testing.T) {
	hash, err := fastHasher().Hash(adminSecret)
	require.NoError(t, err)

	store := &MockAdminStore{}
	store.On("FindByIdentity", mock.Anything, adminEmail).Return(&accounts.User{
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         accounts.RoleUser,
	}, nil)
	store.On("UpdateRole", mock.Anything, adminEmail, accounts.RoleAdmin).Return(accounts.ErrIdentityNotFound)

	outcome, err := newReconciler(store, accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret}).
		Reconcile(context.Background())

	assert.Equal(t, accounts.ReconcileFailed, outcome)
	assert.ErrorIs(t, err, accounts.ErrIdentityNotFound)
	assert.NotErrorIs(t, err, accounts.ErrAdminRepairFailed)
	// without the admin role nobody can administer accounts
	assert.True(t, accounts.StartupFatal(err))
	store.AssertNotCalled(t, "UpdateSecretHash", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminReconciler_DuplicateInsertFallsBackToVerify(t *testing.T) {
	hash, err := fastHasher().Hash(adminSecret)
	require.NoError(t, err)

	store := &MockAdminStore{}
	store.On("FindByIdentity", mock.Anything, adminEmail).Return(nil, accounts.ErrIdentityNotFound).Once()
	store.On("Insert", mock.Anything, mock.Anything).Return(nil, accounts.ErrDuplicateIdentity).Once()
	store.On("FindByIdentity", mock.Anything, adminEmail).Return(&accounts.User{
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         accounts.RoleAdmin,
	}, nil).Once()

	outcome, err := newReconciler(store, accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret}).
		Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, accounts.ReconcileConfirmed, outcome)
	store.AssertExpectations(t)
}

func TestAdminReconciler_DuplicateThenVanished(t *testing.T) {
	store := &MockAdminStore{}
	store.On("FindByIdentity", mock.Anything, adminEmail).Return(nil, accounts.ErrIdentityNotFound)
	store.On("Insert", mock.Anything, mock.Anything).Return(nil, accounts.ErrDuplicateIdentity)

	outcome, err := newReconciler(store, accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret}).
		Reconcile(context.Background())

	assert.Equal(t, accounts.ReconcileFailed, outcome)
	assert.ErrorIs(t, err, accounts.ErrIdentityNotFound)
}

// barrierStore holds the first lookup of every participant until all of
// them have looked up, forcing both to see an absent admin.
type barrierStore struct {
	accounts.AdminStore
	lookups *sync.WaitGroup
	once    sync.Once
}

func (s *barrierStore) FindByIdentity(ctx context.Context, identity string) (*accounts.User, error) {
	user, err := s.AdminStore.FindByIdentity(ctx, identity)
	s.once.Do(func() {
		s.lookups.Done()
		s.lookups.Wait()
	})
	return user, err
}

func TestAdminReconciler_ConcurrentInstances(t *testing.T) {
	db := newTestDB(t)
	users := accounts.NewUsersRepository(db)
	spec := accounts.AdminSpec{Identity: adminEmail, Secret: adminSecret}

	const instances = 2
	lookups := &sync.WaitGroup{}
	lookups.Add(instances)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []accounts.ReconcileOutcome
		errs     []error
	)

	for range instances {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store := &barrierStore{AdminStore: users, lookups: lookups}
			outcome, err := newReconciler(store, spec).Reconcile(context.Background())

			mu.Lock()
			defer mu.Unlock()
			outcomes = append(outcomes, outcome)
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.ElementsMatch(t, []accounts.ReconcileOutcome{
		accounts.ReconcileCreated,
		accounts.ReconcileConfirmed,
	}, outcomes)

	assert.Equal(t, 1, countUsers(t, db, adminEmail))

	stored, err := users.FindByIdentity(context.Background(), adminEmail)
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleAdmin, stored.Role)
	assert.True(t, fastHasher().Verify(adminSecret, stored.PasswordHash))
}

func TestAdminSpecFromConfig(t *testing.T) {
	spec := accounts.AdminSpecFromConfig(staticConfig{admin: adminEmail, password: adminSecret})
	assert.Equal(t, adminEmail, spec.Identity)
	assert.Equal(t, adminSecret, spec.Secret)
	assert.True(t, spec.Enabled())

	assert.False(t, accounts.AdminSpecFromConfig(staticConfig{}).Enabled())
}

func TestStartupFatal(t *testing.T) {
	assert.False(t, accounts.StartupFatal(nil))
	assert.True(t, accounts.StartupFatal(accounts.ErrRepositoryUnavailable))
	assert.False(t, accounts.StartupFatal(accounts.ErrAdminRepairFailed))
}
