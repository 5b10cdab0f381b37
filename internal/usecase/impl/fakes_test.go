package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"parkshare/config"
	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/domain/repository"
	"parkshare/internal/domain/service"
	"parkshare/internal/infra/auth"
	"parkshare/internal/infra/signal"
	"parkshare/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- in-memory store ---

type memStore struct {
	mu          sync.Mutex
	accounts    map[uuid.UUID]*entity.Account
	parkings    map[uuid.UUID]*entity.Parking
	occupations map[uuid.UUID]*entity.Occupation
}

func newMemStore() *memStore {
	return &memStore{
		accounts:    map[uuid.UUID]*entity.Account{},
		parkings:    map[uuid.UUID]*entity.Parking{},
		occupations: map[uuid.UUID]*entity.Occupation{},
	}
}

func cloneAccount(a *entity.Account) *entity.Account {
	c := *a
	return &c
}

func cloneParking(p *entity.Parking) *entity.Parking {
	c := *p
	return &c
}

func cloneOccupation(o *entity.Occupation) *entity.Occupation {
	c := *o
	return &c
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := newMemStore()
	for k, v := range s.accounts {
		snap.accounts[k] = cloneAccount(v)
	}
	for k, v := range s.parkings {
		snap.parkings[k] = cloneParking(v)
	}
	for k, v := range s.occupations {
		snap.occupations[k] = cloneOccupation(v)
	}

	return snap
}

func (s *memStore) restore(snap *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts, s.parkings, s.occupations = snap.accounts, snap.parkings, snap.occupations
}

// memTxManager serialises transactions and rolls the store back on error.
type memTxManager struct {
	txMu  sync.Mutex
	store *memStore
}

func (m *memTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(&memFactory{store: m.store}); err != nil {
		m.store.restore(snap)

		return err
	}

	return nil
}

type memFactory struct{ store *memStore }

func (f *memFactory) NewAccountRepository() repository.AccountRepository {
	return &memAccountRepo{store: f.store}
}

func (f *memFactory) NewParkingRepository() repository.ParkingRepository {
	return &memParkingRepo{store: f.store}
}

func (f *memFactory) NewOccupationRepository() repository.OccupationRepository {
	return &memOccupationRepo{store: f.store}
}

// --- accounts ---

type memAccountRepo struct{ store *memStore }

func (r *memAccountRepo) Create(_ context.Context, account *entity.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, a := range r.store.accounts {
		switch {
		case a.Username == account.Username:
			return domainerrors.NewDuplicateKeyError("username")
		case a.Email == account.Email:
			return domainerrors.NewDuplicateKeyError("email")
		case a.Phone == account.Phone:
			return domainerrors.NewDuplicateKeyError("phone")
		}
	}
	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.store.accounts[account.ID] = cloneAccount(account)

	return nil
}

func (r *memAccountRepo) find(match func(*entity.Account) bool) (*entity.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, a := range r.store.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}

	return nil, repository.ErrAccountNotFound
}

func (r *memAccountRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	return r.find(func(a *entity.Account) bool { return a.ID == id })
}

func (r *memAccountRepo) LockByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return r.FindByID(ctx, id)
}

func (r *memAccountRepo) FindByIdentifier(ctx context.Context, identifier string) (*entity.Account, error) {
	if strings.Contains(identifier, "@") {
		return r.FindByEmail(ctx, identifier)
	}

	return r.find(func(a *entity.Account) bool { return a.Username == identifier })
}

func (r *memAccountRepo) FindByEmail(_ context.Context, email string) (*entity.Account, error) {
	return r.find(func(a *entity.Account) bool { return a.Email == strings.ToLower(email) })
}

func (r *memAccountRepo) FindBySecretHash(_ context.Context, purpose entity.SecretPurpose, hash string) (*entity.Account, error) {
	return r.find(func(a *entity.Account) bool {
		s := a.Secret(purpose)
		return !s.IsZero() && s.Hash == hash
	})
}

func (r *memAccountRepo) FindTakenFields(_ context.Context, username, email, phone string) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var taken []string
	for _, a := range r.store.accounts {
		if a.Username == username && !slices.Contains(taken, "username") {
			taken = append(taken, "username")
		}
		if a.Email == email && !slices.Contains(taken, "email") {
			taken = append(taken, "email")
		}
		if a.Phone == phone && !slices.Contains(taken, "phone") {
			taken = append(taken, "phone")
		}
	}

	return taken, nil
}

func (r *memAccountRepo) update(id uuid.UUID, fn func(*entity.Account) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}

	return fn(a)
}

func (r *memAccountRepo) StoreSecret(_ context.Context, id uuid.UUID, purpose entity.SecretPurpose, secret *entity.TransientSecret) error {
	return r.update(id, func(a *entity.Account) error {
		if secret != nil {
			c := *secret
			secret = &c
		}
		a.SetSecret(purpose, secret)

		return nil
	})
}

func (r *memAccountRepo) ConsumeSecret(_ context.Context, id uuid.UUID, purpose entity.SecretPurpose, hash string, now time.Time) error {
	err := r.update(id, func(a *entity.Account) error {
		s := a.Secret(purpose)
		if !s.ActiveAt(now) || s.Hash != hash {
			return repository.ErrSecretMismatch
		}
		a.SetSecret(purpose, nil)

		return nil
	})
	if err == repository.ErrAccountNotFound {
		return repository.ErrSecretMismatch
	}

	return err
}

func (r *memAccountRepo) RegisterPinFailure(_ context.Context, id uuid.UUID, maxAttempts int) (bool, error) {
	cleared := false
	err := r.update(id, func(a *entity.Account) error {
		if a.Pin.IsZero() {
			return nil
		}
		pin := *a.Pin
		pin.FailedAttempts++
		a.Pin = &pin
		if pin.FailedAttempts >= maxAttempts {
			a.Pin = nil
			cleared = true
		}

		return nil
	})

	return cleared, err
}

func (r *memAccountRepo) MarkConfirmed(_ context.Context, id uuid.UUID, emailVerified bool) (bool, error) {
	flipped := false
	err := r.update(id, func(a *entity.Account) error {
		flipped = !a.Confirmed
		a.Confirmed = true
		if emailVerified {
			a.EmailVerified = true
		}

		return nil
	})

	return flipped, err
}

func (r *memAccountRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error {
	return r.update(id, func(a *entity.Account) error {
		a.PasswordHash = passwordHash
		a.PasswordChangedAt = &changedAt

		return nil
	})
}

func (r *memAccountRepo) Deactivate(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(a *entity.Account) error {
		if !a.Active {
			return repository.ErrStateConflict
		}
		a.Active = false
		a.DeactivatedAt = &at

		return nil
	})
}

func (r *memAccountRepo) Reactivate(_ context.Context, id uuid.UUID) (bool, error) {
	reactivated := false
	err := r.update(id, func(a *entity.Account) error {
		reactivated = !a.Active
		a.Active = true
		a.DeactivatedAt = nil

		return nil
	})

	return reactivated, err
}

func (r *memAccountRepo) deleteWhere(id uuid.UUID, cond func(*entity.Account) bool) bool {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.accounts[id]
	if !ok || !cond(a) {
		return false
	}
	delete(r.store.accounts, id)
	for pid, p := range r.store.parkings {
		if p.OwnerID == id {
			delete(r.store.parkings, pid)
		}
	}
	for oid, o := range r.store.occupations {
		if _, parkingLeft := r.store.parkings[o.ParkingID]; o.RenterID == id || !parkingLeft {
			delete(r.store.occupations, oid)
		}
	}

	return true
}

func (r *memAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	if !r.deleteWhere(id, func(*entity.Account) bool { return true }) {
		return repository.ErrAccountNotFound
	}

	return nil
}

func (r *memAccountRepo) DeleteIfUnconfirmed(_ context.Context, id uuid.UUID) (bool, error) {
	return r.deleteWhere(id, func(a *entity.Account) bool { return !a.Confirmed }), nil
}

func (r *memAccountRepo) DeleteIfInactive(_ context.Context, id uuid.UUID) (bool, error) {
	return r.deleteWhere(id, func(a *entity.Account) bool { return !a.Active }), nil
}

func (r *memAccountRepo) listIDs(limit int, match func(*entity.Account) bool) []uuid.UUID {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var ids []uuid.UUID
	for id, a := range r.store.accounts {
		if match(a) && len(ids) < limit {
			ids = append(ids, id)
		}
	}

	return ids
}

func (r *memAccountRepo) ListUnconfirmedBefore(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(limit, func(a *entity.Account) bool { return !a.Confirmed && a.CreatedAt.Before(cutoff) }), nil
}

func (r *memAccountRepo) ListInactiveBefore(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(limit, func(a *entity.Account) bool {
		return !a.Active && a.DeactivatedAt != nil && a.DeactivatedAt.Before(cutoff)
	}), nil
}

// --- parkings ---

type memParkingRepo struct{ store *memStore }

func (r *memParkingRepo) Create(_ context.Context, parking *entity.Parking) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	parking.ID = uuid.New()
	parking.CreatedAt = time.Now()
	r.store.parkings[parking.ID] = cloneParking(parking)

	return nil
}

func (r *memParkingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Parking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.parkings[id]
	if !ok {
		return nil, repository.ErrParkingNotFound
	}

	return cloneParking(p), nil
}

func (r *memParkingRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*entity.Parking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*entity.Parking
	for _, p := range r.store.parkings {
		if p.OwnerID == ownerID {
			out = append(out, cloneParking(p))
		}
	}

	return out, nil
}

func (r *memParkingRepo) TransitionOccupancy(_ context.Context, id uuid.UUID, from, to entity.OccupancyState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.parkings[id]
	if !ok || !p.IsValidated() || p.Occupancy != from {
		return repository.ErrStateConflict
	}
	p.Occupancy = to

	return nil
}

func (r *memParkingRepo) MarkValidated(_ context.Context, id uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.parkings[id]
	if !ok || p.IsValidated() {
		return repository.ErrStateConflict
	}
	p.Status = entity.ParkingStatusValidated
	p.ValidatedAt = &at

	return nil
}

// --- occupations ---

type memOccupationRepo struct{ store *memStore }

func (r *memOccupationRepo) Create(_ context.Context, occupation *entity.Occupation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, o := range r.store.occupations {
		if o.ParkingID == occupation.ParkingID && o.IsOpen() {
			return repository.ErrStateConflict
		}
	}
	occupation.ID = uuid.New()
	r.store.occupations[occupation.ID] = cloneOccupation(occupation)

	return nil
}

func (r *memOccupationRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Occupation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.occupations[id]
	if !ok {
		return nil, repository.ErrOccupationNotFound
	}

	return cloneOccupation(o), nil
}

func (r *memOccupationRepo) findOpen(match func(*entity.Occupation) bool) (*entity.Occupation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, o := range r.store.occupations {
		if o.IsOpen() && match(o) {
			return cloneOccupation(o), nil
		}
	}

	return nil, repository.ErrOccupationNotFound
}

func (r *memOccupationRepo) FindOpenByParking(_ context.Context, parkingID uuid.UUID) (*entity.Occupation, error) {
	return r.findOpen(func(o *entity.Occupation) bool { return o.ParkingID == parkingID })
}

func (r *memOccupationRepo) FindOpenByParkingAndRenter(_ context.Context, parkingID, renterID uuid.UUID, state entity.OccupationState) (*entity.Occupation, error) {
	return r.findOpen(func(o *entity.Occupation) bool {
		return o.ParkingID == parkingID && o.RenterID == renterID && o.State == state
	})
}

func (r *memOccupationRepo) ListOpenByRenter(_ context.Context, renterID uuid.UUID) ([]*entity.Occupation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*entity.Occupation
	for _, o := range r.store.occupations {
		if o.RenterID == renterID && o.IsOpen() {
			out = append(out, cloneOccupation(o))
		}
	}

	return out, nil
}

func (r *memOccupationRepo) transition(id uuid.UUID, from entity.OccupationState, fn func(*entity.Occupation)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.occupations[id]
	if !ok || o.State != from || !o.IsOpen() {
		return repository.ErrStateConflict
	}
	fn(o)

	return nil
}

func (r *memOccupationRepo) Confirm(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(id, entity.OccupationPendingConfirmation, func(o *entity.Occupation) {
		o.State = entity.OccupationActive
		o.ConfirmedAt = &at
	})
}

func (r *memOccupationRepo) Close(_ context.Context, id uuid.UUID, endedAt time.Time, billCents int64) error {
	return r.transition(id, entity.OccupationActive, func(o *entity.Occupation) {
		o.State = entity.OccupationClosed
		o.EndedAt = &endedAt
		o.BillCents = &billCents
	})
}

func (r *memOccupationRepo) Expire(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(id, entity.OccupationPendingConfirmation, func(o *entity.Occupation) {
		o.State = entity.OccupationExpired
		o.EndedAt = &at
	})
}

func (r *memOccupationRepo) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var ids []uuid.UUID
	for id, o := range r.store.occupations {
		if o.State == entity.OccupationPendingConfirmation && o.StartedAt.Before(cutoff) && len(ids) < limit {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

func (r *memOccupationRepo) ListClosedByOwner(_ context.Context, ownerID uuid.UUID) ([]*entity.Occupation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*entity.Occupation
	for _, o := range r.store.occupations {
		p, ok := r.store.parkings[o.ParkingID]
		if ok && p.OwnerID == ownerID && o.State == entity.OccupationClosed {
			out = append(out, cloneOccupation(o))
		}
	}

	return out, nil
}

// --- collaborators ---

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Check(password, hash string) bool { return hash == "hashed:"+password }

func (fakeHasher) ValidatePasswordStrength(password string) []string {
	var violations []string
	if len(password) < 8 {
		violations = append(violations, "must be at least 8 characters long")
	}
	if strings.ToLower(password) == password {
		violations = append(violations, "must contain an uppercase letter")
	}

	return violations
}

// fakeSecrets hands out predictable secrets.
type fakeSecrets struct {
	mu sync.Mutex
	n  int
}

func (g *fakeSecrets) Generate(purpose entity.SecretPurpose) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++

	if purpose == entity.SecretPurposePin {
		return fmt.Sprintf("%06d", 100000+g.n), nil
	}

	return fmt.Sprintf("%s-token-%d", purpose, g.n), nil
}

func (g *fakeSecrets) Digest(plaintext string) string { return "sha:" + plaintext }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*entity.Notification
	fail map[entity.NotificationTemplate]error
}

func (n *fakeNotifier) Send(_ context.Context, notification *entity.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.fail[notification.Template]; err != nil {
		return err
	}
	n.sent = append(n.sent, notification)

	return nil
}

func (n *fakeNotifier) last(template entity.NotificationTemplate) *entity.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Template == template {
			return n.sent[i]
		}
	}

	return nil
}

func (n *fakeNotifier) count(template entity.NotificationTemplate) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	c := 0
	for _, s := range n.sent {
		if s.Template == template {
			c++
		}
	}

	return c
}

type fakeScheduler struct {
	mu        sync.Mutex
	jobs      map[string]entity.Job
	cancelled []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: map[string]entity.Job{}}
}

func (s *fakeScheduler) Register(entity.JobKind, service.JobHandler) {}

func (s *fakeScheduler) Schedule(_ context.Context, job entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Key] = job

	return nil
}

func (s *fakeScheduler) Cancel(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, key)
	s.cancelled = append(s.cancelled, key)

	return nil
}

func (s *fakeScheduler) Run(ctx context.Context) error {
	<-ctx.Done()

	return nil
}

func (s *fakeScheduler) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[key]

	return ok
}

// --- environment ---

type testEnv struct {
	store        *memStore
	accounts     *memAccountRepo
	parkings     *memParkingRepo
	occupations  *memOccupationRepo
	notifier     *fakeNotifier
	scheduler    *fakeScheduler
	signal       *signal.MemorySignal
	tokens       service.TokenService
	credentials  usecase.CredentialUsecase
	auth         usecase.AuthUsecase
	reservations usecase.ReservationUsecase
	expiry       usecase.ExpiryUsecase
	cfg          *config.Config
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		Auth:         &config.AuthConfig{BcryptCost: 10, TokenTTL: time.Hour},
		Secrets:      &config.SecretsConfig{PinLength: 6, PinTTL: 5 * time.Minute, EmailConfirmTTL: 24 * time.Hour, PasswordResetTTL: 10 * time.Minute},
		Account:      &config.AccountConfig{ConfirmationDelay: 240 * time.Hour, PurgeDelay: 720 * time.Hour},
		Reservation:  &config.ReservationConfig{},
		Scheduler:    &config.SchedulerConfig{BatchSize: 100},
		Notification: &config.NotificationConfig{PublicBaseURL: "https://parkshare.test/"},
	}
	cfg.SecretKey.Access = "test-secret"

	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := newTestConfig()
	for _, m := range mutate {
		m(cfg)
	}

	store := newMemStore()
	env := &testEnv{
		store:       store,
		accounts:    &memAccountRepo{store: store},
		parkings:    &memParkingRepo{store: store},
		occupations: &memOccupationRepo{store: store},
		notifier:    &fakeNotifier{fail: map[entity.NotificationTemplate]error{}},
		scheduler:   newFakeScheduler(),
		signal:      signal.NewMemorySignal(),
		cfg:         cfg,
	}

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)
	env.tokens = tokens

	logger := newDiscardLogger()
	txManager := &memTxManager{store: store}
	env.credentials = NewCredentialService(CredentialServiceParams{
		AccountRepo: env.accounts,
		Hasher:      fakeHasher{},
		Secrets:     &fakeSecrets{},
		Config:      cfg,
		Logger:      logger,
	})
	env.auth = NewAuthService(AuthServiceParams{
		TxManager:    txManager,
		AccountRepo:  env.accounts,
		Credentials:  env.credentials,
		TokenService: tokens,
		Notifier:     env.notifier,
		Scheduler:    env.scheduler,
		Config:       cfg,
		Logger:       logger,
	})
	env.reservations = NewReservationService(ReservationServiceParams{
		TxManager:      txManager,
		AccountRepo:    env.accounts,
		ParkingRepo:    env.parkings,
		OccupationRepo: env.occupations,
		Scheduler:      env.scheduler,
		Signal:         env.signal,
		Notifier:       env.notifier,
		Config:         cfg,
		Logger:         logger,
	})
	env.expiry = NewExpiryService(ExpiryServiceParams{
		TxManager:      txManager,
		AccountRepo:    env.accounts,
		OccupationRepo: env.occupations,
		Reservations:   env.reservations,
		Config:         cfg,
		Logger:         logger,
	})

	return env
}

// seedAccount stores a confirmed, active account with password "Password1!".
func (e *testEnv) seedAccount(t *testing.T, username string, role entity.Role) *entity.Account {
	t.Helper()

	account := &entity.Account{
		Username:     username,
		Email:        username + "@example.com",
		Phone:        fmt.Sprintf("+1555%07d", len(e.store.accounts)+1),
		PasswordHash: "hashed:Password1!",
		Role:         role,
		Confirmed:    true,
		Active:       true,
	}
	require.NoError(t, e.accounts.Create(context.Background(), account))

	return account
}

// seedParking stores a validated, free parking of the owner priced per hour.
func (e *testEnv) seedParking(t *testing.T, owner *entity.Account, priceCents int64) *entity.Parking {
	t.Helper()

	parking := &entity.Parking{
		OwnerID:          owner.ID,
		Title:            "Spot " + owner.Username,
		Type:             entity.ParkingTypeOutdoor,
		HourlyPriceCents: priceCents,
		Status:           entity.ParkingStatusValidated,
		Occupancy:        entity.OccupancyFree,
	}
	require.NoError(t, e.parkings.Create(context.Background(), parking))

	return parking
}

func (e *testEnv) parkingState(t *testing.T, id uuid.UUID) entity.OccupancyState {
	t.Helper()

	p, err := e.parkings.FindByID(context.Background(), id)
	require.NoError(t, err)

	return p.Occupancy
}
