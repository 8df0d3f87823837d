package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type fakeDraftStore struct {
	mu     sync.Mutex
	drafts map[string][]byte
	files  map[string][]byte
	locks  map[string]bool
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: map[string][]byte{}, files: map[string][]byte{}, locks: map[string]bool{}}
}

func fileKey(id string, kind models.DocumentKind) string { return id + "/" + string(kind) }

func (f *fakeDraftStore) Save(_ context.Context, draft *models.RegistrationDraft, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	f.drafts[draft.ID] = raw
	return nil
}

func (f *fakeDraftStore) Load(_ context.Context, id string) (*models.RegistrationDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.drafts[id]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	var draft models.RegistrationDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (f *fakeDraftStore) Delete(_ context.Context, draft *models.RegistrationDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, draft.ID)
	for kind := range draft.Attachments {
		delete(f.files, fileKey(draft.ID, kind))
	}
	return nil
}

func (f *fakeDraftStore) SaveFile(_ context.Context, id string, kind models.DocumentKind, data []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fileKey(id, kind)] = data
	return nil
}

func (f *fakeDraftStore) LoadFile(_ context.Context, id string, kind models.DocumentKind) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[fileKey(id, kind)]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	return data, nil
}

func (f *fakeDraftStore) DeleteFile(_ context.Context, id string, kind models.DocumentKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, fileKey(id, kind))
	return nil
}

func (f *fakeDraftStore) AcquireSubmitLock(_ context.Context, id string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[id] {
		return false, nil
	}
	f.locks[id] = true
	return true, nil
}

func (f *fakeDraftStore) ReleaseSubmitLock(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, id)
	return nil
}

type fakeAccount struct {
	id       string
	password string
}

type fakeAccounts struct {
	accounts   map[string]fakeAccount
	createErr  error
	profileErr error
	signedOut  []string
	profiles   map[string]models.AccountProfile
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[string]fakeAccount{}, profiles: map[string]models.AccountProfile{}}
}

func (f *fakeAccounts) CreateAccount(_ context.Context, email, password string, profile models.AccountProfile) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.accounts[email]; ok {
		return nil, appErrors.ErrAccountExists
	}
	acc := fakeAccount{id: uuid.NewString(), password: password}
	f.accounts[email] = acc
	return &models.User{ID: acc.id, Email: email, FullName: profile.FullName, Role: profile.Role, Active: true}, nil
}

func (f *fakeAccounts) SignIn(_ context.Context, req models.LoginRequest) (*models.Session, error) {
	acc, ok := f.accounts[req.Email]
	if !ok || acc.password != req.Password {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.Session{AccessToken: "access", RefreshToken: "refresh-" + acc.id, User: models.UserInfo{ID: acc.id, Email: req.Email}}, nil
}

func (f *fakeAccounts) SignOut(_ context.Context, userID, _ string) error {
	f.signedOut = append(f.signedOut, userID)
	return nil
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, userID string, profile models.AccountProfile) error {
	if f.profileErr != nil {
		return f.profileErr
	}
	f.profiles[userID] = profile
	return nil
}

type fakeRegistrations struct {
	byAccount map[string]*models.Registration
	upsertErr error
	updates   []models.RegistrationStatus
}

func newFakeRegistrations() *fakeRegistrations {
	return &fakeRegistrations{byAccount: map[string]*models.Registration{}}
}

func (f *fakeRegistrations) Upsert(_ context.Context, reg *models.Registration) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	stored := *reg
	f.byAccount[reg.AccountID] = &stored
	return nil
}

func (f *fakeRegistrations) FindByAccountID(_ context.Context, accountID string) (*models.Registration, error) {
	reg, ok := f.byAccount[accountID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *reg
	return &out, nil
}

func (f *fakeRegistrations) FindByID(_ context.Context, id string) (*models.Registration, error) {
	for _, reg := range f.byAccount {
		if reg.ID == id {
			out := *reg
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRegistrations) UpdateStatus(_ context.Context, id string, status models.RegistrationStatus, reviewerID string, reason *string, at time.Time) error {
	for _, reg := range f.byAccount {
		if reg.ID == id {
			reg.Status = status
			reg.ReviewedBy = &reviewerID
			reg.ReviewedAt = &at
			reg.DeclineReason = reason
			f.updates = append(f.updates, status)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeRegistrations) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error) {
	rows, err := f.ListAll(ctx, filter)
	return rows, len(rows), err
}

func (f *fakeRegistrations) ListAll(_ context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	var out []models.Registration
	for _, reg := range f.byAccount {
		if filter.Status != "" && reg.Status != filter.Status {
			continue
		}
		if filter.Role != "" && reg.Role != filter.Role {
			continue
		}
		out = append(out, *reg)
	}
	return out, nil
}

type fakeBlobs struct {
	objects map[string][]byte
	deleted []string
	failOn  string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) Upload(bucket, path string, r io.Reader) (string, error) {
	if f.failOn != "" && strings.Contains(path, f.failOn) {
		return "", errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.objects[bucket+"/"+path] = data
	return path, nil
}

func (f *fakeBlobs) Delete(bucket, path string) error {
	delete(f.objects, bucket+"/"+path)
	f.deleted = append(f.deleted, bucket+"/"+path)
	return nil
}

type fakeSigner struct{}

func (fakeSigner) PublicURL(bucket, path string) (string, error) {
	return "https://files.test/" + bucket + "/" + path, nil
}

type fakeNotifier struct {
	calls    []NotificationFunction
	payloads []interface{}
	err      error
}

func (f *fakeNotifier) Invoke(_ context.Context, fn NotificationFunction, payload interface{}) error {
	f.calls = append(f.calls, fn)
	f.payloads = append(f.payloads, payload)
	return f.err
}

func (f *fakeNotifier) InvokeSync(ctx context.Context, fn NotificationFunction, payload interface{}) error {
	return f.Invoke(ctx, fn, payload)
}

type fakeAudit struct {
	logs []*models.AuditLog
}

func (f *fakeAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeMetrics struct {
	submissions []string
	reviews     []models.RegistrationStatus
}

func (f *fakeMetrics) RecordRegistrationSubmission(outcome string) {
	f.submissions = append(f.submissions, outcome)
}

func (f *fakeMetrics) RecordReviewDecision(status models.RegistrationStatus) {
	f.reviews = append(f.reviews, status)
}

func sp(s string) *string { return &s }
