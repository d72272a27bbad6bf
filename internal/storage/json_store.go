package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "repaytrack/internal/errors"
	"repaytrack/internal/logger"
	"repaytrack/internal/models"
)

// document is the on-disk layout of the flat-file store.
type document struct {
	Profiles         []profileRecord  `json:"profiles"`
	CurrentProfileID *uint            `json:"currentProfileId"`
	Budgets          []models.Budget  `json:"budgets"`
	BudgetPayments   []models.Payment `json:"budgetPayments"`
	NextBudgetID     uint             `json:"nextBudgetId"`
	NextPaymentID    uint             `json:"nextPaymentId"`
}

type profileRecord struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"passwordHash"`
	// LegacyPassword is the plaintext password of files written before
	// hashing; it is hashed and removed on load.
	LegacyPassword string `json:"password,omitempty"`
}

func newDocument() *document {
	return &document{
		Profiles:       []profileRecord{},
		Budgets:        []models.Budget{},
		BudgetPayments: []models.Payment{},
		NextBudgetID:   1,
		NextPaymentID:  1,
	}
}

// normalize repairs documents written by older versions or by hand:
// missing arrays and counters that do not exceed the largest id in use.
func (d *document) normalize() {
	if d.Profiles == nil {
		d.Profiles = []profileRecord{}
	}
	if d.Budgets == nil {
		d.Budgets = []models.Budget{}
	}
	if d.BudgetPayments == nil {
		d.BudgetPayments = []models.Payment{}
	}
	for _, b := range d.Budgets {
		if b.ID >= d.NextBudgetID {
			d.NextBudgetID = b.ID + 1
		}
	}
	for _, p := range d.BudgetPayments {
		if p.ID >= d.NextPaymentID {
			d.NextPaymentID = p.ID + 1
		}
	}
	d.NextBudgetID = max(d.NextBudgetID, 1)
	d.NextPaymentID = max(d.NextPaymentID, 1)
}

// JSONStore keeps the whole dataset in one JSON document. The document is
// read on first access and held in memory; every mutation rewrites the file.
// All operations are serialised by a mutex.
type JSONStore struct {
	path string
	now  func() time.Time
	log  *zap.SugaredLogger

	mu   sync.Mutex
	data *document
	// hash of the file content last read or written by this store
	lastHash [sha256.Size]byte
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore creates a store backed by the file at path. The file is not
// touched until the first operation.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{
		path: path,
		now:  storageNow,
		log:  logger.Named("storage.json"),
	}
}

// Path returns the location of the data file.
func (s *JSONStore) Path() string {
	return s.path
}

// load returns the in-memory document, reading it from disk on first use.
// The caller must hold s.mu.
func (s *JSONStore) load() (*document, error) {
	if s.data != nil {
		return s.data, nil
	}

	content, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist) || (err == nil && len(content) == 0):
		s.log.Infow("initialising data file", "path", s.path)
		s.data = newDocument()
		if err := s.save(); err != nil {
			return nil, err
		}
		return s.data, nil
	case err != nil:
		return nil, fmt.Errorf("read data file: %w", err)
	}

	doc := &document{}
	if err := json.Unmarshal(content, doc); err != nil {
		return nil, fmt.Errorf("parse data file %s: %w", s.path, err)
	}
	doc.normalize()

	s.data = doc
	s.lastHash = sha256.Sum256(content)

	upgraded, err := hashLegacyPasswords(doc)
	if err != nil {
		s.data = nil
		return nil, err
	}
	if upgraded > 0 {
		s.log.Infow("hashed legacy profile passwords", "path", s.path, "profiles", upgraded)
		if err := s.save(); err != nil {
			return nil, err
		}
	}
	return s.data, nil
}

// hashLegacyPasswords replaces plaintext passwords with bcrypt hashes and
// returns how many profiles changed.
func hashLegacyPasswords(doc *document) (int, error) {
	upgraded := 0
	for i := range doc.Profiles {
		p := &doc.Profiles[i]
		if p.LegacyPassword == "" {
			continue
		}
		if p.PasswordHash == "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(p.LegacyPassword), bcrypt.DefaultCost)
			if err != nil {
				return 0, fmt.Errorf("hash password of profile %d: %w", p.ID, err)
			}
			p.PasswordHash = string(hash)
		}
		p.LegacyPassword = ""
		upgraded++
	}
	return upgraded, nil
}

// save rewrites the data file atomically. On failure the in-memory copy is
// dropped so the next access reloads what is actually on disk.
// The caller must hold s.mu.
func (s *JSONStore) save() error {
	if s.data == nil {
		return nil
	}

	content, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		s.data = nil
		return fmt.Errorf("encode data file: %w", err)
	}

	if err := writeFileAtomic(s.path, content); err != nil {
		s.data = nil
		return err
	}

	s.lastHash = sha256.Sum256(content)
	return nil
}

func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// CreateBudget implements Storer.
func (s *JSONStore) CreateBudget(_ context.Context, input models.NewBudget) (*models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	budget := models.Budget{
		ID:            data.NextBudgetID,
		Name:          input.Name,
		TotalAmount:   input.TotalAmount,
		MonthlyAmount: input.MonthlyAmount,
		StartDate:     input.StartDate,
		CreatedAt:     s.now(),
	}
	data.NextBudgetID++
	data.Budgets = append(data.Budgets, budget)

	if err := s.save(); err != nil {
		return nil, err
	}

	s.log.Debugw("budget created", "budget_id", budget.ID)
	return &budget, nil
}

// ListBudgets implements Storer.
func (s *JSONStore) ListBudgets(_ context.Context) ([]models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	budgets := slices.Clone(data.Budgets)
	if budgets == nil {
		budgets = []models.Budget{}
	}
	slices.SortStableFunc(budgets, func(a, b models.Budget) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return int(a.ID) - int(b.ID)
	})
	return budgets, nil
}

// GetBudget implements Storer.
func (s *JSONStore) GetBudget(_ context.Context, id uint) (*models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, b := range data.Budgets {
		if b.ID == id {
			budget := b
			return &budget, nil
		}
	}
	return nil, nil
}

// DeleteBudget implements Storer.
func (s *JSONStore) DeleteBudget(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	data.Budgets = slices.DeleteFunc(data.Budgets, func(b models.Budget) bool { return b.ID == id })
	data.BudgetPayments = slices.DeleteFunc(data.BudgetPayments, func(p models.Payment) bool { return p.BudgetID == id })

	if err := s.save(); err != nil {
		return err
	}

	s.log.Debugw("budget deleted", "budget_id", id)
	return nil
}

// ListPayments implements Storer.
func (s *JSONStore) ListPayments(_ context.Context, budgetID uint) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	payments := []models.Payment{}
	for _, p := range data.BudgetPayments {
		if p.BudgetID == budgetID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

// TogglePayment implements Storer.
func (s *JSONStore) TogglePayment(_ context.Context, budgetID uint, monthIndex int, isPaid bool) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(data.BudgetPayments, func(p models.Payment) bool {
		return p.BudgetID == budgetID && p.MonthIndex == monthIndex
	})
	if idx >= 0 {
		data.BudgetPayments[idx].IsPaid = isPaid
	} else {
		data.BudgetPayments = append(data.BudgetPayments, models.Payment{
			ID:         data.NextPaymentID,
			BudgetID:   budgetID,
			MonthIndex: monthIndex,
			IsPaid:     isPaid,
		})
		data.NextPaymentID++
		idx = len(data.BudgetPayments) - 1
	}
	payment := data.BudgetPayments[idx]

	if err := s.save(); err != nil {
		return nil, err
	}

	s.log.Debugw("payment toggled", "budget_id", budgetID, "month_index", monthIndex, "is_paid", isPaid)
	return &payment, nil
}

// ListProfiles implements ProfileStorer.
func (s *JSONStore) ListProfiles(_ context.Context) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	profiles := make([]models.Profile, 0, len(data.Profiles))
	for _, p := range data.Profiles {
		profiles = append(profiles, p.toModel(data.CurrentProfileID))
	}
	return profiles, nil
}

// GetProfile implements ProfileStorer.
func (s *JSONStore) GetProfile(_ context.Context, id uint) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, p := range data.Profiles {
		if p.ID == id {
			profile := p.toModel(data.CurrentProfileID)
			return &profile, nil
		}
	}
	return nil, nil
}

// CreateProfile implements ProfileStorer.
func (s *JSONStore) CreateProfile(_ context.Context, name, passwordHash string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	var nextID uint = 1
	for _, p := range data.Profiles {
		if p.Name == name {
			return nil, apperrors.ErrDuplicateProfile
		}
		nextID = max(nextID, p.ID+1)
	}

	record := profileRecord{ID: nextID, Name: name, PasswordHash: passwordHash}
	data.Profiles = append(data.Profiles, record)

	if err := s.save(); err != nil {
		return nil, err
	}

	profile := record.toModel(data.CurrentProfileID)
	return &profile, nil
}

// CurrentProfileID implements ProfileStorer.
func (s *JSONStore) CurrentProfileID(_ context.Context) (*uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}
	if data.CurrentProfileID == nil {
		return nil, nil
	}
	id := *data.CurrentProfileID
	return &id, nil
}

// SetCurrentProfileID implements ProfileStorer.
func (s *JSONStore) SetCurrentProfileID(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(data.Profiles, func(p profileRecord) bool { return p.ID == id }) {
		return apperrors.ErrProfileNotFound
	}

	data.CurrentProfileID = &id
	return s.save()
}

// ClearCurrentProfile implements ProfileStorer.
func (s *JSONStore) ClearCurrentProfile(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	data.CurrentProfileID = nil
	return s.save()
}

// Close implements Store. The file is always consistent on disk, so there
// is nothing to flush.
func (s *JSONStore) Close() error {
	return nil
}

func (p profileRecord) toModel(current *uint) models.Profile {
	return models.Profile{
		ID:           p.ID,
		Name:         p.Name,
		PasswordHash: p.PasswordHash,
		IsCurrent:    current != nil && *current == p.ID,
	}
}
