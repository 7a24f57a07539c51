package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rideshare-registry/internal/credential"
	"rideshare-registry/internal/domain"
	"rideshare-registry/internal/repository"
)

// Registry owns the identity space shared by drivers and passengers, and the
// school application partition.
type Registry interface {
	Register(ctx context.Context, in domain.Registration) (*domain.UserRecord, error)
	RegisterSchool(ctx context.Context, in domain.SchoolApplication) (*domain.SchoolApplication, error)
	// FindByIdentity returns the stored record including its credential hash,
	// or domain.ErrNotFound.
	FindByIdentity(ctx context.Context, identity string) (*domain.UserRecord, error)
	ListAll(ctx context.Context) ([]domain.UserRecord, error)
}

type registry struct {
	ledger repository.Ledger
	hasher *credential.Hasher
	logger *logrus.Logger
	now    func() time.Time

	// mu makes read-check-append one critical section for the whole
	// identity space, across both user partitions and the school partition.
	mu sync.Mutex
}

func NewRegistry(ledger repository.Ledger, hasher *credential.Hasher, logger *logrus.Logger) Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &registry{
		ledger: ledger,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
}

func partitionFor(role domain.Role) repository.Partition {
	if role == domain.RoleDriver {
		return repository.PartitionDrivers
	}
	return repository.PartitionPassengers
}

func (r *registry) Register(ctx context.Context, in domain.Registration) (*domain.UserRecord, error) {
	rec, password, err := normalizeRegistration(in)
	if err != nil {
		return nil, err
	}
	logger := r.logger.WithFields(logrus.Fields{
		"op":       "register",
		"identity": rec.Username,
		"role":     rec.Role,
	})

	hash, err := r.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.find(ctx, rec.Username, partitionFor(rec.Role), partitionFor(rec.Role.Other())); err == nil {
		return nil, &domain.ConflictError{Identity: rec.Username}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	rec.ID = uuid.NewString()
	rec.CredentialHash = hash
	rec.CreatedAt = r.now().UTC()

	partition := partitionFor(rec.Role)
	if err := r.ledger.Append(ctx, partition, rec); err != nil {
		logger.Errorf("append to %s: %v", partition, err)
		return nil, err
	}
	if err := r.ledger.Append(ctx, repository.PartitionUsers, rec); err != nil {
		logger.Warnf("mirror to %s: %v", repository.PartitionUsers, err)
	}

	logger.Info("user registered")
	return sanitizeUser(&rec), nil
}

func (r *registry) RegisterSchool(ctx context.Context, in domain.SchoolApplication) (*domain.SchoolApplication, error) {
	app, err := normalizeSchool(in)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for existing, err := range repository.Decode[domain.SchoolApplication](r.ledger.ReadAll(ctx, repository.PartitionSchools)) {
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(existing.Email) == "" {
			continue
		}
		switch {
		case strings.EqualFold(strings.TrimSpace(existing.Email), app.Email):
			return nil, &domain.ConflictError{Identity: app.Email}
		case strings.EqualFold(strings.TrimSpace(existing.SchoolName), app.SchoolName):
			return nil, &domain.ConflictError{Identity: app.SchoolName}
		case strings.TrimSpace(existing.InstitutionCode) == app.InstitutionCode:
			return nil, &domain.ConflictError{Identity: app.InstitutionCode}
		}
	}

	app.ID = uuid.NewString()
	app.CreatedAt = r.now().UTC()
	if err := r.ledger.Append(ctx, repository.PartitionSchools, app); err != nil {
		r.logger.WithFields(logrus.Fields{"op": "register_school", "identity": app.Email}).Errorf("append: %v", err)
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{"op": "register_school", "identity": app.Email}).Info("school application submitted")
	return &app, nil
}

func (r *registry) FindByIdentity(ctx context.Context, identity string) (*domain.UserRecord, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, domain.ErrNotFound
	}
	return r.find(ctx, identity, repository.PartitionDrivers, repository.PartitionPassengers)
}

func (r *registry) find(ctx context.Context, identity string, partitions ...repository.Partition) (*domain.UserRecord, error) {
	for _, partition := range partitions {
		for user, err := range r.users(ctx, partition) {
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", partition, err)
			}
			if strings.TrimSpace(user.Username) == identity {
				user.Role = roleOf(partition)
				return &user, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (r *registry) ListAll(ctx context.Context) ([]domain.UserRecord, error) {
	users := make([]domain.UserRecord, 0)
	for _, partition := range []repository.Partition{repository.PartitionDrivers, repository.PartitionPassengers} {
		for user, err := range r.users(ctx, partition) {
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", partition, err)
			}
			user.Role = roleOf(partition)
			users = append(users, *sanitizeUser(&user))
		}
	}
	return users, nil
}

// users decodes a user partition. Entries that are valid JSON but carry no
// username (null, foreign objects) are not user records and are skipped.
func (r *registry) users(ctx context.Context, partition repository.Partition) iter.Seq2[domain.UserRecord, error] {
	return func(yield func(domain.UserRecord, error) bool) {
		for user, err := range repository.Decode[domain.UserRecord](r.ledger.ReadAll(ctx, partition)) {
			if err == nil && strings.TrimSpace(user.Username) == "" {
				continue
			}
			if !yield(user, err) {
				return
			}
		}
	}
}

func roleOf(partition repository.Partition) domain.Role {
	if partition == repository.PartitionDrivers {
		return domain.RoleDriver
	}
	return domain.RolePassenger
}
