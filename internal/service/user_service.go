package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rideshare-registry/internal/credential"
	"rideshare-registry/internal/domain"
	"rideshare-registry/internal/storage"
)

const defaultMaxAttachmentBytes = 5 << 20

var allowedDocumentExtensions = []string{"png", "jpg", "jpeg", "pdf"}

// Attachment is an uploaded license document accompanying a registration.
type Attachment struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	User    *domain.UserRecord
	Token   string
	Session domain.Session
}

// UserService describes the public registration and authentication operations.
type UserService interface {
	Register(ctx context.Context, in domain.Registration, attachment *Attachment) (*domain.UserRecord, error)
	RegisterSchool(ctx context.Context, in domain.SchoolApplication) (*domain.SchoolApplication, error)
	Login(ctx context.Context, identity, password string) (*LoginResult, error)
	VerifySession(token string) (domain.Session, error)
	ListUsers(ctx context.Context) ([]domain.UserRecord, error)
}

// UserServiceConfig holds the knobs of the composition layer.
type UserServiceConfig struct {
	MaxAttachmentBytes int64
}

type userService struct {
	registry  Registry
	sessions  SessionIssuer
	hasher    *credential.Hasher
	documents storage.Service
	cfg       UserServiceConfig
	logger    *logrus.Logger

	// compared against when the identity is unknown so both login failures
	// cost one hash verification
	dummyHash string
}

func NewUserService(registry Registry, sessions SessionIssuer, hasher *credential.Hasher, documents storage.Service, cfg UserServiceConfig, logger *logrus.Logger) UserService {
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = defaultMaxAttachmentBytes
	}
	if logger == nil {
		logger = logrus.New()
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		logger.Warnf("prepare dummy hash: %v", err)
	}
	return &userService{
		registry:  registry,
		sessions:  sessions,
		hasher:    hasher,
		documents: documents,
		cfg:       cfg,
		logger:    logger,
		dummyHash: dummy,
	}
}

func (s *userService) Register(ctx context.Context, in domain.Registration, attachment *Attachment) (*domain.UserRecord, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"op":       "register",
		"identity": strings.TrimSpace(in.Username),
		"role":     strings.TrimSpace(in.Role),
	})

	in.LicenseDocumentRef = ""
	if attachment != nil && domain.Role(strings.ToLower(strings.TrimSpace(in.Role))) == domain.RoleDriver {
		ext, err := s.checkAttachment(attachment)
		if err != nil {
			logger.Infof("rejected: %v", err)
			return nil, err
		}
		if _, _, err := normalizeRegistration(in); err != nil {
			logger.Infof("rejected: %v", err)
			return nil, err
		}
		ref, err := s.storeAttachment(ctx, attachment, ext)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				logger.Infof("rejected: %v", err)
			} else {
				logger.Errorf("store license document: %v", err)
			}
			return nil, err
		}
		in.LicenseDocumentRef = ref
	}

	user, err := s.registry.Register(ctx, in)
	if err != nil {
		if in.LicenseDocumentRef != "" {
			if delErr := s.documents.Delete(ctx, in.LicenseDocumentRef); delErr != nil {
				logger.Warnf("discard license document %s: %v", in.LicenseDocumentRef, delErr)
			}
		}
		var storageErr *domain.StorageError
		if errors.As(err, &storageErr) {
			logger.Errorf("registration failed: %v", err)
		} else {
			logger.Infof("rejected: %v", err)
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) checkAttachment(a *Attachment) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(a.Filename)), "."))
	if !slices.Contains(allowedDocumentExtensions, ext) {
		return "", &domain.ValidationError{
			Field:  "license_file",
			Reason: "must be one of " + strings.Join(allowedDocumentExtensions, ", "),
		}
	}
	if a.Size > s.cfg.MaxAttachmentBytes {
		return "", attachmentTooLarge(s.cfg.MaxAttachmentBytes)
	}
	return ext, nil
}

func (s *userService) storeAttachment(ctx context.Context, a *Attachment, ext string) (string, error) {
	if s.documents == nil {
		return "", &domain.StorageError{Op: "store license document", Err: errors.New("document storage is not configured")}
	}
	// the declared size may understate the content
	body := &cappedReader{r: a.Content, max: s.cfg.MaxAttachmentBytes}
	key := fmt.Sprintf("%s.%s", uuid.NewString(), ext)
	ref, err := s.documents.Put(ctx, key, body, mime.TypeByExtension("."+ext))
	if body.exceeded {
		if err == nil {
			_ = s.documents.Delete(ctx, ref)
		}
		return "", attachmentTooLarge(s.cfg.MaxAttachmentBytes)
	}
	if err != nil {
		return "", &domain.StorageError{Op: "store license document", Err: err}
	}
	return ref, nil
}

var errAttachmentTooLarge = errors.New("attachment exceeds size limit")

// cappedReader fails once more than max bytes have been read.
type cappedReader struct {
	r        io.Reader
	max      int64
	n        int64
	exceeded bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.exceeded {
		return 0, errAttachmentTooLarge
	}
	if room := c.max + 1 - c.n; int64(len(p)) > room {
		p = p[:room]
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.max {
		c.exceeded = true
		return 0, errAttachmentTooLarge
	}
	return n, err
}

func attachmentTooLarge(max int64) error {
	return &domain.ValidationError{
		Field:  "license_file",
		Reason: "must be at most " + strconv.FormatInt(max, 10) + " bytes",
	}
}

func (s *userService) RegisterSchool(ctx context.Context, in domain.SchoolApplication) (*domain.SchoolApplication, error) {
	app, err := s.registry.RegisterSchool(ctx, in)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"op": "register_school", "identity": strings.TrimSpace(in.Email)}).Infof("rejected: %v", err)
		return nil, err
	}
	return app, nil
}

func (s *userService) Login(ctx context.Context, identity, password string) (*LoginResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, &domain.ValidationError{Field: "username", Reason: "is required"}
	}
	if password == "" {
		return nil, &domain.ValidationError{Field: "password", Reason: "is required"}
	}
	logger := s.logger.WithFields(logrus.Fields{"op": "login", "identity": identity})

	user, err := s.registry.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			logger.Info("login failed")
			return nil, domain.ErrInvalidCredentials
		}
		logger.Errorf("lookup: %v", err)
		return nil, err
	}

	if !s.hasher.Verify(password, user.CredentialHash) {
		logger.Info("login failed")
		return nil, domain.ErrInvalidCredentials
	}

	token, session, err := s.sessions.Issue(user.Username, user.Role)
	if err != nil {
		logger.Errorf("issue token: %v", err)
		return nil, err
	}

	logger.WithField("role", user.Role).Info("login succeeded")
	return &LoginResult{
		User:    sanitizeUser(user),
		Token:   token,
		Session: session,
	}, nil
}

func (s *userService) VerifySession(token string) (domain.Session, error) {
	return s.sessions.Verify(strings.TrimSpace(token))
}

func (s *userService) ListUsers(ctx context.Context) ([]domain.UserRecord, error) {
	return s.registry.ListAll(ctx)
}

func sanitizeUser(user *domain.UserRecord) *domain.UserRecord {
	if user == nil {
		return nil
	}
	out := *user
	out.CredentialHash = ""
	return &out
}
