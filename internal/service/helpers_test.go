package service

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"rideshare-registry/internal/credential"
	"rideshare-registry/internal/domain"
	"rideshare-registry/internal/repository"
	"rideshare-registry/internal/repository/flatfile"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestLedger(t *testing.T) *flatfile.Ledger {
	t.Helper()
	l, err := flatfile.Open(t.TempDir(), false)
	if err != nil {
		t.Fatalf("flatfile.Open() err=%v", err)
	}
	return l
}

func newTestRegistry(t *testing.T, ledger repository.Ledger) Registry {
	t.Helper()
	return NewRegistry(ledger, credential.NewHasher(bcrypt.MinCost), quietLogger())
}

func driverPayload(username string) domain.Registration {
	return domain.Registration{
		Email:       "a@x.com",
		Username:    username,
		Password:    "Password123",
		Role:        "driver",
		PhoneNumber: "1",
		Age:         "30",
		LicenseID:   "LIC1",
	}
}

func passengerPayload(username string) domain.Registration {
	return domain.Registration{
		Email:           "p@x.com",
		Username:        username,
		Password:        "Password123",
		Role:            "passenger",
		PhoneNumber:     "2",
		Age:             "17",
		AttendingSchool: "Pascal High",
	}
}

// fileLines returns the non-empty lines of path, or nil if it does not exist.
func fileLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// faultyLedger fails Append for selected partitions.
type faultyLedger struct {
	repository.Ledger
	fail map[repository.Partition]error
}

func (l *faultyLedger) Append(ctx context.Context, p repository.Partition, record any) error {
	if err, ok := l.fail[p]; ok {
		return err
	}
	return l.Ledger.Append(ctx, p, record)
}
