package blast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/internal/command"
	"github.com/yumyai/strainmodel/internal/util"
	"github.com/yumyai/strainmodel/logger"
)

type SeqKind string

const (
	Protein    SeqKind = "prot"
	Nucleotide SeqKind = "nucl"
)

// DefaultLockTimeout bounds how long EnsureIndex waits for another process building the
// same database.
const DefaultLockTimeout = 60 * time.Second

const lockRetryDelay = 100 * time.Millisecond

var indexExtensions = map[SeqKind][]string{
	Protein:    {"pdb", "psq", "pto", "ptf", "pot", "pin", "phr"},
	Nucleotide: {"ndb", "nsq", "nto", "ntf", "not", "nin", "nhr"},
}

// IndexFiles lists the database files expected next to subject for kind.
func IndexFiles(subject string, kind SeqKind) []string {
	exts := indexExtensions[kind]
	files := make([]string, 0, len(exts))
	for _, ext := range exts {
		files = append(files, subject+"."+ext)
	}
	return files
}

// IndexBuilder creates the alignment database for subject. It is not retried.
type IndexBuilder interface {
	Build(ctx context.Context, subject string, kind SeqKind) error
}

// MakeBlastDB builds databases with the makeblastdb executable.
type MakeBlastDB struct {
	Path string
}

func (m MakeBlastDB) Build(ctx context.Context, subject string, kind SeqKind) error {
	bin := m.Path
	if bin == "" {
		bin = "makeblastdb"
	}
	args := []string{"-in", subject, "-out", subject, "-dbtype", string(kind)}
	_, err := command.Run(ctx, bin, args, nil)
	return err
}

// IndexManager ensures databases exist, building each at most once across processes.
type IndexManager struct {
	Builder     IndexBuilder
	LockTimeout time.Duration
}

func NewIndexManager(builder IndexBuilder, timeout time.Duration) *IndexManager {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &IndexManager{Builder: builder, LockTimeout: timeout}
}

// EnsureIndex builds the database for subject unless it already exists. The existence
// test is repeated after taking the lock so that concurrent callers build only once.
func (m *IndexManager) EnsureIndex(ctx context.Context, subject string, kind SeqKind) error {
	if _, ok := indexExtensions[kind]; !ok {
		return fmt.Errorf("unknown sequence kind %q", kind)
	}
	if util.AllExist(IndexFiles(subject, kind)...) {
		return nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, m.LockTimeout)
	defer cancel()

	lock := flock.New(subject + ".lock")
	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		if errors.Is(err, context.DeadlineExceeded) || (err == nil && !locked) {
			return fmt.Errorf("%w: %s after %s", ErrLockTimeout, lock.Path(), m.LockTimeout)
		}
		return fmt.Errorf("failed to lock %s: %w", lock.Path(), err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release database lock", zap.String("lock", lock.Path()), zap.Error(err))
		}
	}()

	if util.AllExist(IndexFiles(subject, kind)...) {
		return nil
	}

	logger.Info("Building alignment database", zap.String("subject", subject), zap.String("kind", string(kind)))
	if err := m.Builder.Build(ctx, subject, kind); err != nil {
		return fmt.Errorf("failed to build %s database for %s: %w", kind, subject, err)
	}
	return nil
}
