package reel

import (
	"fmt"

	"golang.org/x/time/rate"
)

// FileIndex lists local files for sync and applies ignore rules.
type FileIndex interface {
	// ListFiles returns slash-separated paths relative to root of every
	// regular file under root that is not ignored.
	ListFiles(root string) ([]string, error)

	// Ignored reports whether a relative path is excluded from sync.
	Ignored(relativePath string) bool
}

// Deps are the collaborators of a Service. Nil fields get defaults where
// one exists; Vault, Files and Generator are required only by the
// operations that use them.
type Deps struct {
	Vault     Vault
	Encryptor Encryptor
	Generator Generator
	Files     FileIndex
	Journal   Journal
	Limiter   *rate.Limiter
	Logger    Logger
	Clock     Clock
	IDGen     IDGenerator
}

// Service coordinates the ledger, the queue and the external collaborators
// over a workspace.
type Service struct {
	workspace Workspace
	ledger    *Ledger
	queue     *Queue
	vault     Vault
	encryptor Encryptor
	generator Generator
	files     FileIndex
	limiter   *rate.Limiter
	logger    Logger
}

// NewService creates a Service for ws.
func NewService(ws Workspace, d Deps) *Service {
	if d.Logger == nil {
		d.Logger = NewNopLogger()
	}
	if d.Clock == nil {
		d.Clock = RealClock{}
	}
	if d.IDGen == nil {
		d.IDGen = UUIDGenerator{}
	}
	if d.Journal == nil {
		d.Journal = NopJournal{}
	}
	if d.Limiter == nil {
		d.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Service{
		workspace: ws,
		ledger:    NewLedger(d.Clock, d.Logger, d.Journal),
		queue:     NewQueue(d.Clock, d.IDGen, d.Logger, d.Journal),
		vault:     d.Vault,
		encryptor: d.Encryptor,
		generator: d.Generator,
		files:     d.Files,
		limiter:   d.Limiter,
		logger:    d.Logger,
	}
}

func (s *Service) Ledger() *Ledger      { return s.ledger }
func (s *Service) Queue() *Queue        { return s.queue }
func (s *Service) Workspace() Workspace { return s.workspace }

// Reconcile migrates legacy files and discovers unregistered versions in dir.
func (s *Service) Reconcile(dir string) (int, error) {
	migrated, err := s.ledger.MigrateLegacy(dir)
	if err != nil {
		return 0, err
	}
	found, err := s.ledger.Discover(dir)
	if err != nil {
		return 0, err
	}
	total := len(migrated)
	for _, n := range found {
		total += n
	}
	return total, nil
}

// DiscoverDocument runs discovery over a document directory and its units.
func (s *Service) DiscoverDocument(docDir string) (int, error) {
	dirs, err := s.workspace.DocumentDirs(docDir)
	if err != nil {
		return 0, err
	}
	n, err := s.ledger.DiscoverDirs(dirs)
	if err != nil {
		return n, fmt.Errorf("discovering document %s: %w", docDir, err)
	}
	return n, nil
}

// DiscoverAll runs discovery over every document in the workspace.
func (s *Service) DiscoverAll() (int, error) {
	docs, err := s.workspace.Documents()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, doc := range docs {
		n, err := s.DiscoverDocument(doc)
		total += n
		if err != nil {
			return total, err
		}
	}
	if total > 0 {
		s.logger.Info("discovery finished", "root", s.workspace.Root, "registered", total)
	}
	return total, nil
}

// ScopeDirs returns the directories the worker and watcher cover: one
// document when document is non-empty, otherwise the whole workspace.
func (s *Service) ScopeDirs(document string) ([]string, error) {
	if document != "" {
		return s.workspace.DocumentDirs(s.workspace.DocumentDir(document))
	}
	return s.workspace.AllDirs()
}
