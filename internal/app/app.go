package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reel-go/internal/config"
	"reel-go/internal/database"
	"reel-go/internal/encryption"
	"reel-go/internal/fs"
	"reel-go/internal/generate"
	"reel-go/internal/reel"
	"reel-go/internal/vault"
	"reel-go/internal/watch"
)

// journalMetadataName names the journal snapshot stored in the vault.
const journalMetadataName = "journal"

// ReelApp is the application layer between the CLI and reel.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw paths and type names, and manages the journal lifecycle
// on Close.
type ReelApp struct {
	cfg        *config.Config
	journal    *database.SQLiteJournal
	vault      reel.Vault
	files      *fs.OSFilesystemManager
	encryptor  reel.Encryptor
	generators *generate.Set
	service    *reel.Service
	op         *Operation
	logFile    *os.File
	logger     reel.Logger
}

// NewReelApp creates a fully wired ReelApp from the given config.
// operation identifies the CLI command being run (e.g. "Record", "FastForward")
// and parameters is stored with it when the operation is persisted.
// The caller must call Close when done.
func NewReelApp(ctx context.Context, cfg *config.Config, operation, parameters string) (*ReelApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	files, err := fs.NewOSFilesystemManagerForRoot(cfg.Workspace.Root, cfg.Filesystem.Ignore)
	if err != nil {
		return nil, fmt.Errorf("creating filesystem manager: %w", err)
	}

	journal, err := database.NewJournalFromConfig(cfg.Database, cfg.HostID, reel.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	if err := journal.CheckMigrations(); err != nil {
		journal.Close()
		return nil, fmt.Errorf("journal schema out of date: %w", err)
	}

	// A newer snapshot in the vault means another run wrote history this
	// journal has never seen.
	remoteVersion, err := v.GetMetadataVersion(ctx, cfg.HostID, journalMetadataName)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("checking remote journal version: %w", err)
	}
	localMax, err := journal.MaxOperationID()
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("checking local journal version: %w", err)
	}
	if remoteVersion > localMax {
		journal.Close()
		return nil, fmt.Errorf("local journal is behind remote (local=%d, remote=%d): restore it from the vault or re-initialize", localMax, remoteVersion)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	generators, err := generate.NewSetFromConfig(cfg.Generators)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("creating generators: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	l, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	ws := reel.NewWorkspace(cfg.Workspace.Root, cfg.Workspace.UnitPrefixes)
	svc := reel.NewService(ws, reel.Deps{
		Vault:     v,
		Encryptor: enc,
		Generator: generators,
		Files:     files,
		Journal:   journal,
		Limiter:   generate.NewLimiter(cfg.Worker.RequestsPerMinute),
		Logger:    logger,
		Clock:     reel.RealClock{},
		IDGen:     reel.UUIDGenerator{},
	})

	return &ReelApp{
		cfg:        cfg,
		journal:    journal,
		vault:      v,
		files:      files,
		encryptor:  enc,
		generators: generators,
		service:    svc,
		op:         NewOperation(operation, parameters),
		logFile:    logFile,
		logger:     logger,
	}, nil
}

// MigrateJournal brings the configured journal schema up to date.
func MigrateJournal(cfg *config.Config) error {
	journal, err := database.NewJournalFromConfig(cfg.Database, cfg.HostID, reel.RealClock{})
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()
	if err := journal.MigrateUp(); err != nil {
		return fmt.Errorf("migrating journal: %w", err)
	}
	return nil
}

// SetupEncryption generates the age key pair named in cfg, protecting the
// private key with passphrase.
func SetupEncryption(cfg *config.Config, passphrase string) error {
	if cfg.Encryption.Type != "age" {
		return fmt.Errorf("encryption type %q does not use keys", cfg.Encryption.Type)
	}
	return encryption.NewAgeEncryptor(cfg.Encryption).Setup(passphrase)
}

// persistOperation saves the operation to the journal, giving it an
// auto-increment ID. Every ledger and job event written afterwards is
// tagged with it. Only mutating commands call this.
func (a *ReelApp) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	dbOp, err := a.journal.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Workspace returns the configured workspace.
func (a *ReelApp) Workspace() reel.Workspace {
	return a.service.Workspace()
}

// resolveDir turns a raw path into an absolute asset directory.
func resolveDir(rawDir string) (string, error) {
	abs, err := filepath.Abs(rawDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}

// resolveDocument accepts a document name under the workspace root or a
// path to a document directory.
func (a *ReelApp) resolveDocument(document string) (string, error) {
	if !strings.ContainsRune(document, filepath.Separator) {
		dir := a.Workspace().DocumentDir(document)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	dir, err := resolveDir(document)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("document %s: %w", document, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("document %s is not a directory", document)
	}
	return dir, nil
}

// Record registers content as the next version of typeName in rawDir.
func (a *ReelApp) Record(rawDir, typeName string, content io.Reader, producer string) (*reel.VersionRecord, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	dir, ct, err := dirAndType(rawDir, typeName)
	if err != nil {
		return nil, a.op.Track(err)
	}
	// Files synced in but not yet registered would collide with the next number.
	if _, err := a.service.Reconcile(dir); err != nil {
		return nil, a.op.Track(err)
	}
	rec, err := a.service.Ledger().RecordVersion(dir, ct, content, producer)
	return rec, a.op.Track(err)
}

// Versions lists every registered version of typeName in rawDir, oldest first.
func (a *ReelApp) Versions(rawDir, typeName string) ([]reel.VersionRecord, *reel.VersionRecord, error) {
	dir, ct, err := dirAndType(rawDir, typeName)
	if err != nil {
		return nil, nil, err
	}
	versions, err := a.service.Ledger().ListVersions(dir, ct)
	if err != nil {
		return nil, nil, err
	}
	latest, err := a.service.Ledger().GetLatest(dir, ct)
	if err != nil {
		return nil, nil, err
	}
	return versions, latest, nil
}

// Latest returns the latest record and its file path, or nil when nothing
// is registered.
func (a *ReelApp) Latest(rawDir, typeName string) (*reel.VersionRecord, string, error) {
	dir, ct, err := dirAndType(rawDir, typeName)
	if err != nil {
		return nil, "", err
	}
	rec, err := a.service.Ledger().GetLatest(dir, ct)
	if err != nil || rec == nil {
		return nil, "", err
	}
	return rec, filepath.Join(dir, rec.Filename), nil
}

// SetLatest moves the latest pointer of typeName in rawDir to version.
func (a *ReelApp) SetLatest(rawDir, typeName string, version int) (bool, error) {
	if err := a.persistOperation(); err != nil {
		return false, err
	}
	dir, ct, err := dirAndType(rawDir, typeName)
	if err != nil {
		return false, a.op.Track(err)
	}
	ok, err := a.service.Ledger().SetLatest(dir, ct, version)
	return ok, a.op.Track(err)
}

// Migrate registers legacy unversioned files in rawDir and discovers
// unregistered versions. It returns the number of versions registered.
func (a *ReelApp) Migrate(rawDir string) (int, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	dir, err := resolveDir(rawDir)
	if err != nil {
		return 0, a.op.Track(err)
	}
	n, err := a.service.Reconcile(dir)
	return n, a.op.Track(err)
}

// ExpectedVersion computes the expected version of rawDir in page scope,
// or in document scope when document is set.
func (a *ReelApp) ExpectedVersion(rawDir string, document bool) (int, error) {
	dir, err := resolveDir(rawDir)
	if err != nil {
		return 0, err
	}
	if !document {
		return a.service.Ledger().ExpectedVersionIn(reel.PageScope(dir))
	}
	scope, err := a.Workspace().DocumentScope(dir)
	if err != nil {
		return 0, err
	}
	return a.service.Ledger().ExpectedVersionIn(scope)
}

// Status reports every unit and slideshow stage of a document.
func (a *ReelApp) Status(document string) (*reel.DocumentReport, error) {
	dir, err := a.resolveDocument(document)
	if err != nil {
		return nil, err
	}
	return a.service.DocumentStatus(dir)
}

// PageStatus reports the page-scoped stages of one unit directory.
func (a *ReelApp) PageStatus(rawDir string) (*reel.UnitStatus, int, error) {
	dir, err := resolveDir(rawDir)
	if err != nil {
		return nil, 0, err
	}
	return a.service.PageStatus(dir)
}

// FastForward copies the latest version of typeName in rawDir forward to target.
func (a *ReelApp) FastForward(rawDir, typeName string, target int) (reel.FastForwardResult, error) {
	if err := a.persistOperation(); err != nil {
		return reel.FastForwardResult{}, err
	}
	dir, ct, err := dirAndType(rawDir, typeName)
	if err != nil {
		return reel.FastForwardResult{}, a.op.Track(err)
	}
	res, err := a.service.Ledger().FastForward(dir, ct, target)
	return res, a.op.Track(err)
}

// FastForwardDocument brings every lagging stage of a document up to the
// document expected version.
func (a *ReelApp) FastForwardDocument(document string) ([]reel.FastForwardOutcome, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	dir, err := a.resolveDocument(document)
	if err != nil {
		return nil, a.op.Track(err)
	}
	out, err := a.service.FastForwardDocument(dir)
	return out, a.op.Track(err)
}

// Discover registers unregistered versioned files in one document, or in
// the whole workspace when document is empty.
func (a *ReelApp) Discover(document string) (int, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	if document == "" {
		n, err := a.service.DiscoverAll()
		return n, a.op.Track(err)
	}
	dir, err := a.resolveDocument(document)
	if err != nil {
		return 0, a.op.Track(err)
	}
	n, err := a.service.DiscoverDocument(dir)
	return n, a.op.Track(err)
}

// Enqueue writes a pending job asking for version target of typeName.
func (a *ReelApp) Enqueue(rawDir, typeName, payload string, target int) (reel.JobID, error) {
	if err := a.persistOperation(); err != nil {
		return "", err
	}
	dir, ct, err := dirAndType(rawDir, typeName)
	if err != nil {
		return "", a.op.Track(err)
	}
	id, err := a.service.Queue().Enqueue(dir, ct, payload, target)
	return id, a.op.Track(err)
}

// Jobs lists jobs in one document, or the whole workspace when document is
// empty. A non-empty status keeps only jobs in that state.
func (a *ReelApp) Jobs(document string, status reel.JobStatus) ([]*reel.Job, error) {
	if document != "" {
		dir, err := a.resolveDocument(document)
		if err != nil {
			return nil, err
		}
		document = filepath.Base(dir)
	}
	dirs, err := a.service.ScopeDirs(document)
	if err != nil {
		return nil, err
	}
	jobs, err := a.service.Queue().ListJobs(dirs)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return jobs, nil
	}
	filtered := jobs[:0]
	for _, j := range jobs {
		if j.Status == status {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

// FindJob returns the job for typeName and target in rawDir in whatever
// state it is in.
func (a *ReelApp) FindJob(rawDir, typeName string, target int) (*reel.Job, error) {
	dir, ct, err := dirAndType(rawDir, typeName)
	if err != nil {
		return nil, err
	}
	jobs, err := a.service.Queue().ListJobs([]string{dir})
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.ContentType == ct && j.TargetVersion == target {
			return j, nil
		}
	}
	return nil, fmt.Errorf("%w: no job for %s v%d in %s", reel.ErrNotFound, ct, target, dir)
}

// Payload returns the instruction text of a job.
func (a *ReelApp) Payload(rawDir, typeName string, target int) (string, error) {
	job, err := a.FindJob(rawDir, typeName, target)
	if err != nil {
		return "", err
	}
	return a.service.Queue().ReadPayload(job)
}

// FailJob archives a job as failed by hand. Pending jobs are claimed first
// so that a running worker cannot pick them up in between.
func (a *ReelApp) FailJob(rawDir, typeName string, target int, msg string) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	job, err := a.FindJob(rawDir, typeName, target)
	if err != nil {
		return a.op.Track(err)
	}
	if job.Status == reel.JobPending {
		ok, err := a.service.Queue().Claim(job)
		if err != nil {
			return a.op.Track(err)
		}
		if !ok {
			return a.op.Track(fmt.Errorf("%w: %s was claimed by a worker", reel.ErrJobStateConflict, job.ID()))
		}
	}
	return a.op.Track(a.service.Queue().Fail(job, msg))
}

// RunWorker processes the queue until ctx is cancelled, or once. A zero
// interval uses the configured poll interval.
func (a *ReelApp) RunWorker(ctx context.Context, document string, interval time.Duration, once bool) error {
	if len(a.generators.Types()) == 0 {
		return errors.New("no generators configured")
	}
	if err := a.persistOperation(); err != nil {
		return err
	}
	if interval <= 0 {
		interval = generate.PollInterval(a.cfg.Worker)
	}
	return a.op.Track(a.service.RunWorker(ctx, document, interval, once))
}

// EncryptionEnabled reports whether synced files are encrypted.
func (a *ReelApp) EncryptionEnabled() bool {
	return a.encryptor != nil
}

// Sync runs one sync cycle against the vault. With encryption enabled,
// passphrase unlocks the private key for pulls; an empty passphrase
// skips pulls.
func (a *ReelApp) Sync(ctx context.Context, passphrase string) (reel.SyncSummary, error) {
	if err := a.persistOperation(); err != nil {
		return reel.SyncSummary{}, err
	}
	if err := a.vault.ValidateSetup(ctx); err != nil {
		return reel.SyncSummary{}, a.op.Track(fmt.Errorf("vault not ready: %w", err))
	}

	var dec reel.DecryptionContext
	if a.encryptor != nil && passphrase != "" {
		d, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			return reel.SyncSummary{}, a.op.Track(fmt.Errorf("unlocking private key: %w", err))
		}
		dec = d
	}
	sum, err := a.service.Sync(ctx, dec)
	return sum, a.op.Track(err)
}

// Watch registers new versioned files as they appear until ctx is cancelled.
func (a *ReelApp) Watch(ctx context.Context) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	debounce := time.Duration(a.cfg.Watch.DebounceMillis) * time.Millisecond
	w := watch.New(a.Workspace(), a.service, debounce, a.logger)
	w.OnReconcile = func(dir string, registered int, err error) {
		if err != nil {
			a.op.Track(err)
		}
	}
	return a.op.Track(w.Run(ctx))
}

// History returns the most recent CLI operations, newest first.
func (a *ReelApp) History(limit int) ([]*database.Operation, error) {
	return a.journal.ListOperations(limit)
}

// LedgerLog returns journaled ledger events, newest first. Empty rawDir and
// typeName match everything.
func (a *ReelApp) LedgerLog(rawDir, typeName string, limit int) ([]reel.LedgerEvent, error) {
	f, err := eventFilter(rawDir, typeName, limit)
	if err != nil {
		return nil, err
	}
	return a.journal.ListLedgerEvents(f)
}

// JobLog returns journaled queue transitions, newest first.
func (a *ReelApp) JobLog(rawDir, typeName string, limit int) ([]reel.JobEvent, error) {
	f, err := eventFilter(rawDir, typeName, limit)
	if err != nil {
		return nil, err
	}
	return a.journal.ListJobEvents(f)
}

func eventFilter(rawDir, typeName string, limit int) (database.EventFilter, error) {
	f := database.EventFilter{Limit: limit}
	if rawDir != "" {
		dir, err := resolveDir(rawDir)
		if err != nil {
			return f, err
		}
		f.Dir = dir
	}
	if typeName != "" {
		ct, err := reel.ParseContentType(typeName)
		if err != nil {
			return f, err
		}
		f.ContentType = ct
	}
	return f, nil
}

func dirAndType(rawDir, typeName string) (string, reel.ContentType, error) {
	dir, err := resolveDir(rawDir)
	if err != nil {
		return "", "", err
	}
	ct, err := reel.ParseContentType(typeName)
	if err != nil {
		return "", "", err
	}
	return dir, ct, nil
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the
// journal, and uploads the snapshot to the vault.
// For non-persisted operations: just closes the journal.
func (a *ReelApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.journal.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}

		// VACUUM INTO refuses to overwrite, so only the name is reserved.
		tmpDir, err := os.MkdirTemp("", "reel-journal-*")
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("creating temp dir for journal snapshot: %w", err)
		}

		var snapshot string
		if tmpDir != "" {
			defer os.RemoveAll(tmpDir)
			snapshot = filepath.Join(tmpDir, "journal.db")
			if err := a.journal.BackupTo(snapshot); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("snapshotting journal: %w", err)
				}
				snapshot = ""
			}
		}

		if err := a.journal.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing journal: %w", err)
		}

		// Upload the snapshot with version = operation ID.
		if snapshot != "" {
			if err := a.uploadMetadata(snapshot, a.op.ID); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	} else if err := a.journal.Close(); err != nil {
		firstErr = fmt.Errorf("closing journal: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// uploadMetadata opens the journal snapshot and uploads it to the vault.
func (a *ReelApp) uploadMetadata(path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening journal snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat journal snapshot: %w", err)
	}

	if err := a.vault.PutMetadata(context.Background(), a.cfg.HostID, journalMetadataName, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading journal snapshot to vault: %w", err)
	}
	return nil
}
