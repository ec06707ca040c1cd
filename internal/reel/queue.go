package reel

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a queue job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

var allJobStatuses = []JobStatus{JobPending, JobProcessing, JobCompleted, JobFailed}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, s := range allJobStatuses {
		set[s] = struct{}{}
	}
	return set
}()

type jobTransition struct {
	from JobStatus
	to   JobStatus
}

var legalJobTransitions = map[jobTransition]struct{}{
	{from: JobPending, to: JobProcessing}:   {},
	{from: JobProcessing, to: JobCompleted}: {},
	{from: JobProcessing, to: JobFailed}:    {},
}

// ParseJobStatus normalizes and validates a status string.
func ParseJobStatus(value string) (JobStatus, bool) {
	s := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := jobStatusSet[s]
	return s, ok
}

// CanTransitionTo reports whether s -> next is a legal transition.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	_, ok := legalJobTransitions[jobTransition{from: s, to: next}]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// On-disk suffixes. The active job file keeps its name while pending and
// processing; a sidecar marks the claim; terminal files get a suffix.
const (
	claimSuffix     = ".processing"
	completedSuffix = ".completed"
	failedSuffix    = ".failed"

	trailerCompleted  = "# Completed at: "
	trailerFailed     = "# Failed at: "
	trailerError      = "# Error: "
	trailerProcessing = "# Processing started: "

	headerStatus = "# Status: "
)

var jobFilePattern = regexp.MustCompile(`^(.+)_prompt_for_v(\d+)\.txt(\.completed|\.failed)?$`)

// JobID identifies a job by its directory, content type and target version.
type JobID string

// Job is a deferred generation request.
type Job struct {
	Dir           string
	ContentType   ContentType
	TargetVersion int
	Status        JobStatus
	Error         string

	claimToken string
	// file is set when the status came from a legacy header rather than
	// the file name, so the job file keeps its active name.
	file string
}

// JobFilename returns the active job filename for ct and target.
func JobFilename(ct ContentType, target int) string {
	return ct.JobPrefix() + "_prompt_for_v" + strconv.Itoa(target) + ".txt"
}

func (j *Job) ID() JobID {
	return JobID(filepath.Join(j.Dir, JobFilename(j.ContentType, j.TargetVersion)))
}

func (j *Job) activePath() string {
	return filepath.Join(j.Dir, JobFilename(j.ContentType, j.TargetVersion))
}

func (j *Job) claimPath() string { return j.activePath() + claimSuffix }

// Path is the job file for the job's current status.
func (j *Job) Path() string {
	if j.file != "" {
		return j.file
	}
	switch j.Status {
	case JobCompleted:
		return j.activePath() + completedSuffix
	case JobFailed:
		return j.activePath() + failedSuffix
	}
	return j.activePath()
}

// Queue is a file-based job queue living inside asset directories.
type Queue struct {
	clock   Clock
	idgen   IDGenerator
	logger  Logger
	journal Journal
}

func NewQueue(clock Clock, idgen IDGenerator, logger Logger, journal Journal) *Queue {
	if journal == nil {
		journal = NopJournal{}
	}
	return &Queue{clock: clock, idgen: idgen, logger: logger, journal: journal}
}

func (q *Queue) emit(j *Job) {
	ev := JobEvent{
		Dir:           j.Dir,
		ContentType:   j.ContentType,
		TargetVersion: j.TargetVersion,
		Status:        j.Status,
		Error:         j.Error,
		At:            q.clock.Now().UTC(),
	}
	if err := q.journal.JobEvent(ev); err != nil {
		q.logger.Warn("journaling job event failed", "job", j.ID(), "status", j.Status, "error", err)
	}
}

// Enqueue writes a pending job. A job with the same identity in any state
// yields ErrJobExists.
func (q *Queue) Enqueue(dir string, ct ContentType, payload string, target int) (JobID, error) {
	if err := checkType(ct); err != nil {
		return "", err
	}
	if target < 1 {
		return "", fmt.Errorf("target version must be positive, got %d", target)
	}
	if strings.TrimSpace(payload) == "" {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidContent)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", storageErr("stat", dir, fmt.Errorf("asset directory does not exist"))
	}

	job := &Job{Dir: dir, ContentType: ct, TargetVersion: target, Status: JobPending}
	active := job.activePath()
	for _, p := range []string{active + completedSuffix, active + failedSuffix} {
		if _, err := os.Stat(p); err == nil {
			return "", fmt.Errorf("%w: %s", ErrJobExists, p)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(active)+".tmp-*")
	if err != nil {
		return "", storageErr("create", active, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(strings.TrimSpace(payload) + "\n"); err != nil {
		tmp.Close()
		return "", storageErr("write", active, err)
	}
	if err := tmp.Close(); err != nil {
		return "", storageErr("close", active, err)
	}
	// Link fails if the target exists, so a pending job is never replaced.
	if err := os.Link(tmpPath, active); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrJobExists, active)
		}
		return "", storageErr("link", active, err)
	}

	q.logger.Info("job enqueued", "job", job.ID(), "type", ct, "target", target)
	q.emit(job)
	return job.ID(), nil
}

// ListPending returns unclaimed jobs in dirs, ordered by dir, target and type.
func (q *Queue) ListPending(dirs []string) ([]*Job, error) {
	jobs, err := q.ListJobs(dirs)
	if err != nil {
		return nil, err
	}
	pending := jobs[:0]
	for _, j := range jobs {
		if j.Status == JobPending {
			pending = append(pending, j)
		}
	}
	return pending, nil
}

// ListJobs returns jobs in every state found in dirs.
func (q *Queue) ListJobs(dirs []string) ([]*Job, error) {
	var jobs []*Job
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, storageErr("readdir", dir, err)
		}
		names := make(map[string]bool, len(entries))
		for _, e := range entries {
			names[e.Name()] = true
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			m := jobFilePattern.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			ct, ok := contentTypeForJobPrefix(m[1])
			if !ok {
				continue
			}
			target, err := strconv.Atoi(m[2])
			if err != nil || target < 1 {
				continue
			}
			job := &Job{Dir: dir, ContentType: ct, TargetVersion: target}
			switch m[3] {
			case completedSuffix:
				job.Status = JobCompleted
			case failedSuffix:
				job.Status = JobFailed
				job.Error = readTrailerError(filepath.Join(dir, e.Name()))
			default:
				job.Status = JobPending
				if names[e.Name()+claimSuffix] {
					job.Status = JobProcessing
				} else if st, ok := readHeaderStatus(filepath.Join(dir, e.Name())); ok && st != JobPending {
					job.Status = st
					job.file = filepath.Join(dir, e.Name())
					if st == JobFailed {
						job.Error = readTrailerError(job.file)
					}
				}
			}
			jobs = append(jobs, job)
		}
	}
	sort.SliceStable(jobs, func(i, k int) bool {
		a, b := jobs[i], jobs[k]
		if a.Dir != b.Dir {
			return a.Dir < b.Dir
		}
		if a.TargetVersion != b.TargetVersion {
			return a.TargetVersion < b.TargetVersion
		}
		return a.ContentType < b.ContentType
	})
	return jobs, nil
}

// Claim moves a pending job to processing. The exclusively created claim
// sidecar is the only gate, so of two racing workers exactly one wins; the
// loser, or any caller holding a non-pending job, gets false.
func (q *Queue) Claim(job *Job) (bool, error) {
	if !job.Status.CanTransitionTo(JobProcessing) {
		q.logger.Debug("claim refused", "job", job.ID(), "status", job.Status)
		return false, nil
	}
	if _, err := os.Stat(job.activePath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, storageErr("stat", job.activePath(), err)
	}
	// Files written by older workers carry their state in a header.
	if st, ok := readHeaderStatus(job.activePath()); ok && st != JobPending {
		q.logger.Debug("claim refused", "job", job.ID(), "status", st)
		return false, nil
	}

	token := q.idgen.New()
	f, err := os.OpenFile(job.claimPath(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			q.logger.Debug("claim lost", "job", job.ID())
			return false, nil
		}
		return false, storageErr("create", job.claimPath(), err)
	}
	fmt.Fprintf(f, "%s\n%s\n", token, q.clock.Now().UTC().Format(time.RFC3339))
	if err := f.Close(); err != nil {
		os.Remove(job.claimPath())
		return false, storageErr("close", job.claimPath(), err)
	}

	// The job may have been archived between the stat and the claim.
	if _, err := os.Stat(job.activePath()); err != nil {
		os.Remove(job.claimPath())
		return false, nil
	}

	job.Status = JobProcessing
	job.claimToken = token
	q.logger.Info("job claimed", "job", job.ID())
	q.emit(job)
	return true, nil
}

// Complete archives a processing job as completed.
func (q *Queue) Complete(job *Job) error {
	trailer := trailerCompleted + q.clock.Now().UTC().Format(time.RFC3339) + "\n"
	if err := q.finish(job, JobCompleted, trailer); err != nil {
		return err
	}
	q.logger.Info("job completed", "job", job.ID())
	return nil
}

// Fail archives a processing job as failed with msg attached.
func (q *Queue) Fail(job *Job, msg string) error {
	msg = strings.Join(strings.Fields(msg), " ")
	trailer := trailerFailed + q.clock.Now().UTC().Format(time.RFC3339) + "\n" + trailerError + msg + "\n"
	job.Error = msg
	if err := q.finish(job, JobFailed, trailer); err != nil {
		return err
	}
	q.logger.Warn("job failed", "job", job.ID(), "error", msg)
	return nil
}

func (q *Queue) finish(job *Job, next JobStatus, trailer string) error {
	if !job.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s is %s, cannot become %s", ErrJobStateConflict, job.ID(), job.Status, next)
	}
	claim, err := os.ReadFile(job.claimPath())
	if err != nil {
		return fmt.Errorf("%w: %s has no claim", ErrJobStateConflict, job.ID())
	}
	if job.claimToken != "" && !strings.HasPrefix(string(claim), job.claimToken+"\n") {
		return fmt.Errorf("%w: %s is claimed by another worker", ErrJobStateConflict, job.ID())
	}

	active := job.activePath()
	f, err := os.OpenFile(active, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return storageErr("open", active, err)
	}
	if _, err := f.WriteString("\n" + trailer); err != nil {
		f.Close()
		return storageErr("write", active, err)
	}
	if err := f.Close(); err != nil {
		return storageErr("close", active, err)
	}

	job.Status = next
	if err := os.Rename(active, job.Path()); err != nil {
		job.Status = JobProcessing
		return storageErr("rename", active, err)
	}
	if err := os.Remove(job.claimPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		q.logger.Warn("removing claim sidecar failed", "job", job.ID(), "error", err)
	}
	q.emit(job)
	return nil
}

// ReadPayload returns the instruction text of a job in any state.
func (q *Queue) ReadPayload(job *Job) (string, error) {
	data, err := os.ReadFile(job.Path())
	if err != nil {
		return "", storageErr("read", job.Path(), err)
	}
	return ParsePayload(string(data)), nil
}

// ParsePayload extracts the instruction from a job file. Plain files are
// the instruction itself. Legacy files start with "#" header lines and a
// blank line. Archive trailers at the end are dropped in both cases.
func ParsePayload(content string) string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "#") {
		i := 0
		for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "#") {
			i++
		}
		lines = lines[i:]
	}

	end := len(lines)
	for end > 0 {
		line := strings.TrimSpace(lines[end-1])
		if line == "" || isTrailer(line) {
			end--
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines[:end], "\n"))
}

func isTrailer(line string) bool {
	for _, p := range []string{trailerCompleted, trailerFailed, trailerError, trailerProcessing} {
		if strings.HasPrefix(line, strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}

// readHeaderStatus reports the "# Status:" line of a legacy job header.
func readHeaderStatus(path string) (JobStatus, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "#") {
			break
		}
		if rest, ok := strings.CutPrefix(line, strings.TrimSpace(headerStatus)); ok {
			return ParseJobStatus(rest)
		}
	}
	return "", false
}

func readTrailerError(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	var msg string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if rest, ok := strings.CutPrefix(sc.Text(), trailerError); ok {
			msg = rest
		}
	}
	return msg
}
