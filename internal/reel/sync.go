package reel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SyncSummary counts what one sync cycle moved.
type SyncSummary struct {
	Pushed     int
	Pulled     int
	Skipped    int
	Discovered int
}

// Sync makes sure every local file has a remote copy and every remote
// object has a local copy, purely by existence, then runs discovery over the
// workspace to register anything that was pulled. When an Encryptor is
// configured objects are encrypted on push, and pulls need dec; without it
// pulls are skipped.
func (s *Service) Sync(ctx context.Context, dec DecryptionContext) (SyncSummary, error) {
	var sum SyncSummary
	if s.vault == nil {
		return sum, errors.New("no vault configured")
	}
	if s.files == nil {
		return sum, errors.New("no file index configured")
	}
	root := s.workspace.Root

	local, err := s.files.ListFiles(root)
	if err != nil {
		return sum, fmt.Errorf("listing local files: %w", err)
	}
	localSet := make(map[string]bool, len(local))
	for _, key := range local {
		localSet[key] = true
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		exists, err := s.vault.Exists(ctx, key)
		if err != nil {
			return sum, fmt.Errorf("checking remote %s: %w", key, err)
		}
		if exists {
			continue
		}
		if err := s.push(ctx, root, key); err != nil {
			return sum, err
		}
		sum.Pushed++
	}

	remote, err := s.vault.List(ctx, "")
	if err != nil {
		return sum, fmt.Errorf("listing remote objects: %w", err)
	}
	encrypted := s.encryptor != nil
	for _, key := range remote {
		if localSet[key] || s.files.Ignored(key) {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(key)) {
			s.logger.Warn("skipping remote object outside workspace", "key", key)
			sum.Skipped++
			continue
		}
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(key))); err == nil {
			continue
		}
		if encrypted && dec == nil {
			sum.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := s.pull(ctx, root, key, dec); err != nil {
			return sum, err
		}
		sum.Pulled++
	}
	if sum.Skipped > 0 && encrypted && dec == nil {
		s.logger.Warn("encrypted objects not pulled without a passphrase", "count", sum.Skipped)
	}

	n, err := s.DiscoverAll()
	if err != nil {
		return sum, err
	}
	sum.Discovered = n
	s.logger.Info("sync finished", "pushed", sum.Pushed, "pulled", sum.Pulled, "skipped", sum.Skipped, "discovered", sum.Discovered)
	return sum, nil
}

func (s *Service) push(ctx context.Context, root, key string) error {
	path := filepath.Join(root, filepath.FromSlash(key))
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var body io.Reader = f
	var size int64
	if s.encryptor != nil {
		spool, err := os.CreateTemp("", "reel-push-*")
		if err != nil {
			return fmt.Errorf("creating encryption spool: %w", err)
		}
		defer os.Remove(spool.Name())
		defer spool.Close()

		if err := s.encryptor.Encrypt(f, spool); err != nil {
			return fmt.Errorf("encrypting %s: %w", key, err)
		}
		if size, err = spool.Seek(0, io.SeekCurrent); err != nil {
			return fmt.Errorf("sizing encrypted %s: %w", key, err)
		}
		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewinding encrypted %s: %w", key, err)
		}
		body = spool
	} else {
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		size = info.Size()
	}

	if err := s.vault.Put(ctx, key, body, size); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	s.logger.Debug("pushed", "key", key, "size", size)
	return nil
}

func (s *Service) pull(ctx context.Context, root, key string, dec DecryptionContext) error {
	dest := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".reel-pull-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if dec != nil && s.encryptor != nil {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(s.vault.Get(ctx, key, pw))
		}()
		err = dec.Decrypt(pr, tmp)
		pr.CloseWithError(err)
	} else {
		err = s.vault.Get(ctx, key, tmp)
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("placing %s: %w", key, err)
	}
	s.logger.Debug("pulled", "key", key)
	return nil
}
