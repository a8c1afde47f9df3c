package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Metadata describes one uploaded snapshot archive.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// Info summarizes a snapshot already stored in the bucket.
type Info struct {
	Filename  string
	Timestamp time.Time
	SizeBytes int64
	AgeHours  int64
}

const archivePrefix = "chainwatch-backup-"
const timestampLayout = "2006-01-02-150405"

// Service periodically snapshots the store's SQLite file and uploads it
// to an S3-compatible bucket via an R2Client.
type Service struct {
	client    *R2Client
	storePath func() string
	stagingDir string
	log        zerolog.Logger
}

// NewService wires a backup Service. storePath is a thunk rather than a
// plain string so the service always picks up the live database file
// path, even if the store is reopened.
func NewService(client *R2Client, storePath func() string, stagingDir string, log zerolog.Logger) *Service {
	return &Service{
		client:     client,
		storePath:  storePath,
		stagingDir: stagingDir,
		log:        log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUpload snapshots the store file, archives it with its metadata,
// and uploads the archive to the bucket.
func (s *Service) CreateAndUpload(ctx context.Context) error {
	if s.client == nil {
		return nil // backups disabled
	}

	s.log.Info().Msg("starting store backup")
	start := time.Now()

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(s.stagingDir)

	dbPath := s.storePath()
	stagedDB := filepath.Join(s.stagingDir, "chainwatch.db")
	if err := copyFile(dbPath, stagedDB); err != nil {
		return fmt.Errorf("failed to stage database copy: %w", err)
	}

	info, err := os.Stat(stagedDB)
	if err != nil {
		return fmt.Errorf("failed to stat staged database: %w", err)
	}

	checksum, err := checksumFile(stagedDB)
	if err != nil {
		return fmt.Errorf("failed to checksum staged database: %w", err)
	}

	timestamp := time.Now().UTC()
	archiveName := fmt.Sprintf("%s%s.tar.gz", archivePrefix, timestamp.Format(timestampLayout))
	meta := Metadata{Timestamp: timestamp, Filename: "chainwatch.db", SizeBytes: info.Size(), Checksum: checksum}

	metaPath := filepath.Join(s.stagingDir, "backup-metadata.json")
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode backup metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaBytes, 0644); err != nil {
		return fmt.Errorf("failed to write backup metadata: %w", err)
	}

	archivePath := filepath.Join(s.stagingDir, archiveName)
	if err := createArchive(archivePath, []string{stagedDB, metaPath}); err != nil {
		return fmt.Errorf("failed to create backup archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat backup archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open backup archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.client.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("failed to upload backup archive: %w", err)
	}

	s.log.Info().
		Dur("duration", time.Since(start)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("store backup completed")

	return nil
}

// List returns every snapshot in the bucket, newest first.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	if s.client == nil {
		return nil, nil
	}

	objects, err := s.client.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	now := time.Now()
	backups := make([]Info, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".tar.gz") {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(obj.Key, archivePrefix), ".tar.gz")
		ts, err := time.Parse(timestampLayout, tsStr)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("failed to parse backup timestamp")
			continue
		}
		backups = append(backups, Info{
			Filename:  obj.Key,
			Timestamp: ts,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// Rotate deletes snapshots older than retentionDays, always keeping at
// least minKeep of the most recent ones.
func (s *Service) Rotate(ctx context.Context, retentionDays int, minKeep int) error {
	if s.client == nil {
		return nil
	}

	backups, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= minKeep || retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for i, b := range backups {
		if i < minKeep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.client.Delete(ctx, b.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", b.Filename).Msg("failed to delete old backup")
			continue
		}
		s.log.Info().Str("filename", b.Filename).Msg("rotated old backup")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func createArchive(archivePath string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, file := range files {
		if err := addFileToArchive(tw, file); err != nil {
			return err
		}
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
