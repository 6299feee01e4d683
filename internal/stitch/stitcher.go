package stitch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirResolver resolves track IDs to files under a single directory. Track
// IDs must be plain names; anything resembling a path is rejected so a job
// cannot reach outside the track directory.
type DirResolver struct {
	Dir string
	Ext string // appended to the track ID, e.g. ".mp3"
}

// Resolve returns the path for trackID, verifying the file exists.
func (r DirResolver) Resolve(trackID string) (string, error) {
	if trackID == "" || trackID != filepath.Base(trackID) {
		return "", fmt.Errorf("invalid track ID %q", trackID)
	}
	path := filepath.Join(r.Dir, trackID+r.Ext)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("track %q: %w", trackID, err)
	}
	return path, nil
}

// FileStitcher concatenates track files into a single output file per job.
// Artifacts are written to a temporary name and renamed into place on
// Close, so a partial or discarded artifact is never visible under its
// final name.
type FileStitcher struct {
	OutputDir string
}

// Create opens a new artifact for jobID.
func (s FileStitcher) Create(jobID string) (Artifact, error) {
	if err := os.MkdirAll(s.OutputDir, 0750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	final := filepath.Join(s.OutputDir, jobID+".bin")
	tmp := final + ".partial"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return nil, fmt.Errorf("creating artifact: %w", err)
	}
	return &fileArtifact{file: f, tmp: tmp, final: final}, nil
}

type fileArtifact struct {
	file  *os.File
	tmp   string
	final string
}

func (a *fileArtifact) AppendTrack(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	if _, err := io.Copy(a.file, src); err != nil {
		return err
	}
	return nil
}

func (a *fileArtifact) Close() (string, error) {
	if err := a.file.Sync(); err != nil {
		a.file.Close()
		return "", err
	}
	if err := a.file.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(a.tmp, a.final); err != nil {
		return "", err
	}
	return a.final, nil
}

func (a *fileArtifact) Discard() {
	a.file.Close()
	os.Remove(a.tmp)
}
