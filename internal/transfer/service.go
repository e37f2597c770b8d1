// Package transfer moves files between the desktop and the cluster in
// fixed-size chunks over the SFTP subsystem, emitting progress events
// after every chunk. A transfer that fails partway leaves the partial
// remote file in place; there is no resume and no rename-on-completion.
package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"namdrunner/internal/errdefs"
	"namdrunner/internal/events"
	"namdrunner/internal/logger"

	"github.com/pkg/sftp"
)

// DefaultChunkSize is the reference transfer chunk size.
const DefaultChunkSize = 256 * 1024

// SessionProvider hands out exclusive SFTP access to the single cluster
// session. Satisfied by *ssh.Service.
type SessionProvider interface {
	WithSFTP(fn func(client *sftp.Client) error) error
}

type Service struct {
	session      SessionProvider
	bus          *events.Bus
	chunkSize    int
	chunkTimeout time.Duration
}

func NewService(session SessionProvider, bus *events.Bus, chunkSize int, chunkTimeout time.Duration) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Service{
		session:      session,
		bus:          bus,
		chunkSize:    chunkSize,
		chunkTimeout: chunkTimeout,
	}
}

// Upload copies a local file to remotePath in chunks. Each chunk write is
// independently timed and followed by a flush; a TransferProgress event
// fires after every chunk.
func (s *Service) Upload(ctx context.Context, localPath, remotePath string) error {
	local, err := os.Open(localPath)
	if err != nil {
		return errdefs.Wrap(errdefs.FileSystem, err, "cannot open local file %s", localPath)
	}
	defer local.Close()

	info, err := local.Stat()
	if err != nil {
		return errdefs.Wrap(errdefs.FileSystem, err, "cannot stat local file %s", localPath)
	}

	name := filepath.Base(localPath)
	start := time.Now()

	err = s.session.WithSFTP(func(client *sftp.Client) error {
		remote, err := client.Create(remotePath)
		if err != nil {
			return classifySFTPError(err, remotePath)
		}
		defer remote.Close()

		dst := &timedWriter{ctx: ctx, w: remote, timeout: s.chunkTimeout}

		_, err = copyChunks(dst, local, s.chunkSize, s.progressEmitter(name, info.Size()))
		if err != nil {
			return classifySFTPError(err, remotePath)
		}
		return nil
	})

	s.finish(name, info.Size(), start, err)
	return err
}

// Download copies a remote file to localPath in chunks, mirroring Upload.
func (s *Service) Download(ctx context.Context, remotePath, localPath string) error {
	name := filepath.Base(remotePath)
	start := time.Now()
	var total int64

	err := s.session.WithSFTP(func(client *sftp.Client) error {
		remote, err := client.Open(remotePath)
		if err != nil {
			return classifySFTPError(err, remotePath)
		}
		defer remote.Close()

		info, err := remote.Stat()
		if err != nil {
			return classifySFTPError(err, remotePath)
		}
		total = info.Size()

		local, err := os.Create(localPath)
		if err != nil {
			return errdefs.Wrap(errdefs.FileSystem, err, "cannot create local file %s", localPath)
		}
		defer local.Close()

		src := &timedReader{ctx: ctx, r: remote, timeout: s.chunkTimeout}

		_, err = copyChunks(local, src, s.chunkSize, s.progressEmitter(name, total))
		if err != nil {
			return classifySFTPError(err, remotePath)
		}
		return nil
	})

	s.finish(name, total, start, err)
	return err
}

func (s *Service) progressEmitter(name string, total int64) func(written int64) {
	return func(written int64) {
		percentage := 100.0
		if total > 0 {
			percentage = float64(written) / float64(total) * 100
		}

		s.publish(events.TransferProgressEvent{
			BaseEvent:        events.BaseEvent{EventType: events.EventTransferProgress, Time: time.Now()},
			FileName:         name,
			BytesTransferred: written,
			TotalBytes:       total,
			Percentage:       percentage,
		})
	}
}

func (s *Service) finish(name string, total int64, start time.Time, err error) {
	if err != nil {
		logger.Error("transfer of %s failed: %v", name, err)
		s.publish(events.TransferFailedEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventTransferFailed, Time: time.Now()},
			FileName:  name,
			Err:       err,
		})
		return
	}

	logger.Debug("transferred %s (%d bytes) in %s", name, total, time.Since(start))
	s.publish(events.TransferCompletedEvent{
		BaseEvent:  events.BaseEvent{EventType: events.EventTransferCompleted, Time: time.Now()},
		FileName:   name,
		TotalBytes: total,
		Duration:   time.Since(start),
	})
}

func (s *Service) publish(event events.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}

// classifySFTPError maps SFTP-layer failures into the error taxonomy.
// Errors that already carry a classification pass through unchanged.
func classifySFTPError(err error, path string) error {
	var classified *errdefs.Error
	if errors.As(err, &classified) {
		return err
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return errdefs.Wrap(errdefs.FileSystem, err, "remote file not found: %s", path)
	case errors.Is(err, os.ErrPermission):
		return errdefs.Wrap(errdefs.Permission, err, "permission denied: %s", path)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return errdefs.Wrap(errdefs.Permission, err, "permission denied: %s", path)
	case strings.Contains(msg, "no such file"):
		return errdefs.Wrap(errdefs.FileSystem, err, "remote file not found: %s", path)
	case errors.Is(err, io.EOF), strings.Contains(msg, "connection"), strings.Contains(msg, "broken pipe"):
		return errdefs.Wrap(errdefs.Network, err, "connection lost during transfer of %s", path)
	}

	return errdefs.Wrap(errdefs.FileSystem, err, "transfer failed for %s", path)
}
