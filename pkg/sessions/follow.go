package sessions

import (
	"context"
	"io"
	stdlog "log"

	"github.com/hpcloud/tail"

	"github.com/grovetools/claudemon/pkg/models"
)

// FollowOptions controls Follow.
type FollowOptions struct {
	// FromEnd skips the existing transcript and only reports new messages.
	FromEnd bool
	// Poll uses polling instead of inotify, for filesystems without it.
	Poll bool
}

// Follow tails a transcript and calls fn for every user or assistant message
// appended to it until ctx is cancelled. The file may not exist yet.
func Follow(ctx context.Context, sessionID, transcriptPath string, opts FollowOptions, fn func(models.HistoryItem)) error {
	whence := io.SeekStart
	if opts.FromEnd {
		whence = io.SeekEnd
	}
	t, err := tail.TailFile(transcriptPath, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      opts.Poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return err
	}
	defer t.Cleanup()

	index := 0
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				continue
			}
			if item, ok := historyItem(sessionID, index, line.Text); ok {
				fn(item)
			}
			index++
		}
	}
}
