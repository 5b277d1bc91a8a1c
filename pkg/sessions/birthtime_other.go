//go:build !darwin

package sessions

import "os"

// createdMillis falls back to the modification time where the platform does
// not expose a birth time through os.FileInfo.
func createdMillis(info os.FileInfo) int64 {
	return info.ModTime().UnixMilli()
}
