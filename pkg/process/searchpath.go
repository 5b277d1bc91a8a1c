package process

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// systemBinDirs are appended after the inherited PATH, in this order.
var systemBinDirs = []string{
	"/opt/homebrew/bin",
	"/usr/local/bin",
	"/usr/bin",
	"/bin",
	"/usr/sbin",
	"/sbin",
}

// homeBinDirs are home-relative tool directories appended after systemBinDirs.
var homeBinDirs = []string{
	filepath.Join(".local", "bin"),
	filepath.Join(".local", "share", "mise", "shims"),
	filepath.Join(".cargo", "bin"),
	filepath.Join(".bun", "bin"),
}

// SearchPathOptions describes the inputs of BuildSearchPath. Zero values
// fall back to the current environment.
type SearchPathOptions struct {
	// Inherited is the PATH value to start from. Defaults to $PATH.
	Inherited *string
	// Home is the user's home directory. Defaults to $HOME.
	Home *string
	// AgentBin is a user-configured agent binary; its parent is appended last.
	AgentBin string
	// ListDir lists a directory's entries; used to discover nvm installs.
	ListDir func(dir string) ([]os.DirEntry, error)
	// IsDir reports whether a path is an existing directory.
	IsDir func(path string) bool
}

// BuildSearchPath returns the ordered, de-duplicated list of directories the
// agent process is launched with. Inherited entries keep their order; each
// extra directory is skipped if already present.
func BuildSearchPath(opts SearchPathOptions) []string {
	inherited := os.Getenv("PATH")
	if opts.Inherited != nil {
		inherited = *opts.Inherited
	}
	home := os.Getenv("HOME")
	if opts.Home != nil {
		home = *opts.Home
	}
	listDir := opts.ListDir
	if listDir == nil {
		listDir = os.ReadDir
	}
	isDir := opts.IsDir
	if isDir == nil {
		isDir = func(p string) bool {
			info, err := os.Stat(p)
			return err == nil && info.IsDir()
		}
	}

	var dirs []string
	for _, entry := range strings.Split(inherited, string(os.PathListSeparator)) {
		if entry != "" {
			dirs = append(dirs, entry)
		}
	}

	extras := append([]string(nil), systemBinDirs...)
	if home != "" {
		for _, rel := range homeBinDirs {
			extras = append(extras, filepath.Join(home, rel))
		}
		extras = append(extras, nvmBinDirs(home, listDir, isDir)...)
	}
	if bin := strings.TrimSpace(opts.AgentBin); bin != "" {
		extras = append(extras, filepath.Dir(bin))
	}

	seen := make(map[string]struct{}, len(dirs)+len(extras))
	for _, d := range dirs {
		seen[d] = struct{}{}
	}
	for _, extra := range extras {
		if _, ok := seen[extra]; ok {
			continue
		}
		seen[extra] = struct{}{}
		dirs = append(dirs, extra)
	}
	return dirs
}

// JoinSearchPath renders dirs as a PATH value. An empty list yields "".
func JoinSearchPath(dirs []string) string {
	return strings.Join(dirs, string(os.PathListSeparator))
}

func nvmBinDirs(home string, listDir func(string) ([]os.DirEntry, error), isDir func(string) bool) []string {
	root := filepath.Join(home, ".nvm", "versions", "node")
	entries, err := listDir(root)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		bin := filepath.Join(root, name, "bin")
		if isDir(bin) {
			out = append(out, bin)
		}
	}
	return out
}

// MergeEnv returns base with each key in overrides replaced or appended.
// Keys are matched case-sensitively in KEY=VALUE form.
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	applied := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if v, ok := overrides[key]; ok {
			out = append(out, key+"="+v)
			applied[key] = true
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if !applied[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
