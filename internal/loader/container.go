package loader

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Kind describes the physical shape of a container.
type Kind string

const (
	KindDirectory Kind = "directory"
	KindArchive   Kind = "archive"
	KindAAR       Kind = "aar"
)

// Entry is one class candidate inside a container.
type Entry struct {
	// Name is the entry path inside the container, slash separated.
	Name string
	Size int64
	open func() ([]byte, error)
}

// Read returns the entry bytes.
func (e Entry) Read() ([]byte, error) { return e.open() }

// Container is an ordered source of class entries from one physical location.
type Container interface {
	Path() string
	Kind() Kind
	// Entries lists class entries in walk or archive order.
	Entries() ([]Entry, error)
	Close() error
}

// isClassEntry filters out everything that does not describe a loadable
// class: resources, module descriptors and multi-release overlays.
func isClassEntry(name string) bool {
	if !strings.HasSuffix(name, ".class") {
		return false
	}
	if path.Base(name) == "module-info.class" {
		return false
	}
	return !strings.HasPrefix(name, "META-INF/versions/")
}

// Open returns the container at p. Directories are walked, .aar files expose
// their embedded jars and anything else must be a zip-format archive.
func Open(p string) (Container, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, &UnreadableArtifactError{Path: p, Err: err}
	}
	if info.IsDir() {
		return &dirContainer{root: p}, nil
	}
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, &UnreadableArtifactError{Path: p, Err: fmt.Errorf("not a directory or zip archive: %w", err)}
	}
	if strings.EqualFold(filepath.Ext(p), ".aar") {
		return &aarContainer{path: p, zr: zr}, nil
	}
	return &archiveContainer{path: p, zr: zr}, nil
}

type dirContainer struct {
	root string
}

func (d *dirContainer) Path() string { return d.root }
func (d *dirContainer) Kind() Kind   { return KindDirectory }
func (d *dirContainer) Close() error { return nil }

func (d *dirContainer) Entries() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(d.root, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !isClassEntry(name) {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name: name,
			Size: info.Size(),
			open: func() ([]byte, error) { return os.ReadFile(p) },
		})
		return nil
	})
	if err != nil {
		return nil, &UnreadableArtifactError{Path: d.root, Err: err}
	}
	return entries, nil
}

type archiveContainer struct {
	path string
	zr   *zip.ReadCloser
}

func (a *archiveContainer) Path() string { return a.path }
func (a *archiveContainer) Kind() Kind   { return KindArchive }
func (a *archiveContainer) Close() error { return a.zr.Close() }

func (a *archiveContainer) Entries() ([]Entry, error) {
	return zipEntries(&a.zr.Reader, ""), nil
}

func zipEntries(zr *zip.Reader, prefix string) []Entry {
	var entries []Entry
	for _, f := range zr.File {
		f := f
		if f.FileInfo().IsDir() || !isClassEntry(f.Name) {
			continue
		}
		entries = append(entries, Entry{
			Name: prefix + f.Name,
			Size: int64(f.UncompressedSize64),
			open: func() ([]byte, error) { return readZipFile(f) },
		})
	}
	return entries
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// aarContainer reads an Android library archive: classes.jar first, then
// libs/*.jar in name order.
type aarContainer struct {
	path string
	zr   *zip.ReadCloser
}

func (a *aarContainer) Path() string { return a.path }
func (a *aarContainer) Kind() Kind   { return KindAAR }
func (a *aarContainer) Close() error { return a.zr.Close() }

func (a *aarContainer) Entries() ([]Entry, error) {
	var jars []*zip.File
	var libs []*zip.File
	for _, f := range a.zr.File {
		switch {
		case f.Name == "classes.jar":
			jars = append(jars, f)
		case strings.HasPrefix(f.Name, "libs/") && strings.HasSuffix(f.Name, ".jar") && !strings.Contains(f.Name[len("libs/"):], "/"):
			libs = append(libs, f)
		}
	}
	sort.Slice(libs, func(i, j int) bool { return libs[i].Name < libs[j].Name })
	jars = append(jars, libs...)

	var entries []Entry
	for _, f := range jars {
		data, err := readZipFile(f)
		if err != nil {
			return nil, &UnreadableArtifactError{Path: a.path, Err: fmt.Errorf("read %s: %w", f.Name, err)}
		}
		inner, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, &UnreadableArtifactError{Path: a.path, Err: fmt.Errorf("embedded %s: %w", f.Name, err)}
		}
		entries = append(entries, zipEntries(inner, f.Name+"!/")...)
	}
	return entries, nil
}
