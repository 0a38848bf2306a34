package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Pattern matches catalog files below a catalog directory.
const Pattern = "**/*.{md,yaml,yml,json}"

// ErrDuplicateID is returned when two catalog entries share a worker ID.
var ErrDuplicateID = errors.New("catalog: duplicate worker id")

// Load reads every catalog file below dirs. Directories that do not exist
// are skipped. Entries are returned in directory order, then file path
// order, then file order.
func Load(dirs ...string) ([]Entry, error) {
	var (
		entries []Entry
		seen    = make(map[string]string)
	)
	for _, dir := range dirs {
		paths, err := Files(dir)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			fileEntries, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			for _, e := range fileEntries {
				id := e.WorkerID()
				if prev, ok := seen[id]; ok {
					return nil, fmt.Errorf("%w: %q in %s and %s", ErrDuplicateID, id, prev, path)
				}
				seen[id] = path
				entries = append(entries, e)
			}
		}
	}
	return entries, nil
}

// Files lists the catalog files below dir in lexical order.
func Files(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog: %s is not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("catalog: glob %s: %w", dir, err)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
	}
	return paths, nil
}

// IsCatalogFile reports whether path has a catalog file extension.
func IsCatalogFile(path string) bool {
	ok, _ := doublestar.Match("*.{md,yaml,yml,json}", filepath.Base(path))
	return ok
}

// LoadFile reads the entries in one catalog file. A markdown file without
// front matter holds no entries.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	entries, err := Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return entries, nil
}

// Parse decodes catalog file content. The format is chosen by the path's
// extension.
func Parse(path string, data []byte) ([]Entry, error) {
	var (
		entries []Entry
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".md") {
		entries, err = parseMarkdown(data)
	} else {
		// JSON is decoded by the YAML parser.
		entries, err = parseDocument(data)
	}
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Path = path
	}
	return entries, nil
}

var frontMatterFence = []byte("---")

func parseMarkdown(data []byte) ([]Entry, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, frontMatterFence) {
		return nil, nil
	}
	rest := data[len(frontMatterFence):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return nil, nil
	}
	rest = rest[nl+1:]

	var front, body []byte
	switch {
	case bytes.HasPrefix(rest, frontMatterFence):
		body = rest[len(frontMatterFence):]
	default:
		end := bytes.Index(rest, []byte("\n---"))
		if end < 0 {
			return nil, errors.New("unterminated front matter")
		}
		front = rest[:end+1]
		body = rest[end+len("\n---"):]
	}
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = nil
	}

	var e Entry
	if err := yaml.Unmarshal(front, &e); err != nil {
		return nil, err
	}
	if e.Instructions == "" {
		e.Instructions = strings.TrimSpace(string(body))
	}
	return []Entry{e}, nil
}

func parseDocument(data []byte) ([]Entry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]

	switch doc.Kind {
	case yaml.SequenceNode:
		var entries []Entry
		if err := doc.Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil
	case yaml.MappingNode:
		if workers := mappingValue(doc, "workers"); workers != nil {
			var entries []Entry
			if err := workers.Decode(&entries); err != nil {
				return nil, err
			}
			return entries, nil
		}
		var e Entry
		if err := doc.Decode(&e); err != nil {
			return nil, err
		}
		return []Entry{e}, nil
	default:
		return nil, fmt.Errorf("line %d: expected an entry or a list of entries", doc.Line)
	}
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// walkDirs returns dir and every directory below it.
func walkDirs(dir string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}
