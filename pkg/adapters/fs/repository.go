// Package fs is the filesystem collaborator: every user owns a directory of
// CNL documents that the adapter lists, parses, creates, saves and watches.
//
// Layout under the root:
//
//	<user>/<id>.cnl
//	<user>/.nodebook/catalog.yaml
//	<user>/.nodebook/preferences.yaml
//
// With versioning enabled the root is a git repository and every create and
// save is committed.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/gnowledge/nodeBook-sub003/pkg/cnl"
	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/git"
)

const (
	// DefaultSystemDir holds the per-user catalog and preferences.
	DefaultSystemDir = ".nodebook"
	// DefaultPattern selects document files inside a user directory.
	DefaultPattern = "*.cnl"
	// Extension of document files.
	Extension = ".cnl"

	lockFile = ".nodebook.lock"
)

// ErrInvalidID is returned for identifiers that cannot name a file.
var ErrInvalidID = core.ErrInvalidID

// Repository implements core.GraphSource, core.Preferences and core.Watchable
// on top of the filesystem and, optionally, git.
type Repository struct {
	Path   string
	git    *git.Client
	config Config

	mu            sync.RWMutex
	watchers      int
	lastReconcile *time.Time
	commits       int
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	AutoInit  bool
	Gitless   bool
	MustExist bool
	Logger    *slog.Logger
	SystemDir string
	Pattern   string
	// Parse turns CNL text into a structure. Defaults to cnl.Parse.
	Parse func(string) (*core.ParsedStructure, error)
	// ErrorHandler receives runtime watcher failures.
	ErrorHandler func(error)
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Pattern == "" {
		config.Pattern = DefaultPattern
	}
	if config.Parse == nil {
		config.Parse = cnl.Parse
	}
	return &Repository{
		Path:   config.Path,
		git:    git.NewClient(config.Path, lockFile, config.Logger),
		config: config,
	}
}

// Initialize creates the root directory and, unless gitless, the git repository.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("root path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("root path is not a directory: %s", r.Path)
		}
	} else if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create root directory: %w", err)
	}

	if r.config.Gitless {
		return nil
	}
	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !r.git.IsRepo(ctx) {
		if !r.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", r.Path)
		}
		if err := r.git.Init(ctx); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := r.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}
	if mod && wasNewRepo {
		return r.commit(ctx, FormatCommitMessage(CommitTypeChore, "", "ignore nodebook scratch files", ""), ".gitignore")
	}
	return nil
}

// ensureIgnore keeps the lock file and atomic-write temp files out of git.
func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	lines := strings.Split(string(content), "\n")
	var missing []string
	for _, entry := range []string{lockFile, TempFilePrefix + "*"} {
		if !slices.ContainsFunc(lines, func(l string) bool { return strings.TrimSpace(l) == entry }) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(strings.Join(missing, "\n") + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// ListGraphs returns the catalog entries whose file exists, followed by
// uncatalogued document files in name order.
func (r *Repository) ListGraphs(ctx context.Context, userID string) ([]core.DocumentInfo, error) {
	userDir, err := r.userDir(userID)
	if err != nil {
		return nil, err
	}
	cat, err := r.loadCatalog(userDir)
	if err != nil {
		return nil, err
	}

	files, err := r.discover(userDir)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(files))
	for _, id := range files {
		present[id] = true
	}

	out := make([]core.DocumentInfo, 0, len(files))
	listed := make(map[string]bool, len(files))
	for _, info := range cat.Graphs {
		if present[info.ID] && !listed[info.ID] {
			out = append(out, info)
			listed[info.ID] = true
		}
	}
	for _, id := range files {
		if listed[id] {
			continue
		}
		title := id
		if raw, err := os.ReadFile(r.docPath(userDir, id)); err == nil {
			if doc, err := cnl.ParseDocument(string(raw)); err == nil && doc.Meta.Title != "" {
				title = doc.Meta.Title
			}
		}
		out = append(out, core.DocumentInfo{ID: id, Title: title})
	}
	return out, ctx.Err()
}

// discover returns the ids of document files matching the pattern.
func (r *Repository) discover(userDir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(userDir), r.config.Pattern, doublestar.WithFilesOnly())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), TempFilePrefix) || filepath.Ext(m) != Extension {
			continue
		}
		ids = append(ids, strings.TrimSuffix(filepath.ToSlash(m), Extension))
	}
	slices.Sort(ids)
	return ids, nil
}

// FetchRaw returns the CNL source of a document.
func (r *Repository) FetchRaw(ctx context.Context, userID, id string) (string, error) {
	data, err := r.read(userID, id)
	if err != nil {
		return "", err
	}
	return string(data), ctx.Err()
}

// FetchParsed parses the document. Syntax errors are reported as
// core.ErrMalformedStructure.
func (r *Repository) FetchParsed(ctx context.Context, userID, id string) (*core.ParsedStructure, error) {
	data, err := r.read(userID, id)
	if err != nil {
		return nil, err
	}
	parsed, err := r.config.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrMalformedStructure, id, err)
	}
	return parsed, ctx.Err()
}

func (r *Repository) read(userID, id string) ([]byte, error) {
	userDir, err := r.userDir(userID)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.docPath(userDir, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", id, core.ErrNotFound)
	}
	return data, err
}

// CreateDocument writes a new document holding only its frontmatter and
// appends it to the catalog.
func (r *Repository) CreateDocument(ctx context.Context, userID, id, title, description string) error {
	userDir, err := r.userDir(userID)
	if err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}

	path := r.docPath(userDir, id)
	cat, err := r.loadCatalog(userDir)
	if err != nil {
		return err
	}
	if _, ok := cat.find(id); ok || fileExists(path) {
		return fmt.Errorf("%s: %w", id, core.ErrDuplicateDocument)
	}

	front, err := yaml.Marshal(cnl.Meta{Title: title, Description: description})
	if err != nil {
		return fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}
	if err := writeFileAtomic(path, []byte("---\n"+string(front)+"---\n"), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	cat.Graphs = append(cat.Graphs, core.DocumentInfo{ID: id, Title: title})
	if err := saveYAML(r.catalogPath(userDir), cat); err != nil {
		return fmt.Errorf("failed to update catalog: %w", err)
	}

	r.config.Logger.Debug("document created", "user", userID, "id", id)
	return r.commit(ctx, FormatCommitMessage(CommitTypeFeat, userID, "create "+id, title), r.rel(path), r.rel(r.catalogPath(userDir)))
}

// SaveDocument replaces the source of an existing document.
func (r *Repository) SaveDocument(ctx context.Context, userID, id, raw string) error {
	userDir, err := r.userDir(userID)
	if err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}
	path := r.docPath(userDir, id)
	if !fileExists(path) {
		return fmt.Errorf("%s: %w", id, core.ErrNotFound)
	}
	if err := writeFileAtomic(path, []byte(raw), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	r.config.Logger.Debug("document saved", "user", userID, "id", id, "bytes", len(raw))
	return r.commit(ctx, FormatCommitMessage(CommitTypeDocs, userID, "update "+id, ""), r.rel(path))
}

// GetDifficulty reads the user's difficulty tier, easy when unset.
func (r *Repository) GetDifficulty(ctx context.Context, userID string) (core.Difficulty, error) {
	userDir, err := r.userDir(userID)
	if err != nil {
		return "", err
	}
	var prefs preferences
	if err := loadYAML(filepath.Join(userDir, r.config.SystemDir, preferencesFile), &prefs); err != nil {
		return "", err
	}
	if prefs.Difficulty == "" {
		return core.DifficultyEasy, nil
	}
	return core.ParseDifficulty(prefs.Difficulty)
}

// SetDifficulty stores the user's difficulty tier.
func (r *Repository) SetDifficulty(ctx context.Context, userID string, d core.Difficulty) error {
	userDir, err := r.userDir(userID)
	if err != nil {
		return err
	}
	if _, err := core.ParseDifficulty(string(d)); err != nil {
		return err
	}
	path := filepath.Join(userDir, r.config.SystemDir, preferencesFile)
	if err := saveYAML(path, preferences{Difficulty: string(d)}); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return r.commit(ctx, FormatCommitMessage(CommitTypeChore, userID, "set difficulty to "+string(d), ""), r.rel(path))
}

func (r *Repository) commit(ctx context.Context, msg string, files ...string) error {
	if r.config.Gitless {
		return nil
	}
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	if err := r.git.Add(ctx, files...); err != nil {
		return fmt.Errorf("failed to git add: %w", err)
	}
	if err := r.git.Commit(ctx, msg); err != nil {
		return fmt.Errorf("failed to git commit: %w", err)
	}

	r.mu.Lock()
	r.commits++
	r.mu.Unlock()
	return nil
}

func (r *Repository) loadCatalog(userDir string) (*catalog, error) {
	cat := &catalog{Version: 1}
	if err := loadYAML(r.catalogPath(userDir), cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (r *Repository) userDir(userID string) (string, error) {
	if err := validateID(userID); err != nil {
		return "", fmt.Errorf("user: %w", err)
	}
	return filepath.Join(r.Path, userID), nil
}

func (r *Repository) docPath(userDir, id string) string {
	return filepath.Join(userDir, filepath.FromSlash(id)+Extension)
}

func (r *Repository) catalogPath(userDir string) string {
	return filepath.Join(userDir, r.config.SystemDir, catalogFile)
}

func (r *Repository) rel(path string) string {
	if rel, err := filepath.Rel(r.Path, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// validateID accepts slash-separated relative names without dot segments.
func validateID(id string) error {
	if id == "" || strings.HasPrefix(id, "/") || strings.ContainsAny(id, `\:`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, seg := range strings.Split(id, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.HasPrefix(seg, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
