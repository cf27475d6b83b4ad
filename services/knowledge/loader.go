package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/upb/helpdesk-orchestrator/config"
	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/repositories"
	"github.com/upb/helpdesk-orchestrator/utils"
)

// Format is a knowledge base file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported knowledge base file %q (want .json, .yaml or .yml)", path)
	}
}

// document is the object form of a knowledge base file
type document struct {
	Entries []models.KnowledgeEntry `json:"entries" yaml:"entries"`
}

// Decode reads entries from r. Both a bare array and an object with an
// "entries" array are accepted.
func Decode(r io.Reader, format Format) ([]models.KnowledgeEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}

	var entries []models.KnowledgeEntry
	switch format {
	case FormatJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			var doc document
			if err := json.Unmarshal(trimmed, &doc); err != nil {
				return nil, fmt.Errorf("failed to parse knowledge base JSON: %w", err)
			}
			entries = doc.Entries
		} else if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse knowledge base JSON: %w", err)
		}
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("failed to parse knowledge base YAML: %w", err)
		}
		if len(node.Content) == 0 {
			break
		}
		root := node.Content[0]
		if root.Kind == yaml.MappingNode {
			var doc document
			if err := root.Decode(&doc); err != nil {
				return nil, fmt.Errorf("failed to parse knowledge base YAML: %w", err)
			}
			entries = doc.Entries
		} else if err := root.Decode(&entries); err != nil {
			return nil, fmt.Errorf("failed to parse knowledge base YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported knowledge base format %q", format)
	}

	return entries, nil
}

// LoadFile reads and validates a JSON or YAML knowledge base file
func LoadFile(path string) ([]models.KnowledgeEntry, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer f.Close()

	entries, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Normalize(entries)
}

// Normalize trims text fields, normalizes tags and validates every entry.
// Duplicate ids are rejected. The input slice is not modified.
func Normalize(entries []models.KnowledgeEntry) ([]models.KnowledgeEntry, error) {
	out := make([]models.KnowledgeEntry, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for i, e := range entries {
		e.ID = strings.TrimSpace(e.ID)
		e.Question = strings.TrimSpace(e.Question)
		e.Answer = strings.TrimSpace(e.Answer)
		e.Category = strings.TrimSpace(e.Category)
		e.Tags = models.NormalizeTags(e.Tags)

		if err := utils.ValidateStruct(e); err != nil {
			label := e.ID
			if label == "" {
				label = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("%w %s: %v", ErrInvalidEntry, label, err)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = true
		out = append(out, e)
	}

	return out, nil
}

// Loader fetches the knowledge base from the configured source
type Loader struct {
	cfg    config.KnowledgeConfig
	repo   repositories.KnowledgeRepository
	logger *zap.Logger
}

// NewLoader creates a loader. repo is only consulted for the postgres source.
func NewLoader(cfg config.KnowledgeConfig, repo repositories.KnowledgeRepository, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, repo: repo, logger: logger}
}

// Load returns validated entries from the file or the database
func (l *Loader) Load(ctx context.Context) ([]models.KnowledgeEntry, error) {
	var (
		entries []models.KnowledgeEntry
		err     error
	)

	switch l.cfg.Source {
	case config.KnowledgeSourcePostgres:
		if l.repo == nil {
			return nil, fmt.Errorf("postgres knowledge source requires a database")
		}
		raw, listErr := l.repo.List(ctx)
		if listErr != nil {
			return nil, listErr
		}
		entries, err = Normalize(raw)
	case config.KnowledgeSourceFile, "":
		entries, err = LoadFile(l.cfg.Path)
	default:
		return nil, fmt.Errorf("unknown knowledge source %q", l.cfg.Source)
	}
	if err != nil {
		return nil, err
	}

	l.logger.Info("knowledge base loaded",
		zap.String("source", l.cfg.Source),
		zap.String("path", l.cfg.Path),
		zap.Int("entries", len(entries)))

	return entries, nil
}

// Import validates entries and replaces the stored knowledge base in one
// transaction
func Import(ctx context.Context, tm repositories.TransactionManager, repo repositories.KnowledgeRepository, entries []models.KnowledgeEntry) (int, error) {
	normalized, err := Normalize(entries)
	if err != nil {
		return 0, err
	}

	err = tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		return repo.ReplaceAll(ctx, normalized)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import knowledge base: %w", err)
	}
	return len(normalized), nil
}
