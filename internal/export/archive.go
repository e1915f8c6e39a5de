package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	"github.com/felixgeelhaar/blueprint/internal/template"
)

// Archive entry names.
const (
	ReadmeFile        = "README.md"
	StartFile         = "START.md"
	ProjectRulesFile  = "PROJECT_RULES.md"
	AgentProtocolFile = "AGENT_PROTOCOL.md"
	DiagramFile       = "diagram.json"
)

// Entry is one file of the archive.
type Entry struct {
	Path    string
	Content []byte
}

// Entries lays out the archive in its fixed order: README.md, START.md,
// PROJECT_RULES.md, AGENT_PROTOCOL.md, one specs/<slug>.md per node in node
// order, then diagram.json. docs supplies the replaceable documents; the rest
// always come from templates.
func Entries(in template.Input, docs *template.Result, createdAt time.Time) ([]Entry, error) {
	snapshot, err := diagram.Marshal(in.Nodes, in.Edges, createdAt)
	if err != nil {
		return nil, err
	}

	names := template.SpecFileNames(in.Nodes)
	entries := make([]Entry, 0, len(in.Nodes)+5)
	entries = append(entries,
		Entry{Path: ReadmeFile, Content: []byte(template.Readme(in.ProjectName))},
		Entry{Path: StartFile, Content: []byte(template.Bootstrap(in))},
		Entry{Path: ProjectRulesFile, Content: []byte(docs.ProjectRules)},
		Entry{Path: AgentProtocolFile, Content: []byte(docs.AgentProtocol)},
	)
	for _, n := range in.Nodes {
		spec, ok := docs.ComponentSpecs[n.ID]
		if !ok {
			return nil, fmt.Errorf("missing component spec for node %s", n.ID)
		}
		entries = append(entries, Entry{Path: template.SpecPath(names[n.ID]), Content: []byte(spec)})
	}
	entries = append(entries, Entry{Path: DiagramFile, Content: snapshot})
	return entries, nil
}

// WriteArchive packs entries into an in-memory zip, preserving their order.
// Nothing is returned unless every entry was written.
func WriteArchive(entries []Entry, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		if err := writeEntry(zw, e, modified); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", e.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, e Entry, modified time.Time) error {
	header := &zip.FileHeader{
		Name:     e.Path,
		Method:   zip.Deflate,
		Modified: modified,
	}
	header.SetMode(0o644)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(e.Content); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// ArchiveFilename suggests a download name: "<slug>-blueprint.zip", or
// "blueprint.zip" when the project name has no usable characters.
func ArchiveFilename(projectName string) string {
	slug := template.Slugify(projectName)
	if slug == "" {
		return "blueprint.zip"
	}
	return slug + "-blueprint.zip"
}
