package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// GetDumpPack returns a pack by id.
func (s *Store) GetDumpPack(ctx context.Context, id string) (*DumpPack, error) {
	var (
		p                               DumpPack
		dump, project, flp, stems, midi sql.NullString
	)
	err := s.queryRow(ctx, s.db, `
		SELECT id, creator_id, title, dump_zip_path, project_zip_path,
			flp_path, stems_zip_path, midi_zip_path, created_at
		FROM dump_packs WHERE id = ?`, id,
	).Scan(&p.ID, &p.CreatorID, &p.Title, &dump, &project, &flp, &stems, &midi, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.DumpZipPath = dump.String
	p.ProjectZipPath = project.String
	p.FLPPath = flp.String
	p.StemsZipPath = stems.String
	p.MIDIZipPath = midi.String
	return &p, nil
}

// CreateDumpPack inserts a pack, assigning an id when empty.
func (s *Store) CreateDumpPack(ctx context.Context, p *DumpPack) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = s.now()
	_, err := s.exec(ctx, s.db, `
		INSERT INTO dump_packs (id, creator_id, title, dump_zip_path, project_zip_path,
			flp_path, stems_zip_path, midi_zip_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CreatorID, p.Title, nullString(p.DumpZipPath), nullString(p.ProjectZipPath),
		nullString(p.FLPPath), nullString(p.StemsZipPath), nullString(p.MIDIZipPath), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert dump pack: %w", err)
	}
	return nil
}

// ObjectPath returns the stored path for a downloadable file type, or ""
// when the type is unknown or the file was not uploaded. A project download
// prefers the full dump archive, then the project archive, then the bare FLP.
func (p *DumpPack) ObjectPath(fileType string) string {
	switch fileType {
	case "project":
		for _, path := range []string{p.DumpZipPath, p.ProjectZipPath, p.FLPPath} {
			if path != "" {
				return path
			}
		}
	case "stems":
		return p.StemsZipPath
	case "midi":
		return p.MIDIZipPath
	}
	return ""
}
