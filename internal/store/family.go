package store

import (
	"database/sql"
	"fmt"

	"github.com/hearthhq/hearth/internal/model"
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	err := scanner.Scan(&f.ID, &f.Name, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	err := scanner.Scan(&m.ID, &m.FamilyID, &m.UserID, &m.Role, &m.Color, &m.PinHash, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const familyCols = `id, name, created_at, updated_at`
const memberCols = `id, family_id, user_id, role, color, pin_hash, created_at, updated_at`

func (s *FamilyStore) Create(name string) (*model.Family, error) {
	result, err := s.db.Exec(`INSERT INTO families (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FamilyStore) GetByID(id int64) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) ListForUser(userID int64) ([]model.Family, error) {
	rows, err := s.db.Query(
		`SELECT f.id, f.name, f.created_at, f.updated_at FROM families f
		 JOIN family_members m ON m.family_id = f.id WHERE m.user_id = ? ORDER BY f.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list families for user: %w", err)
	}
	defer rows.Close()

	var families []model.Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		families = append(families, *f)
	}
	return families, rows.Err()
}

// AddMember adds a user to a family with the given role.
func (s *FamilyStore) AddMember(familyID, userID int64, role, color string) (*model.FamilyMember, error) {
	result, err := s.db.Exec(
		`INSERT INTO family_members (family_id, user_id, role, color) VALUES (?, ?, ?, ?)`,
		familyID, userID, role, color,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+memberCols+` FROM family_members WHERE id = ?`, id)
	return scanMember(row)
}

func (s *FamilyStore) GetMember(familyID, userID int64) (*model.FamilyMember, error) {
	row := s.db.QueryRow(
		`SELECT `+memberCols+` FROM family_members WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family member: %w", err)
	}
	return m, nil
}

func (s *FamilyStore) ListMembers(familyID int64) ([]model.FamilyMember, error) {
	rows, err := s.db.Query(
		`SELECT `+memberCols+` FROM family_members WHERE family_id = ? ORDER BY role ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *FamilyStore) UpdateMemberRole(familyID, userID int64, role string) error {
	_, err := s.db.Exec(
		`UPDATE family_members SET role = ?, updated_at = datetime('now') WHERE family_id = ? AND user_id = ?`,
		role, familyID, userID,
	)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	return nil
}

func (s *FamilyStore) SetMemberPIN(familyID, userID int64, pinHash string) error {
	_, err := s.db.Exec(
		`UPDATE family_members SET pin_hash = ?, updated_at = datetime('now') WHERE family_id = ? AND user_id = ?`,
		pinHash, familyID, userID,
	)
	if err != nil {
		return fmt.Errorf("set member pin: %w", err)
	}
	return nil
}

func (s *FamilyStore) RemoveMember(familyID, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM family_members WHERE family_id = ? AND user_id = ?`, familyID, userID)
	if err != nil {
		return fmt.Errorf("remove family member: %w", err)
	}
	return nil
}
