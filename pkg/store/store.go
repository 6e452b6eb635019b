// Package store persists users and their reference faces in SQLite.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lumenlabs/go-lumen/pkg/reason"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// User is an account, created by password signup or Google OAuth.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Name         string    `json:"name"`
	GoogleID     string    `gorm:"index" json:"-"`
	AvatarURL    string    `json:"avatar_url"`
	PasswordHash string    `json:"-"`
	Settings     string    `gorm:"type:text" json:"settings"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ReferenceFace is a named photo of a person the user knows, shown to
// the vision model when a person is in frame.
type ReferenceFace struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	FilePath  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the database and the face image directory.
type Store struct {
	db       *gorm.DB
	facesDir string
}

// Open opens (creating if needed) the SQLite database under dataDir
// and migrates the schema. Face images are saved under dataDir/faces.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	facesDir := filepath.Join(dataDir, "faces")
	if err := os.MkdirAll(facesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create faces dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(dataDir, "lumen.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &ReferenceFace{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db, facesDir: facesDir}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(u *User) error {
	if err := s.db.Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByEmail looks up a user by email.
func (s *Store) UserByEmail(email string) (*User, error) {
	var u User
	if err := s.db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &u, nil
}

// UserByID looks up a user by primary key.
func (s *Store) UserByID(id uint) (*User, error) {
	var u User
	if err := s.db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &u, nil
}

// UpsertGoogleUser finds or creates the user for a Google profile,
// refreshing the name and avatar on every login.
func (s *Store) UpsertGoogleUser(googleID, email, name, avatarURL string) (*User, error) {
	var u User
	err := s.db.Where("google_id = ?", googleID).Or("email = ?", email).First(&u).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		u = User{GoogleID: googleID, Email: email, Name: name, AvatarURL: avatarURL}
		if err := s.db.Create(&u).Error; err != nil {
			return nil, fmt.Errorf("create google user: %w", err)
		}
		return &u, nil
	case err != nil:
		return nil, fmt.Errorf("lookup google user: %w", err)
	}

	u.GoogleID = googleID
	u.Name = name
	u.AvatarURL = avatarURL
	if err := s.db.Save(&u).Error; err != nil {
		return nil, fmt.Errorf("update google user: %w", err)
	}
	return &u, nil
}

// UpdateSettings replaces the user's settings JSON blob.
func (s *Store) UpdateSettings(userID uint, settings string) error {
	res := s.db.Model(&User{}).Where("id = ?", userID).Update("settings", settings)
	if res.Error != nil {
		return fmt.Errorf("update settings: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFace saves the image bytes under a generated filename and records
// the face for the user.
func (s *Store) AddFace(userID uint, name string, image []byte) (*ReferenceFace, error) {
	filename := uuid.NewString() + ".jpg"
	path := filepath.Join(s.facesDir, filename)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return nil, fmt.Errorf("save face image: %w", err)
	}

	face := &ReferenceFace{UserID: userID, Name: name, FilePath: path}
	if err := s.db.Create(face).Error; err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("create face: %w", err)
	}
	return face, nil
}

// Faces returns the user's reference faces, oldest first.
func (s *Store) Faces(userID uint) ([]ReferenceFace, error) {
	var faces []ReferenceFace
	if err := s.db.Where("user_id = ?", userID).Order("id").Find(&faces).Error; err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	return faces, nil
}

// DeleteFace removes a face record and its image file. The userID
// guard keeps users from deleting each other's faces.
func (s *Store) DeleteFace(userID, faceID uint) error {
	var face ReferenceFace
	err := s.db.Where("id = ? AND user_id = ?", faceID, userID).First(&face).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup face: %w", err)
	}

	if err := s.db.Delete(&face).Error; err != nil {
		return fmt.Errorf("delete face: %w", err)
	}
	if err := os.Remove(face.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete face image: %w", err)
	}
	return nil
}

// ListFaces adapts the store to the reasoner's face source interface.
func (s *Store) ListFaces(userID uint) ([]reason.Face, error) {
	faces, err := s.Faces(userID)
	if err != nil {
		return nil, err
	}
	out := make([]reason.Face, 0, len(faces))
	for _, f := range faces {
		out = append(out, reason.Face{Name: f.Name, Path: f.FilePath})
	}
	return out, nil
}
